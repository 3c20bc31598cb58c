package session

import (
	"slices"
	"strings"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// DefaultAllowedRoles is the allowed set for a guarded region that does not
// configure its own.
var DefaultAllowedRoles = []Role{RoleAdmin, RoleSuperAdmin}

// Known reports whether r is one of the roles the provider may issue.
func (r Role) Known() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// In reports whether r is a non-empty member of allowed. An empty role is
// never allowed, even if allowed contains the empty string.
func (r Role) In(allowed []Role) bool {
	if r == "" {
		return false
	}
	return slices.Contains(allowed, r)
}

// UserInfo is the user record returned by the identity provider.
type UserInfo struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Role      Role   `json:"role,omitempty"`
}

// UserProfile is the optional application profile of a user.
type UserProfile struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Identity is the authenticated principal.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Credential is the opaque token material of a session. It only ever lives
// in memory and in the ephemeral tier.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// DisplayName derives the name shown for a user. The first non-empty of
// these wins: profile first+last name, info first+last name, info username,
// local part of info email.
func DisplayName(
	info UserInfo,
	profile *UserProfile,
) string {
	if profile != nil {
		if name := joinName(profile.FirstName, profile.LastName); name != "" {
			return name
		}
	}
	if name := joinName(info.FirstName, info.LastName); name != "" {
		return name
	}
	if username := strings.TrimSpace(info.Username); username != "" {
		return username
	}
	local, _, _ := strings.Cut(strings.TrimSpace(info.Email), "@")
	return local
}

func joinName(first, last string) string {
	parts := make([]string, 0, 2)
	if first = strings.TrimSpace(first); first != "" {
		parts = append(parts, first)
	}
	if last = strings.TrimSpace(last); last != "" {
		parts = append(parts, last)
	}
	return strings.Join(parts, " ")
}

func newIdentity(
	info UserInfo,
	profile *UserProfile,
) Identity {
	return Identity{
		UID:   info.UID,
		Email: info.Email,
		Name:  DisplayName(info, profile),
		Role:  info.Role,
	}
}
