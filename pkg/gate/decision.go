package gate

import (
	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

type Outcome int

const (
	Pending Outcome = iota
	Authorized
	Denied
)

type Reason int

const (
	NoReason Reason = iota
	// Unauthenticated means there is no usable identity and credential.
	Unauthenticated
	// Unauthorized means there is an identity whose role is not allowed.
	Unauthorized
)

// Decision is the outcome of one authorization check. It is recomputed on
// every navigation and never stored.
type Decision struct {
	Outcome Outcome
	Role    session.Role
	Reason  Reason
	// Identity is the identity that was authorized. Set only when Outcome
	// is Authorized.
	Identity *session.Identity
}

func (d Decision) String() string {
	switch d.Outcome {
	case Pending:
		return "checking"
	case Authorized:
		return "authorized"
	}
	switch d.Reason {
	case Unauthenticated:
		return "unauthenticated"
	case Unauthorized:
		return "unauthorized"
	}
	return "denied"
}

// SessionView is the part of a session store a decision reads.
type SessionView interface {
	Identity() (session.Identity, bool)
	Credential() (session.Credential, bool)
}

// Evaluate decides whether view may enter a region open to allowed roles.
// An empty allowed set falls back to [session.DefaultAllowedRoles]. A
// missing or empty role is never allowed.
func Evaluate(
	view SessionView,
	allowed []session.Role,
) Decision {
	identity, hasIdentity := view.Identity()
	credential, hasCredential := view.Credential()
	if !hasIdentity || !hasCredential || credential.AccessToken == "" {
		return Decision{Outcome: Denied, Reason: Unauthenticated}
	}

	if len(allowed) == 0 {
		allowed = session.DefaultAllowedRoles
	}
	if !identity.Role.In(allowed) {
		return Decision{Outcome: Denied, Role: identity.Role, Reason: Unauthorized}
	}
	return Decision{Outcome: Authorized, Role: identity.Role, Identity: &identity}
}
