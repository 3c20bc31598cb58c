package gate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.sr.ht/~jakintosh/sessiongate/pkg/gate"
	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

type view struct {
	identity   *session.Identity
	credential *session.Credential
}

func (v view) Identity() (session.Identity, bool) {
	if v.identity == nil {
		return session.Identity{}, false
	}
	return *v.identity, true
}

func (v view) Credential() (session.Credential, bool) {
	if v.credential == nil {
		return session.Credential{}, false
	}
	return *v.credential, true
}

func withRole(role session.Role) view {
	return view{
		identity:   &session.Identity{UID: "u-1", Role: role},
		credential: &session.Credential{AccessToken: "access"},
	}
}

func authorized(role session.Role) gate.Decision {
	return gate.Decision{
		Outcome:  gate.Authorized,
		Role:     role,
		Identity: &session.Identity{UID: "u-1", Role: role},
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		view    view
		allowed []session.Role
		want    gate.Decision
	}{
		{
			name: "nothing",
			want: gate.Decision{Outcome: gate.Denied, Reason: gate.Unauthenticated},
		},
		{
			name: "identity without credential",
			view: view{identity: &session.Identity{UID: "u-1", Role: session.RoleAdmin}},
			want: gate.Decision{Outcome: gate.Denied, Reason: gate.Unauthenticated},
		},
		{
			name: "credential without identity",
			view: view{credential: &session.Credential{AccessToken: "access"}},
			want: gate.Decision{Outcome: gate.Denied, Reason: gate.Unauthenticated},
		},
		{
			name: "empty access token",
			view: view{
				identity:   &session.Identity{UID: "u-1", Role: session.RoleAdmin},
				credential: &session.Credential{},
			},
			want: gate.Decision{Outcome: gate.Denied, Reason: gate.Unauthenticated},
		},
		{
			name: "user",
			view: withRole(session.RoleUser),
			want: gate.Decision{Outcome: gate.Denied, Role: session.RoleUser, Reason: gate.Unauthorized},
		},
		{
			name: "no role",
			view: withRole(""),
			want: gate.Decision{Outcome: gate.Denied, Reason: gate.Unauthorized},
		},
		{
			name: "unknown role",
			view: withRole("editor"),
			want: gate.Decision{Outcome: gate.Denied, Role: "editor", Reason: gate.Unauthorized},
		},
		{
			name: "admin",
			view: withRole(session.RoleAdmin),
			want: authorized(session.RoleAdmin),
		},
		{
			name: "super admin",
			view: withRole(session.RoleSuperAdmin),
			want: authorized(session.RoleSuperAdmin),
		},
		{
			name:    "user in a region open to users",
			view:    withRole(session.RoleUser),
			allowed: []session.Role{session.RoleUser},
			want:    authorized(session.RoleUser),
		},
		{
			name:    "admin in a super admin region",
			view:    withRole(session.RoleAdmin),
			allowed: []session.Role{session.RoleSuperAdmin},
			want:    gate.Decision{Outcome: gate.Denied, Role: session.RoleAdmin, Reason: gate.Unauthorized},
		},
		{
			name:    "empty role never matches",
			view:    withRole(""),
			allowed: []session.Role{""},
			want:    gate.Decision{Outcome: gate.Denied, Reason: gate.Unauthorized},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, gate.Evaluate(tc.view, tc.allowed))
		})
	}
}

func TestDecision_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "checking", gate.Decision{}.String())
	assert.Equal(t, "authorized", gate.Decision{Outcome: gate.Authorized}.String())
	assert.Equal(t, "unauthenticated", gate.Decision{Outcome: gate.Denied, Reason: gate.Unauthenticated}.String())
	assert.Equal(t, "unauthorized", gate.Decision{Outcome: gate.Denied, Reason: gate.Unauthorized}.String())
}
