package gate

import (
	"context"

	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

type contextKey int

const (
	workspaceKey contextKey = iota
	identityKey
)

func withWorkspace(ctx context.Context, ws *Workspace) context.Context {
	return context.WithValue(ctx, workspaceKey, ws)
}

// WorkspaceFrom returns the workspace resolved by [Registry.Middleware].
func WorkspaceFrom(ctx context.Context) (*Workspace, bool) {
	ws, ok := ctx.Value(workspaceKey).(*Workspace)
	return ws, ok && ws != nil
}

func withIdentity(ctx context.Context, identity session.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the identity authorized by a [Gate].
func IdentityFrom(ctx context.Context) (session.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(session.Identity)
	return identity, ok
}
