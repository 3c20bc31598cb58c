package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

// Policy supplies the allowed roles of a named region. A region it does not
// know falls back to [session.DefaultAllowedRoles].
type Policy interface {
	AllowedRoles(region string) ([]session.Role, bool)
}

// Gate guards one region. Nothing behind it is served until the tab's
// bootstrap has completed and the session has been evaluated as Authorized.
type Gate struct {
	Region string
	Policy Policy
	// Allowed is used when Policy is nil or does not know Region.
	Allowed []session.Role

	LoginPath  string
	DeniedPath string

	// BootstrapTimeout bounds the wait for the bootstrap signal.
	BootstrapTimeout time.Duration
	Observer         session.Observer
	Logger           *slog.Logger
}

const defaultBootstrapTimeout = 5 * time.Second

// RequireRole guards a handler with the same evaluation the gate uses, for
// the given roles.
func RequireRole(
	loginPath string,
	deniedPath string,
	allowed ...session.Role,
) func(http.Handler) http.Handler {
	g := &Gate{
		Allowed:    allowed,
		LoginPath:  loginPath,
		DeniedPath: deniedPath,
	}
	return g.Middleware
}

func (g *Gate) AllowedRoles() []session.Role {
	if g.Policy != nil {
		if roles, ok := g.Policy.AllowedRoles(g.Region); ok {
			return roles
		}
	}
	if len(g.Allowed) > 0 {
		return g.Allowed
	}
	return session.DefaultAllowedRoles
}

// Check waits for ws to finish bootstrapping and evaluates it. A tab whose
// session was ended by another tab of the same profile is cleared and
// reported Unauthenticated. The returned decision is Pending only when ctx
// ended first.
func (g *Gate) Check(
	ctx context.Context,
	ws *Workspace,
) Decision {
	timeout := g.BootstrapTimeout
	if timeout <= 0 {
		timeout = defaultBootstrapTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ws.Bootstrap.Wait(waitCtx); err != nil {
		return Decision{Outcome: Pending}
	}

	d := Evaluate(ws.Store, g.AllowedRoles())
	if d.Outcome == Authorized && g.endedElsewhere(ctx, ws, *d.Identity) {
		if err := ws.Store.ClearLocal(); err != nil {
			g.logger().WarnContext(ctx, "gate: couldn't clear evicted session", "error", err)
		}
		d = Decision{Outcome: Denied, Reason: Unauthenticated}
	}
	return d
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ws, ok := WorkspaceFrom(ctx)
		if !ok {
			g.logger().ErrorContext(ctx, "gate: request reached a guarded region without a workspace", "path", r.URL.Path)
			http.Error(w, ErrNoWorkspace.Error(), http.StatusInternalServerError)
			return
		}

		d := g.Check(ctx, ws)
		g.observe(d, "path", r.URL.Path, "tab", ws.TabID)

		// nothing behind the gate may be cached by the browser
		w.Header().Set("Cache-Control", "no-store")

		switch d.Outcome {
		case Pending:
			http.Error(w, "session not ready", http.StatusServiceUnavailable)
		case Authorized:
			next.ServeHTTP(w, r.WithContext(withIdentity(ctx, *d.Identity)))
		case Denied:
			if d.Reason == Unauthorized {
				if err := ws.Store.ClearAuth(); err != nil {
					g.logger().WarnContext(ctx, "gate: couldn't clear unauthorized session", "error", err)
				}
				http.Redirect(w, r, g.DeniedPath, http.StatusSeeOther)
				return
			}
			http.Redirect(w, r, g.LoginPath, http.StatusSeeOther)
		}
	})
}

func (g *Gate) endedElsewhere(
	ctx context.Context,
	ws *Workspace,
	identity session.Identity,
) bool {
	snapshot, found, err := ws.Store.Snapshot()
	if err != nil {
		if !errors.Is(err, session.ErrInconsistentSession) {
			g.logger().WarnContext(ctx, "gate: couldn't read durable snapshot", "error", err)
		}
		return true
	}
	if !found || !snapshot.IsAuthenticated {
		return true
	}
	return snapshot.User != nil && snapshot.User.UID != identity.UID
}

func (g *Gate) observe(d Decision, attrs ...any) {
	if g.Observer == nil {
		return
	}
	attrs = append(attrs, "region", g.Region, "from", "checking", "to", d.String(), "role", string(d.Role))
	g.Observer.Observe("gate", nil, attrs...)
}

func (g *Gate) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}
