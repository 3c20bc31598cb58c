package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

var ErrLogoutInFlight = errors.New("logout already in progress")

// SignOuter ends a session at the identity provider.
type SignOuter interface {
	SignOut(ctx context.Context, credential session.Credential) error
}

// Logout ends the session of a tab. Local state is cleared whatever the
// provider answers.
type Logout struct {
	Provider  SignOuter
	LoginPath string
	// SignOutTimeout bounds the provider call.
	SignOutTimeout time.Duration
	Logger         *slog.Logger
}

const defaultSignOutTimeout = 5 * time.Second

// Logout signs ws out at the provider and clears it locally. A call made
// while another is in flight for the same workspace does nothing and
// returns ErrLogoutInFlight. A provider failure is logged, not returned;
// the only errors returned are ErrLogoutInFlight and local storage failures.
func (l *Logout) Logout(
	ctx context.Context,
	ws *Workspace,
) error {
	if !ws.loggingOut.CompareAndSwap(false, true) {
		return ErrLogoutInFlight
	}
	defer ws.loggingOut.Store(false)

	logger := l.logger()
	if credential, ok := ws.Store.Credential(); ok && l.Provider != nil {
		timeout := l.SignOutTimeout
		if timeout <= 0 {
			timeout = defaultSignOutTimeout
		}
		signOutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		err := l.Provider.SignOut(signOutCtx, credential)
		cancel()
		if err != nil {
			logger.WarnContext(ctx, "logout: provider sign-out failed, clearing locally", "tab", ws.TabID, "error", err)
		}
	}

	if err := ws.Store.ClearAuth(); err != nil {
		logger.ErrorContext(ctx, "logout: couldn't clear session", "tab", ws.TabID, "error", err)
		return err
	}
	logger.InfoContext(ctx, "logout: session cleared", "tab", ws.TabID)
	return nil
}

// ServeHTTP logs the requesting tab out and sends it to the login page in
// every case.
func (l *Logout) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, ok := WorkspaceFrom(r.Context())
	if !ok {
		http.Redirect(w, r, l.LoginPath, http.StatusSeeOther)
		return
	}

	if err := l.Logout(r.Context(), ws); errors.Is(err, ErrLogoutInFlight) {
		l.logger().DebugContext(r.Context(), "logout: ignoring repeated request", "tab", ws.TabID)
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, l.LoginPath, http.StatusSeeOther)
}

func (l *Logout) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}
