package app

import (
	"net/http"

	"git.sr.ht/~jakintosh/sessiongate/pkg/gate"
	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

var loginErrors = map[string]string{
	"missing_code": "The sign-in response was incomplete. Please try again.",
	"stale_state":  "That sign-in link has expired or was already used. Please try again.",
	"token":        "The identity provider rejected the sign-in. Please try again.",
	"callback":     "Signing in failed. Please try again.",
}

type loginModel struct {
	Title     string
	Error     string
	Identity  *session.Identity
	StartPath string
	HomePath  string
}

// Login is the public login entry point. A tab that is already signed in
// is offered a way on instead of a second login.
func (a *App) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := loginModel{
			Title:     "Sign in",
			StartPath: a.paths.LoginStart,
			HomePath:  a.paths.Home,
		}
		if code := r.URL.Query().Get("error"); code != "" {
			msg, ok := loginErrors[code]
			if !ok {
				msg = loginErrors["callback"]
			}
			model.Error = msg
		}
		if ws, ok := gate.WorkspaceFrom(r.Context()); ok {
			model.Identity = signedIn(ws.Store)
		}

		w.Header().Set("Cache-Control", "no-store")
		a.render(w, r, http.StatusOK, "login.html", model)
	}
}

func (a *App) AccessDenied() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := struct {
			Title     string
			StartPath string
		}{
			Title:     "Access denied",
			StartPath: a.paths.LoginStart,
		}
		a.render(w, r, http.StatusForbidden, "access_denied.html", model)
	}
}

type dashboardModel struct {
	Title      string
	Heading    string
	Identity   session.Identity
	Regions    []Link
	LogoutPath string
}

// Region renders the landing page of a guarded region. It must be mounted
// behind a gate.
func (a *App) Region(heading string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := gate.IdentityFrom(r.Context())
		if !ok {
			a.logger.ErrorContext(r.Context(), "region rendered without an authorized identity", "path", r.URL.Path)
			http.Redirect(w, r, a.paths.AccessDenied, http.StatusSeeOther)
			return
		}

		model := dashboardModel{
			Title:      heading,
			Heading:    heading,
			Identity:   identity,
			Regions:    a.links(),
			LogoutPath: a.paths.Logout,
		}
		a.render(w, r, http.StatusOK, "dashboard.html", model)
	}
}

func signedIn(reader session.Reader) *session.Identity {
	identity, ok := reader.Identity()
	if !ok {
		return nil
	}
	return &identity
}
