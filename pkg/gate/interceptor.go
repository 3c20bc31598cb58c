package gate

import (
	"log/slog"
	"net/http"
	"net/url"
)

// Interceptor forwards provider callbacks that land on any route other than
// the canonical callback route. The presence of both `code` and `state` is
// the only signal used; validating them is the callback route's job, so a
// stale URL is forwarded too.
type Interceptor struct {
	CallbackPath string
	Logger       *slog.Logger
}

// ForwardURL returns the callback URL for r and true when r carries
// callback parameters on a non-canonical route.
func (i Interceptor) ForwardURL(r *http.Request) (string, bool) {
	if r.URL.Path == i.CallbackPath {
		return "", false
	}

	q := r.URL.Query()
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		return "", false
	}

	forward := url.Values{}
	forward.Set("code", code)
	forward.Set("state", state)
	return i.CallbackPath + "?" + forward.Encode(), true
}

func (i Interceptor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, ok := i.ForwardURL(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if i.Logger != nil {
			i.Logger.InfoContext(r.Context(), "forwarding provider callback", "from", r.URL.Path, "to", i.CallbackPath)
		}
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}
