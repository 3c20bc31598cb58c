// Package routing assembles the HTTP surface of the gate.
package routing

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"git.sr.ht/~jakintosh/sessiongate/internal/app"
	"git.sr.ht/~jakintosh/sessiongate/internal/debug"
	"git.sr.ht/~jakintosh/sessiongate/pkg/client"
	"git.sr.ht/~jakintosh/sessiongate/pkg/gate"
	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

const (
	PathHome         = "/admin"
	PathLogin        = "/login"
	PathLoginStart   = "/login/start"
	PathCallback     = "/callback"
	PathLogout       = "/logout"
	PathAccessDenied = "/access-denied"
)

// Region is a guarded area mounted under PathHome.
type Region struct {
	Name    string
	Path    string
	Heading string
}

// DefaultRegions are the guarded areas of the site.
var DefaultRegions = []Region{
	{Name: "admin", Path: PathHome, Heading: "Dashboard"},
	{Name: "pages", Path: PathHome + "/pages", Heading: "Pages"},
	{Name: "users", Path: PathHome + "/users", Heading: "Users"},
}

type Options struct {
	Registry *gate.Registry
	Callback *client.Callback
	Logout   *gate.Logout
	Pages    *app.App
	Policy   gate.Policy
	Regions  []Region
	// Limiter guards the login, callback and logout routes when set.
	Limiter *RateLimiter
	// Inspector mounts the debug routes when set.
	Inspector *debug.Inspector
	Observer  session.Observer
	Logger    *slog.Logger
}

// BuildRouter returns the full handler. The callback interceptor and the
// workspace middleware wrap the router itself, so they also run for
// requests no route matches.
func BuildRouter(opts Options) http.Handler {
	regions := opts.Regions
	if regions == nil {
		regions = DefaultRegions
	}
	limit := func(h http.Handler) http.Handler {
		if opts.Limiter == nil {
			return h
		}
		return opts.Limiter.Middleware(h)
	}

	r := mux.NewRouter()
	r.Handle("/", http.RedirectHandler(PathHome, http.StatusSeeOther)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	// public routes
	r.Handle(PathLogin, opts.Pages.Login()).Methods(http.MethodGet)
	r.Handle(PathLoginStart, limit(opts.Callback.LoginStart())).Methods(http.MethodGet)
	r.Handle(PathCallback, limit(opts.Callback)).Methods(http.MethodGet)
	r.Handle(PathLogout, limit(opts.Logout)).Methods(http.MethodPost)
	r.Handle(PathAccessDenied, opts.Pages.AccessDenied()).Methods(http.MethodGet)

	// guarded regions
	for _, region := range regions {
		g := &gate.Gate{
			Region:     region.Name,
			Policy:     opts.Policy,
			LoginPath:  PathLogin,
			DeniedPath: PathAccessDenied,
			Observer:   opts.Observer,
			Logger:     opts.Logger,
		}
		r.Handle(region.Path, g.Middleware(opts.Pages.Region(region.Heading))).Methods(http.MethodGet)
	}

	if opts.Inspector != nil {
		s := r.PathPrefix("/debug/session").Subrouter()
		s.HandleFunc("", opts.Inspector.Session).Methods(http.MethodGet)
		s.HandleFunc("/clear", opts.Inspector.Clear).Methods(http.MethodPost)
		s.HandleFunc("/navigate", opts.Inspector.Navigate).Methods(http.MethodGet)
	}

	interceptor := gate.Interceptor{CallbackPath: PathCallback, Logger: opts.Logger}
	return interceptor.Middleware(opts.Registry.Middleware(r))
}

// Links lists regions for the dashboard navigation.
func Links(regions []Region) func() []app.Link {
	if regions == nil {
		regions = DefaultRegions
	}
	return func() []app.Link {
		links := make([]app.Link, 0, len(regions))
		for _, region := range regions {
			links = append(links, app.Link{Path: region.Path, Display: region.Heading})
		}
		return links
	}
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
