// Package testutil provides test environment setup and utilities for internal package tests.
package testutil

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"git.sr.ht/~jakintosh/sessiongate/internal/app"
	"git.sr.ht/~jakintosh/sessiongate/internal/database"
	"git.sr.ht/~jakintosh/sessiongate/internal/debug"
	"git.sr.ht/~jakintosh/sessiongate/internal/routing"
	"git.sr.ht/~jakintosh/sessiongate/pkg/client"
	"git.sr.ht/~jakintosh/sessiongate/pkg/gate"
	"git.sr.ht/~jakintosh/sessiongate/pkg/providertest"
	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

// TestEnv provides all dependencies needed for testing
type TestEnv struct {
	DB       *database.SQLiteStore
	Provider *providertest.Server
	Registry *gate.Registry
	Client   *client.Client
	Router   http.Handler
	Server   *httptest.Server
}

// EnvOptions adjusts SetupTestEnv
type EnvOptions struct {
	Users   []providertest.User
	Policy  gate.Policy
	Limiter *routing.RateLimiter
}

// SetupTestEnv creates an isolated environment with in-memory SQLite, a
// fake provider, and the full router served on a local listener
func SetupTestEnv(
	t *testing.T,
	opts EnvOptions,
) *TestEnv {
	t.Helper()

	db := database.NewSQLiteStore(":memory:")
	provider := providertest.NewServer(opts.Users...)

	// the redirect URL has to be known before the router exists
	var router http.Handler
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	observer := session.LogObserver{Logger: logger}
	registry := gate.NewRegistry(db, observer, gate.CookieOptions{}, logger)
	c := client.New(client.Config{
		ProviderURL: provider.URL,
		ClientID:    "sessiongate-test",
		RedirectURL: server.URL + routing.PathCallback,
		Logger:      logger,
	})
	pages, err := app.New(app.Paths{
		Home:         routing.PathHome,
		LoginStart:   routing.PathLoginStart,
		Logout:       routing.PathLogout,
		AccessDenied: routing.PathAccessDenied,
	}, routing.Links(nil), logger)
	if err != nil {
		t.Fatalf("failed to build pages: %v", err)
	}

	router = routing.BuildRouter(routing.Options{
		Registry: registry,
		Callback: &client.Callback{
			Provider:    c,
			States:      client.NewStateStore(time.Minute),
			Sessions:    registry,
			SuccessPath: routing.PathHome,
			LoginPath:   routing.PathLogin,
			Logger:      logger,
		},
		Logout: &gate.Logout{
			Provider:  c,
			LoginPath: routing.PathLogin,
			Logger:    logger,
		},
		Pages:     pages,
		Policy:    opts.Policy,
		Limiter:   opts.Limiter,
		Inspector: &debug.Inspector{Gate: &gate.Gate{Region: "admin", Policy: opts.Policy}, Logger: logger},
		Observer:  observer,
		Logger:    logger,
	})

	// setup cleanup
	t.Cleanup(func() {
		server.Close()
		provider.Close()
		_ = db.Close()
	})

	return &TestEnv{
		DB:       db,
		Provider: provider,
		Registry: registry,
		Client:   c,
		Router:   router,
		Server:   server,
	}
}

// UnlimitedRate is a limiter that never rejects
func UnlimitedRate() *routing.RateLimiter {
	return routing.NewRateLimiter(rate.Inf, 1)
}

// Browser is one tab of a browser talking to a TestEnv server
type Browser struct {
	env    *TestEnv
	client *http.Client
}

// NewBrowser opens a tab in a fresh browser profile
func (env *TestEnv) NewBrowser(
	t *testing.T,
) *Browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	return &Browser{
		env:    env,
		client: &http.Client{Jar: jar},
	}
}

// NewTab opens another tab of the same browser profile. It shares the
// profile cookie but not the tab cookie.
func (b *Browser) NewTab(
	t *testing.T,
) *Browser {
	t.Helper()
	tab := b.env.NewBrowser(t)
	u, _ := url.Parse(b.env.Server.URL)
	var shared []*http.Cookie
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == gate.DefaultProfileCookie {
			shared = append(shared, c)
		}
	}
	tab.client.Jar.SetCookies(u, shared)
	return tab
}

// Page is where a navigation ended after following redirects
type Page struct {
	Code int
	Path string
	Body string
}

// Get navigates to path, following redirects
func (b *Browser) Get(
	t *testing.T,
	path string,
) Page {
	t.Helper()
	return b.do(t, http.MethodGet, path)
}

// Post submits an empty form to path, following redirects
func (b *Browser) Post(
	t *testing.T,
	path string,
) Page {
	t.Helper()
	return b.do(t, http.MethodPost, path)
}

// Login walks the provider login flow and returns the landing page
func (b *Browser) Login(
	t *testing.T,
) Page {
	t.Helper()
	return b.Get(t, routing.PathLoginStart)
}

func (b *Browser) do(
	t *testing.T,
	method string,
	path string,
) Page {
	t.Helper()
	target := path
	if u, err := url.Parse(path); err == nil && u.Host == "" {
		target = b.env.Server.URL + path
	}
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	res, err := b.client.Do(req)
	if err != nil {
		t.Fatalf("request to %s failed: %v", path, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return Page{
		Code: res.StatusCode,
		Path: res.Request.URL.Path,
		Body: string(body),
	}
}
