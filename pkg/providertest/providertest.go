// Package providertest runs a fake OAuth-style identity provider for tests
// and local development.
//
// The fake implements the endpoints the client package calls:
//
//	GET  /oauth/authorize   issues a code and redirects to redirect_uri
//	POST /oauth/token       trades a code for tokens (single use)
//	GET  /oauth/userinfo    returns the user record for a bearer token
//	GET  /api/profile       returns the profile, or 404 when there is none
//	POST /oauth/logout      ends the session, or fails on demand
package providertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// User is an account known to the fake provider.
type User struct {
	Info    session.UserInfo
	Profile *session.UserProfile
}

// Provider is a fake identity provider.
type Provider struct {
	mu           sync.Mutex
	users        []User
	codes        map[string]User
	tokens       map[string]User
	signOuts     int
	failSignOut  bool
	redirectPath string
}

func New(users ...User) *Provider {
	return &Provider{
		users:  users,
		codes:  make(map[string]User),
		tokens: make(map[string]User),
	}
}

// Server is a running fake provider.
type Server struct {
	*Provider
	*httptest.Server
}

// NewServer starts a fake provider on a local listener. Call Close when
// done.
func NewServer(users ...User) *Server {
	p := New(users...)
	return &Server{
		Provider: p,
		Server:   httptest.NewServer(p.Handler()),
	}
}

// AddUser registers an account.
func (p *Provider) AddUser(u User) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.users = append(p.users, u)
}

// IssueCode returns a fresh single-use authorization code for u.
func (p *Provider) IssueCode(u User) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	code := uuid.NewString()
	p.codes[code] = u
	return code
}

// FailSignOut makes the logout endpoint answer 502 while fail is true.
func (p *Provider) FailSignOut(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failSignOut = fail
}

// RedirectPath makes the authorize endpoint send the browser to path on the
// redirect_uri host instead of the redirect_uri path, the way a provider
// with stale configuration would.
func (p *Provider) RedirectPath(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.redirectPath = path
}

// SignOuts returns how many logout calls succeeded.
func (p *Provider) SignOuts() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.signOuts
}

func (p *Provider) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/oauth/authorize", p.authorize).Methods(http.MethodGet)
	r.HandleFunc("/oauth/token", p.token).Methods(http.MethodPost)
	r.HandleFunc("/oauth/userinfo", p.userInfo).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", p.profile).Methods(http.MethodGet)
	r.HandleFunc("/oauth/logout", p.logout).Methods(http.MethodPost)
	return r
}

func (p *Provider) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || redirect.Host == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	user, ok := p.lookupUser(q.Get("login_hint"))
	if !ok {
		http.Error(w, "no such user", http.StatusNotFound)
		return
	}
	code := p.IssueCode(user)

	p.mu.Lock()
	if p.redirectPath != "" {
		redirect.Path = p.redirectPath
	}
	p.mu.Unlock()

	params := redirect.Query()
	params.Set("code", code)
	params.Set("state", q.Get("state"))
	redirect.RawQuery = params.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	code := r.PostForm.Get("code")

	p.mu.Lock()
	user, ok := p.codes[code]
	delete(p.codes, code)
	var access string
	if ok {
		access = uuid.NewString()
		p.tokens[access] = user
	}
	p.mu.Unlock()

	if !ok {
		http.Error(w, "invalid_grant", http.StatusBadRequest)
		return
	}

	returnJson(w, map[string]any{
		"access_token":  access,
		"refresh_token": uuid.NewString(),
		"token_type":    "Bearer",
		"expires_in":    1800,
	})
}

func (p *Provider) userInfo(w http.ResponseWriter, r *http.Request) {
	user, ok := p.bearer(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	returnJson(w, user.Info)
}

func (p *Provider) profile(w http.ResponseWriter, r *http.Request) {
	user, ok := p.bearer(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if user.Profile == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	returnJson(w, user.Profile)
}

func (p *Provider) logout(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failSignOut {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	access := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	delete(p.tokens, access)
	p.signOuts++
	w.WriteHeader(http.StatusOK)
}

func (p *Provider) bearer(r *http.Request) (User, bool) {
	access := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.tokens[access]
	return user, ok
}

func (p *Provider) lookupUser(hint string) (User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.users) == 0 {
		return User{}, false
	}
	if hint == "" {
		return p.users[0], true
	}
	for _, u := range p.users {
		if u.Info.Username == hint || u.Info.Email == hint {
			return u, true
		}
	}
	return User{}, false
}

func returnJson(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
