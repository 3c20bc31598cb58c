package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.sr.ht/~jakintosh/sessiongate/pkg/client"
	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

var ErrNoWorkspace = errors.New("no workspace for request")

const (
	DefaultTabCookie     = "sg_tab"
	DefaultProfileCookie = "sg_profile"
	profileCookieMaxAge  = 365 * 24 * 60 * 60
)

// DurableTiers hands out the durable tier of a browser profile.
type DurableTiers interface {
	Scope(profile string) session.Tier
}

// TabTiers hands out the ephemeral tier of a tab. When the DurableTiers
// given to NewRegistry also implement TabTiers, a tab's session outlives its
// workspace: a swept tab or a restarted server rehydrates it on the next
// request. Otherwise each workspace keeps its tier in memory.
type TabTiers interface {
	TabScope(tab string) session.Tier
	// MarkSeen records activity of tab.
	MarkSeen(tab string, at time.Time) error
	// ExpireTabs drops the tiers of tabs not seen since before.
	ExpireTabs(before time.Time) (int, error)
}

// Workspace is everything one tab owns: its session store, the bootstrap
// that hydrates it, and the logout in-flight flag.
type Workspace struct {
	TabID     string
	ProfileID string
	Store     *session.Store
	Bootstrap *Bootstrap

	loggingOut atomic.Bool
	lastSeen   atomic.Int64
}

func (ws *Workspace) touch(now time.Time) {
	ws.lastSeen.Store(now.UnixNano())
}

// CookieOptions controls the tab and profile cookies.
type CookieOptions struct {
	TabName     string
	ProfileName string
	Secure      bool
	SameSite    http.SameSite
	Path        string
}

func (o CookieOptions) withDefaults() CookieOptions {
	if o.TabName == "" {
		o.TabName = DefaultTabCookie
	}
	if o.ProfileName == "" {
		o.ProfileName = DefaultProfileCookie
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	if o.Path == "" {
		o.Path = "/"
	}
	return o
}

// Registry maps tab cookies to workspaces. The tab cookie is a session
// cookie, so closing the browser abandons the ephemeral tier; the profile
// cookie persists and scopes the durable tier.
type Registry struct {
	durable  DurableTiers
	tabTiers TabTiers
	observer session.Observer
	cookies  CookieOptions
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	tabs map[string]*Workspace
}

var _ client.StoreResolver = (*Registry)(nil)

func NewRegistry(
	durable DurableTiers,
	observer session.Observer,
	cookies CookieOptions,
	logger *slog.Logger,
) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	tabTiers, _ := durable.(TabTiers)
	return &Registry{
		durable:  durable,
		tabTiers: tabTiers,
		observer: observer,
		cookies:  cookies.withDefaults(),
		logger:   logger,
		now:      time.Now,
		tabs:     make(map[string]*Workspace),
	}
}

// Resolve returns the workspace of the tab that sent r, creating the tab and
// profile ids (and their cookies) when absent.
func (reg *Registry) Resolve(
	w http.ResponseWriter,
	r *http.Request,
) *Workspace {
	if ws, ok := WorkspaceFrom(r.Context()); ok {
		return ws
	}

	profileID := reg.readCookie(r, reg.cookies.ProfileName)
	if profileID == "" {
		profileID = uuid.NewString()
		reg.writeCookie(w, reg.cookies.ProfileName, profileID, profileCookieMaxAge)
	}
	tabID := reg.readCookie(r, reg.cookies.TabName)
	if tabID == "" {
		tabID = uuid.NewString()
		reg.writeCookie(w, reg.cookies.TabName, tabID, 0)
	}

	now := reg.now()

	reg.mu.Lock()
	ws, ok := reg.tabs[tabID]
	created := !ok || ws.ProfileID != profileID
	if created {
		ws = reg.newWorkspace(tabID, profileID)
		reg.tabs[tabID] = ws
	}
	ws.touch(now)
	reg.mu.Unlock()

	if created {
		reg.markSeen(tabID, now)
	}
	return ws
}

// StoreFor resolves the store of the tab that sent r, bootstrapped.
func (reg *Registry) StoreFor(
	w http.ResponseWriter,
	r *http.Request,
) (*session.Store, string, error) {
	ws := reg.Resolve(w, r)
	ws.Bootstrap.Run()
	return ws.Store, ws.TabID, nil
}

// Middleware resolves the workspace, runs its bootstrap, and places it in
// the request context. It runs on every route so the first request of a tab
// triggers the bootstrap regardless of where it lands.
func (reg *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws := reg.Resolve(w, r)
		if err := ws.Bootstrap.Run(); err != nil && reg.logger.Enabled(r.Context(), slog.LevelDebug) {
			reg.logger.DebugContext(r.Context(), "bootstrap found no session", "tab", ws.TabID, "reason", err)
		}
		next.ServeHTTP(w, r.WithContext(withWorkspace(r.Context(), ws)))
	})
}

// Len reports how many tab workspaces are live.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.tabs)
}

// Sweep drops workspaces not seen for idle and returns how many were
// dropped. Persistent tab tiers are kept; see [Registry.Expire].
func (reg *Registry) Sweep(idle time.Duration) int {
	cutoff := reg.now().Add(-idle).UnixNano()

	reg.mu.Lock()
	seen := make(map[string]int64, len(reg.tabs))
	dropped := 0
	for id, ws := range reg.tabs {
		last := ws.lastSeen.Load()
		seen[id] = last
		if last < cutoff && !ws.loggingOut.Load() {
			delete(reg.tabs, id)
			dropped++
		}
	}
	reg.mu.Unlock()

	for id, last := range seen {
		reg.markSeen(id, time.Unix(0, last))
	}
	return dropped
}

// Expire drops the persistent tiers of tabs whose recorded activity is older
// than idle. Activity is recorded when a workspace is created and on every
// Sweep. It returns how many tabs were expired.
func (reg *Registry) Expire(idle time.Duration) (int, error) {
	if reg.tabTiers == nil {
		return 0, nil
	}
	return reg.tabTiers.ExpireTabs(reg.now().Add(-idle))
}

// Run sweeps idle workspaces every interval until ctx ends.
func (reg *Registry) Run(
	ctx context.Context,
	interval time.Duration,
	idle time.Duration,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := reg.Sweep(idle); n > 0 {
				reg.logger.Info("dropped idle tabs", "count", n)
			}
			n, err := reg.Expire(idle)
			if err != nil {
				reg.logger.Warn("couldn't expire tab sessions", "error", err)
			} else if n > 0 {
				reg.logger.Info("expired tab sessions", "count", n)
			}
		}
	}
}

func (reg *Registry) newWorkspace(
	tabID string,
	profileID string,
) *Workspace {
	var ephemeral session.Tier = session.NewMemory()
	if reg.tabTiers != nil {
		ephemeral = reg.tabTiers.TabScope(tabID)
	}
	store := session.NewStore(ephemeral, reg.durable.Scope(profileID), reg.observer)
	return &Workspace{
		TabID:     tabID,
		ProfileID: profileID,
		Store:     store,
		Bootstrap: NewBootstrap(store),
	}
}

func (reg *Registry) markSeen(tab string, at time.Time) {
	if reg.tabTiers == nil {
		return
	}
	if err := reg.tabTiers.MarkSeen(tab, at); err != nil {
		reg.logger.Warn("couldn't record tab activity", "tab", tab, "error", err)
	}
}

func (reg *Registry) readCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

func (reg *Registry) writeCookie(
	w http.ResponseWriter,
	name string,
	value string,
	maxAge int,
) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     reg.cookies.Path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   reg.cookies.Secure,
		SameSite: reg.cookies.SameSite,
	})
}
