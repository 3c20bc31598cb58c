package gate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~jakintosh/sessiongate/pkg/gate"
	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

// profiles is an in-memory stand-in for the sqlite durable tier.
type profiles struct {
	mu    sync.Mutex
	tiers map[string]*session.Memory
}

func newProfiles() *profiles {
	return &profiles{tiers: make(map[string]*session.Memory)}
}

func (p *profiles) Scope(profile string) session.Tier {
	p.mu.Lock()
	defer p.mu.Unlock()

	tier, ok := p.tiers[profile]
	if !ok {
		tier = session.NewMemory()
		p.tiers[profile] = tier
	}
	return tier
}

// browser holds the cookies of one tab.
type browser struct {
	tab     string
	profile string
}

func newBrowser() browser {
	return browser{tab: uuid.NewString(), profile: uuid.NewString()}
}

// newTab opens another tab of the same browser profile.
func (b browser) newTab() browser {
	return browser{tab: uuid.NewString(), profile: b.profile}
}

func (b browser) request(method, target string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.AddCookie(&http.Cookie{Name: gate.DefaultTabCookie, Value: b.tab})
	r.AddCookie(&http.Cookie{Name: gate.DefaultProfileCookie, Value: b.profile})
	return r
}

func setupRegistry(t *testing.T) (*gate.Registry, *profiles) {
	t.Helper()
	durable := newProfiles()
	return gate.NewRegistry(durable, nil, gate.CookieOptions{}, nil), durable
}

func workspaceOf(reg *gate.Registry, b browser) *gate.Workspace {
	return reg.Resolve(httptest.NewRecorder(), b.request(http.MethodGet, "/"))
}

func signIn(
	t *testing.T,
	store *session.Store,
	uid string,
	role session.Role,
) {
	t.Helper()
	require.NoError(t, store.SetTokens("access-"+uid, "refresh-"+uid))
	require.NoError(t, store.SetOAuthData("access-"+uid, session.UserInfo{
		UID:      uid,
		Email:    uid + "@example.com",
		Username: uid,
		Role:     role,
	}, nil))
}

// recordingObserver keeps every event it is sent.
type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) Observe(op string, err error, attrs ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i] == "to" {
			op += ":" + attrs[i+1].(string)
		}
	}
	o.events = append(o.events, op)
}

func (o *recordingObserver) Events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

// fakeSignOut records provider sign-out calls. When block is set, each
// call signals entered and waits for block to close.
type fakeSignOut struct {
	mu      sync.Mutex
	calls   []session.Credential
	err     error
	entered chan struct{}
	block   chan struct{}
}

func (f *fakeSignOut) SignOut(ctx context.Context, credential session.Credential) error {
	f.mu.Lock()
	f.calls = append(f.calls, credential)
	f.mu.Unlock()

	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	return f.err
}

func (f *fakeSignOut) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("protected"))
})
