package session_test

import (
	"encoding/json"
	"errors"
	"testing"

	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingTier struct {
	*session.Memory
	failSet    bool
	failGet    bool
	failRemove bool
}

var errTier = errors.New("tier failure")

func (f *failingTier) Get(key string) (string, bool, error) {
	if f.failGet {
		return "", false, errTier
	}
	return f.Memory.Get(key)
}

func (f *failingTier) Set(key string, value string) error {
	if f.failSet {
		return errTier
	}
	return f.Memory.Set(key, value)
}

func (f *failingTier) Remove(key string) error {
	if f.failRemove {
		return errTier
	}
	return f.Memory.Remove(key)
}

func setupStore(t *testing.T) (*session.Store, *session.Memory, *session.Memory) {
	t.Helper()
	ephemeral := session.NewMemory()
	durable := session.NewMemory()
	return session.NewStore(ephemeral, durable, nil), ephemeral, durable
}

func adminInfo() session.UserInfo {
	return session.UserInfo{
		UID:      "u-1",
		Email:    "alice@example.com",
		Username: "alice",
		Role:     session.RoleAdmin,
	}
}

func TestSetOAuthData_PopulatesIdentity(t *testing.T) {
	t.Parallel()
	store, ephemeral, durable := setupStore(t)

	// completing authentication publishes a full identity
	err := store.SetOAuthData("access-1", adminInfo(), &session.UserProfile{FirstName: "Alice", LastName: "Liddell"})
	require.NoError(t, err)

	assert.True(t, store.IsAuthenticated())
	identity, ok := store.Identity()
	require.True(t, ok)
	assert.Equal(t, session.Identity{
		UID:   "u-1",
		Email: "alice@example.com",
		Name:  "Alice Liddell",
		Role:  session.RoleAdmin,
	}, identity)

	// token material lives in the ephemeral tier only
	token, found, _ := ephemeral.Get(session.KeyAccessToken)
	assert.True(t, found)
	assert.Equal(t, "access-1", token)
	_, found, _ = ephemeral.Get(session.KeyUserProfile)
	assert.True(t, found)

	raw, found, _ := durable.Get(session.KeySnapshot)
	require.True(t, found)
	assert.NotContains(t, raw, "access-1")

	var snapshot session.Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &snapshot))
	assert.True(t, snapshot.IsAuthenticated)
	require.NotNil(t, snapshot.User)
	assert.Equal(t, "u-1", snapshot.User.UID)
}

func TestSetOAuthData_Idempotent(t *testing.T) {
	t.Parallel()
	once, onceEphemeral, onceDurable := setupStore(t)
	twice, twiceEphemeral, twiceDurable := setupStore(t)

	// calling twice with the same inputs matches calling once
	require.NoError(t, once.SetOAuthData("access-1", adminInfo(), nil))
	require.NoError(t, twice.SetOAuthData("access-1", adminInfo(), nil))
	require.NoError(t, twice.SetOAuthData("access-1", adminInfo(), nil))

	onceIdentity, _ := once.Identity()
	twiceIdentity, _ := twice.Identity()
	assert.Equal(t, onceIdentity, twiceIdentity)
	assert.Equal(t, once.IsAuthenticated(), twice.IsAuthenticated())

	onceDump, err := once.Dump()
	require.NoError(t, err)
	twiceDump, err := twice.Dump()
	require.NoError(t, err)
	assert.Equal(t, onceDump, twiceDump)
	assert.Equal(t, onceEphemeral.Len(), twiceEphemeral.Len())
	assert.Equal(t, onceDurable.Len(), twiceDurable.Len())
}

func TestSetOAuthData_KeepsRefreshToken(t *testing.T) {
	t.Parallel()
	store, _, _ := setupStore(t)

	// tokens first, identity second
	require.NoError(t, store.SetTokens("access-1", "refresh-1"))
	require.NoError(t, store.SetOAuthData("access-1", adminInfo(), nil))

	credential, ok := store.Credential()
	require.True(t, ok)
	assert.Equal(t, "refresh-1", credential.RefreshToken)
}

func TestSetOAuthData_WriteFailureHidesIdentity(t *testing.T) {
	t.Parallel()
	ephemeral := &failingTier{Memory: session.NewMemory(), failSet: true}
	store := session.NewStore(ephemeral, session.NewMemory(), nil)

	// a failed write never publishes a partial identity
	err := store.SetOAuthData("access-1", adminInfo(), nil)
	assert.ErrorIs(t, err, session.ErrStorageUnavailable)
	_, ok := store.Identity()
	assert.False(t, ok)
	assert.False(t, store.IsAuthenticated())
}

func TestSetTokens_AuthenticatedWithoutIdentity(t *testing.T) {
	t.Parallel()
	store, ephemeral, _ := setupStore(t)

	// tokens alone flag the store authenticated
	require.NoError(t, store.SetTokens("access-1", ""))
	assert.True(t, store.IsAuthenticated())
	_, ok := store.Identity()
	assert.False(t, ok)

	// no refresh token is stored when none is given
	_, found, _ := ephemeral.Get(session.KeyRefreshToken)
	assert.False(t, found)
}

func TestSetTokens_DropsEarlierIdentity(t *testing.T) {
	t.Parallel()
	store, ephemeral, _ := setupStore(t)
	require.NoError(t, store.SetOAuthData("access-admin", adminInfo(), &session.UserProfile{FirstName: "A"}))

	// a second login's tokens never pair with the first login's identity
	require.NoError(t, store.SetTokens("access-other", ""))
	_, ok := store.Identity()
	assert.False(t, ok)
	credential, ok := store.Credential()
	require.True(t, ok)
	assert.Equal(t, "access-other", credential.AccessToken)

	_, found, _ := ephemeral.Get(session.KeyUserInfo)
	assert.False(t, found)
	_, found, _ = ephemeral.Get(session.KeyUserProfile)
	assert.False(t, found)

	// nor does a reload rebuild the old identity around the new token
	reloaded := session.NewStore(ephemeral, session.NewMemory(), nil)
	err := reloaded.InitializeFromOAuth()
	assert.ErrorIs(t, err, session.ErrInconsistentSession)
	_, ok = reloaded.Identity()
	assert.False(t, ok)
}

func TestInitializeFromOAuth_Rehydrates(t *testing.T) {
	t.Parallel()
	ephemeral := session.NewMemory()
	durable := session.NewMemory()

	// a previous store instance in the same tab logged in
	first := session.NewStore(ephemeral, durable, nil)
	require.NoError(t, first.SetTokens("access-1", "refresh-1"))
	require.NoError(t, first.SetOAuthData("access-1", adminInfo(), nil))

	// a reload rebuilds the same state from the ephemeral tier
	reloaded := session.NewStore(ephemeral, durable, nil)
	require.NoError(t, reloaded.InitializeFromOAuth())
	assert.True(t, reloaded.IsAuthenticated())

	identity, ok := reloaded.Identity()
	require.True(t, ok)
	assert.Equal(t, "alice", identity.Name)
	credential, ok := reloaded.Credential()
	require.True(t, ok)
	assert.Equal(t, session.Credential{AccessToken: "access-1", RefreshToken: "refresh-1"}, credential)

	// running it again changes nothing
	require.NoError(t, reloaded.InitializeFromOAuth())
	again, _ := reloaded.Identity()
	assert.Equal(t, identity, again)
}

func TestInitializeFromOAuth_Empty(t *testing.T) {
	t.Parallel()
	store, _, _ := setupStore(t)

	// nothing stored is a missing credential
	err := store.InitializeFromOAuth()
	assert.ErrorIs(t, err, session.ErrMissingCredential)
	assert.False(t, store.IsAuthenticated())
}

func TestInitializeFromOAuth_Inconsistent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		values map[string]string
	}{
		{"token without info", map[string]string{session.KeyAccessToken: "a"}},
		{"info without token", map[string]string{session.KeyUserInfo: `{"uid":"u-1"}`}},
		{"malformed info", map[string]string{session.KeyAccessToken: "a", session.KeyUserInfo: "{"}},
		{"malformed profile", map[string]string{
			session.KeyAccessToken: "a",
			session.KeyUserInfo:    `{"uid":"u-1"}`,
			session.KeyUserProfile: "[",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store, ephemeral, _ := setupStore(t)
			for k, v := range tc.values {
				require.NoError(t, ephemeral.Set(k, v))
			}

			// half-populated storage stays unauthenticated
			err := store.InitializeFromOAuth()
			assert.ErrorIs(t, err, session.ErrInconsistentSession)
			assert.False(t, store.IsAuthenticated())
			_, ok := store.Identity()
			assert.False(t, ok)

			// stale entries are left for an explicit clear
			assert.Equal(t, len(tc.values), ephemeral.Len())
		})
	}
}

func TestInitializeFromOAuth_StorageFailure(t *testing.T) {
	t.Parallel()
	ephemeral := &failingTier{Memory: session.NewMemory(), failGet: true}
	store := session.NewStore(ephemeral, session.NewMemory(), nil)

	// an unreadable tier is treated as an inconsistent session
	err := store.InitializeFromOAuth()
	assert.ErrorIs(t, err, session.ErrInconsistentSession)
	assert.ErrorIs(t, err, session.ErrStorageUnavailable)
	assert.False(t, store.IsAuthenticated())
}

func TestClearAuth_NoResurrection(t *testing.T) {
	t.Parallel()
	store, ephemeral, durable := setupStore(t)

	// setup
	require.NoError(t, store.SetTokens("access-1", "refresh-1"))
	require.NoError(t, store.SetOAuthData("access-1", adminInfo(), &session.UserProfile{FirstName: "A"}))

	// clear then initialize stays signed out
	require.NoError(t, store.ClearAuth())
	_ = store.InitializeFromOAuth()

	assert.False(t, store.IsAuthenticated())
	_, ok := store.Identity()
	assert.False(t, ok)
	_, ok = store.Credential()
	assert.False(t, ok)
	assert.Equal(t, 0, ephemeral.Len())
	assert.Equal(t, 0, durable.Len())
}

func TestClearAuth_Repeatable(t *testing.T) {
	t.Parallel()
	store, _, _ := setupStore(t)

	// clearing a clear store is fine, any number of times
	require.NoError(t, store.ClearAuth())
	require.NoError(t, store.ClearAuth())
}

func TestClearLocal_KeepsDurableRecord(t *testing.T) {
	t.Parallel()
	store, ephemeral, durable := setupStore(t)
	require.NoError(t, store.SetOAuthData("access-1", adminInfo(), nil))

	// the tab forgets its session but the profile's record stays
	require.NoError(t, store.ClearLocal())
	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, 0, ephemeral.Len())
	_, found, _ := durable.Get(session.KeySnapshot)
	assert.True(t, found)
}

func TestClearAuth_ResetsMemoryOnFailure(t *testing.T) {
	t.Parallel()
	ephemeral := &failingTier{Memory: session.NewMemory()}
	store := session.NewStore(ephemeral, session.NewMemory(), nil)
	require.NoError(t, store.SetOAuthData("access-1", adminInfo(), nil))

	// memory is cleared even when the tier refuses removals
	ephemeral.failRemove = true
	err := store.ClearAuth()
	assert.ErrorIs(t, err, session.ErrStorageUnavailable)
	assert.False(t, store.IsAuthenticated())
	_, ok := store.Identity()
	assert.False(t, ok)
}

func TestSnapshot_MissingAndMalformed(t *testing.T) {
	t.Parallel()
	store, _, durable := setupStore(t)

	// no record yet
	_, found, err := store.Snapshot()
	require.NoError(t, err)
	assert.False(t, found)

	// malformed record
	require.NoError(t, durable.Set(session.KeySnapshot, "not json"))
	_, found, err = store.Snapshot()
	assert.True(t, found)
	assert.ErrorIs(t, err, session.ErrInconsistentSession)
}

func TestSnapshot_AloneDoesNotAuthenticate(t *testing.T) {
	t.Parallel()
	store, _, durable := setupStore(t)

	// a durable record from an earlier tab does not restore a session
	require.NoError(t, durable.Set(session.KeySnapshot, `{"user":{"uid":"u-1","role":"admin"},"isAuthenticated":true}`))
	_ = store.InitializeFromOAuth()

	assert.False(t, store.IsAuthenticated())
	_, ok := store.Identity()
	assert.False(t, ok)
}
