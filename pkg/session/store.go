package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Snapshot is the durable projection of a session. It never carries token
// material.
type Snapshot struct {
	User            *Identity `json:"user"`
	IsAuthenticated bool      `json:"isAuthenticated"`
}

// Reader is the read-only view of a session handed to collaborators that
// only need attribution.
type Reader interface {
	Identity() (Identity, bool)
}

// Store is the single source of truth for the identity and credential of
// one tab. All methods are safe for concurrent use; operations on one Store
// are serialized.
type Store struct {
	mu        sync.Mutex
	ephemeral Tier
	durable   Tier
	observer  Observer

	credential    *Credential
	identity      *Identity
	authenticated bool
}

var _ Reader = (*Store)(nil)

func NewStore(
	ephemeral Tier,
	durable Tier,
	observer Observer,
) *Store {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Store{
		ephemeral: ephemeral,
		durable:   durable,
		observer:  observer,
	}
}

// SetTokens stores a credential without an identity. Any identity of an
// earlier login is dropped from memory and from the ephemeral tier, since it
// does not belong to the new credential. The store reports itself
// authenticated afterwards; this is the intermediate state of a multi-step
// login and does not pass an authorization check on its own. An empty
// refresh token removes any stored one. On a storage failure the store is
// left signed out.
func (s *Store) SetTokens(
	accessToken string,
	refreshToken string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	for _, key := range []string{KeyUserInfo, KeyUserProfile} {
		if err := s.remove(s.ephemeral, key); err != nil {
			s.reset()
			s.observer.Observe("set tokens", err)
			return err
		}
	}
	if err := s.writeCredential(accessToken, refreshToken); err != nil {
		s.reset()
		s.observer.Observe("set tokens", err)
		return err
	}

	s.credential = &Credential{AccessToken: accessToken, RefreshToken: refreshToken}
	s.authenticated = true

	if err := s.writeSnapshot(); err != nil {
		s.observer.Observe("set tokens", err)
		return err
	}
	s.observer.Observe("set tokens", nil, "has_identity", s.identity != nil)
	return nil
}

// SetOAuthData completes authentication. It persists the credential and the
// provider records to the ephemeral tier, the snapshot to the durable tier,
// and only then publishes the new identity. A refresh token stored by an
// earlier SetTokens call is kept.
func (s *Store) SetOAuthData(
	accessToken string,
	info UserInfo,
	profile *UserProfile,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	infoJSON, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("couldn't encode user info: %w", err)
	}
	var profileJSON []byte
	if profile != nil {
		if profileJSON, err = json.Marshal(profile); err != nil {
			return fmt.Errorf("couldn't encode user profile: %w", err)
		}
	}

	refreshToken := ""
	if s.credential != nil {
		refreshToken = s.credential.RefreshToken
	}
	if err := s.writeCredential(accessToken, refreshToken); err != nil {
		s.observer.Observe("set oauth data", err)
		return err
	}
	if err := s.set(s.ephemeral, KeyUserInfo, string(infoJSON)); err != nil {
		s.observer.Observe("set oauth data", err)
		return err
	}
	if profileJSON != nil {
		err = s.set(s.ephemeral, KeyUserProfile, string(profileJSON))
	} else {
		err = s.remove(s.ephemeral, KeyUserProfile)
	}
	if err != nil {
		s.observer.Observe("set oauth data", err)
		return err
	}

	identity := newIdentity(info, profile)
	s.credential = &Credential{AccessToken: accessToken, RefreshToken: refreshToken}
	s.identity = &identity
	s.authenticated = true

	if err := s.writeSnapshot(); err != nil {
		s.observer.Observe("set oauth data", err)
		return err
	}
	s.observer.Observe("set oauth data", nil, "uid", identity.UID, "role", string(identity.Role))
	return nil
}

// InitializeFromOAuth rebuilds the in-process state from the ephemeral tier
// without any network access. It is idempotent. When the tier is empty or
// only half populated the store is left unauthenticated and the stale
// entries are not touched; the returned error says which case applied.
func (s *Store) InitializeFromOAuth() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credential, identity, err := s.readEphemeral()
	if err != nil {
		s.reset()
		s.observer.Observe("initialize", err)
		return err
	}

	s.credential = credential
	s.identity = identity
	s.authenticated = true
	s.observer.Observe("initialize", nil, "uid", identity.UID)
	return nil
}

// ClearAuth removes the credential and identity from memory and from both
// tiers. Clearing an already clear store is not an error. Every key is
// attempted even if an earlier removal fails.
func (s *Store) ClearAuth() error {
	return s.clear("clear", true)
}

// ClearLocal is ClearAuth without touching the durable tier. It evicts a tab
// whose durable record now belongs to a session started elsewhere.
func (s *Store) ClearLocal() error {
	return s.clear("clear local", false)
}

func (s *Store) clear(op string, durable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()

	var errs []error
	for _, key := range EphemeralKeys {
		if err := s.ephemeral.Remove(key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	if durable {
		if err := s.durable.Remove(KeySnapshot); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", KeySnapshot, err))
		}
	}

	if len(errs) > 0 {
		err := fmt.Errorf("%w: %w", ErrStorageUnavailable, errors.Join(errs...))
		s.observer.Observe(op, err)
		return err
	}
	s.observer.Observe(op, nil)
	return nil
}

// Identity returns a copy of the current identity.
func (s *Store) Identity() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Credential returns a copy of the current credential.
func (s *Store) Credential() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.credential == nil {
		return Credential{}, false
	}
	return *s.credential, true
}

func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.authenticated
}

// Snapshot reads the durable record. A missing record is reported as a zero
// Snapshot and found == false.
func (s *Store) Snapshot() (Snapshot, bool, error) {
	value, found, err := s.durable.Get(KeySnapshot)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if !found {
		return Snapshot{}, false, nil
	}

	var snapshot Snapshot
	if err := json.Unmarshal([]byte(value), &snapshot); err != nil {
		return Snapshot{}, true, fmt.Errorf("%w: couldn't decode snapshot: %v", ErrInconsistentSession, err)
	}
	return snapshot, true, nil
}

// Contents is the raw content of both tiers.
type Contents struct {
	Ephemeral map[string]string `json:"ephemeral"`
	Durable   map[string]string `json:"durable"`
}

// Dump returns the raw content of both tiers for inspection.
func (s *Store) Dump() (Contents, error) {
	contents := Contents{
		Ephemeral: make(map[string]string),
		Durable:   make(map[string]string),
	}
	for _, key := range EphemeralKeys {
		value, found, err := s.ephemeral.Get(key)
		if err != nil {
			return contents, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		if found {
			contents.Ephemeral[key] = value
		}
	}
	value, found, err := s.durable.Get(KeySnapshot)
	if err != nil {
		return contents, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if found {
		contents.Durable[KeySnapshot] = value
	}
	return contents, nil
}

func (s *Store) readEphemeral() (
	*Credential,
	*Identity,
	error,
) {
	accessToken, hasToken, err := s.get(KeyAccessToken)
	if err != nil {
		return nil, nil, err
	}
	infoJSON, hasInfo, err := s.get(KeyUserInfo)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case !hasToken && !hasInfo:
		return nil, nil, ErrMissingCredential
	case !hasToken:
		return nil, nil, fmt.Errorf("%w: user info without access token", ErrInconsistentSession)
	case !hasInfo:
		return nil, nil, fmt.Errorf("%w: access token without user info", ErrInconsistentSession)
	}

	var info UserInfo
	if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
		return nil, nil, fmt.Errorf("%w: couldn't decode user info: %v", ErrInconsistentSession, err)
	}

	var profile *UserProfile
	profileJSON, hasProfile, err := s.get(KeyUserProfile)
	if err != nil {
		return nil, nil, err
	}
	if hasProfile {
		profile = new(UserProfile)
		if err := json.Unmarshal([]byte(profileJSON), profile); err != nil {
			return nil, nil, fmt.Errorf("%w: couldn't decode user profile: %v", ErrInconsistentSession, err)
		}
	}

	refreshToken, _, err := s.get(KeyRefreshToken)
	if err != nil {
		return nil, nil, err
	}

	identity := newIdentity(info, profile)
	credential := &Credential{AccessToken: accessToken, RefreshToken: refreshToken}
	return credential, &identity, nil
}

// get reads the ephemeral tier. A read failure counts as an inconsistent
// session.
func (s *Store) get(key string) (string, bool, error) {
	value, found, err := s.ephemeral.Get(key)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w: read %s: %v", ErrInconsistentSession, ErrStorageUnavailable, key, err)
	}
	if found && value == "" {
		found = false
	}
	return value, found, nil
}

func (s *Store) writeCredential(
	accessToken string,
	refreshToken string,
) error {
	if err := s.set(s.ephemeral, KeyAccessToken, accessToken); err != nil {
		return err
	}
	if refreshToken == "" {
		return s.remove(s.ephemeral, KeyRefreshToken)
	}
	return s.set(s.ephemeral, KeyRefreshToken, refreshToken)
}

func (s *Store) writeSnapshot() error {
	snapshot := Snapshot{
		User:            s.identity,
		IsAuthenticated: s.authenticated,
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("couldn't encode snapshot: %w", err)
	}
	return s.set(s.durable, KeySnapshot, string(data))
}

func (s *Store) set(tier Tier, key string, value string) error {
	if err := tier.Set(key, value); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorageUnavailable, key, err)
	}
	return nil
}

func (s *Store) remove(tier Tier, key string) error {
	if err := tier.Remove(key); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrStorageUnavailable, key, err)
	}
	return nil
}

func (s *Store) reset() {
	s.credential = nil
	s.identity = nil
	s.authenticated = false
}
