package client

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// StateStore issues single-use OAuth state values bound to the tab that
// started the login. A state can be consumed once, before it expires, and
// only by its owner; a replayed callback carries a state that is no longer
// known.
type StateStore struct {
	mu      sync.Mutex
	pending map[string]pendingState
	ttl     time.Duration
	now     func() time.Time
}

type pendingState struct {
	owner     string
	expiresAt time.Time
}

func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{
		pending: make(map[string]pendingState),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue creates and remembers a new state value for owner.
func (s *StateStore) Issue(owner string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	state := uuid.NewString()
	s.pending[state] = pendingState{
		owner:     owner,
		expiresAt: s.now().Add(s.ttl),
	}
	return state
}

// Consume reports whether state was issued to owner and not yet consumed or
// expired. A known state is forgotten either way, so one presented by the
// wrong owner can no longer be used by anyone.
func (s *StateStore) Consume(
	state string,
	owner string,
) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, found := s.pending[state]
	if !found {
		return false
	}
	delete(s.pending, state)
	if owner == "" || pending.owner != owner {
		return false
	}
	return s.now().Before(pending.expiresAt)
}

// Pending returns the number of outstanding states.
func (s *StateStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	return len(s.pending)
}

func (s *StateStore) sweep() {
	now := s.now()
	for state, pending := range s.pending {
		if now.After(pending.expiresAt) {
			delete(s.pending, state)
		}
	}
}
