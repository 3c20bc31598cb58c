package session

import "sync"

// Keys of the ephemeral tier.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserInfo     = "user_info"
	KeyUserProfile  = "user_profile"
)

// KeySnapshot is the single key of the durable tier.
const KeySnapshot = "auth-storage"

// EphemeralKeys lists every key the store writes to the ephemeral tier.
var EphemeralKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyUserInfo,
	KeyUserProfile,
}

// Tier is a synchronous string key/value storage tier. Removing a missing
// key is not an error.
type Tier interface {
	Get(key string) (value string, found bool, err error)
	Set(key string, value string) error
	Remove(key string) error
}

// Memory is an in-process Tier. It backs the ephemeral tier of a tab.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, found := m.values[key]
	return value, found, nil
}

func (m *Memory) Set(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.values)
}
