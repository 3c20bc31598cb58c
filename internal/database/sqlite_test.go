package database_test

import (
	"testing"

	"git.sr.ht/~jakintosh/sessiongate/internal/database"
)

func setupStore(t *testing.T) *database.SQLiteStore {
	t.Helper()
	store := database.NewSQLiteStore(":memory:")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	t.Parallel()
	store := setupStore(t)

	// in-memory store is created successfully
	if store == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestNewSQLiteStore_CreatesSchema(t *testing.T) {
	t.Parallel()
	store := setupStore(t)

	// schema is created - write and read back works
	tier := store.Scope("profile-1")
	if err := tier.Set("auth-storage", `{"isAuthenticated":false}`); err != nil {
		t.Fatalf("schema not created - Set failed: %v", err)
	}

	value, found, err := tier.Get("auth-storage")
	if err != nil {
		t.Fatalf("schema not created - Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected value to be found")
	}
	if value != `{"isAuthenticated":false}` {
		t.Errorf("unexpected value: %s", value)
	}
}

func TestSQLiteStore_Close(t *testing.T) {
	t.Parallel()
	store := database.NewSQLiteStore(":memory:")

	// closing store succeeds without error
	if err := store.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
}
