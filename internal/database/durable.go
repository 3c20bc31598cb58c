package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

// Scope returns the durable tier of one browser profile. Tiers of the same
// profile share rows; writes are last-writer-wins.
func (s *SQLiteStore) Scope(profile string) session.Tier {
	return &profileTier{store: s, profile: profile}
}

// Profiles returns the number of profiles holding at least one record.
func (s *SQLiteStore) Profiles() (int, error) {
	row := s.db.QueryRow(`
		SELECT COUNT(DISTINCT profile)
		FROM durable;`,
	)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("couldn't count profiles: %v", err)
	}
	return count, nil
}

type profileTier struct {
	store   *SQLiteStore
	profile string
}

func (t *profileTier) Get(
	key string,
) (
	string,
	bool,
	error,
) {
	row := t.store.db.QueryRow(`
		SELECT value
		FROM durable
		WHERE profile=?1 AND key=?2;`,
		t.profile,
		key,
	)

	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("couldn't scan durable value: %v", err)
	}
	return value, true, nil
}

func (t *profileTier) Set(
	key string,
	value string,
) error {
	_, err := t.store.db.Exec(`
		INSERT INTO durable (profile, key, value, updated)
		VALUES (?1, ?2, ?3, ?4)
		ON CONFLICT (profile, key)
		DO UPDATE SET value=excluded.value, updated=excluded.updated;`,
		t.profile,
		key,
		value,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("couldn't upsert into durable: %v", err)
	}
	return nil
}

func (t *profileTier) Remove(
	key string,
) error {
	_, err := t.store.db.Exec(`
		DELETE FROM durable
		WHERE profile=?1 AND key=?2;`,
		t.profile,
		key,
	)
	if err != nil {
		return fmt.Errorf("couldn't delete from durable: %v", err)
	}
	return nil
}
