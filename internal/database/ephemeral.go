package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

// TabScope returns the ephemeral tier of one tab. It survives process
// restarts until the tab is cleared or expired.
func (s *SQLiteStore) TabScope(tab string) session.Tier {
	return &tabTier{store: s, tab: tab}
}

// MarkSeen records activity of tab on every row it holds.
func (s *SQLiteStore) MarkSeen(
	tab string,
	at time.Time,
) error {
	_, err := s.db.Exec(`
		UPDATE ephemeral
		SET updated=?1
		WHERE tab=?2 AND updated<?1;`,
		at.Unix(),
		tab,
	)
	if err != nil {
		return fmt.Errorf("couldn't mark tab seen: %v", err)
	}
	return nil
}

// ExpireTabs deletes the rows of every tab last seen before the given time
// and returns how many tabs were dropped.
func (s *SQLiteStore) ExpireTabs(before time.Time) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("couldn't begin tab expiry: %v", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT tab
			FROM ephemeral
			GROUP BY tab
			HAVING MAX(updated)<?1
		);`,
		before.Unix(),
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("couldn't count idle tabs: %v", err)
	}

	_, err = tx.Exec(`
		DELETE FROM ephemeral
		WHERE tab IN (
			SELECT tab
			FROM ephemeral
			GROUP BY tab
			HAVING MAX(updated)<?1
		);`,
		before.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("couldn't delete idle tabs: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("couldn't commit tab expiry: %v", err)
	}
	return count, nil
}

// Tabs returns the number of tabs holding at least one ephemeral record.
func (s *SQLiteStore) Tabs() (int, error) {
	row := s.db.QueryRow(`
		SELECT COUNT(DISTINCT tab)
		FROM ephemeral;`,
	)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("couldn't count tabs: %v", err)
	}
	return count, nil
}

type tabTier struct {
	store *SQLiteStore
	tab   string
}

func (t *tabTier) Get(
	key string,
) (
	string,
	bool,
	error,
) {
	row := t.store.db.QueryRow(`
		SELECT value
		FROM ephemeral
		WHERE tab=?1 AND key=?2;`,
		t.tab,
		key,
	)

	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("couldn't scan ephemeral value: %v", err)
	}
	return value, true, nil
}

func (t *tabTier) Set(
	key string,
	value string,
) error {
	_, err := t.store.db.Exec(`
		INSERT INTO ephemeral (tab, key, value, updated)
		VALUES (?1, ?2, ?3, ?4)
		ON CONFLICT (tab, key)
		DO UPDATE SET value=excluded.value, updated=excluded.updated;`,
		t.tab,
		key,
		value,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("couldn't upsert into ephemeral: %v", err)
	}
	return nil
}

func (t *tabTier) Remove(
	key string,
) error {
	_, err := t.store.db.Exec(`
		DELETE FROM ephemeral
		WHERE tab=?1 AND key=?2;`,
		t.tab,
		key,
	)
	if err != nil {
		return fmt.Errorf("couldn't delete from ephemeral: %v", err)
	}
	return nil
}
