// Package database provides SQLite persistence for both session tiers: the
// durable tier of a browser profile and the ephemeral tier of a tab.
package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) *SQLiteStore {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatalf("failed to connect to database: %v\n", err)
	}

	// every pooled connection to ":memory:" would be a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		log.Fatalf("failed to init database: couldn't set journal mode: %v\n", err)
	}

	if err := initSchema(db); err != nil {
		log.Fatalf("failed to init database: %v\n", err)
	}

	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	if err := initTable(db, "durable", `
		CREATE TABLE IF NOT EXISTS durable (
			profile     TEXT NOT NULL,
			key         TEXT NOT NULL,
			value       TEXT NOT NULL,
			updated     INTEGER NOT NULL,
			PRIMARY KEY (profile, key)
		);`,
	); err != nil {
		return err
	}

	if err := initTable(db, "ephemeral", `
		CREATE TABLE IF NOT EXISTS ephemeral (
			tab         TEXT NOT NULL,
			key         TEXT NOT NULL,
			value       TEXT NOT NULL,
			updated     INTEGER NOT NULL,
			PRIMARY KEY (tab, key)
		);`,
	); err != nil {
		return err
	}

	return nil
}

func initTable(
	db *sql.DB,
	name string,
	sql string,
) error {
	if _, err := db.Exec(sql); err != nil {
		return fmt.Errorf("failed to init '%s' table schema: %v", name, err)
	}
	return nil
}
