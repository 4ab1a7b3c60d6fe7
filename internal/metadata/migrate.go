// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations applies every pending embedded "up" migration to db in
// order, recording progress in schema_meta. golang-migrate's iofs source
// driver is reused to enumerate and read the embedded files (matching
// marmos91-dittofs's migration layout), but the actual apply loop is
// hand-rolled: golang-migrate's own sqlite3 database driver pulls in
// mattn/go-sqlite3, a cgo binding, which would undo the point of using
// modernc.org/sqlite's pure-Go driver for this store.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL,
		last_updated TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_meta: %w", err)
	}

	current, err := currentSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	defer src.Close()

	version, err := firstMigrationVersion(src)
	if err != nil {
		return err
	}

	for {
		if version > current {
			if err := applyMigration(db, src, version); err != nil {
				return err
			}
		}

		next, err := src.Next(version)
		if err != nil {
			// No further migrations (iofs returns a wrapped os.ErrNotExist).
			break
		}
		version = next
	}
	return nil
}

func firstMigrationVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("locate first migration: %w", err)
	}
	return version, nil
}

func applyMigration(db *sql.DB, src source.Driver, version uint) error {
	r, _, err := src.ReadUp(version)
	if err != nil {
		return fmt.Errorf("read migration %d: %w", version, err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read migration %d body: %w", version, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	if _, err := tx.Exec(string(body)); err != nil {
		tx.Rollback()
		return fmt.Errorf("apply migration %d: %w", version, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_meta (id, version, last_updated)
		VALUES (1, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, last_updated = excluded.last_updated`,
		version); err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration %d: %w", version, err)
	}
	return tx.Commit()
}

func currentSchemaVersion(db *sql.DB) (uint, error) {
	var version uint
	err := db.QueryRow(`SELECT version FROM schema_meta WHERE id = 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}
