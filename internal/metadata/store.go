// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package metadata implements the durable per-session mutable record:
// custom name, pinned/archived flags, continuation link, initial VCS head,
// and permission mode. It is backed by modernc.org/sqlite in WAL mode.
package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/basinlabs/cuid/internal/logging"
)

var log = logging.For("metadata")

// PermissionMode is one of the permission-broker's three operating modes
// for a session.
type PermissionMode string

const (
	PermissionDefault PermissionMode = "default"
	PermissionStrict  PermissionMode = "strict"
	PermissionBypass  PermissionMode = "bypass"
)

// Record is one session's metadata.
type Record struct {
	SessionID             string         `json:"session_id"`
	CustomName            string         `json:"custom_name"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	Version               int            `json:"version"`
	Pinned                bool           `json:"pinned"`
	Archived              bool           `json:"archived"`
	ContinuationSessionID string         `json:"continuation_session_id,omitempty"`
	InitialCommitHead     string         `json:"initial_commit_head,omitempty"`
	PermissionMode        PermissionMode `json:"permission_mode"`
}

func defaultRecord(sessionID string, now time.Time) Record {
	return Record{
		SessionID:      sessionID,
		CustomName:     "",
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        3,
		Pinned:         false,
		Archived:       false,
		PermissionMode: PermissionDefault,
	}
}

// Fields is a partial update: nil pointers leave the corresponding column
// untouched.
type Fields struct {
	CustomName            *string
	Pinned                *bool
	Archived              *bool
	ContinuationSessionID *string
	InitialCommitHead     *string
	PermissionMode        *PermissionMode
}

// Stats summarizes store occupancy.
type Stats struct {
	TotalSessions int
	Pinned        int
	Archived      int
}

// Store is the Session Metadata Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at path in WAL mode
// and applies pending migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session metadata db: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate session metadata db: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Get returns a session's record, auto-creating a default one if absent.
func (s *Store) Get(ctx context.Context, sessionID string) (Record, error) {
	rec, err := s.query(ctx, sessionID)
	if err == nil {
		return rec, nil
	}
	if err != sql.ErrNoRows {
		return Record{}, fmt.Errorf("get session metadata: %w", err)
	}

	rec = defaultRecord(sessionID, time.Now())
	if err := s.insert(ctx, s.db, rec); err != nil {
		return Record{}, fmt.Errorf("auto-create session metadata: %w", err)
	}
	return rec, nil
}

// Update applies a partial field update and always bumps updated_at,
// per the metadata idempotence invariant: update(x, {}) is a no-op other
// than the timestamp bump.
func (s *Store) Update(ctx context.Context, sessionID string, fields Fields) (Record, error) {
	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}

	if fields.CustomName != nil {
		rec.CustomName = *fields.CustomName
	}
	if fields.Pinned != nil {
		rec.Pinned = *fields.Pinned
	}
	if fields.Archived != nil {
		rec.Archived = *fields.Archived
	}
	if fields.ContinuationSessionID != nil {
		rec.ContinuationSessionID = *fields.ContinuationSessionID
	}
	if fields.InitialCommitHead != nil {
		rec.InitialCommitHead = *fields.InitialCommitHead
	}
	if fields.PermissionMode != nil {
		rec.PermissionMode = *fields.PermissionMode
	}
	rec.UpdatedAt = time.Now()

	if err := s.upsert(ctx, s.db, rec); err != nil {
		return Record{}, fmt.Errorf("update session metadata: %w", err)
	}
	return rec, nil
}

// Delete removes a session's record. Deleting an unknown session is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session metadata: %w", err)
	}
	return nil
}

// ListAll returns every known session record.
func (s *Store) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` FROM sessions ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list session metadata: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session metadata: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ArchiveAll marks every session archived in a single transaction,
// bumping updated_at exactly once. Returns the number of rows changed.
func (s *Store) ArchiveAll(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin archive-all tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET archived = 1, updated_at = ? WHERE archived = 0`, now)
	if err != nil {
		return 0, fmt.Errorf("archive-all: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive-all rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit archive-all: %w", err)
	}
	return int(n), nil
}

// SyncMissing inserts a default record for every id in ids not already
// present, in a single transaction. Returns the number inserted.
func (s *Store) SyncMissing(ctx context.Context, ids []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin sync-missing tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	inserted := 0
	for _, id := range ids {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE session_id = ?`, id).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("check existing session %q: %w", id, err)
		}
		if err := s.insert(ctx, tx, defaultRecord(id, now)); err != nil {
			return 0, fmt.Errorf("insert missing session %q: %w", id, err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sync-missing: %w", err)
	}
	return inserted, nil
}

// Stats reports aggregate counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE pinned = 1),
		COUNT(*) FILTER (WHERE archived = 1)
		FROM sessions`)
	if err := row.Scan(&st.TotalSessions, &st.Pinned, &st.Archived); err != nil {
		return Stats{}, fmt.Errorf("session metadata stats: %w", err)
	}
	return st, nil
}

const selectColumns = `SELECT session_id, custom_name, created_at, updated_at, version,
	pinned, archived, continuation_session_id, initial_commit_head, permission_mode`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(rs rowScanner) (Record, error) {
	var rec Record
	var createdAt, updatedAt string
	var pinned, archived int
	var permissionMode string

	if err := rs.Scan(&rec.SessionID, &rec.CustomName, &createdAt, &updatedAt, &rec.Version,
		&pinned, &archived, &rec.ContinuationSessionID, &rec.InitialCommitHead, &permissionMode); err != nil {
		return Record{}, err
	}

	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	rec.Pinned = pinned != 0
	rec.Archived = archived != 0
	rec.PermissionMode = PermissionMode(permissionMode)
	return rec, nil
}

func (s *Store) query(ctx context.Context, sessionID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	return scanRecord(row)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insert(ctx context.Context, ex execer, rec Record) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO sessions
		(session_id, custom_name, created_at, updated_at, version, pinned, archived,
		 continuation_session_id, initial_commit_head, permission_mode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.CustomName,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		rec.Version, boolToInt(rec.Pinned), boolToInt(rec.Archived),
		rec.ContinuationSessionID, rec.InitialCommitHead, string(rec.PermissionMode))
	return err
}

func (s *Store) upsert(ctx context.Context, ex execer, rec Record) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO sessions
		(session_id, custom_name, created_at, updated_at, version, pinned, archived,
		 continuation_session_id, initial_commit_head, permission_mode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			custom_name = excluded.custom_name,
			updated_at = excluded.updated_at,
			pinned = excluded.pinned,
			archived = excluded.archived,
			continuation_session_id = excluded.continuation_session_id,
			initial_commit_head = excluded.initial_commit_head,
			permission_mode = excluded.permission_mode`,
		rec.SessionID, rec.CustomName,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		rec.Version, boolToInt(rec.Pinned), boolToInt(rec.Archived),
		rec.ContinuationSessionID, rec.InitialCommitHead, string(rec.PermissionMode))
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
