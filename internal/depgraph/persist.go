// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// persistedFile is the on-disk shape of session-deps.json.
type persistedFile struct {
	SchemaVersion int               `json:"schema_version"`
	CreatedAt     time.Time         `json:"created_at"`
	LastUpdated   time.Time         `json:"last_updated"`
	TotalSessions int               `json:"total_sessions"`
	Sessions      map[string]Record `json:"sessions"`
}

// load reads the persisted graph from e.path. A missing file is treated as
// an empty graph (not an error); a corrupt file is also treated as empty,
// since a Dependency Graph Engine must rebuild rather than block startup.
func (e *Engine) load() error {
	data, err := os.ReadFile(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read dependency graph file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var pf persistedFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse dependency graph file: %w", err)
	}

	e.records = make(map[string]*Record, len(pf.Sessions))
	for id, rec := range pf.Sessions {
		rec := rec
		e.records[id] = &rec
	}
	return nil
}

// persist atomically rewrites the dependency graph file: serialize to a
// sibling temp file, fsync, rename over the original.
func (e *Engine) persist(now time.Time) error {
	if e.path == "" {
		return nil
	}

	sessions := make(map[string]Record, len(e.records))
	for id, r := range e.records {
		sessions[id] = *r
	}

	pf := persistedFile{
		SchemaVersion: schemaVersion,
		LastUpdated:   now,
		TotalSessions: len(sessions),
		Sessions:      sessions,
	}
	if existingCreated, err := e.previousCreatedAt(); err == nil && !existingCreated.IsZero() {
		pf.CreatedAt = existingCreated
	} else {
		pf.CreatedAt = now
	}

	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dependency graph: %w", err)
	}

	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dependency graph dir: %w", err)
	}

	tmp := e.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp dependency graph file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp dependency graph file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsync temp dependency graph file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp dependency graph file: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename dependency graph file: %w", err)
	}
	return nil
}

// previousCreatedAt reads just the created_at field from the file
// currently on disk, so repeated persist() calls preserve the graph's
// original creation timestamp rather than resetting it every write.
func (e *Engine) previousCreatedAt() (time.Time, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return time.Time{}, err
	}
	var pf struct {
		CreatedAt time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(data, &pf); err != nil {
		return time.Time{}, err
	}
	return pf.CreatedAt, nil
}
