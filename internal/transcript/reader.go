// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/basinlabs/cuid/internal/logging"
)

var log = logging.For("transcript")

// line is the on-disk shape of one transcript record, matching the
// assistant CLI's JSONL session format.
type line struct {
	Type        string          `json:"type"`
	SessionID   string          `json:"sessionId"`
	UUID        string          `json:"uuid"`
	ParentUUID  string          `json:"parentUuid,omitempty"`
	Message     json.RawMessage `json:"message"`
	CWD         string          `json:"cwd,omitempty"`
	Model       string          `json:"model,omitempty"`
	CostUSD     float64         `json:"costUSD,omitempty"`
	DurationMs  int64           `json:"durationMs,omitempty"`
	Timestamp   string          `json:"timestamp"`
}

// Stats reports how many lines were skipped while reading a file, so
// callers can surface "N malformed lines skipped" without failing the read.
type Stats struct {
	LinesRead    int
	LinesSkipped int
}

// Reader parses append-only, line-delimited transcript files.
type Reader struct{}

// NewReader returns a Reader. The type carries no state; it exists so the
// File Parse Cache can hold a caller-supplied parse_file function bound to
// a consistent receiver, matching the cache's signature expectations.
func NewReader() *Reader { return &Reader{} }

// ReadFile parses a file into an ordered list of Entries. Malformed lines
// are skipped with a counted warning; the file being unreadable is
// returned as an error to the caller, which drops that file's contribution
// without aborting the overall parse (per the File Parse Cache contract).
func (r *Reader) ReadFile(path string) ([]Entry, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open transcript file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	var stats Stats

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}
		stats.LinesRead++

		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			stats.LinesSkipped++
			log.Warn().Err(err).Str("file", path).Msg("skipping malformed transcript line")
			continue
		}

		entry := Entry{
			Kind:       Kind(l.Type),
			UUID:       l.UUID,
			ParentUUID: l.ParentUUID,
			SessionID:  l.SessionID,
			CWD:        l.CWD,
			Model:      l.Model,
			Cost:       l.CostUSD,
			Duration:   l.DurationMs,
		}
		if ts, err := parseTimestamp(l.Timestamp); err == nil {
			entry.Timestamp = ts
		}

		var msg RawMessage
		if len(l.Message) > 0 {
			if err := json.Unmarshal(l.Message, &msg); err != nil {
				stats.LinesSkipped++
				log.Warn().Err(err).Str("file", path).Msg("skipping transcript line with unparsable message")
				continue
			}
		}
		entry.Message = msg

		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		// A scanner error (e.g. token-too-long) still returns whatever
		// entries were parsed up to that point alongside the error; the
		// File Parse Cache treats any error as a failed parse, discards
		// them, and leaves the file uncached.
		return entries, stats, fmt.Errorf("scan transcript file: %w", err)
	}

	return entries, stats, nil
}

// SessionIDFromPath derives a session id from a transcript file's base
// name, following the assistant CLI's convention of naming files
// "<session-id>.jsonl".
func SessionIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ProjectDir returns the assistant CLI's project-specific transcript
// directory for the given project path: the path with "/" and "."
// replaced by "-", joined under $HOME/.claude/projects/.
func ProjectDir(projectPath string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	encoded := strings.NewReplacer("/", "-", ".", "-").Replace(projectPath)
	return filepath.Join(home, ".claude", "projects", encoded), nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
