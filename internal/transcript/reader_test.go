// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	var out string
	for _, l := range lines {
		out += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(out), 0644))
}

func TestReadFile_ParsesStringContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.jsonl")
	writeLines(t, path, []string{
		`{"type":"user","sessionId":"s1","uuid":"u1","message":{"role":"user","content":"Initial"},"timestamp":"2026-01-01T00:00:00Z"}`,
	})

	r := NewReader()
	entries, stats, err := r.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, stats.LinesRead)
	require.Equal(t, 0, stats.LinesSkipped)
	require.Len(t, entries, 1)
	require.Equal(t, "s1", entries[0].SessionID)

	hv := ExtractHashVisible(entries[0].Message)
	require.Equal(t, "user", hv.Role)
	require.Equal(t, "Initial", hv.Content)
}

func TestReadFile_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.jsonl")
	writeLines(t, path, []string{
		`{"type":"user","sessionId":"s1","uuid":"u1","message":{"role":"user","content":"ok"},"timestamp":"2026-01-01T00:00:00Z"}`,
		`not json at all`,
		`{"type":"assistant","sessionId":"s1","uuid":"u2","message":{"role":"assistant","content":[{"type":"text","text":"hi"},{"type":"tool_use","name":"Bash"}]},"timestamp":"2026-01-01T00:00:01Z"}`,
	})

	r := NewReader()
	entries, stats, err := r.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, stats.LinesSkipped)
	require.Len(t, entries, 2)

	hv := ExtractHashVisible(entries[1].Message)
	require.Equal(t, "hi", hv.Content)
}

func TestReadFile_MissingFile(t *testing.T) {
	r := NewReader()
	_, _, err := r.ReadFile("/nonexistent/path.jsonl")
	require.Error(t, err)
}

func TestGroupBySession(t *testing.T) {
	entries := []Entry{
		{SessionID: "a", UUID: "1"},
		{SessionID: "b", UUID: "2"},
		{SessionID: "a", UUID: "3"},
	}
	groups := GroupBySession(entries)
	require.Len(t, groups["a"], 2)
	require.Len(t, groups["b"], 1)
}

func TestSessionIDFromPath(t *testing.T) {
	require.Equal(t, "abc-123", SessionIDFromPath("/some/dir/abc-123.jsonl"))
}
