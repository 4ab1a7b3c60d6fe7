// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basinlabs/cuid/internal/depgraph"
	"github.com/basinlabs/cuid/internal/metadata"
)

func writeTranscript(t *testing.T, dir, project, sessionID string, lines []string) string {
	t.Helper()
	projDir := filepath.Join(dir, project)
	require.NoError(t, os.MkdirAll(projDir, 0o755))
	path := filepath.Join(projDir, sessionID+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(joinLines(lines)), 0o644))
	return path
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}

func userLine(sessionID, uuid, text, ts string) string {
	return `{"type":"user","sessionId":"` + sessionID + `","uuid":"` + uuid + `","message":{"role":"user","content":"` + text + `"},"timestamp":"` + ts + `"}`
}

func newTestStore(t *testing.T) *metadata.Store {
	t.Helper()
	st, err := metadata.Open(filepath.Join(t.TempDir(), "session-info.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestList_AnnotatesAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, "proj-a", "root", []string{
		userLine("root", "u1", "Initial", "2026-01-01T00:00:00Z"),
	})
	writeTranscript(t, dir, "proj-a", "child", []string{
		userLine("child", "u1", "Initial", "2026-01-01T00:00:00Z"),
		userLine("child", "u2", "Follow-up", "2026-01-01T00:01:00Z"),
	})

	md := newTestStore(t)
	svc := NewService(dir, md)
	engine := depgraph.New(filepath.Join(t.TempDir(), "session-deps.json"), svc.FetchMessages)
	svc.AttachEngine(engine)

	ctx := context.Background()
	page, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 2)

	var root, child *Conversation
	for i := range page.Conversations {
		c := &page.Conversations[i]
		switch c.SessionID {
		case "root":
			root = c
		case "child":
			child = c
		}
	}
	require.NotNil(t, root)
	require.NotNil(t, child)
	require.Equal(t, "child", root.LeafSession)
	require.Equal(t, "child", child.LeafSession)
	require.NotEmpty(t, root.Hash)

	_, err = md.Update(ctx, "root", metadata.Fields{Pinned: boolPtr(true)})
	require.NoError(t, err)
	page, err = svc.List(ctx, Filter{Pinned: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 1)
	require.Equal(t, "root", page.Conversations[0].SessionID)
}

func boolPtr(b bool) *bool { return &b }
