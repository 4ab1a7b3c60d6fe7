// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/basinlabs/cuid/internal/transcript"
)

func hv(role, text string) transcript.HashVisible {
	return transcript.HashVisible{Role: role, Content: text}
}

// newFetcher builds a MessageFetcher from a static session->messages map,
// used so tests can exercise the engine without real transcript files.
func newFetcher(data map[string][]transcript.HashVisible) MessageFetcher {
	return func(sessionID string) ([]transcript.HashVisible, error) {
		return data[sessionID], nil
	}
}

func TestEnhance_GapParent(t *testing.T) {
	dir := t.TempDir()
	data := map[string][]transcript.HashVisible{
		"gap-A": {hv("user", "Initial")},
		"gap-B": {hv("user", "Initial"), hv("assistant", "Response 1"), hv("user", "Follow-up")},
	}
	e := New(filepath.Join(dir, "session-deps.json"), newFetcher(data))

	convs := []Conversation{
		{SessionID: "gap-A", MessageCount: 1},
		{SessionID: "gap-B", MessageCount: 3},
	}
	enhanced := e.Enhance(convs)
	require.Len(t, enhanced, 2)

	recA, ok := e.Lookup("gap-A")
	require.True(t, ok)
	recB, ok := e.Lookup("gap-B")
	require.True(t, ok)

	require.Equal(t, "gap-A", recB.ParentSession)
	require.Equal(t, []string{"gap-B"}, recA.ChildrenSessions)
	require.Equal(t, "gap-B", recA.LeafSession)
	require.Equal(t, "gap-B", recB.LeafSession)
}

func TestEnhance_BranchingLeaves(t *testing.T) {
	dir := t.TempDir()
	data := map[string][]transcript.HashVisible{
		"root":     {hv("user", "hello")},
		"branch-1": {hv("user", "hello"), hv("assistant", "reply one")},
		"branch-2": {hv("user", "hello"), hv("assistant", "reply two")},
	}
	e := New(filepath.Join(dir, "session-deps.json"), newFetcher(data))

	convs := []Conversation{
		{SessionID: "root", MessageCount: 1},
		{SessionID: "branch-1", MessageCount: 2},
		{SessionID: "branch-2", MessageCount: 2},
	}
	e.Enhance(convs)

	root, _ := e.Lookup("root")
	b1, _ := e.Lookup("branch-1")
	b2, _ := e.Lookup("branch-2")

	require.Equal(t, "root", b1.ParentSession)
	require.Equal(t, "root", b2.ParentSession)
	require.Contains(t, []string{"branch-1", "branch-2"}, root.LeafSession)
	require.Equal(t, "branch-1", b1.LeafSession)
	require.Equal(t, "branch-2", b2.LeafSession)

	require.NotEqual(t, b1.EndHash, b2.EndHash)
	require.NotEqual(t, root.EndHash, b1.EndHash)
	require.NotEqual(t, root.EndHash, b2.EndHash)
}

func TestEnhance_CorruptDependencyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session-deps.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0644))

	data := map[string][]transcript.HashVisible{
		"s1": {hv("user", "hi")},
	}
	e := New(path, newFetcher(data))

	enhanced := e.Enhance([]Conversation{{SessionID: "s1", MessageCount: 1}})
	require.Len(t, enhanced, 1)
	require.NotEmpty(t, enhanced[0].Hash)
}

func TestEnhance_DeterministicAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session-deps.json")
	data := map[string][]transcript.HashVisible{
		"root": {hv("user", "hello")},
		"child": {hv("user", "hello"), hv("assistant", "hi back")},
		"grandchild": {hv("user", "hello"), hv("assistant", "hi back"), hv("user", "thanks")},
	}
	convs := []Conversation{
		{SessionID: "root", MessageCount: 1},
		{SessionID: "child", MessageCount: 2},
		{SessionID: "grandchild", MessageCount: 3},
	}

	e1 := New(path, newFetcher(data))
	e1.Enhance(convs)
	rec1, _ := e1.Lookup("grandchild")

	e2 := New(path, newFetcher(data))
	e2.Enhance(convs)
	rec2, _ := e2.Lookup("grandchild")

	require.Equal(t, rec1.EndHash, rec2.EndHash)
	require.Equal(t, rec1.ParentSession, rec2.ParentSession)
	require.Equal(t, rec1.LeafSession, rec2.LeafSession)
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	data := map[string][]transcript.HashVisible{
		"root":  {hv("user", "hi")},
		"child": {hv("user", "hi"), hv("assistant", "there")},
	}
	e := New(filepath.Join(dir, "session-deps.json"), newFetcher(data))
	e.Enhance([]Conversation{
		{SessionID: "root", MessageCount: 1},
		{SessionID: "child", MessageCount: 2},
	})

	s := e.Stats()
	require.Equal(t, 2, s.SessionCount)
	require.Equal(t, 1, s.LeafCount)
}

func TestComputePrefixHashes_Deterministic(t *testing.T) {
	msgs := []transcript.HashVisible{hv("user", "a"), hv("assistant", "b")}
	h1 := ComputePrefixHashes(msgs)
	h2 := ComputePrefixHashes(msgs)
	require.Equal(t, h1, h2)
	for _, h := range h1 {
		require.Len(t, h, 64)
	}
}

func TestPersist_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session-deps.json")
	data := map[string][]transcript.HashVisible{"s1": {hv("user", "hi")}}

	e := New(path, newFetcher(data))
	e.Enhance([]Conversation{{SessionID: "s1", MessageCount: 1, CreatedAt: time.Now()}})

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "\"schema_version\"")
	require.Contains(t, string(raw), "\"s1\"")
}
