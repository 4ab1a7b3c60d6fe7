// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session-info.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGet_AutoCreatesDefault(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "sess-1", rec.SessionID)
	require.Equal(t, "", rec.CustomName)
	require.Equal(t, 3, rec.Version)
	require.False(t, rec.Pinned)
	require.False(t, rec.Archived)
	require.Equal(t, PermissionDefault, rec.PermissionMode)

	again, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, rec.CreatedAt, again.CreatedAt)
}

func TestUpdate_PartialFieldsAndIdempotence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)

	name := "my session"
	pinned := true
	rec, err := s.Update(ctx, "sess-1", Fields{CustomName: &name, Pinned: &pinned})
	require.NoError(t, err)
	require.Equal(t, "my session", rec.CustomName)
	require.True(t, rec.Pinned)

	before, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)

	noop, err := s.Update(ctx, "sess-1", Fields{})
	require.NoError(t, err)
	require.Equal(t, before.CustomName, noop.CustomName)
	require.Equal(t, before.Pinned, noop.Pinned)
	require.True(t, noop.UpdatedAt.Equal(before.UpdatedAt) || noop.UpdatedAt.After(before.UpdatedAt))
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "sess-1"))

	rec, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "", rec.CustomName) // recreated as a fresh default
}

func TestArchiveAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Get(ctx, id)
		require.NoError(t, err)
	}

	n, err := s.ArchiveAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	recs, err := s.ListAll(ctx)
	require.NoError(t, err)
	for _, r := range recs {
		require.True(t, r.Archived)
	}

	n, err = s.ArchiveAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestSyncMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "already-there")
	require.NoError(t, err)

	n, err := s.SyncMissing(ctx, []string{"already-there", "new-1", "new-2"})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	recs, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "a")
	require.NoError(t, err)
	_, err = s.Get(ctx, "b")
	require.NoError(t, err)

	pinned := true
	_, err = s.Update(ctx, "a", Fields{Pinned: &pinned})
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, st.TotalSessions)
	require.Equal(t, 1, st.Pinned)
}
