// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package vcs

import (
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeadCommit_NonGitDir(t *testing.T) {
	dir := t.TempDir()

	hash, err := HeadCommit(context.Background(), dir)
	require.NoError(t, err)
	require.Empty(t, hash)
}

func TestHeadCommit_GitRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	run(t, dir, "init")
	run(t, dir, "config", "user.email", "test@example.com")
	run(t, dir, "config", "user.name", "test")
	require.NoError(t, os.WriteFile(dir+"/f.txt", []byte("hi"), 0644))
	run(t, dir, "add", "f.txt")
	run(t, dir, "commit", "-m", "initial")

	hash, err := HeadCommit(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, hash, 40)

	branch, err := Branch(context.Background(), dir)
	require.NoError(t, err)
	require.NotEmpty(t, branch)
}

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}
