// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package gitsync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", "Relief Test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@relief.local")
	t.Setenv("GIT_COMMITTER_NAME", "Relief Test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@relief.local")
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(context.Background(), dir, args...)
	require.NoError(t, err, "git %s", strings.Join(args, " "))
	return out
}

func commit(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0644))
	git(t, dir, "add", file)
	git(t, dir, "commit", "--quiet", "-m", "update "+file)
}

// setupRemote creates a bare origin with one commit on main and returns
// its path and a clone.
func setupRemote(t *testing.T) (origin, clone string) {
	t.Helper()
	root := t.TempDir()
	origin = filepath.Join(root, "origin.git")
	seed := filepath.Join(root, "seed")

	require.NoError(t, os.MkdirAll(origin, 0755))
	git(t, origin, "init", "--quiet", "--bare")
	git(t, origin, "symbolic-ref", "HEAD", "refs/heads/main")

	require.NoError(t, os.MkdirAll(seed, 0755))
	git(t, seed, "init", "--quiet")
	git(t, seed, "symbolic-ref", "HEAD", "refs/heads/main")
	commit(t, seed, "README.md", "hello\n")
	git(t, seed, "remote", "add", "origin", origin)
	git(t, seed, "push", "--quiet", "-u", "origin", "main")

	return origin, seed
}

func cloneOf(t *testing.T, origin string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "work")
	git(t, filepath.Dir(dir), "clone", "--quiet", origin, dir)
	return dir
}

func TestInspect_NotRepository(t *testing.T) {
	c := NewController(0)

	info, err := c.Inspect(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, &Info{IsRepository: false}, info)
}

func TestInspect_Repository(t *testing.T) {
	requireGit(t)
	origin, seed := setupRemote(t)
	work := cloneOf(t, origin)
	commit(t, seed, "a.txt", "a\n")
	git(t, seed, "push", "--quiet")
	git(t, seed, "push", "--quiet", "origin", "main:release")
	git(t, work, "fetch", "--quiet")
	require.NoError(t, os.WriteFile(filepath.Join(work, "scratch.txt"), []byte("x"), 0644))

	info, err := NewController(0).Inspect(context.Background(), work)
	require.NoError(t, err)

	assert.True(t, info.IsRepository)
	assert.Equal(t, "main", info.CurrentBranch)
	assert.Equal(t, origin, info.RemoteURL)
	assert.True(t, info.HasChanges)
	assert.Contains(t, info.LastCommit, "update README.md")
	assert.Equal(t, "origin/main", info.Upstream)
	assert.Equal(t, 0, info.Ahead)
	assert.Equal(t, 1, info.Behind)
	assert.Contains(t, info.AvailableBranches, "main")
	assert.Contains(t, info.AvailableBranches, "release")
}

func TestSyncBranch_FastForward(t *testing.T) {
	requireGit(t)
	origin, seed := setupRemote(t)
	work := cloneOf(t, origin)
	commit(t, seed, "a.txt", "a\n")
	commit(t, seed, "b.txt", "b\n")
	git(t, seed, "push", "--quiet")

	result, err := NewController(0).SyncBranch(context.Background(), work)
	require.NoError(t, err)

	assert.True(t, result.Updated)
	assert.Equal(t, 2, result.Pulled)
	assert.Equal(t, "main", result.Branch)
	assert.Equal(t, "origin/main", result.Upstream)
	assert.NotEqual(t, result.Before, result.After)
	assert.FileExists(t, filepath.Join(work, "b.txt"))
}

func TestSyncBranch_UpToDate(t *testing.T) {
	requireGit(t)
	origin, _ := setupRemote(t)
	work := cloneOf(t, origin)

	result, err := NewController(0).SyncBranch(context.Background(), work)
	require.NoError(t, err)
	assert.False(t, result.Updated)
	assert.Equal(t, result.Before, result.After)
}

func TestSyncBranch_Diverged(t *testing.T) {
	requireGit(t)
	origin, seed := setupRemote(t)
	work := cloneOf(t, origin)
	commit(t, seed, "remote.txt", "remote\n")
	git(t, seed, "push", "--quiet")
	commit(t, work, "local.txt", "local\n")
	head := git(t, work, "rev-parse", "HEAD")

	_, err := NewController(0).SyncBranch(context.Background(), work)

	var diverged *DivergedHistoryError
	require.ErrorAs(t, err, &diverged)
	assert.Equal(t, 1, diverged.Ahead)
	assert.Equal(t, 1, diverged.Behind)
	assert.Equal(t, "main", diverged.Branch)

	// Working copy untouched.
	assert.Equal(t, head, git(t, work, "rev-parse", "HEAD"))
	assert.NoFileExists(t, filepath.Join(work, "remote.txt"))
	assert.FileExists(t, filepath.Join(work, "local.txt"))
}

func TestSyncBranch_NoUpstream(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	git(t, dir, "init", "--quiet")
	git(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	commit(t, dir, "a.txt", "a\n")

	_, err := NewController(0).SyncBranch(context.Background(), dir)

	var noRemote *NoRemoteError
	require.ErrorAs(t, err, &noRemote)
	assert.Equal(t, "main", noRemote.Branch)
}

func TestSyncBranch_NotRepository(t *testing.T) {
	_, err := NewController(0).SyncBranch(context.Background(), t.TempDir())

	var notRepo *NotRepositoryError
	assert.ErrorAs(t, err, &notRepo)
}

func TestSyncBranch_Timeout(t *testing.T) {
	requireGit(t)
	origin, _ := setupRemote(t)
	work := cloneOf(t, origin)

	_, err := NewController(time.Nanosecond).SyncBranch(context.Background(), work)

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "sync", timeout.Op)
}

func TestCheckout(t *testing.T) {
	requireGit(t)
	origin, seed := setupRemote(t)
	git(t, seed, "push", "--quiet", "origin", "main:feature")
	work := cloneOf(t, origin)
	c := NewController(0)

	require.NoError(t, c.Checkout(context.Background(), work, "feature"))
	assert.Equal(t, "feature", git(t, work, "branch", "--show-current"))

	require.NoError(t, c.Checkout(context.Background(), work, "main"))
	assert.Equal(t, "main", git(t, work, "branch", "--show-current"))

	assert.Error(t, c.Checkout(context.Background(), work, "no-such-branch"))
}

func TestCheckout_DirtyTree(t *testing.T) {
	requireGit(t)
	origin, seed := setupRemote(t)
	git(t, seed, "push", "--quiet", "origin", "main:feature")
	work := cloneOf(t, origin)
	require.NoError(t, os.WriteFile(filepath.Join(work, "README.md"), []byte("edited\n"), 0644))

	err := NewController(0).Checkout(context.Background(), work, "feature")

	var dirty *DirtyWorktreeError
	require.ErrorAs(t, err, &dirty)
	assert.Equal(t, []string{"README.md"}, dirty.Status.Modified)
	assert.Equal(t, "main", git(t, work, "branch", "--show-current"))
}
