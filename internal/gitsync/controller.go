// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// DefaultTimeout bounds a single sync or checkout.
const DefaultTimeout = 60 * time.Second

// Controller runs git operations against project working copies.
type Controller struct {
	timeout time.Duration
}

// NewController creates a controller. A zero timeout uses DefaultTimeout.
func NewController(timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Controller{timeout: timeout}
}

// Timeout returns the per-operation deadline.
func (c *Controller) Timeout() time.Duration {
	return c.timeout
}

// Inspect reports the state of the working copy at path without changing
// it. A path that is not a repository yields IsRepository false and no
// error. Fields that git cannot answer (no commits, no remote) stay empty.
func (c *Controller) Inspect(ctx context.Context, path string) (*Info, error) {
	info := &Info{IsRepository: IsRepository(path)}
	if !info.IsRepository {
		return info, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	branch, err := c.branch(ctx, path)
	if err != nil {
		return nil, c.wrap(ctx, "inspect", err)
	}
	info.CurrentBranch = branch.Name
	info.Detached = branch.Detached

	local, _ := run(ctx, path, "branch", "--format=%(refname:short)")
	remote, _ := run(ctx, path, "branch", "-r", "--format=%(refname:short)")
	info.AvailableBranches = ParseBranches(local, remote)

	if url, err := run(ctx, path, "remote", "get-url", "origin"); err == nil {
		info.RemoteURL = url
	}
	if out, err := run(ctx, path, "status", "--porcelain"); err == nil {
		status := ParseGitStatus(out)
		info.HasChanges = status.HasChanges()
	}
	if out, err := run(ctx, path, "log", "-1", "--format=%h %s"); err == nil {
		info.LastCommit = out
	}
	if upstream, err := run(ctx, path, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}"); err == nil {
		info.Upstream = upstream
		if out, err := run(ctx, path, "rev-list", "--left-right", "--count", "@{u}...HEAD"); err == nil {
			if behind, ahead, ok := ParseAheadBehind(out); ok {
				info.Ahead, info.Behind = ahead, behind
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, c.wrap(ctx, "inspect", err)
	}
	return info, nil
}

// SyncBranch fetches the current branch's upstream and fast-forwards to
// it. Diverged histories fail with DivergedHistoryError and a branch with
// no upstream fails with NoRemoteError; neither touches the working copy.
func (c *Controller) SyncBranch(ctx context.Context, path string) (*SyncResult, error) {
	if !IsRepository(path) {
		return nil, &NotRepositoryError{Path: path}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	branch, err := c.branch(ctx, path)
	if err != nil {
		return nil, c.wrap(ctx, "sync", err)
	}
	if branch.Detached {
		return nil, &NoRemoteError{Path: path}
	}

	upstream, err := run(ctx, path, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.wrap(ctx, "sync", err)
		}
		return nil, &NoRemoteError{Path: path, Branch: branch.Name}
	}

	if _, err := run(ctx, path, "fetch", "--quiet"); err != nil {
		return nil, c.wrap(ctx, "sync", fmt.Errorf("fetch: %w", err))
	}

	out, err := run(ctx, path, "rev-list", "--left-right", "--count", "@{u}...HEAD")
	if err != nil {
		return nil, c.wrap(ctx, "sync", err)
	}
	behind, ahead, ok := ParseAheadBehind(out)
	if !ok {
		return nil, fmt.Errorf("unexpected rev-list output %q", out)
	}

	before, err := run(ctx, path, "rev-parse", "--short", "HEAD")
	if err != nil {
		return nil, c.wrap(ctx, "sync", err)
	}
	result := &SyncResult{Branch: branch.Name, Upstream: upstream, Before: before, After: before}

	if behind == 0 {
		return result, nil
	}
	if ahead > 0 {
		return nil, &DivergedHistoryError{Branch: branch.Name, Upstream: upstream, Ahead: ahead, Behind: behind}
	}

	if _, err := run(ctx, path, "merge", "--ff-only", "--quiet", "@{u}"); err != nil {
		return nil, c.wrap(ctx, "sync", fmt.Errorf("fast-forward: %w", err))
	}

	after, err := run(ctx, path, "rev-parse", "--short", "HEAD")
	if err != nil {
		return nil, c.wrap(ctx, "sync", err)
	}
	result.After = after
	result.Updated = after != before
	result.Pulled = behind
	log.Printf("Synced %s (%s) with %s: %s..%s", path, branch.Name, upstream, before, after)
	return result, nil
}

// Checkout switches the working copy to branch, creating a tracking branch
// from origin when only the remote has it. A dirty tree is refused.
func (c *Controller) Checkout(ctx context.Context, path, branch string) error {
	if !IsRepository(path) {
		return &NotRepositoryError{Path: path}
	}
	if branch == "" {
		return errors.New("branch is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := run(ctx, path, "status", "--porcelain")
	if err != nil {
		return c.wrap(ctx, "checkout", err)
	}
	if status := ParseGitStatus(out); status.HasChanges() {
		return &DirtyWorktreeError{Path: path, Status: status}
	}

	// Best effort: the branch may only exist remotely.
	if _, err := run(ctx, path, "fetch", "--quiet"); err != nil {
		log.Printf("Git fetch in %s failed: %v", path, err)
	}

	if _, err := run(ctx, path, "checkout", "--quiet", branch); err != nil {
		if _, err2 := run(ctx, path, "checkout", "--quiet", "-b", branch, "origin/"+branch); err2 != nil {
			return c.wrap(ctx, "checkout", fmt.Errorf("checkout %s: %w", branch, err))
		}
	}
	log.Printf("Checked out %s in %s", branch, path)
	return nil
}

// branch returns the current branch, falling back to the short commit
// for a detached HEAD.
func (c *Controller) branch(ctx context.Context, path string) (BranchInfo, error) {
	out, err := run(ctx, path, "branch", "--show-current")
	if err != nil {
		return BranchInfo{}, err
	}
	info := ParseBranchInfo(out)
	if info.Name == "" && !info.Detached {
		commit, err := run(ctx, path, "rev-parse", "--short", "HEAD")
		if err != nil {
			// Unborn branch: no commits yet.
			name, symErr := run(ctx, path, "symbolic-ref", "--short", "HEAD")
			if symErr != nil {
				return BranchInfo{}, err
			}
			return BranchInfo{Name: name}, nil
		}
		return BranchInfo{Detached: true, Commit: commit}, nil
	}
	return info, nil
}

// wrap converts a deadline overrun into a TimeoutError.
func (c *Controller) wrap(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Timeout: c.timeout}
	}
	return err
}
