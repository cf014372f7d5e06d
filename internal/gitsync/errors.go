// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package gitsync

import (
	"fmt"
	"strings"
	"time"
)

// NotRepositoryError is returned by mutating operations on a path that is
// not a git working copy.
type NotRepositoryError struct {
	Path string
}

func (e *NotRepositoryError) Error() string {
	return fmt.Sprintf("%s is not a git repository", e.Path)
}

// NoRemoteError is returned when the current branch has no upstream.
type NoRemoteError struct {
	Path   string
	Branch string
}

func (e *NoRemoteError) Error() string {
	if e.Branch == "" {
		return fmt.Sprintf("%s: HEAD is detached and has no upstream", e.Path)
	}
	return fmt.Sprintf("branch %s has no upstream configured", e.Branch)
}

// DivergedHistoryError is returned when local and upstream both have
// commits the other lacks. The working copy is left untouched.
type DivergedHistoryError struct {
	Branch   string
	Upstream string
	Ahead    int
	Behind   int
}

func (e *DivergedHistoryError) Error() string {
	return fmt.Sprintf("branch %s has diverged from %s (%d ahead, %d behind); fast-forward not possible",
		e.Branch, e.Upstream, e.Ahead, e.Behind)
}

// DirtyWorktreeError is returned when an operation needs a clean tree.
type DirtyWorktreeError struct {
	Path   string
	Status GitStatus
}

func (e *DirtyWorktreeError) Error() string {
	return fmt.Sprintf("%s has uncommitted changes; commit or stash them first", e.Path)
}

// TimeoutError is returned when a git operation exceeds its deadline.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("git %s timed out after %s", e.Op, e.Timeout)
}

// CommandError carries the output of a failed git invocation.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.Args, " "), e.Err, out)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
