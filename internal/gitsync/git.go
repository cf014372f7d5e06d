// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package gitsync

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// run executes git in dir and returns trimmed stdout.
func run(ctx context.Context, dir string, args ...string) (string, error) {
	full := append([]string{"-C", dir}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	// Never block on a credential or editor prompt.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_EDITOR=true")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &CommandError{Args: args, Output: stderr.String(), Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepository reports whether path is the root of a git working copy.
// A .git file (worktrees, submodules) counts.
func IsRepository(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// ParseGitStatus parses the output of `git status --porcelain`.
func ParseGitStatus(output string) GitStatus {
	var status GitStatus

	// Leading spaces are part of the status indicators.
	output = strings.TrimRight(output, " \t\n\r")
	if output == "" {
		status.Clean = true
		return status
	}

	for _, line := range strings.Split(output, "\n") {
		if len(line) < 3 {
			continue
		}

		// XY PATH: X is the index status, Y the worktree status.
		indicator := line[:2]
		filename := line[3:]

		// A and R before the contains checks so AM and RM classify correctly.
		switch {
		case strings.HasPrefix(indicator, "A"):
			status.Added = append(status.Added, filename)
		case strings.HasPrefix(indicator, "R"):
			status.Renamed = append(status.Renamed, filename)
		case indicator == "??":
			status.Untracked = append(status.Untracked, filename)
		case strings.Contains(indicator, "D"):
			status.Deleted = append(status.Deleted, filename)
		case strings.Contains(indicator, "M"):
			status.Modified = append(status.Modified, filename)
		}
	}

	status.Clean = !status.HasChanges()
	return status
}

// ParseBranchInfo parses the output of `git branch --show-current`.
func ParseBranchInfo(output string) BranchInfo {
	output = strings.TrimSpace(output)

	if strings.HasPrefix(output, "(HEAD detached at ") {
		commit := strings.TrimPrefix(output, "(HEAD detached at ")
		commit = strings.TrimSuffix(commit, ")")
		return BranchInfo{Detached: true, Commit: commit}
	}
	return BranchInfo{Name: output}
}

// ParseAheadBehind parses `git rev-list --left-right --count A...B`, whose
// output is "left\tright".
func ParseAheadBehind(output string) (left, right int, ok bool) {
	parts := strings.Fields(strings.TrimSpace(output))
	if len(parts) != 2 {
		return 0, 0, false
	}
	l, err1 := strconv.Atoi(parts[0])
	r, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return l, r, true
}

// ParseBranches merges local branches with the origin remote's, dropping
// duplicates and origin/HEAD.
func ParseBranches(local, remote string) []string {
	seen := make(map[string]bool)
	branches := []string{}
	for _, b := range strings.Split(local, "\n") {
		if b = strings.TrimSpace(b); b != "" && !seen[b] {
			seen[b] = true
			branches = append(branches, b)
		}
	}
	for _, b := range strings.Split(remote, "\n") {
		b = strings.TrimSpace(b)
		if !strings.HasPrefix(b, "origin/") {
			continue
		}
		b = strings.TrimPrefix(b, "origin/")
		if b != "HEAD" && b != "" && !seen[b] {
			seen[b] = true
			branches = append(branches, b)
		}
	}
	return branches
}
