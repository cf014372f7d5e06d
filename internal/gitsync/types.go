// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gitsync inspects project working copies and keeps them in step
// with their upstream branches.
package gitsync

// Info describes a project's working copy. It is recomputed on every
// query and never persisted.
type Info struct {
	IsRepository      bool     `json:"is_repository"`
	CurrentBranch     string   `json:"current_branch,omitempty"`
	Detached          bool     `json:"detached,omitempty"`
	AvailableBranches []string `json:"available_branches,omitempty"`
	RemoteURL         string   `json:"remote_url,omitempty"`
	HasChanges        bool     `json:"has_changes,omitempty"`
	LastCommit        string   `json:"last_commit,omitempty"` // short hash and subject
	Upstream          string   `json:"upstream,omitempty"`
	Ahead             int      `json:"ahead,omitempty"`  // local commits not in upstream
	Behind            int      `json:"behind,omitempty"` // upstream commits not in local
}

// SyncResult reports what a fast-forward sync did.
type SyncResult struct {
	Branch   string `json:"branch"`
	Upstream string `json:"upstream"`
	Before   string `json:"before"`
	After    string `json:"after"`
	Updated  bool   `json:"updated"`
	Pulled   int    `json:"pulled"` // commits fast-forwarded
}

// GitStatus represents the status of a git working directory.
type GitStatus struct {
	Clean     bool     `json:"clean"`
	Modified  []string `json:"modified,omitempty"`
	Added     []string `json:"added,omitempty"`
	Deleted   []string `json:"deleted,omitempty"`
	Renamed   []string `json:"renamed,omitempty"`
	Untracked []string `json:"untracked,omitempty"`
}

// HasChanges returns true if there are any changes in the working directory.
func (s *GitStatus) HasChanges() bool {
	if s.Clean {
		return false
	}
	return len(s.Modified) > 0 || len(s.Added) > 0 ||
		len(s.Deleted) > 0 || len(s.Renamed) > 0 ||
		len(s.Untracked) > 0
}

// BranchInfo contains information about the current branch.
type BranchInfo struct {
	Name     string
	Detached bool
	Commit   string
}
