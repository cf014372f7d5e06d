// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
)

// GitClient provides working copy inspection and sync for projects.
//
// Sync only ever fast-forwards. Diverged history fails with GIT_DIVERGED
// and leaves the working copy untouched.
type GitClient struct {
	c *Client
}

// Info describes the working copy of a project. A directory that is not a
// repository returns IsRepository false rather than an error.
func (g *GitClient) Info(ctx context.Context, projectID string) (*GitInfo, error) {
	return g.info(g.c.get(ctx, projectPath(projectID)+"/git"))
}

// Sync fetches and fast-forwards the current branch to its upstream.
func (g *GitClient) Sync(ctx context.Context, projectID string) (*SyncResult, error) {
	data, err := g.c.post(ctx, projectPath(projectID)+"/git/sync")
	if err != nil {
		return nil, err
	}
	result, err := decode[SyncResult](data, "sync result")
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Checkout switches the working copy to branch. A dirty working copy is
// refused with CONFLICT.
func (g *GitClient) Checkout(ctx context.Context, projectID, branch string) (*GitInfo, error) {
	return g.info(g.c.postJSON(ctx, projectPath(projectID)+"/git/checkout", map[string]string{"branch": branch}))
}

func (g *GitClient) info(data []byte, err error) (*GitInfo, error) {
	if err != nil {
		return nil, err
	}
	info, err := decode[GitInfo](data, "git info")
	if err != nil {
		return nil, err
	}
	return &info, nil
}
