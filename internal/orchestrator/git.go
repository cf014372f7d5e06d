// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/wingedpig/relief/internal/events"
	"github.com/wingedpig/relief/internal/gitsync"
	"github.com/wingedpig/relief/internal/logstore"
)

func (o *Orchestrator) gitController() *gitsync.Controller {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.git
}

// GitInfo inspects a project's working copy. It never mutates it.
func (o *Orchestrator) GitInfo(ctx context.Context, id string) (*gitsync.Info, error) {
	p, err := o.reg.Get(id)
	if err != nil {
		return nil, err
	}
	return o.gitController().Inspect(ctx, p.Path)
}

// SyncGit fast-forwards the project's current branch to its upstream. A
// timeout or failure leaves the project's status untouched.
func (o *Orchestrator) SyncGit(ctx context.Context, id string) (*gitsync.SyncResult, error) {
	p, err := o.reg.Get(id)
	if err != nil {
		return nil, err
	}

	var result *gitsync.SyncResult
	err = o.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = o.gitController().SyncBranch(ctx, p.Path)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Updated {
		o.logs.Append(p.ID, logstore.LevelInfo, fmt.Sprintf("[relief] git: %s fast-forwarded %s..%s", result.Branch, short(result.Before), short(result.After)))
	}
	o.publish(ctx, events.EventGitSynced, p.ID, map[string]interface{}{
		"branch":  result.Branch,
		"updated": result.Updated,
		"pulled":  result.Pulled,
	})
	return result, nil
}

// CheckoutBranch switches a project's working copy to branch. A dirty
// working tree is refused.
func (o *Orchestrator) CheckoutBranch(ctx context.Context, id, branch string) (*gitsync.Info, error) {
	branch = strings.TrimSpace(branch)
	if branch == "" || strings.HasPrefix(branch, "-") {
		return nil, fmt.Errorf("%w: invalid branch name %q", ErrInvalidInput, branch)
	}
	p, err := o.reg.Get(id)
	if err != nil {
		return nil, err
	}

	git := o.gitController()
	err = o.pool.Do(ctx, func(ctx context.Context) error {
		return git.Checkout(ctx, p.Path, branch)
	})
	if err != nil {
		return nil, err
	}
	o.logs.Append(p.ID, logstore.LevelInfo, "[relief] git: checked out "+branch)
	return git.Inspect(ctx, p.Path)
}

func short(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
