// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"

	"github.com/wingedpig/relief/internal/scripts"
	"github.com/wingedpig/relief/internal/services"
)

// ListServices returns the managed services in configuration order.
func (o *Orchestrator) ListServices(ctx context.Context) []services.Info {
	return o.services.List()
}

// StartService starts a managed service. Starting a running service is a
// no-op.
func (o *Orchestrator) StartService(ctx context.Context, name string) (services.Info, error) {
	err := o.pool.Do(ctx, func(ctx context.Context) error {
		return o.services.Start(ctx, name)
	})
	if err != nil {
		return services.Info{}, err
	}
	return o.services.Get(name)
}

// StopService stops a managed service. Stopping a stopped service is a
// no-op.
func (o *Orchestrator) StopService(ctx context.Context, name string) (services.Info, error) {
	err := o.pool.Do(ctx, func(ctx context.Context) error {
		return o.services.Stop(ctx, name)
	})
	if err != nil {
		return services.Info{}, err
	}
	return o.services.Get(name)
}

// InstallService runs a service's install command.
func (o *Orchestrator) InstallService(ctx context.Context, name string) (services.Info, error) {
	err := o.pool.Do(ctx, func(ctx context.Context) error {
		return o.services.Install(ctx, name)
	})
	if err != nil {
		return services.Info{}, err
	}
	if o.deps != nil {
		o.deps.Invalidate()
	}
	return o.services.Get(name)
}

// ListScripts returns the global scripts in configuration order.
func (o *Orchestrator) ListScripts(ctx context.Context) []scripts.Script {
	return o.scripts.List()
}

// RunScript runs a global script to completion. A script that exits
// non-zero is a failed Result with a nil error.
func (o *Orchestrator) RunScript(ctx context.Context, name string) (*scripts.Result, error) {
	if _, err := o.scripts.Get(name); err != nil {
		return nil, err
	}
	var result *scripts.Result
	err := o.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = o.scripts.Run(ctx, name)
		return err
	})
	return result, err
}
