// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package proxy maintains the routing table that makes each running
// project reachable at its local domain.
package proxy

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/wingedpig/relief/internal/config"
	"github.com/wingedpig/relief/internal/events"
	"github.com/wingedpig/relief/internal/registry"
)

// ProjectLister is the part of the registry the controller reads.
type ProjectLister interface {
	List() []registry.Project
}

// Controller regenerates and applies the routing table. All
// reconfiguration is serialized: only one apply is in flight at a time.
type Controller struct {
	projects ProjectLister
	bus      events.Publisher

	mu      sync.Mutex
	backend Backend
	hosts   *HostsFile // nil when hosts management is off
	routes  []Route    // last successfully applied table
	lastErr error
}

// NewController creates a controller applying routes through backend.
func NewController(projects ProjectLister, backend Backend, hosts *HostsFile, bus events.Publisher) *Controller {
	if bus == nil {
		bus = events.Discard
	}
	return &Controller{projects: projects, backend: backend, hosts: hosts, bus: bus}
}

// NewBackend builds the backend selected by cfg. Relative paths resolve
// against baseDir.
func NewBackend(cfg config.ProxyConfig, baseDir string) Backend {
	if cfg.Backend == "builtin" {
		return NewBuiltinBackend(cfg.Listen, cfg.HTTPPort, cfg.HTTPSPort, cfg.TLSTailscale)
	}
	return NewTraefikBackend(cfg.TraefikBinary, resolvePath(baseDir, cfg.ConfigPath), cfg.HTTPPort)
}

// NewHostsFromConfig returns the hosts file manager, or nil when disabled.
func NewHostsFromConfig(cfg config.ProxyConfig) *HostsFile {
	if !cfg.ManageHosts {
		return nil
	}
	return NewHostsFile(cfg.HostsFile)
}

// Start launches the backend and applies the current table. A backend
// that cannot start is reported but the table is still written.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	startErr := c.backend.Start(ctx)
	if startErr != nil {
		log.Printf("Proxy %s failed to start: %v", c.backend.Name(), startErr)
	}
	if err := c.applyLocked(ctx); err != nil {
		return err
	}
	c.syncHostsLocked()
	return startErr
}

// Stop shuts the backend down.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Stop(ctx)
}

// Refresh regenerates the full table from the registry and applies it.
// On failure the previous table stays in effect.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyLocked(ctx)
}

// Restart stops and starts the backend, then re-applies the table.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.Printf("Restarting proxy %s", c.backend.Name())
	if err := c.backend.Stop(ctx); err != nil {
		log.Printf("Proxy %s stop: %v", c.backend.Name(), err)
	}
	if err := c.backend.Start(ctx); err != nil {
		c.lastErr = err
		c.publish(ctx, events.EventProxyFailed, map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("restart proxy: %w", err)
	}
	return c.applyLocked(ctx)
}

// Reconfigure swaps in a new backend and hosts file after a config
// reload. The old backend is stopped first so the new one can bind.
func (c *Controller) Reconfigure(ctx context.Context, backend Backend, hosts *HostsFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.backend.Stop(ctx); err != nil {
		log.Printf("Proxy %s stop: %v", c.backend.Name(), err)
	}
	c.backend = backend
	c.hosts = hosts
	c.routes = nil

	startErr := backend.Start(ctx)
	if startErr != nil {
		log.Printf("Proxy %s failed to start: %v", backend.Name(), startErr)
	}
	if err := c.applyLocked(ctx); err != nil {
		return err
	}
	c.syncHostsLocked()
	return startErr
}

// SyncHosts rewrites the hosts block with the domains of every registered
// project. It is a no-op when hosts management is off.
func (c *Controller) SyncHosts() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncHostsLocked()
}

func (c *Controller) syncHostsLocked() error {
	if c.hosts == nil {
		return nil
	}
	var domains []string
	for _, p := range c.projects.List() {
		domains = append(domains, p.Domain)
	}
	if err := c.hosts.Sync(domains); err != nil {
		log.Printf("Proxy: failed to update %s: %v", c.hosts.Path(), err)
		return err
	}
	return nil
}

func (c *Controller) applyLocked(ctx context.Context) error {
	routes := BuildRoutes(c.projects.List())
	if err := c.backend.Apply(ctx, routes); err != nil {
		applyErr := &ApplyError{Backend: c.backend.Name(), Err: err}
		c.lastErr = applyErr
		log.Printf("Proxy: %v", applyErr)
		c.publish(ctx, events.EventProxyFailed, map[string]interface{}{"error": err.Error()})
		return applyErr
	}
	c.routes = routes
	c.lastErr = nil
	c.publish(ctx, events.EventProxyApplied, map[string]interface{}{"routes": len(routes)})
	return nil
}

// Routes returns the last applied routing table.
func (c *Controller) Routes() []Route {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Route(nil), c.routes...)
}

// Healthy reports whether the proxy is serving.
func (c *Controller) Healthy() bool {
	c.mu.Lock()
	backend := c.backend
	c.mu.Unlock()
	return backend.Healthy()
}

// LastError returns the most recent apply or start failure, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// BackendName returns the active backend name.
func (c *Controller) BackendName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Name()
}

func (c *Controller) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	payload["backend"] = c.backend.Name()
	if err := c.bus.Publish(context.WithoutCancel(ctx), events.Event{Type: eventType, Payload: payload}); err != nil {
		log.Printf("Proxy: publish %s: %v", eventType, err)
	}
}

func resolvePath(baseDir, path string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
