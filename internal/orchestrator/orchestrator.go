// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator implements the control-surface operations over the
// registry, supervisor, proxy and the supporting controllers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wingedpig/relief/internal/config"
	"github.com/wingedpig/relief/internal/dependency"
	"github.com/wingedpig/relief/internal/events"
	"github.com/wingedpig/relief/internal/gitsync"
	"github.com/wingedpig/relief/internal/logstore"
	"github.com/wingedpig/relief/internal/pool"
	"github.com/wingedpig/relief/internal/ports"
	"github.com/wingedpig/relief/internal/proxy"
	"github.com/wingedpig/relief/internal/registry"
	"github.com/wingedpig/relief/internal/scripts"
	"github.com/wingedpig/relief/internal/services"
	"github.com/wingedpig/relief/internal/status"
	"github.com/wingedpig/relief/internal/supervisor"
)

// ErrInvalidInput marks requests rejected before any state changed.
var ErrInvalidInput = errors.New("invalid input")

// Options wires an Orchestrator. Every component is required except Deps
// and Bus.
type Options struct {
	Config     *config.Config
	ConfigPath string

	Registry   *registry.Registry
	Supervisor *supervisor.Supervisor
	Proxy      *proxy.Controller
	Logs       *logstore.Store
	Inspector  ports.Inspector
	Git        *gitsync.Controller
	Services   *services.Manager
	Scripts    *scripts.Runner
	Deps       *dependency.Checker
	Pool       *pool.Pool
	Bus        events.Publisher
}

// Orchestrator is the single entry point used by the HTTP API. Lifecycle,
// git and script operations run on the bounded worker pool.
type Orchestrator struct {
	configPath string
	loader     *config.Loader

	reg       *registry.Registry
	sup       *supervisor.Supervisor
	proxy     *proxy.Controller
	logs      *logstore.Store
	inspector ports.Inspector
	services  *services.Manager
	scripts   *scripts.Runner
	deps      *dependency.Checker
	pool      *pool.Pool
	bus       events.Publisher
	status    *status.Aggregator

	mu     sync.RWMutex
	cfg    *config.Config
	git    *gitsync.Controller
	reload sync.Mutex
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		configPath: opts.ConfigPath,
		loader:     config.NewLoader(),
		reg:        opts.Registry,
		sup:        opts.Supervisor,
		proxy:      opts.Proxy,
		logs:       opts.Logs,
		inspector:  opts.Inspector,
		services:   opts.Services,
		scripts:    opts.Scripts,
		deps:       opts.Deps,
		pool:       opts.Pool,
		bus:        opts.Bus,
		cfg:        opts.Config,
		git:        opts.Git,
	}
	if o.cfg == nil {
		o.cfg = config.Defaults()
	}
	if o.bus == nil {
		o.bus = events.Discard
	}
	if o.pool == nil {
		o.pool = pool.New(o.cfg.Supervisor.Workers)
	}
	if o.git == nil {
		o.git = gitsync.NewController(config.ParseDuration(o.cfg.Git.Timeout, gitsync.DefaultTimeout))
	}
	o.status = status.NewAggregator(o.reg, o.proxy)
	return o
}

// Config returns the configuration currently in effect.
func (o *Orchestrator) Config() *config.Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg
}

func (o *Orchestrator) baseDir() string {
	if o.configPath == "" {
		return ""
	}
	return filepath.Dir(o.configPath)
}

// ListProjects returns a snapshot of every project ordered by name.
func (o *Orchestrator) ListProjects(ctx context.Context) []registry.Project {
	return o.reg.List()
}

// GetProject returns one project with its dependencies re-checked.
func (o *Orchestrator) GetProject(ctx context.Context, id string) (registry.Project, error) {
	p, err := o.reg.Get(id)
	if err != nil {
		return registry.Project{}, err
	}
	if o.deps != nil && len(p.Dependencies) > 0 {
		p.Dependencies = o.deps.Check(ctx, p.Dependencies)
	}
	return p, nil
}

// StartProject starts a project and waits for it to become ready. A port
// held by another process returns *ports.ConflictError.
func (o *Orchestrator) StartProject(ctx context.Context, id string) (registry.Project, error) {
	var p registry.Project
	err := o.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		p, err = o.sup.Start(ctx, id)
		return err
	})
	return p, err
}

// StopProject stops a project. Stopping a stopped project succeeds.
func (o *Orchestrator) StopProject(ctx context.Context, id string) (registry.Project, error) {
	var p registry.Project
	err := o.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		p, err = o.sup.Stop(ctx, id)
		return err
	})
	return p, err
}

// RestartProject stops then starts a project.
func (o *Orchestrator) RestartProject(ctx context.Context, id string) (registry.Project, error) {
	var p registry.Project
	err := o.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		p, err = o.sup.Restart(ctx, id)
		return err
	})
	return p, err
}

// AddLocalProject registers the directory at path. relief.yaml is used
// when present; otherwise the type is inferred from marker files.
func (o *Orchestrator) AddLocalProject(ctx context.Context, path string) (registry.Project, error) {
	cfg := o.Config()
	dir, err := o.resolveProjectPath(cfg, path)
	if err != nil {
		return registry.Project{}, err
	}

	manifest, found, err := config.LoadManifest(dir)
	if err != nil {
		return registry.Project{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !found || manifest.Type == "" {
		typ, err := config.InferProjectType(dir)
		if err != nil {
			return registry.Project{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if !found {
			manifest = config.DefaultManifest("", typ)
		} else {
			manifest.Type = typ
		}
	}

	p := projectFromManifest(dir, manifest, cfg.DomainSuffix)
	p, err = o.reg.Add(p)
	if err != nil {
		return registry.Project{}, err
	}
	log.Printf("Added project %s (%s) at %s", p.Name, p.Type, p.Path)

	o.publish(ctx, events.EventProjectAdded, p.ID, map[string]interface{}{
		"name":   p.Name,
		"path":   p.Path,
		"domain": p.Domain,
		"type":   string(p.Type),
	})
	o.proxy.SyncHosts()
	return p, nil
}

func (o *Orchestrator) resolveProjectPath(cfg *config.Config, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: path is required", ErrInvalidInput)
	}
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if !filepath.IsAbs(path) && len(cfg.ProjectRoots) > 0 {
		path = filepath.Join(cfg.ProjectRoots[0], path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidInput, abs)
	}
	return abs, nil
}

func projectFromManifest(dir string, m *config.Manifest, suffix string) registry.Project {
	name := m.Name
	if name == "" {
		name = filepath.Base(dir)
	}
	domain := m.Domain
	if domain == "" {
		if suffix == "" {
			suffix = "local"
		}
		domain = config.Slugify(name) + "." + suffix
	}

	scripts := make(map[string]string, len(m.Scripts)+1)
	for k, v := range m.Scripts {
		scripts[k] = v
	}
	if scripts["dev"] == "" && m.Image == "" {
		scripts["dev"] = m.DevCommand()
	}

	deps := make([]registry.Dependency, 0, len(m.Dependencies))
	for _, d := range m.Dependencies {
		deps = append(deps, registry.Dependency{
			Name:            d.Name,
			RequiredVersion: d.Version,
			Managed:         d.Managed,
		})
	}

	return registry.Project{
		Name:         name,
		Path:         dir,
		Domain:       domain,
		Type:         registry.ProjectType(m.Type),
		Port:         m.Port(),
		Image:        m.Image,
		TTY:          m.TTY,
		Dependencies: deps,
		Scripts:      scripts,
		Env:          m.Env,
	}
}

// RemoveProject unregisters a project. Running projects are rejected with
// *registry.ProjectBusyError.
func (o *Orchestrator) RemoveProject(ctx context.Context, id string) (registry.Project, error) {
	p, err := o.reg.Remove(id)
	if err != nil {
		return registry.Project{}, err
	}
	o.logs.Remove(id)
	log.Printf("Removed project %s", p.Name)
	o.publish(ctx, events.EventProjectRemoved, p.ID, map[string]interface{}{"name": p.Name})
	o.proxy.SyncHosts()
	return p, nil
}

// TailLogs returns the last n log entries of a project, oldest first.
func (o *Orchestrator) TailLogs(ctx context.Context, id string, n int) ([]logstore.Entry, error) {
	if _, err := o.reg.Get(id); err != nil {
		return nil, err
	}
	return o.logs.Tail(id, n), nil
}

// SubscribeLogs returns the last n entries and a channel of entries
// appended after them. cancel must be called when done.
func (o *Orchestrator) SubscribeLogs(ctx context.Context, id string, n int) ([]logstore.Entry, <-chan logstore.Entry, func(), error) {
	if _, err := o.reg.Get(id); err != nil {
		return nil, nil, nil, err
	}
	ch, cancel := o.logs.Subscribe(id)
	return o.logs.Tail(id, n), ch, cancel, nil
}

// Status returns the aggregate status and the poll interval it implies.
func (o *Orchestrator) Status(ctx context.Context) (status.AppStatus, time.Duration) {
	return o.status.Status()
}

// CheckPort reports the process bound to port, or nil when it is free.
func (o *Orchestrator) CheckPort(ctx context.Context, port int) (*ports.Conflict, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidInput, port)
	}
	return o.inspector.Check(ctx, port)
}

// KillProcess terminates a process by pid. It is the explicit half of
// port conflict resolution; callers retry the start afterwards.
func (o *Orchestrator) KillProcess(ctx context.Context, pid int) error {
	if pid <= 1 {
		return fmt.Errorf("%w: refusing to kill pid %d", ErrInvalidInput, pid)
	}
	if pid == os.Getpid() {
		return fmt.Errorf("%w: refusing to kill relief itself", ErrInvalidInput)
	}
	return o.sup.Kill(ctx, pid)
}

// RestartProxy restarts the proxy backend and re-applies the table.
func (o *Orchestrator) RestartProxy(ctx context.Context) error {
	return o.proxy.Restart(ctx)
}

// Routes returns the last applied routing table.
func (o *Orchestrator) Routes() []proxy.Route {
	return o.proxy.Routes()
}

func (o *Orchestrator) publish(ctx context.Context, eventType, project string, payload map[string]interface{}) {
	err := o.bus.Publish(context.WithoutCancel(ctx), events.Event{
		Type:    eventType,
		Project: project,
		Payload: payload,
	})
	if err != nil {
		log.Printf("Publish %s: %v", eventType, err)
	}
}
