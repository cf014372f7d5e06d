// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/wingedpig/relief/internal/api"
	"github.com/wingedpig/relief/internal/config"
	"github.com/wingedpig/relief/internal/dependency"
	"github.com/wingedpig/relief/internal/events"
	"github.com/wingedpig/relief/internal/gitsync"
	"github.com/wingedpig/relief/internal/logstore"
	"github.com/wingedpig/relief/internal/orchestrator"
	"github.com/wingedpig/relief/internal/pool"
	"github.com/wingedpig/relief/internal/ports"
	"github.com/wingedpig/relief/internal/process"
	"github.com/wingedpig/relief/internal/proxy"
	"github.com/wingedpig/relief/internal/registry"
	"github.com/wingedpig/relief/internal/scripts"
	"github.com/wingedpig/relief/internal/services"
	"github.com/wingedpig/relief/internal/supervisor"
	"github.com/wingedpig/relief/internal/watcher"
)

const configWatchKey = "config"

// App is the main application container.
type App struct {
	mu sync.RWMutex

	configPath string // "" when running on defaults
	version    string
	config     *config.Config

	eventBus     events.EventBus
	registry     *registry.Registry
	logs         *logstore.Store
	supervisor   *supervisor.Supervisor
	proxy        *proxy.Controller
	services     *services.Manager
	pool         *pool.Pool
	orchestrator *orchestrator.Orchestrator
	configWatch  *watcher.FileWatcher
	apiServer    *api.Server

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Version    string // Application version string
}

// New creates a new App instance. An empty ConfigPath runs on defaults
// with the config endpoints disabled.
func New(opts Options) (*App, error) {
	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		done:       make(chan struct{}),
	}

	cfg := config.Defaults()
	if opts.ConfigPath != "" {
		loaded, err := config.NewLoader().LoadWithDefaults(context.Background(), opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if err := config.NewValidator().Validate(loaded); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", opts.ConfigPath, err)
		}
		cfg = loaded
	}

	// Override host/port if specified
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}
	app.config = cfg

	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.History.MaxAge, time.Hour),
	})

	return app, nil
}

// baseDir is where relative paths in the config resolve: the config file's
// directory, or ~/.config/relief without one.
func (app *App) baseDir() string {
	if app.configPath != "" {
		return filepath.Dir(app.configPath)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "relief")
	}
	return "."
}

func (app *App) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(app.baseDir(), path)
}

// Initialize sets up all components.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config
	base := app.baseDir()

	registryPath := app.resolve(cfg.Registry.Path)
	if err := os.MkdirAll(filepath.Dir(registryPath), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	app.registry = registry.New(registry.NewFileStore(registryPath))
	if err := app.registry.Load(); err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	log.Printf("Loaded %d projects from %s", app.registry.Count(), registryPath)

	app.logs = logstore.NewStore(cfg.Supervisor.LogCapacity)
	inspector := ports.NewOSInspector()

	app.proxy = proxy.NewController(app.registry, proxy.NewBackend(cfg.Proxy, base), proxy.NewHostsFromConfig(cfg.Proxy), app.eventBus)

	stopTimeout := config.ParseDuration(cfg.Supervisor.StopTimeout, 10*time.Second)
	app.services = services.NewManager(cfg.Services, services.Options{
		Inspector:   inspector,
		Logs:        app.logs,
		Bus:         app.eventBus,
		StopTimeout: stopTimeout,
	})
	runner := scripts.NewRunner(cfg.Scripts, config.ParseDuration(cfg.ScriptsTimeout, scripts.DefaultTimeout), base, app.eventBus)
	checker := dependency.NewChecker(app.services)

	app.supervisor = supervisor.New(supervisor.Config{
		Registry:     app.registry,
		Runner:       process.NewAutoRunner(),
		Inspector:    inspector,
		Logs:         app.logs,
		Proxy:        app.proxy,
		Bus:          app.eventBus,
		Preflight:    checker.Preflight,
		StopTimeout:  stopTimeout,
		ReadyTimeout: config.ParseDuration(cfg.Supervisor.ReadyTimeout, 30*time.Second),
		ReadyGrace:   config.ParseDuration(cfg.Supervisor.ReadyGrace, 500*time.Millisecond),
		TTY:          cfg.Supervisor.TTY,
		ConfigDir:    base,
	})

	app.pool = pool.New(cfg.Supervisor.Workers)
	app.orchestrator = orchestrator.New(orchestrator.Options{
		Config:     cfg,
		ConfigPath: app.configPath,
		Registry:   app.registry,
		Supervisor: app.supervisor,
		Proxy:      app.proxy,
		Logs:       app.logs,
		Inspector:  inspector,
		Git:        gitsync.NewController(config.ParseDuration(cfg.Git.Timeout, gitsync.DefaultTimeout)),
		Services:   app.services,
		Scripts:    runner,
		Deps:       checker,
		Pool:       app.pool,
		Bus:        app.eventBus,
	})

	app.apiServer = api.NewServer(api.ServerConfig{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		TLSCert: app.resolveOptional(cfg.Server.TLSCert),
		TLSKey:  app.resolveOptional(cfg.Server.TLSKey),
	}, api.Dependencies{
		Orchestrator: app.orchestrator,
		EventBus:     app.eventBus,
		Version:      app.version,
	})

	if app.configPath != "" && !cfg.Watch.Disabled {
		if err := app.watchConfig(cfg); err != nil {
			// Editing through the API still reloads.
			log.Printf("Warning: config watcher disabled: %v", err)
		}
	}

	return nil
}

func (app *App) resolveOptional(path string) string {
	if path == "" || path[0] == '~' {
		return path
	}
	return app.resolve(path)
}

// watchConfig reloads the config whenever the file is rewritten.
func (app *App) watchConfig(cfg *config.Config) error {
	fw, err := watcher.NewFileWatcher(config.ParseDuration(cfg.Watch.Debounce, watcher.DefaultDebounce))
	if err != nil {
		return err
	}
	err = fw.Watch(configWatchKey, app.configPath, func(path string) {
		log.Printf("Config file %s changed, reloading", path)
		newCfg, err := app.orchestrator.ReloadConfig(context.Background())
		if newCfg != nil {
			fw.SetDebounce(config.ParseDuration(newCfg.Watch.Debounce, watcher.DefaultDebounce))
		}
		if err != nil {
			log.Printf("Config reload failed: %v", err)
		}
	})
	if err != nil {
		fw.Close()
		return err
	}
	app.configWatch = fw
	return nil
}

// Start starts all components.
func (app *App) Start(ctx context.Context) error {
	// Projects left running by a previous instance are killed and reset.
	app.supervisor.CleanupOrphans(ctx)

	if err := app.proxy.Start(ctx); err != nil {
		log.Printf("Warning: proxy failed to start: %v", err)
	}

	// Bind before returning so an address clash fails startup.
	ln, err := app.apiServer.Listen()
	if err != nil {
		return err
	}
	go func() {
		if err := app.apiServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("API server error: %v", err)
			app.Stop()
		}
	}()

	return nil
}

// Run starts the app and blocks until shutdown.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown(context.Background())
		return err
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("Context cancelled, shutting down...")
	case <-app.done:
		log.Printf("Shutdown requested...")
	}

	return app.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components. Projects and supervised
// services are stopped; the registry keeps them as stopped.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop API server first to stop accepting new requests
	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}

	if app.configWatch != nil {
		app.configWatch.Close()
	}

	if app.supervisor != nil {
		if err := app.supervisor.StopAll(shutdownCtx); err != nil {
			log.Printf("Error stopping projects: %v", err)
		}
	}

	if app.services != nil {
		if err := app.services.StopAll(shutdownCtx); err != nil {
			log.Printf("Error stopping services: %v", err)
		}
	}

	if app.proxy != nil {
		if err := app.proxy.Stop(shutdownCtx); err != nil {
			log.Printf("Error stopping proxy: %v", err)
		}
	}

	if app.pool != nil {
		if err := app.pool.Close(shutdownCtx); err != nil {
			log.Printf("Error draining worker pool: %v", err)
		}
	}

	if app.eventBus != nil {
		app.eventBus.Close()
	}

	log.Println("Shutdown complete")
	return nil
}

// Stop signals the app to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}

// Addr returns the API listen address.
func (app *App) Addr() string {
	if app.apiServer == nil {
		return ""
	}
	return app.apiServer.Addr()
}

// Orchestrator returns the control surface. It is nil before Initialize.
func (app *App) Orchestrator() *orchestrator.Orchestrator {
	return app.orchestrator
}
