// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/wingedpig/relief/internal/config"
	"github.com/wingedpig/relief/internal/events"
	"github.com/wingedpig/relief/internal/gitsync"
	"github.com/wingedpig/relief/internal/proxy"
	"github.com/wingedpig/relief/internal/scripts"
	"github.com/wingedpig/relief/internal/supervisor"
)

// ErrNoConfigFile is returned by config operations when relief was
// started without a config file.
var ErrNoConfigFile = errors.New("no config file in use")

// ConfigPath returns the path of the config file, or "".
func (o *Orchestrator) ConfigPath() string {
	return o.configPath
}

// ConfigText returns the raw text of the config file.
func (o *Orchestrator) ConfigText(ctx context.Context) (string, error) {
	if o.configPath == "" {
		return "", ErrNoConfigFile
	}
	data, err := os.ReadFile(o.configPath)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	return string(data), nil
}

// SaveConfigText validates text, writes it to the config file and applies
// it. Text that does not parse or validate returns *config.ParseError and
// the file is left untouched.
func (o *Orchestrator) SaveConfigText(ctx context.Context, text string) (*config.Config, error) {
	if o.configPath == "" {
		return nil, ErrNoConfigFile
	}
	cfg, err := o.loader.Check([]byte(text))
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(o.configPath, []byte(text)); err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}
	log.Printf("Config saved to %s", o.configPath)
	return cfg, o.apply(ctx, cfg)
}

// ReloadConfig re-reads the config file and applies it. A file that no
// longer parses leaves the running configuration in effect.
func (o *Orchestrator) ReloadConfig(ctx context.Context) (*config.Config, error) {
	if o.configPath == "" {
		return nil, ErrNoConfigFile
	}
	data, err := os.ReadFile(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := o.loader.Check(data)
	if err != nil {
		var pe *config.ParseError
		if errors.As(err, &pe) {
			pe.Path = o.configPath
		}
		log.Printf("Config reload rejected: %v", err)
		return nil, err
	}
	return cfg, o.apply(ctx, cfg)
}

// apply swaps in cfg. Managed services, scripts, timings and the proxy are
// re-derived; the server address only changes on restart. A proxy failure
// is returned after everything else has been applied.
func (o *Orchestrator) apply(ctx context.Context, cfg *config.Config) error {
	o.reload.Lock()
	defer o.reload.Unlock()

	o.mu.RLock()
	old := o.cfg
	o.mu.RUnlock()

	base := o.baseDir()

	o.services.UpdateConfigs(cfg.Services)
	o.scripts.UpdateConfigs(cfg.Scripts, config.ParseDuration(cfg.ScriptsTimeout, scripts.DefaultTimeout), base)
	o.sup.SetTimings(supervisor.Timings{
		StopTimeout:  config.ParseDuration(cfg.Supervisor.StopTimeout, 0),
		ReadyTimeout: config.ParseDuration(cfg.Supervisor.ReadyTimeout, 0),
		ReadyGrace:   config.ParseDuration(cfg.Supervisor.ReadyGrace, 0),
	})

	o.mu.Lock()
	if timeout := config.ParseDuration(cfg.Git.Timeout, gitsync.DefaultTimeout); timeout != o.git.Timeout() {
		o.git = gitsync.NewController(timeout)
	}
	o.cfg = cfg
	o.mu.Unlock()

	if old.Server != cfg.Server {
		log.Printf("Server address change to %s:%d takes effect after restart", cfg.Server.Host, cfg.Server.Port)
	}
	if old.Supervisor.Workers != cfg.Supervisor.Workers || old.Supervisor.LogCapacity != cfg.Supervisor.LogCapacity {
		log.Printf("Worker and log capacity changes take effect after restart")
	}

	var proxyErr error
	if old.Proxy != cfg.Proxy {
		log.Printf("Proxy settings changed, reconfiguring %s backend", cfg.Proxy.Backend)
		proxyErr = o.proxy.Reconfigure(ctx, proxy.NewBackend(cfg.Proxy, base), proxy.NewHostsFromConfig(cfg.Proxy))
	} else {
		proxyErr = o.proxy.Refresh(ctx)
		o.proxy.SyncHosts()
	}

	log.Printf("Config reloaded (%d services, %d scripts)", len(cfg.Services), len(cfg.Scripts))
	o.publish(ctx, events.EventConfigReloaded, "", map[string]interface{}{
		"services": len(cfg.Services),
		"scripts":  len(cfg.Scripts),
	})
	return proxyErr
}

// writeFileAtomic replaces path through a rename so readers and watchers
// never see a partial file. The existing file mode is kept.
func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
