// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// ParseError reports configuration text that could not be parsed or
// failed validation. The previously loaded configuration stays in effect.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config parse error: %v", e.Err)
	}
	return fmt.Sprintf("config parse error in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := l.Parse(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes HJSON configuration text.
func (l *Loader) Parse(data []byte) (*Config, error) {
	// Parse HJSON to intermediate map
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("parse hjson: %w", err)}
	}

	// Convert to JSON and unmarshal to struct (for type safety)
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("convert to json: %w", err)}
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("unmarshal config: %w", err)}
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Check parses and validates configuration text without applying it.
func (l *Loader) Check(data []byte) (*Config, error) {
	cfg, err := l.Parse(data)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := NewValidator().Validate(cfg); err != nil {
		return nil, &ParseError{Err: err}
	}
	return cfg, nil
}

// FindConfig searches for a config file in the current directory, then in
// the user config directory.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"relief.hjson",
		"relief.json",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".config", "relief", "relief.hjson"),
			filepath.Join(home, ".config", "relief", "relief.json"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for relief.hjson, relief.json)")
}

// Defaults returns a configuration containing only default values.
func Defaults() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}

	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 7420
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "projects.json"
	}
	if cfg.DomainSuffix == "" {
		cfg.DomainSuffix = "local"
	}

	// Supervisor defaults
	if cfg.Supervisor.StopTimeout == "" {
		cfg.Supervisor.StopTimeout = "10s"
	}
	if cfg.Supervisor.ReadyTimeout == "" {
		cfg.Supervisor.ReadyTimeout = "30s"
	}
	if cfg.Supervisor.ReadyGrace == "" {
		cfg.Supervisor.ReadyGrace = "500ms"
	}
	if cfg.Supervisor.LogCapacity == 0 {
		cfg.Supervisor.LogCapacity = 1000
	}
	if cfg.Supervisor.Workers == 0 {
		cfg.Supervisor.Workers = 8
	}

	// Proxy defaults
	if cfg.Proxy.Backend == "" {
		cfg.Proxy.Backend = "traefik"
	}
	if cfg.Proxy.TraefikBinary == "" {
		cfg.Proxy.TraefikBinary = "traefik"
	}
	if cfg.Proxy.ConfigPath == "" {
		cfg.Proxy.ConfigPath = "traefik-dynamic.yaml"
	}
	if cfg.Proxy.Listen == "" {
		cfg.Proxy.Listen = "127.0.0.1"
	}
	if cfg.Proxy.HTTPPort == 0 {
		cfg.Proxy.HTTPPort = 80
	}
	if cfg.Proxy.HTTPSPort == 0 {
		cfg.Proxy.HTTPSPort = 443
	}
	if cfg.Proxy.HostsFile == "" {
		cfg.Proxy.HostsFile = "/etc/hosts"
	}

	if cfg.Git.Timeout == "" {
		cfg.Git.Timeout = "60s"
	}
	if cfg.ScriptsTimeout == "" {
		cfg.ScriptsTimeout = "10m"
	}

	// Events defaults
	if cfg.Events.History.MaxEvents == 0 {
		cfg.Events.History.MaxEvents = 10000
	}
	if cfg.Events.History.MaxAge == "" {
		cfg.Events.History.MaxAge = "1h"
	}

	// Watch defaults
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = "250ms"
	}
}
