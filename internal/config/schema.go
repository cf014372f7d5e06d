// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading, project manifests,
// and command template expansion.
package config

import (
	"time"
)

// Config is the root configuration structure for Relief.
type Config struct {
	Version        string           `json:"version"`
	Server         ServerConfig     `json:"server"`
	Registry       RegistryConfig   `json:"registry"`
	DomainSuffix   string           `json:"domain_suffix"`
	ProjectRoots   []string         `json:"project_roots"`
	Supervisor     SupervisorConfig `json:"supervisor"`
	Proxy          ProxyConfig      `json:"proxy"`
	Services       []ServiceConfig  `json:"services"`
	Scripts        []ScriptConfig   `json:"scripts"`
	Git            GitConfig        `json:"git"`
	ScriptsTimeout string           `json:"scripts_timeout"`
	Events         EventsConfig     `json:"events"`
	Watch          WatchConfig      `json:"watch"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Port    int    `json:"port"`
	Host    string `json:"host"`
	TLSCert string `json:"tls_cert"` // Serve HTTPS when both cert and key are set
	TLSKey  string `json:"tls_key"`
}

// RegistryConfig configures where the project registry is persisted.
type RegistryConfig struct {
	Path string `json:"path"` // Relative paths resolve against the config file directory
}

// SupervisorConfig configures process supervision timings.
type SupervisorConfig struct {
	StopTimeout  string `json:"stop_timeout"`  // Grace period between SIGTERM and SIGKILL
	ReadyTimeout string `json:"ready_timeout"` // Maximum time a project may stay in starting
	ReadyGrace   string `json:"ready_grace"`   // How long a process must stay alive before it can be ready
	LogCapacity  int    `json:"log_capacity"`  // Log entries retained per project
	Workers      int    `json:"workers"`       // Size of the on-demand operation pool
	TTY          bool   `json:"tty"`           // Run project commands under a pseudo-terminal
}

// ProxyConfig configures the reverse proxy.
type ProxyConfig struct {
	Backend       string `json:"backend"`        // "traefik" or "builtin"
	TraefikBinary string `json:"traefik_binary"` // Path or name of the traefik executable
	ConfigPath    string `json:"config_path"`    // Generated dynamic configuration file
	Listen        string `json:"listen"`         // Bind host for the builtin backend
	HTTPPort      int    `json:"http_port"`
	HTTPSPort     int    `json:"https_port"`
	TLSTailscale  bool   `json:"tls_tailscale"` // Builtin backend only: serve HTTPS with Tailscale certificates
	ManageHosts   bool   `json:"manage_hosts"`
	HostsFile     string `json:"hosts_file"`
}

// ServiceConfig defines a managed backing service.
// A service either runs a long-lived Command supervised by Relief, or
// delegates to StartCommand/StopCommand (e.g. "brew services start postgresql").
type ServiceConfig struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Command        string            `json:"command"`
	StartCommand   string            `json:"start_command"`
	StopCommand    string            `json:"stop_command"`
	InstallCommand string            `json:"install_command"`
	WorkDir        string            `json:"work_dir"`
	Env            map[string]string `json:"env"`
	Port           int               `json:"port"`
}

// IsSupervised reports whether Relief owns the service process.
func (s *ServiceConfig) IsSupervised() bool {
	return s.Command != ""
}

// ScriptConfig defines a global automation script.
type ScriptConfig struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Command     string            `json:"command"`
	WorkDir     string            `json:"work_dir"`
	Timeout     string            `json:"timeout"`
	Env         map[string]string `json:"env"`
}

// GitConfig configures git operations.
type GitConfig struct {
	Timeout string `json:"timeout"`
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	History HistoryConfig `json:"history"`
}

// HistoryConfig configures event history retention.
type HistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// WatchConfig configures config file watching.
type WatchConfig struct {
	Debounce string `json:"debounce"`
	Disabled bool   `json:"disabled"`
}

// TemplateContext provides data for command template expansion.
type TemplateContext struct {
	Project ProjectTemplateData
	Config  ConfigTemplateData
}

// ProjectTemplateData provides project data for templates.
type ProjectTemplateData struct {
	Name   string
	Path   string
	Domain string
	Port   int
}

// ConfigTemplateData provides config file data for templates.
type ConfigTemplateData struct {
	Dir string
}

// ParseDuration parses a duration string, returning a default if empty.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// FindService returns the service config with the given name.
func (c *Config) FindService(name string) (ServiceConfig, bool) {
	for _, svc := range c.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return ServiceConfig{}, false
}

// FindScript returns the script config with the given name.
func (c *Config) FindScript(name string) (ScriptConfig, bool) {
	for _, s := range c.Scripts {
		if s.Name == name {
			return s, true
		}
	}
	return ScriptConfig{}, false
}
