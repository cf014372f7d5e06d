// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"encoding/json"
	"time"
)

// Project status values.
const (
	StatusStopped  = "stopped"
	StatusStarting = "starting"
	StatusRunning  = "running"
	StatusStopping = "stopping"
	StatusError    = "error"
)

// Project is a registered local development project.
type Project struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Path         string            `json:"path"`
	Domain       string            `json:"domain"`
	Type         string            `json:"type"`
	Status       string            `json:"status"`
	Port         int               `json:"port"`
	PID          int               `json:"pid,omitempty"`
	Image        string            `json:"image,omitempty"`
	TTY          bool              `json:"tty,omitempty"`
	Dependencies []Dependency      `json:"dependencies"`
	Scripts      map[string]string `json:"scripts"`
	Env          map[string]string `json:"env"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`

	// LastError is a one-line summary of the last failure, such as a crash.
	LastError string `json:"last_error,omitempty"`
}

// IsActive reports whether the project has, or is about to have, a process.
func (p *Project) IsActive() bool {
	return p.Status == StatusStarting || p.Status == StatusRunning || p.Status == StatusStopping
}

// Dependency is a runtime requirement of a project.
type Dependency struct {
	Name            string `json:"name"`
	Version         string `json:"version,omitempty"`
	RequiredVersion string `json:"required_version,omitempty"`
	Managed         bool   `json:"managed"`
	Satisfied       bool   `json:"satisfied"`
	Message         string `json:"message,omitempty"`
}

// LogEntry is one captured line of project output.
type LogEntry struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"project_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// GitInfo describes a project's working copy.
type GitInfo struct {
	IsRepository      bool     `json:"is_repository"`
	CurrentBranch     string   `json:"current_branch,omitempty"`
	Detached          bool     `json:"detached,omitempty"`
	AvailableBranches []string `json:"available_branches,omitempty"`
	RemoteURL         string   `json:"remote_url,omitempty"`
	HasChanges        bool     `json:"has_changes,omitempty"`
	LastCommit        string   `json:"last_commit,omitempty"`
	Upstream          string   `json:"upstream,omitempty"`
	Ahead             int      `json:"ahead,omitempty"`
	Behind            int      `json:"behind,omitempty"`
}

// SyncResult reports what a fast-forward sync did.
type SyncResult struct {
	Branch   string `json:"branch"`
	Upstream string `json:"upstream"`
	Before   string `json:"before"`
	After    string `json:"after"`
	Updated  bool   `json:"updated"`
	Pulled   int    `json:"pulled"`
}

// Service is a configured managed service.
type Service struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Port        int           `json:"port,omitempty"`
	Supervised  bool          `json:"supervised"`
	Installable bool          `json:"installable"`
	Status      ServiceStatus `json:"status"`
}

// ServiceStatus is the runtime state of a managed service.
type ServiceStatus struct {
	State     string    `json:"state"`
	PID       int       `json:"pid,omitempty"`
	External  bool      `json:"external,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Script is a configured global command.
type Script struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Command     string            `json:"command"`
	WorkDir     string            `json:"work_dir,omitempty"`
	Timeout     time.Duration     `json:"timeout"`
	Env         map[string]string `json:"env,omitempty"`
}

// ScriptResult is the outcome of one script run.
type ScriptResult struct {
	Name       string        `json:"name"`
	Success    bool          `json:"success"`
	ExitCode   int           `json:"exit_code"`
	Output     string        `json:"output"`
	Truncated  bool          `json:"truncated,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// Event is a record of something that happened in Relief.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Project   string                 `json:"project,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// AppStatus is the aggregate project and proxy state.
type AppStatus struct {
	TotalProjects  int  `json:"total_projects"`
	Running        int  `json:"running"`
	Stopped        int  `json:"stopped"`
	Errors         int  `json:"errors"`
	TraefikRunning bool `json:"traefik_running"`
}

// PortInfo is the result of a port check.
type PortInfo struct {
	Port    int    `json:"port"`
	InUse   bool   `json:"in_use"`
	PID     int    `json:"pid,omitempty"`
	Command string `json:"command,omitempty"`
	Legacy  string `json:"legacy,omitempty"`
}

// Route maps a local domain to a project's upstream.
type Route struct {
	Domain   string `json:"domain"`
	Upstream string `json:"upstream"`
	Project  string `json:"project"`
}

// ConfigText is the raw text of the configuration file.
type ConfigText struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// ConfigApplied is returned after the configuration was saved or reloaded.
// Config is the effective configuration with defaults filled in.
type ConfigApplied struct {
	Path   string          `json:"path"`
	Config json.RawMessage `json:"config"`
}

// ServerVersion is the server's build and negotiated API version.
type ServerVersion struct {
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
}
