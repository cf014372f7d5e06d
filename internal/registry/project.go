// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the authoritative table of registered projects.
package registry

import (
	"time"

	"github.com/wingedpig/relief/internal/config"
)

// Status is the lifecycle state of a project.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// IsActive reports whether a process may be attached in this state.
func (s Status) IsActive() bool {
	return s == StatusStarting || s == StatusRunning || s == StatusStopping
}

// IsTransient reports whether the state is expected to change on its own.
func (s Status) IsTransient() bool {
	return s == StatusStarting || s == StatusStopping
}

// CanTransition reports whether a project may move from one status to another.
// Every state may fall back to stopped once its process is confirmed gone.
func CanTransition(from, to Status) bool {
	if from == to || to == StatusStopped {
		return true
	}
	switch to {
	case StatusStarting:
		return from == StatusStopped || from == StatusError
	case StatusRunning:
		return from == StatusStarting
	case StatusStopping:
		return from == StatusStarting || from == StatusRunning || from == StatusError
	case StatusError:
		return from == StatusStarting || from == StatusRunning || from == StatusStopping
	}
	return false
}

// ProjectType is the runtime family of a project.
type ProjectType string

const (
	TypeContainer ProjectType = config.TypeContainer
	TypeNode      ProjectType = config.TypeNode
	TypePython    ProjectType = config.TypePython
	TypeJava      ProjectType = config.TypeJava
	TypeGo        ProjectType = config.TypeGo
	TypeRuby      ProjectType = config.TypeRuby
)

// Dependency is a runtime requirement of a project.
// Version, Satisfied and Message are recomputed on each status refresh.
type Dependency struct {
	Name            string `json:"name"`
	Version         string `json:"version,omitempty"`
	RequiredVersion string `json:"required_version,omitempty"`
	Managed         bool   `json:"managed"`
	Satisfied       bool   `json:"satisfied"`
	Message         string `json:"message,omitempty"`
}

// Project is a registered local development unit.
type Project struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Path         string            `json:"path"`
	Domain       string            `json:"domain"`
	Type         ProjectType       `json:"type"`
	Status       Status            `json:"status"`
	Port         int               `json:"port"`
	PID          int               `json:"pid,omitempty"`
	Image        string            `json:"image,omitempty"`
	TTY          bool              `json:"tty,omitempty"`
	Dependencies []Dependency      `json:"dependencies"`
	Scripts      map[string]string `json:"scripts"`
	Env          map[string]string `json:"env"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	LastError    string            `json:"last_error,omitempty"`
}

// DevCommand returns the command used to run the project.
func (p *Project) DevCommand() string {
	if cmd := p.Scripts["dev"]; cmd != "" {
		return cmd
	}
	return config.DefaultDevCommand(string(p.Type))
}

// UsesContainerImage reports whether the project runs a container image
// directly rather than a dev command.
func (p *Project) UsesContainerImage() bool {
	return p.Type == TypeContainer && p.Image != ""
}

// clone returns a deep copy so callers never share maps or slices with the registry.
func (p Project) clone() Project {
	if p.Dependencies != nil {
		p.Dependencies = append([]Dependency(nil), p.Dependencies...)
	}
	p.Scripts = cloneMap(p.Scripts)
	p.Env = cloneMap(p.Env)
	return p
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
