// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package services controls the configured backing services (databases,
// queues) that projects depend on.
package services

import (
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle state of a managed service.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StateError   State = "error"
)

// Status is a point-in-time view of one service.
type Status struct {
	State     State     `json:"state"`
	PID       int       `json:"pid,omitempty"`
	External  bool      `json:"external,omitempty"` // port held by a process relief did not start
	StartedAt time.Time `json:"started_at,omitempty"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Info describes a configured service and its status.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Port        int    `json:"port,omitempty"`
	Supervised  bool   `json:"supervised"` // relief owns the process
	Installable bool   `json:"installable"`
	Status      Status `json:"status"`
}

// ErrServiceNotFound is matched by UnknownServiceError.
var ErrServiceNotFound = errors.New("service not found")

// UnknownServiceError is returned for a name that is not configured.
type UnknownServiceError struct {
	Name       string
	Suggestion string
}

func (e *UnknownServiceError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("service %q not found (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("service %q not found", e.Name)
}

func (e *UnknownServiceError) Is(target error) bool {
	return target == ErrServiceNotFound
}

// CommandError reports a failed start, stop or install command.
type CommandError struct {
	Service string
	Action  string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("service %s: %s failed: %v", e.Service, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
