// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package process spawns project workloads, either as shell commands in
// their own process group or as containers, and streams their output.
package process

import (
	"context"
	"errors"
	"strconv"
	"time"
)

const defaultStopTimeout = 10 * time.Second

// ErrNotRunning is returned when signaling a workload that already exited.
var ErrNotRunning = errors.New("process not running")

// Spec describes a workload to start.
type Spec struct {
	Name    string            // Project name, used in log lines
	Command string            // Shell command line, run with sh -c
	Image   string            // Container image; when set Command is passed as the container command
	Dir     string            // Working directory
	Env     map[string]string // Extra environment, applied after .env
	Port    int               // Exported as PORT and published for containers
	TTY     bool              // Attach a pseudo-terminal instead of pipes

	// Output receives each output line. It must not block for long.
	Output func(line string)
}

func (s *Spec) emit(line string) {
	if s.Output != nil {
		s.Output(line)
	}
}

// Handle is a started workload.
type Handle interface {
	// PID is the host process ID, or 0 when unknown.
	PID() int
	// Done is closed once the workload has exited and its output is drained.
	Done() <-chan struct{}
	// Err reports how the workload exited. Only valid after Done.
	Err() error
	// StopRequested reports whether Stop was called.
	StopRequested() bool
	// Stop terminates the workload gracefully, forcing it after timeout.
	Stop(ctx context.Context, timeout time.Duration) error
}

// Runner starts workloads.
type Runner interface {
	Start(ctx context.Context, spec Spec) (Handle, error)
}

// ExitError reports a non-zero exit.
type ExitError struct {
	Code   int
	Signal string
}

func (e *ExitError) Error() string {
	if e.Signal != "" {
		return "terminated by " + e.Signal
	}
	return "exit status " + strconv.Itoa(e.Code)
}

// AutoRunner starts image-based specs in containers and everything else
// through the shell.
type AutoRunner struct {
	Shell     Runner
	Container Runner
}

// NewAutoRunner creates a runner backed by a ShellRunner and a ContainerRunner.
func NewAutoRunner() *AutoRunner {
	return &AutoRunner{Shell: NewShellRunner(), Container: NewContainerRunner()}
}

// Start dispatches spec to the matching runner.
func (r *AutoRunner) Start(ctx context.Context, spec Spec) (Handle, error) {
	if spec.Image != "" {
		return r.Container.Start(ctx, spec)
	}
	return r.Shell.Start(ctx, spec)
}
