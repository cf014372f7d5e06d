// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"time"
)

// ProcessSpawnError is returned when the OS refused to start a project.
type ProcessSpawnError struct {
	Project string
	Err     error
}

func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Project, e.Err)
}

func (e *ProcessSpawnError) Unwrap() error {
	return e.Err
}

// ProcessCrashedError is returned when a project exits before becoming ready.
type ProcessCrashedError struct {
	Project string
	Summary string // crash analysis, also stored as last_error
	Err     error  // exit status
}

func (e *ProcessCrashedError) Error() string {
	return fmt.Sprintf("%s crashed: %s", e.Project, e.Summary)
}

func (e *ProcessCrashedError) Unwrap() error {
	return e.Err
}

// ReadyTimeoutError is returned when a project did not become ready in time.
type ReadyTimeoutError struct {
	Project string
	Port    int
	Timeout time.Duration
}

func (e *ReadyTimeoutError) Error() string {
	if e.Port > 0 {
		return fmt.Sprintf("%s did not listen on port %d within %s", e.Project, e.Port, e.Timeout)
	}
	return fmt.Sprintf("%s did not become ready within %s", e.Project, e.Timeout)
}
