// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"fmt"
)

// ErrProjectNotFound is returned for unknown project IDs.
var ErrProjectNotFound = errors.New("project not found")

// DuplicatePathError is returned when a path is already registered.
type DuplicatePathError struct {
	Path       string
	ExistingID string
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("path %s is already registered as project %s", e.Path, e.ExistingID)
}

// ProjectBusyError is returned when an operation requires a quiescent project.
type ProjectBusyError struct {
	ID     string
	Name   string
	Status Status
}

func (e *ProjectBusyError) Error() string {
	return fmt.Sprintf("project %s is %s; stop it first", e.Name, e.Status)
}

// InvalidTransitionError is returned for a status change the lifecycle forbids.
type InvalidTransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("project %s cannot move from %s to %s", e.ID, e.From, e.To)
}
