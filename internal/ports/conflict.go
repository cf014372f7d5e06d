// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ports

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LegacyPrefix starts the string form of a port conflict used by older clients.
const LegacyPrefix = "PORT_IN_USE"

// Conflict describes a port bound by a process. PID is 0 when the holder is
// another project whose process is still being spawned; retry shortly.
type Conflict struct {
	Port    int    `json:"port"`
	PID     int    `json:"pid"`
	Command string `json:"command"`
}

// ConflictError is returned when a project's port is held by a foreign process.
// It is recoverable: kill the holder, then start again.
type ConflictError struct {
	Conflict
}

func (e *ConflictError) Error() string {
	if e.PID == 0 {
		return fmt.Sprintf("port %d is already in use", e.Port)
	}
	if e.Command == "" {
		return fmt.Sprintf("port %d is already in use by PID %d", e.Port, e.PID)
	}
	return fmt.Sprintf("port %d is already in use by PID %d (%s)", e.Port, e.PID, e.Command)
}

// Legacy returns the conflict in the PORT_IN_USE wire format.
func (e *ConflictError) Legacy() string {
	return FormatLegacy(e.Conflict)
}

// FormatLegacy encodes a conflict as PORT_IN_USE:<port>:<pid>:<command>.
func FormatLegacy(c Conflict) string {
	return fmt.Sprintf("%s:%d:%d:%s", LegacyPrefix, c.Port, c.PID, c.Command)
}

// ErrNotLegacyConflict is returned by ParseLegacy for strings in another format.
var ErrNotLegacyConflict = errors.New("not a PORT_IN_USE message")

// ParseLegacy decodes a PORT_IN_USE string. The command is everything after
// the third colon, so commands containing colons survive intact.
func ParseLegacy(s string) (Conflict, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) < 3 || parts[0] != LegacyPrefix {
		return Conflict{}, ErrNotLegacyConflict
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port <= 0 || port > 65535 {
		return Conflict{}, fmt.Errorf("%w: bad port %q", ErrNotLegacyConflict, parts[1])
	}
	pid, err := strconv.Atoi(parts[2])
	if err != nil || pid < 0 {
		return Conflict{}, fmt.Errorf("%w: bad pid %q", ErrNotLegacyConflict, parts[2])
	}

	c := Conflict{Port: port, PID: pid}
	if len(parts) == 4 {
		c.Command = parts[3]
	}
	return c, nil
}
