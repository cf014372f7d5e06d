// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logview filters and prints captured project output for relief-ctl.
package logview

import (
	"time"
)

// Level is a log severity. Higher is more severe.
type Level int

const (
	LevelUnset Level = iota - 1
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unset"
	}
}

// FilterOptions selects which entries are printed.
type FilterOptions struct {
	Since    time.Time // Only entries at or after this time
	Levels   []Level   // Only these levels (empty = all)
	MinLevel Level     // "warn+" syntax; LevelUnset if not set
	Grep     string    // Regex matched against the message
}

// Format is an output format.
type Format int

const (
	FormatPlain Format = iota
	FormatJSON
	FormatJSONL
	FormatCSV
	FormatRaw
)
