// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logview

import (
	"fmt"
	"regexp"

	"github.com/wingedpig/relief/pkg/client"
)

// Filter matches log entries against FilterOptions.
type Filter struct {
	opts FilterOptions
	grep *regexp.Regexp
}

// NewFilter compiles opts.
func NewFilter(opts FilterOptions) (*Filter, error) {
	f := &Filter{opts: opts}
	if opts.Grep != "" {
		re, err := regexp.Compile(opts.Grep)
		if err != nil {
			return nil, fmt.Errorf("invalid grep pattern: %w", err)
		}
		f.grep = re
	}
	return f, nil
}

// Match reports whether entry passes every filter.
func (f *Filter) Match(entry *client.LogEntry) bool {
	if !f.opts.Since.IsZero() && entry.Timestamp.Before(f.opts.Since) {
		return false
	}
	if !f.matchLevel(entry) {
		return false
	}
	if f.grep != nil && !f.grep.MatchString(entry.Message) {
		return false
	}
	return true
}

func (f *Filter) matchLevel(entry *client.LogEntry) bool {
	level, err := ParseLevel(entry.Level)
	if err != nil {
		return len(f.opts.Levels) == 0 && f.opts.MinLevel == LevelUnset
	}
	if f.opts.MinLevel != LevelUnset {
		return level >= f.opts.MinLevel
	}
	if len(f.opts.Levels) == 0 {
		return true
	}
	for _, l := range f.opts.Levels {
		if l == level {
			return true
		}
	}
	return false
}

// Apply returns the entries that match, preserving order.
func (f *Filter) Apply(entries []client.LogEntry) []client.LogEntry {
	out := make([]client.LogEntry, 0, len(entries))
	for i := range entries {
		if f.Match(&entries[i]) {
			out = append(out, entries[i])
		}
	}
	return out
}
