// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"errors"
	"strings"
)

// PatternMatcher handles event pattern matching.
type PatternMatcher struct{}

// NewPatternMatcher creates a new pattern matcher.
func NewPatternMatcher() *PatternMatcher {
	return &PatternMatcher{}
}

// Match checks if an event type matches a pattern.
// Patterns are dot-separated; "*" matches exactly one segment, except as the
// final segment where it matches the remainder:
//   - "project.*" matches "project.started" and "project.git.synced"
//   - "*.started" matches "project.started" and "service.started"
//   - "*" matches everything
func (pm *PatternMatcher) Match(eventType, pattern string) bool {
	if pattern == "" || eventType == "" {
		return false
	}

	pat := strings.Split(pattern, ".")
	typ := strings.Split(eventType, ".")

	for i, seg := range pat {
		last := i == len(pat)-1
		if i >= len(typ) {
			return false
		}
		if seg == "*" {
			if last {
				return true
			}
			continue
		}
		if seg != typ[i] {
			return false
		}
	}
	return len(pat) == len(typ)
}

// Compile pre-compiles a pattern for efficient matching.
func (pm *PatternMatcher) Compile(pattern string) (CompiledPattern, error) {
	if pattern == "" {
		return nil, errors.New("empty pattern")
	}
	if strings.Contains(pattern, "..") || strings.HasPrefix(pattern, ".") || strings.HasSuffix(pattern, ".") {
		return nil, errors.New("malformed pattern: " + pattern)
	}
	return &compiledPattern{pattern: pattern, matcher: pm}, nil
}

// CompiledPattern is a pre-compiled pattern for efficient matching.
type CompiledPattern interface {
	Match(eventType string) bool
}

type compiledPattern struct {
	pattern string
	matcher *PatternMatcher
}

func (cp *compiledPattern) Match(eventType string) bool {
	return cp.matcher.Match(eventType, cp.pattern)
}
