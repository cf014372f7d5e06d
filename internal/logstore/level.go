// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logstore

import (
	"regexp"
	"strings"
)

// Levels assigned to captured lines.
const (
	LevelError = "error"
	LevelWarn  = "warn"
	LevelInfo  = "info"
	LevelDebug = "debug"
)

var (
	// level=warn, "level":"error", severity: DEBUG
	keyedLevel = regexp.MustCompile(`(?i)\b(?:level|lvl|severity)"?\s*[:=]\s*"?([a-z]+)`)
	// [ERROR], [warn], <INFO>
	bracketLevel = regexp.MustCompile(`(?i)[\[<](error|err|warning|warn|info|debug|dbg|fatal|panic|critical|trace)[\]>]`)
	// ERROR: ..., 2026-01-02 15:04:05 WARN ...
	prefixLevel = regexp.MustCompile(`(?i)^\s*(?:[\d:.\-/TZ+]+\s+){0,2}(error|err|warning|warn|info|debug|fatal|panic|critical)(?:[:\s]|$)`)
)

// NormalizeLevel maps common level spellings onto the four stored levels.
// Unrecognized values are returned unchanged.
func NormalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "trace", "trc", "debug", "dbg":
		return LevelDebug
	case "info", "inf", "information", "notice":
		return LevelInfo
	case "warn", "warning", "wrn":
		return LevelWarn
	case "error", "err", "fatal", "panic", "critical", "crit":
		return LevelError
	default:
		return level
	}
}

// ClassifyLevel picks a level for a captured output line. Explicit markers
// win; anything without one is info.
func ClassifyLevel(line string) string {
	if m := keyedLevel.FindStringSubmatch(line); m != nil {
		if lvl := NormalizeLevel(m[1]); isKnown(lvl) {
			return lvl
		}
	}
	if m := bracketLevel.FindStringSubmatch(line); m != nil {
		return NormalizeLevel(m[1])
	}
	if m := prefixLevel.FindStringSubmatch(line); m != nil {
		return NormalizeLevel(m[1])
	}
	if strings.HasPrefix(line, "panic:") || strings.HasPrefix(line, "Traceback (most recent call last)") {
		return LevelError
	}
	return LevelInfo
}

func isKnown(level string) bool {
	switch level {
	case LevelError, LevelWarn, LevelInfo, LevelDebug:
		return true
	}
	return false
}
