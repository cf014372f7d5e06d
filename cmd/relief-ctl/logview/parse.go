// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logview

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var relativePattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseSince parses a relative age ("30m", "2h", "1d") or a timestamp
// ("2026-01-15T10:00:00Z", "2026-01-15") into an absolute time.
func ParseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}

	m := relativePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid time %q (use e.g. 30m, 2h, 1d or an RFC 3339 timestamp)", s)
	}
	n, _ := strconv.Atoi(m[1])
	unit := time.Second
	switch m[2] {
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return now.Add(-time.Duration(n) * unit), nil
}

// ParseLevel parses a level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error", "err", "fatal":
		return LevelError, nil
	}
	return LevelUnset, fmt.Errorf("unknown log level: %q", s)
}

// ParseLevelFilter parses "error", "warn,error" or "info+".
func ParseLevelFilter(s string) ([]Level, Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, LevelUnset, nil
	}
	if strings.HasSuffix(s, "+") {
		level, err := ParseLevel(strings.TrimSuffix(s, "+"))
		if err != nil {
			return nil, LevelUnset, err
		}
		return nil, level, nil
	}

	var levels []Level
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		level, err := ParseLevel(part)
		if err != nil {
			return nil, LevelUnset, err
		}
		levels = append(levels, level)
	}
	return levels, LevelUnset, nil
}

// ParseFormat parses an output format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain", "text":
		return FormatPlain, nil
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "csv":
		return FormatCSV, nil
	case "raw":
		return FormatRaw, nil
	}
	return FormatPlain, fmt.Errorf("unknown output format: %q", s)
}
