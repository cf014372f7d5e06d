// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package version implements date-based API versioning for the Relief API.
//
// Clients pin a version with the Relief-Version header. When no header is
// provided, the latest version is used.
//
// When making breaking changes:
//  1. Add a version constant with today's date
//  2. Point LatestVersion at it
//  3. Register a transformer that maps new responses back for the older version
package version

import "context"

// Version constants. Add new versions here when making breaking changes.
const (
	// Version20260117 is the initial API version. Port conflicts are
	// reported as PORT_IN_USE:<port>:<pid>:<command> messages.
	Version20260117 = "2026-01-17"

	// Version20260601 reports port conflicts with a readable message and
	// structured details.
	Version20260601 = "2026-06-01"
)

// LatestVersion is the current default API version.
var LatestVersion = Version20260601

// Header is the HTTP header used to specify the API version.
const Header = "Relief-Version"

type contextKey string

const versionKey contextKey = "api-version"

// FromContext returns the API version from the context.
// Returns LatestVersion if not set.
func FromContext(ctx context.Context) string {
	v, ok := ctx.Value(versionKey).(string)
	if !ok || v == "" {
		return LatestVersion
	}
	return v
}

// WithContext returns a new context with the API version set.
func WithContext(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, versionKey, version)
}
