// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

// API version constants.
//
// Relief uses Stripe-style date-based API versioning. Each version represents
// the API as it existed on that date. When making a request, the client sends
// the version via the Relief-Version header.
const (
	// LatestVersion is the current API version.
	LatestVersion = Version20260601

	// Version20260601 reports port conflicts with a readable message and
	// structured details.
	Version20260601 = "2026-06-01"

	// Version20260117 is the initial API version. Port conflicts arrive as
	// the message PORT_IN_USE:<port>:<pid>:<command>.
	Version20260117 = "2026-01-17"
)

// VersionHeader is the HTTP header used to specify the API version.
const VersionHeader = "Relief-Version"
