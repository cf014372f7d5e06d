// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"strconv"
)

// LogClient provides access to captured project output.
//
// Every line a project writes to stdout or stderr is kept in a bounded
// per-project buffer, classified by level.
//
// Access this client through [Client.Logs]:
//
//	entries, err := client.Logs.Tail(ctx, projectID, 200)
type LogClient struct {
	c *Client
}

// Tail returns up to lines of the most recent entries, oldest first. A
// negative value asks for the server default.
func (l *LogClient) Tail(ctx context.Context, projectID string, lines int) ([]LogEntry, error) {
	path := projectPath(projectID) + "/logs"
	if lines >= 0 {
		path += "?lines=" + strconv.Itoa(lines)
	}

	data, err := l.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	resp, err := decode[struct {
		Entries []LogEntry `json:"entries"`
	}](data, "log entries")
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Follow streams the last lines entries followed by every new entry until
// ctx is cancelled or fn returns an error. It returns nil when the server
// ends the stream, which happens when the project is removed.
func (l *LogClient) Follow(ctx context.Context, projectID string, lines int, fn func(LogEntry) error) error {
	if lines < 0 {
		lines = 0
	}
	path := fmt.Sprintf("%s/logs/ws?lines=%d", projectPath(projectID), lines)
	return streamJSON(ctx, l.c, path, fn)
}
