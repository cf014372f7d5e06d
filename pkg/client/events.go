// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// EventClient provides access to the Relief event log.
//
// Events track activity such as project starts, crashes, proxy updates and
// config reloads.
//
// Access this client through [Client.Events]:
//
//	events, err := client.Events.List(ctx, &client.ListOptions{Limit: 50})
type EventClient struct {
	c *Client
}

// ListOptions configures event listing.
type ListOptions struct {
	// Limit is the maximum number of events to return.
	Limit int

	// Types filters to these event types. Wildcards such as "project.*"
	// are allowed.
	Types []string

	// Project filters to events of this project ID.
	Project string

	// Since filters to events after this time.
	Since time.Time
}

// List returns recent events from the event log, newest first.
func (e *EventClient) List(ctx context.Context, opts *ListOptions) ([]Event, error) {
	path := "/api/v1/events"

	if opts != nil {
		params := url.Values{}
		if opts.Limit > 0 {
			params.Set("limit", fmt.Sprintf("%d", opts.Limit))
		}
		for _, t := range opts.Types {
			params.Add("type", t)
		}
		if opts.Project != "" {
			params.Set("project", opts.Project)
		}
		if !opts.Since.IsZero() {
			params.Set("since", opts.Since.Format(time.RFC3339))
		}
		if len(params) > 0 {
			path += "?" + params.Encode()
		}
	}

	data, err := e.c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	return decode[[]Event](data, "events")
}

// Stream calls fn with each new event matching pattern ("" for all) until
// ctx is cancelled or fn returns an error.
func (e *EventClient) Stream(ctx context.Context, pattern string, fn func(Event) error) error {
	path := "/api/v1/events/ws"
	if pattern != "" {
		path += "?pattern=" + url.QueryEscape(pattern)
	}
	return streamJSON(ctx, e.c, path, fn)
}
