// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the event bus for Relief.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Project   string                 `json:"project,omitempty"` // Project ID, empty for global events
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types   []string  // Event types to match (supports wildcards)
	Project string    // Filter by project ID
	Since   time.Time // Events after this time
	Limit   int       // Maximum events to return, newest kept
}

// Publisher emits events. Components that only publish depend on this.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	Publisher

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Event types
const (
	EventProjectAdded    = "project.added"
	EventProjectRemoved  = "project.removed"
	EventProjectStarting = "project.starting"
	EventProjectStarted  = "project.started"
	EventProjectStopped  = "project.stopped"
	EventProjectCrashed  = "project.crashed"
	EventProjectFailed   = "project.failed"

	EventProxyApplied = "proxy.applied"
	EventProxyFailed  = "proxy.failed"

	EventServiceStarted = "service.started"
	EventServiceStopped = "service.stopped"
	EventServiceCrashed = "service.crashed"

	EventScriptFinished = "script.finished"

	EventConfigReloaded = "config.reloaded"
	EventGitSynced      = "git.synced"
)

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }
