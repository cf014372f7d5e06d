// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"sync"
	"time"
)

// DefaultDebounce is used when no positive duration is given.
const DefaultDebounce = 250 * time.Millisecond

// Debouncer coalesces bursts of calls per key into one call that runs
// once the key has been quiet for the debounce duration.
type Debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	seq      uint64
	pending  map[string]*pendingCall
}

type pendingCall struct {
	timer *time.Timer
	gen   uint64
}

// NewDebouncer creates a debouncer. A non-positive duration uses 250ms.
func NewDebouncer(duration time.Duration) *Debouncer {
	if duration <= 0 {
		duration = DefaultDebounce
	}
	return &Debouncer{duration: duration, pending: make(map[string]*pendingCall)}
}

// Debounce schedules fn for key, replacing any call still pending for it.
// Only the most recent fn runs.
func (d *Debouncer) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pending[key]
	if !ok {
		p = &pendingCall{}
		d.pending[key] = p
	} else {
		p.timer.Stop()
	}
	d.seq++
	p.gen = d.seq
	gen := p.gen
	p.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		// A timer that fired while being replaced is stale.
		if cur, ok := d.pending[key]; !ok || cur.gen != gen {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()
		fn()
	})
}

// Pending reports whether a call for key is waiting to run.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Cancel drops the pending call for key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// Stop drops every pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// SetDuration changes the quiet period for calls scheduled afterwards.
func (d *Debouncer) SetDuration(duration time.Duration) {
	if duration <= 0 {
		duration = DefaultDebounce
	}
	d.mu.Lock()
	d.duration = duration
	d.mu.Unlock()
}
