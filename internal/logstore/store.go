// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logstore keeps bounded per-project logs of captured process output.
package logstore

import (
	"strings"
	"sync"
	"time"
)

const defaultCapacity = 1000

// Entry is one captured log line.
type Entry struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"project_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Store holds one ring buffer per project. Writers to different projects
// only share the read side of the index lock.
type Store struct {
	mu       sync.RWMutex
	buffers  map[string]*buffer
	capacity int
	now      func() time.Time
}

// NewStore creates a store retaining capacity entries per project.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Store{
		buffers:  make(map[string]*buffer),
		capacity: capacity,
		now:      time.Now,
	}
}

// Capacity returns the per-project entry limit.
func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) buffer(projectID string, create bool) *buffer {
	s.mu.RLock()
	b := s.buffers[projectID]
	s.mu.RUnlock()
	if b != nil || !create {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b = s.buffers[projectID]; b == nil {
		b = newBuffer(s.capacity)
		s.buffers[projectID] = b
	}
	return b
}

// Append stores a message with an explicit level and returns the entry.
// Known level spellings are normalized; others are kept as given.
func (s *Store) Append(projectID, level, message string) Entry {
	if level == "" {
		level = LevelInfo
	}
	return s.buffer(projectID, true).append(Entry{
		ProjectID: projectID,
		Level:     NormalizeLevel(level),
		Message:   message,
		Timestamp: s.now(),
	})
}

// Write stores one output line, classifying its level from the content.
func (s *Store) Write(projectID, line string) Entry {
	line = strings.TrimRight(line, "\r\n")
	return s.Append(projectID, ClassifyLevel(line), line)
}

// WriteLines splits content by newlines and stores each line.
func (s *Store) WriteLines(projectID, content string) {
	if content == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
		s.Write(projectID, line)
	}
}

// Tail returns the last n entries in ascending ID order.
func (s *Store) Tail(projectID string, n int) []Entry {
	b := s.buffer(projectID, false)
	if b == nil {
		return []Entry{}
	}
	return b.tail(n)
}

// Since returns retained entries with IDs greater than afterID.
func (s *Store) Since(projectID string, afterID int64) []Entry {
	b := s.buffer(projectID, false)
	if b == nil {
		return []Entry{}
	}
	return b.since(afterID)
}

// LastID returns the ID of the newest entry, or 0 when nothing was written.
func (s *Store) LastID(projectID string) int64 {
	b := s.buffer(projectID, false)
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextID - 1
}

// Subscribe returns a channel receiving new entries for a project and a
// cancel func. Slow subscribers miss entries rather than block writers.
func (s *Store) Subscribe(projectID string) (<-chan Entry, func()) {
	b := s.buffer(projectID, true)
	ch := make(chan Entry, 100)

	b.subMu.Lock()
	b.subscribers[ch] = struct{}{}
	b.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.subMu.Lock()
			if _, ok := b.subscribers[ch]; ok {
				delete(b.subscribers, ch)
				close(ch)
			}
			b.subMu.Unlock()
		})
	}
	return ch, cancel
}

// Clear drops retained entries. IDs keep increasing afterwards.
func (s *Store) Clear(projectID string) {
	if b := s.buffer(projectID, false); b != nil {
		b.clear()
	}
}

// Remove discards a project's log and closes its subscribers.
func (s *Store) Remove(projectID string) {
	s.mu.Lock()
	b := s.buffers[projectID]
	delete(s.buffers, projectID)
	s.mu.Unlock()
	if b != nil {
		b.closeSubscribers()
	}
}

// buffer is a fixed-capacity ring of entries with gap-free IDs.
type buffer struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	size     int
	head     int // next write position
	nextID   int64

	subMu       sync.RWMutex
	subscribers map[chan Entry]struct{}
}

func newBuffer(capacity int) *buffer {
	return &buffer{
		entries:     make([]Entry, capacity),
		capacity:    capacity,
		nextID:      1,
		subscribers: make(map[chan Entry]struct{}),
	}
}

func (b *buffer) append(e Entry) Entry {
	b.mu.Lock()
	e.ID = b.nextID
	b.nextID++
	b.entries[b.head] = e
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
	b.mu.Unlock()

	b.subMu.RLock()
	for ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
	b.subMu.RUnlock()
	return e
}

func (b *buffer) tail(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.size == 0 {
		return []Entry{}
	}
	if n > b.size {
		n = b.size
	}

	result := make([]Entry, n)
	start := (b.head - n + b.capacity) % b.capacity
	for i := 0; i < n; i++ {
		result[i] = b.entries[(start+i)%b.capacity]
	}
	return result
}

func (b *buffer) since(afterID int64) []Entry {
	b.mu.RLock()
	newest := b.nextID - 1
	b.mu.RUnlock()

	if afterID >= newest {
		return []Entry{}
	}
	want := newest - afterID
	if want > int64(b.capacity) {
		want = int64(b.capacity)
	}
	entries := b.tail(int(want))
	// A concurrent append may have shifted the window; drop anything at or below afterID.
	i := 0
	for i < len(entries) && entries[i].ID <= afterID {
		i++
	}
	return entries[i:]
}

func (b *buffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.size = 0
	b.head = 0
	for i := range b.entries {
		b.entries[i] = Entry{}
	}
}

func (b *buffer) closeSubscribers() {
	b.subMu.Lock()
	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[chan Entry]struct{})
	b.subMu.Unlock()
}
