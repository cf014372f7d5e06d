// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wingedpig/relief/internal/ports"
	"github.com/wingedpig/relief/internal/process"
	"github.com/wingedpig/relief/internal/proxy"
)

// fakeHandle exits when stopped.
type fakeHandle struct {
	pid    int
	done   chan struct{}
	once   sync.Once
	onExit func()

	mu      sync.Mutex
	stopped bool
}

func (h *fakeHandle) PID() int              { return h.pid }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }
func (h *fakeHandle) Err() error            { return nil }

func (h *fakeHandle) StopRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

func (h *fakeHandle) Stop(ctx context.Context, timeout time.Duration) error {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.exit()
	return nil
}

func (h *fakeHandle) exit() {
	h.once.Do(func() {
		if h.onExit != nil {
			h.onExit()
		}
		close(h.done)
	})
}

// fakeRunner starts handles that bind their port on the fake inspector.
type fakeRunner struct {
	inspector *fakeInspector

	mu      sync.Mutex
	nextPID int
	starts  int
}

func (r *fakeRunner) Start(ctx context.Context, spec process.Spec) (process.Handle, error) {
	r.mu.Lock()
	r.nextPID++
	r.starts++
	h := &fakeHandle{pid: 5000 + r.nextPID, done: make(chan struct{})}
	r.mu.Unlock()

	spec.Output("listening on " + fmt.Sprint(spec.Port))
	if spec.Port > 0 {
		r.inspector.listen(spec.Port, h.pid, spec.Command)
		port, pid := spec.Port, h.pid
		h.onExit = func() { r.inspector.release(port, pid) }
	}
	return h, nil
}

func (r *fakeRunner) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// fakeInspector tracks listening ports in memory.
type fakeInspector struct {
	mu        sync.Mutex
	listeners map[int]int
	commands  map[int]string
	alive     map[int]bool
}

func newFakeInspector() *fakeInspector {
	return &fakeInspector{
		listeners: make(map[int]int),
		commands:  make(map[int]string),
		alive:     make(map[int]bool),
	}
}

func (i *fakeInspector) listen(port, pid int, command string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.listeners[port] = pid
	i.commands[pid] = command
	i.alive[pid] = true
}

func (i *fakeInspector) release(port, pid int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.listeners[port] == pid {
		delete(i.listeners, port)
	}
	delete(i.alive, pid)
}

func (i *fakeInspector) Check(ctx context.Context, port int) (*ports.Conflict, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	pid, ok := i.listeners[port]
	if !ok {
		return nil, nil
	}
	return &ports.Conflict{Port: port, PID: pid, Command: i.commands[pid]}, nil
}

func (i *fakeInspector) Listening(port int) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.listeners[port]
	return ok
}

func (i *fakeInspector) Alive(pid int) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.alive[pid]
}

func (i *fakeInspector) Kill(ctx context.Context, pid int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.alive[pid] {
		return fmt.Errorf("%w: %d", ports.ErrProcessNotFound, pid)
	}
	for port, p := range i.listeners {
		if p == pid {
			delete(i.listeners, port)
		}
	}
	delete(i.alive, pid)
	return nil
}

// memoryBackend records the applied table.
type memoryBackend struct {
	mu      sync.Mutex
	routes  []proxy.Route
	applies int
}

func (b *memoryBackend) Name() string                    { return "memory" }
func (b *memoryBackend) Start(ctx context.Context) error { return nil }
func (b *memoryBackend) Stop(ctx context.Context) error  { return nil }
func (b *memoryBackend) Healthy() bool                   { return true }

func (b *memoryBackend) Apply(ctx context.Context, routes []proxy.Route) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes = append([]proxy.Route(nil), routes...)
	b.applies++
	return nil
}

func (b *memoryBackend) table() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.routes))
	for _, r := range b.routes {
		out[r.Domain] = r.Upstream
	}
	return out
}
