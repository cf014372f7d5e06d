// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wingedpig/relief/internal/ports"
	"github.com/wingedpig/relief/internal/process"
	"github.com/wingedpig/relief/internal/registry"
)

// fakeHandle is a process that exits when told to.
type fakeHandle struct {
	pid  int
	done chan struct{}
	once sync.Once

	mu            sync.Mutex
	err           error
	stopRequested bool
	onExit        func()
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, done: make(chan struct{})}
}

func (h *fakeHandle) exit(err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.err = err
		onExit := h.onExit
		h.mu.Unlock()
		if onExit != nil {
			onExit()
		}
		close(h.done)
	})
}

func (h *fakeHandle) PID() int              { return h.pid }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *fakeHandle) StopRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopRequested
}

func (h *fakeHandle) Stop(ctx context.Context, timeout time.Duration) error {
	h.mu.Lock()
	h.stopRequested = true
	h.mu.Unlock()
	h.exit(&process.ExitError{Code: -1, Signal: "terminated"})
	return nil
}

type runMode int

const (
	modeBind   runMode = iota // listens on its port right away
	modeSilent                // never listens
	modeCrash                 // panics right after starting
)

// fakeRunner starts fakeHandles and binds their ports on the fake inspector.
type fakeRunner struct {
	inspector *fakeInspector

	mu       sync.Mutex
	nextPID  int
	mode     runMode
	startErr error
	handles  []*fakeHandle
	specs    []process.Spec
}

func newFakeRunner(inspector *fakeInspector) *fakeRunner {
	return &fakeRunner{inspector: inspector, nextPID: 1000}
}

func (r *fakeRunner) setMode(m runMode) {
	r.mu.Lock()
	r.mode = m
	r.mu.Unlock()
}

func (r *fakeRunner) Start(ctx context.Context, spec process.Spec) (process.Handle, error) {
	r.mu.Lock()
	if r.startErr != nil {
		err := r.startErr
		r.mu.Unlock()
		return nil, err
	}
	r.nextPID++
	h := newFakeHandle(r.nextPID)
	mode := r.mode
	r.handles = append(r.handles, h)
	r.specs = append(r.specs, spec)
	r.mu.Unlock()

	spec.Output("booting " + spec.Name)

	switch mode {
	case modeBind:
		if spec.Port > 0 {
			r.inspector.listen(spec.Port, h.pid, spec.Command)
			port, pid := spec.Port, h.pid
			h.onExit = func() { r.inspector.release(port, pid) }
		}
	case modeCrash:
		go func() {
			spec.Output("panic: assignment to entry in nil map")
			spec.Output("goroutine 1 [running]:")
			spec.Output("main.main()")
			spec.Output("\t/src/app/main.go:12 +0x1d")
			h.exit(&process.ExitError{Code: 2})
		}()
	}
	return h, nil
}

func (r *fakeRunner) starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *fakeRunner) last() *fakeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[len(r.handles)-1]
}

func (r *fakeRunner) lastSpec() process.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.specs[len(r.specs)-1]
}

// fakeInspector is an in-memory view of listening ports.
type fakeInspector struct {
	mu        sync.Mutex
	listeners map[int]int // port -> pid
	commands  map[int]string
	alive     map[int]bool
	killed    []int

	// When hold is set, Check signals entered and blocks until hold closes.
	hold    chan struct{}
	entered chan struct{}
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
	hold, entered := i.hold, i.entered
	i.mu.Unlock()
	if hold != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-hold
	}

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
	i.killed = append(i.killed, pid)
	return nil
}

func (i *fakeInspector) killedPIDs() []int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]int(nil), i.killed...)
}

// fakeProxy rebuilds a domain -> upstream table from running projects.
type fakeProxy struct {
	reg *registry.Registry

	mu        sync.Mutex
	routes    map[string]string
	refreshes int
	err       error
}

func (p *fakeProxy) Refresh(ctx context.Context) error {
	routes := make(map[string]string)
	for _, proj := range p.reg.List() {
		if proj.Status == registry.StatusRunning && proj.Port > 0 {
			routes[proj.Domain] = fmt.Sprintf("localhost:%d", proj.Port)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	if p.err != nil {
		return p.err
	}
	p.routes = routes
	return nil
}

func (p *fakeProxy) table() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.routes))
	for k, v := range p.routes {
		out[k] = v
	}
	return out
}

func (p *fakeProxy) domains() []string {
	var out []string
	for d := range p.table() {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

var errPreflight = errors.New("node >=18.0.0 not found")
