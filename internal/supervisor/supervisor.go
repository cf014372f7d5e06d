// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package supervisor runs registered projects and drives their status
// through stopped, starting, running, stopping and error.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/relief/internal/config"
	"github.com/wingedpig/relief/internal/events"
	"github.com/wingedpig/relief/internal/logstore"
	"github.com/wingedpig/relief/internal/ports"
	"github.com/wingedpig/relief/internal/process"
	"github.com/wingedpig/relief/internal/registry"
)

const (
	defaultStopTimeout   = 10 * time.Second
	defaultReadyTimeout  = 30 * time.Second
	defaultReadyGrace    = 500 * time.Millisecond
	defaultProbeInterval = 200 * time.Millisecond

	// crashContextLines is how much output the crash analyzer sees.
	crashContextLines = 100
)

var errExitedEarly = errors.New("process exited before becoming ready")

// ProxyRefresher regenerates the routing table after a topology change.
type ProxyRefresher interface {
	Refresh(ctx context.Context) error
}

// Preflight runs before a project is spawned. An error aborts the start
// and leaves the project where it was.
type Preflight func(ctx context.Context, p registry.Project) error

// Config wires a Supervisor. Zero durations use the defaults.
type Config struct {
	Registry  *registry.Registry
	Runner    process.Runner
	Inspector ports.Inspector
	Logs      *logstore.Store
	Proxy     ProxyRefresher   // optional
	Bus       events.Publisher // optional
	Preflight Preflight        // optional

	StopTimeout   time.Duration
	ReadyTimeout  time.Duration
	ReadyGrace    time.Duration
	ProbeInterval time.Duration
	TTY           bool   // run every project under a pty
	ConfigDir     string // exposed to command templates as .Config.Dir
}

// Timings are the supervision durations that can change on config reload.
type Timings struct {
	StopTimeout  time.Duration
	ReadyTimeout time.Duration
	ReadyGrace   time.Duration
}

// Supervisor starts, stops and watches project processes. Lifecycle
// operations hold the registry's per-project operation lock, so one
// project never has two operations in flight while different projects
// proceed in parallel.
type Supervisor struct {
	reg       *registry.Registry
	runner    process.Runner
	inspector ports.Inspector
	logs      *logstore.Store
	proxy     ProxyRefresher
	bus       events.Publisher
	preflight Preflight
	analyzer  *CrashAnalyzer
	expander  *config.TemplateExpander

	probeInterval time.Duration
	tty           bool
	configDir     string

	mu       sync.Mutex
	timings  Timings
	attached map[string]*attachment
	claims   map[int]*portClaim
}

// attachment is a live process owned by a project.
type attachment struct {
	handle   process.Handle
	port     int
	command  string
	firstLog int64 // last log ID before the spawn
}

func (a *attachment) exited() bool {
	select {
	case <-a.handle.Done():
		return true
	default:
		return false
	}
}

// portClaim reserves a port for a project from the port check until the
// process is detached. attachment is nil while the spawn is in progress.
type portClaim struct {
	project    string
	attachment *attachment
}

// New creates a supervisor.
func New(cfg Config) *Supervisor {
	s := &Supervisor{
		reg:           cfg.Registry,
		runner:        cfg.Runner,
		inspector:     cfg.Inspector,
		logs:          cfg.Logs,
		proxy:         cfg.Proxy,
		bus:           cfg.Bus,
		preflight:     cfg.Preflight,
		analyzer:      NewCrashAnalyzer(),
		expander:      config.NewTemplateExpander(),
		probeInterval: cfg.ProbeInterval,
		tty:           cfg.TTY,
		configDir:     cfg.ConfigDir,
		attached:      make(map[string]*attachment),
		claims:        make(map[int]*portClaim),
	}
	if s.bus == nil {
		s.bus = events.Discard
	}
	if s.probeInterval <= 0 {
		s.probeInterval = defaultProbeInterval
	}
	s.SetTimings(Timings{
		StopTimeout:  cfg.StopTimeout,
		ReadyTimeout: cfg.ReadyTimeout,
		ReadyGrace:   cfg.ReadyGrace,
	})
	return s
}

// SetTimings replaces the supervision durations for later operations.
func (s *Supervisor) SetTimings(t Timings) {
	if t.StopTimeout <= 0 {
		t.StopTimeout = defaultStopTimeout
	}
	if t.ReadyTimeout <= 0 {
		t.ReadyTimeout = defaultReadyTimeout
	}
	if t.ReadyGrace <= 0 {
		t.ReadyGrace = defaultReadyGrace
	}
	s.mu.Lock()
	s.timings = t
	s.mu.Unlock()
}

// Timings returns the current supervision durations.
func (s *Supervisor) Timings() Timings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timings
}

// Start launches a project and waits until it is ready. Starting a project
// that already has a live process is a no-op. A port held by another
// process aborts with *ports.ConflictError and leaves the project stopped.
func (s *Supervisor) Start(ctx context.Context, id string) (registry.Project, error) {
	unlock, err := s.reg.Lock(id)
	if err != nil {
		return registry.Project{}, err
	}
	defer unlock()
	return s.start(ctx, id)
}

// Stop terminates a project's process, escalating to SIGKILL after the
// stop timeout. Stopping a stopped project is a no-op.
func (s *Supervisor) Stop(ctx context.Context, id string) (registry.Project, error) {
	unlock, err := s.reg.Lock(id)
	if err != nil {
		return registry.Project{}, err
	}
	defer unlock()
	return s.stop(ctx, id)
}

// Restart stops then starts a project as one operation. A failed stop
// aborts the restart.
func (s *Supervisor) Restart(ctx context.Context, id string) (registry.Project, error) {
	unlock, err := s.reg.Lock(id)
	if err != nil {
		return registry.Project{}, err
	}
	defer unlock()

	if p, err := s.stop(ctx, id); err != nil {
		return p, err
	}
	return s.start(ctx, id)
}

func (s *Supervisor) start(ctx context.Context, id string) (registry.Project, error) {
	p, err := s.reg.Get(id)
	if err != nil {
		return p, err
	}

	if a := s.attachment(id); a != nil {
		if a.exited() {
			// The watcher has not caught up with the exit yet.
			s.reap(ctx, id, a)
		} else if p.Status == registry.StatusRunning || p.Status == registry.StatusStarting {
			return p, nil
		} else {
			return p, &registry.ProjectBusyError{ID: id, Name: p.Name, Status: p.Status}
		}
		if p, err = s.reg.Get(id); err != nil {
			return p, err
		}
	}

	// Recorded as active without a process we own.
	if p.Status.IsActive() {
		if p, err = s.reg.UpdateStatus(id, registry.StatusStopped); err != nil {
			return p, err
		}
	}

	if s.preflight != nil {
		if err := s.preflight(ctx, p); err != nil {
			return p, err
		}
		if p, err = s.reg.Get(id); err != nil {
			return p, err
		}
	}

	spec, err := s.buildSpec(p)
	if err != nil {
		return p, fmt.Errorf("%s: %w", p.Name, err)
	}

	if p.Port > 0 {
		conflict, err := s.claimPort(ctx, p)
		if err != nil {
			return p, err
		}
		if conflict != nil {
			log.Printf("Project %s: port %d is in use by PID %d (%s)", p.Name, conflict.Port, conflict.PID, conflict.Command)
			return p, &ports.ConflictError{Conflict: *conflict}
		}
	}

	firstLog := s.logs.LastID(id)
	if p, err = s.reg.UpdateStatus(id, registry.StatusStarting, registry.WithLastError("")); err != nil {
		s.releaseClaim(p.Port, id)
		return p, err
	}
	s.publish(ctx, events.EventProjectStarting, p, nil)

	handle, err := s.runner.Start(ctx, spec)
	if err != nil {
		s.releaseClaim(p.Port, id)
		spawnErr := &ProcessSpawnError{Project: p.Name, Err: err}
		log.Printf("Project %s failed to start: %v", p.Name, err)
		s.logs.Append(id, logstore.LevelError, "[relief] "+spawnErr.Error())
		p, _ = s.reg.UpdateStatus(id, registry.StatusError, registry.WithPID(0), registry.WithLastError(err.Error()))
		s.publish(ctx, events.EventProjectFailed, p, map[string]interface{}{"error": err.Error()})
		return p, spawnErr
	}

	a := &attachment{handle: handle, port: p.Port, command: spec.Command, firstLog: firstLog}
	s.attach(id, a)
	go s.watch(id, a)

	p, _ = s.reg.UpdateStatus(id, registry.StatusStarting, registry.WithPID(handle.PID()))
	log.Printf("Project %s starting (PID %d)", p.Name, handle.PID())

	if err := s.awaitReady(ctx, p, handle); err != nil {
		return s.abortStart(ctx, id, a, err)
	}

	p, _ = s.reg.UpdateStatus(id, registry.StatusRunning)
	log.Printf("Project %s started (PID %d)", p.Name, p.PID)
	s.publish(ctx, events.EventProjectStarted, p, nil)
	s.refreshProxy(ctx)
	return p, nil
}

// awaitReady waits until the process has stayed alive for the grace window
// and, when the project has a port, something accepts connections on it.
func (s *Supervisor) awaitReady(ctx context.Context, p registry.Project, h process.Handle) error {
	t := s.Timings()
	deadline := time.NewTimer(t.ReadyTimeout)
	defer deadline.Stop()
	grace := time.NewTimer(t.ReadyGrace)
	defer grace.Stop()

	timeout := &ReadyTimeoutError{Project: p.Name, Port: p.Port, Timeout: t.ReadyTimeout}

	select {
	case <-h.Done():
		return errExitedEarly
	case <-deadline.C:
		return timeout
	case <-ctx.Done():
		return ctx.Err()
	case <-grace.C:
	}

	if p.Port <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()
	for {
		if s.inspector.Listening(p.Port) {
			select {
			case <-h.Done():
				return errExitedEarly
			default:
				return nil
			}
		}
		select {
		case <-h.Done():
			return errExitedEarly
		case <-deadline.C:
			return timeout
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// abortStart cleans up after a start that never reached running.
func (s *Supervisor) abortStart(ctx context.Context, id string, a *attachment, cause error) (registry.Project, error) {
	if errors.Is(cause, errExitedEarly) {
		s.detach(id, a)
		summary := s.crashSummary(id, a)
		p, _ := s.reg.UpdateStatus(id, registry.StatusError, registry.WithPID(0), registry.WithLastError(summary))
		log.Printf("Project %s crashed during startup: %s", p.Name, summary)
		s.publish(ctx, events.EventProjectCrashed, p, map[string]interface{}{"error": summary})
		return p, &ProcessCrashedError{Project: p.Name, Summary: summary, Err: a.handle.Err()}
	}

	stopCtx := context.WithoutCancel(ctx)
	s.logs.Append(id, logstore.LevelError, "[relief] "+cause.Error())
	if err := a.handle.Stop(stopCtx, s.Timings().StopTimeout); err != nil {
		log.Printf("Project %s: stop after failed start: %v", id, err)
	}
	s.detach(id, a)

	if ctx.Err() != nil {
		p, _ := s.reg.UpdateStatus(id, registry.StatusStopped)
		log.Printf("Project %s start canceled", p.Name)
		return p, cause
	}

	p, _ := s.reg.UpdateStatus(id, registry.StatusError, registry.WithPID(0), registry.WithLastError(cause.Error()))
	log.Printf("Project %s failed to become ready: %v", p.Name, cause)
	s.publish(stopCtx, events.EventProjectFailed, p, map[string]interface{}{"error": cause.Error()})
	return p, cause
}

func (s *Supervisor) stop(ctx context.Context, id string) (registry.Project, error) {
	p, err := s.reg.Get(id)
	if err != nil {
		return p, err
	}

	a := s.attachment(id)
	if a == nil {
		if p.Status == registry.StatusStopped {
			return p, nil
		}
		// error, or active without a process we own
		return s.reg.UpdateStatus(id, registry.StatusStopped)
	}

	if p, err = s.reg.UpdateStatus(id, registry.StatusStopping); err != nil {
		return p, err
	}
	log.Printf("Stopping project %s (PID %d)", p.Name, p.PID)

	if err := a.handle.Stop(ctx, s.Timings().StopTimeout); err != nil {
		// The process may still be alive, so it stays attached.
		p, _ = s.reg.UpdateStatus(id, registry.StatusError, registry.WithLastError(fmt.Sprintf("stop failed: %v", err)))
		return p, fmt.Errorf("stop %s: %w", p.Name, err)
	}
	s.detach(id, a)

	p, _ = s.reg.UpdateStatus(id, registry.StatusStopped)
	log.Printf("Project %s stopped", p.Name)
	s.publish(ctx, events.EventProjectStopped, p, nil)
	s.refreshProxy(ctx)
	return p, nil
}

// watch waits for a process to exit and records an exit that no
// lifecycle operation asked for.
func (s *Supervisor) watch(id string, a *attachment) {
	<-a.handle.Done()

	unlock, err := s.reg.Lock(id)
	if err != nil {
		s.detach(id, a)
		return
	}
	defer unlock()

	if s.attachment(id) != a {
		return
	}
	s.reap(context.Background(), id, a)
}

// reap records the exit of an attached process. The caller holds the
// project's operation lock.
func (s *Supervisor) reap(ctx context.Context, id string, a *attachment) {
	s.detach(id, a)

	exitErr := a.handle.Err()
	if exitErr == nil {
		p, _ := s.reg.UpdateStatus(id, registry.StatusStopped)
		log.Printf("Project %s exited", p.Name)
		s.publish(ctx, events.EventProjectStopped, p, nil)
	} else {
		summary := s.crashSummary(id, a)
		p, _ := s.reg.UpdateStatus(id, registry.StatusError, registry.WithPID(0), registry.WithLastError(summary))
		log.Printf("Project %s crashed: %s", p.Name, summary)
		s.publish(ctx, events.EventProjectCrashed, p, map[string]interface{}{"error": summary})
	}
	s.refreshProxy(ctx)
}

func (s *Supervisor) crashSummary(id string, a *attachment) string {
	entries := s.logs.Since(id, a.firstLog)
	if len(entries) > crashContextLines {
		entries = entries[len(entries)-crashContextLines:]
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Message
	}

	exitErr := a.handle.Err()
	result := s.analyzer.Analyze(lines, exitErr)
	if exitErr == nil && result.Reason == CrashReasonNone {
		return errExitedEarly.Error()
	}
	return result.Summary()
}

// Kill terminates a process by pid. A pid that belongs to a supervised
// project is stopped through the supervisor so its status follows.
func (s *Supervisor) Kill(ctx context.Context, pid int) error {
	if id := s.ownerOf(pid); id != "" {
		log.Printf("Killing PID %d of project %s", pid, id)
		_, err := s.Stop(ctx, id)
		return err
	}
	log.Printf("Killing PID %d", pid)
	return s.inspector.Kill(ctx, pid)
}

// CleanupOrphans resets projects left active by a previous run. A recorded
// process that is still alive and still holds the project port is killed.
func (s *Supervisor) CleanupOrphans(ctx context.Context) {
	for _, p := range s.reg.List() {
		if p.PID == 0 && !p.Status.IsActive() {
			continue
		}
		if s.attachment(p.ID) != nil {
			continue
		}

		if p.PID > 0 && p.Port > 0 && s.inspector.Alive(p.PID) {
			conflict, err := s.inspector.Check(ctx, p.Port)
			if err == nil && conflict != nil && conflict.PID == p.PID {
				log.Printf("Killing orphaned process %d of project %s", p.PID, p.Name)
				if err := s.inspector.Kill(ctx, p.PID); err != nil {
					log.Printf("Project %s: failed to kill orphan %d: %v", p.Name, p.PID, err)
				}
			}
		}

		status := registry.StatusStopped
		if p.Status == registry.StatusError {
			status = registry.StatusError
		}
		if _, err := s.reg.UpdateStatus(p.ID, status, registry.WithPID(0)); err != nil {
			log.Printf("Project %s: reset status: %v", p.Name, err)
		}
	}
}

// StopAll stops every attached project in parallel.
func (s *Supervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.attached))
	for id := range s.attached {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := s.Stop(ctx, id)
			if errors.Is(err, registry.ErrProjectNotFound) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Attached reports whether a project currently owns a live process.
func (s *Supervisor) Attached(id string) bool {
	a := s.attachment(id)
	return a != nil && !a.exited()
}

func (s *Supervisor) buildSpec(p registry.Project) (process.Spec, error) {
	tctx := &config.TemplateContext{
		Project: config.ProjectTemplateData{Name: p.Name, Path: p.Path, Domain: p.Domain, Port: p.Port},
		Config:  config.ConfigTemplateData{Dir: s.configDir},
	}

	command := p.DevCommand()
	if p.UsesContainerImage() {
		command = p.Scripts["dev"]
	}
	command, err := s.expander.Expand(command, tctx)
	if err != nil {
		return process.Spec{}, fmt.Errorf("expand command: %w", err)
	}
	env, err := s.expander.ExpandEnv(p.Env, tctx)
	if err != nil {
		return process.Spec{}, fmt.Errorf("expand env: %w", err)
	}

	id := p.ID
	spec := process.Spec{
		Name:    p.Name,
		Command: command,
		Dir:     p.Path,
		Env:     env,
		Port:    p.Port,
		TTY:     p.TTY || s.tty,
		Output: func(line string) {
			s.logs.Write(id, line)
		},
	}
	if p.UsesContainerImage() {
		spec.Image = p.Image
	}
	return spec, nil
}

// claimWait bounds how long claimPort waits for another project's
// in-flight spawn to produce a PID.
const claimWait = 5 * time.Second

// claimPort reserves p.Port for p, first against other supervised
// projects and then against the live OS state.
func (s *Supervisor) claimPort(ctx context.Context, p registry.Project) (*ports.Conflict, error) {
	deadline := time.Now().Add(claimWait)
	for {
		conflict, pending := s.reserve(p)
		if !pending || time.Now().After(deadline) {
			if conflict != nil {
				return conflict, nil
			}
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.probeInterval):
		}
	}

	conflict, err := s.inspector.Check(ctx, p.Port)
	if err != nil || conflict != nil {
		s.releaseClaim(p.Port, p.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("check port %d: %w", p.Port, err)
	}
	return conflict, nil
}

// reserve records p's claim on its port unless another project holds it.
// pending is true while the holder's process has not been spawned yet; the
// conflict then has no PID.
func (s *Supervisor) reserve(p registry.Project) (conflict *ports.Conflict, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.claims[p.Port]; ok && c.project != p.ID {
		switch {
		case c.attachment == nil:
			return &ports.Conflict{Port: p.Port}, true
		case !c.attachment.exited():
			return &ports.Conflict{Port: p.Port, PID: c.attachment.handle.PID(), Command: c.attachment.command}, false
		}
	}
	s.claims[p.Port] = &portClaim{project: p.ID}
	return nil, false
}

func (s *Supervisor) releaseClaim(port int, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.claims[port]; ok && c.project == id && c.attachment == nil {
		delete(s.claims, port)
	}
}

func (s *Supervisor) attach(id string, a *attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached[id] = a
	if c, ok := s.claims[a.port]; ok && c.project == id {
		c.attachment = a
	}
}

func (s *Supervisor) detach(id string, a *attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached[id] == a {
		delete(s.attached, id)
	}
	if c, ok := s.claims[a.port]; ok && c.attachment == a {
		delete(s.claims, a.port)
	}
}

func (s *Supervisor) attachment(id string) *attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached[id]
}

func (s *Supervisor) ownerOf(pid int) string {
	if pid <= 0 {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.attached {
		if a.handle.PID() == pid {
			return id
		}
	}
	return ""
}

func (s *Supervisor) refreshProxy(ctx context.Context) {
	if s.proxy == nil {
		return
	}
	if err := s.proxy.Refresh(context.WithoutCancel(ctx)); err != nil {
		log.Printf("Proxy refresh failed: %v", err)
	}
}

func (s *Supervisor) publish(ctx context.Context, eventType string, p registry.Project, extra map[string]interface{}) {
	payload := map[string]interface{}{
		"name":   p.Name,
		"status": string(p.Status),
		"port":   p.Port,
	}
	if p.PID > 0 {
		payload["pid"] = p.PID
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.bus.Publish(context.WithoutCancel(ctx), events.Event{Type: eventType, Project: p.ID, Payload: payload}); err != nil {
		log.Printf("Project %s: publish %s: %v", p.Name, eventType, err)
	}
}
