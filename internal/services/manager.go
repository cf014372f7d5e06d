// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/wingedpig/relief/internal/config"
	"github.com/wingedpig/relief/internal/events"
	"github.com/wingedpig/relief/internal/logstore"
	"github.com/wingedpig/relief/internal/ports"
	"github.com/wingedpig/relief/internal/process"
)

const (
	defaultCommandTimeout = 2 * time.Minute
	defaultStopTimeout    = 10 * time.Second
)

// LogID returns the log stream id used for a service's output.
func LogID(name string) string {
	return "service:" + name
}

// Options configures a Manager.
type Options struct {
	Runner         process.Runner // supervised services; defaults to a ShellRunner
	Inspector      ports.Inspector
	Logs           *logstore.Store
	Bus            events.Publisher
	StopTimeout    time.Duration
	CommandTimeout time.Duration // bound on start_command, stop_command, install_command
}

// Manager starts and stops managed services. Start and Stop are
// idempotent. A service with a command is supervised like a project;
// otherwise its start_command and stop_command are run to completion.
type Manager struct {
	runner         process.Runner
	inspector      ports.Inspector
	logs           *logstore.Store
	bus            events.Publisher
	stopTimeout    time.Duration
	commandTimeout time.Duration

	mu       sync.Mutex
	order    []string
	services map[string]*managedService
}

type managedService struct {
	config config.ServiceConfig
	status Status
	handle process.Handle

	op sync.Mutex // serializes start/stop on this service
}

// NewManager creates a manager for configs.
func NewManager(configs []config.ServiceConfig, opts Options) *Manager {
	if opts.Runner == nil {
		opts.Runner = process.NewShellRunner()
	}
	if opts.Bus == nil {
		opts.Bus = events.Discard
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	m := &Manager{
		runner:         opts.Runner,
		inspector:      opts.Inspector,
		logs:           opts.Logs,
		bus:            opts.Bus,
		stopTimeout:    opts.StopTimeout,
		commandTimeout: opts.CommandTimeout,
		services:       make(map[string]*managedService),
	}
	m.UpdateConfigs(configs)
	return m
}

func (m *Manager) lookup(name string) (*managedService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	svc, ok := m.services[name]
	if !ok {
		return nil, &UnknownServiceError{Name: name, Suggestion: config.Suggest(name, m.order)}
	}
	return svc, nil
}

// Start starts a service. Starting a running service succeeds without
// doing anything.
func (m *Manager) Start(ctx context.Context, name string) error {
	svc, err := m.lookup(name)
	if err != nil {
		return err
	}
	svc.op.Lock()
	defer svc.op.Unlock()

	if m.running(svc) {
		return nil
	}

	m.mu.Lock()
	cfg := svc.config
	m.mu.Unlock()

	var pid int
	if cfg.IsSupervised() {
		handle, err := m.runner.Start(ctx, process.Spec{
			Name:    cfg.Name,
			Command: cfg.Command,
			Dir:     cfg.WorkDir,
			Env:     cfg.Env,
			Port:    cfg.Port,
			Output:  m.output(cfg.Name),
		})
		if err != nil {
			m.setStatus(svc, Status{State: StateError, Error: err.Error()})
			log.Printf("Service %s failed to start: %v", name, err)
			return &CommandError{Service: name, Action: "start", Err: err}
		}
		pid = handle.PID()
		m.mu.Lock()
		svc.handle = handle
		m.mu.Unlock()
		go m.watch(svc, handle)
	} else {
		if cfg.StartCommand == "" {
			return fmt.Errorf("service %s has no command or start_command", name)
		}
		if err := m.runCommand(ctx, cfg, "start", cfg.StartCommand); err != nil {
			m.setStatus(svc, Status{State: StateError, Error: err.Error()})
			return err
		}
	}

	m.setStatus(svc, Status{State: StateRunning, PID: pid, StartedAt: time.Now()})
	log.Printf("Service %s started", name)
	m.publish(ctx, events.EventServiceStarted, map[string]interface{}{"service": name, "pid": pid})
	return nil
}

// Stop stops a service. Stopping a stopped service succeeds without
// doing anything.
func (m *Manager) Stop(ctx context.Context, name string) error {
	svc, err := m.lookup(name)
	if err != nil {
		return err
	}
	svc.op.Lock()
	defer svc.op.Unlock()

	m.mu.Lock()
	cfg := svc.config
	handle := svc.handle
	state := svc.status.State
	m.mu.Unlock()

	if cfg.IsSupervised() {
		if handle == nil {
			if state == StateError {
				m.setStatus(svc, Status{State: StateStopped, StoppedAt: time.Now()})
			}
			return nil
		}
		if err := handle.Stop(ctx, m.stopTimeout); err != nil {
			return &CommandError{Service: name, Action: "stop", Err: err}
		}
		m.mu.Lock()
		if svc.handle == handle {
			svc.handle = nil
		}
		m.mu.Unlock()
	} else {
		if !m.running(svc) {
			if state == StateError {
				m.setStatus(svc, Status{State: StateStopped, StoppedAt: time.Now()})
			}
			return nil
		}
		if cfg.StopCommand == "" {
			return fmt.Errorf("service %s has no stop_command", name)
		}
		if err := m.runCommand(ctx, cfg, "stop", cfg.StopCommand); err != nil {
			m.setStatus(svc, Status{State: StateError, Error: err.Error()})
			return err
		}
	}

	m.setStatus(svc, Status{State: StateStopped, StoppedAt: time.Now()})
	log.Printf("Service %s stopped", name)
	m.publish(ctx, events.EventServiceStopped, map[string]interface{}{"service": name})
	return nil
}

// Install runs the service's install_command.
func (m *Manager) Install(ctx context.Context, name string) error {
	svc, err := m.lookup(name)
	if err != nil {
		return err
	}
	svc.op.Lock()
	defer svc.op.Unlock()

	m.mu.Lock()
	cfg := svc.config
	m.mu.Unlock()
	if cfg.InstallCommand == "" {
		return fmt.Errorf("service %s has no install_command", name)
	}
	return m.runCommand(ctx, cfg, "install", cfg.InstallCommand)
}

// IsRunning reports whether the named service is running.
func (m *Manager) IsRunning(name string) bool {
	m.mu.Lock()
	svc, ok := m.services[name]
	m.mu.Unlock()
	return ok && m.running(svc)
}

// Has reports whether name is a configured service.
func (m *Manager) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.services[name]
	return ok
}

// Get returns one service.
func (m *Manager) Get(name string) (Info, error) {
	svc, err := m.lookup(name)
	if err != nil {
		return Info{}, err
	}
	return m.info(svc), nil
}

// List returns every service in configuration order.
func (m *Manager) List() []Info {
	m.mu.Lock()
	svcs := make([]*managedService, 0, len(m.order))
	for _, name := range m.order {
		svcs = append(svcs, m.services[name])
	}
	m.mu.Unlock()

	result := make([]Info, 0, len(svcs))
	for _, svc := range svcs {
		result = append(result, m.info(svc))
	}
	return result
}

// StopAll stops every supervised service. Services run by start_command
// outlive relief and are left alone.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	var names []string
	for _, name := range m.order {
		if m.services[name].handle != nil {
			names = append(names, name)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := m.Stop(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UpdateConfigs swaps in a new service set after a config reload.
// Running supervised services keep their process; services no longer
// configured are stopped.
func (m *Manager) UpdateConfigs(configs []config.ServiceConfig) {
	m.mu.Lock()
	newConfigs := make(map[string]config.ServiceConfig, len(configs))
	order := make([]string, 0, len(configs))
	for _, cfg := range configs {
		if _, dup := newConfigs[cfg.Name]; dup {
			continue
		}
		newConfigs[cfg.Name] = cfg
		order = append(order, cfg.Name)
	}

	var removed []*managedService
	for name, svc := range m.services {
		if _, ok := newConfigs[name]; !ok {
			removed = append(removed, svc)
			delete(m.services, name)
		}
	}
	for name, cfg := range newConfigs {
		if svc, ok := m.services[name]; ok {
			svc.config = cfg
			continue
		}
		m.services[name] = &managedService{config: cfg, status: Status{State: StateStopped}}
	}
	m.order = order
	m.mu.Unlock()

	for _, svc := range removed {
		m.mu.Lock()
		handle := svc.handle
		m.mu.Unlock()
		if handle != nil {
			log.Printf("Service %s removed from config, stopping", svc.config.Name)
			if err := handle.Stop(context.Background(), m.stopTimeout); err != nil {
				log.Printf("Service %s: stop: %v", svc.config.Name, err)
			}
		}
	}
	log.Printf("Loaded %d managed services", len(order))
}

// running reports whether svc is up, either started by relief or holding
// its port.
func (m *Manager) running(svc *managedService) bool {
	m.mu.Lock()
	state, port := svc.status.State, svc.config.Port
	m.mu.Unlock()
	if state == StateRunning {
		return true
	}
	return port > 0 && m.inspector != nil && m.inspector.Listening(port)
}

func (m *Manager) info(svc *managedService) Info {
	m.mu.Lock()
	cfg, status := svc.config, svc.status
	m.mu.Unlock()

	if status.State != StateRunning && cfg.Port > 0 && m.inspector != nil && m.inspector.Listening(cfg.Port) {
		status.State = StateRunning
		status.External = true
	}
	return Info{
		Name:        cfg.Name,
		Description: cfg.Description,
		Port:        cfg.Port,
		Supervised:  cfg.IsSupervised(),
		Installable: cfg.InstallCommand != "",
		Status:      status,
	}
}

func (m *Manager) setStatus(svc *managedService, status Status) {
	m.mu.Lock()
	svc.status = status
	m.mu.Unlock()
}

// watch records the exit of a supervised service. Exits caused by Stop
// are handled there.
func (m *Manager) watch(svc *managedService, handle process.Handle) {
	<-handle.Done()
	if handle.StopRequested() {
		return
	}

	svc.op.Lock()
	defer svc.op.Unlock()

	m.mu.Lock()
	if svc.handle != handle {
		m.mu.Unlock()
		return
	}
	svc.handle = nil
	name := svc.config.Name
	m.mu.Unlock()

	err := handle.Err()
	if err == nil {
		m.setStatus(svc, Status{State: StateStopped, StoppedAt: time.Now()})
		log.Printf("Service %s exited", name)
		m.publish(context.Background(), events.EventServiceStopped, map[string]interface{}{"service": name})
		return
	}
	m.setStatus(svc, Status{State: StateError, StoppedAt: time.Now(), Error: err.Error()})
	log.Printf("Service %s crashed: %v", name, err)
	m.emit(name, fmt.Sprintf("[relief] Service exited: %v", err))
	m.publish(context.Background(), events.EventServiceCrashed, map[string]interface{}{"service": name, "error": err.Error()})
}

// runCommand runs a one-shot service command through the shell, logging
// its output to the service stream.
func (m *Manager) runCommand(ctx context.Context, cfg config.ServiceConfig, action, command string) error {
	ctx, cancel := context.WithTimeout(ctx, m.commandTimeout)
	defer cancel()

	env, err := process.BuildEnv(os.Environ(), cfg.WorkDir, cfg.Env, cfg.Port)
	if err != nil {
		return &CommandError{Service: cfg.Name, Action: action, Err: err}
	}

	m.emit(cfg.Name, fmt.Sprintf("[relief] $ %s", command))
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = cfg.WorkDir
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err = cmd.Run()
	if m.logs != nil && out.Len() > 0 {
		m.logs.WriteLines(LogID(cfg.Name), out.String())
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", m.commandTimeout)
		}
		log.Printf("Service %s: %s command failed: %v", cfg.Name, action, err)
		return &CommandError{Service: cfg.Name, Action: action, Output: out.String(), Err: err}
	}
	return nil
}

func (m *Manager) output(name string) func(string) {
	if m.logs == nil {
		return nil
	}
	id := LogID(name)
	return func(line string) {
		m.logs.Write(id, line)
	}
}

func (m *Manager) emit(name, line string) {
	if m.logs != nil {
		m.logs.Append(LogID(name), logstore.LevelInfo, line)
	}
}

func (m *Manager) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	if err := m.bus.Publish(context.WithoutCancel(ctx), events.Event{Type: eventType, Payload: payload}); err != nil {
		log.Printf("Services: publish %s: %v", eventType, err)
	}
}
