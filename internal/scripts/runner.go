// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package scripts runs the named global commands from the configuration.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/wingedpig/relief/internal/config"
	"github.com/wingedpig/relief/internal/events"
	"github.com/wingedpig/relief/internal/process"
)

// DefaultTimeout bounds a script run when neither the script nor the
// configuration sets one.
const DefaultTimeout = 10 * time.Minute

// maxOutputSize caps the captured combined output.
const maxOutputSize = 10 * 1024 * 1024

// Script is a configured global command.
type Script struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Command     string            `json:"command"`
	WorkDir     string            `json:"work_dir,omitempty"`
	Timeout     time.Duration     `json:"timeout"`
	Env         map[string]string `json:"env,omitempty"`
}

// Result is the outcome of one run.
type Result struct {
	Name       string        `json:"name"`
	Success    bool          `json:"success"`
	ExitCode   int           `json:"exit_code"`
	Output     string        `json:"output"`
	Truncated  bool          `json:"truncated,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// UnknownScriptError is returned for a name that is not configured.
type UnknownScriptError struct {
	Name       string
	Suggestion string
}

func (e *UnknownScriptError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("script %q not found (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("script %q not found", e.Name)
}

// TimeoutError is returned when a script outlives its timeout. The
// partial result is returned alongside it.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("script %s timed out after %s", e.Name, e.Timeout)
}

// Runner executes scripts to completion.
type Runner struct {
	bus events.Publisher

	mu      sync.RWMutex
	order   []string
	scripts map[string]Script
}

// NewRunner creates a runner. Relative work dirs resolve against baseDir.
func NewRunner(configs []config.ScriptConfig, defaultTimeout time.Duration, baseDir string, bus events.Publisher) *Runner {
	if bus == nil {
		bus = events.Discard
	}
	r := &Runner{bus: bus}
	r.UpdateConfigs(configs, defaultTimeout, baseDir)
	return r
}

// UpdateConfigs replaces the script table after a config reload.
func (r *Runner) UpdateConfigs(configs []config.ScriptConfig, defaultTimeout time.Duration, baseDir string) {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	scripts := make(map[string]Script, len(configs))
	order := make([]string, 0, len(configs))
	for _, cfg := range configs {
		if _, dup := scripts[cfg.Name]; dup {
			continue
		}
		dir := cfg.WorkDir
		if dir == "" {
			dir = baseDir
		} else if !filepath.IsAbs(dir) && baseDir != "" {
			dir = filepath.Join(baseDir, dir)
		}
		scripts[cfg.Name] = Script{
			Name:        cfg.Name,
			Description: cfg.Description,
			Command:     cfg.Command,
			WorkDir:     dir,
			Timeout:     config.ParseDuration(cfg.Timeout, defaultTimeout),
			Env:         cfg.Env,
		}
		order = append(order, cfg.Name)
	}

	r.mu.Lock()
	r.scripts = scripts
	r.order = order
	r.mu.Unlock()
}

// List returns the scripts in configuration order.
func (r *Runner) List() []Script {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Script, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.scripts[name])
	}
	return result
}

// Get returns a script by name.
func (r *Runner) Get(name string) (Script, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scripts[name]
	if !ok {
		return Script{}, &UnknownScriptError{Name: name, Suggestion: config.Suggest(name, r.order)}
	}
	return s, nil
}

// Run executes the named script and waits for it. A non-zero exit is a
// failed Result, not an error; errors are reserved for unknown scripts,
// timeouts and commands that could not be started.
func (r *Runner) Run(ctx context.Context, name string) (*Result, error) {
	script, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	result, err := r.execute(ctx, script)
	r.publish(ctx, result)
	return result, err
}

func (r *Runner) execute(ctx context.Context, script Script) (*Result, error) {
	result := &Result{Name: script.Name, StartedAt: time.Now()}
	finish := func() {
		result.FinishedAt = time.Now()
		result.Duration = result.FinishedAt.Sub(result.StartedAt)
	}

	env, err := process.BuildEnv(os.Environ(), script.WorkDir, script.Env, 0)
	if err != nil {
		result.Error = err.Error()
		finish()
		return result, err
	}

	execCtx, cancel := context.WithTimeout(ctx, script.Timeout)
	defer cancel()

	log.Printf("Running script %s: %s", script.Name, script.Command)
	cmd := exec.CommandContext(execCtx, "sh", "-c", script.Command)
	cmd.Dir = script.WorkDir
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Kill the whole group so children of sh go too.
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second

	out := &cappedBuffer{limit: maxOutputSize}
	cmd.Stdout = out
	cmd.Stderr = out

	runErr := cmd.Run()
	finish()
	result.Output = out.String()
	result.Truncated = out.truncated

	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.ExitCode = -1
		result.Error = "timeout exceeded"
		log.Printf("Script %s timed out after %s", script.Name, script.Timeout)
		return result, &TimeoutError{Name: script.Name, Timeout: script.Timeout}
	case runErr == nil || errors.Is(runErr, exec.ErrWaitDelay):
		result.Success = true
	default:
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			result.ExitCode = -1
			result.Error = runErr.Error()
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			return result, fmt.Errorf("run script %s: %w", script.Name, runErr)
		}
		result.ExitCode = exitErr.ExitCode()
		result.Error = runErr.Error()
	}
	log.Printf("Script %s finished (success=%v, exit %d, %s)", script.Name, result.Success, result.ExitCode, result.Duration.Round(time.Millisecond))
	return result, nil
}

func (r *Runner) publish(ctx context.Context, result *Result) {
	if result == nil {
		return
	}
	err := r.bus.Publish(context.WithoutCancel(ctx), events.Event{
		Type: events.EventScriptFinished,
		Payload: map[string]interface{}{
			"script":      result.Name,
			"success":     result.Success,
			"exit_code":   result.ExitCode,
			"duration_ms": result.Duration.Milliseconds(),
		},
	})
	if err != nil {
		log.Printf("Scripts: publish: %v", err)
	}
}

// cappedBuffer keeps the first limit bytes written to it. Stdout and
// stderr share one buffer so their lines interleave in arrival order.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		return len(p), nil
	}
	room := b.limit - len(b.buf)
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.buf = append(b.buf, "\n... output truncated (exceeded 10MB) ...\n"...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
