// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// maxLineLen truncates pathological output lines.
const maxLineLen = 1024 * 1024

// ShellRunner runs commands with sh -c in a dedicated process group.
type ShellRunner struct {
	Shell string // defaults to /bin/sh
}

// NewShellRunner creates a runner using /bin/sh.
func NewShellRunner() *ShellRunner {
	return &ShellRunner{Shell: "/bin/sh"}
}

// Start spawns spec.Command. The returned handle owns the process group.
func (r *ShellRunner) Start(ctx context.Context, spec Spec) (Handle, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, fmt.Errorf("%s: empty command", spec.Name)
	}
	if spec.Dir != "" {
		if info, err := os.Stat(spec.Dir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%s: working directory %s does not exist", spec.Name, spec.Dir)
		}
	}

	env, err := BuildEnv(os.Environ(), spec.Dir, spec.Env, spec.Port)
	if err != nil {
		return nil, err
	}

	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.Command(shell, "-c", spec.Command)
	cmd.Dir = spec.Dir
	cmd.Env = env
	// Bound the wait for output pipes held open by orphaned grandchildren.
	cmd.WaitDelay = 2 * time.Second

	p := &shellProcess{
		spec:     spec,
		cmd:      cmd,
		waitDone: make(chan struct{}),
	}

	spec.emit(fmt.Sprintf("[relief] Starting: %s (workdir: %s)", spec.Command, spec.Dir))

	if spec.TTY {
		err = p.startTTY()
	} else {
		err = p.startPipes()
	}
	if err != nil {
		spec.emit(fmt.Sprintf("[relief] Failed to start: %v", err))
		return nil, err
	}

	go p.waitForExit()
	return p, nil
}

type shellProcess struct {
	spec Spec
	cmd  *exec.Cmd
	pid  int

	output  io.Closer // write side (pipes) or ptmx (tty)
	capture sync.WaitGroup

	mu            sync.Mutex
	stopRequested bool
	exitErr       error
	waitDone      chan struct{}
}

func (p *shellProcess) startPipes() error {
	pr, pw := io.Pipe()
	p.cmd.Stdout = pw
	p.cmd.Stderr = pw
	// Create a new process group so we can kill child processes too
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := p.cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return fmt.Errorf("start process: %w", err)
	}
	p.pid = p.cmd.Process.Pid
	p.output = pw

	p.capture.Add(1)
	go func() {
		defer p.capture.Done()
		captureOutput(pr, &p.spec)
	}()
	return nil
}

func (p *shellProcess) startTTY() error {
	// Setsid makes the child a session and group leader, so -pid still
	// addresses the whole group.
	ptmx, err := pty.StartWithAttrs(p.cmd, nil, &syscall.SysProcAttr{Setsid: true, Setctty: true})
	if err != nil {
		return fmt.Errorf("start process with pty: %w", err)
	}
	p.pid = p.cmd.Process.Pid
	p.output = ptmx

	p.capture.Add(1)
	go func() {
		defer p.capture.Done()
		captureOutput(ptmx, &p.spec)
	}()
	return nil
}

// captureOutput forwards r line by line to spec.Output until EOF.
func captureOutput(r io.Reader, spec *Spec) {
	br := bufio.NewReader(r)

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if len(line) > maxLineLen {
				line = line[:maxLineLen] + "... [truncated]"
			}
			spec.emit(line)
		}
		if err != nil {
			// A pty reports EIO once the slave side closes.
			if err != io.EOF && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, syscall.EIO) && !errors.Is(err, os.ErrClosed) {
				spec.emit(fmt.Sprintf("[relief] Output read error: %v", err))
			}
			return
		}
	}
}

func (p *shellProcess) waitForExit() {
	err := p.cmd.Wait()

	// Pipes: closing the writer ends the reader at EOF once buffered output
	// is consumed. Pty: the reader may block while grandchildren hold the
	// slave, so give it a moment before closing the master.
	if p.spec.TTY {
		drained := make(chan struct{})
		go func() {
			p.capture.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(500 * time.Millisecond):
		}
		p.output.Close()
		p.capture.Wait()
	} else {
		p.output.Close()
		p.capture.Wait()
	}

	p.mu.Lock()
	stopRequested := p.stopRequested
	p.exitErr = classifyExit(err)
	p.mu.Unlock()

	switch {
	case p.exitErr == nil:
		p.spec.emit("[relief] Process exited cleanly")
	case stopRequested:
		p.spec.emit("[relief] Process stopped")
	default:
		p.spec.emit(fmt.Sprintf("[relief] Process exited with error: %v", p.exitErr))
	}

	close(p.waitDone)
}

func classifyExit(err error) error {
	// ErrWaitDelay only means leftover children kept the output open.
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return &ExitError{Code: -1, Signal: ws.Signal().String()}
		}
		return &ExitError{Code: exitErr.ExitCode()}
	}
	return err
}

func (p *shellProcess) PID() int {
	return p.pid
}

func (p *shellProcess) Done() <-chan struct{} {
	return p.waitDone
}

func (p *shellProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

func (p *shellProcess) StopRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopRequested
}

// Stop sends SIGTERM to the process group, then SIGKILL after timeout or
// when ctx ends. It returns once every member of the group has exited, not
// just the shell leader.
func (p *shellProcess) Stop(ctx context.Context, timeout time.Duration) error {
	pgid := p.pid
	select {
	case <-p.waitDone:
		if !groupAlive(pgid) {
			return nil
		}
	default:
	}

	p.mu.Lock()
	p.stopRequested = true
	p.mu.Unlock()

	if timeout <= 0 {
		timeout = defaultStopTimeout
	}

	// Signal the process group (negative PID) to reach child processes too
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal process group %d: %w", pgid, err)
	}

	graceCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if p.waitGroup(graceCtx) {
		return nil
	}

	p.spec.emit(fmt.Sprintf("[relief] Process did not exit after %s, sending SIGKILL", timeout))
	syscall.Kill(-pgid, syscall.SIGKILL)

	killCtx, cancelKill := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelKill()
	if !p.waitGroup(killCtx) {
		return fmt.Errorf("process group %d did not exit after SIGKILL", pgid)
	}
	return nil
}

// waitGroup blocks until the leader has been reaped and no member of its
// process group remains, or ctx ends. It reports whether the group is gone.
func (p *shellProcess) waitGroup(ctx context.Context) bool {
	select {
	case <-p.waitDone:
	case <-ctx.Done():
		return false
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for groupAlive(p.pid) {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// groupAlive reports whether any process remains in process group pgid.
func groupAlive(pgid int) bool {
	if pgid <= 0 {
		return false
	}
	err := syscall.Kill(-pgid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
