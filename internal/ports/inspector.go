// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ports queries the operating system about TCP port ownership and
// terminates processes on request.
package ports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	ps "github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"
)

// ErrProcessNotFound is returned when killing a pid that does not exist.
var ErrProcessNotFound = errors.New("process not found")

// Inspector answers live questions about ports and processes.
type Inspector interface {
	// Check returns the process listening on port, or nil when it is free.
	Check(ctx context.Context, port int) (*Conflict, error)
	// Listening reports whether anything accepts connections on port.
	Listening(port int) bool
	// Kill terminates pid, escalating to SIGKILL, and waits for it to exit.
	Kill(ctx context.Context, pid int) error
	// Alive reports whether pid exists.
	Alive(pid int) bool
}

// OSInspector implements Inspector with lsof, ps and signals.
type OSInspector struct {
	KillTimeout time.Duration
	lsof        string
}

// NewOSInspector creates an inspector. lsof is optional; without it, Check
// falls back to a bind probe and cannot name the owner.
func NewOSInspector() *OSInspector {
	i := &OSInspector{KillTimeout: 5 * time.Second}
	if path, err := exec.LookPath("lsof"); err == nil {
		i.lsof = path
	}
	return i
}

// Check returns the listener on port, or nil when the port is free.
func (i *OSInspector) Check(ctx context.Context, port int) (*Conflict, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	if i.lsof != "" {
		pids, err := i.listeners(ctx, port)
		if err != nil {
			return nil, err
		}
		if len(pids) > 0 {
			pid := pids[0]
			return &Conflict{Port: port, PID: pid, Command: Command(pid)}, nil
		}
		// lsof cannot see sockets of other users without privileges.
		if !bindable(port) {
			return &Conflict{Port: port}, nil
		}
		return nil, nil
	}

	if !bindable(port) {
		return &Conflict{Port: port}, nil
	}
	return nil, nil
}

func (i *OSInspector) listeners(ctx context.Context, port int) ([]int, error) {
	cmd := exec.CommandContext(ctx, i.lsof, "-nP", "-iTCP:"+strconv.Itoa(port), "-sTCP:LISTEN", "-t")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		// lsof exits 1 when nothing matches.
		if errors.As(err, &exitErr) && stdout.Len() == 0 {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if stdout.Len() == 0 {
			return nil, fmt.Errorf("lsof: %w", err)
		}
	}
	return parsePIDs(stdout.String()), nil
}

func parsePIDs(out string) []int {
	var pids []int
	seen := make(map[int]bool)
	for _, field := range strings.Fields(out) {
		pid, err := strconv.Atoi(field)
		if err != nil || pid <= 0 || seen[pid] {
			continue
		}
		seen[pid] = true
		pids = append(pids, pid)
	}
	return pids
}

// bindable reports whether a listener could be opened on port right now.
func bindable(port int) bool {
	for _, addr := range []string{"127.0.0.1", "0.0.0.0"} {
		ln, err := net.Listen("tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
		if err != nil {
			if errors.Is(err, syscall.EADDRINUSE) {
				return false
			}
			continue
		}
		ln.Close()
	}
	return true
}

// Listening reports whether something accepts TCP connections on port.
func (i *OSInspector) Listening(port int) bool {
	if port <= 0 {
		return false
	}
	for _, host := range []string{"127.0.0.1", "::1"} {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 300*time.Millisecond)
		if err == nil {
			conn.Close()
			return true
		}
	}
	return false
}

// Alive reports whether pid exists.
func (i *OSInspector) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := ps.FindProcess(pid)
	if err == nil {
		return p != nil
	}
	return unix.Kill(pid, 0) == nil
}

// Kill sends SIGTERM to pid, waits up to KillTimeout, then sends SIGKILL.
// It returns once the process is gone.
func (i *OSInspector) Kill(ctx context.Context, pid int) error {
	if pid <= 1 {
		return fmt.Errorf("refusing to kill PID %d", pid)
	}
	if pid == os.Getpid() {
		return fmt.Errorf("refusing to kill own process")
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("%w: %d", ErrProcessNotFound, pid)
		}
		return fmt.Errorf("signal PID %d: %w", pid, err)
	}

	timeout := i.KillTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if i.waitGone(ctx, pid, timeout) {
		log.Printf("Killed PID %d", pid)
		return nil
	}

	log.Printf("PID %d ignored SIGTERM, sending SIGKILL", pid)
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill PID %d: %w", pid, err)
	}
	if !i.waitGone(ctx, pid, 2*time.Second) {
		return fmt.Errorf("PID %d still running after SIGKILL", pid)
	}
	log.Printf("Killed PID %d", pid)
	return nil
}

func (i *OSInspector) waitGone(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !i.Alive(pid) || isZombie(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
}

// isZombie reports whether pid has exited but not been reaped yet.
func isZombie(pid int) bool {
	out, err := exec.Command("ps", "-o", "stat=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(string(out)), "Z")
}

// Command returns the full command line of pid, falling back to the
// executable name.
func Command(pid int) string {
	out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "command=").Output()
	if err == nil {
		if cmd := strings.TrimSpace(string(out)); cmd != "" {
			return cmd
		}
	}
	if p, err := ps.FindProcess(pid); err == nil && p != nil {
		return p.Executable()
	}
	return ""
}
