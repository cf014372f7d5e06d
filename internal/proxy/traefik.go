// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend applies a routing table to a running proxy.
type Backend interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Apply replaces the whole routing table.
	Apply(ctx context.Context, routes []Route) error
	Healthy() bool
}

// traefikConfig is the file provider document.
type traefikConfig struct {
	HTTP traefikHTTP `yaml:"http"`
}

type traefikHTTP struct {
	Routers  map[string]traefikRouter  `yaml:"routers"`
	Services map[string]traefikService `yaml:"services"`
}

type traefikRouter struct {
	Rule        string   `yaml:"rule"`
	Service     string   `yaml:"service"`
	EntryPoints []string `yaml:"entryPoints,omitempty"`
}

type traefikService struct {
	LoadBalancer traefikLoadBalancer `yaml:"loadBalancer"`
}

type traefikLoadBalancer struct {
	Servers []traefikServer `yaml:"servers"`
}

type traefikServer struct {
	URL string `yaml:"url"`
}

// TraefikBackend writes a Traefik dynamic configuration file and runs a
// traefik process that watches it. Traefik picks up the atomically
// replaced file without dropping connections on unchanged routes.
type TraefikBackend struct {
	Binary     string
	ConfigPath string
	HTTPPort   int

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

// NewTraefikBackend creates a backend writing its dynamic config to configPath.
func NewTraefikBackend(binary, configPath string, httpPort int) *TraefikBackend {
	return &TraefikBackend{Binary: binary, ConfigPath: configPath, HTTPPort: httpPort}
}

func (t *TraefikBackend) Name() string { return "traefik" }

// RenderTraefikConfig encodes routes as a Traefik file provider document.
func RenderTraefikConfig(routes []Route) ([]byte, error) {
	cfg := traefikConfig{
		HTTP: traefikHTTP{
			Routers:  make(map[string]traefikRouter, len(routes)),
			Services: make(map[string]traefikService, len(routes)),
		},
	}
	for _, r := range routes {
		name := routeName(r)
		cfg.HTTP.Routers[name+"-router"] = traefikRouter{
			Rule:        fmt.Sprintf("Host(`%s`)", r.Domain),
			Service:     name + "-service",
			EntryPoints: []string{"web"},
		}
		cfg.HTTP.Services[name+"-service"] = traefikService{
			LoadBalancer: traefikLoadBalancer{
				Servers: []traefikServer{{URL: r.URL()}},
			},
		}
	}
	return yaml.Marshal(cfg)
}

// routeName derives a Traefik object name from the route domain, which is
// unique in a table.
func routeName(r Route) string {
	return strings.NewReplacer(".", "-", ":", "-", " ", "-").Replace(r.Domain)
}

// Apply writes the dynamic configuration file.
func (t *TraefikBackend) Apply(ctx context.Context, routes []Route) error {
	data, err := RenderTraefikConfig(routes)
	if err != nil {
		return fmt.Errorf("encode traefik config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.ConfigPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return writeFileAtomic(t.ConfigPath, data, 0644)
}

// Start launches traefik unless it is already running.
func (t *TraefikBackend) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runningLocked() {
		return nil
	}

	binary, err := exec.LookPath(t.Binary)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTraefikNotFound, t.Binary)
	}

	// Traefik refuses a missing provider file.
	if _, err := os.Stat(t.ConfigPath); os.IsNotExist(err) {
		if err := t.Apply(ctx, nil); err != nil {
			return err
		}
	}

	cmd := exec.Command(binary,
		"--providers.file.filename="+t.ConfigPath,
		"--providers.file.watch=true",
		fmt.Sprintf("--entrypoints.web.address=:%d", t.HTTPPort),
		"--log.level=INFO",
		"--accesslog=false",
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return fmt.Errorf("start traefik: %w", err)
	}

	exited := make(chan struct{})
	t.cmd = cmd
	t.exited = exited
	log.Printf("Traefik started (PID %d, port %d, config %s)", cmd.Process.Pid, t.HTTPPort, t.ConfigPath)

	go func() {
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			log.Printf("Traefik: %s", scanner.Text())
		}
		io.Copy(io.Discard, pr)
	}()
	go func() {
		err := cmd.Wait()
		pw.Close()
		if err != nil {
			log.Printf("Traefik exited: %v", err)
		}
		close(exited)
	}()
	return nil
}

// Stop terminates traefik, forcing it after five seconds.
func (t *TraefikBackend) Stop(ctx context.Context) error {
	t.mu.Lock()
	cmd, exited := t.cmd, t.exited
	t.cmd = nil
	t.mu.Unlock()

	if cmd == nil {
		return nil
	}

	pgid := cmd.Process.Pid
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal traefik: %w", err)
	}

	select {
	case <-exited:
		log.Printf("Traefik stopped")
		return nil
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
	}

	syscall.Kill(-pgid, syscall.SIGKILL)
	select {
	case <-exited:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("traefik (PID %d) did not exit", pgid)
	}
}

// Healthy reports whether the traefik process is alive.
func (t *TraefikBackend) Healthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runningLocked()
}

func (t *TraefikBackend) runningLocked() bool {
	if t.cmd == nil {
		return false
	}
	select {
	case <-t.exited:
		return false
	default:
		return true
	}
}
