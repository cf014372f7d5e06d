// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package dependency verifies that the tools and services a project needs
// are present before it starts.
package dependency

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/wingedpig/relief/internal/registry"
)

const (
	probeTimeout = 5 * time.Second
	cacheTTL     = 30 * time.Second
)

var versionRe = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.\-]+)?)`)

// Services is the part of the managed service controller a check needs.
type Services interface {
	Has(name string) bool
	IsRunning(name string) bool
	Start(ctx context.Context, name string) error
}

// DependencyError lists the dependencies that block a project start.
type DependencyError struct {
	Project     string
	Unsatisfied []registry.Dependency
}

func (e *DependencyError) Error() string {
	parts := make([]string, 0, len(e.Unsatisfied))
	for _, d := range e.Unsatisfied {
		if d.Message != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", d.Name, d.Message))
		} else {
			parts = append(parts, d.Name)
		}
	}
	return fmt.Sprintf("%s: unsatisfied dependencies: %s", e.Project, strings.Join(parts, ", "))
}

// ProbeFunc returns the raw version output of a command.
type ProbeFunc func(ctx context.Context, name string) (string, error)

// Checker evaluates project dependencies. Command probes are cached
// briefly since every project view recomputes them.
type Checker struct {
	services Services
	probe    ProbeFunc
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]probeResult
}

type probeResult struct {
	version string
	err     error
	at      time.Time
}

// NewChecker creates a checker. services may be nil when no managed
// services are configured.
func NewChecker(services Services) *Checker {
	return &Checker{
		services: services,
		probe:    ProbeVersion,
		now:      time.Now,
		cache:    make(map[string]probeResult),
	}
}

// Check returns deps with Version, Satisfied and Message filled in.
func (c *Checker) Check(ctx context.Context, deps []registry.Dependency) []registry.Dependency {
	out := make([]registry.Dependency, len(deps))
	for i, d := range deps {
		out[i] = c.checkOne(ctx, d)
	}
	return out
}

func (c *Checker) checkOne(ctx context.Context, d registry.Dependency) registry.Dependency {
	d.Version, d.Satisfied, d.Message = "", false, ""

	if d.Managed {
		switch {
		case c.services == nil || !c.services.Has(d.Name):
			d.Message = "no managed service named " + d.Name
		case c.services.IsRunning(d.Name):
			d.Satisfied = true
		default:
			d.Message = "managed service is not running"
		}
		return d
	}

	installed, err := c.cachedProbe(ctx, d.Name)
	if err != nil {
		d.Message = err.Error()
		return d
	}
	d.Version = installed

	ok, err := Satisfies(installed, d.RequiredVersion)
	switch {
	case err != nil:
		d.Message = err.Error()
	case !ok:
		d.Message = fmt.Sprintf("found %s, need %s", installed, d.RequiredVersion)
	default:
		d.Satisfied = true
	}
	return d
}

// Preflight checks p before it is spawned. Managed services that are
// configured but stopped are started; anything still unsatisfied fails
// with DependencyError.
func (c *Checker) Preflight(ctx context.Context, p registry.Project) error {
	var unsatisfied []registry.Dependency
	for _, d := range c.Check(ctx, p.Dependencies) {
		if d.Satisfied {
			continue
		}
		if d.Managed && c.services != nil && c.services.Has(d.Name) {
			if err := c.services.Start(ctx, d.Name); err != nil {
				d.Message = "start managed service: " + err.Error()
				unsatisfied = append(unsatisfied, d)
			}
			continue
		}
		unsatisfied = append(unsatisfied, d)
	}
	if len(unsatisfied) > 0 {
		return &DependencyError{Project: p.Name, Unsatisfied: unsatisfied}
	}
	return nil
}

func (c *Checker) cachedProbe(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	if r, ok := c.cache[name]; ok && c.now().Sub(r.at) < cacheTTL {
		c.mu.Unlock()
		return r.version, r.err
	}
	c.mu.Unlock()

	out, err := c.probe(ctx, name)
	var installed string
	if err == nil {
		installed = ExtractVersion(out)
		if installed == "" {
			err = fmt.Errorf("could not read a version from %q", firstLine(out))
		}
	}
	if ctx.Err() != nil {
		// Don't cache a probe cut short by the caller.
		return installed, err
	}

	c.mu.Lock()
	c.cache[name] = probeResult{version: installed, err: err, at: c.now()}
	c.mu.Unlock()
	return installed, err
}

// Invalidate drops cached probe results.
func (c *Checker) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]probeResult)
	c.mu.Unlock()
}

// ErrNotInstalled is returned by ProbeVersion for a missing command.
var ErrNotInstalled = errors.New("not installed")

// ProbeVersion runs `name --version`, falling back to `name version` and
// `name -version` for tools (go, java) that spell it differently.
func ProbeVersion(ctx context.Context, name string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", ErrNotInstalled
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var lastErr error
	for _, flag := range []string{"--version", "version", "-version"} {
		out, err := exec.CommandContext(ctx, name, flag).CombinedOutput()
		if err == nil && ExtractVersion(string(out)) != "" {
			return string(out), nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s --version timed out", name)
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no version output")
	}
	return "", fmt.Errorf("%s: %w", name, lastErr)
}

// ExtractVersion pulls the first version-looking token out of output,
// e.g. "v18.17.0" from node or "3.11.4" from "Python 3.11.4".
func ExtractVersion(output string) string {
	m := versionRe.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return m[1]
}

// Satisfies reports whether installed meets constraint. An empty
// constraint always holds; a bare version means "at least".
func Satisfies(installed, constraint string) (bool, error) {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return true, nil
	}
	if c := constraint[0]; c >= '0' && c <= '9' || c == 'v' {
		constraint = ">= " + strings.TrimPrefix(constraint, "v")
	}

	v, err := version.NewVersion(strings.TrimPrefix(installed, "v"))
	if err != nil {
		return false, fmt.Errorf("parse installed version %q: %w", installed, err)
	}
	cs, err := version.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("parse constraint %q: %w", constraint, err)
	}
	return cs.Check(v), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
