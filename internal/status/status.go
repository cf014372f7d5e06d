// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package status computes the aggregate view polled by the control surface.
package status

import (
	"time"

	"github.com/wingedpig/relief/internal/registry"
)

// Poll cadences.
const (
	FastPollInterval = 3 * time.Second
	SlowPollInterval = 15 * time.Second
)

// AppStatus is the aggregate project and proxy state. It is never stored.
type AppStatus struct {
	TotalProjects  int  `json:"total_projects"`
	Running        int  `json:"running"`
	Stopped        int  `json:"stopped"`
	Errors         int  `json:"errors"`
	TraefikRunning bool `json:"traefik_running"`
}

// ProjectLister returns project snapshots.
type ProjectLister interface {
	List() []registry.Project
}

// ProxyHealth reports whether the reverse proxy is serving.
type ProxyHealth interface {
	Healthy() bool
}

// Aggregator computes AppStatus from the registry and the proxy.
type Aggregator struct {
	projects ProjectLister
	proxy    ProxyHealth
}

// NewAggregator creates an aggregator. proxy may be nil.
func NewAggregator(projects ProjectLister, proxy ProxyHealth) *Aggregator {
	return &Aggregator{projects: projects, proxy: proxy}
}

// Status returns the current aggregate and the poll interval it implies.
func (a *Aggregator) Status() (AppStatus, time.Duration) {
	projects := a.projects.List()
	healthy := a.proxy != nil && a.proxy.Healthy()
	return Aggregate(projects, healthy), PollInterval(projects)
}

// Aggregate counts projects by status. Starting and stopping projects
// count toward the total only.
func Aggregate(projects []registry.Project, proxyHealthy bool) AppStatus {
	s := AppStatus{TotalProjects: len(projects), TraefikRunning: proxyHealthy}
	for _, p := range projects {
		switch p.Status {
		case registry.StatusRunning:
			s.Running++
		case registry.StatusStopped:
			s.Stopped++
		case registry.StatusError:
			s.Errors++
		}
	}
	return s
}

// PollInterval returns how often a control surface should poll: fast while
// anything is running or in flight, slow when the fleet is idle.
func PollInterval(projects []registry.Project) time.Duration {
	for _, p := range projects {
		if p.Status.IsActive() {
			return FastPollInterval
		}
	}
	return SlowPollInterval
}
