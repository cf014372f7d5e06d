// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"fmt"
	"log"
	"sort"

	"github.com/wingedpig/relief/internal/registry"
)

// Route maps a local domain to a project's upstream address.
type Route struct {
	Domain   string `json:"domain"`
	Upstream string `json:"upstream"` // host:port
	Project  string `json:"project"`  // project name
}

// URL returns the upstream as an http URL.
func (r Route) URL() string {
	return "http://" + r.Upstream
}

// BuildRoutes derives the routing table from a registry snapshot: one route
// per running project that has a domain and a port, ordered by domain.
func BuildRoutes(projects []registry.Project) []Route {
	projects = append([]registry.Project(nil), projects...)
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Name < projects[j].Name
	})

	seen := make(map[string]string)
	routes := make([]Route, 0, len(projects))
	for _, p := range projects {
		if p.Status != registry.StatusRunning || p.Port <= 0 || p.Domain == "" {
			continue
		}
		if owner, dup := seen[p.Domain]; dup {
			log.Printf("Proxy: domain %s of project %s is already routed to %s, skipping", p.Domain, p.Name, owner)
			continue
		}
		seen[p.Domain] = p.Name
		routes = append(routes, Route{
			Domain:   p.Domain,
			Upstream: fmt.Sprintf("localhost:%d", p.Port),
			Project:  p.Name,
		})
	}

	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Domain < routes[j].Domain
	})
	return routes
}
