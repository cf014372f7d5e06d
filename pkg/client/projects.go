// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"net/url"
)

// ProjectClient provides project registration and lifecycle operations.
//
// Access this client through [Client.Projects]:
//
//	projects, err := client.Projects.List(ctx)
type ProjectClient struct {
	c *Client
}

func projectPath(id string) string {
	return "/api/v1/projects/" + url.PathEscape(id)
}

// List returns every registered project ordered by name.
func (p *ProjectClient) List(ctx context.Context) ([]Project, error) {
	data, err := p.c.get(ctx, "/api/v1/projects")
	if err != nil {
		return nil, err
	}
	return decode[[]Project](data, "projects")
}

// Get returns a project with its dependencies freshly checked.
func (p *ProjectClient) Get(ctx context.Context, id string) (*Project, error) {
	return p.one(p.c.get(ctx, projectPath(id)))
}

// Add registers the directory at path. A relief.yaml in the directory is
// used when present; otherwise the type is inferred from its files.
func (p *ProjectClient) Add(ctx context.Context, path string) (*Project, error) {
	return p.one(p.c.postJSON(ctx, "/api/v1/projects", map[string]string{"path": path}))
}

// Remove unregisters a stopped project.
func (p *ProjectClient) Remove(ctx context.Context, id string) (*Project, error) {
	return p.one(p.c.delete(ctx, projectPath(id)))
}

// Start starts a project and returns once it is running or has failed.
//
// A port held by another process fails with a PORT_IN_USE [APIError]; see
// [APIError.PortConflict].
func (p *ProjectClient) Start(ctx context.Context, id string) (*Project, error) {
	return p.one(p.c.post(ctx, projectPath(id)+"/start"))
}

// Stop stops a project. Stopping a stopped project succeeds.
func (p *ProjectClient) Stop(ctx context.Context, id string) (*Project, error) {
	return p.one(p.c.post(ctx, projectPath(id)+"/stop"))
}

// Restart stops then starts a project.
func (p *ProjectClient) Restart(ctx context.Context, id string) (*Project, error) {
	return p.one(p.c.post(ctx, projectPath(id)+"/restart"))
}

func (p *ProjectClient) one(data []byte, err error) (*Project, error) {
	if err != nil {
		return nil, err
	}
	project, err := decode[Project](data, "project")
	if err != nil {
		return nil, err
	}
	return &project, nil
}
