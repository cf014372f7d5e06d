// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"net/url"
)

// ServiceClient provides access to managed service operations.
//
// Managed services are backing processes such as databases that projects
// depend on. Start and Stop are idempotent.
//
// Access this client through [Client.Services]:
//
//	services, err := client.Services.List(ctx)
type ServiceClient struct {
	c *Client
}

func servicePath(name string) string {
	return "/api/v1/services/" + url.PathEscape(name)
}

// List returns all configured services and their current status.
//
// Example:
//
//	services, err := client.Services.List(ctx)
//	for _, svc := range services {
//	    fmt.Printf("%s: %s\n", svc.Name, svc.Status.State)
//	}
func (s *ServiceClient) List(ctx context.Context) ([]Service, error) {
	data, err := s.c.get(ctx, "/api/v1/services")
	if err != nil {
		return nil, err
	}
	return decode[[]Service](data, "services")
}

// Start starts a service. Starting a running service is a no-op.
func (s *ServiceClient) Start(ctx context.Context, name string) (*Service, error) {
	return s.one(s.c.post(ctx, servicePath(name)+"/start"))
}

// Stop stops a service. Stopping a stopped service is a no-op.
func (s *ServiceClient) Stop(ctx context.Context, name string) (*Service, error) {
	return s.one(s.c.post(ctx, servicePath(name)+"/stop"))
}

// Install runs the service's install command.
func (s *ServiceClient) Install(ctx context.Context, name string) (*Service, error) {
	return s.one(s.c.post(ctx, servicePath(name)+"/install"))
}

func (s *ServiceClient) one(data []byte, err error) (*Service, error) {
	if err != nil {
		return nil, err
	}
	svc, err := decode[Service](data, "service")
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// ScriptClient runs configured global scripts.
type ScriptClient struct {
	c *Client
}

// List returns the configured scripts.
func (s *ScriptClient) List(ctx context.Context) ([]Script, error) {
	data, err := s.c.get(ctx, "/api/v1/scripts")
	if err != nil {
		return nil, err
	}
	return decode[[]Script](data, "scripts")
}

// Run executes a script to completion. A non-zero exit is reported in the
// result, not as an error. A script that times out returns a TIMEOUT
// [APIError] whose details carry the partial output.
func (s *ScriptClient) Run(ctx context.Context, name string) (*ScriptResult, error) {
	data, err := s.c.post(ctx, "/api/v1/scripts/"+url.PathEscape(name)+"/run")
	if err != nil {
		return nil, err
	}
	result, err := decode[ScriptResult](data, "script result")
	if err != nil {
		return nil, err
	}
	return &result, nil
}
