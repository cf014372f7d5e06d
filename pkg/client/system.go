// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// SystemClient provides status, port, process and proxy operations.
type SystemClient struct {
	c *Client
}

// Status returns the aggregate status and how long to wait before polling
// again: short while any project is active, longer when all are idle.
func (s *SystemClient) Status(ctx context.Context) (*AppStatus, time.Duration, error) {
	resp, err := s.c.doEnvelope(ctx, http.MethodGet, "/api/v1/status", nil)
	if err != nil {
		return nil, 0, err
	}
	st, err := decode[AppStatus](resp.Data, "status")
	if err != nil {
		return nil, 0, err
	}
	return &st, resp.Meta.PollInterval(), nil
}

// Port reports whether port is held and by which process.
func (s *SystemClient) Port(ctx context.Context, port int) (*PortInfo, error) {
	data, err := s.c.get(ctx, fmt.Sprintf("/api/v1/ports/%d", port))
	if err != nil {
		return nil, err
	}
	info, err := decode[PortInfo](data, "port info")
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Kill terminates a process: SIGTERM, then SIGKILL if it lingers.
func (s *SystemClient) Kill(ctx context.Context, pid int) error {
	_, err := s.c.post(ctx, fmt.Sprintf("/api/v1/processes/%d/kill", pid))
	return err
}

// Routes returns the routing table the proxy is serving.
func (s *SystemClient) Routes(ctx context.Context) ([]Route, error) {
	data, err := s.c.get(ctx, "/api/v1/proxy/routes")
	if err != nil {
		return nil, err
	}
	return decode[[]Route](data, "routes")
}

// RestartProxy restarts the proxy backend and returns the applied routes.
func (s *SystemClient) RestartProxy(ctx context.Context) ([]Route, error) {
	data, err := s.c.post(ctx, "/api/v1/proxy/restart")
	if err != nil {
		return nil, err
	}
	resp, err := decode[struct {
		Routes []Route `json:"routes"`
	}](data, "routes")
	if err != nil {
		return nil, err
	}
	return resp.Routes, nil
}

// ServerVersion returns the server build and the API version it used for
// this client.
func (s *SystemClient) ServerVersion(ctx context.Context) (*ServerVersion, error) {
	data, err := s.c.get(ctx, "/api/v1/version")
	if err != nil {
		return nil, err
	}
	v, err := decode[ServerVersion](data, "version")
	if err != nil {
		return nil, err
	}
	return &v, nil
}
