// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// stream dials a WebSocket endpoint and calls fn with each message until
// ctx is cancelled, fn returns an error or the server closes the stream.
// A normal close from the server returns nil.
func (c *Client) stream(ctx context.Context, path string, fn func(data []byte) error) error {
	url := c.baseURL + path
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	header := http.Header{}
	header.Set(VersionHeader, c.version)

	dialer := *websocket.DefaultDialer
	if t, ok := c.httpClient.Transport.(*http.Transport); ok && t.TLSClientConfig != nil {
		dialer.TLSClientConfig = t.TLSClientConfig
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		// Errors from the handler arrive as a normal API envelope.
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			defer resp.Body.Close()
			if _, apiErr := c.parseResponse(resp); apiErr != nil {
				return apiErr
			}
		}
		return fmt.Errorf("connect %s: %w", path, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := fn(data); err != nil {
			return err
		}
	}
}

// streamJSON is stream with each message decoded into T.
func streamJSON[T any](ctx context.Context, c *Client, path string, fn func(T) error) error {
	return c.stream(ctx, path, func(data []byte) error {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to parse message: %w", err)
		}
		return fn(v)
	})
}
