// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
)

// ConfigClient reads and writes the Relief configuration file.
type ConfigClient struct {
	c *Client
}

// Get returns the raw text of the configuration file.
func (cc *ConfigClient) Get(ctx context.Context) (*ConfigText, error) {
	data, err := cc.c.get(ctx, "/api/v1/config")
	if err != nil {
		return nil, err
	}
	text, err := decode[ConfigText](data, "config")
	if err != nil {
		return nil, err
	}
	return &text, nil
}

// Save validates text, writes it and applies it. Text that does not parse
// fails with CONFIG_ERROR and the file is left unchanged.
func (cc *ConfigClient) Save(ctx context.Context, text string) (*ConfigApplied, error) {
	return cc.applied(cc.c.putJSON(ctx, "/api/v1/config", map[string]string{"text": text}))
}

// Reload re-reads the configuration file and applies it.
func (cc *ConfigClient) Reload(ctx context.Context) (*ConfigApplied, error) {
	return cc.applied(cc.c.post(ctx, "/api/v1/config/reload"))
}

func (cc *ConfigClient) applied(data []byte, err error) (*ConfigApplied, error) {
	if err != nil {
		return nil, err
	}
	applied, err := decode[ConfigApplied](data, "config")
	if err != nil {
		return nil, err
	}
	return &applied, nil
}
