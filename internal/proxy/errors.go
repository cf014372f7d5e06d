// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"errors"
	"fmt"
)

// ErrTraefikNotFound is returned when the traefik binary cannot be located.
var ErrTraefikNotFound = errors.New("traefik binary not found")

// ApplyError is returned when the routing table could not be applied.
// The previous table stays in effect and project status is untouched.
type ApplyError struct {
	Backend string
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("proxy %s: apply routes: %v", e.Backend, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
