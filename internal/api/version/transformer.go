// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package version

import "sync"

// Transformer maps response data for the latest version back to the shape
// an older version expects.
type Transformer func(data interface{}) interface{}

var (
	mu sync.RWMutex
	// version -> endpoint -> transformer
	transformers = map[string]map[string]Transformer{}
)

// Transform applies the transformer registered for version and endpoint.
// Data is returned unchanged for the latest version, unknown versions and
// endpoints without a transformer.
func Transform(version, endpoint string, data interface{}) interface{} {
	if version == LatestVersion {
		return data
	}

	mu.RLock()
	t, ok := transformers[version][endpoint]
	mu.RUnlock()
	if !ok {
		return data
	}
	return t(data)
}

// RegisterTransformer adds a transformer for a version and endpoint.
// This is typically called from init.
//
//	func init() {
//	    version.RegisterTransformer(version.Version20260117, "error.port_in_use", legacyPortConflict)
//	}
func RegisterTransformer(version, endpoint string, t Transformer) {
	mu.Lock()
	defer mu.Unlock()
	if transformers[version] == nil {
		transformers[version] = make(map[string]Transformer)
	}
	transformers[version][endpoint] = t
}
