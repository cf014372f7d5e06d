// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseHosts = "127.0.0.1 localhost\n::1 localhost\n"

func writeHosts(t *testing.T, content string) *HostsFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return NewHostsFile(path)
}

func readHosts(t *testing.T, h *HostsFile) string {
	t.Helper()
	data, err := os.ReadFile(h.Path())
	require.NoError(t, err)
	return string(data)
}

func TestHostsFile_SyncAddsBlock(t *testing.T) {
	h := writeHosts(t, baseHosts)

	require.NoError(t, h.Sync([]string{"web.local", "api.local", "web.local"}))

	assert.Equal(t, baseHosts+"\n"+
		"# BEGIN RELIEF\n"+
		"127.0.0.1 api.local # RELIEF\n"+
		"127.0.0.1 web.local # RELIEF\n"+
		"# END RELIEF\n", readHosts(t, h))

	domains, err := h.Domains()
	require.NoError(t, err)
	assert.Equal(t, []string{"api.local", "web.local"}, domains)
}

func TestHostsFile_SyncReplacesBlock(t *testing.T) {
	h := writeHosts(t, baseHosts)
	require.NoError(t, h.Sync([]string{"old.local"}))

	require.NoError(t, h.Sync([]string{"new.local"}))

	content := readHosts(t, h)
	assert.NotContains(t, content, "old.local")
	assert.Contains(t, content, "127.0.0.1 new.local # RELIEF")
	assert.Contains(t, content, "127.0.0.1 localhost")
}

func TestHostsFile_SyncEmptyRemovesBlock(t *testing.T) {
	h := writeHosts(t, baseHosts)
	require.NoError(t, h.Sync([]string{"web.local"}))

	require.NoError(t, h.Sync(nil))

	assert.Equal(t, baseHosts, readHosts(t, h))
}

func TestHostsFile_PreservesSurroundingLines(t *testing.T) {
	h := writeHosts(t, "127.0.0.1 localhost\n"+
		"# BEGIN RELIEF\n127.0.0.1 stale.local # RELIEF\n# END RELIEF\n"+
		"10.0.0.5 nas.lan\n")

	require.NoError(t, h.Sync([]string{"web.local"}))

	content := readHosts(t, h)
	assert.Contains(t, content, "127.0.0.1 localhost\n10.0.0.5 nas.lan\n")
	assert.NotContains(t, content, "stale.local")
	assert.Contains(t, content, "127.0.0.1 web.local # RELIEF")
}

func TestHostsFile_DropsStrayMarkedLines(t *testing.T) {
	h := writeHosts(t, baseHosts+"127.0.0.1 orphan.local # RELIEF\n")

	require.NoError(t, h.Sync([]string{"web.local"}))

	assert.NotContains(t, readHosts(t, h), "orphan.local")
}

func TestHostsFile_MissingFile(t *testing.T) {
	h := NewHostsFile(filepath.Join(t.TempDir(), "hosts"))

	domains, err := h.Domains()
	require.NoError(t, err)
	assert.Empty(t, domains)

	require.NoError(t, h.Sync([]string{"web.local"}))
	assert.Equal(t, "# BEGIN RELIEF\n127.0.0.1 web.local # RELIEF\n# END RELIEF\n", readHosts(t, h))
}
