// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package scripts

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/relief/internal/config"
	"github.com/wingedpig/relief/internal/events"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed")
	}
}

func newTestRunner(t *testing.T, configs ...config.ScriptConfig) (*Runner, *events.MemoryEventBus) {
	t.Helper()
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{HistoryMaxEvents: 100, HistoryMaxAge: time.Hour})
	t.Cleanup(func() { bus.Close() })
	return NewRunner(configs, 0, t.TempDir(), bus), bus
}

func TestRunner_Success(t *testing.T) {
	requireShell(t)
	r, bus := newTestRunner(t, config.ScriptConfig{
		Name:    "hello",
		Command: "echo out; echo err >&2; echo $GREETING",
		Env:     map[string]string{"GREETING": "hi there"},
	})

	result, err := r.Run(context.Background(), "hello")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Output, "out\n")
	assert.Contains(t, result.Output, "err\n")
	assert.Contains(t, result.Output, "hi there\n")
	assert.False(t, result.FinishedAt.Before(result.StartedAt))

	history, err := bus.History(events.EventFilter{Types: []string{events.EventScriptFinished}})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Payload["script"])
	assert.Equal(t, true, history[0].Payload["success"])
}

func TestRunner_Failure(t *testing.T) {
	requireShell(t)
	r, _ := newTestRunner(t, config.ScriptConfig{Name: "lint", Command: "echo 2 problems; exit 4"})

	result, err := r.Run(context.Background(), "lint")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 4, result.ExitCode)
	assert.Equal(t, "2 problems\n", result.Output)
	assert.Equal(t, "exit status 4", result.Error)
}

func TestRunner_Timeout(t *testing.T) {
	requireShell(t)
	r, _ := newTestRunner(t, config.ScriptConfig{
		Name:    "slow",
		Command: "echo begin; sleep 30",
		Timeout: "200ms",
	})

	start := time.Now()
	result, err := r.Run(context.Background(), "slow")

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 200*time.Millisecond, timeout.Timeout)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "begin\n", result.Output)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunner_UnknownScript(t *testing.T) {
	r, _ := newTestRunner(t, config.ScriptConfig{Name: "migrate-db", Command: "true"})

	_, err := r.Run(context.Background(), "migrate_db")

	var unknown *UnknownScriptError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "migrate_db", unknown.Name)
	assert.Equal(t, "migrate-db", unknown.Suggestion)

	_, err = r.Get("deploy")
	require.ErrorAs(t, err, &unknown)
	assert.Empty(t, unknown.Suggestion)
	assert.Equal(t, `script "deploy" not found`, err.Error())
}

func TestRunner_WorkDir(t *testing.T) {
	requireShell(t)
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "tools"), 0755))
	r := NewRunner([]config.ScriptConfig{
		{Name: "where", Command: "pwd"},
		{Name: "sub", Command: "pwd", WorkDir: "tools"},
	}, time.Minute, base, nil)

	result, err := r.Run(context.Background(), "where")
	require.NoError(t, err)
	assert.Equal(t, resolve(t, base), resolve(t, strings.TrimSpace(result.Output)))

	result, err = r.Run(context.Background(), "sub")
	require.NoError(t, err)
	assert.Equal(t, resolve(t, filepath.Join(base, "tools")), resolve(t, strings.TrimSpace(result.Output)))
}

func resolve(t *testing.T, path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}

func TestRunner_ListAndUpdate(t *testing.T) {
	r := NewRunner([]config.ScriptConfig{
		{Name: "b", Command: "true", Timeout: "1m"},
		{Name: "a", Command: "true"},
		{Name: "b", Command: "false"},
	}, 5*time.Minute, "", nil)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Name)
	assert.Equal(t, "true", list[0].Command, "first definition wins")
	assert.Equal(t, time.Minute, list[0].Timeout)
	assert.Equal(t, 5*time.Minute, list[1].Timeout)

	r.UpdateConfigs([]config.ScriptConfig{{Name: "c", Command: "true"}}, 0, "")
	list = r.List()
	require.Len(t, list, 1)
	assert.Equal(t, DefaultTimeout, list[0].Timeout)
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 8}
	n, err := b.Write([]byte("12345"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, _ = b.Write([]byte("67890"))
	assert.Equal(t, 5, n)
	b.Write([]byte("more"))

	assert.True(t, b.truncated)
	assert.True(t, strings.HasPrefix(b.String(), "12345678\n... output truncated"))
}
