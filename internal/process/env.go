// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// extraPathDirs are prepended to PATH when present, so tools installed by
// version managers resolve even when the daemon was launched without a login shell.
var extraPathDirs = []string{
	"/usr/local/bin",
	"/opt/homebrew/bin",
	"~/.local/bin",
	"~/go/bin",
	"~/.cargo/bin",
	"~/.volta/bin",
}

// BuildEnv assembles a workload environment: base, enriched PATH, the
// project .env file, spec env, then PORT. Later sources win.
func BuildEnv(base []string, dir string, env map[string]string, port int) ([]string, error) {
	vars := make(map[string]string, len(base)+len(env)+1)
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	vars["PATH"] = enrichPath(vars["PATH"])

	if dir != "" {
		dotenv, err := loadDotenv(filepath.Join(dir, ".env"))
		if err != nil {
			return nil, err
		}
		for k, v := range dotenv {
			vars[k] = v
		}
	}

	for k, v := range env {
		vars[k] = v
	}
	if port > 0 {
		vars["PORT"] = strconv.Itoa(port)
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+vars[k])
	}
	return out, nil
}

func loadDotenv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return vars, nil
}

func enrichPath(path string) string {
	existing := make(map[string]bool)
	for _, p := range filepath.SplitList(path) {
		existing[p] = true
	}

	home, _ := os.UserHomeDir()
	var prefix []string
	for _, dir := range extraPathDirs {
		if strings.HasPrefix(dir, "~/") {
			if home == "" {
				continue
			}
			dir = filepath.Join(home, dir[2:])
		}
		if existing[dir] {
			continue
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			prefix = append(prefix, dir)
			existing[dir] = true
		}
	}

	if len(prefix) == 0 {
		return path
	}
	if path == "" {
		return strings.Join(prefix, string(os.PathListSeparator))
	}
	return strings.Join(prefix, string(os.PathListSeparator)) + string(os.PathListSeparator) + path
}
