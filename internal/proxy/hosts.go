// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	hostsBegin  = "# BEGIN RELIEF"
	hostsEnd    = "# END RELIEF"
	hostsMarker = "# RELIEF"
)

// HostsFile maintains the block of relief domains in a hosts file.
type HostsFile struct {
	path string
}

// NewHostsFile manages the hosts file at path.
func NewHostsFile(path string) *HostsFile {
	return &HostsFile{path: path}
}

// Path returns the managed file.
func (h *HostsFile) Path() string {
	return h.path
}

// Sync rewrites the relief block so it lists exactly domains. Lines outside
// the block are preserved. An empty list removes the block.
func (h *HostsFile) Sync(domains []string) error {
	content, err := os.ReadFile(h.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read hosts file: %w", err)
	}

	updated := renderHosts(string(content), domains)
	if updated == string(content) {
		return nil
	}
	return writeFileAtomic(h.path, []byte(updated), 0644)
}

// Domains returns the domains currently listed in the relief block.
func (h *HostsFile) Domains() ([]string, error) {
	content, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read hosts file: %w", err)
	}

	var domains []string
	inBlock := false
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == hostsBegin:
			inBlock = true
		case trimmed == hostsEnd:
			inBlock = false
		case inBlock:
			if fields := strings.Fields(trimmed); len(fields) >= 2 {
				domains = append(domains, fields[1])
			}
		}
	}
	return domains, nil
}

func renderHosts(content string, domains []string) string {
	var kept []string
	inBlock := false
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == hostsBegin:
			inBlock = true
			continue
		case trimmed == hostsEnd:
			inBlock = false
			continue
		case inBlock:
			continue
		case strings.HasSuffix(trimmed, hostsMarker):
			// stray entry from an interrupted edit
			continue
		}
		kept = append(kept, line)
	}
	for len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
		kept = kept[:len(kept)-1]
	}

	unique := make(map[string]bool)
	var sorted []string
	for _, d := range domains {
		if d != "" && !unique[d] {
			unique[d] = true
			sorted = append(sorted, d)
		}
	}
	sort.Strings(sorted)

	var b strings.Builder
	for _, line := range kept {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if len(sorted) > 0 {
		if len(kept) > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(hostsBegin + "\n")
		for _, d := range sorted {
			fmt.Fprintf(&b, "127.0.0.1 %s %s\n", d, hostsMarker)
		}
		b.WriteString(hostsEnd + "\n")
	}
	return b.String()
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place. When the directory is not writable (/etc) it
// falls back to rewriting the file in place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		if os.IsPermission(err) {
			if err := os.WriteFile(path, data, perm); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			return nil
		}
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
