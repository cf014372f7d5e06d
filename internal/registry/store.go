// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hjson/hjson-go/v4"
)

// Store persists the project table.
type Store interface {
	Load() ([]Project, error)
	Save(projects []Project) error
}

// FileStore keeps projects in a JSON document on disk. The file is read
// as HJSON so hand edits with comments survive a reload; writes are
// plain JSON.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

type storeDocument struct {
	Version  int       `json:"version"`
	Projects []Project `json:"projects"`
}

// Load reads all persisted projects. A missing file is an empty registry.
func (s *FileStore) Load() ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", s.path, err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert registry: %w", err)
	}

	var doc storeDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", s.path, err)
	}
	return doc.Projects, nil
}

// Save atomically replaces the file with the given projects.
func (s *FileStore) Save(projects []Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(storeDocument{Version: 1, Projects: projects}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".projects-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

// MemoryStore keeps projects in memory only.
type MemoryStore struct {
	mu       sync.Mutex
	projects []Project
	saves    int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(projects ...Project) *MemoryStore {
	return &MemoryStore{projects: projects}
}

// Load returns the stored projects.
func (s *MemoryStore) Load() ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Project, len(s.projects))
	for i, p := range s.projects {
		out[i] = p.clone()
	}
	return out, nil
}

// Save replaces the stored projects.
func (s *MemoryStore) Save(projects []Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = make([]Project, len(projects))
	for i, p := range projects {
		s.projects[i] = p.clone()
	}
	s.saves++
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
