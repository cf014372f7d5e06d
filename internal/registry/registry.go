// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the single source of truth for project state.
//
// Locking has three levels. The registry lock guards membership only.
// Each entry has a data lock held for the duration of a single field
// update, so reads never wait longer than that. Each entry also has an
// operation lock that serializes lifecycle operations (start, stop,
// restart, remove) on one project while leaving other projects free.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	paths   map[string]string // cleaned path -> project ID

	store  Store
	saveMu sync.Mutex
	now    func() time.Time
}

type entry struct {
	op      sync.Mutex
	mu      sync.RWMutex
	project Project
	removed bool
}

// New creates a registry persisted to store. A nil store disables persistence.
func New(store Store) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		paths:   make(map[string]string),
		store:   store,
		now:     time.Now,
	}
}

// Load replaces registry contents with the persisted projects.
func (r *Registry) Load() error {
	if r.store == nil {
		return nil
	}
	projects, err := r.store.Load()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*entry, len(projects))
	r.paths = make(map[string]string, len(projects))
	for _, p := range projects {
		if p.ID == "" {
			continue
		}
		if p.Status == "" {
			p.Status = StatusStopped
		}
		r.entries[p.ID] = &entry{project: p}
		r.paths[cleanPath(p.Path)] = p.ID
	}
	return nil
}

// Add registers a new project. The ID is generated when empty, the status
// starts as stopped, and a path that is already registered is rejected.
func (r *Registry) Add(p Project) (Project, error) {
	path := cleanPath(p.Path)
	if path == "" {
		return Project{}, fmt.Errorf("project path is required")
	}

	r.mu.Lock()
	if existing, ok := r.paths[path]; ok {
		r.mu.Unlock()
		return Project{}, &DuplicatePathError{Path: path, ExistingID: existing}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := r.entries[p.ID]; ok {
		r.mu.Unlock()
		return Project{}, fmt.Errorf("project ID %s already exists", p.ID)
	}

	now := r.now()
	p.Path = path
	p.Status = StatusStopped
	p.PID = 0
	p.LastError = ""
	p.CreatedAt = now
	p.UpdatedAt = now
	p = p.clone()

	r.entries[p.ID] = &entry{project: p}
	r.paths[path] = p.ID
	r.mu.Unlock()

	if err := r.persist(); err != nil {
		r.mu.Lock()
		delete(r.entries, p.ID)
		delete(r.paths, path)
		r.mu.Unlock()
		return Project{}, err
	}
	return p.clone(), nil
}

// Remove unregisters a project. A project that is starting, running or
// stopping is rejected with ProjectBusyError.
func (r *Registry) Remove(id string) (Project, error) {
	e, err := r.entry(id)
	if err != nil {
		return Project{}, err
	}

	e.op.Lock()
	defer e.op.Unlock()

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	p := e.project
	if p.Status.IsActive() {
		e.mu.Unlock()
		return Project{}, &ProjectBusyError{ID: p.ID, Name: p.Name, Status: p.Status}
	}
	e.removed = true
	e.mu.Unlock()

	r.mu.Lock()
	delete(r.entries, id)
	delete(r.paths, cleanPath(p.Path))
	r.mu.Unlock()

	if err := r.persist(); err != nil {
		log.Printf("Registry: failed to persist removal of %s: %v", p.Name, err)
	}
	return p.clone(), nil
}

// Get returns a snapshot of one project.
func (r *Registry) Get(id string) (Project, error) {
	e, err := r.entry(id)
	if err != nil {
		return Project{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.project.clone(), nil
}

// List returns snapshots of all projects ordered by name.
func (r *Registry) List() []Project {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	projects := make([]Project, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		projects = append(projects, e.project.clone())
		e.mu.RUnlock()
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].Name != projects[j].Name {
			return projects[i].Name < projects[j].Name
		}
		return projects[i].ID < projects[j].ID
	})
	return projects
}

// UpdateOption adjusts fields alongside a status change.
type UpdateOption func(*Project)

// WithPID records the attached process ID. Zero detaches.
func WithPID(pid int) UpdateOption {
	return func(p *Project) { p.PID = pid }
}

// WithPort records the bound port.
func WithPort(port int) UpdateOption {
	return func(p *Project) { p.Port = port }
}

// WithLastError records the most recent failure. Empty clears it.
func WithLastError(msg string) UpdateOption {
	return func(p *Project) { p.LastError = msg }
}

// UpdateStatus moves a project to status and applies opts. Moving to
// stopped detaches the pid unless WithPID says otherwise.
func (r *Registry) UpdateStatus(id string, status Status, opts ...UpdateOption) (Project, error) {
	e, err := r.entry(id)
	if err != nil {
		return Project{}, err
	}

	e.mu.Lock()
	if !CanTransition(e.project.Status, status) {
		from := e.project.Status
		e.mu.Unlock()
		return Project{}, &InvalidTransitionError{ID: id, From: from, To: status}
	}
	e.project.Status = status
	if status == StatusStopped {
		e.project.PID = 0
	}
	for _, opt := range opts {
		opt(&e.project)
	}
	e.project.UpdatedAt = r.now()
	snapshot := e.project.clone()
	e.mu.Unlock()

	if err := r.persist(); err != nil {
		log.Printf("Registry: failed to persist status of %s: %v", snapshot.Name, err)
	}
	return snapshot, nil
}

// Update applies fn to a project's fields. Identity, path and lifecycle
// fields are restored after fn runs; use UpdateStatus for those.
func (r *Registry) Update(id string, fn func(p *Project)) (Project, error) {
	e, err := r.entry(id)
	if err != nil {
		return Project{}, err
	}

	e.mu.Lock()
	before := e.project
	fn(&e.project)
	e.project.ID = before.ID
	e.project.Path = before.Path
	e.project.Status = before.Status
	e.project.PID = before.PID
	e.project.CreatedAt = before.CreatedAt
	e.project.UpdatedAt = r.now()
	snapshot := e.project.clone()
	e.mu.Unlock()

	if err := r.persist(); err != nil {
		log.Printf("Registry: failed to persist update of %s: %v", snapshot.Name, err)
	}
	return snapshot, nil
}

// Lock acquires the operation lock of a project. Lifecycle operations hold
// it for their whole duration; the returned func releases it.
func (r *Registry) Lock(id string) (func(), error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	e.op.Lock()

	e.mu.RLock()
	removed := e.removed
	e.mu.RUnlock()
	if removed {
		e.op.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return e.op.Unlock, nil
}

// Count returns the number of registered projects.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) entry(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return e, nil
}

// persist writes a full snapshot. Saves are serialized so the newest
// snapshot always lands last.
func (r *Registry) persist() error {
	if r.store == nil {
		return nil
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	return r.store.Save(r.List())
}

func cleanPath(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
