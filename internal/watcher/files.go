// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher reacts to edits of files relief depends on, such as
// the global config file.
package watcher

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watcher is closed")

// Handler is called with the changed path once edits have settled.
type Handler func(path string)

// FileWatcher calls a handler when a watched file is written or replaced.
// It watches parent directories rather than the files themselves so that
// editors and atomic writers that rename over the file are still seen.
type FileWatcher struct {
	mu        sync.RWMutex
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	files     map[string]string  // absolute path -> key
	keys      map[string]string  // key -> absolute path
	handlers  map[string]Handler // key -> handler
	dirs      map[string]int     // directory -> number of files watched in it
	closed    bool
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// NewFileWatcher creates a watcher whose handlers run after debounce of
// quiet time.
func NewFileWatcher(debounce time.Duration) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w := &FileWatcher{
		watcher:   fsw,
		debouncer: NewDebouncer(debounce),
		files:     make(map[string]string),
		keys:      make(map[string]string),
		handlers:  make(map[string]Handler),
		dirs:      make(map[string]int),
		closeCh:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watch registers fn under key for changes to path. Registering a key
// again replaces its path and handler. The file itself need not exist yet,
// but its directory must.
func (w *FileWatcher) Watch(key, path string, fn Handler) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	if old, ok := w.keys[key]; ok {
		w.unwatchLocked(key, old)
	}
	if err := w.addDirLocked(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w.files[abs] = key
	w.keys[key] = abs
	w.handlers[key] = fn
	return nil
}

// Unwatch removes key. Unknown keys are ignored.
func (w *FileWatcher) Unwatch(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if path, ok := w.keys[key]; ok {
		w.unwatchLocked(key, path)
	}
	w.debouncer.Cancel(key)
}

func (w *FileWatcher) unwatchLocked(key, path string) {
	delete(w.files, path)
	delete(w.keys, key)
	delete(w.handlers, key)
	w.removeDirLocked(filepath.Dir(path))
}

// Watching returns the registered keys, sorted.
func (w *FileWatcher) Watching() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	keys := make([]string, 0, len(w.keys))
	for k := range w.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetDebounce changes the quiet period for later changes.
func (w *FileWatcher) SetDebounce(d time.Duration) {
	w.debouncer.SetDuration(d)
}

// Close stops the watcher. Pending handlers are dropped.
func (w *FileWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.debouncer.Stop()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *FileWatcher) addDirLocked(dir string) error {
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	return nil
}

func (w *FileWatcher) removeDirLocked(dir string) {
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		w.watcher.Remove(dir)
		delete(w.dirs, dir)
	}
}

func (w *FileWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

func (w *FileWatcher) handle(event fsnotify.Event) {
	// Chmod fires on touch and permission changes; removals leave nothing
	// to read.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	w.mu.RLock()
	key, ok := w.files[filepath.Clean(event.Name)]
	fn := w.handlers[key]
	w.mu.RUnlock()
	if !ok || fn == nil {
		return
	}

	path := event.Name
	w.debouncer.Debounce(key, func() {
		w.mu.RLock()
		closed := w.closed
		w.mu.RUnlock()
		if !closed {
			fn(path)
		}
	})
}
