// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package pool bounds how many on-demand operations run at once.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultSize is the number of workers when none is configured.
const DefaultSize = 8

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("worker pool closed")

// Pool runs functions with at most Size in flight. Callers wait for a
// free slot; waiting honors the caller's context.
type Pool struct {
	sem      *semaphore.Weighted
	size     int
	inFlight atomic.Int64
	closed   atomic.Bool
	wg       sync.WaitGroup
}

// New creates a pool of size workers.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Do runs fn once a slot is free and returns its error. If ctx ends while
// waiting, fn never runs and ctx.Err() is returned.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.wg.Add(1)
	p.inFlight.Add(1)
	defer func() {
		p.inFlight.Add(-1)
		p.sem.Release(1)
		p.wg.Done()
	}()
	return fn(ctx)
}

// Go runs fn in the background and delivers its result on the returned
// channel, which is buffered so the result is never lost.
func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context) error) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- p.Do(ctx, fn)
	}()
	return result
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// InFlight returns how many functions are running now.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Close rejects new work and waits for running work to finish or ctx to end.
func (p *Pool) Close(ctx context.Context) error {
	p.closed.Store(true)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
