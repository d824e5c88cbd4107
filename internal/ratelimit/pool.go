// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ratelimit bounds concurrent outbound work against upstreams that
// ban aggressive clients. A Pool is a counting cap with a strict FIFO queue
// for excess callers, plus an optional pacing delay applied before every
// operation even when the pool is idle.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Pool struct {
	mu        sync.Mutex
	maxActive int
	delay     time.Duration
	active    int
	waiters   []chan struct{}
}

// NewPool creates a pool allowing maxActive concurrent operations. Each
// operation is preceded by delay once it holds a slot; pass 0 to disable
// pacing.
func NewPool(maxActive int, delay time.Duration) *Pool {
	if maxActive <= 0 {
		maxActive = 1
	}
	return &Pool{
		maxActive: maxActive,
		delay:     delay,
	}
}

// Do runs fn under a pool slot, queueing FIFO behind earlier callers when
// the pool is saturated. The slot is released on every exit path, so a
// failing fn never corrupts the pool. fn errors are returned unchanged.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()

	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fn(ctx)
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	return result, err
}

// Active returns the number of operations currently holding a slot.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Queued returns the number of callers waiting for a slot.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

func (p *Pool) acquire(ctx context.Context) error {
	p.mu.Lock()
	if p.active < p.maxActive {
		p.active++
		p.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	p.waiters = append(p.waiters, ready)
	p.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, w := range p.waiters {
			if w == ready {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				p.mu.Unlock()
				return ctx.Err()
			}
		}
		p.mu.Unlock()
		// The slot was handed to us between ctx.Done and taking the lock;
		// give it back so the count stays correct.
		p.release()
		return ctx.Err()
	}
}

func (p *Pool) release() {
	p.mu.Lock()
	if len(p.waiters) > 0 {
		// Hand the slot to the oldest waiter without touching the counter.
		next := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		close(next)
		return
	}
	p.active--
	p.mu.Unlock()
}
