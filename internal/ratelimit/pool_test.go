// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolNeverExceedsCap(t *testing.T) {
	const maxActive = 3
	const total = 30

	pool := NewPool(maxActive, 0)

	var current, peak int64
	var wg sync.WaitGroup

	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func(context.Context) error {
				n := atomic.AddInt64(&current, 1)
				for {
					old := atomic.LoadInt64(&peak)
					if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt64(&current, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > maxActive {
		t.Fatalf("expected at most %d concurrent operations, observed %d", maxActive, got)
	}
}

func TestPoolFIFOOrder(t *testing.T) {
	pool := NewPool(1, 0)

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func(context.Context) error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		// Stagger submissions so queue order is deterministic.
		for {
			if pool.Queued() > i {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}

	close(block)
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("expected FIFO dequeue order, got %v", order)
		}
	}
}

func TestPoolReleasesSlotOnError(t *testing.T) {
	pool := NewPool(1, 0)

	wantErr := errors.New("boom")
	err := pool.Do(context.Background(), func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected operation error to propagate, got %v", err)
	}

	if got := pool.Active(); got != 0 {
		t.Fatalf("expected slot released after failure, active=%d", got)
	}

	// The pool must still be usable.
	if err := pool.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected pool usable after failed operation: %v", err)
	}
}

func TestPoolContextCancelWhileQueued(t *testing.T) {
	pool := NewPool(1, 0)

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func(context.Context) error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- pool.Do(ctx, func(context.Context) error { return nil })
	}()

	for pool.Queued() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(block)

	// Give the first operation time to finish and release its slot.
	deadline := time.Now().Add(time.Second)
	for pool.Active() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected pool to drain, active=%d queued=%d", pool.Active(), pool.Queued())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPoolPacingDelay(t *testing.T) {
	delay := 30 * time.Millisecond
	pool := NewPool(2, delay)

	start := time.Now()
	if err := pool.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Fatalf("expected at least %v pacing delay, ran in %v", delay, elapsed)
	}
}
