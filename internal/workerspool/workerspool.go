// Copyright 2023-2026 The meshgrad Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool provides the goroutine pool the dense engine uses to
// parallelize elementwise kernels over disjoint chunks of flat storage.
package workerspool

import (
	"runtime"
	"sync"
)

type Pool struct {
	// maxParallelism is a soft target on the limit of parallel work to do.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Signaled whenever numRunning decreases.
	numRunning     int
}

// New returns a new Pool with the given parallelism target. Values <= 0 mean
// runtime.NumCPU().
func New(maxParallelism int) *Pool {
	if maxParallelism <= 0 {
		maxParallelism = runtime.NumCPU()
	}
	p := &Pool{maxParallelism: maxParallelism}
	p.cond = sync.Cond{L: &p.mu}
	return p
}

// MaxParallelism is a soft target for parallelism.
func (p *Pool) MaxParallelism() int {
	return p.maxParallelism
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with p.mu acquired.
func (p *Pool) lockedIsFull() bool {
	return p.numRunning >= p.maxParallelism
}

// WaitToStart waits until there is a worker available, then runs the task on
// it. It returns as soon as the task starts; synchronizing the end of the
// task is up to the caller.
func (p *Pool) WaitToStart(task func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.lockedIsFull() {
		p.cond.Wait()
	}
	p.lockedRunTaskInGoroutine(task)
}

// lockedRunTaskInGoroutine keeps tabs on p.numRunning.
//
// It must be called with p.mu acquired.
func (p *Pool) lockedRunTaskInGoroutine(task func()) {
	p.numRunning++
	go func() {
		task()
		p.mu.Lock()
		p.numRunning--
		p.cond.Signal()
		p.mu.Unlock()
	}()
}

// Range splits [0, n) into consecutive chunks of at least minChunk elements,
// runs fn(start, end) for each chunk on the pool and waits for all of them to
// finish. When n fits in a single chunk (or the pool has one worker) fn runs
// inline on the calling goroutine.
//
// The chunks are disjoint, so fn may write to per-index data without locking.
func (p *Pool) Range(n, minChunk int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if minChunk < 1 {
		minChunk = 1
	}
	numChunks := (n + minChunk - 1) / minChunk
	if numChunks > p.maxParallelism {
		numChunks = p.maxParallelism
	}
	if numChunks <= 1 {
		fn(0, n)
		return
	}
	chunkSize := (n + numChunks - 1) / numChunks
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		wg.Add(1)
		start, end := start, end
		p.WaitToStart(func() {
			defer wg.Done()
			fn(start, end)
		})
	}
	wg.Wait()
}
