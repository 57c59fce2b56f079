// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool limits the number of goroutines running inference tasks concurrently.
package workerspool

import "sync"

// Pool of workers with a limit on the number of tasks running in parallel.
type Pool struct {
	// maxParallelism: 0 runs tasks inline, < 0 means unlimited.
	maxParallelism int

	mu         sync.Mutex
	cond       sync.Cond // Signaled whenever numRunning is decreased.
	numRunning int
}

// New returns a new Pool of workers with the given parallelism.
// If maxParallelism is 0, tasks are run inline. If it is negative, parallelism is unlimited.
func New(maxParallelism int) *Pool {
	p := &Pool{maxParallelism: maxParallelism}
	p.cond = sync.Cond{L: &p.mu}
	return p
}

// NumRunning returns the number of tasks currently running in their own goroutine.
func (p *Pool) NumRunning() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numRunning
}

// WaitToStart waits until there is a worker available to run the task, and starts it in a goroutine.
//
// If maxParallelism is 0, it runs the task inline and returns when it is finished.
// Tasks must not call WaitToStart themselves, or the pool may deadlock when full.
func (p *Pool) WaitToStart(task func()) {
	if p.maxParallelism == 0 {
		task()
		return
	}
	p.mu.Lock()
	for p.maxParallelism > 0 && p.numRunning >= p.maxParallelism {
		p.cond.Wait()
	}
	p.numRunning++
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.numRunning--
			p.cond.Signal()
			p.mu.Unlock()
		}()
		task()
	}()
}
