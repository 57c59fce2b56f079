// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gomlx/metainfer/pkg/support/xsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runTasks runs numTasks tasks in the pool, and returns the maximum number of tasks seen running at the same time.
func runTasks(t *testing.T, pool *Pool, numTasks int) int {
	var running, maxRunning, count atomic.Int32
	var wg sync.WaitGroup
	done := xsync.NewLatch()
	go func() {
		for range numTasks {
			wg.Add(1)
			pool.WaitToStart(func() {
				defer wg.Done()
				current := running.Add(1)
				for {
					prev := maxRunning.Load()
					if current <= prev || maxRunning.CompareAndSwap(prev, current) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				count.Add(1)
				running.Add(-1)
			})
		}
		wg.Wait()
		done.Trigger()
	}()

	select {
	case <-done.WaitChan():
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout before all tasks were executed.")
	}
	require.Equal(t, int32(numTasks), count.Load())
	return int(maxRunning.Load())
}

func TestPool_WaitToStart(t *testing.T) {
	const maxParallelism = 3
	pool := New(maxParallelism)
	assert.LessOrEqual(t, runTasks(t, pool, 12), maxParallelism)
	require.Eventually(t, func() bool { return pool.NumRunning() == 0 }, 5*time.Second, time.Millisecond)

	unlimited := New(-1)
	assert.GreaterOrEqual(t, runTasks(t, unlimited, 8), 1)
}

func TestPool_Inline(t *testing.T) {
	pool := New(0)
	var count int
	pool.WaitToStart(func() { count++ })
	assert.Equal(t, 1, count) // Ran inline.
	assert.Equal(t, 1, runTasks(t, pool, 5))
	assert.Equal(t, 0, pool.NumRunning())
}
