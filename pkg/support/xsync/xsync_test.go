// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatch(t *testing.T) {
	l := NewLatch()
	assert.False(t, l.Test())
	go l.Trigger()
	select {
	case <-l.WaitChan():
	case <-time.After(5 * time.Second):
		t.Fatal("latch never triggered")
	}
	l.Wait()
	l.Trigger()
	assert.True(t, l.Test())
}
