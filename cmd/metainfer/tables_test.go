// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/metainfer/pkg/core/delegate/delegatetest"
	"github.com/gomlx/metainfer/pkg/core/inference"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
)

func TestNodeRowState(t *testing.T) {
	engine := must.M1(inference.New(inference.WithRuntime(delegatetest.New())))
	assert.Equal(t, rowInferred, nodeRowState(engine, "Add", true))
	assert.Equal(t, rowDelegated, nodeRowState(engine, "MatMul", true))
	assert.Equal(t, rowNotInferred, nodeRowState(engine, "Add", false))
	assert.Equal(t, rowNotInferred, nodeRowState(engine, "MatMul", false))
}

func TestDescriptorTable(t *testing.T) {
	table := newDescriptorTable([]string{"Node", "Op", "Shape"}, lipgloss.Right, lipgloss.Left)
	table.Row(rowInferred, "x", "Cast", "[2 3]")
	table.Row(rowDelegated, "xw", "MatMul", "[2 4]")
	table.Row(rowMoreOutputs, "xw", "MatMul", "[4]")
	table.Row(rowNotInferred, "y", "Neg", "not inferred")
	assert.Equal(t, 1, table.Count(rowDelegated))
	assert.Equal(t, 0, table.Count(-1))

	alignments := []lipgloss.Position{lipgloss.Right, lipgloss.Left}
	assert.Equal(t, lipgloss.Center, table.style(-1, 0, alignments).GetAlign())
	assert.Equal(t, lipgloss.Right, table.style(0, 0, alignments).GetAlign())
	assert.Equal(t, lipgloss.Left, table.style(0, 2, alignments).GetAlign())
	assert.True(t, table.style(3, 1, alignments).GetBold())
	assert.False(t, table.style(0, 1, alignments).GetBold())
	assert.True(t, table.style(2, 1, alignments).GetFaint())
	assert.NotEmpty(t, table.Table.Render())
}
