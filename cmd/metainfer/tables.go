// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/gomlx/metainfer/pkg/support/xslices"
)

// rowState of a node in the report: it selects the style of its rows.
type rowState int

const (
	// rowInferred is a node inferred by a closed-form rule.
	rowInferred rowState = iota

	// rowDelegated is a node inferred by the vendor runtime.
	rowDelegated

	// rowNotInferred is a node that failed, or was not reached.
	rowNotInferred

	// rowMoreOutputs is a continuation row, with the second and following outputs of a node.
	rowMoreOutputs
)

var cellStyle = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)

var rowStyles = [...]lipgloss.Style{
	rowInferred:    cellStyle,
	rowDelegated:   cellStyle.Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"}),
	rowNotInferred: cellStyle.Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).Bold(true),
	rowMoreOutputs: cellStyle.Faint(true),
}

var (
	headerStyle = lipgloss.NewStyle().Reverse(true).Padding(0, 2, 0, 2).Align(lipgloss.Center)
	titleStyle  = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

// descriptorTable is a lipgloss table whose rows are styled by their rowState.
type descriptorTable struct {
	Table  *lgtable.Table
	states []rowState
}

// Row adds a row with the given state.
func (t *descriptorTable) Row(state rowState, cells ...string) {
	t.states = append(t.states, state)
	t.Table.Row(cells...)
}

// Count returns the number of rows with the given state.
func (t *descriptorTable) Count(state rowState) int {
	var count int
	for _, s := range t.states {
		if s == state {
			count++
		}
	}
	return count
}

// style of the cell at (row, col). Row -1 is the header. Columns beyond the given alignments take the last one.
func (t *descriptorTable) style(row, col int, alignments []lipgloss.Position) lipgloss.Style {
	if row < 0 || row >= len(t.states) {
		return headerStyle
	}
	alignment := lipgloss.Left
	if col < len(alignments) {
		alignment = alignments[col]
	} else if len(alignments) > 0 {
		alignment = xslices.Last(alignments)
	}
	return rowStyles[t.states[row]].Align(alignment)
}

func newDescriptorTable(headers []string, alignments ...lipgloss.Position) *descriptorTable {
	t := &descriptorTable{}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			return t.style(row, col, alignments)
		})
	return t
}
