// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nested

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveNesting(t *testing.T) {
	// ([a, d],) -> [a, d]
	node := RemoveNesting(Tuple{Seq{Leaf{"a"}, Leaf{"d"}}})
	assert.Equal(t, Seq{Leaf{"a"}, Leaf{"d"}}, node)

	// [[[a]]] -> a
	node = RemoveNesting(Seq{Seq{Seq{Leaf{"a"}}}})
	assert.Equal(t, Leaf{"a"}, node)

	// [[["a", [["b"]]], "d"]] -> [["a", "b"], "d"]
	node = RemoveNesting(Seq{Seq{Seq{Leaf{"a"}, Seq{Seq{Leaf{"b"}}}}, Leaf{"d"}}})
	assert.Equal(t, Seq{Seq{Leaf{"a"}, Leaf{"b"}}, Leaf{"d"}}, node)
	assert.Equal(t, `[["a", "b"], "d"]`, node.String())

	// Tuples keep their kind.
	node = RemoveNesting(Tuple{Tuple{Leaf{1}}, Seq{Leaf{2}, Leaf{3}}})
	assert.Equal(t, Tuple{Leaf{1}, Seq{Leaf{2}, Leaf{3}}}, node)
	assert.Equal(t, "(1, [2, 3])", node.String())

	// Empty containers are kept.
	assert.Equal(t, Seq{}, RemoveNesting(Seq{}))
	assert.Equal(t, Leaf{7}, RemoveNesting(Leaf{7}))
}

func TestFromValue(t *testing.T) {
	assert.Equal(t, Leaf{3}, FromValue(3))
	assert.Equal(t, Seq{Leaf{1}, Leaf{2}}, FromValue([]int{1, 2}))
	assert.Equal(t, Seq{Seq{Leaf{int64(1)}}}, FromValue([][]int64{{1}}))
	assert.Equal(t, Seq{Leaf{"x"}, Seq{Leaf{1.5}}}, FromValue([]any{"x", []float64{1.5}}))
	tuple := Tuple{Leaf{true}}
	assert.Equal(t, tuple, FromValue(tuple))
	assert.Equal(t, "(true,)", tuple.String())
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, 1, Flatten([][]int{{1}}))
	assert.Equal(t, []any{int64(2), int64(3)}, Flatten([][]int64{{2, 3}}))
	assert.Equal(t, []any{"a", []any{1, 2}}, Flatten([]any{[]any{"a"}, []int{1, 2}}))
	assert.Equal(t, "x", Flatten("x"))
}

func TestLeaves(t *testing.T) {
	leaves := Leaves(Seq{Leaf{1}, Tuple{Leaf{2}, Seq{Leaf{3}}}, Seq{}})
	require.Len(t, leaves, 3)
	assert.Equal(t, []any{1, 2, 3}, leaves)
	assert.Nil(t, ToValue(nil))
}
