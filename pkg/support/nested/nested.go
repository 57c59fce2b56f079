// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package nested models values that arrive wrapped in arbitrarily nested single-element containers,
// like attribute values `[[1]]` or `([2, 3],)` exported by graph tracers, as a small tagged tree:
// a Node is either a Leaf, a Seq (ordered list) or a Tuple (ordered, fixed-size list).
//
// RemoveNesting collapses every container holding exactly one child into that child, recursively.
package nested

import (
	"fmt"
	"strings"
)

// Node of a nested value: one of Leaf, Seq or Tuple.
type Node interface {
	// isNode seals the interface: only the types of this package implement it.
	isNode()

	fmt.Stringer
}

// Leaf holds any non-container value.
type Leaf struct {
	Value any
}

// Seq is an ordered list of nodes.
type Seq []Node

// Tuple is an ordered, fixed-size list of nodes.
type Tuple []Node

func (Leaf) isNode()  {}
func (Seq) isNode()   {}
func (Tuple) isNode() {}

// String implements fmt.Stringer.
func (l Leaf) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", l.Value)
}

// String implements fmt.Stringer.
func (s Seq) String() string { return joinNodes("[", []Node(s), "]") }

// String implements fmt.Stringer. A one-element tuple is printed with a trailing comma.
func (t Tuple) String() string {
	if len(t) == 1 {
		return "(" + t[0].String() + ",)"
	}
	return joinNodes("(", []Node(t), ")")
}

func joinNodes(open string, nodes []Node, closing string) string {
	parts := make([]string, len(nodes))
	for ii, node := range nodes {
		parts[ii] = node.String()
	}
	return open + strings.Join(parts, ", ") + closing
}

// RemoveNesting collapses any container with exactly one child into that child, recursively.
// Containers with zero or more than one child are kept, with their children collapsed.
//
// Examples:
//
//	([a, d],)            -> [a, d]
//	[[[a]]]              -> a
//	[[["a", [["b"]]], "d"]] -> [["a", "b"], "d"]
func RemoveNesting(node Node) Node {
	switch n := node.(type) {
	case Seq:
		if len(n) == 1 {
			return RemoveNesting(n[0])
		}
		out := make(Seq, len(n))
		for ii, child := range n {
			out[ii] = RemoveNesting(child)
		}
		return out
	case Tuple:
		if len(n) == 1 {
			return RemoveNesting(n[0])
		}
		out := make(Tuple, len(n))
		for ii, child := range n {
			out[ii] = RemoveNesting(child)
		}
		return out
	}
	return node
}

// FromValue converts a Go value into a Node.
//
// Nodes are returned as is, []any and slices of the common scalar types become Seq of Leaf.
// Anything else becomes a Leaf.
func FromValue(value any) Node {
	switch v := value.(type) {
	case Node:
		return v
	case []any:
		return seqOf(v)
	case []int:
		return seqOf(v)
	case []int32:
		return seqOf(v)
	case []int64:
		return seqOf(v)
	case []float32:
		return seqOf(v)
	case []float64:
		return seqOf(v)
	case []bool:
		return seqOf(v)
	case []string:
		return seqOf(v)
	case [][]int:
		return seqOf(v)
	case [][]int64:
		return seqOf(v)
	}
	return Leaf{Value: value}
}

func seqOf[T any](values []T) Seq {
	seq := make(Seq, len(values))
	for ii, v := range values {
		seq[ii] = FromValue(v)
	}
	return seq
}

// ToValue converts a Node back into a Go value: a Leaf becomes its value, Seq and Tuple become []any.
func ToValue(node Node) any {
	switch n := node.(type) {
	case Leaf:
		return n.Value
	case Seq:
		return valuesOf(n)
	case Tuple:
		return valuesOf(n)
	}
	return nil
}

func valuesOf(nodes []Node) []any {
	values := make([]any, len(nodes))
	for ii, child := range nodes {
		values[ii] = ToValue(child)
	}
	return values
}

// Flatten returns the value with all single-element containers removed. It's a shortcut to
// ToValue(RemoveNesting(FromValue(value))).
func Flatten(value any) any {
	return ToValue(RemoveNesting(FromValue(value)))
}

// Leaves returns the values of all leaves in depth-first order.
func Leaves(node Node) []any {
	var leaves []any
	var visit func(Node)
	visit = func(n Node) {
		switch n := n.(type) {
		case Leaf:
			leaves = append(leaves, n.Value)
		case Seq:
			for _, child := range n {
				visit(child)
			}
		case Tuple:
			for _, child := range n {
				visit(child)
			}
		}
	}
	visit(node)
	return leaves
}
