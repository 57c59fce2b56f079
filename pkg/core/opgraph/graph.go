// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package opgraph holds a graph of operator nodes, whose inputs are either operands or the outputs of
// other nodes, and propagates descriptors through it in dependency order with an inference.Engine.
//
// Graphs can be built programmatically with Graph.Add, or loaded from YAML with LoadYAML.
package opgraph

import (
	"fmt"
	"strings"

	"github.com/gomlx/metainfer/pkg/core/inference"
	"github.com/gomlx/metainfer/pkg/core/operands"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Input of a graph node: either an Operand, or a reference to the output #Output of the node named Node.
type Input struct {
	Operand operands.Operand

	Node   string
	Output int
}

// Value returns an Input with the given operand.
func Value(operand operands.Operand) Input {
	return Input{Operand: operand}
}

// Ref returns an Input that references the output #output of the given node.
func Ref(node string, output int) Input {
	return Input{Node: node, Output: output}
}

// IsRef returns whether the input is a reference to another node output.
func (in Input) IsRef() bool {
	return in.Operand == nil
}

// String implements fmt.Stringer.
func (in Input) String() string {
	if in.IsRef() {
		if in.Output == 0 {
			return "@" + in.Node
		}
		return fmt.Sprintf("@%s:%d", in.Node, in.Output)
	}
	return in.Operand.String()
}

// Node of the graph.
type Node struct {
	// Name uniquely identifies the node in the graph.
	Name string

	// Op is the name of the operator.
	Op string

	Inputs     []Input
	Attributes inference.Attributes

	// NumOutputs of the node. 0 means 1.
	NumOutputs int
}

func (n *Node) numOutputs() int {
	if n.NumOutputs == 0 {
		return 1
	}
	return n.NumOutputs
}

// Graph of operator nodes, kept in insertion order.
type Graph struct {
	nodes  []*Node
	byName map[string]int
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{byName: make(map[string]int)}
}

// Add a node to the graph and returns its name. Nodes without a name are given a unique one
// ("node_<uuid>"). References to other nodes are only checked by Order, so nodes can be added in any order.
func (g *Graph) Add(node Node) (name string, err error) {
	if node.Op == "" {
		return "", errors.Errorf("node %q has no operator", node.Name)
	}
	if node.NumOutputs < 0 {
		return "", errors.Errorf("node %q has invalid number of outputs %d", node.Name, node.NumOutputs)
	}
	if node.Name == "" {
		node.Name = "node_" + uuid.NewString()
	}
	if _, found := g.byName[node.Name]; found {
		return "", errors.Errorf("duplicate node name %q", node.Name)
	}
	for ii, input := range node.Inputs {
		if input.IsRef() && input.Node == "" {
			return "", errors.Errorf("node %q input #%d has neither an operand nor a node reference", node.Name, ii)
		}
	}
	g.byName[node.Name] = len(g.nodes)
	g.nodes = append(g.nodes, &node)
	return node.Name, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (Node, bool) {
	idx, found := g.byName[name]
	if !found {
		return Node{}, false
	}
	return *g.nodes[idx], true
}

// Names returns the names of the nodes, in insertion order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.nodes))
	for ii, node := range g.nodes {
		names[ii] = node.Name
	}
	return names
}

// validateRefs checks that every reference points to an existing node output.
func (g *Graph) validateRefs() error {
	for _, node := range g.nodes {
		for ii, input := range node.Inputs {
			if !input.IsRef() {
				continue
			}
			idx, found := g.byName[input.Node]
			if !found {
				return errors.Errorf("node %q input #%d references unknown node %q", node.Name, ii, input.Node)
			}
			if numOutputs := g.nodes[idx].numOutputs(); input.Output < 0 || input.Output >= numOutputs {
				return errors.Errorf("node %q input #%d references output #%d of node %q, which has %d outputs",
					node.Name, ii, input.Output, input.Node, numOutputs)
			}
		}
	}
	return nil
}

// Order returns the names of the nodes in an order where every node comes after the nodes it
// references. Among nodes whose dependencies are met, insertion order is kept.
//
// It returns an error if a reference is invalid, or if some nodes can't be reached (a cycle).
func (g *Graph) Order() ([]string, error) {
	if err := g.validateRefs(); err != nil {
		return nil, err
	}
	order := make([]string, 0, len(g.nodes))
	done := make(map[string]bool, len(g.nodes))
	for {
		progress := false
		for _, node := range g.nodes {
			if done[node.Name] {
				continue
			}
			ready := true
			for _, input := range node.Inputs {
				if input.IsRef() && !done[input.Node] {
					ready = false
					break
				}
			}
			if ready {
				done[node.Name] = true
				order = append(order, node.Name)
				progress = true
			}
		}
		if !progress {
			break
		}
	}
	if len(order) != len(g.nodes) {
		var unreachable []string
		for _, node := range g.nodes {
			if !done[node.Name] {
				unreachable = append(unreachable, node.Name)
			}
		}
		return nil, errors.Errorf("nodes [%s] can't be inferred: they depend on each other (cycle)",
			strings.Join(unreachable, ", "))
	}
	return order, nil
}
