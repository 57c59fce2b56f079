// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opgraph

import (
	"context"
	"sync"

	"github.com/gomlx/metainfer/internal/workerspool"
	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/inference"
	"github.com/gomlx/metainfer/pkg/core/operands"
	"github.com/gomlx/metainfer/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Results maps node names to their inferred output descriptors.
type Results map[string][]descriptors.Descriptor

type propagateConfig struct {
	parallelism int
}

// Option of Propagate.
type Option func(c *propagateConfig)

// WithParallelism sets the maximum number of nodes inferred concurrently.
// 0 (the default) infers one node at a time, and a negative value means no limit.
//
// Calls into the delegate runtime are always serialized, regardless of the parallelism.
func WithParallelism(parallelism int) Option {
	return func(c *propagateConfig) {
		c.parallelism = parallelism
	}
}

// propagation is the state of one Propagate call.
type propagation struct {
	g      *Graph
	engine *inference.Engine

	// ready receives the indices of the nodes whose dependencies are all inferred.
	// It is buffered to the number of nodes, and each node is sent once, so it never blocks.
	ready chan int
	abort *xsync.Latch

	mu         sync.Mutex
	results    Results
	pending    []int   // Number of references to nodes not yet inferred, per node.
	dependents [][]int // Nodes referencing each node, once per reference.
	err        error
}

// Propagate infers the output descriptors of every node of the graph, in dependency order: the outputs
// of a node become the tensor operands of the nodes referencing it.
//
// It stops at the first error (or when ctx is done), and returns it annotated with the node name, along
// with the results of the nodes inferred so far. Nodes not reached are not inferred.
func Propagate(ctx context.Context, g *Graph, engine *inference.Engine, options ...Option) (Results, error) {
	var cfg propagateConfig
	for _, option := range options {
		option(&cfg)
	}
	if _, err := g.Order(); err != nil {
		return nil, err
	}

	numNodes := len(g.nodes)
	p := &propagation{
		g:          g,
		engine:     engine,
		ready:      make(chan int, numNodes),
		abort:      xsync.NewLatch(),
		results:    make(Results, numNodes),
		pending:    make([]int, numNodes),
		dependents: make([][]int, numNodes),
	}
	for idx, node := range g.nodes {
		for _, input := range node.Inputs {
			if input.IsRef() {
				depIdx := g.byName[input.Node]
				p.pending[idx]++
				p.dependents[depIdx] = append(p.dependents[depIdx], idx)
			}
		}
	}
	for idx := range g.nodes {
		if p.pending[idx] == 0 {
			p.ready <- idx
		}
	}

	pool := workerspool.New(cfg.parallelism)
	var wg sync.WaitGroup
	klog.V(1).Infof("propagating descriptors through %d nodes, parallelism=%d", numNodes, cfg.parallelism)
dispatch:
	for dispatched := 0; dispatched < numNodes; {
		if err := ctx.Err(); err != nil {
			p.setError(errors.Wrap(err, "propagation interrupted"))
			break
		}
		select {
		case idx := <-p.ready:
			dispatched++
			wg.Add(1)
			pool.WaitToStart(func() {
				defer wg.Done()
				p.infer(idx)
			})
		case <-p.abort.WaitChan():
			break dispatch
		case <-ctx.Done():
			p.setError(errors.Wrap(ctx.Err(), "propagation interrupted"))
			break dispatch
		}
	}
	wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results, p.err
}

// setError records the first error, and aborts the propagation.
func (p *propagation) setError(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
	p.abort.Trigger()
}

// infer the node #idx, and queue the dependents that become ready.
func (p *propagation) infer(idx int) {
	if p.abort.Test() {
		return
	}
	node := p.g.nodes[idx]
	inputs := make([]operands.Operand, len(node.Inputs))
	p.mu.Lock()
	for ii, input := range node.Inputs {
		if input.IsRef() {
			inputs[ii] = operands.NewTensor(p.results[input.Node][input.Output])
		} else {
			inputs[ii] = input.Operand
		}
	}
	p.mu.Unlock()

	outputs, err := p.engine.Infer(inference.Node{
		Op:         node.Op,
		Inputs:     inputs,
		Attributes: node.Attributes,
		NumOutputs: node.NumOutputs,
	})
	if err != nil {
		p.setError(errors.WithMessagef(err, "node %q", node.Name))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[node.Name] = outputs
	for _, depIdx := range p.dependents[idx] {
		p.pending[depIdx]--
		if p.pending[depIdx] == 0 {
			p.ready <- depIdx
		}
	}
}
