// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opgraph

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gomlx/metainfer/pkg/core/delegate/delegatetest"
	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/gomlx/metainfer/pkg/core/inference"
	"github.com/gomlx/metainfer/pkg/core/operands"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Aliases
var (
	F16 = dtypes.Float16
	F32 = dtypes.Float32
	I64 = dtypes.Int64
	MD  = descriptors.Make
)

// matMulRule of the fake runtime: [..., m, k] x [k, n] -> [..., m, n].
func matMulRule(inputs []delegatetest.Desc, _ map[string]any, _ int) ([]delegatetest.Desc, int32) {
	lhs, rhs := inputs[0].Dims, inputs[1].Dims
	dims := append(slices.Clone(lhs[:len(lhs)-1]), rhs[1])
	return []delegatetest.Desc{{DTypeCode: inputs[0].DTypeCode, Dims: dims}}, 0
}

func TestLoadYAMLAndPropagate(t *testing.T) {
	g := must.M1(LoadYAMLFile("testdata/graph.yaml"))
	require.Equal(t, 8, g.Len())
	names := g.Names()
	assert.Equal(t, []string{"x", "w", "xw", "scaled", "mask", "masked", "total"}, names[:7])
	argMaxName := names[7]
	assert.True(t, strings.HasPrefix(argMaxName, "node_"), "got %q", argMaxName)

	masked, found := g.Node("masked")
	require.True(t, found)
	assert.Equal(t, "Where", masked.Op)
	require.Len(t, masked.Inputs, 3)
	assert.True(t, masked.Inputs[0].IsRef())
	assert.Equal(t, "@mask", masked.Inputs[0].String())
	assert.False(t, masked.Inputs[2].IsRef())

	for _, parallelism := range []int{0, 2, -1} {
		fake := delegatetest.New().SetRule("MatMul", matMulRule)
		engine := must.M1(inference.New(inference.WithRuntime(fake)))
		results, err := Propagate(context.Background(), g, engine, WithParallelism(parallelism))
		require.NoError(t, err, "parallelism=%d", parallelism)
		require.Len(t, results, 8)

		assert.NoError(t, results["x"][0].Check(F16, 2, 4, 8))
		assert.NoError(t, results["w"][0].Check(F16, 8, 8))
		assert.NoError(t, results["xw"][0].Check(F16, 2, 4, 8))
		assert.NoError(t, results["scaled"][0].Check(F32, 2, 4, 8))
		assert.NoError(t, results["mask"][0].Check(dtypes.Bool, 2, 4, 8))
		assert.NoError(t, results["masked"][0].Check(F32, 2, 4, 8))
		assert.NoError(t, results["total"][0].Check(F32, 2, 4, 1))
		assert.NoError(t, results[argMaxName][0].Check(I64, 2, 1))
		assert.Equal(t, descriptors.LayoutContiguous, results["total"][0].Layout)

		calls := fake.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, false, calls[0].Attrs["transpose_x2"])
		assert.Equal(t, 0, fake.Outstanding())
	}
}

func TestPropagateError(t *testing.T) {
	g := must.M1(LoadYAMLFile("testdata/graph.yaml"))

	// Without a delegate, MatMul can't be inferred.
	engine := must.M1(inference.New())
	results, err := Propagate(context.Background(), g, engine)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `node "xw"`)
	assert.Contains(t, results, "x")
	assert.Contains(t, results, "w")
	assert.NotContains(t, results, "xw")
	assert.NotContains(t, results, "scaled")

	// Interrupted.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err = Propagate(ctx, g, engine, WithParallelism(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, results)
}

func TestPropagateParallelism(t *testing.T) {
	const numLeaves = 20
	var running, maxRunning atomic.Int32
	slowAdd := func(node inference.Node) ([]descriptors.Descriptor, error) {
		current := running.Add(1)
		defer running.Add(-1)
		for {
			prev := maxRunning.Load()
			if current <= prev || maxRunning.CompareAndSwap(prev, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return []descriptors.Descriptor{MD(F32, 2)}, nil
	}
	engine := must.M1(inference.New(inference.WithRule("SlowAdd", slowAdd)))

	g := New()
	concat := Node{Name: "concat", Op: "Concat"}
	for range numLeaves {
		leaf := operands.NewTensor(MD(F32, 2))
		name := must.M1(g.Add(Node{Op: "SlowAdd", Inputs: []Input{Value(leaf), Value(leaf)}}))
		concat.Inputs = append(concat.Inputs, Ref(name, 0))
	}
	// Added last, but references nodes added before.
	must.M1(g.Add(concat))

	results, err := Propagate(context.Background(), g, engine, WithParallelism(3))
	require.NoError(t, err)
	require.Len(t, results, numLeaves+1)
	assert.NoError(t, results["concat"][0].Check(F32, 2*numLeaves))
	assert.LessOrEqual(t, maxRunning.Load(), int32(3))
}

func TestGraphValidation(t *testing.T) {
	x := Value(operands.NewTensor(MD(F32, 3)))

	g := New()
	must.M1(g.Add(Node{Name: "a", Op: "Neg", Inputs: []Input{Ref("b", 0)}}))
	must.M1(g.Add(Node{Name: "b", Op: "Neg", Inputs: []Input{Ref("a", 0)}}))
	must.M1(g.Add(Node{Name: "c", Op: "Neg", Inputs: []Input{x}}))
	_, err := g.Order()
	require.ErrorContains(t, err, "[a, b]")
	_, err = Propagate(context.Background(), g, must.M1(inference.New()))
	require.Error(t, err)

	g = New()
	must.M1(g.Add(Node{Name: "a", Op: "Neg", Inputs: []Input{Ref("missing", 0)}}))
	_, err = g.Order()
	require.ErrorContains(t, err, "unknown node")

	g = New()
	must.M1(g.Add(Node{Name: "split", Op: "Split", Inputs: []Input{x}, NumOutputs: 2}))
	must.M1(g.Add(Node{Name: "b", Op: "Neg", Inputs: []Input{Ref("split", 1)}}))
	order := must.M1(g.Order())
	assert.Equal(t, []string{"split", "b"}, order)
	must.M1(g.Add(Node{Name: "c", Op: "Neg", Inputs: []Input{Ref("split", 2)}}))
	_, err = g.Order()
	require.ErrorContains(t, err, "has 2 outputs")

	_, err = g.Add(Node{Name: "b", Op: "Neg"})
	require.ErrorContains(t, err, "duplicate")
	_, err = g.Add(Node{Name: "d"})
	require.Error(t, err)
	_, err = g.Add(Node{Name: "e", Op: "Neg", Inputs: []Input{{}}})
	require.Error(t, err)
	_, err = g.Add(Node{Name: "f", Op: "Neg", NumOutputs: -1})
	require.Error(t, err)

	// Empty graph.
	results, err := Propagate(context.Background(), New(), must.M1(inference.New()))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLoadYAMLInputs(t *testing.T) {
	g := must.M1(LoadYAML(strings.NewReader(`
nodes:
  - name: view
    op: Identity
    inputs:
      - tensor: {dtype: float32, shape: [4, 5], layout: nhwc, strides: [10, 1], offset: 3}
  - name: contiguous_offset
    op: Identity
    inputs:
      - tensor: {dtype: int32, shape: [2, 3], offset: 1}
  - name: handle
    op: Neg
    inputs: [{unranked: int64}]
  - name: c
    op: Neg
    inputs: [{const: [[1, 2, 3], float16, [3], channels_last]}]
`)))
	require.Equal(t, 4, g.Len())
	view, _ := g.Node("view")
	tensor, ok := view.Inputs[0].Operand.(operands.Tensor)
	require.True(t, ok)
	assert.NoError(t, tensor.Check(F32, 4, 5))
	assert.Equal(t, descriptors.LayoutChannelsLast, tensor.Layout)
	assert.Equal(t, []int{10, 1}, tensor.Strides)
	assert.Equal(t, 3, tensor.StorageOffset)

	node, _ := g.Node("contiguous_offset")
	tensor = node.Inputs[0].Operand.(operands.Tensor)
	assert.Equal(t, []int{3, 1}, tensor.Strides)
	assert.Equal(t, 1, tensor.StorageOffset)

	node, _ = g.Node("handle")
	tensor = node.Inputs[0].Operand.(operands.Tensor)
	assert.True(t, tensor.Unranked)

	node, _ = g.Node("c")
	c, ok := node.Inputs[0].Operand.(operands.Const)
	require.True(t, ok)
	assert.Equal(t, F16, c.DType)
	assert.Equal(t, []int{3}, c.Dimensions)
	assert.Equal(t, descriptors.LayoutChannelsLast, c.Layout)

	// Empty document.
	g = must.M1(LoadYAML(strings.NewReader("")))
	assert.Equal(t, 0, g.Len())

	for _, bad := range []string{
		"nodes: [{op: Neg, inputs: [{ref: a, scalar: 1}]}]",
		"nodes: [{op: Neg, inputs: [{}]}]",
		"nodes: [{op: Neg, inputs: [{ref: 'a:x'}]}]",
		"nodes: [{op: Neg, inputs: [{scalar: abc}]}]",
		"nodes: [{op: Neg, inputs: [{const: [1]}]}]",
		"nodes: [{op: Neg, inputs: [{tensor: {dtype: float99, shape: [1]}}]}]",
		"nodes: [{op: Neg, inputs: [{tensor: {dtype: float32, shape: [-1]}}]}]",
		"nodes: [{op: Neg, inputs: [{tensor: {dtype: float32, shape: [2], strides: [1, 1]}}]}]",
		"nodes: [{op: Neg, unknown_field: 1}]",
		"nodes: [{name: a, op: Neg}, {name: a, op: Neg}]",
		"nodes: {",
	} {
		_, err := LoadYAML(strings.NewReader(bad))
		require.Error(t, err, "yaml: %s", bad)
	}
}
