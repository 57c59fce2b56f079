// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package inference

import (
	"testing"

	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/gomlx/metainfer/pkg/core/operands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes(t *testing.T) {
	attrs := Attributes{
		"axis":     []any{[]int64{2}},
		"axes":     []int{0, -1},
		"single":   7,
		"float":    3.0,
		"frac":     3.5,
		"keepdim":  []bool{true},
		"dtype":    "FLOAT",
		"dtype2":   dtypes.BFloat16,
		"dtype3":   "int64",
		"layout":   "NHWC",
		"layout2":  descriptors.LayoutContiguous,
		"nested":   []any{[]int{1, 2}, 3},
		"nil":      nil,
		"negative": uint64(1) << 63,
	}

	assert.True(t, attrs.Has("axis"))
	assert.False(t, attrs.Has("nil"))
	assert.False(t, attrs.Has("missing"))

	v, err := attrs.Int("axis", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	v, err = attrs.Int("missing", 11)
	require.NoError(t, err)
	assert.Equal(t, 11, v)
	v, err = attrs.Int("float", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	_, err = attrs.Int("frac", 0)
	require.Error(t, err)
	_, err = attrs.Int("negative", 0)
	require.Error(t, err)

	values, err := attrs.Ints("axes")
	require.NoError(t, err)
	assert.Equal(t, []int{0, -1}, values)
	values, err = attrs.Ints("single")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, values)
	values, err = attrs.Ints("missing")
	require.NoError(t, err)
	assert.Nil(t, values)
	_, err = attrs.Ints("nested")
	require.Error(t, err)

	b, err := attrs.Bool("keepdim", false)
	require.NoError(t, err)
	assert.True(t, b)
	_, err = attrs.Bool("axes", false)
	require.Error(t, err)

	dtype, err := attrs.DType("dtype")
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float32, dtype)
	dtype, err = attrs.DType("dtype2")
	require.NoError(t, err)
	assert.Equal(t, dtypes.BFloat16, dtype)
	dtype, err = attrs.DType("dtype3")
	require.NoError(t, err)
	assert.Equal(t, dtypes.Int64, dtype)
	dtype, err = attrs.DType("missing")
	require.NoError(t, err)
	assert.Equal(t, dtypes.InvalidDType, dtype)
	_, err = attrs.DType("axes")
	require.Error(t, err)

	layout, err := attrs.Layout("layout")
	require.NoError(t, err)
	assert.Equal(t, descriptors.LayoutChannelsLast, layout)
	layout, err = attrs.Layout("layout2")
	require.NoError(t, err)
	assert.Equal(t, descriptors.LayoutContiguous, layout)
	_, err = attrs.Layout("single")
	require.Error(t, err)
}

func TestConstInts(t *testing.T) {
	c, err := operands.ConstFromTuple([]any{[][]int{{4}, {5}}, "int32"})
	require.NoError(t, err)
	values, err := constInts(c)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, values)

	values, err = constInts(operands.Scalar{Value: int8(3)})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, values)

	_, err = constInts(operands.NewUnrankedTensor(dtypes.Int32))
	require.Error(t, err)
}

func TestNodeString(t *testing.T) {
	node := Node{Op: "Add", Inputs: []operands.Operand{operands.Scalar{Value: 1}}, Attributes: Attributes{"dtype": "FLOAT"}}
	assert.Equal(t, 1, node.numOutputs())
	assert.Contains(t, node.String(), "Add(Scalar(int, 1))")
}
