// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapeinference

import (
	"fmt"
	"testing"

	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/gomlx/metainfer/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Aliases
var (
	Bool = dtypes.Bool
	I8   = dtypes.Int8
	I16  = dtypes.Int16
	I32  = dtypes.Int32
	I64  = dtypes.Int64
	U8   = dtypes.Uint8
	F16  = dtypes.Float16
	BF16 = dtypes.BFloat16
	F32  = dtypes.Float32
	F64  = dtypes.Float64
	C64  = dtypes.Complex64
	C128 = dtypes.Complex128

	MS = shapes.Make
)

var allDTypes = []dtypes.DType{Bool, I8, I16, I32, I64, U8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
	F16, BF16, F32, F64, C64, C128}

func TestPromoteDTypes(t *testing.T) {
	// Idempotence.
	for _, dtype := range allDTypes {
		assert.Equal(t, dtype, must.M1(PromoteDTypes(dtype, dtype)), "promote(%s, %s)", dtype, dtype)
	}

	// Symmetry, for all pairs.
	for _, dt1 := range allDTypes {
		for _, dt2 := range allDTypes {
			assert.Equal(t, must.M1(PromoteDTypes(dt1, dt2)), must.M1(PromoteDTypes(dt2, dt1)),
				"promote(%s, %s)", dt1, dt2)
		}
	}

	// Monotonicity within the category.
	ladders := [][]dtypes.DType{{I8, I16, I32, I64}, {F16, F32, F64}, {C64, C128}}
	for _, ladder := range ladders {
		for ii, narrow := range ladder {
			for _, wide := range ladder[ii+1:] {
				assert.Equal(t, wide, must.M1(PromoteDTypes(wide, narrow)))
				assert.Equal(t, wide, must.M1(PromoteDTypes(narrow, wide)))
			}
		}
	}

	// Across categories the highest category wins, regardless of width.
	testCases := []struct {
		dt1, dt2, want dtypes.DType
	}{
		{I32, F32, F32},
		{I64, F16, F16},
		{Bool, I8, I8},
		{F64, C64, C64},
		{F64, F16, F64},
		{BF16, F32, F32},
		{C128, Bool, C128},
		{U8, I8, U8},
		{dtypes.InvalidDType, F32, F32},
		{Bool, dtypes.InvalidDType, Bool},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s+%s", tc.dt1, tc.dt2), func(t *testing.T) {
			got, err := PromoteDTypes(tc.dt1, tc.dt2)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	// Unknown dtypes.
	_, err := PromoteDTypes(dtypes.InvalidDType, dtypes.DType(99))
	var castErr *UnknownDTypeCastError
	require.True(t, errors.As(err, &castErr))
	assert.Equal(t, dtypes.InvalidDType, castErr.DType1)
	assert.Equal(t, dtypes.DType(99), castErr.DType2)
	_, err = PromoteDTypes(dtypes.InvalidDType, dtypes.InvalidDType)
	require.Error(t, err)
}

func TestPromoteKinds(t *testing.T) {
	assert.Equal(t, F32, must.M1(PromoteKinds(dtypes.KindInt, dtypes.KindFloat)))
	assert.Equal(t, I32, must.M1(PromoteKinds(dtypes.KindInt, dtypes.KindBool)))
	assert.Equal(t, C64, must.M1(PromoteKinds(dtypes.KindComplex, dtypes.KindFloat)))
	_, err := PromoteKinds(dtypes.KindInvalid, dtypes.KindInvalid)
	require.Error(t, err)

	assert.Equal(t, F64, must.M1(PromoteAll(I32, F64, F16)))
	assert.Equal(t, dtypes.InvalidDType, must.M1(PromoteAll()))
	_, err = PromoteAll(dtypes.InvalidDType)
	require.Error(t, err)
}

func TestBroadcastDimensions(t *testing.T) {
	testCases := []struct {
		dims1, dims2, want []int
	}{
		{[]int{5}, []int{5, 3}, nil}, // Incompatible: 5 vs 3 on the last axis.
		{[]int{3}, []int{5, 3}, []int{5, 3}},
		{[]int{}, []int{2, 3}, []int{2, 3}},
		{[]int{4, 1, 3}, []int{2, 1}, []int{4, 2, 3}},
		{[]int{1}, []int{0}, []int{0}},
		{[]int{7, 1}, []int{1, 7}, []int{7, 7}},
	}
	for _, tc := range testCases {
		got, err := BroadcastDimensions(tc.dims1, tc.dims2)
		if tc.want == nil {
			var bErr *IncompatibleBroadcastShapesError
			require.True(t, errors.As(err, &bErr), "broadcast(%v, %v)", tc.dims1, tc.dims2)
			assert.Equal(t, tc.dims1, bErr.Dims1)
			assert.Equal(t, tc.dims2, bErr.Dims2)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)

		// Symmetry and identity.
		assert.Equal(t, got, must.M1(BroadcastDimensions(tc.dims2, tc.dims1)))
		assert.Equal(t, tc.dims1, must.M1(BroadcastDimensions(tc.dims1, tc.dims1)))
		assert.Equal(t, tc.dims2, must.M1(BroadcastDimensions(tc.dims2, tc.dims2)))
	}

	assert.Equal(t, []int{2, 3, 4}, must.M1(BroadcastAll([]int{3, 1}, []int{2, 1, 1}, []int{4})))
	assert.Equal(t, []int{}, must.M1(BroadcastAll()))
	_, err := BroadcastAll([]int{2}, []int{3})
	require.Error(t, err)
}

func TestReduceDimensions(t *testing.T) {
	dims := []int{2, 3, 4}
	rank := len(dims)

	// Reduce all.
	assert.Equal(t, []int{1, 1, 1}, must.M1(ReduceDimensions(dims, []int{0, 1, 2}, true)))
	assert.Equal(t, []int{1, 1, 1}, must.M1(ReduceDimensions(dims, nil, true)))
	assert.Equal(t, []int{}, must.M1(ReduceDimensions(dims, []int{}, false)))
	assert.Equal(t, []int{}, must.M1(ReduceDimensions(dims, []int{0, 1, 2}, false)))

	// Negative axes.
	for _, keepDim := range []bool{false, true} {
		assert.Equal(t, must.M1(ReduceDimensions(dims, []int{rank - 1}, keepDim)),
			must.M1(ReduceDimensions(dims, []int{-1}, keepDim)))
	}
	assert.Equal(t, []int{2, 4}, must.M1(ReduceDimensions(dims, []int{-2}, false)))
	assert.Equal(t, []int{1, 3, 1}, must.M1(ReduceDimensions(dims, []int{0, -1}, true)))
	assert.Equal(t, []int{3}, must.M1(ReduceDimensions(dims, []int{2, 0, -1}, false)))

	// Invalid axes.
	for _, axis := range []int{3, -4, 10} {
		_, err := ReduceDimensions(dims, []int{axis}, false)
		var axisErr *InvalidReductionAxisError
		require.True(t, errors.As(err, &axisErr), "axis=%d", axis)
		assert.Equal(t, axis, axisErr.Axis)
		assert.Equal(t, rank, axisErr.Rank)
	}

	output := must.M1(ReduceOp(MS(F16, 5, 6), []int{1}, true))
	assert.NoError(t, output.Check(F16, 5, 1))
	_, err := ReduceOp(MS(F16), []int{0}, true)
	require.Error(t, err)
}

func TestArgMinMaxOp(t *testing.T) {
	axis := 1
	output := must.M1(ArgMinMaxOp(MS(F32, 2, 3, 4), &axis, false, I64))
	assert.NoError(t, output.Check(I64, 2, 4))
	output = must.M1(ArgMinMaxOp(MS(F32, 2, 3, 4), &axis, true, I64))
	assert.NoError(t, output.Check(I64, 2, 1, 4))
	output = must.M1(ArgMinMaxOp(MS(I32, 2, 3), nil, false, I64))
	assert.NoError(t, output.Check(I64))

	_, err := ArgMinMaxOp(MS(F32, 2, 3), &axis, false, F32)
	require.Error(t, err)
	_, err = ArgMinMaxOp(MS(C64, 2, 3), &axis, false, I64)
	require.Error(t, err)
	_, err = ArgMinMaxOp(MS(F32), &axis, false, I64)
	require.Error(t, err)
	badAxis := 2
	_, err = ArgMinMaxOp(MS(F32, 2, 3), &badAxis, false, I64)
	require.Error(t, err)
}

func TestStrideOffset(t *testing.T) {
	ref := must.M1(descriptors.Make(F32, 4, 5).WithStrides([]int{5, 1}, 0))

	// Second axis dropped.
	strides, offset, err := StrideOffset([]int{4}, []int{1, 2}, ref)
	require.NoError(t, err)
	assert.Equal(t, 5*1+1*2, offset)
	assert.Equal(t, []int{5}, strides)

	// Same rank slice: all strides kept.
	strides, offset, err = StrideOffset([]int{2, 5}, []int{1}, ref)
	require.NoError(t, err)
	assert.Equal(t, 5, offset)
	assert.Equal(t, []int{5, 1}, strides)

	// First axis dropped, since its dimension doesn't match.
	strides, offset, err = StrideOffset([]int{5}, []int{3, 0}, ref)
	require.NoError(t, err)
	assert.Equal(t, 15, offset)
	assert.Equal(t, []int{1}, strides)

	// Reference without strides uses the contiguous ones.
	strides, offset, err = StrideOffset([]int{3, 4}, []int{1, 1, 0}, descriptors.Make(F32, 2, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, 12+4, offset)
	assert.Equal(t, []int{4, 1}, strides)

	// Errors.
	_, _, err = StrideOffset([]int{4, 5, 6}, nil, ref)
	require.Error(t, err)
	_, _, err = StrideOffset([]int{4}, []int{1, 2, 3}, ref)
	require.Error(t, err)
}

func TestSelectStrideOffset(t *testing.T) {
	ref := descriptors.Make(F32, 3, 3)
	dims, strides, offset, err := SelectStrideOffset(ref, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, dims)
	assert.Equal(t, []int{1}, strides)
	assert.Equal(t, 6, offset)

	dims, strides, offset, err = SelectStrideOffset(ref, -1, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, dims)
	assert.Equal(t, []int{3}, strides)
	assert.Equal(t, 2, offset)

	_, _, _, err = SelectStrideOffset(ref, 2, 0)
	require.Error(t, err)
	_, _, _, err = SelectStrideOffset(ref, 0, 3)
	require.Error(t, err)
}

func TestPropagateLayout(t *testing.T) {
	nhwc := descriptors.Make(F32, 1, 8, 8, 3).WithLayout(descriptors.LayoutChannelsLast)
	for _, kind := range []OpKind{OpKindElementwise, OpKindReduction, OpKindView, OpKindTranspose, OpKindPermute, OpKindOther} {
		assert.Equal(t, descriptors.LayoutChannelsLast, PropagateLayout(nhwc, kind), "kind=%s", kind)
		assert.Equal(t, descriptors.LayoutContiguous, PropagateLayout(descriptors.Make(F32, 2), kind))
	}
	strided := must.M1(descriptors.Make(F32, 4, 5).WithStrides([]int{1, 4}, 0))
	assert.Equal(t, descriptors.LayoutContiguous, PropagateLayout(strided, OpKindView))
	assert.Equal(t, "permute", OpKindPermute.String())
}

func TestBinaryOp(t *testing.T) {
	output := must.M1(BinaryOp(MS(I32, 5, 1), MS(F32, 5, 3)))
	assert.NoError(t, output.Check(F32, 5, 3))
	output = must.M1(BinaryOp(MS(I32, 3), MS(F32, 5, 3)))
	assert.NoError(t, output.Check(F32, 5, 3))
	_, err := BinaryOp(MS(I32, 5), MS(F32, 5, 3))
	require.Error(t, err)

	output = must.M1(ComparisonOp(MS(F16, 4), MS(F32)))
	assert.NoError(t, output.Check(Bool, 4))
	_, err = ComparisonOp(MS(F16, 4), MS(F16, 3))
	require.Error(t, err)
}

func TestWhereOp(t *testing.T) {
	output := must.M1(WhereOp(MS(Bool, 2, 1), MS(F16, 3), MS(F32)))
	assert.NoError(t, output.Check(F32, 2, 3))
	_, err := WhereOp(MS(F32, 2), MS(F32, 2), MS(F32, 2))
	require.Error(t, err)
	_, err = WhereOp(MS(Bool, 2), MS(F32, 3), MS(F32, 3))
	require.Error(t, err)
}

func TestReshapeOp(t *testing.T) {
	output := must.M1(ReshapeOp(MS(F32, 2, 3, 4), []int{6, 4}))
	assert.NoError(t, output.Check(F32, 6, 4))
	output = must.M1(ReshapeOp(MS(F32, 2, 3, 4), []int{-1, 4}))
	assert.NoError(t, output.Check(F32, 6, 4))
	output = must.M1(ReshapeOp(MS(F32, 2, 3, 4), []int{-1}))
	assert.NoError(t, output.Check(F32, 24))

	for _, dims := range [][]int{{5, 5}, {-1, -1}, {-1, 5}, {-2, 12}, {0, -1}} {
		_, err := ReshapeOp(MS(F32, 2, 3, 4), dims)
		require.Error(t, err, "dims=%v", dims)
	}
}

func TestTransposeOp(t *testing.T) {
	output := must.M1(TransposeOp(MS(F32, 2, 3, 4), []int{2, 0, 1}))
	assert.NoError(t, output.Check(F32, 4, 2, 3))
	output = must.M1(TransposeOp(MS(F32, 2, 3, 4), []int{-1, 0, 1}))
	assert.NoError(t, output.Check(F32, 4, 2, 3))
	output = must.M1(TransposeOp(MS(F32, 2, 3, 4), nil))
	assert.NoError(t, output.Check(F32, 4, 3, 2))
	output = must.M1(TransposeOp(MS(F32), nil))
	assert.NoError(t, output.Check(F32))

	_, err := TransposeOp(MS(F32, 2, 3), []int{0})
	require.Error(t, err)
	_, err = TransposeOp(MS(F32, 2, 3), []int{0, 0})
	require.Error(t, err)
	_, err = TransposeOp(MS(F32, 2, 3), []int{0, 2})
	require.Error(t, err)

	output = must.M1(SwapAxesOp(MS(F32, 2, 3, 4), 0, -1))
	assert.NoError(t, output.Check(F32, 4, 3, 2))
	_, err = SwapAxesOp(MS(F32, 2, 3, 4), 0, 3)
	require.Error(t, err)
}

func TestConcatenateOp(t *testing.T) {
	output := must.M1(ConcatenateOp([]shapes.Shape{MS(F32, 2, 3), MS(F16, 2, 5)}, -1))
	assert.NoError(t, output.Check(F32, 2, 8))
	output = must.M1(ConcatenateOp([]shapes.Shape{MS(I32, 1, 3), MS(I32, 2, 3), MS(I64, 3, 3)}, 0))
	assert.NoError(t, output.Check(I64, 6, 3))
	output = must.M1(ConcatenateOp([]shapes.Shape{MS(I32, 1, 3)}, 0))
	assert.NoError(t, output.Check(I32, 1, 3))

	_, err := ConcatenateOp(nil, 0)
	require.Error(t, err)
	_, err = ConcatenateOp([]shapes.Shape{MS(F32)}, 0)
	require.Error(t, err)
	_, err = ConcatenateOp([]shapes.Shape{MS(F32, 2, 3), MS(F32, 3, 3)}, 1)
	require.Error(t, err)
	_, err = ConcatenateOp([]shapes.Shape{MS(F32, 2, 3), MS(F32, 2)}, 0)
	require.Error(t, err)
	_, err = ConcatenateOp([]shapes.Shape{MS(F32, 2, 3)}, 2)
	require.Error(t, err)
}
