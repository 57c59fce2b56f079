// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapeinference

import (
	"slices"

	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/gomlx/metainfer/pkg/core/shapes"
	"github.com/pkg/errors"
)

// AdjustAxisToRank returns the axis in the range [0, rank). Negative axes count from the end.
// It returns an InvalidReductionAxisError if axis is not in the range [-rank, rank).
func AdjustAxisToRank(axis, rank int) (int, error) {
	if axis < -rank || axis >= rank {
		return 0, &InvalidReductionAxisError{Axis: axis, Rank: rank}
	}
	return (axis + rank) % rank, nil
}

// ReduceDimensions returns the dimensions after reducing the given axes.
//
// If axes is empty, all axes are reduced: the result is all 1s if keepDim, or a scalar (empty
// dimensions) otherwise. Reduced axes become 1 if keepDim, or are removed otherwise. Axes may be
// negative, and repeated axes are reduced only once.
func ReduceDimensions(dims []int, axes []int, keepDim bool) ([]int, error) {
	rank := len(dims)
	if len(axes) == 0 {
		if keepDim {
			return slices.Repeat([]int{1}, rank), nil
		}
		return []int{}, nil
	}
	reduced := make([]int, len(axes))
	for ii, axis := range axes {
		var err error
		reduced[ii], err = AdjustAxisToRank(axis, rank)
		if err != nil {
			return nil, err
		}
	}
	isReduced := func(axis int) bool {
		return slices.Contains(reduced, axis) || slices.Contains(reduced, axis-rank)
	}
	output := make([]int, 0, rank)
	for axis, dim := range dims {
		switch {
		case !isReduced(axis):
			output = append(output, dim)
		case keepDim:
			output = append(output, 1)
		}
	}
	return output, nil
}

// ReduceOp returns the output shape of a reduction (sum, mean, max, min, prod...) of the given axes.
// The dtype is preserved.
func ReduceOp(operand shapes.Shape, axes []int, keepDim bool) (output shapes.Shape, err error) {
	dims, err := ReduceDimensions(operand.Dimensions, axes, keepDim)
	if err != nil {
		return shapes.Invalid(), err
	}
	return shapes.Make(operand.DType, dims...), nil
}

// ArgMinMaxOp returns the output shape of an ArgMax or ArgMin over one axis: the axis is reduced,
// and the dtype is outputDType, which must be an integer.
//
// If axis is nil, the operand is flattened and all axes are reduced.
func ArgMinMaxOp(operand shapes.Shape, axis *int, keepDim bool, outputDType dtypes.DType) (output shapes.Shape, err error) {
	if !outputDType.IsInt() {
		err = errors.Errorf("ArgMinMax outputDType must be an integer type, got %s", outputDType)
		return
	}
	if operand.DType.IsComplex() {
		err = errors.Errorf("ArgMinMax operand DType must be a floating point, integer or bool type, got %s", operand)
		return
	}
	var axes []int
	if axis != nil {
		if operand.IsScalar() {
			err = errors.Errorf("ArgMinMax requires a non-scalar operand to reduce axis %d, got %s", *axis, operand)
			return
		}
		axes = []int{*axis}
	}
	dims, err := ReduceDimensions(operand.Dimensions, axes, keepDim)
	if err != nil {
		return shapes.Invalid(), err
	}
	return shapes.Make(outputDType, dims...), nil
}
