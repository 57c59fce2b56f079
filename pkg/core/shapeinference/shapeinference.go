// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapeinference calculates the shape resulting from operations, and validates its inputs.
//
// It holds the closed-form rules: dtype promotion, broadcasting, reductions, strided views, layout
// propagation and the shape of the common structural operations (transpose, reshape, concatenate,
// where, argmin/argmax). All functions are pure and safe to call concurrently.
//
// Operations that have no closed-form rule here are delegated to a vendor runtime, see package delegate.
package shapeinference

import (
	"slices"

	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/gomlx/metainfer/pkg/core/shapes"
	"github.com/gomlx/metainfer/pkg/support/xslices"
	"github.com/pkg/errors"
)

// BinaryOp returns the shape of an element-wise binary operation: the dimensions are broadcast,
// and the dtypes promoted.
func BinaryOp(lhsShape, rhsShape shapes.Shape) (output shapes.Shape, err error) {
	dims, err := BroadcastDimensions(lhsShape.Dimensions, rhsShape.Dimensions)
	if err != nil {
		return shapes.Invalid(), err
	}
	dtype, err := PromoteDTypes(lhsShape.DType, rhsShape.DType)
	if err != nil {
		return shapes.Invalid(), err
	}
	return shapes.Make(dtype, dims...), nil
}

// ComparisonOp returns the broadcast shape of a comparison, always with dtype Bool.
// The operands dtypes must still be promotable to a common dtype, in which the comparison happens.
func ComparisonOp(lhsShape, rhsShape shapes.Shape) (output shapes.Shape, err error) {
	output, err = BinaryOp(lhsShape, rhsShape)
	if err != nil {
		return
	}
	output.DType = dtypes.Bool
	return
}

// WhereOp returns the shape of selecting elements from onTrue or onFalse depending on condition.
//
// The three shapes are broadcast together, and the dtype is the promotion of onTrue and onFalse.
// The condition must be a Bool.
func WhereOp(condition, onTrue, onFalse shapes.Shape) (output shapes.Shape, err error) {
	if condition.DType != dtypes.Bool {
		err = errors.Errorf("condition for Where() must be a boolean, got %s instead", condition)
		return
	}
	dims, err := BroadcastAll(condition.Dimensions, onTrue.Dimensions, onFalse.Dimensions)
	if err != nil {
		return shapes.Invalid(), err
	}
	dtype, err := PromoteDTypes(onTrue.DType, onFalse.DType)
	if err != nil {
		return shapes.Invalid(), err
	}
	return shapes.Make(dtype, dims...), nil
}

// ReshapeOp to the given dimensions, checking that the sizes are the same.
//
// One of the dimensions can be set to -1, in which case it is inferred from the size of the operand.
func ReshapeOp(operand shapes.Shape, dims []int) (output shapes.Shape, err error) {
	dims = slices.Clone(dims)
	inferredAxis := -1
	knownSize := 1
	for axis, dim := range dims {
		switch {
		case dim == -1:
			if inferredAxis >= 0 {
				err = errors.Errorf("Reshape(%s, %v) can only infer one dimension (set to -1)", operand, dims)
				return shapes.Invalid(), err
			}
			inferredAxis = axis
		case dim < 0:
			err = errors.Errorf("Reshape(%s, %v) has invalid negative dimension %d", operand, dims, dim)
			return shapes.Invalid(), err
		default:
			knownSize *= dim
		}
	}
	if inferredAxis >= 0 {
		if knownSize == 0 || operand.Size()%knownSize != 0 {
			err = errors.Errorf("Reshape() cannot reshape %s to dimensions %v, the size %d is not divisible by %d",
				operand, dims, operand.Size(), knownSize)
			return shapes.Invalid(), err
		}
		dims[inferredAxis] = operand.Size() / knownSize
	}
	output = shapes.Make(operand.DType, dims...)
	if operand.Size() != output.Size() {
		err = errors.Errorf("Reshape() cannot reshape %s to dimensions %v, their size don't match",
			operand, dims)
		return shapes.Invalid(), err
	}
	return
}

// TransposeOp permutes all axes of the operand.
//
// The output will have: output.Dimensions[ii] = operand.Dimensions[permutations[ii]].
// Negative axes count from the end. If permutations is empty, the axes are reversed.
func TransposeOp(operand shapes.Shape, permutations []int) (output shapes.Shape, err error) {
	rank := operand.Rank()
	if len(permutations) == 0 {
		permutations = xslices.Iota(0, rank)
		slices.Reverse(permutations)
	}
	if len(permutations) != rank {
		err = errors.Errorf("Transpose() requires all axes permutations to be defined, operand has shape %s, but %d permutations were given",
			operand, len(permutations))
		return
	}
	if rank == 0 {
		return operand, nil
	}

	adjusted := make([]int, rank)
	seen := make([]bool, rank)
	for ii, axis := range permutations {
		if axis < -rank || axis >= rank {
			err = errors.Errorf("invalid permutation axis %d given to Transpose(%s), it must be within the range of its rank",
				axis, operand)
			return
		}
		axis = (axis + rank) % rank
		if seen[axis] {
			err = errors.Errorf("invalid permutations given to Transpose(%s, %v), there cannot be any repeated axis, each must appear exactly once",
				operand, permutations)
			return
		}
		seen[axis] = true
		adjusted[ii] = axis
	}

	output = operand.Clone()
	for axis, srcAxis := range adjusted {
		output.Dimensions[axis] = operand.Dimensions[srcAxis]
	}
	return
}

// SwapAxesOp returns the shape of swapping two axes, the 2-axes version of TransposeOp.
func SwapAxesOp(operand shapes.Shape, axis1, axis2 int) (output shapes.Shape, err error) {
	rank := operand.Rank()
	if axis1 < -rank || axis1 >= rank || axis2 < -rank || axis2 >= rank {
		err = errors.Errorf("invalid axes (%d, %d) to swap for %s", axis1, axis2, operand)
		return
	}
	permutations := xslices.Iota(0, rank)
	axis1, axis2 = (axis1+rank)%rank, (axis2+rank)%rank
	permutations[axis1], permutations[axis2] = permutations[axis2], permutations[axis1]
	return TransposeOp(operand, permutations)
}

// ConcatenateOp returns the shape of concatenating the inputs along the given axis.
//
// All inputs must have the same rank and the same dimensions, except on the concatenation axis.
// The dtypes are promoted. Negative axes count from the end.
func ConcatenateOp(inputs []shapes.Shape, axis int) (output shapes.Shape, err error) {
	if len(inputs) == 0 {
		return shapes.Invalid(), errors.Errorf("ConcatenateOp requires at least one input shape")
	}
	first := inputs[0]
	rank := first.Rank()
	if rank == 0 {
		return shapes.Invalid(), errors.Errorf("ConcatenateOp cannot concatenate scalars, got %s for input #0", first)
	}
	if axis < -rank || axis >= rank {
		return shapes.Invalid(), errors.Errorf("invalid concatenation axis %d for shapes with rank %d", axis, rank)
	}
	axis = (axis + rank) % rank

	output = first.Clone()
	output.DType, err = PromoteAll(xslices.Map(inputs, func(s shapes.Shape) dtypes.DType { return s.DType })...)
	if err != nil {
		return shapes.Invalid(), err
	}
	for ii := 1; ii < len(inputs); ii++ {
		current := inputs[ii]
		if current.Rank() != rank {
			return shapes.Invalid(), errors.Errorf("mismatched ranks for ConcatenateOp: input #0 has rank %d, input #%d has rank %d",
				rank, ii, current.Rank())
		}
		for d := range rank {
			if d == axis {
				output.Dimensions[d] += current.Dimensions[d]
			} else if current.Dimensions[d] != output.Dimensions[d] {
				return shapes.Invalid(), errors.Errorf("mismatched dimensions for ConcatenateOp at axis %d (non-concatenation axis): input #0 has %d, input #%d has %d",
					d, output.Dimensions[d], ii, current.Dimensions[d])
			}
		}
	}
	return output, nil
}
