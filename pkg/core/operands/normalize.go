// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package operands

import (
	"fmt"

	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/gomlx/metainfer/pkg/core/shapes"
	"k8s.io/klog/v2"
)

// DefaultDType is used when the dtype of an operand cannot be determined.
const DefaultDType = dtypes.Float32

// UnsupportedOperandTypeError is returned for values that are not one of the operand kinds, or for
// malformed constant tuples.
type UnsupportedOperandTypeError struct {
	Value  any
	Reason string
}

// Error implements error.
func (e *UnsupportedOperandTypeError) Error() string {
	return fmt.Sprintf("unsupported operand type %T: %s", e.Value, e.Reason)
}

// Normalized is the canonical form of an operand.
type Normalized struct {
	// Operand that was normalized.
	Operand Operand

	// Descriptor with the shape, dtype and layout of the operand. Strides are only set for tensors
	// that have them.
	descriptors.Descriptor

	// Kind is set only for Scalar operands: the category of the literal.
	Kind dtypes.Kind
}

// IsTensor returns whether the normalized operand is a live tensor handle.
func (n Normalized) IsTensor() bool {
	_, ok := n.Operand.(Tensor)
	return ok
}

// IsScalarLiteral returns whether the normalized operand is a bare scalar literal.
func (n Normalized) IsScalarLiteral() bool {
	_, ok := n.Operand.(Scalar)
	return ok
}

// Normalize converts any operand into its descriptor:
//
//   - Tensor: its descriptor, or shape [1] if it is unranked.
//   - Const: its dtype, dimensions and layout; absent dimensions become a scalar.
//   - Scalar: a scalar shape with the dtype of its Kind.
//
// An operand without dtype (InvalidDType) gets DefaultDType (Float32). A dtype outside the enumeration,
// or any other operand, returns an UnsupportedOperandTypeError.
func Normalize(operand Operand) (n Normalized, err error) {
	n.Operand = operand
	switch op := operand.(type) {
	case Tensor:
		n.Descriptor = op.Descriptor.Clone()
		if op.Unranked {
			n.Descriptor = descriptors.New(shapes.Make(op.DType, 1), op.Layout)
		}
	case Const:
		dims := op.Dimensions
		if dims == nil {
			dims = []int{}
		}
		n.Descriptor = descriptors.New(shapes.Make(op.DType, dims...), op.Layout)
	case Scalar:
		n.Kind = op.Kind()
		if n.Kind == dtypes.KindInvalid {
			err = &UnsupportedOperandTypeError{Value: op.Value, Reason: "scalar is not a number or bool"}
			return
		}
		n.Descriptor = descriptors.New(shapes.Scalar(n.Kind.DType()), descriptors.LayoutUnspecified)
	default:
		err = &UnsupportedOperandTypeError{Value: operand, Reason: "not a tensor, constant or scalar"}
		return
	}
	switch {
	case n.DType == dtypes.InvalidDType:
		klog.V(2).Infof("operand %s has no dtype, using %s", operand, DefaultDType)
		n.DType = DefaultDType
	case !n.DType.IsSupported():
		err = &UnsupportedOperandTypeError{Value: operand, Reason: fmt.Sprintf("unknown dtype %s", n.DType)}
	}
	return
}

// NormalizeAll normalizes each operand, stopping at the first error.
func NormalizeAll(ops []Operand) ([]Normalized, error) {
	normalized := make([]Normalized, len(ops))
	for ii, op := range ops {
		var err error
		normalized[ii], err = Normalize(op)
		if err != nil {
			return nil, err
		}
	}
	return normalized, nil
}
