// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package operands defines the inputs of an operator node: a closed union of live tensor handles
// (Tensor), materialized constants (Const) and bare scalar literals (Scalar), and Normalize, which
// reduces any of them to a canonical descriptor.
package operands

import (
	"fmt"
	"slices"

	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/gomlx/metainfer/pkg/core/shapes"
	"github.com/gomlx/metainfer/pkg/support/nested"
	"github.com/pkg/errors"
)

// Operand is one of Tensor, Const or Scalar. No other types implement it.
type Operand interface {
	isOperand()

	fmt.Stringer
}

// Tensor is a live tensor handle: only its descriptor is known.
//
// If Unranked is set the handle exposes no shape, and it is normalized to a single element tensor of shape [1].
type Tensor struct {
	descriptors.Descriptor
	Unranked bool
}

// Const is a constant materialization: its values, dtype and, optionally, its dimensions and layout.
//
// A nil Dimensions means the shape is absent, and it is normalized to a scalar.
// An InvalidDType is normalized to Float32.
type Const struct {
	Values     any
	DType      dtypes.DType
	Dimensions []int
	Layout     descriptors.Layout
}

// Scalar is a bare numeric literal. It only carries the category (Kind) of its value, resolved to a
// concrete dtype (see dtypes.Kind.DType) when normalized.
type Scalar struct {
	Value any
}

func (Tensor) isOperand() {}
func (Const) isOperand()  {}
func (Scalar) isOperand() {}

// NewTensor returns a Tensor operand for the given descriptor.
func NewTensor(desc descriptors.Descriptor) Tensor {
	return Tensor{Descriptor: desc.Clone()}
}

// NewUnrankedTensor returns a Tensor handle that exposes only its dtype.
func NewUnrankedTensor(dtype dtypes.DType) Tensor {
	return Tensor{Descriptor: descriptors.Descriptor{Shape: shapes.Scalar(dtype)}, Unranked: true}
}

// String implements fmt.Stringer.
func (t Tensor) String() string {
	if t.Unranked {
		return fmt.Sprintf("Tensor(%s, unranked)", t.DType)
	}
	return fmt.Sprintf("Tensor%s", t.Descriptor)
}

// String implements fmt.Stringer.
func (c Const) String() string {
	if c.Dimensions == nil {
		return fmt.Sprintf("Const(%s, %v)", c.DType, c.Values)
	}
	return fmt.Sprintf("Const(%s%v, %v)", c.DType, c.Dimensions, c.Values)
}

// String implements fmt.Stringer.
func (s Scalar) String() string {
	return fmt.Sprintf("Scalar(%s, %v)", s.Kind(), s.Value)
}

// Kind returns the numeric category of the scalar, KindInvalid if the value is not a number or bool.
func (s Scalar) Kind() dtypes.Kind {
	return dtypes.KindOf(s.Value)
}

// NewScalar returns a Scalar operand, or an UnsupportedOperandTypeError if value is not a Go number or bool.
func NewScalar(value any) (Scalar, error) {
	s := Scalar{Value: value}
	if s.Kind() == dtypes.KindInvalid {
		return Scalar{}, &UnsupportedOperandTypeError{Value: value, Reason: "not a numeric scalar"}
	}
	return s, nil
}

// ConstFromTuple builds a Const from its positional wire form: (values, dtype, dimensions?, layout?).
//
//   - values: anything, nested single-element containers are flattened (e.g. [[3]] -> 3).
//   - dtype: a dtypes.DType, a dtype name (see dtypes.FromName) or nil.
//   - dimensions: nil, []int, []int64, []any of integers or a shapes.Shape (only its dimensions are used).
//   - layout: nil, a descriptors.Layout or its name (see descriptors.ParseLayout).
//
// Tuples with fewer than 2 or more than 4 elements, or elements of the wrong type, return an
// UnsupportedOperandTypeError.
func ConstFromTuple(tuple []any) (c Const, err error) {
	if len(tuple) < 2 || len(tuple) > 4 {
		err = &UnsupportedOperandTypeError{Value: tuple,
			Reason: fmt.Sprintf("constant tuple must have 2 to 4 elements, got %d", len(tuple))}
		return
	}
	c.Values = nested.Flatten(tuple[0])
	switch dtype := tuple[1].(type) {
	case nil:
	case dtypes.DType:
		c.DType = dtype
	case string:
		c.DType, err = dtypes.FromName(dtype)
		if err != nil {
			err = &UnsupportedOperandTypeError{Value: tuple, Reason: err.Error()}
			return
		}
	default:
		err = &UnsupportedOperandTypeError{Value: tuple, Reason: fmt.Sprintf("invalid dtype %T in constant tuple", dtype)}
		return
	}
	if len(tuple) > 2 && tuple[2] != nil {
		c.Dimensions, err = dimensionsFromAny(tuple[2])
		if err != nil {
			err = &UnsupportedOperandTypeError{Value: tuple, Reason: err.Error()}
			return
		}
	}
	if len(tuple) > 3 && tuple[3] != nil {
		switch layout := tuple[3].(type) {
		case descriptors.Layout:
			c.Layout = layout
		case string:
			c.Layout, err = descriptors.ParseLayout(layout)
			if err != nil {
				err = &UnsupportedOperandTypeError{Value: tuple, Reason: err.Error()}
				return
			}
		default:
			err = &UnsupportedOperandTypeError{Value: tuple, Reason: fmt.Sprintf("invalid layout %T in constant tuple", layout)}
			return
		}
	}
	return
}

// dimensionsFromAny converts the shape element of a constant tuple. It never returns nil on success.
func dimensionsFromAny(value any) ([]int, error) {
	var dims []int
	switch v := value.(type) {
	case shapes.Shape:
		dims = slices.Clone(v.Dimensions)
	case []int:
		dims = slices.Clone(v)
	case []int64:
		dims = make([]int, len(v))
		for ii, d := range v {
			dims[ii] = int(d)
		}
	case []any:
		dims = make([]int, len(v))
		for ii, d := range v {
			switch d := d.(type) {
			case int:
				dims[ii] = d
			case int64:
				dims[ii] = int(d)
			case int32:
				dims[ii] = int(d)
			default:
				return nil, errors.Errorf("invalid dimension %v (%T) in constant shape", d, d)
			}
		}
	default:
		return nil, errors.Errorf("invalid shape %T in constant tuple", value)
	}
	if dims == nil {
		dims = []int{}
	}
	for _, d := range dims {
		if d < 0 {
			return nil, errors.Errorf("negative dimension in constant shape %v", dims)
		}
	}
	return dims, nil
}

// FromValue converts a Go value into an Operand:
//
//   - Operand values are returned as is.
//   - descriptors.Descriptor and shapes.Shape become a Tensor.
//   - []any is parsed with ConstFromTuple.
//   - Go numbers and bool become a Scalar.
//
// Anything else returns an UnsupportedOperandTypeError.
func FromValue(value any) (Operand, error) {
	switch v := value.(type) {
	case Operand:
		return v, nil
	case descriptors.Descriptor:
		return NewTensor(v), nil
	case shapes.Shape:
		return NewTensor(descriptors.New(v, descriptors.LayoutContiguous)), nil
	case []any:
		return ConstFromTuple(v)
	}
	if dtypes.KindOf(value) != dtypes.KindInvalid {
		return Scalar{Value: value}, nil
	}
	return nil, &UnsupportedOperandTypeError{Value: value, Reason: "not a tensor, constant or scalar"}
}
