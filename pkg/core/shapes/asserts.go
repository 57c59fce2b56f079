// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// AnyDim can be used in CheckDims for an axis whose dimension is not checked.
const AnyDim = -1

// CheckDims returns an error if the shape doesn't have the given dimensions.
// Axes given as AnyDim only have their presence checked.
func (s Shape) CheckDims(dimensions ...int) error {
	if err := s.CheckRank(len(dimensions)); err != nil {
		return err
	}
	for axis, dim := range dimensions {
		if dim != AnyDim && s.Dimensions[axis] != dim {
			return errors.Errorf("shape %s: axis %d has dimension %d, expected %d (expected dimensions %v)",
				s, axis, s.Dimensions[axis], dim, dimensions)
		}
	}
	return nil
}

// Check returns an error if the shape doesn't have the given dtype and dimensions, see CheckDims.
// Descriptors embed Shape, so tests use it to check inferred outputs.
func (s Shape) Check(dtype dtypes.DType, dimensions ...int) error {
	if s.DType != dtype {
		return errors.Errorf("shape %s: dtype is %s, expected %s", s, s.DType, dtype)
	}
	return s.CheckDims(dimensions...)
}

// CheckRank returns an error if the shape doesn't have the given rank.
func (s Shape) CheckRank(rank int) error {
	if s.Rank() != rank {
		return errors.Errorf("shape %s: rank is %d, expected %d", s, s.Rank(), rank)
	}
	return nil
}
