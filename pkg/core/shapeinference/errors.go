// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapeinference

import (
	"fmt"

	"github.com/gomlx/metainfer/pkg/core/dtypes"
)

// IncompatibleBroadcastShapesError is returned when two shapes cannot be broadcast together.
type IncompatibleBroadcastShapesError struct {
	Dims1, Dims2 []int
}

// Error implements error.
func (e *IncompatibleBroadcastShapesError) Error() string {
	return fmt.Sprintf("shapes %v and %v cannot be broadcast together", e.Dims1, e.Dims2)
}

// UnknownDTypeCastError is returned when neither dtype belongs to a promotion category.
type UnknownDTypeCastError struct {
	DType1, DType2 dtypes.DType
}

// Error implements error.
func (e *UnknownDTypeCastError) Error() string {
	return fmt.Sprintf("can't cast dtypes %s and %s to a common dtype", e.DType1, e.DType2)
}

// InvalidReductionAxisError is returned for a reduction axis out of range for the operand rank.
type InvalidReductionAxisError struct {
	Axis, Rank int
}

// Error implements error.
func (e *InvalidReductionAxisError) Error() string {
	return fmt.Sprintf("invalid reduction axis %d for rank %d: it must be in the range [%d, %d)",
		e.Axis, e.Rank, -e.Rank, e.Rank)
}
