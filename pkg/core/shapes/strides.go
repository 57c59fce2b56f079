// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import "golang.org/x/exp/constraints"

// ContiguousStrides returns the row-major (C order) strides, in number of elements, for the given
// dimensions: the last axis has stride 1.
//
// Axes of dimension 0 are treated as dimension 1 when accumulating, so strides are never 0.
func ContiguousStrides[T constraints.Integer](dimensions []T) []T {
	strides := make([]T, len(dimensions))
	var acc T = 1
	for axis := len(dimensions) - 1; axis >= 0; axis-- {
		strides[axis] = acc
		if dimensions[axis] > 1 {
			acc *= dimensions[axis]
		}
	}
	return strides
}

// ChannelsLastStrides returns the strides of a rank-4 (NCHW) shape stored in channels-last (NHWC)
// order. For other ranks it returns nil.
func ChannelsLastStrides[T constraints.Integer](dimensions []T) []T {
	if len(dimensions) != 4 {
		return nil
	}
	c, h, w := max(dimensions[1], 1), max(dimensions[2], 1), max(dimensions[3], 1)
	return []T{h * w * c, 1, w * c, c}
}
