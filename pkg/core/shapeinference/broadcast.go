// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapeinference

import "slices"

// BroadcastDimensions returns the element-wise broadcast of two lists of dimensions.
//
// Dimensions are aligned from the trailing axis, and the shorter one is padded on the left with
// axes of dimension 1. Each pair of aligned axes must either match or one of them be 1, otherwise it
// returns an IncompatibleBroadcastShapesError. The result has the rank of the longest input.
func BroadcastDimensions(dims1, dims2 []int) ([]int, error) {
	rank := max(len(dims1), len(dims2))
	output := make([]int, rank)
	for ii := 1; ii <= rank; ii++ {
		dim1, dim2 := 1, 1
		if ii <= len(dims1) {
			dim1 = dims1[len(dims1)-ii]
		}
		if ii <= len(dims2) {
			dim2 = dims2[len(dims2)-ii]
		}
		if dim1 != dim2 && dim1 != 1 && dim2 != 1 {
			return nil, &IncompatibleBroadcastShapesError{Dims1: slices.Clone(dims1), Dims2: slices.Clone(dims2)}
		}
		if dim1 == 1 {
			// A 1 broadcasts to anything, including an empty (0) axis.
			dim1 = dim2
		}
		output[rank-ii] = dim1
	}
	return output, nil
}

// BroadcastAll broadcasts any number of lists of dimensions, left to right.
func BroadcastAll(dimsList ...[]int) (output []int, err error) {
	output = []int{}
	for _, dims := range dimsList {
		output, err = BroadcastDimensions(output, dims)
		if err != nil {
			return nil, err
		}
	}
	return
}
