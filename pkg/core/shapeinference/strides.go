// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapeinference

import (
	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/pkg/errors"
)

// StrideOffset returns the strides and storage offset of a strided view (slice, select, ...) of the
// reference tensor, with dimensions newDims, starting at the given per-axis offsets.
//
// The storage offset is the sum of referenceStrides[axis] * offsets[axis]. Missing offsets count as 0.
//
// The output strides are the reference strides of the axes that survive in the view: if newDims has
// a lower rank than the reference, axes are dropped (from the first axis on) where the reference
// dimension doesn't match the next new dimension, until the ranks match.
// Use SelectStrideOffset when the dropped axis is known.
//
// If the reference has no strides, the ones implied by its layout are used.
func StrideOffset(newDims []int, offsets []int, reference descriptors.Descriptor) (strides []int, storageOffset int, err error) {
	rank := reference.Rank()
	if len(newDims) > rank {
		err = errors.Errorf("view with dimensions %v has higher rank than the reference tensor %s", newDims, reference)
		return
	}
	refStrides := reference.EffectiveStrides()
	storageOffset, err = offsetOf(refStrides, offsets, reference)
	if err != nil {
		return
	}

	toDrop := rank - len(newDims)
	strides = make([]int, 0, len(newDims))
	next := 0
	for axis, dim := range reference.Dimensions {
		if toDrop > 0 && (next >= len(newDims) || newDims[next] != dim) {
			toDrop--
			continue
		}
		strides = append(strides, refStrides[axis])
		next++
	}
	return
}

// SelectStrideOffset returns the dimensions, strides and storage offset of selecting the element
// index of the given axis of the reference tensor: the axis is dropped.
func SelectStrideOffset(reference descriptors.Descriptor, axis, index int) (dims, strides []int, storageOffset int, err error) {
	rank := reference.Rank()
	axis, err = AdjustAxisToRank(axis, rank)
	if err != nil {
		return
	}
	dimension := reference.Dimensions[axis]
	if index < -dimension || index >= dimension {
		err = errors.Errorf("index %d out of range for axis %d of %s", index, axis, reference)
		return
	}
	if index < 0 {
		index += dimension
	}
	refStrides := reference.EffectiveStrides()
	storageOffset = refStrides[axis] * index
	dims = make([]int, 0, rank-1)
	strides = make([]int, 0, rank-1)
	for ii := range rank {
		if ii == axis {
			continue
		}
		dims = append(dims, reference.Dimensions[ii])
		strides = append(strides, refStrides[ii])
	}
	return
}

func offsetOf(refStrides []int, offsets []int, reference descriptors.Descriptor) (int, error) {
	if len(offsets) > len(refStrides) {
		return 0, errors.Errorf("%d offsets %v given for the rank %d reference tensor %s",
			len(offsets), offsets, len(refStrides), reference)
	}
	var storageOffset int
	for axis, offset := range offsets {
		storageOffset += refStrides[axis] * offset
	}
	return storageOffset, nil
}
