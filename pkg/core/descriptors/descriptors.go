// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package descriptors defines Descriptor, the static metadata of a tensor (shape, dtype, layout and
// optionally its strides and storage offset) without its data.
//
// Descriptors are immutable values: every method that "changes" a descriptor returns a new one.
package descriptors

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/gomlx/metainfer/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Descriptor of a tensor: its shape (dtype and dimensions), layout and, optionally, the strides
// (in number of elements) and storage offset of a strided view.
//
// Strides are either nil (not known) or have one entry per axis.
type Descriptor struct {
	shapes.Shape

	Layout        Layout
	Strides       []int
	StorageOffset int
}

// New returns a descriptor with the given shape and layout, and no strides.
func New(shape shapes.Shape, layout Layout) Descriptor {
	return Descriptor{Shape: shape.Clone(), Layout: layout}
}

// Make returns a contiguous descriptor with the given dtype and dimensions.
func Make(dtype dtypes.DType, dimensions ...int) Descriptor {
	return New(shapes.Make(dtype, dimensions...), LayoutContiguous)
}

// WithStrides returns a copy of the descriptor with the given strides and storage offset.
//
// It returns an error if the number of strides doesn't match the rank.
func (d Descriptor) WithStrides(strides []int, storageOffset int) (Descriptor, error) {
	if len(strides) != d.Rank() {
		return Descriptor{}, errors.Errorf("descriptor %s has rank %d, but %d strides (%v) were given",
			d.Shape, d.Rank(), len(strides), strides)
	}
	d2 := d.Clone()
	d2.Strides = slices.Clone(strides)
	d2.StorageOffset = storageOffset
	return d2, nil
}

// WithLayout returns a copy of the descriptor with the given layout.
func (d Descriptor) WithLayout(layout Layout) Descriptor {
	d2 := d.Clone()
	d2.Layout = layout
	return d2
}

// HasStrides returns whether the strides are known.
func (d Descriptor) HasStrides() bool {
	return d.Strides != nil
}

// EffectiveStrides returns the strides of the descriptor if known, or the strides implied by its
// layout otherwise: NHWC strides for channels-last rank-4 tensors, row-major strides for everything else.
func (d Descriptor) EffectiveStrides() []int {
	if d.HasStrides() {
		return slices.Clone(d.Strides)
	}
	if d.Layout == LayoutChannelsLast && d.Rank() == 4 {
		return shapes.ChannelsLastStrides(d.Dimensions)
	}
	return shapes.ContiguousStrides(d.Dimensions)
}

// IsContiguous returns whether the elements are stored densely in row-major order.
//
// Axes with dimension <= 1 are ignored, since their stride is irrelevant.
func (d Descriptor) IsContiguous() bool {
	if !d.HasStrides() {
		return d.Layout != LayoutChannelsLast || d.Rank() != 4
	}
	want := shapes.ContiguousStrides(d.Dimensions)
	for axis, dim := range d.Dimensions {
		if dim > 1 && d.Strides[axis] != want[axis] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the descriptor.
func (d Descriptor) Clone() Descriptor {
	return Descriptor{
		Shape:         d.Shape.Clone(),
		Layout:        d.Layout,
		Strides:       slices.Clone(d.Strides),
		StorageOffset: d.StorageOffset,
	}
}

// Equal compares shape, layout, strides and storage offset.
func (d Descriptor) Equal(d2 Descriptor) bool {
	return d.Shape.Equal(d2.Shape) && d.Layout == d2.Layout &&
		d.HasStrides() == d2.HasStrides() && slices.Equal(d.Strides, d2.Strides) &&
		d.StorageOffset == d2.StorageOffset
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	var sb strings.Builder
	sb.WriteString(d.Shape.String())
	if d.Layout != LayoutUnspecified {
		sb.WriteString(" ")
		sb.WriteString(d.Layout.String())
	}
	if d.HasStrides() {
		_, _ = fmt.Fprintf(&sb, " strides=%v offset=%d", d.Strides, d.StorageOffset)
	}
	return sb.String()
}
