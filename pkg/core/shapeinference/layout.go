// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapeinference

import (
	"fmt"

	"github.com/gomlx/metainfer/pkg/core/descriptors"
)

// OpKind is the family of an operation, used to decide how the memory layout propagates.
type OpKind int

const (
	OpKindElementwise OpKind = iota
	OpKindReduction
	OpKindView
	OpKindTranspose
	OpKindPermute
	OpKindOther
)

var opKindNames = [...]string{
	OpKindElementwise: "elementwise",
	OpKindReduction:   "reduction",
	OpKindView:        "view",
	OpKindTranspose:   "transpose",
	OpKindPermute:     "permute",
	OpKindOther:       "other",
}

// String implements fmt.Stringer.
func (k OpKind) String() string {
	if k < 0 || int(k) >= len(opKindNames) {
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
	return opKindNames[k]
}

// PropagateLayout returns the layout of the output of an operation of the given kind over tensor.
//
// The layout of the input is preserved, whether the tensor is contiguous or a strided view.
// There are no kind specific rules yet: notably transposes and permutations don't recompute the
// layout of their outputs.
func PropagateLayout(tensor descriptors.Descriptor, kind OpKind) descriptors.Layout {
	return tensor.Layout
}
