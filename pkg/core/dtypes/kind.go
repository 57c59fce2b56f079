// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import (
	"fmt"

	"github.com/x448/float16"
)

// Kind is the numeric category of a value: bool, integer, float or complex.
//
// Bare scalar literals (a Go int or float64 passed as an operator argument) only carry a Kind, not a
// concrete bit-width. They are resolved to a DType with Kind.DType when combined with other operands.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindComplex
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindComplex: "complex",
}

// kindDTypes is the concrete dtype a Kind resolves to.
var kindDTypes = [...]DType{
	KindInvalid: InvalidDType,
	KindBool:    Bool,
	KindInt:     Int32,
	KindFloat:   Float32,
	KindComplex: Complex64,
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// DType returns the nearest concrete dtype of the category: Bool, Int32, Float32 or Complex64.
// KindInvalid maps to InvalidDType.
func (k Kind) DType() DType {
	if k < 0 || int(k) >= len(kindDTypes) {
		return InvalidDType
	}
	return kindDTypes[k]
}

// KindOf returns the numeric category of a Go scalar value, or KindInvalid if value is not a
// supported scalar.
func KindOf(value any) Kind {
	switch value.(type) {
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float16.Float16, float32, float64:
		return KindFloat
	case complex64, complex128:
		return KindComplex
	}
	return KindInvalid
}
