// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypes includes the DType enum for the element types of tensor descriptors, and the
// Kind enum for the numeric category of bare scalar literals.
//
// All lookups (names, sizes, categories) are static tables indexed by DType.
package dtypes

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

func init() {
	// Add a mapping to the lower-case version of dtypes.
	keys := slices.Collect(maps.Keys(MapOfNames))
	for _, key := range keys {
		lowerKey := strings.ToLower(key)
		if lowerKey == key {
			continue
		}
		if _, found := MapOfNames[lowerKey]; found {
			continue
		}
		MapOfNames[lowerKey] = MapOfNames[key]
	}
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if dtype < 0 || dtype >= numDTypes {
		return fmt.Sprintf("DType(%d)", int32(dtype))
	}
	return names[dtype]
}

// FromName returns the DType for the given name, including aliases. See MapOfNames.
// It returns an error for unknown names.
func FromName(name string) (DType, error) {
	if dtype, found := MapOfNames[name]; found {
		return dtype, nil
	}
	if dtype, found := MapOfNames[strings.ToLower(name)]; found {
		return dtype, nil
	}
	return InvalidDType, errors.Errorf("unknown dtype name %q", name)
}

// Size returns the number of bytes for the given DType, or 0 for InvalidDType.
func (dtype DType) Size() int {
	if dtype < 0 || dtype >= numDTypes {
		return 0
	}
	return sizes[dtype]
}

// Bits returns the number of bits for the given DType.
func (dtype DType) Bits() int {
	return dtype.Size() * 8
}

// Memory returns the number of bytes for the given DType.
// It's an alias to Size, converted to uintptr.
func (dtype DType) Memory() uintptr {
	return uintptr(dtype.Size())
}

// SizeForDimensions returns the size in bytes used for the given dimensions.
//
// It works also for scalar (one element) shapes where the list of dimensions is empty.
func (dtype DType) SizeForDimensions(dimensions ...int) int {
	numElements := 1
	for _, dim := range dimensions {
		numElements *= dim
	}
	return numElements * dtype.Size()
}

// IsFloat returns whether dtype is a float. It returns false for complex numbers.
func (dtype DType) IsFloat() bool {
	return dtype == Float32 || dtype == Float64 || dtype == Float16 || dtype == BFloat16
}

// IsComplex returns whether dtype is a complex number type.
func (dtype DType) IsComplex() bool {
	return dtype == Complex64 || dtype == Complex128
}

// IsInt returns whether dtype is an integer type, signed or unsigned.
func (dtype DType) IsInt() bool {
	return dtype == Int64 || dtype == Int32 || dtype == Int16 || dtype == Int8 ||
		dtype == Uint8 || dtype == Uint16 || dtype == Uint32 || dtype == Uint64
}

// IsUnsigned returns whether dtype is one of the unsigned integer types.
func (dtype DType) IsUnsigned() bool {
	return dtype == Uint8 || dtype == Uint16 || dtype == Uint32 || dtype == Uint64
}

// IsSupported returns whether dtype is one of the enumerated dtypes, other than InvalidDType.
func (dtype DType) IsSupported() bool {
	return dtype > InvalidDType && dtype < numDTypes
}

// Kind returns the numeric category of the dtype, or KindInvalid.
func (dtype DType) Kind() Kind {
	switch {
	case dtype == Bool:
		return KindBool
	case dtype.IsInt():
		return KindInt
	case dtype.IsFloat():
		return KindFloat
	case dtype.IsComplex():
		return KindComplex
	}
	return KindInvalid
}

// FromAny introspects the underlying type of value and returns the corresponding DType.
// Non-scalar types, or unsupported types return InvalidDType.
//
// Go's int is mapped to Int64.
func FromAny(value any) DType {
	switch value.(type) {
	case bool:
		return Bool
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64, int:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64, uint:
		return Uint64
	case float16.Float16:
		return Float16
	case float32:
		return Float32
	case float64:
		return Float64
	case complex64:
		return Complex64
	case complex128:
		return Complex128
	}
	return InvalidDType
}
