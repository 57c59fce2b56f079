// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

// DType is an enum that represents the data type of the elements of a tensor.
//
// The numeric values follow the XLA/PJRT buffer type numbering used across GoMLX, so they are
// stable and can be serialized. Vendor runtimes use their own codes, see package delegate for
// the translation tables.
type DType int32

const (
	// InvalidDType is the zero value: a dtype that was not set or could not be resolved.
	InvalidDType DType = 0

	// Bool represents two-state booleans (PRED in XLA).
	Bool DType = 1

	// Int8 is a signed integral value of 8 bits.
	Int8 DType = 2

	// Int16 is a signed integral value of 16 bits.
	Int16 DType = 3

	// Int32 is a signed integral value of 32 bits.
	Int32 DType = 4

	// Int64 is a signed integral value of 64 bits.
	Int64 DType = 5

	// Uint8 is an unsigned integral value of 8 bits.
	Uint8 DType = 6

	// Uint16 is an unsigned integral value of 16 bits.
	Uint16 DType = 7

	// Uint32 is an unsigned integral value of 32 bits.
	Uint32 DType = 8

	// Uint64 is an unsigned integral value of 64 bits.
	Uint64 DType = 9

	// Float16 is the IEEE 754 half-precision float.
	Float16 DType = 10

	// Float32 is the IEEE 754 single-precision float.
	Float32 DType = 11

	// Float64 is the IEEE 754 double-precision float, also known as "double".
	Float64 DType = 12

	// BFloat16 is the truncated 16 bits float: 1 bit sign, 8 bits exponent and 7 bits mantissa.
	BFloat16 DType = 13

	// Complex64 is a pair of Float32 (real, imag).
	Complex64 DType = 14

	// Complex128 is a pair of Float64 (real, imag).
	Complex128 DType = 15

	// numDTypes is one past the largest DType value, used to size the lookup tables.
	numDTypes = 16
)

// Aliases from XLA C API names.
const (
	INVALID = InvalidDType
	PRED    = Bool
	S8      = Int8
	S16     = Int16
	S32     = Int32
	S64     = Int64
	U8      = Uint8
	U16     = Uint16
	U32     = Uint32
	U64     = Uint64
	F16     = Float16
	F32     = Float32
	F64     = Float64
	BF16    = BFloat16
	C64     = Complex64
	C128    = Complex128
)

// names of the dtypes, indexed by DType.
var names = [numDTypes]string{
	InvalidDType: "InvalidDType",
	Bool:         "Bool",
	Int8:         "Int8",
	Int16:        "Int16",
	Int32:        "Int32",
	Int64:        "Int64",
	Uint8:        "Uint8",
	Uint16:       "Uint16",
	Uint32:       "Uint32",
	Uint64:       "Uint64",
	Float16:      "Float16",
	Float32:      "Float32",
	Float64:      "Float64",
	BFloat16:     "BFloat16",
	Complex64:    "Complex64",
	Complex128:   "Complex128",
}

// sizes in bytes, indexed by DType.
var sizes = [numDTypes]int{
	Bool:       1,
	Int8:       1,
	Int16:      2,
	Int32:      4,
	Int64:      8,
	Uint8:      1,
	Uint16:     2,
	Uint32:     4,
	Uint64:     8,
	Float16:    2,
	Float32:    4,
	Float64:    8,
	BFloat16:   2,
	Complex64:  8,
	Complex128: 16,
}

// MapOfNames to their dtypes. It includes also the XLA aliases and the PyTorch style names
// ("float", "double", "half", "long", "int") commonly found in exported graphs.
// It is later initialized to include the lower-case version of the names.
var MapOfNames = map[string]DType{
	"InvalidDType": InvalidDType,
	"INVALID":      InvalidDType,
	"Bool":         Bool,
	"PRED":         Bool,
	"Int8":         Int8,
	"S8":           Int8,
	"Int16":        Int16,
	"S16":          Int16,
	"Int32":        Int32,
	"S32":          Int32,
	"Int64":        Int64,
	"S64":          Int64,
	"Uint8":        Uint8,
	"U8":           Uint8,
	"Uint16":       Uint16,
	"U16":          Uint16,
	"Uint32":       Uint32,
	"U32":          Uint32,
	"Uint64":       Uint64,
	"U64":          Uint64,
	"Float16":      Float16,
	"F16":          Float16,
	"half":         Float16,
	"Float32":      Float32,
	"F32":          Float32,
	"float":        Float32,
	"Float64":      Float64,
	"F64":          Float64,
	"double":       Float64,
	"BFloat16":     BFloat16,
	"BF16":         BFloat16,
	"Complex64":    Complex64,
	"C64":          Complex64,
	"Complex128":   Complex128,
	"C128":         Complex128,
	"int":          Int32,
	"long":         Int64,
}
