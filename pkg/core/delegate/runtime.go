// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package delegate

// TensorDesc is an opaque handle to a native tensor descriptor.
type TensorDesc uintptr

// DataBuffer is an opaque handle to a native data buffer.
type DataBuffer uintptr

// OpAttr is an opaque handle to a native set of operator attributes.
type OpAttr uintptr

// Runtime is the native shape inference API of a vendor library.
//
// Handles returned by the Create* methods are owned by the caller, who must release them with the
// corresponding Destroy* method. Implementations are not required to be safe for concurrent use:
// the Delegate serializes all calls.
type Runtime interface {
	// Name of the runtime, for logging.
	Name() string

	// CreateTensorDesc creates a descriptor with the given vendor dtype code, dimensions and format code.
	CreateTensorDesc(dtypeCode int32, dims []int64, formatCode int32) (TensorDesc, error)
	DestroyTensorDesc(desc TensorDesc)

	// TensorDescDType returns the vendor dtype code of the descriptor.
	TensorDescDType(desc TensorDesc) int32
	// TensorDescDims returns the dimensions of the descriptor.
	TensorDescDims(desc TensorDesc) ([]int64, error)
	// TensorDescFormat returns the vendor format code of the descriptor.
	TensorDescFormat(desc TensorDesc) int32

	// CreateDataBuffer creates an empty placeholder data buffer: inference never touches data.
	CreateDataBuffer() (DataBuffer, error)
	DestroyDataBuffer(buf DataBuffer) error

	CreateAttr() (OpAttr, error)
	DestroyAttr(attr OpAttr)
	SetAttrInt(attr OpAttr, name string, value int64) error
	SetAttrFloat(attr OpAttr, name string, value float32) error
	SetAttrBool(attr OpAttr, name string, value bool) error
	SetAttrString(attr OpAttr, name string, value string) error
	SetAttrListInt(attr OpAttr, name string, values []int64) error
	SetAttrListFloat(attr OpAttr, name string, values []float32) error
	SetAttrDType(attr OpAttr, name string, dtypeCode int32) error

	// InferShape runs the native shape inference of opType, filling in the outputs descriptors.
	// It returns the native status code: 0 is success.
	InferShape(opType string, inputs []TensorDesc, inputBuffers []DataBuffer, outputs []TensorDesc, attr OpAttr) int32
}
