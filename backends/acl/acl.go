// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package acl implements a delegate.Runtime (and a backends.Backend) using the native shape inference
// of the Ascend Computing Language (ACL) runtime.
//
// The shared library is loaded at runtime with purego, so no cgo (or ACL headers) is required to build.
// The package registers itself as the "acl" backend: the backend configuration is the path to the
// shared library. If empty, the environment variable ACL_LIBRARY_PATH is used, and if that is not set,
// DefaultLibraryName is searched in the system library paths.
package acl

import (
	"fmt"
	"os"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/metainfer/backends"
	"github.com/gomlx/metainfer/pkg/core/delegate"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to be used in METAINFER_BACKEND to specify this backend.
const BackendName = "acl"

// LibraryPathEnv is the environment variable with the path to the ACL shared library.
const LibraryPathEnv = "ACL_LIBRARY_PATH"

// ErrorRepeatInitialize is returned by aclInit if the library was already initialized in the process.
const ErrorRepeatInitialize int32 = 100002

func init() {
	backends.Register(BackendName, func(config string) (backends.Backend, error) {
		return New(config)
	})
}

// bindings to the ACL C API. Pointers to arrays point to their first element, or are nil if empty.
type bindings struct {
	aclInit     func(configPath *byte) int32
	aclFinalize func() int32

	aclCreateTensorDesc     func(dtype int32, numDims int32, dims *int64, format int32) uintptr
	aclDestroyTensorDesc    func(desc uintptr)
	aclGetTensorDescType    func(desc uintptr) int32
	aclGetTensorDescFormat  func(desc uintptr) int32
	aclGetTensorDescNumDims func(desc uintptr) uintptr
	aclGetTensorDescDimV2   func(desc uintptr, index uintptr, dim *int64) int32

	aclCreateDataBuffer  func(data uintptr, size uintptr) uintptr
	aclDestroyDataBuffer func(buf uintptr) int32

	aclopCreateAttr       func() uintptr
	aclopDestroyAttr      func(attr uintptr)
	aclopSetAttrInt       func(attr uintptr, name string, value int64) int32
	aclopSetAttrFloat     func(attr uintptr, name string, value float32) int32
	aclopSetAttrBool      func(attr uintptr, name string, value uint8) int32
	aclopSetAttrString    func(attr uintptr, name string, value string) int32
	aclopSetAttrListInt   func(attr uintptr, name string, numValues int32, values *int64) int32
	aclopSetAttrListFloat func(attr uintptr, name string, numValues int32, values *float32) int32
	aclopSetAttrDataType  func(attr uintptr, name string, dtype int32) int32

	aclopInferShape func(opType string, numInputs int32, inputDescs *delegate.TensorDesc, inputs *delegate.DataBuffer,
		numOutputs int32, outputDescs *delegate.TensorDesc, attr delegate.OpAttr) int32
}

// symbols maps each C symbol to the pointer of the function field bound to it.
func (b *bindings) symbols() map[string]any {
	return map[string]any{
		"aclInit":                 &b.aclInit,
		"aclFinalize":             &b.aclFinalize,
		"aclCreateTensorDesc":     &b.aclCreateTensorDesc,
		"aclDestroyTensorDesc":    &b.aclDestroyTensorDesc,
		"aclGetTensorDescType":    &b.aclGetTensorDescType,
		"aclGetTensorDescFormat":  &b.aclGetTensorDescFormat,
		"aclGetTensorDescNumDims": &b.aclGetTensorDescNumDims,
		"aclGetTensorDescDimV2":   &b.aclGetTensorDescDimV2,
		"aclCreateDataBuffer":     &b.aclCreateDataBuffer,
		"aclDestroyDataBuffer":    &b.aclDestroyDataBuffer,
		"aclopCreateAttr":         &b.aclopCreateAttr,
		"aclopDestroyAttr":        &b.aclopDestroyAttr,
		"aclopSetAttrInt":         &b.aclopSetAttrInt,
		"aclopSetAttrFloat":       &b.aclopSetAttrFloat,
		"aclopSetAttrBool":        &b.aclopSetAttrBool,
		"aclopSetAttrString":      &b.aclopSetAttrString,
		"aclopSetAttrListInt":     &b.aclopSetAttrListInt,
		"aclopSetAttrListFloat":   &b.aclopSetAttrListFloat,
		"aclopSetAttrDataType":    &b.aclopSetAttrDataType,
		"aclopInferShape":         &b.aclopInferShape,
	}
}

// Runtime is a delegate.Runtime backed by the ACL shared library.
//
// The ACL runtime is process-wide state: only one Runtime should be open at a time.
type Runtime struct {
	path      string
	libHandle uintptr
	api       bindings

	finalizeOnce sync.Once
}

var (
	_ delegate.Runtime = (*Runtime)(nil)
	_ backends.Backend = (*Runtime)(nil)
)

// New loads the ACL shared library from path, binds the C API and initializes the ACL runtime.
//
// If path is empty, the environment variable ACL_LIBRARY_PATH is used, and then DefaultLibraryName.
func New(path string) (*Runtime, error) {
	if path == "" {
		path = os.Getenv(LibraryPathEnv)
	}
	if path == "" {
		path = DefaultLibraryName
	}
	libHandle, err := loadLibrary(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load ACL library from %q", path)
	}
	if libHandle == 0 {
		return nil, errors.Errorf("failed to load ACL library from %q", path)
	}
	r := &Runtime{path: path, libHandle: libHandle}
	if err = r.bind(); err != nil {
		_ = closeLibrary(libHandle)
		return nil, err
	}
	if status := r.api.aclInit(nil); status != 0 && status != ErrorRepeatInitialize {
		_ = closeLibrary(libHandle)
		return nil, errors.Errorf("aclInit failed with status %d", status)
	}
	klog.V(1).Infof("ACL runtime initialized from %q", path)
	return r, nil
}

// bind resolves every symbol and registers the Go function for it.
func (r *Runtime) bind() error {
	for name, fnPtr := range r.api.symbols() {
		sym, err := getSymbol(r.libHandle, name)
		if err != nil {
			return errors.Wrapf(err, "symbol %q not found in ACL library %q", name, r.path)
		}
		if sym == 0 {
			return errors.Errorf("symbol %q not found in ACL library %q", name, r.path)
		}
		if exception := exceptions.Try(func() { purego.RegisterFunc(fnPtr, sym) }); exception != nil {
			return errors.Errorf("binding symbol %q: %v", name, exception)
		}
	}
	return nil
}

// Name implements delegate.Runtime.
func (r *Runtime) Name() string { return BackendName }

// Description implements backends.Backend.
func (r *Runtime) Description() string {
	return fmt.Sprintf("Ascend Computing Language (ACL) shape inference, from %q", r.path)
}

// Finalize the ACL runtime and unload the library. The Runtime can't be used afterward.
// It is safe to call it more than once.
func (r *Runtime) Finalize() {
	r.finalizeOnce.Do(func() {
		if status := r.api.aclFinalize(); status != 0 {
			klog.Warningf("aclFinalize failed with status %d", status)
		}
		if err := closeLibrary(r.libHandle); err != nil {
			klog.Warningf("failed to unload ACL library %q: %+v", r.path, err)
		}
		r.libHandle = 0
	})
}

// firstOrNil returns a pointer to the first element of values, or nil if it is empty.
func firstOrNil[T any](values []T) *T {
	if len(values) == 0 {
		return nil
	}
	return &values[0]
}

// CreateTensorDesc implements delegate.Runtime.
func (r *Runtime) CreateTensorDesc(dtypeCode int32, dims []int64, formatCode int32) (delegate.TensorDesc, error) {
	desc := r.api.aclCreateTensorDesc(dtypeCode, int32(len(dims)), firstOrNil(dims), formatCode)
	if desc == 0 {
		return 0, errors.Errorf("aclCreateTensorDesc(dtype=%d, dims=%v, format=%d) failed", dtypeCode, dims, formatCode)
	}
	return delegate.TensorDesc(desc), nil
}

// DestroyTensorDesc implements delegate.Runtime.
func (r *Runtime) DestroyTensorDesc(desc delegate.TensorDesc) {
	r.api.aclDestroyTensorDesc(uintptr(desc))
}

// TensorDescDType implements delegate.Runtime.
func (r *Runtime) TensorDescDType(desc delegate.TensorDesc) int32 {
	return r.api.aclGetTensorDescType(uintptr(desc))
}

// TensorDescFormat implements delegate.Runtime.
func (r *Runtime) TensorDescFormat(desc delegate.TensorDesc) int32 {
	return r.api.aclGetTensorDescFormat(uintptr(desc))
}

// TensorDescDims implements delegate.Runtime.
func (r *Runtime) TensorDescDims(desc delegate.TensorDesc) ([]int64, error) {
	numDims := int(r.api.aclGetTensorDescNumDims(uintptr(desc)))
	dims := make([]int64, numDims)
	for ii := range dims {
		if status := r.api.aclGetTensorDescDimV2(uintptr(desc), uintptr(ii), &dims[ii]); status != 0 {
			return nil, errors.Errorf("aclGetTensorDescDimV2(axis=%d) failed with status %d", ii, status)
		}
	}
	return dims, nil
}

// CreateDataBuffer implements delegate.Runtime. It returns an empty placeholder buffer.
func (r *Runtime) CreateDataBuffer() (delegate.DataBuffer, error) {
	buf := r.api.aclCreateDataBuffer(0, 0)
	if buf == 0 {
		return 0, errors.New("aclCreateDataBuffer failed")
	}
	return delegate.DataBuffer(buf), nil
}

// DestroyDataBuffer implements delegate.Runtime.
func (r *Runtime) DestroyDataBuffer(buf delegate.DataBuffer) error {
	if status := r.api.aclDestroyDataBuffer(uintptr(buf)); status != 0 {
		return errors.Errorf("aclDestroyDataBuffer failed with status %d", status)
	}
	return nil
}

// CreateAttr implements delegate.Runtime.
func (r *Runtime) CreateAttr() (delegate.OpAttr, error) {
	attr := r.api.aclopCreateAttr()
	if attr == 0 {
		return 0, errors.New("aclopCreateAttr failed")
	}
	return delegate.OpAttr(attr), nil
}

// DestroyAttr implements delegate.Runtime.
func (r *Runtime) DestroyAttr(attr delegate.OpAttr) {
	r.api.aclopDestroyAttr(uintptr(attr))
}

func attrStatus(fn, name string, status int32) error {
	if status != 0 {
		return errors.Errorf("%s(%q) failed with status %d", fn, name, status)
	}
	return nil
}

// SetAttrInt implements delegate.Runtime.
func (r *Runtime) SetAttrInt(attr delegate.OpAttr, name string, value int64) error {
	return attrStatus("aclopSetAttrInt", name, r.api.aclopSetAttrInt(uintptr(attr), name, value))
}

// SetAttrFloat implements delegate.Runtime.
func (r *Runtime) SetAttrFloat(attr delegate.OpAttr, name string, value float32) error {
	return attrStatus("aclopSetAttrFloat", name, r.api.aclopSetAttrFloat(uintptr(attr), name, value))
}

// SetAttrBool implements delegate.Runtime.
func (r *Runtime) SetAttrBool(attr delegate.OpAttr, name string, value bool) error {
	var v uint8
	if value {
		v = 1
	}
	return attrStatus("aclopSetAttrBool", name, r.api.aclopSetAttrBool(uintptr(attr), name, v))
}

// SetAttrString implements delegate.Runtime.
func (r *Runtime) SetAttrString(attr delegate.OpAttr, name string, value string) error {
	return attrStatus("aclopSetAttrString", name, r.api.aclopSetAttrString(uintptr(attr), name, value))
}

// SetAttrListInt implements delegate.Runtime.
func (r *Runtime) SetAttrListInt(attr delegate.OpAttr, name string, values []int64) error {
	return attrStatus("aclopSetAttrListInt", name,
		r.api.aclopSetAttrListInt(uintptr(attr), name, int32(len(values)), firstOrNil(values)))
}

// SetAttrListFloat implements delegate.Runtime.
func (r *Runtime) SetAttrListFloat(attr delegate.OpAttr, name string, values []float32) error {
	return attrStatus("aclopSetAttrListFloat", name,
		r.api.aclopSetAttrListFloat(uintptr(attr), name, int32(len(values)), firstOrNil(values)))
}

// SetAttrDType implements delegate.Runtime.
func (r *Runtime) SetAttrDType(attr delegate.OpAttr, name string, dtypeCode int32) error {
	return attrStatus("aclopSetAttrDataType", name, r.api.aclopSetAttrDataType(uintptr(attr), name, dtypeCode))
}

// InferShape implements delegate.Runtime.
func (r *Runtime) InferShape(opType string, inputs []delegate.TensorDesc, inputBuffers []delegate.DataBuffer,
	outputs []delegate.TensorDesc, attr delegate.OpAttr) int32 {
	return r.api.aclopInferShape(opType, int32(len(inputs)), firstOrNil(inputs), firstOrNil(inputBuffers),
		int32(len(outputs)), firstOrNil(outputs), attr)
}
