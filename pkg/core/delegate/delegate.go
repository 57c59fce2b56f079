// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package delegate infers the output descriptors of operations with no closed-form rule by
// delegating to the native shape inference of a vendor runtime.
//
// Descriptors and attributes are marshaled into native handles, the native inference is invoked,
// and the output handles are read back. The native runtime is process-wide shared state and not
// guaranteed to be reentrant, so a Delegate serializes all calls into it.
package delegate

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/gomlx/metainfer/pkg/core/shapes"
	"github.com/gomlx/metainfer/pkg/support/nested"
	"github.com/gomlx/metainfer/pkg/support/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// InferenceFailureError is returned when the native inference returns a non-success status.
type InferenceFailureError struct {
	OpName string
	Status int32
}

// Error implements error.
func (e *InferenceFailureError) Error() string {
	return fmt.Sprintf("native shape inference of %q failed with status %d", e.OpName, e.Status)
}

// Delegate of shape inference to a native Runtime.
// It is safe for concurrent use: calls into the runtime are serialized.
type Delegate struct {
	mu      sync.Mutex
	runtime Runtime
}

// New returns a Delegate that uses the given runtime.
func New(runtime Runtime) *Delegate {
	return &Delegate{runtime: runtime}
}

// Name of the underlying runtime.
func (d *Delegate) Name() string {
	return d.runtime.Name()
}

// attrSetter sets one attribute on a native attribute handle.
type attrSetter func(r Runtime, attr OpAttr) error

// Infer the numOutputs output descriptors of the operation opName over the given inputs.
//
// Attributes are converted to native attributes by name, see attrSetters for the supported types.
// Each output takes the layout of the input in the same position. Outputs without a paired input
// take the format reported by the runtime.
//
// It returns an InferenceFailureError if the runtime returns a non-success status. All native handles
// are released before returning.
func (d *Delegate) Infer(opName string, inputs []descriptors.Descriptor, numOutputs int, attrs map[string]any) (
	outputs []descriptors.Descriptor, err error) {
	if numOutputs < 0 {
		return nil, errors.Errorf("invalid number of outputs %d for %q", numOutputs, opName)
	}
	setters, err := attrSetters(attrs)
	if err != nil {
		return nil, errors.WithMessagef(err, "attributes of %q", opName)
	}
	inputCodes := make([]struct{ dtype, format int32 }, len(inputs))
	for ii, input := range inputs {
		inputCodes[ii].dtype, err = VendorDTypeCode(input.DType)
		if err != nil {
			return nil, errors.WithMessagef(err, "input #%d of %q", ii, opName)
		}
		inputCodes[ii].format = VendorFormatCode(input.Layout)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.runtime
	klog.V(2).Infof("delegate %s: inferring %q with %d inputs and %d outputs", r.Name(), opName, len(inputs), numOutputs)

	attr, err := r.CreateAttr()
	if err != nil {
		return nil, errors.WithMessagef(err, "creating attributes for %q", opName)
	}
	defer r.DestroyAttr(attr)
	for _, setter := range setters {
		if err = setter(r, attr); err != nil {
			return nil, errors.WithMessagef(err, "setting attributes of %q", opName)
		}
	}

	inputDescs := make([]TensorDesc, 0, len(inputs))
	inputBuffers := make([]DataBuffer, 0, len(inputs))
	outputDescs := make([]TensorDesc, 0, numOutputs)
	defer func() {
		for _, desc := range slices.Concat(inputDescs, outputDescs) {
			r.DestroyTensorDesc(desc)
		}
		for _, buf := range inputBuffers {
			if destroyErr := r.DestroyDataBuffer(buf); destroyErr != nil {
				klog.Warningf("delegate %s: failed to release data buffer for %q: %+v", r.Name(), opName, destroyErr)
			}
		}
	}()
	for ii, input := range inputs {
		desc, err := r.CreateTensorDesc(inputCodes[ii].dtype, xslices.Convert[int64](input.Dimensions), inputCodes[ii].format)
		if err != nil {
			return nil, errors.WithMessagef(err, "creating descriptor for input #%d (%s) of %q", ii, input, opName)
		}
		inputDescs = append(inputDescs, desc)
		buf, err := r.CreateDataBuffer()
		if err != nil {
			return nil, errors.WithMessagef(err, "creating data buffer for input #%d of %q", ii, opName)
		}
		inputBuffers = append(inputBuffers, buf)
	}
	for ii := range numOutputs {
		desc, err := r.CreateTensorDesc(VendorDTypeUndefined, []int64{0}, VendorFormatUndefined)
		if err != nil {
			return nil, errors.WithMessagef(err, "creating descriptor for output #%d of %q", ii, opName)
		}
		outputDescs = append(outputDescs, desc)
	}

	if status := r.InferShape(opName, inputDescs, inputBuffers, outputDescs, attr); status != 0 {
		return nil, errors.WithStack(&InferenceFailureError{OpName: opName, Status: status})
	}

	outputs = make([]descriptors.Descriptor, numOutputs)
	for ii, desc := range outputDescs {
		dims, err := r.TensorDescDims(desc)
		if err != nil {
			return nil, errors.WithMessagef(err, "reading dimensions of output #%d of %q", ii, opName)
		}
		dtype, err := DTypeFromVendorCode(r.TensorDescDType(desc))
		if err != nil {
			return nil, errors.WithMessagef(err, "reading dtype of output #%d of %q", ii, opName)
		}
		for _, dim := range dims {
			if dim < 0 {
				return nil, errors.Errorf("output #%d of %q has invalid dimensions %v", ii, opName, dims)
			}
		}
		var layout descriptors.Layout
		if ii < len(inputs) {
			layout = inputs[ii].Layout
		} else {
			layout = LayoutFromVendorFormat(r.TensorDescFormat(desc))
		}
		outputs[ii] = descriptors.New(shapes.Make(dtype, xslices.Convert[int](dims)...), layout)
	}
	klog.V(2).Infof("delegate %s: %q -> %v", r.Name(), opName, outputs)
	return outputs, nil
}

// attrSetters converts the attributes into native setters, sorted by name so the runtime always sees
// them in the same order. Nested single-element containers are flattened first.
//
// Supported types: int, int32, int64, float32, float64, bool, string, dtypes.DType and slices of
// integers or floats. Other types are an error.
func attrSetters(attrs map[string]any) ([]attrSetter, error) {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	slices.Sort(names)
	setters := make([]attrSetter, 0, len(names))
	for _, name := range names {
		setter, err := attrSetterFor(name, attrs[name])
		if err != nil {
			return nil, err
		}
		setters = append(setters, setter)
	}
	return setters, nil
}

func attrSetterFor(name string, value any) (attrSetter, error) {
	flat := nested.Flatten(value)
	switch value.(type) {
	case []any, []int, []int32, []int64, []float32, []float64:
		// Lists stay lists, even with a single element: only the nesting inside them is collapsed.
		if _, isList := flat.([]any); !isList {
			flat = []any{flat}
		}
	}
	value = flat

	switch v := value.(type) {
	case int:
		return func(r Runtime, attr OpAttr) error { return r.SetAttrInt(attr, name, int64(v)) }, nil
	case int32:
		return func(r Runtime, attr OpAttr) error { return r.SetAttrInt(attr, name, int64(v)) }, nil
	case int64:
		return func(r Runtime, attr OpAttr) error { return r.SetAttrInt(attr, name, v) }, nil
	case float32:
		return func(r Runtime, attr OpAttr) error { return r.SetAttrFloat(attr, name, v) }, nil
	case float64:
		return func(r Runtime, attr OpAttr) error { return r.SetAttrFloat(attr, name, float32(v)) }, nil
	case bool:
		return func(r Runtime, attr OpAttr) error { return r.SetAttrBool(attr, name, v) }, nil
	case string:
		return func(r Runtime, attr OpAttr) error { return r.SetAttrString(attr, name, v) }, nil
	case dtypes.DType:
		code, err := VendorDTypeCode(v)
		if err != nil {
			return nil, errors.WithMessagef(err, "attribute %q", name)
		}
		return func(r Runtime, attr OpAttr) error { return r.SetAttrDType(attr, name, code) }, nil
	case []any:
		if ints, ok := listOf[int64](v); ok {
			return func(r Runtime, attr OpAttr) error { return r.SetAttrListInt(attr, name, ints) }, nil
		}
		if floats, ok := listOf[float32](v); ok {
			return func(r Runtime, attr OpAttr) error { return r.SetAttrListFloat(attr, name, floats) }, nil
		}
		return nil, errors.Errorf("attribute %q has unsupported list value %v", name, v)
	}
	return nil, errors.Errorf("attribute %q has unsupported value type %T", name, value)
}

// listOf converts a list of Go numbers to []T. Integers are accepted as floats, but not the opposite.
func listOf[T int64 | float32](values []any) ([]T, bool) {
	var zero T
	_, wantFloat := any(zero).(float32)
	out := make([]T, len(values))
	for ii, value := range values {
		switch v := value.(type) {
		case int:
			out[ii] = T(v)
		case int32:
			out[ii] = T(v)
		case int64:
			out[ii] = T(v)
		case float32:
			if !wantFloat {
				return nil, false
			}
			out[ii] = T(v)
		case float64:
			if !wantFloat {
				return nil, false
			}
			out[ii] = T(v)
		default:
			return nil, false
		}
	}
	return out, true
}
