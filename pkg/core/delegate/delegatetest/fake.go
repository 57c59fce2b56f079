// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package delegatetest provides FakeRuntime, an in-memory delegate.Runtime for tests.
//
// Operations are answered by programmable rules. The fake tracks every native handle, so tests can
// assert that nothing leaks, and counts concurrent calls, so tests can assert they are serialized.
package delegatetest

import (
	"slices"
	"sync"
	"time"

	"github.com/gomlx/metainfer/pkg/core/delegate"
	"github.com/pkg/errors"
)

// StatusUnknownOp is returned by InferShape for operations without a rule.
const StatusUnknownOp int32 = 100000

// StatusInvalidHandle is returned by InferShape if it is given an unknown handle.
const StatusInvalidHandle int32 = 100001

// Desc is the content of a fake native tensor descriptor.
type Desc struct {
	DTypeCode  int32
	Dims       []int64
	FormatCode int32
}

// Rule answers the shape inference of one operation type: it returns the outputs descriptors, and the
// status code. Attribute values are int64, float32, bool, string, []int64, []float32, or the vendor
// code (int32) for dtype attributes.
type Rule func(inputs []Desc, attrs map[string]any, numOutputs int) ([]Desc, int32)

// Call records one InferShape call.
type Call struct {
	OpType     string
	Inputs     []Desc
	Attrs      map[string]any
	NumOutputs int
}

// FakeRuntime implements delegate.Runtime in memory.
type FakeRuntime struct {
	// CreateError, if set, is returned by CreateTensorDesc.
	CreateError error

	// Delay, if set, is how long InferShape takes, to widen the window for concurrent calls.
	Delay time.Duration

	mu          sync.Mutex
	nextHandle  uintptr
	descs       map[delegate.TensorDesc]*Desc
	buffers     map[delegate.DataBuffer]bool
	attrs       map[delegate.OpAttr]map[string]any
	rules       map[string]Rule
	calls       []Call
	badReleases int

	inFlight, maxInFlight int
}

var _ delegate.Runtime = (*FakeRuntime)(nil)

// New returns a FakeRuntime without rules.
func New() *FakeRuntime {
	return &FakeRuntime{
		descs:   make(map[delegate.TensorDesc]*Desc),
		buffers: make(map[delegate.DataBuffer]bool),
		attrs:   make(map[delegate.OpAttr]map[string]any),
		rules:   make(map[string]Rule),
	}
}

// SetRule sets the rule for opType. It returns the FakeRuntime for chaining.
func (f *FakeRuntime) SetRule(opType string, rule Rule) *FakeRuntime {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[opType] = rule
	return f
}

// SameAsInput is a Rule that returns copies of the input #idx for every output.
func SameAsInput(idx int) Rule {
	return func(inputs []Desc, _ map[string]any, numOutputs int) ([]Desc, int32) {
		outputs := make([]Desc, numOutputs)
		for ii := range outputs {
			outputs[ii] = Desc{DTypeCode: inputs[idx].DTypeCode, Dims: slices.Clone(inputs[idx].Dims), FormatCode: inputs[idx].FormatCode}
		}
		return outputs, 0
	}
}

// Fixed is a Rule that returns the given outputs.
func Fixed(outputs ...Desc) Rule {
	return func([]Desc, map[string]any, int) ([]Desc, int32) {
		return outputs, 0
	}
}

// Failing is a Rule that always fails with the given status.
func Failing(status int32) Rule {
	return func([]Desc, map[string]any, int) ([]Desc, int32) {
		return nil, status
	}
}

// Outstanding returns the number of native handles created and not yet released.
func (f *FakeRuntime) Outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.descs) + len(f.buffers) + len(f.attrs)
}

// BadReleases returns the number of releases of unknown (or already released) handles.
func (f *FakeRuntime) BadReleases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.badReleases
}

// Calls returns a copy of the recorded InferShape calls.
func (f *FakeRuntime) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// MaxConcurrentCalls returns the maximum number of InferShape calls that ran at the same time.
func (f *FakeRuntime) MaxConcurrentCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// Name implements delegate.Runtime.
func (f *FakeRuntime) Name() string { return "fake" }

func (f *FakeRuntime) lockedNewHandle() uintptr {
	f.nextHandle++
	return f.nextHandle
}

// CreateTensorDesc implements delegate.Runtime.
func (f *FakeRuntime) CreateTensorDesc(dtypeCode int32, dims []int64, formatCode int32) (delegate.TensorDesc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateError != nil {
		return 0, f.CreateError
	}
	h := delegate.TensorDesc(f.lockedNewHandle())
	f.descs[h] = &Desc{DTypeCode: dtypeCode, Dims: slices.Clone(dims), FormatCode: formatCode}
	return h, nil
}

// DestroyTensorDesc implements delegate.Runtime.
func (f *FakeRuntime) DestroyTensorDesc(desc delegate.TensorDesc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, found := f.descs[desc]; !found {
		f.badReleases++
		return
	}
	delete(f.descs, desc)
}

func (f *FakeRuntime) lockedDesc(desc delegate.TensorDesc) *Desc {
	d, found := f.descs[desc]
	if !found {
		return &Desc{DTypeCode: -1, FormatCode: -1}
	}
	return d
}

// TensorDescDType implements delegate.Runtime.
func (f *FakeRuntime) TensorDescDType(desc delegate.TensorDesc) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lockedDesc(desc).DTypeCode
}

// TensorDescDims implements delegate.Runtime.
func (f *FakeRuntime) TensorDescDims(desc delegate.TensorDesc) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, found := f.descs[desc]
	if !found {
		return nil, errors.Errorf("unknown tensor descriptor %d", desc)
	}
	return slices.Clone(d.Dims), nil
}

// TensorDescFormat implements delegate.Runtime.
func (f *FakeRuntime) TensorDescFormat(desc delegate.TensorDesc) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lockedDesc(desc).FormatCode
}

// CreateDataBuffer implements delegate.Runtime.
func (f *FakeRuntime) CreateDataBuffer() (delegate.DataBuffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := delegate.DataBuffer(f.lockedNewHandle())
	f.buffers[h] = true
	return h, nil
}

// DestroyDataBuffer implements delegate.Runtime.
func (f *FakeRuntime) DestroyDataBuffer(buf delegate.DataBuffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.buffers[buf] {
		f.badReleases++
		return errors.Errorf("unknown data buffer %d", buf)
	}
	delete(f.buffers, buf)
	return nil
}

// CreateAttr implements delegate.Runtime.
func (f *FakeRuntime) CreateAttr() (delegate.OpAttr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := delegate.OpAttr(f.lockedNewHandle())
	f.attrs[h] = make(map[string]any)
	return h, nil
}

// DestroyAttr implements delegate.Runtime.
func (f *FakeRuntime) DestroyAttr(attr delegate.OpAttr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, found := f.attrs[attr]; !found {
		f.badReleases++
		return
	}
	delete(f.attrs, attr)
}

func (f *FakeRuntime) setAttr(attr delegate.OpAttr, name string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, found := f.attrs[attr]
	if !found {
		return errors.Errorf("unknown attribute handle %d", attr)
	}
	values[name] = value
	return nil
}

// SetAttrInt implements delegate.Runtime.
func (f *FakeRuntime) SetAttrInt(attr delegate.OpAttr, name string, value int64) error {
	return f.setAttr(attr, name, value)
}

// SetAttrFloat implements delegate.Runtime.
func (f *FakeRuntime) SetAttrFloat(attr delegate.OpAttr, name string, value float32) error {
	return f.setAttr(attr, name, value)
}

// SetAttrBool implements delegate.Runtime.
func (f *FakeRuntime) SetAttrBool(attr delegate.OpAttr, name string, value bool) error {
	return f.setAttr(attr, name, value)
}

// SetAttrString implements delegate.Runtime.
func (f *FakeRuntime) SetAttrString(attr delegate.OpAttr, name string, value string) error {
	return f.setAttr(attr, name, value)
}

// SetAttrListInt implements delegate.Runtime.
func (f *FakeRuntime) SetAttrListInt(attr delegate.OpAttr, name string, values []int64) error {
	return f.setAttr(attr, name, slices.Clone(values))
}

// SetAttrListFloat implements delegate.Runtime.
func (f *FakeRuntime) SetAttrListFloat(attr delegate.OpAttr, name string, values []float32) error {
	return f.setAttr(attr, name, slices.Clone(values))
}

// SetAttrDType implements delegate.Runtime.
func (f *FakeRuntime) SetAttrDType(attr delegate.OpAttr, name string, dtypeCode int32) error {
	return f.setAttr(attr, name, dtypeCode)
}

// InferShape implements delegate.Runtime.
func (f *FakeRuntime) InferShape(opType string, inputs []delegate.TensorDesc, inputBuffers []delegate.DataBuffer,
	outputs []delegate.TensorDesc, attr delegate.OpAttr) int32 {
	f.mu.Lock()
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	delay := f.Delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--

	call := Call{OpType: opType, NumOutputs: len(outputs), Attrs: make(map[string]any)}
	for _, h := range inputs {
		d, found := f.descs[h]
		if !found {
			return StatusInvalidHandle
		}
		call.Inputs = append(call.Inputs, Desc{DTypeCode: d.DTypeCode, Dims: slices.Clone(d.Dims), FormatCode: d.FormatCode})
	}
	for _, h := range inputBuffers {
		if !f.buffers[h] {
			return StatusInvalidHandle
		}
	}
	attrValues, found := f.attrs[attr]
	if !found {
		return StatusInvalidHandle
	}
	for name, value := range attrValues {
		call.Attrs[name] = value
	}
	f.calls = append(f.calls, call)

	rule, found := f.rules[opType]
	if !found {
		return StatusUnknownOp
	}
	results, status := rule(call.Inputs, call.Attrs, len(outputs))
	if status != 0 {
		return status
	}
	for ii, h := range outputs {
		d, found := f.descs[h]
		if !found {
			return StatusInvalidHandle
		}
		if ii < len(results) {
			*d = Desc{DTypeCode: results[ii].DTypeCode, Dims: slices.Clone(results[ii].Dims), FormatCode: results[ii].FormatCode}
		}
	}
	return 0
}
