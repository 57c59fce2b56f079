// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package inference

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomlx/metainfer/pkg/core/delegate"
	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/gomlx/metainfer/pkg/core/operands"
	"github.com/gomlx/metainfer/pkg/support/nested"
	"github.com/pkg/errors"
)

// Node is one operator invocation whose output descriptors are to be inferred.
type Node struct {
	// Op is the name of the operator, e.g. "Add" or "ReduceSumD".
	Op string

	// Inputs of the operator, in order.
	Inputs []operands.Operand

	// Attributes of the operator, e.g. "axes", "keepdim", or the "dtype" and "layout" overrides.
	Attributes Attributes

	// NumOutputs is the number of outputs expected from the operator. 0 means 1.
	NumOutputs int
}

// String implements fmt.Stringer.
func (n Node) String() string {
	var sb strings.Builder
	sb.WriteString(n.Op)
	sb.WriteString("(")
	for ii, input := range n.Inputs {
		if ii > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(input.String())
	}
	sb.WriteString(")")
	if len(n.Attributes) > 0 {
		_, _ = fmt.Fprintf(&sb, " %v", map[string]any(n.Attributes))
	}
	return sb.String()
}

// numOutputs returns NumOutputs, defaulting to 1.
func (n Node) numOutputs() int {
	if n.NumOutputs == 0 {
		return 1
	}
	return n.NumOutputs
}

// Attributes of an operator node, by name.
//
// Values often arrive wrapped in nested single-element containers (e.g. `axes: [[1]]`): the getters
// flatten them first (see nested.Flatten).
type Attributes map[string]any

// Has returns whether the attribute is set to a non-nil value.
func (a Attributes) Has(name string) bool {
	value, found := a[name]
	return found && value != nil
}

// Int returns the attribute as an int, or defaultValue if it is not set.
func (a Attributes) Int(name string, defaultValue int) (int, error) {
	if !a.Has(name) {
		return defaultValue, nil
	}
	value := a[name]
	v, ok := toInt(nested.Flatten(value))
	if !ok {
		return 0, errors.Errorf("attribute %q must be an integer, got %v (%T)", name, value, value)
	}
	return v, nil
}

// Ints returns the attribute as a list of ints. A single integer is returned as a list of one element.
// It returns nil if the attribute is not set.
func (a Attributes) Ints(name string) ([]int, error) {
	if !a.Has(name) {
		return nil, nil
	}
	values, err := intsOf(a[name])
	if err != nil {
		return nil, errors.WithMessagef(err, "attribute %q", name)
	}
	return values, nil
}

// Bool returns the attribute as a bool, or defaultValue if it is not set.
func (a Attributes) Bool(name string, defaultValue bool) (bool, error) {
	if !a.Has(name) {
		return defaultValue, nil
	}
	value := a[name]
	v, ok := nested.Flatten(value).(bool)
	if !ok {
		return false, errors.Errorf("attribute %q must be a bool, got %v (%T)", name, value, value)
	}
	return v, nil
}

// DType returns the attribute as a dtype, or InvalidDType if it is not set.
//
// The value can be a dtypes.DType, a dtype name (see dtypes.FromName) or a vendor dtype name
// (e.g. "FLOAT", see delegate.DTypeFromVendorName).
func (a Attributes) DType(name string) (dtypes.DType, error) {
	if !a.Has(name) {
		return dtypes.InvalidDType, nil
	}
	switch v := nested.Flatten(a[name]).(type) {
	case dtypes.DType:
		if !v.IsSupported() {
			return dtypes.InvalidDType, errors.Errorf("attribute %q has unsupported dtype %s", name, v)
		}
		return v, nil
	case string:
		if dtype, err := dtypes.FromName(v); err == nil && dtype.IsSupported() {
			return dtype, nil
		}
		dtype, err := delegate.DTypeFromVendorName(v)
		if err != nil {
			return dtypes.InvalidDType, errors.WithMessagef(err, "attribute %q", name)
		}
		return dtype, nil
	}
	return dtypes.InvalidDType, errors.Errorf("attribute %q must be a dtype or a dtype name, got %v (%T)", name, a[name], a[name])
}

// Layout returns the attribute as a layout, or LayoutUnspecified if it is not set.
// The value can be a descriptors.Layout or a layout name (see descriptors.ParseLayout).
func (a Attributes) Layout(name string) (descriptors.Layout, error) {
	if !a.Has(name) {
		return descriptors.LayoutUnspecified, nil
	}
	switch v := nested.Flatten(a[name]).(type) {
	case descriptors.Layout:
		return v, nil
	case string:
		layout, err := descriptors.ParseLayout(v)
		if err != nil {
			return descriptors.LayoutUnspecified, errors.WithMessagef(err, "attribute %q", name)
		}
		return layout, nil
	}
	return descriptors.LayoutUnspecified, errors.Errorf("attribute %q must be a layout name, got %v (%T)", name, a[name], a[name])
}

// intsOf converts a (possibly nested) integer or list of integers to []int.
func intsOf(value any) ([]int, error) {
	switch v := nested.Flatten(value).(type) {
	case []any:
		values := make([]int, len(v))
		for ii, elem := range v {
			var ok bool
			values[ii], ok = toInt(elem)
			if !ok {
				return nil, errors.Errorf("element #%d of %v is not an integer", ii, value)
			}
		}
		return values, nil
	default:
		i, ok := toInt(v)
		if !ok {
			return nil, errors.Errorf("%v (%T) is not an integer or a list of integers", value, value)
		}
		return []int{i}, nil
	}
}

// toInt converts Go integers, and floats with integral values, to int.
func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		if v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case uint:
		if v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case float32:
		if float64(v) != math.Trunc(float64(v)) {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}
