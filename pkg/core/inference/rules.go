// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package inference

import (
	"github.com/gomlx/metainfer/pkg/core/delegate"
	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/gomlx/metainfer/pkg/core/operands"
	"github.com/gomlx/metainfer/pkg/core/shapeinference"
	"github.com/gomlx/metainfer/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Names of the attributes read by the built-in rules.
const (
	// AttrDType overrides the output dtype of element-wise operators. Required by Cast.
	AttrDType = "dtype"

	// AttrLayout overrides the output layout of element-wise operators.
	AttrLayout = "layout"

	// AttrShape overrides the output shape of unary operators. It is the target shape of Reshape.
	AttrShape = "shape"

	AttrAxes    = "axes"
	AttrAxis    = "axis"
	AttrKeepDim = "keepdim"
	AttrPerm    = "perm"
	AttrOffsets = "offsets"
	AttrSize    = "size"
	AttrIndex   = "index"
)

// builtinCategories lists the operators of each built-in category.
var builtinCategories = map[string]Category{
	"Add":      CategoryBinary,
	"AddV2":    CategoryBinary,
	"Sub":      CategoryBinary,
	"Mul":      CategoryBinary,
	"Div":      CategoryBinary,
	"RealDiv":  CategoryBinary,
	"DivNoNan": CategoryBinary,
	"FloorDiv": CategoryBinary,
	"Maximum":  CategoryBinary,
	"Minimum":  CategoryBinary,
	"Pow":      CategoryBinary,

	"Less":         CategoryComparison,
	"LessEqual":    CategoryComparison,
	"Greater":      CategoryComparison,
	"GreaterEqual": CategoryComparison,
	"Equal":        CategoryComparison,
	"NotEqual":     CategoryComparison,
	"LogicalAnd":   CategoryComparison,
	"LogicalOr":    CategoryComparison,

	"Abs":        CategoryUnary,
	"Exp":        CategoryUnary,
	"Log":        CategoryUnary,
	"Sqrt":       CategoryUnary,
	"Rsqrt":      CategoryUnary,
	"Neg":        CategoryUnary,
	"Relu":       CategoryUnary,
	"Sigmoid":    CategoryUnary,
	"Tanh":       CategoryUnary,
	"Reciprocal": CategoryUnary,
	"Identity":   CategoryUnary,
	"LogicalNot": CategoryUnary,
	"ZerosLike":  CategoryUnary,
	"OnesLike":   CategoryUnary,

	"ReduceSum":   CategoryReduction,
	"ReduceSumD":  CategoryReduction,
	"ReduceMean":  CategoryReduction,
	"ReduceMeanD": CategoryReduction,
	"ReduceMax":   CategoryReduction,
	"ReduceMaxD":  CategoryReduction,
	"ReduceMin":   CategoryReduction,
	"ReduceProd":  CategoryReduction,
}

// builtinRules are the structural operators, with rules of their own.
var builtinRules = map[string]Rule{
	"Cast":      castRule,
	"Slice":     sliceRule,
	"Select":    selectRule,
	"Transpose": transposeRule(shapeinference.OpKindTranspose),
	"Permute":   transposeRule(shapeinference.OpKindPermute),
	"SwapAxes":  swapAxesRule,
	"Reshape":   reshapeRule,
	"View":      reshapeRule,
	"Concat":    concatRule,
	"ConcatD":   concatRule,
	"Where":     whereRule,
	"ArgMax":    argMinMaxRule,
	"ArgMin":    argMinMaxRule,
}

func single(output descriptors.Descriptor) []descriptors.Descriptor {
	return []descriptors.Descriptor{output}
}

// normalizeInputs checks the number of inputs is in [minInputs, maxInputs] (maxInputs < 0 means no
// maximum) and normalizes them.
func normalizeInputs(node Node, minInputs, maxInputs int) ([]operands.Normalized, error) {
	numInputs := len(node.Inputs)
	if numInputs < minInputs || (maxInputs >= 0 && numInputs > maxInputs) {
		if minInputs == maxInputs {
			return nil, errors.Errorf("%s takes %d inputs, %d given", node.Op, minInputs, numInputs)
		}
		return nil, errors.Errorf("%s takes between %d and %d inputs, %d given", node.Op, minInputs, maxInputs, numInputs)
	}
	return operands.NormalizeAll(node.Inputs)
}

// constInts reads the values of a constant (or scalar) operand as integers.
func constInts(operand operands.Operand) ([]int, error) {
	switch op := operand.(type) {
	case operands.Const:
		return intsOf(op.Values)
	case operands.Scalar:
		if v, ok := toInt(op.Value); ok {
			return []int{v}, nil
		}
	}
	return nil, errors.Errorf("expected a constant with integer values, got %s", operand)
}

// intsFromAttrOrInput reads the integers from the attribute name, or if not set, from the constant
// input #inputIdx, if present. It returns nil if neither is given.
func intsFromAttrOrInput(node Node, name string, inputIdx int) ([]int, error) {
	values, err := node.Attributes.Ints(name)
	if err != nil || values != nil {
		return values, err
	}
	if inputIdx < len(node.Inputs) {
		values, err = constInts(node.Inputs[inputIdx])
		if err != nil {
			return nil, errors.WithMessagef(err, "input #%d (%s)", inputIdx, name)
		}
	}
	return values, nil
}

// firstTensorLayout returns the propagated layout of the first tensor input, or LayoutContiguous if
// there are no tensors.
func firstTensorLayout(inputs []operands.Normalized, kind shapeinference.OpKind) descriptors.Layout {
	for _, input := range inputs {
		if input.IsTensor() {
			return shapeinference.PropagateLayout(input.Descriptor, kind)
		}
	}
	return descriptors.LayoutContiguous
}

// binaryRule broadcasts the shapes and promotes the dtypes of two operands. Comparisons output Bool.
//
// The attributes "dtype" and "layout" override the output dtype and layout. Otherwise, the layout is the
// one of the first operand if it is a tensor, or contiguous.
func binaryRule(comparison bool) Rule {
	return func(node Node) ([]descriptors.Descriptor, error) {
		inputs, err := normalizeInputs(node, 2, 2)
		if err != nil {
			return nil, err
		}
		x1, x2 := inputs[0], inputs[1]
		op := shapeinference.BinaryOp
		if comparison {
			op = shapeinference.ComparisonOp
		}
		shape, err := op(x1.Shape, x2.Shape)
		if err != nil {
			return nil, err
		}
		if !comparison && x1.IsScalarLiteral() && x2.IsScalarLiteral() {
			// Two literals: only their categories are known.
			shape.DType, err = shapeinference.PromoteKinds(x1.Kind, x2.Kind)
			if err != nil {
				return nil, err
			}
		}
		dtype, err := node.Attributes.DType(AttrDType)
		if err != nil {
			return nil, err
		}
		if dtype != dtypes.InvalidDType {
			shape.DType = dtype
		}
		layout, err := node.Attributes.Layout(AttrLayout)
		if err != nil {
			return nil, err
		}
		if layout == descriptors.LayoutUnspecified {
			layout = descriptors.LayoutContiguous
			if x1.IsTensor() {
				layout = shapeinference.PropagateLayout(x1.Descriptor, shapeinference.OpKindElementwise)
			}
		}
		return single(descriptors.New(shape, layout)), nil
	}
}

// unaryRule passes shape, dtype and layout of the operand through, unless overridden by the
// attributes "shape", "dtype" or "layout". An empty "shape" is not an override.
func unaryRule(node Node) ([]descriptors.Descriptor, error) {
	inputs, err := normalizeInputs(node, 1, 1)
	if err != nil {
		return nil, err
	}
	x := inputs[0]
	shape := x.Shape.Clone()
	layout := shapeinference.PropagateLayout(x.Descriptor, shapeinference.OpKindElementwise)

	dims, err := node.Attributes.Ints(AttrShape)
	if err != nil {
		return nil, err
	}
	if len(dims) > 0 {
		for _, dim := range dims {
			if dim < 0 {
				return nil, errors.Errorf("invalid %q override %v", AttrShape, dims)
			}
		}
		shape.Dimensions = dims
	}
	dtype, err := node.Attributes.DType(AttrDType)
	if err != nil {
		return nil, err
	}
	if dtype != dtypes.InvalidDType {
		shape.DType = dtype
	}
	override, err := node.Attributes.Layout(AttrLayout)
	if err != nil {
		return nil, err
	}
	if override != descriptors.LayoutUnspecified {
		layout = override
	}
	return single(descriptors.New(shape, layout)), nil
}

// castRule is a unary rule that requires the "dtype" attribute.
func castRule(node Node) ([]descriptors.Descriptor, error) {
	if !node.Attributes.Has(AttrDType) {
		return nil, errors.Errorf("%s requires the attribute %q", node.Op, AttrDType)
	}
	return unaryRule(node)
}

// reductionRule reduces the "axes" of the operand (given as attribute or as a constant second input),
// keeping the reduced axes with size 1 if "keepdim" is set. No axes means reducing all of them.
func reductionRule(node Node) ([]descriptors.Descriptor, error) {
	inputs, err := normalizeInputs(node, 1, 2)
	if err != nil {
		return nil, err
	}
	x := inputs[0]
	axes, err := intsFromAttrOrInput(node, AttrAxes, 1)
	if err != nil {
		return nil, err
	}
	keepDim, err := node.Attributes.Bool(AttrKeepDim, false)
	if err != nil {
		return nil, err
	}
	shape, err := shapeinference.ReduceOp(x.Shape, axes, keepDim)
	if err != nil {
		return nil, err
	}
	return single(descriptors.New(shape, shapeinference.PropagateLayout(x.Descriptor, shapeinference.OpKindReduction))), nil
}

// sliceRule takes a strided view of the operand, starting at "offsets" (defaults to 0) with dimensions
// "size" (-1 means up to the end of the axis). Both can also be given as constant inputs #1 and #2.
func sliceRule(node Node) ([]descriptors.Descriptor, error) {
	inputs, err := normalizeInputs(node, 1, 3)
	if err != nil {
		return nil, err
	}
	x := inputs[0]
	rank := x.Rank()
	offsets, err := intsFromAttrOrInput(node, AttrOffsets, 1)
	if err != nil {
		return nil, err
	}
	if offsets == nil {
		offsets = make([]int, rank)
	}
	sizes, err := intsFromAttrOrInput(node, AttrSize, 2)
	if err != nil {
		return nil, err
	}
	if sizes == nil {
		return nil, errors.Errorf("%s requires %q", node.Op, AttrSize)
	}
	if len(offsets) != rank || len(sizes) != rank {
		return nil, errors.Errorf("%s of %s requires %d offsets and sizes, got offsets=%v and size=%v",
			node.Op, x.Shape, rank, offsets, sizes)
	}
	dims := make([]int, rank)
	for axis, dim := range x.Dimensions {
		offset, size := offsets[axis], sizes[axis]
		if offset < 0 {
			offset += dim
		}
		if size == -1 {
			size = dim - offset
		}
		if offset < 0 || size < 0 || offset+size > dim {
			return nil, errors.Errorf("%s of %s: offset %d and size %d out of range for axis %d",
				node.Op, x.Shape, offsets[axis], sizes[axis], axis)
		}
		offsets[axis], dims[axis] = offset, size
	}
	strides, storageOffset, err := shapeinference.StrideOffset(dims, offsets, x.Descriptor)
	if err != nil {
		return nil, err
	}
	output := descriptors.New(shapes.Make(x.DType, dims...), shapeinference.PropagateLayout(x.Descriptor, shapeinference.OpKindView))
	output, err = output.WithStrides(strides, x.StorageOffset+storageOffset)
	if err != nil {
		return nil, err
	}
	return single(output), nil
}

// selectRule takes the view of element "index" of the "axis" (default 0) of the operand, dropping the axis.
func selectRule(node Node) ([]descriptors.Descriptor, error) {
	inputs, err := normalizeInputs(node, 1, 1)
	if err != nil {
		return nil, err
	}
	x := inputs[0]
	if !node.Attributes.Has(AttrIndex) {
		return nil, errors.Errorf("%s requires %q", node.Op, AttrIndex)
	}
	index, err := node.Attributes.Int(AttrIndex, 0)
	if err != nil {
		return nil, err
	}
	axis, err := node.Attributes.Int(AttrAxis, 0)
	if err != nil {
		return nil, err
	}
	dims, strides, storageOffset, err := shapeinference.SelectStrideOffset(x.Descriptor, axis, index)
	if err != nil {
		return nil, err
	}
	output := descriptors.New(shapes.Make(x.DType, dims...), shapeinference.PropagateLayout(x.Descriptor, shapeinference.OpKindView))
	output, err = output.WithStrides(strides, x.StorageOffset+storageOffset)
	if err != nil {
		return nil, err
	}
	return single(output), nil
}

// transposeRule permutes the axes of the operand with "perm" (attribute or constant input #1).
// No permutation reverses the axes.
func transposeRule(kind shapeinference.OpKind) Rule {
	return func(node Node) ([]descriptors.Descriptor, error) {
		inputs, err := normalizeInputs(node, 1, 2)
		if err != nil {
			return nil, err
		}
		x := inputs[0]
		perm, err := intsFromAttrOrInput(node, AttrPerm, 1)
		if err != nil {
			return nil, err
		}
		shape, err := shapeinference.TransposeOp(x.Shape, perm)
		if err != nil {
			return nil, err
		}
		return single(descriptors.New(shape, shapeinference.PropagateLayout(x.Descriptor, kind))), nil
	}
}

// swapAxesRule swaps the two "axes" (attribute or constant input #1) of the operand.
func swapAxesRule(node Node) ([]descriptors.Descriptor, error) {
	inputs, err := normalizeInputs(node, 1, 2)
	if err != nil {
		return nil, err
	}
	x := inputs[0]
	axes, err := intsFromAttrOrInput(node, AttrAxes, 1)
	if err != nil {
		return nil, err
	}
	if len(axes) != 2 {
		return nil, errors.Errorf("%s requires exactly 2 %q, got %v", node.Op, AttrAxes, axes)
	}
	shape, err := shapeinference.SwapAxesOp(x.Shape, axes[0], axes[1])
	if err != nil {
		return nil, err
	}
	return single(descriptors.New(shape, shapeinference.PropagateLayout(x.Descriptor, shapeinference.OpKindTranspose))), nil
}

// reshapeRule reshapes the operand to "shape" (attribute or constant input #1), with at most one -1.
func reshapeRule(node Node) ([]descriptors.Descriptor, error) {
	inputs, err := normalizeInputs(node, 1, 2)
	if err != nil {
		return nil, err
	}
	x := inputs[0]
	dims, err := intsFromAttrOrInput(node, AttrShape, 1)
	if err != nil {
		return nil, err
	}
	if dims == nil {
		return nil, errors.Errorf("%s requires %q", node.Op, AttrShape)
	}
	shape, err := shapeinference.ReshapeOp(x.Shape, dims)
	if err != nil {
		return nil, err
	}
	return single(descriptors.New(shape, shapeinference.PropagateLayout(x.Descriptor, shapeinference.OpKindView))), nil
}

// concatRule concatenates all inputs on "axis" (default 0), promoting their dtypes.
func concatRule(node Node) ([]descriptors.Descriptor, error) {
	inputs, err := normalizeInputs(node, 1, -1)
	if err != nil {
		return nil, err
	}
	axis, err := node.Attributes.Int(AttrAxis, 0)
	if err != nil {
		return nil, err
	}
	inputShapes := make([]shapes.Shape, len(inputs))
	for ii, input := range inputs {
		inputShapes[ii] = input.Shape
	}
	shape, err := shapeinference.ConcatenateOp(inputShapes, axis)
	if err != nil {
		return nil, err
	}
	return single(descriptors.New(shape, firstTensorLayout(inputs, shapeinference.OpKindOther))), nil
}

// whereRule selects from inputs #1 or #2 depending on the Bool condition input #0.
func whereRule(node Node) ([]descriptors.Descriptor, error) {
	inputs, err := normalizeInputs(node, 3, 3)
	if err != nil {
		return nil, err
	}
	shape, err := shapeinference.WhereOp(inputs[0].Shape, inputs[1].Shape, inputs[2].Shape)
	if err != nil {
		return nil, err
	}
	return single(descriptors.New(shape, firstTensorLayout(inputs[1:], shapeinference.OpKindElementwise))), nil
}

// argMinMaxRule reduces the "axis" of the operand (all axes if not set) to the index of its min/max
// element. The output dtype is Int64, unless overridden by "dtype".
func argMinMaxRule(node Node) ([]descriptors.Descriptor, error) {
	inputs, err := normalizeInputs(node, 1, 1)
	if err != nil {
		return nil, err
	}
	x := inputs[0]
	var axis *int
	if node.Attributes.Has(AttrAxis) {
		value, err := node.Attributes.Int(AttrAxis, 0)
		if err != nil {
			return nil, err
		}
		axis = &value
	}
	keepDim, err := node.Attributes.Bool(AttrKeepDim, false)
	if err != nil {
		return nil, err
	}
	dtype, err := node.Attributes.DType(AttrDType)
	if err != nil {
		return nil, err
	}
	if dtype == dtypes.InvalidDType {
		dtype = dtypes.Int64
	}
	shape, err := shapeinference.ArgMinMaxOp(x.Shape, axis, keepDim, dtype)
	if err != nil {
		return nil, err
	}
	return single(descriptors.New(shape, shapeinference.PropagateLayout(x.Descriptor, shapeinference.OpKindReduction))), nil
}

// delegateRule infers the node with the native shape inference of the delegate runtime.
func delegateRule(d *delegate.Delegate) Rule {
	return func(node Node) ([]descriptors.Descriptor, error) {
		inputs, err := operands.NormalizeAll(node.Inputs)
		if err != nil {
			return nil, err
		}
		descs := make([]descriptors.Descriptor, len(inputs))
		for ii, input := range inputs {
			descs[ii] = input.Descriptor
		}
		return d.Infer(node.Op, descs, node.numOutputs(), node.Attributes)
	}
}
