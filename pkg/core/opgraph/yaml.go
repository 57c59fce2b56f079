// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opgraph

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/gomlx/metainfer/pkg/core/inference"
	"github.com/gomlx/metainfer/pkg/core/operands"
	"github.com/gomlx/metainfer/pkg/core/shapes"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// yamlGraph is the YAML description of a graph:
//
//	nodes:
//	  - name: sum
//	    op: ReduceSumD
//	    inputs:
//	      - tensor: {dtype: float32, shape: [2, 3], layout: channels_last, strides: [3, 1], offset: 0}
//	      - ref: other_node:1     # Output #1 of other_node. The output index defaults to 0.
//	      - scalar: 1.5
//	      - const: [[1, 2], int32, [2]]   # (values, dtype, shape?, layout?)
//	      - unranked: float32
//	    attributes: {axes: [1], keepdim: true}
//	    outputs: 1
type yamlGraph struct {
	Nodes []yamlNode `yaml:"nodes"`
}

type yamlNode struct {
	Name       string         `yaml:"name"`
	Op         string         `yaml:"op"`
	Inputs     []yamlInput    `yaml:"inputs"`
	Attributes map[string]any `yaml:"attributes"`
	Outputs    int            `yaml:"outputs"`
}

type yamlInput struct {
	Tensor   *yamlTensor `yaml:"tensor"`
	Ref      string      `yaml:"ref"`
	Scalar   any         `yaml:"scalar"`
	Const    []any       `yaml:"const"`
	Unranked string      `yaml:"unranked"`
}

type yamlTensor struct {
	DType   string `yaml:"dtype"`
	Shape   []int  `yaml:"shape"`
	Layout  string `yaml:"layout"`
	Strides []int  `yaml:"strides"`
	Offset  int    `yaml:"offset"`
}

// LoadYAMLFile loads a graph from a YAML file, see LoadYAML.
func LoadYAMLFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening graph file")
	}
	defer func() { _ = f.Close() }()
	g, err := LoadYAML(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading graph from %q", path)
	}
	return g, nil
}

// LoadYAML loads a graph from its YAML description. Each input of a node is one of:
//
//   - tensor: a live tensor handle with "dtype", "shape" and, optionally, "layout" (contiguous if
//     not given), "strides" and "offset".
//   - ref: the name of another node, optionally followed by ":<output index>".
//   - scalar: a bare numeric literal.
//   - const: a constant in its wire form (values, dtype, shape?, layout?).
//   - unranked: a tensor handle with only a dtype.
//
// Nodes without a name are given a unique one.
func LoadYAML(r io.Reader) (*Graph, error) {
	var doc yamlGraph
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "parsing YAML graph")
	}
	g := New()
	for ii, yNode := range doc.Nodes {
		node := Node{
			Name:       yNode.Name,
			Op:         yNode.Op,
			Attributes: inference.Attributes(yNode.Attributes),
			NumOutputs: yNode.Outputs,
			Inputs:     make([]Input, len(yNode.Inputs)),
		}
		for inputIdx, yInput := range yNode.Inputs {
			var err error
			node.Inputs[inputIdx], err = yInput.toInput()
			if err != nil {
				return nil, errors.WithMessagef(err, "node #%d (%q) input #%d", ii, yNode.Name, inputIdx)
			}
		}
		if _, err := g.Add(node); err != nil {
			return nil, errors.WithMessagef(err, "node #%d", ii)
		}
	}
	return g, nil
}

func (y yamlInput) toInput() (Input, error) {
	numSet := 0
	for _, set := range []bool{y.Tensor != nil, y.Ref != "", y.Scalar != nil, y.Const != nil, y.Unranked != ""} {
		if set {
			numSet++
		}
	}
	if numSet != 1 {
		return Input{}, errors.New("input must have exactly one of tensor, ref, scalar, const or unranked")
	}

	switch {
	case y.Tensor != nil:
		desc, err := y.Tensor.toDescriptor()
		if err != nil {
			return Input{}, err
		}
		return Value(operands.NewTensor(desc)), nil

	case y.Ref != "":
		name, outputStr, hasOutput := strings.Cut(y.Ref, ":")
		output := 0
		if hasOutput {
			var err error
			output, err = strconv.Atoi(outputStr)
			if err != nil {
				return Input{}, errors.Wrapf(err, "invalid output index in reference %q", y.Ref)
			}
		}
		return Ref(name, output), nil

	case y.Scalar != nil:
		scalar, err := operands.NewScalar(y.Scalar)
		if err != nil {
			return Input{}, err
		}
		return Value(scalar), nil

	case y.Const != nil:
		c, err := operands.ConstFromTuple(y.Const)
		if err != nil {
			return Input{}, err
		}
		return Value(c), nil
	}

	dtype, err := dtypes.FromName(y.Unranked)
	if err != nil {
		return Input{}, err
	}
	return Value(operands.NewUnrankedTensor(dtype)), nil
}

func (y *yamlTensor) toDescriptor() (descriptors.Descriptor, error) {
	dtype, err := dtypes.FromName(y.DType)
	if err != nil {
		return descriptors.Descriptor{}, err
	}
	for _, dim := range y.Shape {
		if dim < 0 {
			return descriptors.Descriptor{}, errors.Errorf("invalid tensor shape %v", y.Shape)
		}
	}
	layout := descriptors.LayoutContiguous
	if y.Layout != "" {
		layout, err = descriptors.ParseLayout(y.Layout)
		if err != nil {
			return descriptors.Descriptor{}, err
		}
	}
	desc := descriptors.New(shapes.Make(dtype, y.Shape...), layout)
	if y.Strides != nil || y.Offset != 0 {
		strides := y.Strides
		if strides == nil {
			strides = desc.EffectiveStrides()
		}
		return desc.WithStrides(strides, y.Offset)
	}
	return desc, nil
}
