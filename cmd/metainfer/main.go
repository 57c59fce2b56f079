// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// metainfer propagates tensor descriptors (shape, dtype and layout) through a graph of operators
// described in YAML, and reports the inferred outputs of each node.
//
// Operators without a closed-form rule are delegated to a vendor runtime, configured with -backend
// (or $METAINFER_BACKEND), e.g.:
//
//	metainfer -backend=acl:/usr/local/Ascend/ascend-toolkit/latest/lib64/libascendcl.so model.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/metainfer/backends"
	_ "github.com/gomlx/metainfer/backends/acl"
	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/inference"
	"github.com/gomlx/metainfer/pkg/core/opgraph"
	"github.com/gomlx/metainfer/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagGraph = flag.String("graph", "", "YAML file with the graph of operators. "+
		"It can also be given as the only positional argument.")
	flagParallelism = flag.Int("parallelism", 0,
		"Maximum number of nodes inferred concurrently: 0 infers one node at a time, -1 means no limit.")
	flagBackend = flag.String("backend", "",
		`Vendor runtime for operators without a closed-form rule, formatted as "<name>:<config>", `+
			`e.g. "acl:/path/to/libascendcl.so". If empty, $METAINFER_BACKEND is used, and if that is not set `+
			`such operators fail.`)
	flagJSON = flag.Bool("json", false, "Output the inferred descriptors as JSON instead of a table.")
	flagOps  = flag.Bool("ops", false, "List the operators with a closed-form rule and exit.")

	flagNodes = xslices.Flag("nodes", nil, "Comma-separated list of the nodes to report. Default reports all nodes.",
		func(name string) (string, error) { return name, nil })
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	engine, finalize, err := newEngine()
	if err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
	if *flagOps {
		listOps(engine)
		finalize()
		return
	}

	graphPath := *flagGraph
	args := flag.Args()
	if graphPath == "" && len(args) == 1 {
		graphPath = args[0]
	} else if graphPath == "" || len(args) > 0 {
		klog.Errorf("Give exactly one graph file, with -graph or as positional argument. See 'metainfer -help'.")
		os.Exit(1)
	}
	g, err := opgraph.LoadYAMLFile(graphPath)
	if err != nil {
		finalize()
		klog.Errorf("%+v", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	results, propagateErr := opgraph.Propagate(ctx, g, engine, opgraph.WithParallelism(*flagParallelism))
	cancel()
	finalize()

	if *flagJSON {
		must.M(reportJSON(g, results))
	} else {
		reportTable(g, engine, results)
	}
	if propagateErr != nil {
		klog.Errorf("%+v", propagateErr)
		os.Exit(1)
	}
}

// newEngine creates the inference engine, with the backend configured by -backend or $METAINFER_BACKEND.
// The returned finalize releases the backend.
func newEngine() (engine *inference.Engine, finalize func(), err error) {
	finalize = func() {}
	config := *flagBackend
	if config == "" {
		config = os.Getenv(backends.ConfigEnv)
	}
	var options []inference.Option
	if config != "" {
		backend, err := backends.NewWithConfig(config)
		if err != nil {
			return nil, nil, err
		}
		klog.V(1).Infof("using backend %s", backend.Description())
		finalize = backend.Finalize
		options = append(options, inference.WithRuntime(backend))
	}
	engine, err = inference.New(options...)
	if err != nil {
		finalize()
		return nil, nil, err
	}
	return engine, finalize, nil
}

func listOps(engine *inference.Engine) {
	fmt.Println(titleStyle.Render("Operators"))
	table := newDescriptorTable([]string{"Operator", "Category"}, lipgloss.Right, lipgloss.Left)
	for _, op := range engine.Ops() {
		category := "structural"
		if c, found := engine.Category(op); found {
			category = c.String()
		}
		table.Row(rowInferred, op, category)
	}
	fmt.Println(table.Table.Render())
}

// reportedNodes returns the names of the nodes to report, in graph order.
func reportedNodes(g *opgraph.Graph) []string {
	names := g.Names()
	if len(*flagNodes) == 0 {
		return names
	}
	for _, name := range *flagNodes {
		if _, found := g.Node(name); !found {
			klog.Warningf("-nodes: unknown node %q", name)
		}
	}
	return slices.DeleteFunc(names, func(name string) bool { return !slices.Contains(*flagNodes, name) })
}

func stridesString(desc descriptors.Descriptor) string {
	if !desc.HasStrides() {
		return "-"
	}
	return fmt.Sprintf("%v+%d", desc.Strides, desc.StorageOffset)
}

// nodeRowState returns the state of the first row of a node.
func nodeRowState(engine *inference.Engine, op string, inferred bool) rowState {
	switch {
	case !inferred:
		return rowNotInferred
	case engine.HasRule(op):
		return rowInferred
	default:
		return rowDelegated
	}
}

func reportTable(g *opgraph.Graph, engine *inference.Engine, results opgraph.Results) {
	fmt.Println(titleStyle.Render("Inferred Descriptors"))
	table := newDescriptorTable([]string{"Node", "Op", "#", "DType", "Shape", "Layout", "Strides", "Bytes"},
		lipgloss.Right, lipgloss.Left, lipgloss.Right, lipgloss.Left)
	var totalMemory uintptr
	for _, name := range reportedNodes(g) {
		node, _ := g.Node(name)
		outputs, found := results[name]
		state := nodeRowState(engine, node.Op, found)
		if !found {
			table.Row(state, name, node.Op, "-", "not inferred", "", "", "", "")
			continue
		}
		for ii, output := range outputs {
			totalMemory += output.Memory()
			if ii > 0 {
				state = rowMoreOutputs
			}
			table.Row(state, name, node.Op, fmt.Sprint(ii), output.DType.String(),
				fmt.Sprintf("%v", output.Dimensions), output.Layout.String(), stridesString(output),
				humanize.Bytes(uint64(output.Memory())))
		}
	}
	fmt.Println(table.Table.Render())
	fmt.Printf("%s of %s nodes inferred (%s delegated), %s in outputs.\n",
		humanize.Comma(int64(len(results))), humanize.Comma(int64(g.Len())),
		humanize.Comma(int64(table.Count(rowDelegated))), humanize.Bytes(uint64(totalMemory)))
}

type jsonDescriptor struct {
	DType   string `json:"dtype"`
	Shape   []int  `json:"shape"`
	Layout  string `json:"layout"`
	Strides []int  `json:"strides,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

type jsonNode struct {
	Name     string           `json:"name"`
	Op       string           `json:"op"`
	Inferred bool             `json:"inferred"`
	Outputs  []jsonDescriptor `json:"outputs,omitempty"`
}

func reportJSON(g *opgraph.Graph, results opgraph.Results) error {
	nodes := xslices.Map(reportedNodes(g), func(name string) jsonNode {
		node, _ := g.Node(name)
		outputs, found := results[name]
		return jsonNode{
			Name:     name,
			Op:       node.Op,
			Inferred: found,
			Outputs: xslices.Map(outputs, func(desc descriptors.Descriptor) jsonDescriptor {
				return jsonDescriptor{
					DType:   strings.ToLower(desc.DType.String()),
					Shape:   desc.Dimensions,
					Layout:  desc.Layout.String(),
					Strides: desc.Strides,
					Offset:  desc.StorageOffset,
				}
			}),
		}
	})
	encoded, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding results as JSON")
	}
	fmt.Println(string(encoded))
	return nil
}
