// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package inference implements the Engine, which infers the output descriptors (shape, dtype and
// layout) of operator nodes without executing them.
//
// Each operator is dispatched to a Rule: the closed-form rules of the built-in categories
// (element-wise binary, comparison, unary, reduction) and structural operations (views, transpose,
// reshape, concatenation, where, argmin/argmax) are composed from packages operands and shapeinference.
// Operators without a closed-form rule go to the default rule, which delegates to a vendor runtime
// if one was configured with WithDelegate.
//
// An Engine is immutable after New and safe for concurrent use.
package inference

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/metainfer/pkg/core/delegate"
	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Rule infers the output descriptors of a node.
type Rule func(node Node) ([]descriptors.Descriptor, error)

// Category of operators sharing the same inference rule.
type Category int

const (
	// CategoryDelegate operators have no closed-form rule: they use the default rule.
	CategoryDelegate Category = iota

	// CategoryBinary are element-wise binary operators: shapes broadcast, dtypes promote.
	CategoryBinary

	// CategoryComparison are element-wise binary operators with a Bool output.
	CategoryComparison

	// CategoryUnary are element-wise unary operators: shape, dtype and layout pass through.
	CategoryUnary

	// CategoryReduction reduce the "axes" of its operand.
	CategoryReduction

	numCategories
)

var categoryNames = [numCategories]string{
	CategoryDelegate:   "delegate",
	CategoryBinary:     "binary",
	CategoryComparison: "comparison",
	CategoryUnary:      "unary",
	CategoryReduction:  "reduction",
}

// String implements fmt.Stringer.
func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// categoryRules is indexed by Category. CategoryDelegate has no rule of its own.
var categoryRules = [numCategories]Rule{
	CategoryBinary:     binaryRule(false),
	CategoryComparison: binaryRule(true),
	CategoryUnary:      unaryRule,
	CategoryReduction:  reductionRule,
}

// Engine infers the output descriptors of operator nodes.
type Engine struct {
	rules       map[string]Rule
	categories  map[string]Category
	delegate    *delegate.Delegate
	defaultRule Rule
}

// Option configures an Engine in New.
type Option func(e *Engine) error

// WithDelegate configures the delegate used by the default rule for operators without a
// closed-form rule.
func WithDelegate(d *delegate.Delegate) Option {
	return func(e *Engine) error {
		if d == nil {
			return errors.New("WithDelegate(nil)")
		}
		e.delegate = d
		return nil
	}
}

// WithRuntime is a shortcut to WithDelegate(delegate.New(runtime)).
func WithRuntime(runtime delegate.Runtime) Option {
	return func(e *Engine) error {
		if runtime == nil {
			return errors.New("WithRuntime(nil)")
		}
		return WithDelegate(delegate.New(runtime))(e)
	}
}

// WithRule sets the rule for the operator op, replacing any built-in one.
func WithRule(op string, rule Rule) Option {
	return func(e *Engine) error {
		if rule == nil {
			return errors.Errorf("WithRule(%q, nil)", op)
		}
		e.rules[op] = rule
		delete(e.categories, op)
		return nil
	}
}

// WithCategory sets the operator op to use the rule of the given category.
// CategoryDelegate removes any closed-form rule of op, so the default rule is used.
func WithCategory(op string, category Category) Option {
	return func(e *Engine) error {
		if category < 0 || category >= numCategories {
			return errors.Errorf("WithCategory(%q): invalid category %s", op, category)
		}
		if category == CategoryDelegate {
			delete(e.rules, op)
		} else {
			e.rules[op] = categoryRules[category]
		}
		e.categories[op] = category
		return nil
	}
}

// WithDefaultRule sets the rule for operators without a rule of their own. It takes precedence over
// the delegate configured with WithDelegate.
func WithDefaultRule(rule Rule) Option {
	return func(e *Engine) error {
		e.defaultRule = rule
		return nil
	}
}

// New creates an Engine with the built-in rules, configured by the given options.
func New(options ...Option) (*Engine, error) {
	e := &Engine{
		rules:      make(map[string]Rule, len(builtinCategories)+len(builtinRules)),
		categories: make(map[string]Category, len(builtinCategories)),
	}
	for op, category := range builtinCategories {
		e.rules[op] = categoryRules[category]
		e.categories[op] = category
	}
	for op, rule := range builtinRules {
		e.rules[op] = rule
	}
	for _, option := range options {
		if err := option(e); err != nil {
			return nil, errors.WithMessage(err, "inference.New()")
		}
	}
	if e.defaultRule == nil && e.delegate != nil {
		e.defaultRule = delegateRule(e.delegate)
	}
	return e, nil
}

// Delegate returns the delegate configured with WithDelegate, or nil.
func (e *Engine) Delegate() *delegate.Delegate {
	return e.delegate
}

// HasRule returns whether op has a rule of its own, as opposed to using the default rule.
func (e *Engine) HasRule(op string) bool {
	_, found := e.rules[op]
	return found
}

// Category returns the category of op, and whether it belongs to one. Structural operators and
// operators configured with WithRule have no category.
func (e *Engine) Category(op string) (Category, bool) {
	category, found := e.categories[op]
	return category, found
}

// Ops returns the sorted names of the operators with a rule of their own.
func (e *Engine) Ops() []string {
	ops := make([]string, 0, len(e.rules))
	for op := range e.rules {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

// Infer the output descriptors of node.
//
// Errors are wrapped with the operator name, and can be inspected with errors.As for the typed errors
// of the packages operands, shapeinference and delegate.
func (e *Engine) Infer(node Node) (outputs []descriptors.Descriptor, err error) {
	rule, found := e.rules[node.Op]
	if !found {
		rule = e.defaultRule
	}
	if rule == nil {
		return nil, errors.Errorf("inference of %q: no rule for the operator, and no delegate configured", node.Op)
	}
	var ruleErr error
	err = exceptions.TryCatch[error](func() { outputs, ruleErr = rule(node) })
	if err == nil {
		err = ruleErr
	}
	if err == nil && len(outputs) != node.numOutputs() {
		err = errors.Errorf("%d outputs inferred, but the node expects %d", len(outputs), node.numOutputs())
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "inference of %q", node.Op)
	}
	if klog.V(1).Enabled() {
		klog.Infof("inferred %s -> %v (closed-form=%v)", node, outputs, found)
	}
	return outputs, nil
}
