// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide generic helpers missing from the standard slices package.
package xslices

import (
	"flag"
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

// At takes an element at the given `index`, where `index` can be negative, in which case it takes from the end
// of the slice.
func At[T any](slice []T, index int) T {
	if index < 0 {
		index = len(slice) + index
	}
	return slice[index]
}

// Last returns the last element of a slice.
func Last[T any](slice []T) T {
	return At(slice, -1)
}

// Iota returns a slice of incremental values, starting with start and of length n.
// Eg: Iota(3, 2) -> []int{3, 4}
func Iota[T constraints.Integer | constraints.Float](start T, n int) (slice []T) {
	slice = make([]T, n)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return
}

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// Convert converts a slice of integers to another integer type. A nil slice converts to nil.
func Convert[Out, In constraints.Integer](in []In) []Out {
	if in == nil {
		return nil
	}
	return Map(in, func(e In) Out { return Out(e) })
}

// Flag creates a flag for []T with the given name, description and default value.
// Values are given comma-separated, and each one is parsed with parserFn.
func Flag[T any](name string, defaultValue []T, usage string,
	parserFn func(valueStr string) (T, error)) *[]T {
	f := &sliceFlag[T]{
		parsed:   defaultValue,
		parserFn: parserFn,
	}
	flag.Var(f, name, usage)
	return &f.parsed
}

// sliceFlag implements flag.Value for a slice of T.
type sliceFlag[T any] struct {
	parsed   []T
	parserFn func(valueStr string) (T, error)
}

func (f *sliceFlag[T]) String() string {
	return strings.Join(Map(f.parsed, func(e T) string { return fmt.Sprint(e) }), ",")
}

func (f *sliceFlag[T]) Set(listStr string) error {
	f.parsed = make([]T, 0)
	if listStr == "" {
		return nil
	}
	for _, part := range strings.Split(listStr, ",") {
		value, err := f.parserFn(strings.TrimSpace(part))
		if err != nil {
			return err
		}
		f.parsed = append(f.parsed, value)
	}
	return nil
}
