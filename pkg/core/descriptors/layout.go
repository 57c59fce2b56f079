// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package descriptors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Layout is the dimension-ordering convention of a tensor in storage.
type Layout int

const (
	// LayoutUnspecified is used when the layout is not known, e.g. for constants without a format.
	LayoutUnspecified Layout = iota

	// LayoutContiguous is the row-major (C order) layout: the last axis varies fastest.
	LayoutContiguous

	// LayoutChannelsLast is the NHWC storage order of a rank-4 NCHW tensor.
	LayoutChannelsLast

	numLayouts
)

var layoutNames = [numLayouts]string{
	LayoutUnspecified:  "unspecified",
	LayoutContiguous:   "contiguous",
	LayoutChannelsLast: "channels_last",
}

// String implements fmt.Stringer.
func (l Layout) String() string {
	if l < 0 || l >= numLayouts {
		return fmt.Sprintf("Layout(%d)", int(l))
	}
	return layoutNames[l]
}

// ParseLayout converts a layout name to a Layout. It accepts the names returned by Layout.String,
// the PyTorch memory format names ("contiguous_format", "channels_last") and the storage orders
// "ND", "NCHW" (contiguous) and "NHWC" (channels-last). Matching is case-insensitive.
func ParseLayout(name string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "unspecified", "undefined":
		return LayoutUnspecified, nil
	case "contiguous", "contiguous_format", "nd", "nchw":
		return LayoutContiguous, nil
	case "channels_last", "channelslast", "nhwc":
		return LayoutChannelsLast, nil
	}
	return LayoutUnspecified, errors.Errorf("unknown layout %q", name)
}
