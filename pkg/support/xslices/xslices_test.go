// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"flag"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAt(t *testing.T) {
	slice := []int{0, 1, 2, 3}
	assert.Equal(t, 3, At(slice, -1))
	assert.Equal(t, 1, At(slice, 1))
	assert.Equal(t, 3, Last(slice))
}

func TestIotaMap(t *testing.T) {
	assert.Equal(t, []int{3, 4, 5}, Iota(3, 3))
	assert.Equal(t, []float64{1.5, 2.5}, Iota(1.5, 2))
	assert.Equal(t, []string{"0", "1"}, Map(Iota(0, 2), strconv.Itoa))
}

func TestConvert(t *testing.T) {
	assert.Equal(t, []int64{1, -2}, Convert[int64]([]int{1, -2}))
	assert.Nil(t, Convert[int64]([]int(nil)))
	assert.Equal(t, []int{}, Convert[int]([]int32{}))
}

func TestFlag(t *testing.T) {
	values := Flag("test_xslices_flag", []int{1}, "test flag", strconv.Atoi)
	require.NoError(t, flag.Set("test_xslices_flag", "2, 3,4"))
	assert.Equal(t, []int{2, 3, 4}, *values)
	require.Error(t, flag.Set("test_xslices_flag", "2,x"))
	require.NoError(t, flag.Set("test_xslices_flag", ""))
	assert.Empty(t, *values)
}
