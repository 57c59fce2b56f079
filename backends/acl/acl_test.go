// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package acl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/metainfer/backends"
	"github.com/gomlx/metainfer/pkg/core/delegate"
	"github.com/gomlx/metainfer/pkg/core/descriptors"
	"github.com/gomlx/metainfer/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBadPath(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "does-not-exist.so"))
	require.Error(t, err)

	_, err = backends.NewWithConfig("acl:" + filepath.Join(t.TempDir(), "does-not-exist.so"))
	require.Error(t, err)
	assert.Contains(t, backends.List(), BackendName)
}

func TestFirstOrNil(t *testing.T) {
	assert.Nil(t, firstOrNil[int64](nil))
	values := []int64{3, 5}
	assert.Equal(t, &values[0], firstOrNil(values))
}

// TestInferShape requires the ACL library, set with ACL_LIBRARY_PATH.
func TestInferShape(t *testing.T) {
	if os.Getenv(LibraryPathEnv) == "" {
		t.Skipf("%s not set, skipping ACL tests", LibraryPathEnv)
	}
	r, err := New("")
	require.NoError(t, err)
	defer r.Finalize()

	d := delegate.New(r)
	lhs := descriptors.Make(dtypes.Float32, 2, 3)
	rhs := descriptors.Make(dtypes.Float32, 2, 3)
	outputs, err := d.Infer("Add", []descriptors.Descriptor{lhs, rhs}, 1, nil)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.NoError(t, outputs[0].Check(dtypes.Float32, 2, 3))
}
