// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"testing"

	"github.com/gomlx/metainfer/pkg/core/delegate/delegatetest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	*delegatetest.FakeRuntime
	config    string
	finalized bool
}

func (b *fakeBackend) Description() string { return "fake backend, config=" + b.config }
func (b *fakeBackend) Finalize()           { b.finalized = true }

func TestRegistry(t *testing.T) {
	_, err := NewWithConfig("")
	require.Error(t, err, "no backends registered yet")

	Register("fake", func(config string) (Backend, error) {
		return &fakeBackend{FakeRuntime: delegatetest.New(), config: config}, nil
	})
	Register("broken", func(config string) (Backend, error) {
		return nil, errors.Errorf("broken backend can't load %q", config)
	})
	assert.Equal(t, []string{"broken", "fake"}, List())

	backend, err := NewWithConfig("fake:some/library.so")
	require.NoError(t, err)
	fake := backend.(*fakeBackend)
	assert.Equal(t, "some/library.so", fake.config)
	assert.Equal(t, "fake", backend.Name())
	backend.Finalize()
	assert.True(t, fake.finalized)

	// Without a registered name, the whole config goes to the first registered backend.
	backend, err = NewWithConfig("/opt/vendor:lib/x.so")
	require.NoError(t, err)
	assert.Equal(t, "/opt/vendor:lib/x.so", backend.(*fakeBackend).config)

	_, err = NewWithConfig("broken:lib.so")
	require.ErrorContains(t, err, `creating backend "broken"`)

	t.Setenv(ConfigEnv, "fake:from_env")
	backend, err = New()
	require.NoError(t, err)
	assert.Equal(t, "from_env", backend.(*fakeBackend).config)
}
