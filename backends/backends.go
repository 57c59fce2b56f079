// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends is the registry of vendor runtimes that shape inference can be delegated to.
//
// Runtimes register themselves during package initialization, so the binary only needs to import
// them, e.g.: `import _ "github.com/gomlx/metainfer/backends/acl"`.
package backends

import (
	"os"
	"slices"
	"strings"

	"github.com/gomlx/metainfer/pkg/core/delegate"
	"github.com/pkg/errors"
)

// Backend is a vendor runtime: the native shape inference API plus its lifecycle.
type Backend interface {
	delegate.Runtime

	// Description is a longer description of the Backend that can be used to pretty-print.
	Description() string

	// Finalize releases all the associated resources immediately, and makes the backend invalid.
	Finalize()
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) (Backend, error)

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register backend with the given name, and a constructor that takes as input a configuration string.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// List returns the names of the registered backends, sorted.
func List() []string {
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ConfigEnv is the environment variable with the default backend configuration to use.
//
// The format of config is "<backend_name>:<backend_configuration>", see NewWithConfig.
const ConfigEnv = "METAINFER_BACKEND"

// New returns a new default Backend.
//
// The environment variable METAINFER_BACKEND is used as a configuration if defined, otherwise the
// first registered backend is used with an empty configuration.
func New() (Backend, error) {
	if config, found := os.LookupEnv(ConfigEnv); found {
		return NewWithConfig(config)
	}
	return NewWithConfig("")
}

// NewWithConfig takes a configuration string formatted as "<backend_name>:<backend_configuration>".
//
// The "<backend_name>" is the name of a registered backend (e.g.: "acl") and "<backend_configuration>"
// is backend specific (e.g.: for acl, it is the path to the shared library). If there is no ":", the
// whole config is passed to the first registered backend.
func NewWithConfig(config string) (Backend, error) {
	if len(registeredConstructors) == 0 {
		return nil, errors.New(`no registered backends -- maybe import the ACL one with import _ "github.com/gomlx/metainfer/backends/acl"?`)
	}
	backendName := firstRegistered
	backendConfig := config
	if idx := strings.Index(config, ":"); idx != -1 {
		if _, found := registeredConstructors[config[:idx]]; found {
			backendName = config[:idx]
			backendConfig = config[idx+1:]
		}
	}
	constructor, found := registeredConstructors[backendName]
	if !found {
		return nil, errors.Errorf("can't find backend %q for configuration %q given", backendName, config)
	}
	backend, err := constructor(backendConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "creating backend %q", backendName)
	}
	return backend, nil
}
