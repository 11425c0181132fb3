// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package function

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/serialized"
)

// Handler is the body of a user function. args are the resolved and
// verified input values in order. For a reducer the accumulator, when
// present, is args[0].
//
// The returned value is serialized with Schema.Output unless it already is
// a *serialized.Object. Returning a *plan.Update hands the result over to
// the root call of that update.
type Handler func(ctx *Context, args []*serialized.Value) (any, error)

// Schema declares the arguments a function accepts. The zero value
// accepts any number of arguments of any encoding.
type Schema struct {
	MinArgs int
	// MaxArgs is the largest accepted arity, zero means unbounded.
	MaxArgs int
	// NoArgs declares a function that takes no arguments at all.
	NoArgs bool
	// Accepts lists the argument encodings the function can decode. Empty
	// accepts every encoding.
	Accepts []serialized.Encoding
	// Output is the encoding of the returned value, utf8-json when unset.
	Output serialized.Encoding
	// Reducer functions receive the accumulator as their first argument.
	Reducer bool
}

// OutputEncoding returns the encoding used for returned values.
func (s Schema) OutputEncoding() serialized.Encoding {
	if s.Output == serialized.EncodingUnknown {
		return serialized.EncodingUTF8JSON
	}
	return s.Output
}

// Check validates the manifests of the arguments against the schema.
func (s Schema) Check(args []serialized.Manifest) error {
	if len(args) < s.MinArgs || len(args) > s.maxArgs() {
		return errors.ErrArgumentSchemaMismatch.GenWithStackByArgs(
			fmt.Sprintf("got %d arguments, want %s", len(args), s.arity()))
	}
	if len(s.Accepts) == 0 {
		return nil
	}
	for i, m := range args {
		if !s.accepts(m.Encoding) {
			return errors.ErrArgumentSchemaMismatch.GenWithStackByArgs(
				fmt.Sprintf("argument %d has encoding %s", i, m.Encoding))
		}
	}
	return nil
}

func (s Schema) accepts(enc serialized.Encoding) bool {
	for _, e := range s.Accepts {
		if e == enc {
			return true
		}
	}
	return false
}

func (s Schema) maxArgs() int {
	switch {
	case s.NoArgs:
		return 0
	case s.MaxArgs == 0:
		return math.MaxInt
	default:
		return s.MaxArgs
	}
}

func (s Schema) arity() string {
	limit := s.maxArgs()
	switch {
	case limit == math.MaxInt:
		return fmt.Sprintf("at least %d", s.MinArgs)
	case s.MinArgs == limit:
		return fmt.Sprintf("%d", limit)
	default:
		return fmt.Sprintf("%d to %d", s.MinArgs, limit)
	}
}

func (s Schema) validate(name string) error {
	var reason string
	switch {
	case s.MinArgs < 0 || s.MaxArgs < 0:
		reason = fmt.Sprintf("negative arity %d to %d", s.MinArgs, s.MaxArgs)
	case s.NoArgs && (s.MinArgs > 0 || s.MaxArgs > 0):
		reason = fmt.Sprintf("takes no arguments but declares arity %d to %d", s.MinArgs, s.MaxArgs)
	case s.MaxArgs > 0 && s.MaxArgs < s.MinArgs:
		reason = fmt.Sprintf("accepts at most %d but at least %d arguments", s.MaxArgs, s.MinArgs)
	default:
		return nil
	}
	return errors.ErrInvalidArgument.GenWithStackByArgs(fmt.Sprintf("handler %s %s", name, reason))
}

// Function is a registered handler with its schema.
type Function struct {
	Name    string
	Handler Handler
	Schema  Schema
}

// Registry is a static table of function handlers keyed by handler name.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]*Function
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]*Function)}
}

// Register adds a handler under name.
func (r *Registry) Register(name string, handler Handler, schema Schema) error {
	if name == "" || handler == nil {
		return errors.ErrInvalidArgument.GenWithStackByArgs("handler name and body are required")
	}
	if err := schema.validate(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.funcs[name]; ok {
		return errors.ErrHandlerAlreadyRegistered.GenWithStackByArgs(name)
	}
	r.funcs[name] = &Function{Name: name, Handler: handler, Schema: schema}
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// package init functions.
func (r *Registry) MustRegister(name string, handler Handler, schema Schema) {
	if err := r.Register(name, handler, schema); err != nil {
		panic(err)
	}
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (*Function, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.funcs[name]
	if !ok {
		return nil, errors.ErrHandlerNotRegistered.GenWithStackByArgs(name)
	}
	return f, nil
}

// Names returns the sorted names of all handlers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the registry used by the fexec binary.
var DefaultRegistry = NewRegistry()

// Register adds a handler to DefaultRegistry.
func Register(name string, handler Handler, schema Schema) {
	DefaultRegistry.MustRegister(name, handler, schema)
}
