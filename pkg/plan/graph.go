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

package plan

import (
	"fmt"
	"sync"
	"time"

	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/fexec/pkg/errors"
)

// Graph accumulates the execution plan updates of one allocation and
// validates every new update against the ids defined so far.
//
// An argument may only name a call defined by an earlier entry of the same
// update or by an earlier update. Together with rejecting self references
// this keeps the dependency graph acyclic.
type Graph struct {
	mu sync.Mutex

	// ownCallID is the call the allocation serves.
	ownCallID string
	clock     clock.Clock

	// id -> index of the update that defined it
	defined map[string]int
	// id -> ids it depends on
	deps    map[string][]string
	updates int
}

// NewGraph creates an empty graph for an allocation serving ownCallID.
func NewGraph(ownCallID string, clk clock.Clock) *Graph {
	return &Graph{
		ownCallID: ownCallID,
		clock:     clk,
		defined:   make(map[string]int),
		deps:      make(map[string][]string),
	}
}

// Apply validates u and, when it is accepted, records its ids and returns a
// normalized copy. A rejected update leaves the graph unchanged.
func (g *Graph) Apply(u *Update) (*Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	newDeps, err := g.validateLocked(u)
	if err != nil {
		return nil, err
	}

	normalized := &Update{
		Entries:    make([]Entry, len(u.Entries)),
		RootCallID: u.RootCallID,
		NotBefore:  u.NotBefore,
	}
	copy(normalized.Entries, u.Entries)
	if normalized.RootCallID == "" {
		normalized.RootCallID = g.ownCallID
	}
	if normalized.NotBefore.IsZero() {
		normalized.NotBefore = g.clock.Now().UTC().Truncate(time.Millisecond)
	}

	for id, deps := range newDeps {
		g.defined[id] = g.updates
		g.deps[id] = deps
	}
	g.updates++
	return normalized, nil
}

// Validate checks u without recording it.
func (g *Graph) Validate(u *Update) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.validateLocked(u)
	return err
}

// Defined reports whether id was defined by an accepted update.
func (g *Graph) Defined(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.defined[id]
	return ok
}

// Updates returns the number of accepted updates.
func (g *Graph) Updates() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.updates
}

func (g *Graph) validateLocked(u *Update) (map[string][]string, error) {
	if u == nil || len(u.Entries) == 0 {
		return nil, errors.ErrPlanInvalidEntry.GenWithStackByArgs(0, "update has no entries")
	}

	// position of every id in this update, to tell forward references
	// apart from unknown ones
	positions := make(map[string]int, len(u.Entries))
	for i := range u.Entries {
		e := &u.Entries[i]
		if (e.Call == nil) == (e.Reduce == nil) {
			return nil, errors.ErrPlanInvalidEntry.GenWithStackByArgs(i, "entry must be exactly one of call or reduce")
		}
		id := e.ID()
		if id == "" {
			return nil, errors.ErrPlanInvalidEntry.GenWithStackByArgs(i, "id is empty")
		}
		if _, ok := positions[id]; ok {
			return nil, errors.ErrPlanDuplicateID.GenWithStackByArgs(id)
		}
		if _, ok := g.defined[id]; ok || id == g.ownCallID {
			return nil, errors.ErrPlanDuplicateID.GenWithStackByArgs(id)
		}
		positions[id] = i
	}

	newDeps := make(map[string][]string, len(u.Entries))
	for i := range u.Entries {
		e := &u.Entries[i]
		id := e.ID()
		if err := e.target().Validate(); err != nil {
			return nil, errors.ErrPlanInvalidEntry.GenWithStackByArgs(i, err.Error())
		}
		var deps []string
		for j := range e.Args() {
			arg := &e.Args()[j]
			if err := arg.validate(); err != nil {
				return nil, errors.ErrPlanInvalidEntry.GenWithStackByArgs(i, fmt.Sprintf("argument %d: %s", j, err.Error()))
			}
			if arg.CallID == "" {
				continue
			}
			ref := arg.CallID
			// Depending on itself, or on the call that is producing this
			// update, closes a cycle.
			if ref == id || ref == g.ownCallID {
				return nil, errors.ErrPlanCycle.GenWithStackByArgs(id)
			}
			if pos, ok := positions[ref]; ok {
				if pos > i {
					return nil, errors.ErrPlanForwardReference.GenWithStackByArgs(id, ref)
				}
			} else if _, ok := g.defined[ref]; !ok {
				return nil, errors.ErrPlanForwardReference.GenWithStackByArgs(id, ref)
			}
			deps = append(deps, ref)
		}
		newDeps[id] = deps
	}

	if root := u.RootCallID; root != "" && root != g.ownCallID {
		if _, ok := positions[root]; !ok {
			if _, ok := g.defined[root]; !ok {
				return nil, errors.ErrPlanRootNotFound.GenWithStackByArgs(root)
			}
		}
	}

	if id, ok := g.findCycleLocked(newDeps); ok {
		return nil, errors.ErrPlanCycle.GenWithStackByArgs(id)
	}
	return newDeps, nil
}

// findCycleLocked runs a depth first search over the recorded graph plus
// newDeps and returns an id on a cycle if there is one.
func (g *Graph) findCycleLocked(newDeps map[string][]string) (string, bool) {
	const (
		unvisited = iota
		visiting
		done
	)
	depsOf := func(id string) []string {
		if deps, ok := newDeps[id]; ok {
			return deps
		}
		return g.deps[id]
	}
	state := make(map[string]int, len(newDeps))
	var visit func(id string) (string, bool)
	visit = func(id string) (string, bool) {
		switch state[id] {
		case visiting:
			return id, true
		case done:
			return "", false
		}
		state[id] = visiting
		for _, dep := range depsOf(id) {
			if cycleID, ok := visit(dep); ok {
				return cycleID, true
			}
		}
		state[id] = done
		return "", false
	}
	for id := range newDeps {
		if cycleID, ok := visit(id); ok {
			return cycleID, true
		}
	}
	return "", false
}
