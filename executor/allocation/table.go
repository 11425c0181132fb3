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

package allocation

import (
	"sort"
	"sync"

	"github.com/pingcap/fexec/pkg/errors"
)

// Table indexes the allocations of an executor by allocation id and by
// function call id. A function call may have several allocations, one per
// retry.
type Table struct {
	mu     sync.RWMutex
	byID   map[string]*Allocation
	byCall map[string][]string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		byID:   make(map[string]*Allocation),
		byCall: make(map[string][]string),
	}
}

// Add inserts a new allocation. Allocation ids are unique per executor.
func (t *Table) Add(a *Allocation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[a.ID]; ok {
		return errors.ErrAllocationExists.GenWithStackByArgs(a.ID)
	}
	t.byID[a.ID] = a
	t.byCall[a.FunctionCallID] = append(t.byCall[a.FunctionCallID], a.ID)
	return nil
}

// Get returns the allocation with id.
func (t *Table) Get(id string) (*Allocation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.byID[id]
	return a, ok
}

// ByFunctionCall returns the allocations of a function call in the order
// they were added.
func (t *Table) ByFunctionCall(callID string) []*Allocation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := t.byCall[callID]
	ret := make([]*Allocation, 0, len(ids))
	for _, id := range ids {
		ret = append(ret, t.byID[id])
	}
	return ret
}

// List returns every allocation sorted by id.
func (t *Table) List() []*Allocation {
	t.mu.RLock()
	ret := make([]*Allocation, 0, len(t.byID))
	for _, a := range t.byID {
		ret = append(ret, a)
	}
	t.mu.RUnlock()
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].ID < ret[j].ID
	})
	return ret
}

// Delete removes a terminal allocation.
func (t *Table) Delete(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.byID[id]
	if !ok {
		return errors.ErrAllocationNotFound.GenWithStackByArgs(id)
	}
	if !a.State().Terminal() {
		return errors.ErrAllocationNotTerminal.GenWithStackByArgs(id)
	}
	delete(t.byID, id)
	ids := t.byCall[a.FunctionCallID]
	for i, other := range ids {
		if other == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(t.byCall, a.FunctionCallID)
	} else {
		t.byCall[a.FunctionCallID] = ids
	}
	return nil
}

// Len returns the number of allocations.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
