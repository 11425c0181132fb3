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
	"fmt"
	"sync"

	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/plan"
)

// Allocation is one execution attempt of a function call. State moves
// Created -> Running -> Succeeded|Failed, or Created -> Failed when the
// inputs can not be resolved. The terminal result is set exactly once.
type Allocation struct {
	SessionID      string
	RequestID      string
	FunctionCallID string
	ID             string
	Inputs         *executorpb.FunctionInputs

	graph *plan.Graph

	mu       sync.Mutex
	state    executorpb.AllocationState
	progress *executorpb.Progress
	updates  []*plan.Update
	result   *executorpb.AllocationResult
	done     chan struct{}
}

// New creates an allocation in Created state.
func New(sessionID string, in *executorpb.AllocationInputs, clk clock.Clock) (*Allocation, error) {
	if in == nil {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs("allocation is missing")
	}
	if in.AllocationID == "" || in.FunctionCallID == "" || in.RequestID == "" {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs(fmt.Sprintf(
			"allocation %q must name a request, a function call and an allocation id", in.AllocationID))
	}
	inputs := in.Inputs
	if inputs == nil {
		inputs = &executorpb.FunctionInputs{}
	}
	return &Allocation{
		SessionID:      sessionID,
		RequestID:      in.RequestID,
		FunctionCallID: in.FunctionCallID,
		ID:             in.AllocationID,
		Inputs:         inputs,
		graph:          plan.NewGraph(in.FunctionCallID, clk),
		state:          executorpb.AllocationStateCreated,
		done:           make(chan struct{}),
	}, nil
}

// State returns the current state.
func (a *Allocation) State() executorpb.AllocationState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start moves the allocation from Created to Running.
func (a *Allocation) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != executorpb.AllocationStateCreated {
		return errors.ErrInvalidStateTransition.GenWithStackByArgs(
			a.ID, a.state, executorpb.AllocationStateRunning)
	}
	a.state = executorpb.AllocationStateRunning
	return nil
}

// UpdateProgress records a progress update. current must not decrease and
// total can not change once it is known.
func (a *Allocation) UpdateProgress(current float64, total *float64) (*executorpb.Progress, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != executorpb.AllocationStateRunning {
		return nil, errors.ErrInvalidStateTransition.GenWithStackByArgs(
			a.ID, a.state, executorpb.AllocationStateRunning)
	}
	if current < 0 {
		return nil, errors.ErrProgressNotMonotonic.GenWithStackByArgs(
			fmt.Sprintf("current %v is negative", current))
	}
	next := &executorpb.Progress{Current: current}
	if total != nil {
		t := *total
		next.Total = &t
	}
	if prev := a.progress; prev != nil {
		if current < prev.Current {
			return nil, errors.ErrProgressNotMonotonic.GenWithStackByArgs(
				fmt.Sprintf("current %v is below %v", current, prev.Current))
		}
		if prev.Total != nil {
			if next.Total != nil && *next.Total != *prev.Total {
				return nil, errors.ErrProgressNotMonotonic.GenWithStackByArgs(
					fmt.Sprintf("total changed from %v to %v", *prev.Total, *next.Total))
			}
			next.Total = prev.Total
		}
	}
	if next.Total != nil && current > *next.Total {
		return nil, errors.ErrProgressNotMonotonic.GenWithStackByArgs(
			fmt.Sprintf("current %v exceeds total %v", current, *next.Total))
	}
	a.progress = next
	return clone(next), nil
}

func clone(p *executorpb.Progress) *executorpb.Progress {
	if p == nil {
		return nil
	}
	ret := &executorpb.Progress{Current: p.Current}
	if p.Total != nil {
		t := *p.Total
		ret.Total = &t
	}
	return ret
}

// ApplyPlanUpdate validates u against the updates accepted so far and
// returns its normalized form.
func (a *Allocation) ApplyPlanUpdate(u *plan.Update) (*plan.Update, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != executorpb.AllocationStateRunning {
		return nil, errors.ErrInvalidStateTransition.GenWithStackByArgs(
			a.ID, a.state, executorpb.AllocationStateRunning)
	}
	normalized, err := a.graph.Apply(u)
	if err != nil {
		return nil, err
	}
	a.updates = append(a.updates, normalized)
	return normalized, nil
}

// PlanUpdates returns the accepted plan updates in emission order.
func (a *Allocation) PlanUpdates() []*plan.Update {
	a.mu.Lock()
	defer a.mu.Unlock()
	ret := make([]*plan.Update, len(a.updates))
	copy(ret, a.updates)
	return ret
}

// Finish sets the terminal result. Only the first call succeeds, every
// later call fails with ErrDuplicateTerminalResult and leaves the first
// result in place.
func (a *Allocation) Finish(result *executorpb.AllocationResult) error {
	if result == nil {
		return errors.ErrInvalidArgument.GenWithStackByArgs("terminal result is missing")
	}
	var next executorpb.AllocationState
	switch result.Outcome {
	case executorpb.AllocationOutcomeSuccess:
		next = executorpb.AllocationStateSucceeded
	case executorpb.AllocationOutcomeFailure:
		next = executorpb.AllocationStateFailed
	default:
		return errors.ErrInvalidArgument.GenWithStackByArgs("terminal result has no outcome")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() {
		return errors.ErrDuplicateTerminalResult.GenWithStackByArgs(a.ID)
	}
	if next == executorpb.AllocationStateSucceeded && a.state != executorpb.AllocationStateRunning {
		return errors.ErrInvalidStateTransition.GenWithStackByArgs(a.ID, a.state, next)
	}
	a.state = next
	a.result = result
	close(a.done)
	return nil
}

// Done is closed once the allocation is terminal.
func (a *Allocation) Done() <-chan struct{} {
	return a.done
}

// Result returns the terminal result, nil while not terminal.
func (a *Allocation) Result() *executorpb.AllocationResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// Info returns a snapshot for listing.
func (a *Allocation) Info() *executorpb.AllocationInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &executorpb.AllocationInfo{
		SessionID:      a.SessionID,
		RequestID:      a.RequestID,
		FunctionCallID: a.FunctionCallID,
		AllocationID:   a.ID,
		State:          a.state,
		Progress:       clone(a.progress),
		Result:         a.result,
	}
}
