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

package executorpb

import (
	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/plan"
	"github.com/pingcap/fexec/pkg/serialized"
)

// InitializationOutcome is the outcome of Initialize.
type InitializationOutcome int32

const (
	InitializationOutcomeUnknown InitializationOutcome = iota
	InitializationOutcomeSuccess
	InitializationOutcomeFailure
)

// InitializationFailureReason tells why Initialize failed.
type InitializationFailureReason int32

const (
	InitializationFailureReasonUnknown InitializationFailureReason = iota
	InitializationFailureReasonInternalError
	InitializationFailureReasonFunctionError
)

func (r InitializationFailureReason) String() string {
	switch r {
	case InitializationFailureReasonInternalError:
		return "internal_error"
	case InitializationFailureReasonFunctionError:
		return "function_error"
	default:
		return "unknown"
	}
}

type InitializeRequest struct {
	Function plan.FunctionRef `json:"function"`
	// ApplicationCode is a zip archive.
	ApplicationCode *serialized.Object `json:"application_code"`
}

type InitializeResponse struct {
	Outcome       InitializationOutcome       `json:"outcome"`
	FailureReason InitializationFailureReason `json:"failure_reason,omitempty"`
	Message       string                      `json:"message,omitempty"`
}

type HealthCheckRequest struct{}

type HealthCheckResponse struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

type InfoRequest struct{}

type InfoResponse struct {
	RuntimeVersion     string `json:"runtime_version"`
	SDKVersion         string `json:"sdk_version"`
	SDKLanguage        string `json:"sdk_language"`
	SDKLanguageVersion string `json:"sdk_language_version"`
}

type ListAllocationsRequest struct{}

type ListAllocationsResponse struct {
	Allocations []*AllocationInfo `json:"allocations"`
}

type DeleteAllocationRequest struct {
	AllocationID string `json:"allocation_id"`
}

type DeleteAllocationResponse struct{}

// AllocationState is the lifecycle state of an allocation.
type AllocationState int32

const (
	AllocationStateUnknown AllocationState = iota
	AllocationStateCreated
	AllocationStateRunning
	AllocationStateSucceeded
	AllocationStateFailed
)

var allocationStateNames = [...]string{"unknown", "created", "running", "succeeded", "failed"}

func (s AllocationState) String() string {
	if int(s) < len(allocationStateNames) && s >= 0 {
		return allocationStateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no transition can leave s.
func (s AllocationState) Terminal() bool {
	return s == AllocationStateSucceeded || s == AllocationStateFailed
}

// AllocationOutcome is the outcome of a terminal allocation.
type AllocationOutcome int32

const (
	AllocationOutcomeUnknown AllocationOutcome = iota
	AllocationOutcomeSuccess
	AllocationOutcomeFailure
)

func (o AllocationOutcome) String() string {
	switch o {
	case AllocationOutcomeSuccess:
		return "success"
	case AllocationOutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// AllocationFailureReason tells the caller whether a failed allocation may
// be retried.
type AllocationFailureReason int32

const (
	AllocationFailureReasonUnknown AllocationFailureReason = iota
	// AllocationFailureReasonInternalError is a fault of the executor, safe
	// to retry elsewhere.
	AllocationFailureReasonInternalError
	// AllocationFailureReasonFunctionError is raised by user code on purpose
	// and carries a payload.
	AllocationFailureReasonFunctionError
	// AllocationFailureReasonRequestError is caused by malformed or
	// unresolvable input.
	AllocationFailureReasonRequestError
)

func (r AllocationFailureReason) String() string {
	switch r {
	case AllocationFailureReasonInternalError:
		return "internal_error"
	case AllocationFailureReasonFunctionError:
		return "function_error"
	case AllocationFailureReasonRequestError:
		return "request_error"
	default:
		return "unknown"
	}
}

// FunctionInputs are the inputs of one allocation.
type FunctionInputs struct {
	Args []*blob.ObjectRef `json:"args"`
	// UpstreamError is the error payload of a failed upstream call.
	UpstreamError *blob.ObjectRef `json:"upstream_error,omitempty"`
	// Accumulator is the current value of a reduce, absent for the first
	// element.
	Accumulator *blob.ObjectRef `json:"accumulator,omitempty"`
}

type AllocationInputs struct {
	RequestID      string          `json:"request_id"`
	FunctionCallID string          `json:"function_call_id"`
	AllocationID   string          `json:"allocation_id"`
	Inputs         *FunctionInputs `json:"inputs"`
}

// Metrics recorded while running an allocation. Timers are in seconds.
type Metrics struct {
	Timers   map[string]float64 `json:"timers,omitempty"`
	Counters map[string]uint64  `json:"counters,omitempty"`
}

type AllocationResult struct {
	Outcome       AllocationOutcome       `json:"outcome"`
	FailureReason AllocationFailureReason `json:"failure_reason,omitempty"`
	Value         *blob.ObjectRef         `json:"value,omitempty"`
	PlanUpdates   []*plan.Update          `json:"plan_updates,omitempty"`
	// FunctionError is the payload raised by the function.
	FunctionError *blob.ObjectRef `json:"function_error,omitempty"`
	Message       string          `json:"message,omitempty"`
	Metrics       *Metrics        `json:"metrics,omitempty"`
}

type Progress struct {
	Current float64 `json:"current"`
	// Total is nil while unknown.
	Total *float64 `json:"total,omitempty"`
}

type AllocationInfo struct {
	SessionID      string            `json:"session_id"`
	RequestID      string            `json:"request_id"`
	FunctionCallID string            `json:"function_call_id"`
	AllocationID   string            `json:"allocation_id"`
	State          AllocationState   `json:"state"`
	Progress       *Progress         `json:"progress,omitempty"`
	Result         *AllocationResult `json:"result,omitempty"`
}
