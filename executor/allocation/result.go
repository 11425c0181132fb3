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
	stderrors "errors"

	"github.com/pingcap/fexec/executor/function"
	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/plan"
)

var requestErrors = []*errors.Error{
	errors.ErrInputUnresolvable,
	errors.ErrArgumentSchemaMismatch,
	errors.ErrInvalidArgument,
	errors.ErrManifestInvalid,
	errors.ErrUnsupportedEncoding,
	errors.ErrDecodeFailed,
}

var functionErrors = []*errors.Error{
	errors.ErrFunctionPanicked,
	errors.ErrPlanUpdateRejected,
	errors.ErrPlanInvalidEntry,
	errors.ErrPlanDuplicateID,
	errors.ErrPlanForwardReference,
	errors.ErrPlanCycle,
	errors.ErrPlanRootNotFound,
	errors.ErrProgressNotMonotonic,
	errors.ErrEncodeFailed,
}

// Classify returns the failure reason of err. Data corruption and other
// runtime faults are internal errors.
func Classify(err error) executorpb.AllocationFailureReason {
	var fnErr *function.Error
	var reqErr *function.RequestError
	switch {
	case err == nil:
		return executorpb.AllocationFailureReasonUnknown
	case stderrors.As(err, &fnErr):
		return executorpb.AllocationFailureReasonFunctionError
	case stderrors.As(err, &reqErr):
		return executorpb.AllocationFailureReasonRequestError
	case errors.IsAny(err, errors.ErrBlobHashMismatch, errors.ErrBlobSizeMismatch):
		return executorpb.AllocationFailureReasonInternalError
	case errors.IsAny(err, requestErrors...):
		return executorpb.AllocationFailureReasonRequestError
	case errors.IsAny(err, functionErrors...):
		return executorpb.AllocationFailureReasonFunctionError
	default:
		return executorpb.AllocationFailureReasonInternalError
	}
}

// InternalFailure returns a failed result caused by the executor.
func InternalFailure(message string) *executorpb.AllocationResult {
	return &executorpb.AllocationResult{
		Outcome:       executorpb.AllocationOutcomeFailure,
		FailureReason: executorpb.AllocationFailureReasonInternalError,
		Message:       message,
	}
}

// RequestFailure returns a failed result caused by the request.
func RequestFailure(message string) *executorpb.AllocationResult {
	return &executorpb.AllocationResult{
		Outcome:       executorpb.AllocationOutcomeFailure,
		FailureReason: executorpb.AllocationFailureReasonRequestError,
		Message:       message,
	}
}

// FunctionFailure returns a failed result carrying the payload the
// function raised.
func FunctionFailure(message string, payload *blob.ObjectRef, updates []*plan.Update) *executorpb.AllocationResult {
	return &executorpb.AllocationResult{
		Outcome:       executorpb.AllocationOutcomeFailure,
		FailureReason: executorpb.AllocationFailureReasonFunctionError,
		FunctionError: payload,
		PlanUpdates:   updates,
		Message:       message,
	}
}

// Success returns a successful result.
func Success(value *blob.ObjectRef, updates []*plan.Update) *executorpb.AllocationResult {
	return &executorpb.AllocationResult{
		Outcome:     executorpb.AllocationOutcomeSuccess,
		Value:       value,
		PlanUpdates: updates,
	}
}

// Abort finishes a with an internal failure. It returns nil if a already
// has a terminal result.
func Abort(a *Allocation, message string) *executorpb.AllocationResult {
	result := InternalFailure(message)
	if err := a.Finish(result); err != nil {
		return nil
	}
	allocationCounter.WithLabelValues(result.Outcome.String(), result.FailureReason.String()).Inc()
	return result
}
