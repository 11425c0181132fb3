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

package errors

import (
	"github.com/pingcap/errors"
)

// all function executor errors
var (
	// general errors
	ErrUnknown = errors.Normalize(
		"unknown error",
		errors.RFCCodeText("FEXEC:ErrUnknown"),
	)
	ErrInvalidArgument = errors.Normalize(
		"invalid argument: %s",
		errors.RFCCodeText("FEXEC:ErrInvalidArgument"),
	)
	ErrConfigInvalid = errors.Normalize(
		"invalid config: %s",
		errors.RFCCodeText("FEXEC:ErrConfigInvalid"),
	)
	ErrConfigUnknownItem = errors.Normalize(
		"config contains unknown configuration options: %s",
		errors.RFCCodeText("FEXEC:ErrConfigUnknownItem"),
	)
	ErrConfigDecodeFile = errors.Normalize(
		"decode config file %s failed",
		errors.RFCCodeText("FEXEC:ErrConfigDecodeFile"),
	)

	// initialization errors
	ErrNotInitialized = errors.Normalize(
		"function executor is not initialized",
		errors.RFCCodeText("FEXEC:ErrNotInitialized"),
	)
	ErrAlreadyInitialized = errors.Normalize(
		"function executor is already bound to %s",
		errors.RFCCodeText("FEXEC:ErrAlreadyInitialized"),
	)
	ErrInitializationFailed = errors.Normalize(
		"function executor initialization failed: %s",
		errors.RFCCodeText("FEXEC:ErrInitializationFailed"),
	)
	ErrApplicationCodeInvalid = errors.Normalize(
		"application code is invalid: %s",
		errors.RFCCodeText("FEXEC:ErrApplicationCodeInvalid"),
	)
	ErrFunctionNotFound = errors.Normalize(
		"function %s is not found",
		errors.RFCCodeText("FEXEC:ErrFunctionNotFound"),
	)
	ErrHandlerNotRegistered = errors.Normalize(
		"function handler %s is not registered",
		errors.RFCCodeText("FEXEC:ErrHandlerNotRegistered"),
	)
	ErrHandlerAlreadyRegistered = errors.Normalize(
		"function handler %s is already registered",
		errors.RFCCodeText("FEXEC:ErrHandlerAlreadyRegistered"),
	)

	// session errors
	ErrSessionNotOpen = errors.Normalize(
		"no session is open on this stream",
		errors.RFCCodeText("FEXEC:ErrSessionNotOpen"),
	)
	ErrSessionClosed = errors.Normalize(
		"session %s is closed",
		errors.RFCCodeText("FEXEC:ErrSessionClosed"),
	)
	ErrSessionAttached = errors.Normalize(
		"session %s is attached to another stream",
		errors.RFCCodeText("FEXEC:ErrSessionAttached"),
	)
	ErrSessionLimitExceeded = errors.Normalize(
		"session limit %d is reached",
		errors.RFCCodeText("FEXEC:ErrSessionLimitExceeded"),
	)
	ErrProtocolViolation = errors.Normalize(
		"protocol violation: %s",
		errors.RFCCodeText("FEXEC:ErrProtocolViolation"),
	)
	ErrStateRequestNotFound = errors.Normalize(
		"request state operation %s is not found",
		errors.RFCCodeText("FEXEC:ErrStateRequestNotFound"),
	)
	ErrStateRequestFailed = errors.Normalize(
		"request state operation on key %s failed: %s",
		errors.RFCCodeText("FEXEC:ErrStateRequestFailed"),
	)
	ErrStateRequestAborted = errors.Normalize(
		"request state operation %s is aborted",
		errors.RFCCodeText("FEXEC:ErrStateRequestAborted"),
	)

	// allocation errors
	ErrAllocationNotFound = errors.Normalize(
		"allocation %s is not found",
		errors.RFCCodeText("FEXEC:ErrAllocationNotFound"),
	)
	ErrAllocationExists = errors.Normalize(
		"allocation %s already exists",
		errors.RFCCodeText("FEXEC:ErrAllocationExists"),
	)
	ErrAllocationNotTerminal = errors.Normalize(
		"allocation %s has not reached a terminal state",
		errors.RFCCodeText("FEXEC:ErrAllocationNotTerminal"),
	)
	ErrDuplicateTerminalResult = errors.Normalize(
		"allocation %s already has a terminal result",
		errors.RFCCodeText("FEXEC:ErrDuplicateTerminalResult"),
	)
	ErrInvalidStateTransition = errors.Normalize(
		"allocation %s can not move from %s to %s",
		errors.RFCCodeText("FEXEC:ErrInvalidStateTransition"),
	)
	ErrProgressNotMonotonic = errors.Normalize(
		"progress update is rejected: %s",
		errors.RFCCodeText("FEXEC:ErrProgressNotMonotonic"),
	)
	ErrInputUnresolvable = errors.Normalize(
		"function input %d can not be resolved",
		errors.RFCCodeText("FEXEC:ErrInputUnresolvable"),
	)
	ErrArgumentSchemaMismatch = errors.Normalize(
		"function arguments do not match the declared schema: %s",
		errors.RFCCodeText("FEXEC:ErrArgumentSchemaMismatch"),
	)
	ErrFunctionPanicked = errors.Normalize(
		"function panicked: %v",
		errors.RFCCodeText("FEXEC:ErrFunctionPanicked"),
	)
	ErrPlanUpdateRejected = errors.Normalize(
		"execution plan update is rejected",
		errors.RFCCodeText("FEXEC:ErrPlanUpdateRejected"),
	)

	// execution plan errors
	ErrPlanInvalidEntry = errors.Normalize(
		"plan entry %d is invalid: %s",
		errors.RFCCodeText("FEXEC:ErrPlanInvalidEntry"),
	)
	ErrPlanDuplicateID = errors.Normalize(
		"plan id %s is defined more than once",
		errors.RFCCodeText("FEXEC:ErrPlanDuplicateID"),
	)
	ErrPlanForwardReference = errors.Normalize(
		"plan entry %s references %s which is not defined before it",
		errors.RFCCodeText("FEXEC:ErrPlanForwardReference"),
	)
	ErrPlanCycle = errors.Normalize(
		"plan entry %s closes a dependency cycle",
		errors.RFCCodeText("FEXEC:ErrPlanCycle"),
	)
	ErrPlanRootNotFound = errors.Normalize(
		"plan root call id %s does not resolve",
		errors.RFCCodeText("FEXEC:ErrPlanRootNotFound"),
	)

	// serialized object errors
	ErrManifestInvalid = errors.Normalize(
		"serialized object manifest is invalid: %s",
		errors.RFCCodeText("FEXEC:ErrManifestInvalid"),
	)
	ErrUnsupportedEncoding = errors.Normalize(
		"unsupported serialized object encoding %s",
		errors.RFCCodeText("FEXEC:ErrUnsupportedEncoding"),
	)
	ErrEncodeFailed = errors.Normalize(
		"encode value with %s failed",
		errors.RFCCodeText("FEXEC:ErrEncodeFailed"),
	)
	ErrDecodeFailed = errors.Normalize(
		"decode value with %s failed",
		errors.RFCCodeText("FEXEC:ErrDecodeFailed"),
	)

	// blob errors
	ErrBlobOutOfRange = errors.Normalize(
		"range [%d, %d) is out of bounds for blob %s of size %d",
		errors.RFCCodeText("FEXEC:ErrBlobOutOfRange"),
	)
	ErrBlobHashMismatch = errors.Normalize(
		"object hash mismatch: expected %s, got %s",
		errors.RFCCodeText("FEXEC:ErrBlobHashMismatch"),
	)
	ErrBlobSizeMismatch = errors.Normalize(
		"object size mismatch: expected %d, got %d",
		errors.RFCCodeText("FEXEC:ErrBlobSizeMismatch"),
	)
	ErrBlobUnsupportedURI = errors.Normalize(
		"unsupported blob uri %s",
		errors.RFCCodeText("FEXEC:ErrBlobUnsupportedURI"),
	)
	ErrBlobBackend = errors.Normalize(
		"blob backend failed on %s",
		errors.RFCCodeText("FEXEC:ErrBlobBackend"),
	)
	ErrBlobNotFound = errors.Normalize(
		"blob %s is not found",
		errors.RFCCodeText("FEXEC:ErrBlobNotFound"),
	)
	ErrBlobSealed = errors.Normalize(
		"blob %s is sealed",
		errors.RFCCodeText("FEXEC:ErrBlobSealed"),
	)
	ErrObjectNotFound = errors.Normalize(
		"object %s is not found",
		errors.RFCCodeText("FEXEC:ErrObjectNotFound"),
	)
	ErrUploadNotFound = errors.Normalize(
		"upload %s is not found",
		errors.RFCCodeText("FEXEC:ErrUploadNotFound"),
	)
	ErrUploadExists = errors.Normalize(
		"upload %s is already in progress",
		errors.RFCCodeText("FEXEC:ErrUploadExists"),
	)
	ErrUploadOverflow = errors.Normalize(
		"upload %s received %d bytes, only %d are announced",
		errors.RFCCodeText("FEXEC:ErrUploadOverflow"),
	)
	ErrUploadRejected = errors.Normalize(
		"upload %s is rejected by the peer: %s",
		errors.RFCCodeText("FEXEC:ErrUploadRejected"),
	)

	// runtime errors
	ErrRuntimeIncomingQueueFull = errors.Normalize(
		"runtime has too many pending tasks",
		errors.RFCCodeText("FEXEC:ErrRuntimeIncomingQueueFull"),
	)
	ErrRuntimeClosed = errors.Normalize(
		"runtime has been closed",
		errors.RFCCodeText("FEXEC:ErrRuntimeClosed"),
	)
	ErrRuntimeDuplicateTaskID = errors.Normalize(
		"duplicate task ID: %s",
		errors.RFCCodeText("FEXEC:ErrRuntimeDuplicateTaskID"),
	)
	ErrTCPServerClosed = errors.Normalize(
		"tcp server has been closed",
		errors.RFCCodeText("FEXEC:ErrTCPServerClosed"),
	)

	// client errors
	ErrGrpcBuildConn = errors.Normalize(
		"dial grpc connection to %s failed",
		errors.RFCCodeText("FEXEC:ErrGrpcBuildConn"),
	)
	ErrOpenSessionRefused = errors.Normalize(
		"session %s is refused: %s",
		errors.RFCCodeText("FEXEC:ErrOpenSessionRefused"),
	)
	ErrExecutorUnhealthy = errors.Normalize(
		"function executor is unhealthy: %s",
		errors.RFCCodeText("FEXEC:ErrExecutorUnhealthy"),
	)
)
