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

package logutil

import (
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

const (
	constFieldSessionKey      = "session_id"
	constFieldRequestKey      = "request_id"
	constFieldFunctionCallKey = "function_call_id"
	constFieldAllocationKey   = "allocation_id"
	constFieldComponentKey    = "component"
)

// NewLogger4Component returns a logger for a named executor component.
func NewLogger4Component(component string) *zap.Logger {
	return log.L().With(zap.String(constFieldComponentKey, component))
}

// NewLogger4Session returns a new logger for a session
func NewLogger4Session(sessionID string) *zap.Logger {
	return log.L().With(
		zap.String(constFieldSessionKey, sessionID),
	)
}

// NewLogger4Allocation returns a new logger for an allocation running in a session
func NewLogger4Allocation(sessionID, requestID, functionCallID, allocationID string) *zap.Logger {
	return log.L().With(
		zap.String(constFieldSessionKey, sessionID),
		zap.String(constFieldRequestKey, requestID),
		zap.String(constFieldFunctionCallKey, functionCallID),
		zap.String(constFieldAllocationKey, allocationID),
	)
}
