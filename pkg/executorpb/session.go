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
	"github.com/pingcap/fexec/pkg/plan"
	"github.com/pingcap/fexec/pkg/serialized"
)

// ClientMessage is sent by the caller on a session stream. Exactly one
// field is set.
type ClientMessage struct {
	OpenSession          *OpenSessionRequest       `json:"open_session,omitempty"`
	LeaveSession         *LeaveSessionRequest      `json:"leave_session,omitempty"`
	UploadObject         *UploadObject             `json:"upload_object,omitempty"`
	UploadObjectResponse *UploadObjectResponse     `json:"upload_object_response,omitempty"`
	SubmitAllocations    *SubmitAllocationsRequest `json:"submit_allocations,omitempty"`
	RequestStateResponse *RequestStateResponse     `json:"request_state_response,omitempty"`
}

// ServerMessage is sent by the executor on a session stream. Exactly one
// field is set.
type ServerMessage struct {
	OpenSessionResponse       *OpenSessionResponse       `json:"open_session_response,omitempty"`
	LeaveSessionResponse      *LeaveSessionResponse      `json:"leave_session_response,omitempty"`
	UploadObject              *UploadObject              `json:"upload_object,omitempty"`
	UploadObjectResponse      *UploadObjectResponse      `json:"upload_object_response,omitempty"`
	SubmitAllocationsResponse *SubmitAllocationsResponse `json:"submit_allocations_response,omitempty"`
	AllocationProgress        *AllocationProgress        `json:"allocation_progress,omitempty"`
	AllocationPlanUpdate      *AllocationPlanUpdate      `json:"allocation_plan_update,omitempty"`
	AllocationResult          *AllocationResultMessage   `json:"allocation_result,omitempty"`
	RequestStateRequest       *RequestStateRequest       `json:"request_state_request,omitempty"`
	ProtocolError             *ProtocolError             `json:"protocol_error,omitempty"`
}

type OpenSessionRequest struct {
	SessionID string `json:"session_id"`
}

type OpenSessionResponse struct {
	Accepted bool   `json:"accepted"`
	IsNew    bool   `json:"is_new"`
	Message  string `json:"message,omitempty"`
}

type LeaveSessionRequest struct {
	// Close tears the session down. Otherwise the stream detaches and
	// allocations keep running.
	Close bool `json:"close"`
}

type LeaveSessionResponse struct{}

// UploadObject starts an upload when Manifest is set, every following
// message with the same UploadID carries a chunk of the object bytes.
type UploadObject struct {
	UploadID string `json:"upload_id"`
	// BLOBID groups objects into one blob, defaults to the upload id.
	BLOBID   string               `json:"blob_id,omitempty"`
	Manifest *serialized.Manifest `json:"manifest,omitempty"`
	Chunk    []byte               `json:"chunk,omitempty"`
}

type UploadStatus int32

const (
	UploadStatusUnknown UploadStatus = iota
	UploadStatusOK
	UploadStatusFailed
)

type UploadObjectResponse struct {
	UploadID  string       `json:"upload_id"`
	Status    UploadStatus `json:"status"`
	ObjectID  string       `json:"object_id,omitempty"`
	Duplicate bool         `json:"duplicate,omitempty"`
	Message   string       `json:"message,omitempty"`
}

type SubmitAllocationsRequest struct {
	Allocations []*AllocationInputs `json:"allocations"`
}

type RejectedAllocation struct {
	AllocationID string `json:"allocation_id"`
	Reason       string `json:"reason"`
}

type SubmitAllocationsResponse struct {
	Accepted []string             `json:"accepted"`
	Rejected []RejectedAllocation `json:"rejected,omitempty"`
}

type AllocationProgress struct {
	AllocationID string    `json:"allocation_id"`
	Progress     *Progress `json:"progress"`
}

type AllocationPlanUpdate struct {
	AllocationID string       `json:"allocation_id"`
	Update       *plan.Update `json:"update"`
}

type AllocationResultMessage struct {
	AllocationID string            `json:"allocation_id"`
	Result       *AllocationResult `json:"result"`
}

type StateGet struct {
	Key string `json:"key"`
}

type StateSet struct {
	Key   string             `json:"key"`
	Value *serialized.Object `json:"value"`
}

// RequestStateRequest asks the caller for request scoped state. Exactly one
// of Get and Set is set.
type RequestStateRequest struct {
	StateRequestID string    `json:"state_request_id"`
	AllocationID   string    `json:"allocation_id"`
	Get            *StateGet `json:"get,omitempty"`
	Set            *StateSet `json:"set,omitempty"`
}

type RequestStateResponse struct {
	StateRequestID string `json:"state_request_id"`
	OK             bool   `json:"ok"`
	// Value is the result of a get, nil if the key has no value.
	Value   *serialized.Object `json:"value,omitempty"`
	Message string             `json:"message,omitempty"`
}

type ProtocolError struct {
	Message      string `json:"message"`
	AllocationID string `json:"allocation_id,omitempty"`
}
