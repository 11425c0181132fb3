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

	"github.com/pingcap/fexec/pkg/serialized"
)

// Error is raised by a function on purpose. Payload is serialized and
// handed to the caller as the function error of the allocation.
type Error struct {
	Message string
	Payload any
	// Encoding of Payload, utf8-json when unset.
	Encoding serialized.Encoding
}

// NewError returns a function error carrying payload.
func NewError(message string, payload any) *Error {
	return &Error{Message: message, Payload: payload}
}

func (e *Error) Error() string {
	return e.Message
}

// PayloadObject serializes the payload. A nil payload yields the message
// as utf8 text.
func (e *Error) PayloadObject(callID string) (*serialized.Object, error) {
	if e.Payload == nil {
		return serialized.NewObjectFromBytes(serialized.EncodingUTF8Text, []byte(e.Message),
			serialized.WithSourceFunctionCallID(callID)), nil
	}
	enc := e.Encoding
	if enc == serialized.EncodingUnknown {
		enc = serialized.EncodingUTF8JSON
	}
	return serialized.NewObject(e.Payload, enc, serialized.WithSourceFunctionCallID(callID))
}

// RequestError reports that the request itself is malformed, for example
// an argument that decodes but makes no sense to the function.
type RequestError struct {
	Message string
}

// NewRequestError returns a RequestError with a formatted message.
func NewRequestError(format string, args ...any) *RequestError {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

func (e *RequestError) Error() string {
	return e.Message
}
