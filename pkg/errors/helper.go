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
	"context"

	"github.com/pingcap/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error is a normalized error with an RFC code.
type Error = errors.Error

// Re-export helpers of pingcap/errors so callers only import this package.
var (
	New        = errors.New
	Errorf     = errors.Errorf
	Trace      = errors.Trace
	Cause      = errors.Cause
	Annotate   = errors.Annotate
	Annotatef  = errors.Annotatef
	ErrorStack = errors.ErrorStack
	ErrorEqual = errors.ErrorEqual
)

// WrapError generates a new error based on the given `*errors.Error`,
// wrapping the given error as its cause.
func WrapError(rfcError *errors.Error, err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return rfcError.Wrap(err).GenWithStackByCause(args...)
}

// RFCCode returns the RFC code of the outermost normalized error in the
// chain of err.
func RFCCode(err error) (errors.RFCErrorCode, bool) {
	for err != nil {
		if terr, ok := err.(*errors.Error); ok {
			return terr.RFCCode(), true
		}
		err = unwrapOnce(err)
	}
	return "", false
}

// Is reports whether any error in the chain of err carries the RFC code of
// target. Unlike target.Equal it also sees normalized errors that wrap a
// third party cause.
func Is(err error, target *errors.Error) bool {
	for err != nil {
		if terr, ok := err.(*errors.Error); ok && terr.RFCCode() == target.RFCCode() {
			return true
		}
		err = unwrapOnce(err)
	}
	return false
}

// IsAny reports whether err matches any of the given normalized errors.
func IsAny(err error, targets ...*errors.Error) bool {
	for _, target := range targets {
		if Is(err, target) {
			return true
		}
	}
	return false
}

func unwrapOnce(err error) error {
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return u.Unwrap()
	}
	if c, ok := err.(interface{ Cause() error }); ok {
		next := c.Cause()
		if next == err {
			return nil
		}
		return next
	}
	return nil
}

var grpcCodeByError = []struct {
	err  *errors.Error
	code codes.Code
}{
	{ErrNotInitialized, codes.FailedPrecondition},
	{ErrAlreadyInitialized, codes.FailedPrecondition},
	{ErrInitializationFailed, codes.FailedPrecondition},
	{ErrAllocationNotFound, codes.NotFound},
	{ErrObjectNotFound, codes.NotFound},
	{ErrAllocationNotTerminal, codes.FailedPrecondition},
	{ErrAllocationExists, codes.AlreadyExists},
	{ErrSessionAttached, codes.AlreadyExists},
	{ErrSessionLimitExceeded, codes.ResourceExhausted},
	{ErrRuntimeIncomingQueueFull, codes.ResourceExhausted},
	{ErrInvalidArgument, codes.InvalidArgument},
	{ErrProtocolViolation, codes.InvalidArgument},
	{ErrManifestInvalid, codes.InvalidArgument},
}

// ToGRPCError converts err into a gRPC status error. Normalized errors are
// mapped to the closest status code, everything else becomes Internal.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch errors.Cause(err) {
	case context.Canceled:
		return status.Error(codes.Canceled, err.Error())
	case context.DeadlineExceeded:
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	for _, item := range grpcCodeByError {
		if Is(err, item.err) {
			return status.Error(item.code, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}
