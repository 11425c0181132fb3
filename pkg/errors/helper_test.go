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
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapError(t *testing.T) {
	t.Parallel()

	var (
		rfcError  = ErrBlobBackend
		err       = errors.New("test")
		testCases = []struct {
			err      error
			isNil    bool
			expected string
			args     []interface{}
		}{
			{nil, true, "", []interface{}{}},
			{err, false, "[FEXEC:ErrBlobBackend]blob backend failed on s3://bucket/key: test", []interface{}{"s3://bucket/key"}},
		}
	)
	for _, tc := range testCases {
		we := WrapError(rfcError, tc.err, tc.args...)
		if tc.isNil {
			require.Nil(t, we)
		} else {
			require.NotNil(t, we)
			require.Equal(t, tc.expected, we.Error())
			require.True(t, Is(we, ErrBlobBackend))
			require.False(t, Is(we, ErrBlobNotFound))
			code, ok := RFCCode(we)
			require.True(t, ok)
			require.Equal(t, errors.RFCErrorCode("FEXEC:ErrBlobBackend"), code)
		}
	}
}

func TestIs(t *testing.T) {
	t.Parallel()

	err := ErrAllocationNotFound.GenWithStackByArgs("a1")
	require.True(t, Is(err, ErrAllocationNotFound))
	require.True(t, Is(errors.Trace(err), ErrAllocationNotFound))
	require.True(t, Is(errors.Annotate(err, "delete"), ErrAllocationNotFound))
	require.True(t, IsAny(err, ErrUnknown, ErrAllocationNotFound))
	require.False(t, Is(errors.New("plain"), ErrAllocationNotFound))
	require.False(t, Is(nil, ErrAllocationNotFound))

	_, ok := RFCCode(errors.New("plain"))
	require.False(t, ok)
}

func TestToGRPCError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		code codes.Code
	}{
		{ErrAllocationNotFound.GenWithStackByArgs("a1"), codes.NotFound},
		{ErrAllocationNotTerminal.GenWithStackByArgs("a1"), codes.FailedPrecondition},
		{ErrNotInitialized.GenWithStackByArgs(), codes.FailedPrecondition},
		{ErrSessionLimitExceeded.GenWithStackByArgs(2), codes.ResourceExhausted},
		{WrapError(ErrInvalidArgument, errors.New("bad"), "x"), codes.InvalidArgument},
		{errors.Trace(context.Canceled), codes.Canceled},
		{errors.New("unknown"), codes.Internal},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, cs := range cases {
		st, ok := status.FromError(ToGRPCError(cs.err))
		require.True(t, ok)
		require.Equal(t, cs.code, st.Code(), cs.err.Error())
	}
	require.Nil(t, ToGRPCError(nil))
}
