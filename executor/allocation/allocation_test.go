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
	"sync"
	"testing"

	"github.com/pingcap/fexec/executor/function"
	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func newTestAllocation(t *testing.T, id string) *Allocation {
	a, err := New("s1", &executorpb.AllocationInputs{
		RequestID:      "r1",
		FunctionCallID: "call-" + id,
		AllocationID:   id,
	}, clock.NewMock())
	require.NoError(t, err)
	return a
}

func TestNewValidatesIDs(t *testing.T) {
	t.Parallel()

	_, err := New("s1", nil, clock.New())
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))
	_, err = New("s1", &executorpb.AllocationInputs{AllocationID: "a1"}, clock.New())
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestStateTransitions(t *testing.T) {
	t.Parallel()

	a := newTestAllocation(t, "a1")
	require.Equal(t, executorpb.AllocationStateCreated, a.State())

	err := a.Finish(Success(nil, nil))
	require.True(t, errors.Is(err, errors.ErrInvalidStateTransition))

	require.NoError(t, a.Start())
	err = a.Start()
	require.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
	require.Equal(t, executorpb.AllocationStateRunning, a.State())

	require.NoError(t, a.Finish(Success(nil, nil)))
	require.Equal(t, executorpb.AllocationStateSucceeded, a.State())
	select {
	case <-a.Done():
	default:
		t.Fatal("done is not closed")
	}

	err = a.Finish(InternalFailure("late"))
	require.True(t, errors.Is(err, errors.ErrDuplicateTerminalResult))
	require.Equal(t, executorpb.AllocationOutcomeSuccess, a.Result().Outcome)
	require.Equal(t, executorpb.AllocationStateSucceeded, a.Info().State)
}

func TestFailWhileCreated(t *testing.T) {
	t.Parallel()

	a := newTestAllocation(t, "a1")
	require.NoError(t, a.Finish(RequestFailure("bad input")))
	require.Equal(t, executorpb.AllocationStateFailed, a.State())
	err := a.Start()
	require.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
}

func TestExactlyOnceTerminalResult(t *testing.T) {
	t.Parallel()

	a := newTestAllocation(t, "a1")
	require.NoError(t, a.Start())

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		rejected atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result := Success(nil, nil)
			if i%2 == 0 {
				result = InternalFailure("teardown")
			}
			err := a.Finish(result)
			if err == nil {
				accepted.Inc()
				return
			}
			require.True(t, errors.Is(err, errors.ErrDuplicateTerminalResult))
			rejected.Inc()
		}(i)
	}
	wg.Wait()
	require.Equal(t, int32(1), accepted.Load())
	require.Equal(t, int32(49), rejected.Load())
}

func TestProgressMonotonic(t *testing.T) {
	t.Parallel()

	a := newTestAllocation(t, "a1")
	_, err := a.UpdateProgress(1, nil)
	require.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
	require.NoError(t, a.Start())

	total := func(v float64) *float64 { return &v }

	p, err := a.UpdateProgress(1, nil)
	require.NoError(t, err)
	require.Nil(t, p.Total)

	_, err = a.UpdateProgress(0.5, nil)
	require.True(t, errors.Is(err, errors.ErrProgressNotMonotonic))
	_, err = a.UpdateProgress(-1, nil)
	require.True(t, errors.Is(err, errors.ErrProgressNotMonotonic))

	p, err = a.UpdateProgress(2, total(10))
	require.NoError(t, err)
	require.Equal(t, 10.0, *p.Total)

	_, err = a.UpdateProgress(3, total(20))
	require.True(t, errors.Is(err, errors.ErrProgressNotMonotonic))
	_, err = a.UpdateProgress(11, nil)
	require.True(t, errors.Is(err, errors.ErrProgressNotMonotonic))

	// total stays once known
	p, err = a.UpdateProgress(3, nil)
	require.NoError(t, err)
	require.Equal(t, 10.0, *p.Total)
	p, err = a.UpdateProgress(3, total(10))
	require.NoError(t, err)
	require.Equal(t, 3.0, p.Current)

	info := a.Info()
	require.Equal(t, 3.0, info.Progress.Current)
	require.Equal(t, 10.0, *info.Progress.Total)
}

func TestTable(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	a1 := newTestAllocation(t, "a1")
	require.NoError(t, tbl.Add(a1))
	err := tbl.Add(newTestAllocation(t, "a1"))
	require.True(t, errors.Is(err, errors.ErrAllocationExists))

	retry, err := New("s1", &executorpb.AllocationInputs{
		RequestID: "r1", FunctionCallID: "call-a1", AllocationID: "a2",
	}, clock.New())
	require.NoError(t, err)
	require.NoError(t, tbl.Add(retry))
	byCall := tbl.ByFunctionCall("call-a1")
	require.Len(t, byCall, 2)
	require.Equal(t, "a1", byCall[0].ID)
	require.Equal(t, "a2", byCall[1].ID)

	err = tbl.Delete("missing")
	require.True(t, errors.Is(err, errors.ErrAllocationNotFound))
	require.NoError(t, a1.Start())
	err = tbl.Delete("a1")
	require.True(t, errors.Is(err, errors.ErrAllocationNotTerminal))

	require.NoError(t, a1.Finish(Success(nil, nil)))
	require.NoError(t, tbl.Delete("a1"))
	_, ok := tbl.Get("a1")
	require.False(t, ok)
	require.Len(t, tbl.ByFunctionCall("call-a1"), 1)
	require.Equal(t, 1, tbl.Len())
	require.Equal(t, "a2", tbl.List()[0].ID)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		reason executorpb.AllocationFailureReason
	}{
		{nil, executorpb.AllocationFailureReasonUnknown},
		{function.NewError("business", nil), executorpb.AllocationFailureReasonFunctionError},
		{function.NewRequestError("bad"), executorpb.AllocationFailureReasonRequestError},
		{errors.ErrInputUnresolvable.GenWithStackByArgs(0), executorpb.AllocationFailureReasonRequestError},
		{errors.WrapError(errors.ErrInputUnresolvable, errors.ErrObjectNotFound.GenWithStackByArgs("x"), 0),
			executorpb.AllocationFailureReasonRequestError},
		{errors.ErrPlanForwardReference.GenWithStackByArgs("c2", "c3"), executorpb.AllocationFailureReasonFunctionError},
		{errors.ErrFunctionPanicked.GenWithStackByArgs("boom"), executorpb.AllocationFailureReasonFunctionError},
		{errors.ErrBlobHashMismatch.GenWithStackByArgs("a", "b"), executorpb.AllocationFailureReasonInternalError},
		{errors.ErrBlobBackend.GenWithStackByArgs("s3://b/k"), executorpb.AllocationFailureReasonInternalError},
		{errors.New("plain"), executorpb.AllocationFailureReasonInternalError},
	}
	for i, c := range cases {
		require.Equal(t, c.reason, Classify(c.err), "case %d", i)
	}
	require.Equal(t, executorpb.AllocationFailureReasonFunctionError, classifyHandlerError(errors.New("plain")))
}
