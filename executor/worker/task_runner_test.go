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

package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pingcap/fexec/executor/worker/internal"
	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

const (
	workerNum = 100
)

type dummyTask struct {
	id RunnableID

	finishCh chan struct{}
	panics   bool

	submitTime atomic.Value
	queueWait  atomic.Float64
	canceled   atomic.Bool
}

func newDummyTask(id RunnableID) *dummyTask {
	return &dummyTask{
		id:       id,
		finishCh: make(chan struct{}),
	}
}

func (d *dummyTask) ID() RunnableID {
	return d.id
}

func (d *dummyTask) Run(ctx context.Context) error {
	if rctx, ok := ToRuntimeCtx(ctx); ok {
		d.queueWait.Store(rctx.QueueWait())
		d.submitTime.Store(rctx.SubmitTime())
	}
	if d.panics {
		panic("dummy task panics")
	}
	select {
	case <-ctx.Done():
		d.canceled.Store(true)
		return errors.Trace(ctx.Err())
	case <-d.finishCh:
		return nil
	}
}

func (d *dummyTask) SetFinished() {
	close(d.finishCh)
}

func runTaskRunner(t *testing.T, tr *TaskRunner) (context.CancelFunc, *sync.WaitGroup) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := tr.Run(ctx)
		require.Error(t, err)
		require.Regexp(t, "context canceled", err.Error())
	}()
	return cancel, &wg
}

func TestTaskRunnerBasics(t *testing.T) {
	t.Parallel()

	tr := NewTaskRunner(workerNum + 1)
	cancel, wg := runTaskRunner(t, tr)

	var tasks []*dummyTask
	for i := 0; i < workerNum; i++ {
		task := newDummyTask(fmt.Sprintf("task-%d", i))
		tasks = append(tasks, task)
		require.NoError(t, tr.AddTask(task))
	}

	require.Eventually(t, func() bool {
		return tr.TaskCount() == workerNum
	}, 1*time.Second, 10*time.Millisecond)

	for _, task := range tasks {
		task.SetFinished()
	}

	require.Eventually(t, func() bool {
		return tr.TaskCount() == 0
	}, 1*time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestTaskRunnerSubmitTime(t *testing.T) {
	t.Parallel()

	tr := NewTaskRunner(10)
	mockClock := clock.NewMock()
	tr.clock = mockClock
	submitTime := time.Unix(0, 1)
	mockClock.Set(submitTime)

	// AddTask before Run records the submit time at AddTask.
	task := newDummyTask("my-task")
	require.NoError(t, tr.AddTask(task))
	mockClock.Add(time.Hour)

	cancel, wg := runTaskRunner(t, tr)
	require.Eventually(t, func() bool {
		v := task.submitTime.Load()
		return v != nil && v.(clock.MonotonicTime) == clock.ToMono(submitTime)
	}, 1*time.Second, 10*time.Millisecond)
	require.Equal(t, []TaskInfo{{ID: "my-task", Status: "running", QueueWait: 3600}}, tr.Tasks())
	require.InDelta(t, 3600.0, task.queueWait.Load(), 1e-9)

	cancel()
	wg.Wait()
}

func TestTaskRunnerCancelAll(t *testing.T) {
	t.Parallel()

	tr := NewTaskRunner(10)
	cancel, wg := runTaskRunner(t, tr)

	tasks := []*dummyTask{newDummyTask("t1"), newDummyTask("t2")}
	for _, task := range tasks {
		require.NoError(t, tr.AddTask(task))
	}
	require.Eventually(t, func() bool {
		return tr.TaskCount() == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()
	for _, task := range tasks {
		require.True(t, task.canceled.Load())
	}
	require.Equal(t, int64(0), tr.TaskCount())
}

func TestTaskRunnerCancelTask(t *testing.T) {
	t.Parallel()

	tr := NewTaskRunner(10)
	cancel, wg := runTaskRunner(t, tr)
	defer func() {
		cancel()
		wg.Wait()
	}()

	task := newDummyTask("t1")
	require.NoError(t, tr.AddTask(task))
	require.Eventually(t, func() bool {
		return tr.TaskCount() == 1
	}, time.Second, 10*time.Millisecond)
	require.True(t, tr.CancelTask("t1"))
	require.Eventually(t, func() bool {
		return tr.TaskCount() == 0 && task.canceled.Load()
	}, time.Second, 10*time.Millisecond)
	require.False(t, tr.CancelTask("t1"))
}

func TestTaskRunnerRecoversPanic(t *testing.T) {
	t.Parallel()

	tr := NewTaskRunner(10)
	cancel, wg := runTaskRunner(t, tr)
	defer func() {
		cancel()
		wg.Wait()
	}()

	task := newDummyTask("boom")
	task.panics = true
	require.NoError(t, tr.AddTask(task))
	require.Eventually(t, func() bool {
		return task.submitTime.Load() != nil && tr.TaskCount() == 0
	}, time.Second, 10*time.Millisecond)

	// the runner keeps serving after a panic
	next := newDummyTask("next")
	require.NoError(t, tr.AddTask(next))
	require.Eventually(t, func() bool {
		return tr.TaskCount() == 1
	}, time.Second, 10*time.Millisecond)
	next.SetFinished()
}

func TestTaskRunnerQueueFull(t *testing.T) {
	t.Parallel()

	tr := NewTaskRunner(1)
	require.NoError(t, tr.AddTask(newDummyTask("t1")))
	require.Equal(t, 1, tr.QueueLen())
	err := tr.AddTask(newDummyTask("t2"))
	require.True(t, errors.Is(err, errors.ErrRuntimeIncomingQueueFull))
}

func TestTaskRunnerDuplicateID(t *testing.T) {
	t.Parallel()

	tr := NewTaskRunner(10)
	cancel, wg := runTaskRunner(t, tr)
	defer func() {
		cancel()
		wg.Wait()
	}()

	first := newDummyTask("same")
	require.NoError(t, tr.AddTask(first))
	require.Eventually(t, func() bool {
		return tr.TaskCount() == 1
	}, time.Second, 10*time.Millisecond)

	second := newDummyTask("same")
	second.panics = true
	require.NoError(t, tr.AddTask(second))
	// the duplicate is never launched
	require.Never(t, func() bool {
		return second.submitTime.Load() != nil
	}, 200*time.Millisecond, 10*time.Millisecond)
	first.SetFinished()
}

func TestToRuntimeCtx(t *testing.T) {
	t.Parallel()

	rctx := newRuntimeCtx(context.Background(), internal.RuntimeInfo{SubmitTime: clock.ToMono(time.Unix(1, 1))})
	ctx1, cancel := context.WithCancel(rctx)
	defer cancel()
	got, ok := ToRuntimeCtx(ctx1)
	require.True(t, ok)
	require.Equal(t, clock.ToMono(time.Unix(1, 1)), got.SubmitTime())

	_, ok = ToRuntimeCtx(context.Background())
	require.False(t, ok)
}
