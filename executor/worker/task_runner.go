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
	"sort"
	"sync"

	"github.com/pingcap/fexec/executor/worker/internal"
	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/logutil"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Re-export types for public use
type (
	// Runnable alias internal.Runnable
	Runnable = internal.Runnable
	// RunnableID alias internal.RunnableID
	RunnableID = internal.RunnableID
	// Status alias internal.Status
	Status = internal.Status
)

// TaskInfo is a snapshot of a launched task.
type TaskInfo struct {
	ID        RunnableID `json:"id"`
	Status    string     `json:"status"`
	QueueWait float64    `json:"queue_wait_seconds"`
}

// TaskRunner receives runnables in a FIFO way, and runs each of them in
// its own goroutine with a context canceled when the runner stops.
type TaskRunner struct {
	inQueue chan *internal.RunnableContainer

	mu      sync.Mutex
	stopped bool
	tasks   map[RunnableID]*taskEntry
	wg      sync.WaitGroup

	taskCount atomic.Int64

	clock  clock.Clock
	logger *zap.Logger
}

type taskEntry struct {
	*internal.RunnableContainer
	cancel context.CancelFunc
}

// NewTaskRunner creates a TaskRunner queueing at most inQueueSize tasks.
func NewTaskRunner(inQueueSize int) *TaskRunner {
	return &TaskRunner{
		inQueue: make(chan *internal.RunnableContainer, inQueueSize),
		tasks:   make(map[RunnableID]*taskEntry),
		clock:   clock.New(),
		logger:  logutil.NewLogger4Component("task-runner"),
	}
}

// AddTask enqueues a task. It never blocks, a full queue is an error.
func (r *TaskRunner) AddTask(task Runnable) error {
	wrapped := internal.WrapRunnable(task, r.clock.Mono())
	select {
	case r.inQueue <- wrapped:
		queuedTaskGauge.Inc()
		return nil
	default:
	}
	return errors.ErrRuntimeIncomingQueueFull.GenWithStackByArgs()
}

// Run launches queued tasks until ctx is canceled. On return every running
// task is canceled and waited for. Tasks still queued are dropped.
func (r *TaskRunner) Run(ctx context.Context) error {
	defer r.stop()

	for {
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case task := <-r.inQueue:
			queuedTaskGauge.Dec()
			if err := r.launch(task); err != nil {
				task.OnStopped()
				r.logger.Warn("failed to launch task",
					zap.String("id", task.ID()),
					zap.Error(err))
			}
		}
	}
}

// TaskCount returns the number of running tasks.
func (r *TaskRunner) TaskCount() int64 {
	return r.taskCount.Load()
}

// QueueLen returns the number of tasks waiting to be launched.
func (r *TaskRunner) QueueLen() int {
	return len(r.inQueue)
}

// Tasks returns the running tasks sorted by id.
func (r *TaskRunner) Tasks() []TaskInfo {
	r.mu.Lock()
	ret := make([]TaskInfo, 0, len(r.tasks))
	for id, t := range r.tasks {
		ret = append(ret, TaskInfo{
			ID:        id,
			Status:    t.Status().String(),
			QueueWait: t.Info().QueueWait(),
		})
	}
	r.mu.Unlock()
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].ID < ret[j].ID
	})
	return ret
}

// CancelTask cancels the context of a running task.
func (r *TaskRunner) CancelTask(id RunnableID) bool {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()
	if ok {
		t.cancel()
	}
	return ok
}

func (r *TaskRunner) stop() {
	r.mu.Lock()
	r.stopped = true
	for id, t := range r.tasks {
		r.logger.Info("cancelling task", zap.String("id", id))
		t.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *TaskRunner) launch(task *internal.RunnableContainer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return errors.ErrRuntimeClosed.GenWithStackByArgs()
	}
	if _, exists := r.tasks[task.ID()]; exists {
		return errors.ErrRuntimeDuplicateTaskID.GenWithStackByArgs(task.ID())
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	entry := &taskEntry{RunnableContainer: task, cancel: cancel}
	r.tasks[task.ID()] = entry
	task.OnLaunched(r.clock.Mono())
	queueWaitHistogram.Observe(task.Info().QueueWait())

	r.wg.Add(1)
	r.taskCount.Inc()
	go r.runTask(newRuntimeCtx(taskCtx, task.Info()), entry)
	return nil
}

func (r *TaskRunner) runTask(rctx *RuntimeContext, entry *taskEntry) {
	sw := clock.StartStopwatch(r.clock)
	var err error
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic: %v", p)
			r.logger.Error("task panicked", zap.String("id", entry.ID()), zap.Error(err))
		}
		entry.cancel()
		entry.OnStopped()

		r.mu.Lock()
		delete(r.tasks, entry.ID())
		r.mu.Unlock()
		r.taskCount.Dec()

		result := "ok"
		if err != nil {
			result = "error"
		}
		taskDurationHistogram.WithLabelValues(result).Observe(sw.Seconds())
		r.logger.Debug("task stopped",
			zap.String("id", entry.ID()),
			logutil.ShortError(err),
			zap.Duration("duration", sw.Elapsed()),
			zap.Int64("running", r.taskCount.Load()))
		r.wg.Done()
	}()

	r.logger.Debug("task launched",
		zap.String("id", entry.ID()),
		zap.Float64("queueWaitSeconds", entry.Info().QueueWait()))
	err = entry.Run(rctx)
}
