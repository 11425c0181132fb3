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
package internal

import (
	"context"

	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// RunnableID identifies a runnable.
type RunnableID = string

// Runnable is a unit of work run in its own goroutine.
type Runnable interface {
	ID() RunnableID
	Run(ctx context.Context) error
}

// Status is the lifecycle status of a runnable. It only moves forward.
type Status int32

// Runnable statuses.
const (
	StatusQueued Status = iota + 1
	StatusRunning
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	}
	return "unknown"
}

// RuntimeInfo is recorded when a runnable is queued and launched.
type RuntimeInfo struct {
	SubmitTime clock.MonotonicTime
	LaunchTime clock.MonotonicTime
}

// QueueWait returns how long the runnable waited before it was launched.
func (i RuntimeInfo) QueueWait() float64 {
	return i.LaunchTime.Sub(i.SubmitTime).Seconds()
}

// RunnableContainer tracks the status of a runnable.
type RunnableContainer struct {
	Runnable
	status atomic.Int32
	info   RuntimeInfo
}

// WrapRunnable wraps runnable in a queued container.
func WrapRunnable(runnable Runnable, submitTime clock.MonotonicTime) *RunnableContainer {
	c := &RunnableContainer{
		Runnable: runnable,
		info:     RuntimeInfo{SubmitTime: submitTime},
	}
	c.status.Store(int32(StatusQueued))
	return c
}

// Status returns the current status.
func (c *RunnableContainer) Status() Status {
	return Status(c.status.Load())
}

// Info returns the runtime info.
func (c *RunnableContainer) Info() RuntimeInfo {
	return c.info
}

// OnLaunched marks the runnable running. It must be called before the
// runnable is handed to its goroutine.
func (c *RunnableContainer) OnLaunched(now clock.MonotonicTime) {
	c.info.LaunchTime = now
	c.transit(StatusRunning, StatusQueued)
}

// OnStopped marks the runnable stopped.
func (c *RunnableContainer) OnStopped() {
	c.transit(StatusStopped, StatusQueued, StatusRunning)
}

func (c *RunnableContainer) transit(to Status, from ...Status) {
	old := Status(c.status.Swap(int32(to)))
	for _, s := range from {
		if old == s {
			return
		}
	}
	log.L().Panic("unexpected runnable status",
		zap.String("id", c.ID()), zap.Stringer("from", old), zap.Stringer("to", to))
}
