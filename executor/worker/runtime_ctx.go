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

	"github.com/pingcap/fexec/executor/worker/internal"
	"github.com/pingcap/fexec/pkg/clock"
)

// RuntimeContext is the context passed to a running task.
type RuntimeContext struct {
	context.Context
	info internal.RuntimeInfo
}

type runtimeCtxKey struct{}

func newRuntimeCtx(ctx context.Context, info internal.RuntimeInfo) *RuntimeContext {
	rctx := &RuntimeContext{info: info}
	rctx.Context = context.WithValue(ctx, runtimeCtxKey{}, rctx)
	return rctx
}

// ToRuntimeCtx finds the RuntimeContext ctx is derived from.
func ToRuntimeCtx(ctx context.Context) (*RuntimeContext, bool) {
	rctx, ok := ctx.Value(runtimeCtxKey{}).(*RuntimeContext)
	return rctx, ok
}

// SubmitTime returns when the task was queued.
func (c *RuntimeContext) SubmitTime() clock.MonotonicTime {
	return c.info.SubmitTime
}

// QueueWait returns the seconds the task waited in the queue.
func (c *RuntimeContext) QueueWait() float64 {
	return c.info.QueueWait()
}
