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
	"context"
	"sync"

	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/plan"
	"github.com/pingcap/fexec/pkg/serialized"
	"go.uber.org/zap"
)

// Reporter receives what a running function emits.
type Reporter interface {
	ReportProgress(current float64, total *float64) error
	// EmitPlanUpdate validates u and returns its normalized form.
	EmitPlanUpdate(u *plan.Update) (*plan.Update, error)
	// GetState returns nil when the key has no value.
	GetState(ctx context.Context, key string) (*serialized.Object, error)
	SetState(ctx context.Context, key string, value *serialized.Object) error
}

// Info identifies the allocation a Context belongs to.
type Info struct {
	RequestID      string
	FunctionCallID string
	AllocationID   string
	App            *Application
	// UpstreamError is the error payload of a failed upstream call, if
	// any.
	UpstreamError *serialized.Value
}

// Context is passed to a Handler. It is canceled when the allocation is
// torn down.
type Context struct {
	context.Context
	Info

	reporter Reporter
	clock    clock.Clock
	logger   *zap.Logger

	mu       sync.Mutex
	timers   map[string]float64
	counters map[string]uint64
}

// NewContext creates the Context of one allocation. Timers run on clk.
func NewContext(ctx context.Context, info Info, reporter Reporter, clk clock.Clock, logger *zap.Logger) *Context {
	return &Context{
		Context:  ctx,
		Info:     info,
		reporter: reporter,
		clock:    clk,
		logger:   logger,
		timers:   make(map[string]float64),
		counters: make(map[string]uint64),
	}
}

// Logger returns a logger scoped to the allocation.
func (c *Context) Logger() *zap.Logger {
	return c.logger
}

// Application returns the application the function belongs to.
func (c *Context) Application() *Application {
	return c.App
}

// ReportProgress reports current out of total. Once total is reported it
// can not change, current must not decrease.
func (c *Context) ReportProgress(current, total float64) error {
	return c.reporter.ReportProgress(current, &total)
}

// ReportProgressUnknownTotal reports current while the total is unknown.
func (c *Context) ReportProgressUnknownTotal(current float64) error {
	return c.reporter.ReportProgress(current, nil)
}

// EmitPlanUpdate hands new calls and reduces to the caller. An update that
// fails validation fails the allocation with a function error.
func (c *Context) EmitPlanUpdate(u *plan.Update) (*plan.Update, error) {
	return c.reporter.EmitPlanUpdate(u)
}

// GetState decodes the request state stored under key into out. It
// returns false when the key has no value.
func (c *Context) GetState(key string, out any) (bool, error) {
	obj, err := c.reporter.GetState(c, key)
	if err != nil {
		return false, err
	}
	if obj == nil {
		return false, nil
	}
	if err := obj.Validate(); err != nil {
		return false, err
	}
	value, err := serialized.NewValue(obj.Manifest, obj.Data)
	if err != nil {
		return false, err
	}
	return true, value.Decode(out)
}

// SetState stores value as utf8 json under key.
func (c *Context) SetState(key string, value any) error {
	obj, err := serialized.NewObject(value, serialized.EncodingUTF8JSON,
		serialized.WithSourceFunctionCallID(c.FunctionCallID))
	if err != nil {
		return err
	}
	return c.reporter.SetState(c, key, obj)
}

// IncCounter adds delta to the named counter.
func (c *Context) IncCounter(name string, delta uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += delta
}

// ObserveTimer adds seconds to the named timer.
func (c *Context) ObserveTimer(name string, seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers[name] += seconds
}

// StartTimer returns a function that records the elapsed time under name.
func (c *Context) StartTimer(name string) func() {
	sw := clock.StartStopwatch(c.clock)
	return func() {
		c.ObserveTimer(name, sw.Seconds())
	}
}

// Metrics returns a snapshot of the recorded metrics.
func (c *Context) Metrics() *executorpb.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := &executorpb.Metrics{
		Timers:   make(map[string]float64, len(c.timers)),
		Counters: make(map[string]uint64, len(c.counters)),
	}
	for k, v := range c.timers {
		ret.Timers[k] = v
	}
	for k, v := range c.counters {
		ret.Counters[k] = v
	}
	return ret
}

// Call runs the handler of f, converting a panic into an error.
func Call(ctx *Context, f *Function, args []*serialized.Value) (ret any, err error) {
	defer func() {
		if r := recover(); r != nil {
			ret = nil
			err = errors.ErrFunctionPanicked.GenWithStackByArgs(r)
		}
	}()
	return f.Handler(ctx, args)
}
