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
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/pingcap/fexec/executor/function"
	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/logutil"
	"github.com/pingcap/fexec/pkg/plan"
	"github.com/pingcap/fexec/pkg/serialized"
	"github.com/pingcap/fexec/pkg/tracing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Timers recorded in the metrics of every result.
const (
	TimerResolveInputs = "resolve_inputs"
	TimerRunFunction   = "run_function"
	TimerStoreOutput   = "store_output"
)

// DefaultInlineOutputLimit is the largest output returned inline.
const DefaultInlineOutputLimit = 64 << 10

// Emitter delivers what an allocation emits to the caller. The Emit
// methods must not block on the network.
type Emitter interface {
	EmitProgress(a *Allocation, p *executorpb.Progress)
	EmitPlanUpdate(a *Allocation, u *plan.Update)
	EmitResult(a *Allocation, r *executorpb.AllocationResult)
	GetState(ctx context.Context, a *Allocation, key string) (*serialized.Object, error)
	SetState(ctx context.Context, a *Allocation, key string, value *serialized.Object) error
}

// Env is what an allocation uses from the session it runs in.
type Env struct {
	Emitter  Emitter
	Resolver *Resolver
	// Sink stores outputs larger than the inline limit. Outputs are
	// inline when it is nil.
	Sink OutputSink
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock sets the clock used for timers and plan timestamps.
func WithClock(clk clock.Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = clk
	}
}

// WithInlineOutputLimit sets the largest output returned inline.
func WithInlineOutputLimit(limit uint64) RunnerOption {
	return func(r *Runner) {
		r.inlineLimit = limit
	}
}

// Runner runs allocations of the function an executor is bound to.
type Runner struct {
	fn          *function.Function
	app         *function.Application
	clock       clock.Clock
	inlineLimit uint64

	progressLogLimiter *rate.Limiter
}

// NewRunner creates a Runner for fn.
func NewRunner(fn *function.Function, app *function.Application, opts ...RunnerOption) *Runner {
	r := &Runner{
		fn:                 fn,
		app:                app,
		clock:              clock.New(),
		inlineLimit:        DefaultInlineOutputLimit,
		progressLogLimiter: rate.NewLimiter(rate.Every(time.Second), 1 /*burst*/),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Function returns the function the runner invokes.
func (r *Runner) Function() *function.Function {
	return r.fn
}

// Clock returns the clock of the runner.
func (r *Runner) Clock() clock.Clock {
	return r.clock
}

// Run executes a and sets its terminal result, which is then emitted. If
// another party finished a first, for example a session teardown, the
// result of the run is dropped.
func (r *Runner) Run(ctx context.Context, a *Allocation, env Env) {
	logger := logutil.NewLogger4Allocation(a.SessionID, a.RequestID, a.FunctionCallID, a.ID)
	ctx, span := tracing.StartSpan(ctx, "allocation.run",
		tracing.AttrSessionID.String(a.SessionID),
		tracing.AttrRequestID.String(a.RequestID),
		tracing.AttrFunctionCallID.String(a.FunctionCallID),
		tracing.AttrAllocationID.String(a.ID),
		tracing.AttrFunctionName.String(r.fn.Name))
	if env.Resolver == nil {
		env.Resolver = NewResolver(nil, nil)
	}

	timers := make(map[string]float64)
	result, fctx := r.runRecovered(ctx, a, env, timers, logger)
	metrics := &executorpb.Metrics{Timers: timers, Counters: make(map[string]uint64)}
	if fctx != nil {
		user := fctx.Metrics()
		for k, v := range user.Timers {
			metrics.Timers[k] = v
		}
		for k, v := range user.Counters {
			metrics.Counters[k] = v
		}
	}
	result.Metrics = metrics
	span.SetAttributes(tracing.AttrOutcome.String(result.Outcome.String()))

	if err := a.Finish(result); err != nil {
		logger.Info("allocation is already finished, drop result",
			zap.Stringer("outcome", result.Outcome),
			zap.Stringer("reason", result.FailureReason),
			zap.Error(err))
		tracing.EndSpan(span, err)
		return
	}
	allocationCounter.WithLabelValues(result.Outcome.String(), result.FailureReason.String()).Inc()
	for name, seconds := range timers {
		phaseDurationHistogram.WithLabelValues(name).Observe(seconds)
	}
	env.Emitter.EmitResult(a, result)

	logger.Info("allocation finished",
		zap.Stringer("outcome", result.Outcome),
		zap.Stringer("reason", result.FailureReason),
		zap.String("message", result.Message))
	var spanErr error
	if result.Outcome == executorpb.AllocationOutcomeFailure {
		spanErr = errors.New(result.Message)
	}
	tracing.EndSpan(span, spanErr)
}

// runRecovered runs the allocation and turns a runtime panic into an
// internal failure, so the allocation still gets its terminal result.
func (r *Runner) runRecovered(
	ctx context.Context, a *Allocation, env Env, timers map[string]float64, logger *zap.Logger,
) (result *executorpb.AllocationResult, fctx *function.Context) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("allocation runner panicked", zap.Any("panic", p), zap.Stack("stack"))
			result, fctx = InternalFailure(fmt.Sprintf("executor panicked: %v", p)), nil
		}
	}()
	return r.run(ctx, a, env, timers, logger)
}

func (r *Runner) run(
	ctx context.Context, a *Allocation, env Env, timers map[string]float64, logger *zap.Logger,
) (*executorpb.AllocationResult, *function.Context) {
	sw := clock.StartStopwatch(r.clock)
	args, upstream, err := r.resolveInputs(ctx, a, env.Resolver)
	timers[TimerResolveInputs] = sw.Seconds()
	if err != nil {
		logger.Warn("resolve allocation inputs failed", zap.Error(err))
		if Classify(err) == executorpb.AllocationFailureReasonRequestError {
			return RequestFailure(err.Error()), nil
		}
		return InternalFailure(err.Error()), nil
	}
	manifests := make([]serialized.Manifest, len(args))
	for i, arg := range args {
		manifests[i] = arg.Manifest
	}
	if err := r.fn.Schema.Check(manifests); err != nil {
		return RequestFailure(err.Error()), nil
	}
	if err := a.Start(); err != nil {
		return InternalFailure(err.Error()), nil
	}
	runningAllocationGauge.Inc()
	defer runningAllocationGauge.Dec()

	rep := &reporter{
		alloc:   a,
		emitter: env.Emitter,
		logger:  logger,
		limiter: r.progressLogLimiter,
	}
	fctx := function.NewContext(ctx, function.Info{
		RequestID:      a.RequestID,
		FunctionCallID: a.FunctionCallID,
		AllocationID:   a.ID,
		App:            r.app,
		UpstreamError:  upstream,
	}, rep, r.clock, logger)

	sw.Restart()
	out, err := function.Call(fctx, r.fn, args)
	timers[TimerRunFunction] = sw.Seconds()
	if ctx.Err() != nil {
		return InternalFailure("allocation is canceled: " + ctx.Err().Error()), fctx
	}
	if rejected := rep.rejection(); rejected != nil {
		logger.Warn("function emitted an invalid plan update", zap.Error(rejected))
		err = rejected
	}
	if err != nil {
		return r.failure(ctx, a, env, timers, err), fctx
	}

	if u, ok := out.(*plan.Update); ok {
		if _, err := a.ApplyPlanUpdate(u); err != nil {
			return r.failure(ctx, a, env, timers, err), fctx
		}
		return Success(nil, a.PlanUpdates()), fctx
	}

	obj, err := r.toObject(a, out)
	if err != nil {
		return r.failure(ctx, a, env, timers, err), fctx
	}
	sw.Restart()
	ref, err := r.storeOutput(ctx, a, env.Sink, obj)
	timers[TimerStoreOutput] = sw.Seconds()
	if err != nil {
		logger.Warn("store allocation output failed", zap.Error(err))
		return InternalFailure(err.Error()), fctx
	}
	return Success(ref, a.PlanUpdates()), fctx
}

func (r *Runner) resolveInputs(
	ctx context.Context, a *Allocation, res *Resolver,
) ([]*serialized.Value, *serialized.Value, error) {
	in := a.Inputs
	refs := make([]*blob.ObjectRef, 0, len(in.Args)+1)
	if in.Accumulator != nil {
		if !r.fn.Schema.Reducer {
			return nil, nil, errors.ErrInvalidArgument.GenWithStackByArgs(
				"accumulator is given to function " + r.fn.Name + " which is not a reducer")
		}
		refs = append(refs, in.Accumulator)
	}
	refs = append(refs, in.Args...)

	args := make([]*serialized.Value, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			v, err := res.resolveInput(gctx, i, ref)
			if err != nil {
				return err
			}
			args[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var upstream *serialized.Value
	if in.UpstreamError != nil {
		v, err := res.resolveInput(ctx, len(refs), in.UpstreamError)
		if err != nil {
			return nil, nil, err
		}
		upstream = v
	}
	return args, upstream, nil
}

// classifyHandlerError treats plain errors returned by user code as
// function errors.
func classifyHandlerError(err error) executorpb.AllocationFailureReason {
	reason := Classify(err)
	if reason != executorpb.AllocationFailureReasonInternalError {
		return reason
	}
	if _, coded := errors.RFCCode(err); !coded {
		return executorpb.AllocationFailureReasonFunctionError
	}
	return reason
}

func (r *Runner) failure(
	ctx context.Context, a *Allocation, env Env, timers map[string]float64, err error,
) *executorpb.AllocationResult {
	switch classifyHandlerError(err) {
	case executorpb.AllocationFailureReasonRequestError:
		return RequestFailure(err.Error())
	case executorpb.AllocationFailureReasonFunctionError:
	default:
		return InternalFailure(err.Error())
	}

	var payload *serialized.Object
	var fnErr *function.Error
	if stderrors.As(err, &fnErr) {
		obj, encErr := fnErr.PayloadObject(a.FunctionCallID)
		if encErr != nil {
			return InternalFailure("serialize function error payload: " + encErr.Error())
		}
		payload = obj
	} else {
		payload = serialized.NewObjectFromBytes(serialized.EncodingUTF8Text, []byte(err.Error()),
			serialized.WithSourceFunctionCallID(a.FunctionCallID))
	}

	sw := clock.StartStopwatch(r.clock)
	ref, storeErr := r.storeOutput(ctx, a, env.Sink, payload)
	timers[TimerStoreOutput] = sw.Seconds()
	if storeErr != nil {
		return InternalFailure("store function error payload: " + storeErr.Error())
	}
	return FunctionFailure(err.Error(), ref, a.PlanUpdates())
}

func (r *Runner) toObject(a *Allocation, out any) (*serialized.Object, error) {
	switch v := out.(type) {
	case *serialized.Object:
		if v == nil {
			return nil, errors.ErrEncodeFailed.GenWithStackByArgs("a nil object")
		}
		if err := v.Validate(); err != nil {
			return nil, errors.WrapError(errors.ErrEncodeFailed, err, v.Manifest.Encoding)
		}
		obj := *v
		if obj.Manifest.SourceFunctionCallID == "" {
			obj.Manifest.SourceFunctionCallID = a.FunctionCallID
		}
		return &obj, nil
	case *serialized.Value:
		if v == nil {
			return nil, errors.ErrEncodeFailed.GenWithStackByArgs("a nil value")
		}
		return serialized.NewObjectFromBytes(v.Manifest.Encoding, v.Bytes(), func(m *serialized.Manifest) {
			m.MetadataSize = v.Manifest.MetadataSize
			m.ContentType = v.Manifest.ContentType
			m.SourceFunctionCallID = a.FunctionCallID
		}), nil
	default:
		return serialized.NewObject(out, r.fn.Schema.OutputEncoding(),
			serialized.WithSourceFunctionCallID(a.FunctionCallID))
	}
}

func (r *Runner) storeOutput(
	ctx context.Context, a *Allocation, sink OutputSink, obj *serialized.Object,
) (*blob.ObjectRef, error) {
	if sink == nil || obj.Manifest.Size <= r.inlineLimit {
		return &blob.ObjectRef{Inline: obj}, nil
	}
	return sink.StoreOutput(ctx, a, obj)
}

// reporter forwards what a function emits. Updates are applied and
// emitted under one lock so the caller observes them in order.
type reporter struct {
	alloc   *Allocation
	emitter Emitter
	logger  *zap.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	rejected error
}

func (r *reporter) ReportProgress(current float64, total *float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.alloc.UpdateProgress(current, total)
	if err != nil {
		r.logger.Warn("progress update is rejected", zap.Error(err))
		return err
	}
	r.emitter.EmitProgress(r.alloc, p)
	if r.limiter.Allow() {
		fields := []zap.Field{zap.Float64("current", p.Current)}
		if p.Total != nil {
			fields = append(fields, zap.Float64("total", *p.Total))
		}
		r.logger.Info("allocation progress", fields...)
	}
	return nil
}

func (r *reporter) EmitPlanUpdate(u *plan.Update) (*plan.Update, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	normalized, err := r.alloc.ApplyPlanUpdate(u)
	if err != nil {
		if r.rejected == nil {
			r.rejected = err
		}
		return nil, err
	}
	r.emitter.EmitPlanUpdate(r.alloc, normalized)
	return normalized, nil
}

func (r *reporter) rejection() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejected
}

func (r *reporter) GetState(ctx context.Context, key string) (*serialized.Object, error) {
	return r.emitter.GetState(ctx, r.alloc, key)
}

func (r *reporter) SetState(ctx context.Context, key string, value *serialized.Object) error {
	return r.emitter.SetState(ctx, r.alloc, key, value)
}
