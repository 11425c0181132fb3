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
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/pingcap/fexec/executor/allocation"
	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/containers"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/logutil"
	"github.com/pingcap/fexec/pkg/plan"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// attachment is a stream a session is attached to. Only its writer
// goroutine sends on the stream.
type attachment struct {
	stream executorpb.FunctionExecutor_RunSessionServer
	ctx    context.Context
	cancel context.CancelFunc
	// closed when the writer exits
	done chan struct{}
	err  error
}

// Session is a long lived conversation with one caller. It outlives the
// streams it is attached to until it is closed or its stream breaks.
type Session struct {
	ID string

	manager *Manager
	ledger  *blob.Ledger
	// outbox holds messages for the caller, they stay queued while no
	// stream is attached.
	outbox *containers.Queue[*executorpb.ServerMessage]
	states *pendingMap[*executorpb.RequestStateResponse]
	acks   *pendingMap[*executorpb.UploadObjectResponse]
	seq    atomic.Uint64

	// canceled on teardown, stops allocations and pending round trips
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	att    *attachment
	allocs map[string]*allocation.Allocation
	// uploads acknowledged as duplicates before their chunks arrived
	ackedUploads map[string]struct{}

	logger *zap.Logger
}

func newSession(m *Manager, id string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:           id,
		manager:      m,
		ledger:       blob.NewLedger(m.cfg.DedupCacheSize),
		outbox:       containers.NewQueue[*executorpb.ServerMessage](),
		states:       newPendingMap[*executorpb.RequestStateResponse](),
		acks:         newPendingMap[*executorpb.UploadObjectResponse](),
		ctx:          ctx,
		cancel:       cancel,
		allocs:       make(map[string]*allocation.Allocation),
		ackedUploads: make(map[string]struct{}),
		logger:       logutil.NewLogger4Session(id),
	}
}

// Closed returns whether the session is torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Attached returns whether a stream is attached.
func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.att != nil
}

// Allocations returns the allocations of the session that did not finish
// running yet.
func (s *Session) Allocations() []*allocation.Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]*allocation.Allocation, 0, len(s.allocs))
	for _, a := range s.allocs {
		ret = append(ret, a)
	}
	return ret
}

// Close tears the session down. Running allocations fail with an internal
// error.
func (s *Session) Close(reason string) error {
	err := s.teardown(reason, true)
	s.mu.Lock()
	detached := s.att == nil
	s.mu.Unlock()
	if detached {
		s.outbox.Close()
	}
	return err
}

func (s *Session) attach(
	stream executorpb.FunctionExecutor_RunSessionServer, first *executorpb.ServerMessage,
) (*attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.ErrSessionClosed.GenWithStackByArgs(s.ID)
	}
	if s.att != nil {
		return nil, errors.ErrSessionAttached.GenWithStackByArgs(s.ID)
	}
	ctx, cancel := context.WithCancel(stream.Context())
	att := &attachment{
		stream: stream,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.att = att
	go s.writeLoop(att, first)
	return att, nil
}

func (s *Session) detach(att *attachment) {
	att.cancel()
	<-att.done

	s.mu.Lock()
	if s.att == att {
		s.att = nil
	}
	closed := s.closed
	s.mu.Unlock()
	if closed {
		if dropped := s.outbox.Close(); len(dropped) > 0 {
			s.logger.Info("drop messages of closed session", zap.Int("count", len(dropped)))
		}
	}
}

// writeLoop sends first and then drains the outbox until the caller
// leaves or the stream breaks.
func (s *Session) writeLoop(att *attachment, first *executorpb.ServerMessage) {
	defer close(att.done)
	if err := att.stream.Send(first); err != nil {
		att.err = err
		return
	}
	for {
		for {
			msg, ok := s.outbox.Pop()
			if !ok {
				break
			}
			if err := att.stream.Send(msg); err != nil {
				s.logger.Warn("send to stream failed", zap.Error(err))
				att.err = err
				return
			}
			if msg.LeaveSessionResponse != nil {
				return
			}
		}
		select {
		case <-att.ctx.Done():
			return
		case <-s.outbox.C:
		}
	}
}

// send queues msg for the caller. It never blocks.
func (s *Session) send(msg *executorpb.ServerMessage) error {
	if err := s.outbox.Push(msg); err != nil {
		s.logger.Debug("session is closed, drop message", zap.Error(err))
		return err
	}
	return nil
}

// leave handles LeaveSession. The response is the last message written
// on the stream.
func (s *Session) leave(att *attachment, closeSession bool) {
	if closeSession {
		if err := s.teardown("closed by caller", true); err != nil {
			s.logger.Warn("session teardown", zap.Error(err))
		}
	}
	if err := s.send(&executorpb.ServerMessage{LeaveSessionResponse: &executorpb.LeaveSessionResponse{}}); err == nil {
		select {
		case <-att.done:
		case <-att.ctx.Done():
		}
	}
	s.detach(att)
	s.logger.Info("session detached", zap.Bool("close", closeSession))
}

// lose handles a stream that broke without leaving.
func (s *Session) lose(att *attachment, cause error) {
	s.logger.Info("session stream is lost", zap.Error(cause))
	if err := s.teardown(fmt.Sprintf("stream is lost: %s", cause), false); err != nil {
		s.logger.Warn("session teardown", zap.Error(err))
	}
	s.detach(att)
}

// teardown fails every running allocation with an internal error, aborts
// pending round trips and drops partial uploads. When emit is set the
// failures are sent to the caller.
func (s *Session) teardown(reason string, emit bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	allocs := make([]*allocation.Allocation, 0, len(s.allocs))
	for _, a := range s.allocs {
		allocs = append(allocs, a)
	}
	s.mu.Unlock()
	s.manager.remove(s)

	var (
		errs   error
		failed int
		msg    = fmt.Sprintf("session %s is closed: %s", s.ID, reason)
	)
	for _, a := range allocs {
		result := allocation.Abort(a, msg)
		if result == nil {
			continue
		}
		failed++
		if emit {
			errs = multierr.Append(errs, s.send(resultMessage(a, result)))
		}
	}
	s.cancel()
	states := s.states.close()
	uploads := s.acks.close()
	partial := s.ledger.Discard()

	s.logger.Info("session is torn down",
		zap.String("reason", reason),
		zap.Int("failedAllocations", failed),
		zap.Int("abortedStateRequests", len(states)),
		zap.Int("abortedOutputUploads", len(uploads)),
		zap.Strings("discardedUploads", partial))
	return errs
}

// handle routes a message of an attached stream.
func (s *Session) handle(ctx context.Context, msg *executorpb.ClientMessage) {
	switch {
	case msg.UploadObject != nil:
		s.receiveUpload(msg.UploadObject)
	case msg.UploadObjectResponse != nil:
		if !s.acks.resolve(msg.UploadObjectResponse.UploadID, msg.UploadObjectResponse) {
			s.protocolError(errors.ErrUploadNotFound.GenWithStackByArgs(msg.UploadObjectResponse.UploadID), "")
		}
	case msg.SubmitAllocations != nil:
		s.submit(msg.SubmitAllocations)
	case msg.RequestStateResponse != nil:
		if !s.states.resolve(msg.RequestStateResponse.StateRequestID, msg.RequestStateResponse) {
			s.protocolError(errors.ErrStateRequestNotFound.GenWithStackByArgs(msg.RequestStateResponse.StateRequestID), "")
		}
	default:
		s.protocolError(errors.ErrProtocolViolation.GenWithStackByArgs("message has no known field"), "")
	}
}

// protocolError answers a malformed or unroutable message. The stream
// stays up.
func (s *Session) protocolError(err error, allocationID string) {
	protocolErrorCounter.Inc()
	s.logger.Warn("protocol error", zap.String("allocationID", allocationID), zap.Error(err))
	_ = s.send(&executorpb.ServerMessage{
		ProtocolError: &executorpb.ProtocolError{Message: err.Error(), AllocationID: allocationID},
	})
}

// submit admits a batch of allocations. The response is sent before any
// of them starts, so it precedes their results.
func (s *Session) submit(req *executorpb.SubmitAllocationsRequest) {
	resp := &executorpb.SubmitAllocationsResponse{Accepted: make([]string, 0, len(req.Allocations))}
	runner, bindErr := s.manager.binder.Runner()
	admitted := make([]*allocation.Allocation, 0, len(req.Allocations))
	for _, in := range req.Allocations {
		var id string
		if in != nil {
			id = in.AllocationID
		}
		err := bindErr
		if err == nil {
			var a *allocation.Allocation
			if a, err = s.admit(runner, in); err == nil {
				admitted = append(admitted, a)
				resp.Accepted = append(resp.Accepted, id)
				continue
			}
		}
		s.logger.Info("allocation rejected", zap.String("allocationID", id), zap.Error(err))
		resp.Rejected = append(resp.Rejected, executorpb.RejectedAllocation{AllocationID: id, Reason: err.Error()})
	}
	_ = s.send(&executorpb.ServerMessage{SubmitAllocationsResponse: resp})

	for _, a := range admitted {
		s.launch(runner, a)
	}
}

func (s *Session) admit(runner *allocation.Runner, in *executorpb.AllocationInputs) (*allocation.Allocation, error) {
	if in == nil {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs("allocation is nil")
	}
	a, err := allocation.New(s.ID, in, runner.Clock())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.ErrSessionClosed.GenWithStackByArgs(s.ID)
	}
	if err := s.manager.table.Add(a); err != nil {
		return nil, err
	}
	s.allocs[a.ID] = a
	return a, nil
}

func (s *Session) launch(runner *allocation.Runner, a *allocation.Allocation) {
	task := &allocationTask{session: s, alloc: a, runner: runner}
	if err := s.manager.tasks.AddTask(task); err != nil {
		s.logger.Warn("allocation is not scheduled", zap.String("allocationID", a.ID), zap.Error(err))
		if result := allocation.Abort(a, "allocation is not scheduled: "+err.Error()); result != nil {
			s.EmitResult(a, result)
		}
		s.untrack(a)
	}
}

func (s *Session) untrack(a *allocation.Allocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allocs[a.ID] == a {
		delete(s.allocs, a.ID)
	}
}

func (s *Session) env() allocation.Env {
	env := allocation.Env{
		Emitter:  s,
		Resolver: allocation.NewResolver(s.ledger, s.manager.cfg.Store),
		Sink:     s.manager.cfg.OutputSink,
	}
	if env.Sink == nil {
		env.Sink = s
	}
	return env
}

// EmitProgress implements allocation.Emitter.
func (s *Session) EmitProgress(a *allocation.Allocation, p *executorpb.Progress) {
	_ = s.send(&executorpb.ServerMessage{
		AllocationProgress: &executorpb.AllocationProgress{AllocationID: a.ID, Progress: p},
	})
}

// EmitPlanUpdate implements allocation.Emitter.
func (s *Session) EmitPlanUpdate(a *allocation.Allocation, u *plan.Update) {
	_ = s.send(&executorpb.ServerMessage{
		AllocationPlanUpdate: &executorpb.AllocationPlanUpdate{AllocationID: a.ID, Update: u},
	})
}

// EmitResult implements allocation.Emitter.
func (s *Session) EmitResult(a *allocation.Allocation, r *executorpb.AllocationResult) {
	_ = s.send(resultMessage(a, r))
}

func resultMessage(a *allocation.Allocation, r *executorpb.AllocationResult) *executorpb.ServerMessage {
	return &executorpb.ServerMessage{
		AllocationResult: &executorpb.AllocationResultMessage{AllocationID: a.ID, Result: r},
	}
}

// allocationTask runs one allocation on the task runner. It stops when
// either the runner or the session stops.
type allocationTask struct {
	session *Session
	alloc   *allocation.Allocation
	runner  *allocation.Runner
}

func (t *allocationTask) ID() string {
	return t.alloc.ID
}

func (t *allocationTask) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.session.ctx, cancel)
	defer stop()

	defer t.session.untrack(t.alloc)
	defer func() {
		if p := recover(); p != nil {
			t.session.logger.Error("allocation task panicked",
				zap.String("allocationID", t.alloc.ID), zap.Any("panic", p), zap.Stack("stack"))
			if result := allocation.Abort(t.alloc, fmt.Sprintf("executor panicked: %v", p)); result != nil {
				t.session.EmitResult(t.alloc, result)
			}
		}
	}()

	t.runner.Run(ctx, t.alloc, t.session.env())
	return nil
}
