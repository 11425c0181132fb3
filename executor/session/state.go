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

	"github.com/pingcap/fexec/executor/allocation"
	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/serialized"
	"go.uber.org/zap"
)

const (
	stateOpGet = "get"
	stateOpSet = "set"
)

// GetState implements allocation.Emitter. It asks the caller for the value
// of key in the request state of a. A missing key returns nil.
func (s *Session) GetState(ctx context.Context, a *allocation.Allocation, key string) (*serialized.Object, error) {
	resp, err := s.requestState(ctx, a, stateOpGet, key, &executorpb.RequestStateRequest{
		Get: &executorpb.StateGet{Key: key},
	})
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// SetState implements allocation.Emitter.
func (s *Session) SetState(ctx context.Context, a *allocation.Allocation, key string, value *serialized.Object) error {
	_, err := s.requestState(ctx, a, stateOpSet, key, &executorpb.RequestStateRequest{
		Set: &executorpb.StateSet{Key: key, Value: value},
	})
	return err
}

func (s *Session) requestState(
	ctx context.Context, a *allocation.Allocation, op, key string, req *executorpb.RequestStateRequest,
) (*executorpb.RequestStateResponse, error) {
	req.StateRequestID = fmt.Sprintf("%s-state-%d", a.ID, s.seq.Inc())
	req.AllocationID = a.ID
	ch, ok := s.states.register(req.StateRequestID)
	if !ok {
		return nil, errors.ErrStateRequestAborted.GenWithStackByArgs(req.StateRequestID)
	}
	defer s.states.forget(req.StateRequestID)

	sw := clock.StartStopwatch(s.manager.cfg.Clock)
	if err := s.send(&executorpb.ServerMessage{RequestStateRequest: req}); err != nil {
		return nil, errors.ErrStateRequestAborted.GenWithStackByArgs(req.StateRequestID)
	}
	resp, err := awaitResponse(ctx, s.ctx, ch, s.manager.cfg.Clock, s.manager.cfg.StateRequestTimeout)
	result := "ok"
	defer func() {
		stateRequestHistogram.WithLabelValues(op, result).Observe(sw.Seconds())
	}()
	if err != nil {
		result = "aborted"
		s.logger.Info("request state operation is aborted",
			zap.String("allocationID", a.ID),
			zap.String("stateRequestID", req.StateRequestID),
			zap.Error(err))
		return nil, errors.WrapError(errors.ErrStateRequestAborted, err, req.StateRequestID)
	}
	if !resp.OK {
		result = "failed"
		return nil, errors.ErrStateRequestFailed.GenWithStackByArgs(key, resp.Message)
	}
	return resp, nil
}
