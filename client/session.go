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
package client

import (
	"context"
	"io"
	"sync"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/logutil"
	"github.com/pingcap/fexec/pkg/serialized"
	"go.uber.org/zap"
)

// DefaultChunkSize is the chunk size used by UploadObject when none is given.
const DefaultChunkSize = 1 << 20

// Session is the caller side of a session stream. Send methods are safe
// for concurrent use, Recv must be called from one goroutine.
type Session struct {
	ID string
	// IsNew is false when the open reattached an existing session.
	IsNew bool

	stream executorpb.FunctionExecutor_RunSessionClient
	cancel context.CancelFunc
	sendMu sync.Mutex
	logger *zap.Logger
}

func openSession(ctx context.Context, client executorpb.FunctionExecutorClient, id string) (*Session, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := client.RunSession(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	s := &Session{
		ID:     id,
		stream: stream,
		cancel: cancel,
		logger: logutil.NewLogger4Session(id),
	}
	if err := s.send(&executorpb.ClientMessage{
		OpenSession: &executorpb.OpenSessionRequest{SessionID: id},
	}); err != nil {
		cancel()
		return nil, err
	}
	msg, err := stream.Recv()
	if err != nil {
		cancel()
		return nil, err
	}
	switch {
	case msg.OpenSessionResponse == nil:
		cancel()
		return nil, errors.ErrProtocolViolation.GenWithStackByArgs("first message is not an open session response")
	case !msg.OpenSessionResponse.Accepted:
		cancel()
		return nil, errors.ErrOpenSessionRefused.GenWithStackByArgs(id, msg.OpenSessionResponse.Message)
	}
	s.IsNew = msg.OpenSessionResponse.IsNew
	s.logger.Debug("session opened", zap.Bool("isNew", s.IsNew))
	return s, nil
}

func (s *Session) send(msg *executorpb.ClientMessage) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.stream.Send(msg)
}

// Send sends a raw message.
func (s *Session) Send(msg *executorpb.ClientMessage) error {
	return s.send(msg)
}

// Recv returns the next message of the executor.
func (s *Session) Recv() (*executorpb.ServerMessage, error) {
	return s.stream.Recv()
}

// UploadObject sends obj as a manifest followed by chunks of chunkSize
// bytes. The executor acknowledges it with an UploadObjectResponse.
func (s *Session) UploadObject(uploadID, blobID string, obj *serialized.Object, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	manifest := obj.Manifest
	if err := s.send(&executorpb.ClientMessage{UploadObject: &executorpb.UploadObject{
		UploadID: uploadID,
		BLOBID:   blobID,
		Manifest: &manifest,
	}}); err != nil {
		return err
	}
	for off := 0; off < len(obj.Data); off += chunkSize {
		end := off + chunkSize
		if end > len(obj.Data) {
			end = len(obj.Data)
		}
		if err := s.send(&executorpb.ClientMessage{UploadObject: &executorpb.UploadObject{
			UploadID: uploadID,
			Chunk:    obj.Data[off:end],
		}}); err != nil {
			return err
		}
	}
	return nil
}

// Submit hands allocations to the executor.
func (s *Session) Submit(allocs ...*executorpb.AllocationInputs) error {
	return s.send(&executorpb.ClientMessage{SubmitAllocations: &executorpb.SubmitAllocationsRequest{
		Allocations: allocs,
	}})
}

// AckUpload answers an upload of the executor.
func (s *Session) AckUpload(resp *executorpb.UploadObjectResponse) error {
	return s.send(&executorpb.ClientMessage{UploadObjectResponse: resp})
}

// RespondState answers a request state operation.
func (s *Session) RespondState(resp *executorpb.RequestStateResponse) error {
	return s.send(&executorpb.ClientMessage{RequestStateResponse: resp})
}

// Leave detaches from the session, or tears it down when closeSession is
// set. It returns every message received before the leave response.
func (s *Session) Leave(closeSession bool) ([]*executorpb.ServerMessage, error) {
	defer s.cancel()
	if err := s.send(&executorpb.ClientMessage{
		LeaveSession: &executorpb.LeaveSessionRequest{Close: closeSession},
	}); err != nil {
		return nil, err
	}
	var msgs []*executorpb.ServerMessage
	for {
		msg, err := s.stream.Recv()
		if err == io.EOF {
			return msgs, errors.ErrProtocolViolation.GenWithStackByArgs("stream ended before the leave response")
		}
		if err != nil {
			return msgs, err
		}
		if msg.LeaveSessionResponse != nil {
			_ = s.stream.CloseSend()
			s.logger.Debug("session left", zap.Bool("close", closeSession), zap.Int("drained", len(msgs)))
			return msgs, nil
		}
		msgs = append(msgs, msg)
	}
}

// Abort drops the stream without leaving. The executor tears the session
// down.
func (s *Session) Abort() {
	s.cancel()
}
