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
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pingcap/fexec/executor/allocation"
	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/serialized"
	"go.uber.org/zap"
)

// receiveUpload records an upload from the caller into the session
// ledger. Every upload gets exactly one response: when its last byte
// arrives, or as soon as its content is known to be a duplicate.
func (s *Session) receiveUpload(up *executorpb.UploadObject) {
	if up.Manifest == nil && len(up.Chunk) == 0 {
		s.protocolError(errors.ErrProtocolViolation.GenWithStackByArgs(
			fmt.Sprintf("upload %s carries neither manifest nor chunk", up.UploadID)), "")
		return
	}

	if up.Manifest != nil && uint64(len(up.Chunk)) > up.Manifest.Size {
		s.uploadFailed(up.UploadID, errors.ErrUploadOverflow.GenWithStackByArgs(
			up.UploadID, len(up.Chunk), up.Manifest.Size))
		return
	}

	if up.Manifest != nil {
		res, err := s.ledger.BeginUpload(up.UploadID, up.BLOBID, *up.Manifest)
		if err != nil {
			s.uploadFailed(up.UploadID, err)
			return
		}
		if res.Duplicate {
			if !res.Done {
				s.mu.Lock()
				s.ackedUploads[up.UploadID] = struct{}{}
				s.mu.Unlock()
			}
			s.uploadDone(res)
		} else if res.Done {
			s.uploadDone(res)
		}
		if len(up.Chunk) == 0 {
			return
		}
	}

	res, err := s.ledger.WriteChunk(up.UploadID, up.Chunk)
	acked := s.forgetAcked(up.UploadID, err != nil || (res != nil && res.Done))
	if err != nil {
		if !acked {
			s.uploadFailed(up.UploadID, err)
		}
		return
	}
	uploadedBytesCounter.WithLabelValues(directionInbound).Add(float64(len(up.Chunk)))
	if res.Done && !acked {
		s.uploadDone(res)
	}
}

// forgetAcked reports whether uploadID was acknowledged early, and drops
// it when the upload is over.
func (s *Session) forgetAcked(uploadID string, over bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ackedUploads[uploadID]
	if over {
		delete(s.ackedUploads, uploadID)
	}
	return ok
}

func (s *Session) uploadDone(res *blob.UploadResult) {
	s.logger.Debug("upload is done",
		zap.String("uploadID", res.UploadID),
		zap.String("objectID", res.ObjectID),
		zap.Bool("duplicate", res.Duplicate))
	_ = s.send(&executorpb.ServerMessage{UploadObjectResponse: &executorpb.UploadObjectResponse{
		UploadID:  res.UploadID,
		Status:    executorpb.UploadStatusOK,
		ObjectID:  res.ObjectID,
		Duplicate: res.Duplicate,
	}})
}

func (s *Session) uploadFailed(uploadID string, err error) {
	s.logger.Warn("upload failed", zap.String("uploadID", uploadID), zap.Error(err))
	_ = s.send(&executorpb.ServerMessage{UploadObjectResponse: &executorpb.UploadObjectResponse{
		UploadID: uploadID,
		Status:   executorpb.UploadStatusFailed,
		Message:  err.Error(),
	}})
}

// StoreOutput implements allocation.OutputSink. It uploads obj to the
// caller in chunks and waits for the caller to acknowledge it.
func (s *Session) StoreOutput(ctx context.Context, a *allocation.Allocation, obj *serialized.Object) (*blob.ObjectRef, error) {
	uploadID := fmt.Sprintf("%s-output-%d", a.ID, s.seq.Inc())
	ackCh, ok := s.acks.register(uploadID)
	if !ok {
		return nil, errors.ErrSessionClosed.GenWithStackByArgs(s.ID)
	}
	defer s.acks.forget(uploadID)

	manifest := obj.Manifest
	if err := s.send(&executorpb.ServerMessage{UploadObject: &executorpb.UploadObject{
		UploadID: uploadID,
		BLOBID:   a.ID,
		Manifest: &manifest,
	}}); err != nil {
		return nil, errors.ErrSessionClosed.GenWithStackByArgs(s.ID)
	}
	chunkSize := s.manager.cfg.ChunkSize
	for off := 0; off < len(obj.Data); off += chunkSize {
		end := off + chunkSize
		if end > len(obj.Data) {
			end = len(obj.Data)
		}
		if err := s.send(&executorpb.ServerMessage{UploadObject: &executorpb.UploadObject{
			UploadID: uploadID,
			Chunk:    obj.Data[off:end],
		}}); err != nil {
			return nil, errors.ErrSessionClosed.GenWithStackByArgs(s.ID)
		}
	}
	uploadedBytesCounter.WithLabelValues(directionOutbound).Add(float64(len(obj.Data)))
	s.logger.Debug("output is uploaded, wait for ack",
		zap.String("allocationID", a.ID),
		zap.String("uploadID", uploadID),
		zap.String("size", humanize.IBytes(uint64(len(obj.Data)))))

	resp, err := awaitResponse(ctx, s.ctx, ackCh, s.manager.cfg.Clock, s.manager.cfg.StateRequestTimeout)
	if err != nil {
		return nil, errors.WrapError(errors.ErrUploadRejected, err, uploadID, "no acknowledgement")
	}
	if resp.Status != executorpb.UploadStatusOK {
		return nil, errors.ErrUploadRejected.GenWithStackByArgs(uploadID, resp.Message)
	}
	return &blob.ObjectRef{ObjectID: resp.ObjectID}, nil
}

// awaitResponse waits for a correlated response until ctx, the session
// or the timeout on clk ends the wait.
func awaitResponse[T any](ctx, sessionCtx context.Context, ch <-chan T, clk clock.Clock, timeout time.Duration) (T, error) {
	var zero T
	timer := clk.Timer(timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return zero, errors.Trace(ctx.Err())
	case <-sessionCtx.Done():
		return zero, errors.Trace(sessionCtx.Err())
	case <-timer.C:
		return zero, errors.Trace(context.DeadlineExceeded)
	}
}
