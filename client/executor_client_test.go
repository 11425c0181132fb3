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
	"net"
	"sync"
	"testing"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/leakutil"
	"github.com/pingcap/fexec/pkg/serialized"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

// fakeExecutor acknowledges uploads, accepts every submitted allocation
// and answers each one with a success result.
type fakeExecutor struct {
	executorpb.UnimplementedFunctionExecutorServer

	healthChecks atomic.Int32
	mu           sync.Mutex
	uploads      map[string][]byte
	blobs        map[string]string
}

func (f *fakeExecutor) CheckHealth(context.Context, *executorpb.HealthCheckRequest) (*executorpb.HealthCheckResponse, error) {
	if f.healthChecks.Inc() < 3 {
		return &executorpb.HealthCheckResponse{Healthy: false, Message: "warming up"}, nil
	}
	return &executorpb.HealthCheckResponse{Healthy: true}, nil
}

func (f *fakeExecutor) DeleteAllocation(_ context.Context, req *executorpb.DeleteAllocationRequest) (*executorpb.DeleteAllocationResponse, error) {
	return nil, errors.ToGRPCError(errors.ErrAllocationNotFound.GenWithStackByArgs(req.AllocationID))
}

func (f *fakeExecutor) RunSession(stream executorpb.FunctionExecutor_RunSessionServer) error {
	msg, err := stream.Recv()
	if err != nil {
		return err
	}
	if msg.OpenSession.SessionID == "refused" {
		return stream.Send(&executorpb.ServerMessage{OpenSessionResponse: &executorpb.OpenSessionResponse{
			Message: "session limit 0 is reached",
		}})
	}
	if err := stream.Send(&executorpb.ServerMessage{OpenSessionResponse: &executorpb.OpenSessionResponse{
		Accepted: true, IsNew: true,
	}}); err != nil {
		return err
	}
	manifests := make(map[string]*serialized.Manifest)
	for {
		msg, err := stream.Recv()
		if err != nil {
			return nil
		}
		switch {
		case msg.UploadObject != nil:
			up := msg.UploadObject
			if up.Manifest != nil {
				manifests[up.UploadID] = up.Manifest
				f.mu.Lock()
				f.blobs[up.UploadID] = up.BLOBID
				f.mu.Unlock()
				continue
			}
			f.mu.Lock()
			f.uploads[up.UploadID] = append(f.uploads[up.UploadID], up.Chunk...)
			data := f.uploads[up.UploadID]
			f.mu.Unlock()
			if uint64(len(data)) == manifests[up.UploadID].Size {
				if err := stream.Send(&executorpb.ServerMessage{UploadObjectResponse: &executorpb.UploadObjectResponse{
					UploadID: up.UploadID, Status: executorpb.UploadStatusOK, ObjectID: up.UploadID,
				}}); err != nil {
					return err
				}
			}
		case msg.SubmitAllocations != nil:
			resp := &executorpb.SubmitAllocationsResponse{}
			for _, a := range msg.SubmitAllocations.Allocations {
				resp.Accepted = append(resp.Accepted, a.AllocationID)
			}
			if err := stream.Send(&executorpb.ServerMessage{SubmitAllocationsResponse: resp}); err != nil {
				return err
			}
			for _, id := range resp.Accepted {
				if err := stream.Send(&executorpb.ServerMessage{AllocationResult: &executorpb.AllocationResultMessage{
					AllocationID: id,
					Result:       &executorpb.AllocationResult{Outcome: executorpb.AllocationOutcomeSuccess},
				}}); err != nil {
					return err
				}
			}
		case msg.LeaveSession != nil:
			return stream.Send(&executorpb.ServerMessage{LeaveSessionResponse: &executorpb.LeaveSessionResponse{}})
		}
	}
}

func newTestClient(t *testing.T) (*executorClientImpl, *fakeExecutor) {
	fake := &fakeExecutor{uploads: make(map[string][]byte), blobs: make(map[string]string)}
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	executorpb.RegisterFunctionExecutorServer(srv, fake)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = srv.Serve(lis)
	}()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	c := newExecutorClientWithConn(conn)
	t.Cleanup(func() {
		_ = c.Close()
		srv.Stop()
		wg.Wait()
	})
	return c, fake
}

func TestWaitHealthy(t *testing.T) {
	t.Parallel()

	c, fake := newTestClient(t)
	ctx := context.Background()
	err := c.WaitHealthy(ctx, 2)
	require.True(t, errors.Is(err, errors.ErrExecutorUnhealthy), "%v", err)
	require.NoError(t, c.WaitHealthy(ctx, 5))
	require.Equal(t, int32(3), fake.healthChecks.Load())
}

func TestDeleteAllocationStatus(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	err := c.DeleteAllocation(context.Background(), "a1")
	require.Equal(t, codes.NotFound, status.Code(err))
	require.Contains(t, status.Convert(err).Message(), "a1")
}

func TestOpenSessionRefused(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	_, err := c.OpenSession(context.Background(), "refused")
	require.True(t, errors.Is(err, errors.ErrOpenSessionRefused), "%v", err)
	require.Contains(t, err.Error(), "session limit")
}

func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()

	c, fake := newTestClient(t)
	s, err := c.OpenSession(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, s.IsNew)

	obj := serialized.NewObjectFromBytes(serialized.EncodingRaw, []byte("0123456789abcdef"))
	require.NoError(t, s.UploadObject("u1", "b1", obj, 5))
	msg, err := s.Recv()
	require.NoError(t, err)
	require.Equal(t, executorpb.UploadStatusOK, msg.UploadObjectResponse.Status)

	require.NoError(t, s.Submit(
		&executorpb.AllocationInputs{RequestID: "r", FunctionCallID: "c1", AllocationID: "a1"},
		&executorpb.AllocationInputs{RequestID: "r", FunctionCallID: "c2", AllocationID: "a2"},
	))
	msg, err = s.Recv()
	require.NoError(t, err)
	require.Equal(t, []string{"a1", "a2"}, msg.SubmitAllocationsResponse.Accepted)

	// the remaining results are drained by Leave
	msgs, err := s.Leave(true)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		require.Equal(t, executorpb.AllocationOutcomeSuccess, m.AllocationResult.Result.Outcome)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, obj.Data, fake.uploads["u1"])
	require.Equal(t, "b1", fake.blobs["u1"])
}
