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

package tcpserver

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/leakutil"
)

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

func newRunningServer(t *testing.T) (TCPServer, string, context.CancelFunc, <-chan error) {
	server, err := NewTCPServer("127.0.0.1:0")
	require.NoError(t, err)
	addr := server.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx)
	}()
	return server, addr, cancel, done
}

func requireClosed(t *testing.T, done <-chan error) {
	select {
	case err := <-done:
		require.True(t, errors.Is(err, errors.ErrTCPServerClosed), "unexpected error %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("tcp server did not exit")
	}
}

func TestServeHTTPAndGrpcOnOnePort(t *testing.T) {
	server, addr, cancel, done := newRunningServer(t)

	httpServer := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})}
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, health.NewServer())

	var eg errgroup.Group
	eg.Go(func() error {
		if err := httpServer.Serve(server.HTTP1Listener()); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		return grpcServer.Serve(server.GrpcListener())
	})

	resp, err := http.Get("http://" + addr + "/ping")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "pong", string(body))
	http.DefaultClient.CloseIdleConnections()

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	ctx, cancelCheck := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCheck()
	check, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check.Status)
	require.NoError(t, conn.Close())

	require.NoError(t, httpServer.Close())
	grpcServer.Stop()
	require.NoError(t, eg.Wait())

	cancel()
	requireClosed(t, done)
	require.NoError(t, server.Close())
}

func TestCloseStopsRun(t *testing.T) {
	server, _, cancel, done := newRunningServer(t)
	defer cancel()

	require.NoError(t, server.Close())
	requireClosed(t, done)
}

func TestRunAfterClose(t *testing.T) {
	server, err := NewTCPServer("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, server.Close())
	require.NoError(t, server.Close())

	err = server.Run(context.Background())
	require.True(t, errors.Is(err, errors.ErrTCPServerClosed))
}

func TestListenFailure(t *testing.T) {
	_, err := NewTCPServer("256.0.0.1:0")
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))
}
