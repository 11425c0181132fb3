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
	"time"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/retry"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

//go:generate mockgen -package client -destination executor_client_mock.go github.com/pingcap/fexec/client ExecutorClient

// ExecutorClient talks to one function executor.
type ExecutorClient interface {
	Initialize(ctx context.Context, req *executorpb.InitializeRequest) (*executorpb.InitializeResponse, error)
	CheckHealth(ctx context.Context) (*executorpb.HealthCheckResponse, error)
	// WaitHealthy polls the health check until the executor reports
	// healthy or tries run out.
	WaitHealthy(ctx context.Context, tries int64) error
	GetInfo(ctx context.Context) (*executorpb.InfoResponse, error)
	ListAllocations(ctx context.Context) ([]*executorpb.AllocationInfo, error)
	DeleteAllocation(ctx context.Context, allocationID string) error
	// OpenSession opens or reattaches the session id on a new stream.
	OpenSession(ctx context.Context, id string) (*Session, error)
	Close() error
}

type closeableConnIface interface {
	grpc.ClientConnInterface
	Close() error
}

type executorClientImpl struct {
	conn   closeableConnIface
	client executorpb.FunctionExecutorClient
}

// NewExecutorClient creates a client of the executor at addr. Connections
// are insecure unless opts say otherwise.
func NewExecutorClient(addr string, opts ...grpc.DialOption) (ExecutorClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, errors.WrapError(errors.ErrGrpcBuildConn, err, addr)
	}
	return newExecutorClientWithConn(conn), nil
}

func newExecutorClientWithConn(conn closeableConnIface) *executorClientImpl {
	return &executorClientImpl{
		conn:   conn,
		client: executorpb.NewFunctionExecutorClient(conn),
	}
}

func (c *executorClientImpl) Initialize(ctx context.Context, req *executorpb.InitializeRequest) (*executorpb.InitializeResponse, error) {
	return c.client.Initialize(ctx, req)
}

func (c *executorClientImpl) CheckHealth(ctx context.Context) (*executorpb.HealthCheckResponse, error) {
	return c.client.CheckHealth(ctx, &executorpb.HealthCheckRequest{})
}

func (c *executorClientImpl) WaitHealthy(ctx context.Context, tries int64) error {
	if tries < 1 {
		tries = 1
	}
	start := time.Now()
	err := retry.Do(ctx, func() error {
		resp, err := c.CheckHealth(ctx)
		if err != nil {
			return err
		}
		if !resp.Healthy {
			return errors.ErrExecutorUnhealthy.GenWithStackByArgs(resp.Message)
		}
		return nil
	},
		retry.WithMaxTries(uint64(tries)),
		retry.WithBackoff(100*time.Millisecond, 2*time.Second),
	)
	if err != nil {
		log.Warn("executor is not healthy", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	}
	return err
}

func (c *executorClientImpl) GetInfo(ctx context.Context) (*executorpb.InfoResponse, error) {
	return c.client.GetInfo(ctx, &executorpb.InfoRequest{})
}

func (c *executorClientImpl) ListAllocations(ctx context.Context) ([]*executorpb.AllocationInfo, error) {
	resp, err := c.client.ListAllocations(ctx, &executorpb.ListAllocationsRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Allocations, nil
}

func (c *executorClientImpl) DeleteAllocation(ctx context.Context, allocationID string) error {
	_, err := c.client.DeleteAllocation(ctx, &executorpb.DeleteAllocationRequest{AllocationID: allocationID})
	return err
}

func (c *executorClientImpl) OpenSession(ctx context.Context, id string) (*Session, error) {
	return openSession(ctx, c.client, id)
}

func (c *executorClientImpl) Close() error {
	return c.conn.Close()
}
