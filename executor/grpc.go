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

package executor

import (
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var grpcMetrics = grpc_prometheus.NewServerMetrics(func(opts *prometheus.CounterOpts) {
	opts.Namespace = "fexec"
})

// recoverPanic turns a panic escaping a handler into an Internal status.
func recoverPanic(p interface{}) error {
	log.Error("grpc handler panicked", zap.Any("panic", p), zap.Stack("stack"))
	return status.Errorf(codes.Internal, "grpc handler panicked: %v", p)
}

func newGRPCServer() *grpc.Server {
	recovery := grpc_recovery.WithRecoveryHandler(recoverPanic)
	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcMetrics.UnaryServerInterceptor(),
			grpc_recovery.UnaryServerInterceptor(recovery),
		),
		grpc.ChainStreamInterceptor(
			grpcMetrics.StreamServerInterceptor(),
			grpc_recovery.StreamServerInterceptor(recovery),
		),
	)
}
