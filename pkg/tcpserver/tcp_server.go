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
	"net"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/log"
	"github.com/soheilhy/cmux"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TCPServer provides a muxed socket that can
// serve both plain HTTP and gRPC at the same time.
type TCPServer interface {
	// Run runs the TCPServer.
	// For a given instance of TCPServer, Run is expected
	// to be called only once.
	Run(ctx context.Context) error
	// GrpcListener returns the gRPC listener that
	// can be listened on by a gRPC server.
	GrpcListener() net.Listener
	// HTTP1Listener returns a plain HTTP listener.
	HTTP1Listener() net.Listener
	// Addr returns the bound address.
	Addr() net.Addr
	// Close closes the TCPServer.
	// The listeners returned by GrpcListener and HTTP1Listener
	// will be closed, which will force the consumers of these
	// listeners to stop. This provides a reliable mechanism to
	// cancel all related components.
	Close() error
}

type tcpServerImpl struct {
	mux cmux.CMux

	rootListener  net.Listener
	grpcListener  net.Listener
	http1Listener net.Listener

	isClosed atomic.Bool
}

// NewTCPServer creates a new TCPServer
func NewTCPServer(address string) (TCPServer, error) {
	rootListener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.WrapError(errors.ErrInvalidArgument, err, "listen on "+address)
	}

	server := &tcpServerImpl{
		rootListener: rootListener,
	}
	server.mux = cmux.New(rootListener)
	// The content-type may carry a codec suffix such as application/grpc+cbor.
	server.grpcListener = server.mux.MatchWithWriters(
		cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	server.http1Listener = server.mux.Match(cmux.HTTP1Fast())

	return server, nil
}

// Run runs the mux. The mux has to be running to accept connections.
func (s *tcpServerImpl) Run(ctx context.Context) error {
	if s.isClosed.Load() {
		return errors.ErrTCPServerClosed.GenWithStackByArgs()
	}

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		err := s.mux.Serve()
		if err == cmux.ErrServerClosed {
			return errors.ErrTCPServerClosed.GenWithStackByArgs()
		}
		if err != nil {
			if s.isClosed.Load() {
				return errors.ErrTCPServerClosed.GenWithStackByArgs()
			}
			return errors.Trace(err)
		}
		return nil
	})

	errg.Go(func() error {
		<-ctx.Done()
		log.Debug("cmux has been canceled", zap.Error(ctx.Err()))
		s.isClosed.Store(true)
		s.mux.Close()
		return nil
	})

	return errg.Wait()
}

func (s *tcpServerImpl) GrpcListener() net.Listener {
	return s.grpcListener
}

func (s *tcpServerImpl) HTTP1Listener() net.Listener {
	return s.http1Listener
}

func (s *tcpServerImpl) Addr() net.Addr {
	return s.rootListener.Addr()
}

// Close closes the TCPServer.
func (s *tcpServerImpl) Close() error {
	if s.isClosed.Swap(true) {
		// ignore double closing
		return nil
	}
	// Closing the rootListener provides a reliable way
	// for telling downstream components to exit.
	if err := s.rootListener.Close(); err != nil {
		if _, ok := err.(*net.OpError); ok {
			// the listener may already be closed by cmux
			return nil
		}
		return errors.Trace(err)
	}
	return nil
}
