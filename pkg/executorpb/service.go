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

package executorpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the full name of the executor gRPC service.
const ServiceName = "fexec.FunctionExecutor"

const (
	methodInitialize       = "/" + ServiceName + "/Initialize"
	methodRunSession       = "/" + ServiceName + "/RunSession"
	methodCheckHealth      = "/" + ServiceName + "/CheckHealth"
	methodGetInfo          = "/" + ServiceName + "/GetInfo"
	methodListAllocations  = "/" + ServiceName + "/ListAllocations"
	methodDeleteAllocation = "/" + ServiceName + "/DeleteAllocation"
)

// FunctionExecutorServer is the server API for the executor service.
type FunctionExecutorServer interface {
	Initialize(context.Context, *InitializeRequest) (*InitializeResponse, error)
	RunSession(FunctionExecutor_RunSessionServer) error
	CheckHealth(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)
	GetInfo(context.Context, *InfoRequest) (*InfoResponse, error)
	ListAllocations(context.Context, *ListAllocationsRequest) (*ListAllocationsResponse, error)
	DeleteAllocation(context.Context, *DeleteAllocationRequest) (*DeleteAllocationResponse, error)
}

// UnimplementedFunctionExecutorServer can be embedded to have forward
// compatible implementations.
type UnimplementedFunctionExecutorServer struct{}

func (UnimplementedFunctionExecutorServer) Initialize(context.Context, *InitializeRequest) (*InitializeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Initialize not implemented")
}

func (UnimplementedFunctionExecutorServer) RunSession(FunctionExecutor_RunSessionServer) error {
	return status.Error(codes.Unimplemented, "method RunSession not implemented")
}

func (UnimplementedFunctionExecutorServer) CheckHealth(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CheckHealth not implemented")
}

func (UnimplementedFunctionExecutorServer) GetInfo(context.Context, *InfoRequest) (*InfoResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetInfo not implemented")
}

func (UnimplementedFunctionExecutorServer) ListAllocations(context.Context, *ListAllocationsRequest) (*ListAllocationsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAllocations not implemented")
}

func (UnimplementedFunctionExecutorServer) DeleteAllocation(context.Context, *DeleteAllocationRequest) (*DeleteAllocationResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteAllocation not implemented")
}

// FunctionExecutor_RunSessionServer is the server side of a session stream.
type FunctionExecutor_RunSessionServer interface {
	Send(*ServerMessage) error
	Recv() (*ClientMessage, error)
	grpc.ServerStream
}

type runSessionServer struct {
	grpc.ServerStream
}

func (x *runSessionServer) Send(m *ServerMessage) error {
	return x.ServerStream.SendMsg(m)
}

func (x *runSessionServer) Recv() (*ClientMessage, error) {
	m := new(ClientMessage)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterFunctionExecutorServer registers srv on s.
func RegisterFunctionExecutorServer(s grpc.ServiceRegistrar, srv FunctionExecutorServer) {
	s.RegisterService(&FunctionExecutorServiceDesc, srv)
}

func initializeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InitializeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FunctionExecutorServer).Initialize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodInitialize}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FunctionExecutorServer).Initialize(ctx, req.(*InitializeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func checkHealthHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HealthCheckRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FunctionExecutorServer).CheckHealth(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCheckHealth}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FunctionExecutorServer).CheckHealth(ctx, req.(*HealthCheckRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getInfoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FunctionExecutorServer).GetInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetInfo}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FunctionExecutorServer).GetInfo(ctx, req.(*InfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listAllocationsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListAllocationsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FunctionExecutorServer).ListAllocations(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListAllocations}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FunctionExecutorServer).ListAllocations(ctx, req.(*ListAllocationsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func deleteAllocationHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteAllocationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FunctionExecutorServer).DeleteAllocation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodDeleteAllocation}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FunctionExecutorServer).DeleteAllocation(ctx, req.(*DeleteAllocationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func runSessionHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(FunctionExecutorServer).RunSession(&runSessionServer{stream})
}

// FunctionExecutorServiceDesc is the grpc.ServiceDesc for the executor
// service. Messages are CBOR encoded, see Codec.
var FunctionExecutorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FunctionExecutorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Initialize", Handler: initializeHandler},
		{MethodName: "CheckHealth", Handler: checkHealthHandler},
		{MethodName: "GetInfo", Handler: getInfoHandler},
		{MethodName: "ListAllocations", Handler: listAllocationsHandler},
		{MethodName: "DeleteAllocation", Handler: deleteAllocationHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "RunSession",
			Handler:       runSessionHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "fexec/executor",
}

// FunctionExecutorClient is the client API for the executor service.
type FunctionExecutorClient interface {
	Initialize(ctx context.Context, in *InitializeRequest, opts ...grpc.CallOption) (*InitializeResponse, error)
	RunSession(ctx context.Context, opts ...grpc.CallOption) (FunctionExecutor_RunSessionClient, error)
	CheckHealth(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error)
	GetInfo(ctx context.Context, in *InfoRequest, opts ...grpc.CallOption) (*InfoResponse, error)
	ListAllocations(ctx context.Context, in *ListAllocationsRequest, opts ...grpc.CallOption) (*ListAllocationsResponse, error)
	DeleteAllocation(ctx context.Context, in *DeleteAllocationRequest, opts ...grpc.CallOption) (*DeleteAllocationResponse, error)
}

type functionExecutorClient struct {
	cc grpc.ClientConnInterface
}

// NewFunctionExecutorClient returns a client that sends every call with the
// CBOR content subtype.
func NewFunctionExecutorClient(cc grpc.ClientConnInterface) FunctionExecutorClient {
	return &functionExecutorClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *functionExecutorClient) Initialize(ctx context.Context, in *InitializeRequest, opts ...grpc.CallOption) (*InitializeResponse, error) {
	out := new(InitializeResponse)
	if err := c.cc.Invoke(ctx, methodInitialize, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *functionExecutorClient) CheckHealth(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error) {
	out := new(HealthCheckResponse)
	if err := c.cc.Invoke(ctx, methodCheckHealth, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *functionExecutorClient) GetInfo(ctx context.Context, in *InfoRequest, opts ...grpc.CallOption) (*InfoResponse, error) {
	out := new(InfoResponse)
	if err := c.cc.Invoke(ctx, methodGetInfo, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *functionExecutorClient) ListAllocations(ctx context.Context, in *ListAllocationsRequest, opts ...grpc.CallOption) (*ListAllocationsResponse, error) {
	out := new(ListAllocationsResponse)
	if err := c.cc.Invoke(ctx, methodListAllocations, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *functionExecutorClient) DeleteAllocation(ctx context.Context, in *DeleteAllocationRequest, opts ...grpc.CallOption) (*DeleteAllocationResponse, error) {
	out := new(DeleteAllocationResponse)
	if err := c.cc.Invoke(ctx, methodDeleteAllocation, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *functionExecutorClient) RunSession(ctx context.Context, opts ...grpc.CallOption) (FunctionExecutor_RunSessionClient, error) {
	stream, err := c.cc.NewStream(ctx, &FunctionExecutorServiceDesc.Streams[0], methodRunSession, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &runSessionClient{stream}, nil
}

// FunctionExecutor_RunSessionClient is the client side of a session stream.
type FunctionExecutor_RunSessionClient interface {
	Send(*ClientMessage) error
	Recv() (*ServerMessage, error)
	grpc.ClientStream
}

type runSessionClient struct {
	grpc.ClientStream
}

func (x *runSessionClient) Send(m *ClientMessage) error {
	return x.ClientStream.SendMsg(m)
}

func (x *runSessionClient) Recv() (*ServerMessage, error) {
	m := new(ServerMessage)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
