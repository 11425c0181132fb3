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
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pingcap/fexec/executor/allocation"
	"github.com/pingcap/fexec/executor/function"
	"github.com/pingcap/fexec/executor/session"
	"github.com/pingcap/fexec/executor/worker"
	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/blob/gcsstore"
	"github.com/pingcap/fexec/pkg/blob/localfs"
	"github.com/pingcap/fexec/pkg/blob/s3store"
	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/logutil"
	"github.com/pingcap/fexec/pkg/plan"
	"github.com/pingcap/fexec/pkg/tcpserver"
	"github.com/pingcap/fexec/pkg/tracing"
	"github.com/pingcap/fexec/pkg/version"
	"github.com/pingcap/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const serviceName = "fexec"

// Server is a function executor. It is bound to one function by
// Initialize and runs allocations of it submitted over sessions.
type Server struct {
	executorpb.UnimplementedFunctionExecutorServer

	cfg      *Config
	registry *function.Registry
	clock    clock.Clock

	initMu      sync.RWMutex
	initialized bool
	ref         plan.FunctionRef
	runner      *allocation.Runner
	initErr     error

	store      *blob.Store
	table      *allocation.Table
	taskRunner *worker.TaskRunner
	sessions   *session.Manager

	grpcSrv   *grpc.Server
	healthSrv *health.Server
	tcpServer tcpserver.TCPServer
	closeMu   sync.Mutex
	closers   []func() error
	stopOnce  sync.Once

	startTime time.Time
	// limits the logs of frequently polled apis
	infoLogLimiter *rate.Limiter
}

// NewServer creates an executor serving the functions of registry.
func NewServer(cfg *Config, registry *function.Registry) *Server {
	if registry == nil {
		registry = function.DefaultRegistry
	}
	clk := clock.New()
	s := &Server{
		cfg:            cfg,
		registry:       registry,
		clock:          clk,
		store:          newBlobStore(cfg),
		table:          allocation.NewTable(),
		taskRunner:     worker.NewTaskRunner(cfg.AllocationQueueSize),
		healthSrv:      health.NewServer(),
		startTime:      clk.Now(),
		infoLogLimiter: rate.NewLimiter(rate.Every(time.Second*5), 1 /*burst*/),
	}
	var sink allocation.OutputSink
	if cfg.OutputBlobURI != "" {
		sink = allocation.NewBlobSink(s.store, cfg.OutputBlobURI)
	}
	s.sessions = session.NewManager(session.Config{
		MaxSessions:         cfg.MaxSessions,
		DedupCacheSize:      cfg.DedupCacheSize,
		StateRequestTimeout: cfg.StateRequestTimeout,
		ChunkSize:           int(cfg.ChunkSize),
		Store:               s.store,
		OutputSink:          sink,
		Clock:               s.clock,
	}, s, s.table, s.taskRunner)
	s.setServing(true)
	return s
}

func newBlobStore(cfg *Config) *blob.Store {
	return blob.NewStore(
		blob.WithBackend(blob.SchemeFile, localfs.New()),
		blob.WithIOConcurrency(cfg.BlobIOConcurrency),
		blob.WithChunkSize(cfg.ChunkSize),
	)
}

// registerCloudBackends adds the s3 and gs backends. A backend that cannot
// be created is skipped, uris of its scheme are then unsupported.
func (s *Server) registerCloudBackends(ctx context.Context) {
	s3Backend, err := s3store.New(ctx, s3store.Config{
		Region:   s.cfg.S3.Region,
		Endpoint: s.cfg.S3.Endpoint,
	})
	if err != nil {
		log.Warn("s3 blob backend is disabled", zap.Error(err))
	} else {
		s.store.Register(blob.SchemeS3, s3Backend)
	}

	gcsBackend, err := gcsstore.New(ctx, gcsstore.Config{
		Endpoint:        s.cfg.GCS.Endpoint,
		CredentialsFile: s.cfg.GCS.CredentialsFile,
		Anonymous:       s.cfg.GCS.Anonymous,
	})
	if err != nil {
		log.Warn("gcs blob backend is disabled", zap.Error(err))
		return
	}
	s.store.Register(blob.SchemeGCS, gcsBackend)
	s.addCloser(gcsBackend.Close)
}

func (s *Server) addCloser(fn func() error) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	s.closers = append(s.closers, fn)
}

func (s *Server) setServing(serving bool) {
	st := healthpb.HealthCheckResponse_SERVING
	if !serving {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.healthSrv.SetServingStatus("", st)
	s.healthSrv.SetServingStatus(executorpb.ServiceName, st)
}

// Initialize implements executorpb.FunctionExecutorServer. Only the first
// call binds the executor, a failed binding is permanent.
func (s *Server) Initialize(_ context.Context, req *executorpb.InitializeRequest) (*executorpb.InitializeResponse, error) {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.initialized {
		var err error
		if s.initErr != nil {
			err = errors.WrapError(errors.ErrInitializationFailed, s.initErr, s.initErr.Error())
		} else {
			err = errors.ErrAlreadyInitialized.GenWithStackByArgs(s.ref.String())
		}
		log.Warn("executor is initialized more than once",
			zap.Stringer("function", req.Function), zap.Error(err))
		initializeCounter.WithLabelValues("failure", executorpb.InitializationFailureReasonInternalError.String()).Inc()
		return initFailure(executorpb.InitializationFailureReasonInternalError, err), nil
	}
	s.initialized = true
	s.ref = req.Function

	runner, reason, err := s.bind(req)
	if err != nil {
		s.initErr = err
		s.setServing(false)
		log.Error("executor initialization failed",
			zap.Stringer("function", req.Function),
			zap.Stringer("reason", reason),
			zap.Error(err))
		initializeCounter.WithLabelValues("failure", reason.String()).Inc()
		return initFailure(reason, err), nil
	}
	s.runner = runner
	initializeCounter.WithLabelValues("success", "").Inc()
	log.Info("executor initialized", zap.Stringer("function", req.Function))
	return &executorpb.InitializeResponse{Outcome: executorpb.InitializationOutcomeSuccess}, nil
}

// bind loads the application code and resolves the function handler.
// Problems of the application code are function errors.
func (s *Server) bind(req *executorpb.InitializeRequest) (*allocation.Runner, executorpb.InitializationFailureReason, error) {
	if err := req.Function.Validate(); err != nil {
		return nil, executorpb.InitializationFailureReasonInternalError, err
	}
	app, err := function.LoadApplication(req.ApplicationCode)
	if err != nil {
		return nil, executorpb.InitializationFailureReasonFunctionError, err
	}
	fn, err := app.Bind(req.Function, s.registry)
	if err != nil {
		return nil, executorpb.InitializationFailureReasonFunctionError, err
	}
	return allocation.NewRunner(fn, app,
		allocation.WithClock(s.clock),
		allocation.WithInlineOutputLimit(s.cfg.InlineOutputLimit),
	), executorpb.InitializationFailureReasonUnknown, nil
}

func initFailure(reason executorpb.InitializationFailureReason, err error) *executorpb.InitializeResponse {
	return &executorpb.InitializeResponse{
		Outcome:       executorpb.InitializationOutcomeFailure,
		FailureReason: reason,
		Message:       err.Error(),
	}
}

// Runner returns the runner of the bound function. It implements
// session.Binder.
func (s *Server) Runner() (*allocation.Runner, error) {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	switch {
	case s.runner != nil:
		return s.runner, nil
	case s.initErr != nil:
		return nil, errors.WrapError(errors.ErrInitializationFailed, s.initErr, s.initErr.Error())
	default:
		return nil, errors.ErrNotInitialized.GenWithStackByArgs()
	}
}

// RunSession implements executorpb.FunctionExecutorServer.
func (s *Server) RunSession(stream executorpb.FunctionExecutor_RunSessionServer) error {
	return s.sessions.Serve(stream)
}

// CheckHealth implements executorpb.FunctionExecutorServer.
func (s *Server) CheckHealth(_ context.Context, _ *executorpb.HealthCheckRequest) (*executorpb.HealthCheckResponse, error) {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	resp := &executorpb.HealthCheckResponse{Healthy: true}
	switch {
	case s.initErr != nil:
		resp.Healthy = false
		resp.Message = errors.WrapError(errors.ErrInitializationFailed, s.initErr, s.initErr.Error()).Error()
	case !s.initialized:
		resp.Message = "not initialized"
	}
	if s.infoLogLimiter.Allow() {
		log.Info("health check", zap.Bool("healthy", resp.Healthy), zap.String("message", resp.Message))
	}
	return resp, nil
}

// GetInfo implements executorpb.FunctionExecutorServer.
func (s *Server) GetInfo(_ context.Context, _ *executorpb.InfoRequest) (*executorpb.InfoResponse, error) {
	return &executorpb.InfoResponse{
		RuntimeVersion:     version.ReleaseVersion,
		SDKVersion:         version.SDKVersion,
		SDKLanguage:        version.SDKLanguage,
		SDKLanguageVersion: version.GoVersion,
	}, nil
}

// ListAllocations implements executorpb.FunctionExecutorServer.
func (s *Server) ListAllocations(_ context.Context, _ *executorpb.ListAllocationsRequest) (*executorpb.ListAllocationsResponse, error) {
	allocs := s.table.List()
	resp := &executorpb.ListAllocationsResponse{Allocations: make([]*executorpb.AllocationInfo, 0, len(allocs))}
	for _, a := range allocs {
		resp.Allocations = append(resp.Allocations, a.Info())
	}
	return resp, nil
}

// DeleteAllocation implements executorpb.FunctionExecutorServer. Only
// terminal allocations can be deleted.
func (s *Server) DeleteAllocation(_ context.Context, req *executorpb.DeleteAllocationRequest) (*executorpb.DeleteAllocationResponse, error) {
	if err := s.deleteAllocation(req.AllocationID); err != nil {
		return nil, errors.ToGRPCError(err)
	}
	return &executorpb.DeleteAllocationResponse{}, nil
}

func (s *Server) deleteAllocation(id string) error {
	if id == "" {
		return errors.ErrInvalidArgument.GenWithStackByArgs("allocation id is empty")
	}
	if err := s.table.Delete(id); err != nil {
		return err
	}
	log.Info("allocation deleted", zap.String("allocationID", id))
	return nil
}

// Run starts the executor and blocks until ctx is canceled or a service
// fails.
func (s *Server) Run(ctx context.Context) error {
	shutdownTracing, err := tracing.Setup(ctx, s.cfg.TracingEndpoint, serviceName, version.ReleaseVersion)
	if err != nil {
		return err
	}
	s.addCloser(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracing(ctx)
	})
	s.registerCloudBackends(ctx)

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return s.taskRunner.Run(ctx)
	})

	s.grpcSrv = newGRPCServer()
	if err := s.startTCPService(ctx, wg); err != nil {
		return err
	}

	wg.Go(func() error {
		<-ctx.Done()
		return s.sessions.Close()
	})
	return wg.Wait()
}

// startTCPService starts grpc server and http server
func (s *Server) startTCPService(ctx context.Context, wg *errgroup.Group) error {
	tcpServer, err := tcpserver.NewTCPServer(s.cfg.Addr)
	if err != nil {
		return err
	}
	s.tcpServer = tcpServer
	executorpb.RegisterFunctionExecutorServer(s.grpcSrv, s)
	healthpb.RegisterHealthServer(s.grpcSrv, s.healthSrv)
	grpcMetrics.InitializeMetrics(s.grpcSrv)
	log.Info("listen address", zap.String("addr", s.cfg.Addr), zap.Stringer("bound", tcpServer.Addr()))

	wg.Go(func() error {
		return s.tcpServer.Run(ctx)
	})

	wg.Go(func() error {
		return s.grpcSrv.Serve(s.tcpServer.GrpcListener())
	})

	wg.Go(func() error {
		httpSrv := &http.Server{
			Handler:           newRouter(s),
			ReadHeaderTimeout: 10 * time.Second,
		}
		err := httpSrv.Serve(s.tcpServer.HTTP1Listener())
		if err != nil && !isErrNetClosing(err) && err != http.ErrServerClosed {
			log.Error("http server returned", logutil.ShortError(err))
		}
		return err
	})
	return nil
}

// Stop stops the services and tears down all sessions. It can be called
// more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(s.stop)
}

func (s *Server) stop() {
	s.healthSrv.Shutdown()
	if err := s.sessions.Close(); err != nil {
		log.Warn("close sessions", zap.Error(err))
	}
	if s.grpcSrv != nil {
		s.grpcSrv.Stop()
	}
	if s.tcpServer != nil {
		if err := s.tcpServer.Close(); err != nil {
			log.Error("close tcp server", zap.Error(err))
		}
	}

	s.closeMu.Lock()
	closers := s.closers
	s.closers = nil
	s.closeMu.Unlock()
	var errs error
	for _, fn := range closers {
		errs = multierr.Append(errs, fn())
	}
	if errs != nil {
		log.Warn("release executor resources", zap.Error(errs))
	}
}

