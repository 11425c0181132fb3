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
	"io"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/logutil"
	"github.com/pingcap/fexec/pkg/memutil"
	"github.com/pingcap/fexec/pkg/version"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Status is the response of /api/v1/status.
type Status struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	GitHash     string `json:"git_hash"`
	Function    string `json:"function,omitempty"`
	Initialized bool   `json:"initialized"`
	Healthy     bool   `json:"healthy"`
	Message     string `json:"message,omitempty"`
	Sessions    int    `json:"sessions"`
	Allocations int    `json:"allocations"`
	Running     int64  `json:"running"`
	Queued      int    `json:"queued"`
	Uptime      string `json:"uptime"`

	// MemoryLimit is the cgroup or host memory limit, human readable.
	MemoryLimit       string  `json:"memory_limit,omitempty"`
	HostMemoryPercent float64 `json:"host_memory_used_percent,omitempty"`
}

type httpError struct {
	Error string `json:"error_msg"`
	Code  string `json:"error_code,omitempty"`
}

type logLevelRequest struct {
	Level string `json:"log_level"`
}

// newRouter creates the http api of s.
func newRouter(s *Server) *gin.Engine {
	// discard gin default log output
	gin.DefaultWriter = io.Discard

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	apiGroup := router.Group("/api/v1")
	{
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.POST("/log", handleSetLogLevel)
		apiGroup.GET("/allocations", s.handleListAllocations)
		apiGroup.GET("/allocations/:allocation_id", s.handleGetAllocation)
		apiGroup.DELETE("/allocations/:allocation_id", s.handleDeleteAllocation)
		apiGroup.GET("/tasks", s.handleListTasks)
	}

	pprofGroup := router.Group("/debug/pprof")
	{
		pprofGroup.GET("", gin.WrapF(pprof.Index))
		pprofGroup.GET("/:any", gin.WrapF(pprof.Index))
		pprofGroup.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pprofGroup.GET("/profile", gin.WrapF(pprof.Profile))
		pprofGroup.GET("/symbol", gin.WrapF(pprof.Symbol))
		pprofGroup.GET("/trace", gin.WrapF(pprof.Trace))
	}
	return router
}

func (s *Server) handleStatus(c *gin.Context) {
	health, _ := s.CheckHealth(c.Request.Context(), &executorpb.HealthCheckRequest{})
	s.initMu.RLock()
	st := &Status{
		Name:        s.cfg.Name,
		Version:     version.ReleaseVersion,
		GitHash:     version.GitHash,
		Initialized: s.initialized,
		Healthy:     health.Healthy,
		Message:     health.Message,
	}
	if s.initialized {
		st.Function = s.ref.String()
	}
	s.initMu.RUnlock()
	st.Sessions = s.sessions.Len()
	st.Allocations = s.table.Len()
	st.Running = s.taskRunner.TaskCount()
	st.Queued = s.taskRunner.QueueLen()
	st.Uptime = s.clock.Since(s.startTime).Truncate(time.Second).String()
	if limit, err := memutil.Limit(); err == nil {
		st.MemoryLimit = humanize.IBytes(limit)
	}
	if used, err := memutil.HostUsedPercent(); err == nil {
		st.HostMemoryPercent = used
	}
	c.IndentedJSON(http.StatusOK, st)
}

func (s *Server) handleListAllocations(c *gin.Context) {
	resp, _ := s.ListAllocations(c.Request.Context(), &executorpb.ListAllocationsRequest{})
	c.IndentedJSON(http.StatusOK, resp.Allocations)
}

func (s *Server) handleListTasks(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.taskRunner.Tasks())
}

func (s *Server) handleGetAllocation(c *gin.Context) {
	id := c.Param("allocation_id")
	a, ok := s.table.Get(id)
	if !ok {
		abortWithError(c, errors.ErrAllocationNotFound.GenWithStackByArgs(id))
		return
	}
	c.IndentedJSON(http.StatusOK, a.Info())
}

func (s *Server) handleDeleteAllocation(c *gin.Context) {
	if err := s.deleteAllocation(c.Param("allocation_id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func handleSetLogLevel(c *gin.Context) {
	var req logLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.WrapError(errors.ErrInvalidArgument, err, "invalid log level request"))
		return
	}
	if err := logutil.SetLogLevel(req.Level); err != nil {
		abortWithError(c, errors.WrapError(errors.ErrInvalidArgument, err, "invalid log level "+req.Level))
		return
	}
	log.Warn("log level changed", zap.String("level", req.Level))
	c.Status(http.StatusOK)
}

func abortWithError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.ErrAllocationNotFound):
		code = http.StatusNotFound
	case errors.IsAny(err, errors.ErrInvalidArgument, errors.ErrAllocationNotTerminal):
		code = http.StatusBadRequest
	}
	resp := httpError{}
	if rfc, ok := errors.RFCCode(err); ok {
		resp.Code = string(rfc)
	}
	if st, ok := status.FromError(err); ok {
		code = httpStatusOfGRPC(st)
		err = errors.New(st.Message())
	}
	resp.Error = err.Error()
	c.IndentedJSON(code, resp)
	c.Abort()
}

func httpStatusOfGRPC(st *status.Status) int {
	switch st.Code() {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument, codes.FailedPrecondition:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// isErrNetClosing checks whether is an ErrNetClosing error
func isErrNetClosing(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}
