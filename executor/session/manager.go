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
	stderrors "errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pingcap/fexec/executor/allocation"
	"github.com/pingcap/fexec/executor/worker"
	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/logutil"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultStateRequestTimeout = 30 * time.Second
	defaultChunkSize           = 1 << 20
)

// Binder returns the runner of the function the executor is bound to.
type Binder interface {
	Runner() (*allocation.Runner, error)
}

// TaskAdder runs allocations in the background.
type TaskAdder interface {
	AddTask(task worker.Runnable) error
}

// Config configures a Manager.
type Config struct {
	// MaxSessions bounds the number of open sessions, zero is unbounded.
	MaxSessions int
	// DedupCacheSize bounds the content hashes remembered per session.
	DedupCacheSize int
	// StateRequestTimeout bounds request state round trips and the
	// acknowledgement of uploaded outputs.
	StateRequestTimeout time.Duration
	// ChunkSize is the chunk size of outputs uploaded over the stream.
	ChunkSize int
	// Store serves inputs that live in blobs.
	Store *blob.Store
	// OutputSink stores outputs larger than the inline limit. Outputs are
	// uploaded over the session stream when it is nil.
	OutputSink allocation.OutputSink
	// Clock times round trips with the caller, the real clock when nil.
	Clock clock.Clock
}

func (c *Config) adjust() {
	if c.StateRequestTimeout <= 0 {
		c.StateRequestTimeout = defaultStateRequestTimeout
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
}

// Manager owns the sessions of an executor and serves session streams.
type Manager struct {
	cfg    Config
	binder Binder
	table  *allocation.Table
	tasks  TaskAdder

	mu       sync.Mutex
	closed   bool
	sessions map[string]*Session

	logger *zap.Logger
}

// NewManager creates a Manager. Allocations are recorded in table and run
// through tasks.
func NewManager(cfg Config, binder Binder, table *allocation.Table, tasks TaskAdder) *Manager {
	cfg.adjust()
	return &Manager{
		cfg:      cfg,
		binder:   binder,
		table:    table,
		tasks:    tasks,
		sessions: make(map[string]*Session),
		logger:   logutil.NewLogger4Component("session-manager"),
	}
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns the ids of the open sessions in order.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close tears down every session and refuses new ones.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	var errs error
	for _, s := range sessions {
		errs = multierr.Append(errs, s.Close("executor is stopping"))
	}
	return errs
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.ID] == s {
		delete(m.sessions, s.ID)
		activeSessionGauge.Dec()
	}
}

// open returns the session id names, creating it if needed.
func (m *Manager) open(id string) (s *Session, isNew bool, err error) {
	if id == "" {
		return nil, false, errors.ErrInvalidArgument.GenWithStackByArgs("session id is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, errors.ErrRuntimeClosed.GenWithStackByArgs()
	}
	if s, ok := m.sessions[id]; ok {
		return s, false, nil
	}
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, false, errors.ErrSessionLimitExceeded.GenWithStackByArgs(m.cfg.MaxSessions)
	}
	s = newSession(m, id)
	m.sessions[id] = s
	activeSessionGauge.Inc()
	return s, true, nil
}

// Serve drives one session stream until the caller leaves or the stream
// breaks. Breaking the stream without leaving tears the session down.
func (m *Manager) Serve(stream executorpb.FunctionExecutor_RunSessionServer) error {
	var (
		s   *Session
		att *attachment
	)
	for {
		msg, err := stream.Recv()
		if err != nil {
			if s != nil {
				s.lose(att, err)
			}
			if stderrors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}

		if s == nil {
			s, att = m.attach(stream, msg)
			continue
		}
		switch {
		case msg.OpenSession != nil:
			resp := &executorpb.OpenSessionResponse{Accepted: true}
			if msg.OpenSession.SessionID != s.ID {
				resp = &executorpb.OpenSessionResponse{
					Message: errors.ErrProtocolViolation.GenWithStackByArgs(
						"stream is already attached to session " + s.ID).Error(),
				}
			}
			s.send(&executorpb.ServerMessage{OpenSessionResponse: resp})
		case msg.LeaveSession != nil:
			s.leave(att, msg.LeaveSession.Close)
			return nil
		default:
			s.handle(stream.Context(), msg)
		}
	}
}

// attach opens the session msg asks for on stream. Until a session is
// attached nothing else writes to stream.
func (m *Manager) attach(
	stream executorpb.FunctionExecutor_RunSessionServer, msg *executorpb.ClientMessage,
) (*Session, *attachment) {
	if msg.OpenSession == nil {
		protocolErrorCounter.Inc()
		err := errors.ErrSessionNotOpen.GenWithStackByArgs()
		m.logger.Warn("message before open session", zap.Error(err))
		m.sendDirect(stream, &executorpb.ServerMessage{
			ProtocolError: &executorpb.ProtocolError{Message: err.Error()},
		})
		return nil, nil
	}

	id := msg.OpenSession.SessionID
	s, isNew, err := m.open(id)
	if err == nil {
		var att *attachment
		att, err = s.attach(stream, &executorpb.ServerMessage{
			OpenSessionResponse: &executorpb.OpenSessionResponse{Accepted: true, IsNew: isNew},
		})
		if err == nil {
			s.logger.Info("session attached", zap.Bool("isNew", isNew))
			return s, att
		}
	}
	m.logger.Info("open session refused", zap.String("sessionID", id), zap.Error(err))
	m.sendDirect(stream, &executorpb.ServerMessage{
		OpenSessionResponse: &executorpb.OpenSessionResponse{Message: err.Error()},
	})
	return nil, nil
}

func (m *Manager) sendDirect(stream executorpb.FunctionExecutor_RunSessionServer, msg *executorpb.ServerMessage) {
	if err := stream.Send(msg); err != nil {
		m.logger.Warn("send to stream failed", zap.Error(err))
	}
}

