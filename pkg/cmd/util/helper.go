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

package util

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/logutil"
)

var shutdownSignals = []os.Signal{
	syscall.SIGHUP,
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// InitLogger adjusts logCfg and installs it as the global logger.
func InitLogger(logCfg *logutil.Config) error {
	logCfg.Adjust()
	if err := logutil.InitLogger(logCfg); err != nil {
		return errors.WrapError(errors.ErrInvalidArgument, err, "log config")
	}
	log.Info("logger initialized", zap.String("file", logCfg.File), zap.String("level", logCfg.Level))
	return nil
}

// NotifyShutdown derives a context that ends when the process is asked to
// exit. The first signal runs stop; the context is canceled once stop
// returns or a second signal forces the exit.
func NotifyShutdown(parent context.Context, stop func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	// Supervisors such as systemd and k8s may signal twice.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, shutdownSignals...)

	go func() {
		defer signal.Stop(sigCh)

		var sig os.Signal
		select {
		case sig = <-sigCh:
		case <-ctx.Done():
			return
		}
		log.Info("received signal, shutting down", zap.Stringer("signal", sig))

		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			stop()
		}()
		select {
		case <-stopped:
			log.Info("shutdown complete")
		case sig = <-sigCh:
			log.Warn("received another signal, forcing exit", zap.Stringer("signal", sig))
		}
		cancel()
	}()
	return ctx, cancel
}

// PrintJSON writes v to w as indented JSON followed by a newline.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Trace(enc.Encode(v))
}
