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
	"bytes"
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pingcap/fexec/pkg/leakutil"
	"github.com/pingcap/fexec/pkg/logutil"
)

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

func TestPrintJSON(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, PrintJSON(&b, map[string]any{
		"id":    "alloc-1",
		"tries": 2,
	}))
	require.Equal(t, "{\n  \"id\": \"alloc-1\",\n  \"tries\": 2\n}\n", b.String())

	require.Error(t, PrintJSON(&b, make(chan int)))
}

func TestInitLogger(t *testing.T) {
	cfg := &logutil.Config{Level: "warning"}
	require.NoError(t, InitLogger(cfg))
	require.Equal(t, "warn", cfg.Level)

	require.Error(t, InitLogger(&logutil.Config{Level: "loud"}))
}

func TestNotifyShutdownRunsStop(t *testing.T) {
	stopped := make(chan struct{})
	ctx, cancel := NotifyShutdown(context.Background(), func() {
		close(stopped)
	})
	defer cancel()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGHUP))
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context is not canceled after signal")
	}
	select {
	case <-stopped:
	default:
		t.Fatal("stop is not called")
	}
}

func TestNotifyShutdownCancel(t *testing.T) {
	called := false
	ctx, cancel := NotifyShutdown(context.Background(), func() {
		called = true
	})
	cancel()
	<-ctx.Done()
	require.False(t, called)
}
