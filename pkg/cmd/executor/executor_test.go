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
	"os"
	"path/filepath"
	"testing"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCompleteMergesFlagsOverConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "executor.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "from-file"
addr = "127.0.0.1:20000"
max-sessions = 3
`), 0o600))

	cmd := NewCmdExecutor()
	o := newOptions()
	cmd.ResetFlags()
	o.addFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", path,
		"--addr", "127.0.0.1:30000",
		"--log-level", "debug",
	}))
	require.NoError(t, o.complete(cmd))

	cfg := o.config
	require.Equal(t, "from-file", cfg.Name)
	require.Equal(t, "127.0.0.1:30000", cfg.Addr)
	require.Equal(t, 3, cfg.MaxSessions)
	require.Equal(t, "debug", cfg.LogConf.Level)
	require.Equal(t, uint64(4<<20), cfg.ChunkSize)
}

func TestCompleteRejectsBadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "executor.toml")
	require.NoError(t, os.WriteFile(path, []byte(`no-such-item = 1`), 0o600))

	cmd := NewCmdExecutor()
	o := newOptions()
	cmd.ResetFlags()
	o.addFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))
	err := o.complete(cmd)
	require.True(t, errors.Is(err, errors.ErrConfigUnknownItem), "%v", err)

	o = newOptions()
	cmd.ResetFlags()
	o.addFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--output-blob-uri", "nowhere"}))
	err = o.complete(cmd)
	require.True(t, errors.Is(err, errors.ErrConfigInvalid), "%v", err)
}
