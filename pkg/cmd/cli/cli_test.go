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

package cli

import (
	"bytes"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/pingcap/fexec/client"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
)

func runCli(t *testing.T, m *client.MockExecutorClient, args ...string) (string, error) {
	cmd := newCmdCli(&options{}, func() (client.ExecutorClient, error) {
		return m, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCliInfoAndHealth(t *testing.T) {
	m := client.NewMockExecutorClient(gomock.NewController(t))
	m.EXPECT().GetInfo(gomock.Any()).
		Return(&executorpb.InfoResponse{RuntimeVersion: "v9.9.9", SDKLanguage: "go"}, nil)
	m.EXPECT().CheckHealth(gomock.Any()).
		Return(&executorpb.HealthCheckResponse{Healthy: true}, nil)
	m.EXPECT().Close().Return(nil).Times(2)

	out, err := runCli(t, m, "info")
	require.NoError(t, err)
	require.Contains(t, out, `"runtime_version": "v9.9.9"`)

	out, err = runCli(t, m, "health")
	require.NoError(t, err)
	require.Contains(t, out, `"healthy": true`)
}

func TestCliHealthWait(t *testing.T) {
	m := client.NewMockExecutorClient(gomock.NewController(t))
	gomock.InOrder(
		m.EXPECT().WaitHealthy(gomock.Any(), int64(5)).Return(nil),
		m.EXPECT().CheckHealth(gomock.Any()).
			Return(&executorpb.HealthCheckResponse{Healthy: true, Message: "ready"}, nil),
	)
	m.EXPECT().Close().Return(nil)

	out, err := runCli(t, m, "health", "--wait", "5")
	require.NoError(t, err)
	require.Contains(t, out, `"message": "ready"`)
}

func TestCliAllocations(t *testing.T) {
	m := client.NewMockExecutorClient(gomock.NewController(t))
	m.EXPECT().ListAllocations(gomock.Any()).
		Return([]*executorpb.AllocationInfo{{AllocationID: "a1"}}, nil)
	m.EXPECT().DeleteAllocation(gomock.Any(), "a1").Return(nil)
	m.EXPECT().DeleteAllocation(gomock.Any(), "running").
		Return(errors.ErrAllocationNotTerminal.GenWithStackByArgs("running"))
	m.EXPECT().Close().Return(nil).Times(3)

	out, err := runCli(t, m, "allocation", "list")
	require.NoError(t, err)
	require.Contains(t, out, `"allocation_id": "a1"`)

	out, err = runCli(t, m, "allocation", "delete", "a1")
	require.NoError(t, err)
	require.Contains(t, out, "allocation a1 is deleted")

	_, err = runCli(t, m, "allocation", "delete", "running")
	require.True(t, errors.Is(err, errors.ErrAllocationNotTerminal))

	_, err = runCli(t, m, "allocation", "delete")
	require.Error(t, err)
}
