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

package memutil

import (
	"math"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pingcap/fexec/pkg/errors"
)

func TestLimit(t *testing.T) {
	limit, err := Limit()
	require.NoError(t, err)
	require.Greater(t, limit, uint64(0))

	used, err := HostUsedPercent()
	require.NoError(t, err)
	require.GreaterOrEqual(t, used, 0.0)
	require.LessOrEqual(t, used, 100.0)
}

func TestSetGoMemLimit(t *testing.T) {
	old := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(old)

	for _, ratio := range []float64{-0.1, 1.5} {
		_, err := SetGoMemLimit(ratio)
		require.True(t, errors.Is(err, errors.ErrInvalidArgument), "ratio %v", ratio)
	}

	set, err := SetGoMemLimit(0)
	require.NoError(t, err)
	require.Zero(t, set)
	require.Equal(t, old, debug.SetMemoryLimit(-1))

	limit, err := Limit()
	require.NoError(t, err)
	set, err = SetGoMemLimit(0.5)
	require.NoError(t, err)
	require.InDelta(t, float64(limit)/2, float64(set), 1)
	require.Equal(t, set, debug.SetMemoryLimit(math.MaxInt64))
}
