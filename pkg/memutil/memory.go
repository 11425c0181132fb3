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

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/pingcap/log"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/pingcap/fexec/pkg/errors"
)

const memoryMax uint64 = math.MaxUint64

// Limit returns the memory available to this process. It is the cgroup
// limit when one is set and the host total otherwise.
func Limit() (uint64, error) {
	limit, err := memlimit.FromCgroup()
	if err == nil && limit > 0 && limit != memoryMax {
		return limit, nil
	}
	log.Debug("no cgroup memory limit, falling back to host memory", zap.Error(err))
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, errors.Trace(err)
	}
	return stat.Total, nil
}

// HostUsedPercent reports the share of host memory in use.
func HostUsedPercent() (float64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, errors.Trace(err)
	}
	return stat.UsedPercent, nil
}

// SetGoMemLimit sets the runtime soft memory limit to ratio of Limit and
// returns the value set. A ratio of 0 leaves the runtime untouched.
func SetGoMemLimit(ratio float64) (int64, error) {
	if ratio < 0 || ratio > 1 {
		return 0, errors.ErrInvalidArgument.GenWithStackByArgs("memory limit ratio must be within [0, 1]")
	}
	if ratio == 0 {
		return 0, nil
	}
	limit, err := Limit()
	if err != nil {
		return 0, err
	}
	goLimit := int64(float64(limit) * ratio)
	if goLimit <= 0 {
		return 0, errors.ErrInvalidArgument.GenWithStackByArgs("memory limit is too small")
	}
	debug.SetMemoryLimit(goLimit)
	return goLimit, nil
}
