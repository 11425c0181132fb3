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

package allocation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	allocationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fexec",
			Subsystem: "allocation",
			Name:      "finished_total",
			Help:      "number of allocations that reached a terminal state",
		}, []string{"outcome", "reason"})
	runningAllocationGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fexec",
			Subsystem: "allocation",
			Name:      "running",
			Help:      "number of allocations running a function",
		})
	phaseDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fexec",
			Subsystem: "allocation",
			Name:      "phase_duration_seconds",
			Help:      "duration of the phases of an allocation",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 20),
		}, []string{"phase"})
)

// InitMetrics registers all metrics used by allocations.
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(allocationCounter)
	registry.MustRegister(runningAllocationGauge)
	registry.MustRegister(phaseDurationHistogram)
}
