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
package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	queuedTaskGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fexec",
		Subsystem: "worker",
		Name:      "queued_tasks",
		Help:      "Number of tasks waiting to be launched",
	})
	queueWaitHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fexec",
		Subsystem: "worker",
		Name:      "queue_wait_seconds",
		Help:      "Time tasks spent in the queue before being launched",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
	})
	taskDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fexec",
		Subsystem: "worker",
		Name:      "task_duration_seconds",
		Help:      "Run time of tasks",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 20),
	}, []string{"result"})
)

// InitMetrics registers the worker metrics.
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(queuedTaskGauge)
	registry.MustRegister(queueWaitHistogram)
	registry.MustRegister(taskDurationHistogram)
}
