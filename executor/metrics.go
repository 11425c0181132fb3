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
	"github.com/pingcap/fexec/executor/allocation"
	"github.com/pingcap/fexec/executor/session"
	"github.com/pingcap/fexec/executor/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var registry = prometheus.NewRegistry()

var initializeCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fexec",
		Subsystem: "executor",
		Name:      "initialize_total",
		Help:      "number of Initialize calls by outcome",
	}, []string{"outcome", "reason"})

func init() {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(initializeCounter)
	grpcMetrics.EnableHandlingTimeHistogram(func(opts *prometheus.HistogramOpts) {
		opts.Namespace = "fexec"
		opts.Buckets = prometheus.ExponentialBuckets(0.001, 4, 10)
	})
	registry.MustRegister(grpcMetrics)

	allocation.InitMetrics(registry)
	session.InitMetrics(registry)
	worker.InitMetrics(registry)
}
