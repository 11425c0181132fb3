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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	activeSessionGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fexec",
			Subsystem: "session",
			Name:      "active",
			Help:      "number of open sessions",
		})
	uploadedBytesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fexec",
			Subsystem: "session",
			Name:      "uploaded_bytes_total",
			Help:      "bytes of objects transferred over session streams",
		}, []string{"direction"})
	stateRequestHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fexec",
			Subsystem: "session",
			Name:      "state_request_duration_seconds",
			Help:      "round trip time of request state operations",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 18),
		}, []string{"op", "result"})
	protocolErrorCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fexec",
			Subsystem: "session",
			Name:      "protocol_errors_total",
			Help:      "number of client messages answered with a protocol error",
		})
)

const (
	directionInbound  = "inbound"
	directionOutbound = "outbound"
)

// InitMetrics registers all metrics used by sessions.
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(activeSessionGauge)
	registry.MustRegister(uploadedBytesCounter)
	registry.MustRegister(stateRequestHistogram)
	registry.MustRegister(protocolErrorCounter)
}
