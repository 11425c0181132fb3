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
// Package clock wraps github.com/benbjohnson/clock with a monotonic
// reading, so that timers of allocations are not affected by wall clock
// jumps and can be driven by a mock in tests.
package clock

import (
	"time"

	bclock "github.com/benbjohnson/clock"
	"github.com/gavv/monotime"
)

// MonotonicTime is a reading of a monotonic clock with an arbitrary origin.
type MonotonicTime time.Duration

// Sub returns m - other.
func (m MonotonicTime) Sub(other MonotonicTime) time.Duration {
	return time.Duration(m - other)
}

// Clock is a wall clock with an additional monotonic reading.
type Clock interface {
	bclock.Clock
	Mono() MonotonicTime
}

type realClock struct {
	bclock.Clock
}

func (realClock) Mono() MonotonicTime {
	return MonoNow()
}

// New returns the real clock.
func New() Clock {
	return realClock{bclock.New()}
}

// MonoNow returns the monotonic reading of the real clock.
func MonoNow() MonotonicTime {
	return MonotonicTime(monotime.Now())
}

// Mock is a manually driven clock. Its monotonic reading is the time since
// the unix epoch.
type Mock struct {
	*bclock.Mock
}

// NewMock returns a mock clock set to the unix epoch.
func NewMock() *Mock {
	return &Mock{bclock.NewMock()}
}

func (m *Mock) Mono() MonotonicTime {
	return ToMono(m.Now())
}

// ToMono converts t to the monotonic reading a Mock shows at t.
func ToMono(t time.Time) MonotonicTime {
	return MonotonicTime(t.Sub(time.Unix(0, 0)))
}

// Stopwatch measures durations on the monotonic reading of a Clock.
type Stopwatch struct {
	clk   Clock
	start MonotonicTime
}

// StartStopwatch returns a running stopwatch.
func StartStopwatch(clk Clock) *Stopwatch {
	return &Stopwatch{clk: clk, start: clk.Mono()}
}

// Elapsed returns the time since the last (re)start.
func (s *Stopwatch) Elapsed() time.Duration {
	return s.clk.Mono().Sub(s.start)
}

// Seconds returns Elapsed in seconds.
func (s *Stopwatch) Seconds() float64 {
	return s.Elapsed().Seconds()
}

// Restart resets the start to now.
func (s *Stopwatch) Restart() {
	s.start = s.clk.Mono()
}
