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
package retry

import (
	"time"
)

const (
	defaultBaseDelay = 10 * time.Millisecond
	defaultMaxDelay  = 100 * time.Millisecond
	defaultMaxTries  = 3
)

// Option configures Do.
type Option func(*options)

type options struct {
	// maxTries is zero for unlimited tries
	maxTries    uint64
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxElapsed  time.Duration
	isRetryable func(error) bool
	onRetry     func(err error, delay time.Duration)
}

func newOptions(opts []Option) *options {
	o := &options{
		maxTries:    defaultMaxTries,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		isRetryable: func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxDelay < o.baseDelay {
		o.maxDelay = o.baseDelay
	}
	return o
}

// WithBackoff sets the first delay and the cap of the exponential delays.
// Non-positive values keep the defaults.
func WithBackoff(base, max time.Duration) Option {
	return func(o *options) {
		if base > 0 {
			o.baseDelay = base
		}
		if max > 0 {
			o.maxDelay = max
		}
	}
}

// WithMaxTries limits the number of calls of the operation.
func WithMaxTries(tries uint64) Option {
	return func(o *options) {
		if tries > 0 {
			o.maxTries = tries
		}
	}
}

// WithInfiniteTries retries until success, a permanent error or ctx is done.
func WithInfiniteTries() Option {
	return func(o *options) {
		o.maxTries = 0
	}
}

// WithMaxElapsed gives up once d has passed since the first call.
func WithMaxElapsed(d time.Duration) Option {
	return func(o *options) {
		o.maxElapsed = d
	}
}

// WithIsRetryableErr sets the predicate of retryable errors. All errors are
// retryable by default.
func WithIsRetryableErr(f func(error) bool) Option {
	return func(o *options) {
		if f != nil {
			o.isRetryable = f
		}
	}
}

// WithOnRetry is called after a failed try with the delay before the next.
func WithOnRetry(f func(err error, delay time.Duration)) Option {
	return func(o *options) {
		o.onRetry = f
	}
}
