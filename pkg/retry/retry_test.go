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
	"context"
	"testing"
	"time"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func fastBackoff() Option {
	return WithBackoff(time.Millisecond, 2*time.Millisecond)
}

func TestDoTries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		succeedAt int
		opts      []Option
		calls     int
		wantErr   bool
	}{
		{name: "default tries", succeedAt: -1, calls: defaultMaxTries, wantErr: true},
		{name: "max tries", succeedAt: -1, opts: []Option{WithMaxTries(5)}, calls: 5, wantErr: true},
		{name: "stop on success", succeedAt: 2, opts: []Option{WithMaxTries(5)}, calls: 2},
		{name: "first try", succeedAt: 1, calls: 1},
	}
	for _, tc := range cases {
		var calls int
		opts := append([]Option{fastBackoff()}, tc.opts...)
		err := Do(context.Background(), func() error {
			calls++
			if calls == tc.succeedAt {
				return nil
			}
			return errors.New("test")
		}, opts...)
		require.Equal(t, tc.wantErr, err != nil, tc.name)
		require.Equal(t, tc.calls, calls, tc.name)
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	var callCount int
	permanent := errors.New("permanent")
	f := func() error {
		callCount++
		return permanent
	}

	err := Do(context.Background(), f, WithMaxTries(5), WithIsRetryableErr(func(err error) bool {
		return errors.Cause(err) != permanent
	}))
	require.Equal(t, 1, callCount)
	require.Equal(t, permanent, errors.Cause(err))
}

func TestContextCancel(t *testing.T) {
	t.Parallel()

	var callCount int
	ctx, cancel := context.WithCancel(context.Background())
	f := func() error {
		callCount++
		if callCount == 2 {
			cancel()
		}
		return errors.New("test")
	}

	err := Do(ctx, f, WithInfiniteTries(), fastBackoff())
	require.Equal(t, context.Canceled, errors.Cause(err))
	require.LessOrEqual(t, callCount, 3)
}

func TestOnRetry(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	err := Do(context.Background(), func() error {
		return errors.New("test")
	}, WithMaxTries(4), WithBackoff(time.Millisecond, 3*time.Millisecond),
		WithOnRetry(func(err error, delay time.Duration) {
			require.EqualError(t, err, "test")
			delays = append(delays, delay)
		}))
	require.Error(t, err)
	// no notification after the last try
	require.Len(t, delays, 3)
	for _, d := range delays {
		require.LessOrEqual(t, d, 3*time.Millisecond)
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()

	o := newOptions([]Option{WithBackoff(20*time.Millisecond, 200*time.Millisecond), WithBackoff(-1, 0), WithMaxTries(0)})
	require.Equal(t, 20*time.Millisecond, o.baseDelay)
	require.Equal(t, 200*time.Millisecond, o.maxDelay)
	require.Equal(t, uint64(defaultMaxTries), o.maxTries)

	// the cap never undercuts the first delay
	o = newOptions([]Option{WithBackoff(time.Second, time.Millisecond)})
	require.Equal(t, time.Second, o.maxDelay)

	o = newOptions([]Option{WithInfiniteTries(), WithMaxElapsed(time.Minute)})
	require.Zero(t, o.maxTries)
	require.Equal(t, time.Minute, o.maxElapsed)
}
