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

	"github.com/cenkalti/backoff/v4"
	"github.com/pingcap/errors"
)

// Operation is the action that needs to be retried.
type Operation func() error

// Do calls operation until it succeeds, returns a non retryable error, the
// tries or the elapsed time run out, or ctx is done. The last error of
// operation is returned, or the error of ctx.
func Do(ctx context.Context, operation Operation, opts ...Option) error {
	o := newOptions(opts)

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = o.baseDelay
	exp.MaxInterval = o.maxDelay
	exp.MaxElapsedTime = o.maxElapsed
	var b backoff.BackOff = exp
	if o.maxTries > 0 {
		// counts retries, not tries
		b = backoff.WithMaxRetries(b, o.maxTries-1)
	}
	b = backoff.WithContext(b, ctx)

	var notify backoff.Notify
	if o.onRetry != nil {
		notify = backoff.Notify(o.onRetry)
	}
	err := backoff.RetryNotify(func() error {
		err := operation()
		if err != nil && !o.isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, notify)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return errors.Trace(ctx.Err())
	}
	return errors.Trace(err)
}
