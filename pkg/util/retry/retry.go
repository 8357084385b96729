// Copyright (C) 2017 ScyllaDB

package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// Backoff is a policy for spacing out retries.
type Backoff = backoff.BackOff

// An Operation is executing by WithNotify().
// The operation will be retried using a backoff policy if it returns an error.
type Operation = backoff.Operation

// Notify is a notify-on-error function. It receives an operation error and
// backoff delay if the operation failed (with an error).
type Notify = backoff.Notify

// Stop is returned by Backoff.NextBackOff when no more retries should be made.
const Stop = backoff.Stop

// NewExponential returns a jittered exponential backoff that starts at initial,
// is capped at max and never gives up on its own.
func NewExponential(initial, max time.Duration) Backoff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// WithNotify calls notify function with the error and wait duration
// for each failed attempt before sleep.
func WithNotify(ctx context.Context, op Operation, b Backoff, n Notify) error {
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), n)
}

// Permanent wraps the given err in a *backoff.PermanentError.
// This error interrupts further retries and causes retrying mechanism.
func Permanent(err error) *backoff.PermanentError {
	return backoff.Permanent(err)
}
