// Copyright (C) 2017 ScyllaDB

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/atomic"
)

func TestNewExponentialIsBounded(t *testing.T) {
	const (
		initial = 10 * time.Millisecond
		max     = 80 * time.Millisecond
	)

	b := NewExponential(initial, max)

	for i := 0; i < 20; i++ {
		d := b.NextBackOff()
		if d == Stop {
			t.Fatalf("expected backoff to never stop, stopped at attempt %d", i)
		}
		// Jitter can add up to 50% on top of the current interval.
		if d > max+max/2 {
			t.Errorf("attempt %d: expected at most %v, got %v", i, max+max/2, d)
		}
	}

	b.Reset()
	if d := b.NextBackOff(); d > initial+initial/2 {
		t.Errorf("expected reset backoff to start around %v, got %v", initial, d)
	}
}

func TestWithNotify(t *testing.T) {
	attempts := atomic.NewInt64(0)
	notified := atomic.NewInt64(0)

	err := WithNotify(context.Background(), func() error {
		if attempts.Inc() < 3 {
			return errors.New("not yet")
		}
		return nil
	}, NewExponential(time.Millisecond, 2*time.Millisecond), func(err error, d time.Duration) {
		notified.Inc()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := attempts.Load(); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
	if n := notified.Load(); n != 2 {
		t.Errorf("expected 2 notifications, got %d", n)
	}
}

func TestWithNotifyPermanent(t *testing.T) {
	attempts := atomic.NewInt64(0)
	failure := errors.New("fatal")

	err := WithNotify(context.Background(), func() error {
		attempts.Inc()
		return Permanent(failure)
	}, NewExponential(time.Millisecond, time.Millisecond), nil)
	if err != failure {
		t.Errorf("expected %v, got %v", failure, err)
	}

	if n := attempts.Load(); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}
}
