// Copyright (C) 2017 ScyllaDB

package parallel

import (
	"context"

	apimachineryutilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// ForEach runs f for every index in [0, length) concurrently and waits for all
// of them. The context passed to f is cancelled as soon as any call fails.
// Errors are aggregated in index order.
func ForEach(ctx context.Context, length int, f func(ctx context.Context, i int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		i   int
		err error
	}

	resCh := make(chan result, length)
	for i := range length {
		go func(i int) {
			resCh <- result{i: i, err: f(ctx, i)}
		}(i)
	}

	errs := make([]error, length)
	for range length {
		res := <-resCh
		if res.err != nil {
			cancel()
		}
		errs[res.i] = res.err
	}

	return apimachineryutilerrors.NewAggregate(errs)
}
