package services

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// fanOut runs fn for i in [0, n) with at most limit calls in flight and
// waits for all of them. A failing call does not cancel its siblings; every
// error is collected into the returned multierr.
func fanOut(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := fn(ctx, i); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return errs
}
