package batch

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Options tunes Run.
type Options struct {
	// Limit is the maximum number of jobs in flight. Values below 1 mean 1.
	Limit int
	// OnDone, when set, is called after each job with the number of finished
	// jobs and the total. It may be called from several goroutines.
	OnDone func(done, total int)
}

// Run applies fn to every input with at most opts.Limit calls in flight and
// returns the results in input order. A job's failure is part of its result;
// it never cancels the others. When ctx is cancelled jobs that have not
// started still run, so fn must observe ctx and degrade on its own.
func Run[T, R any](ctx context.Context, inputs []T, opts Options, fn func(ctx context.Context, index int, input T) R) []R {
	out := make([]R, len(inputs))
	if len(inputs) == 0 {
		return out
	}
	limit := opts.Limit
	if limit < 1 {
		limit = 1
	}

	var done atomic.Int64
	var g errgroup.Group
	g.SetLimit(limit)
	for i, input := range inputs {
		g.Go(func() error {
			out[i] = fn(ctx, i, input)
			n := done.Add(1)
			if opts.OnDone != nil {
				opts.OnDone(int(n), len(inputs))
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
