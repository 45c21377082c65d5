package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
	"github.com/razaquegoraya007/trading-bot-env/internal/strategy"
)

// Job is one strategy over one feed
type Job struct {
	Params  strategy.Params
	Feed    market.Feed
	Signals market.SignalSource
}

// Progress receives a callback as each job of a batch finishes.
// Implementations must be safe for concurrent use.
type Progress interface {
	JobDone(done, total int, r *Result)
}

// Batch runs independent jobs on a bounded number of goroutines
type Batch struct {
	Concurrency int
	Options     []Option
	Progress    Progress
}

// RunBatch runs jobs with at most concurrency in flight, see Batch.Run
func RunBatch(ctx context.Context, jobs []Job, concurrency int, opts ...Option) ([]*Result, error) {
	return Batch{Concurrency: concurrency, Options: opts}.Run(ctx, jobs)
}

// Run builds every runner first so a bad configuration fails the batch before
// any bar is processed. Jobs share nothing; a failing job does not stop its
// siblings. Results are returned in job order and the error joins every
// per-run error.
func (b Batch) Run(ctx context.Context, jobs []Job) ([]*Result, error) {
	runners := make([]*Runner, len(jobs))
	var cfgErrs []error
	for i, job := range jobs {
		r, err := NewRunner(job.Params, b.Options...)
		if err != nil {
			cfgErrs = append(cfgErrs, fmt.Errorf("job %d: %w", i, err))
			continue
		}
		runners[i] = r
	}
	if len(cfgErrs) > 0 {
		return nil, errors.Join(cfgErrs...)
	}

	results := make([]*Result, len(jobs))
	runErrs := make([]error, len(jobs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	if b.Concurrency > 0 {
		g.SetLimit(b.Concurrency)
	}

	for i := range jobs {
		i := i
		g.Go(func() error {
			res, err := runners[i].Run(gctx, jobs[i].Feed, jobs[i].Signals)
			results[i] = res
			if err != nil {
				runErrs[i] = fmt.Errorf("%s: %w", res.Key(), err)
			}
			if b.Progress != nil {
				b.Progress.JobDone(int(done.Add(1)), len(jobs), res)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(runErrs...)
}
