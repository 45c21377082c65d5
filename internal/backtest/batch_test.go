package backtest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
	"github.com/razaquegoraya007/trading-bot-env/internal/strategy"
)

type countingProgress struct {
	mu    sync.Mutex
	seen  []int
	total int
}

func (p *countingProgress) JobDone(done, total int, _ *Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, done)
	p.total = total
}

func TestRunBatch_KeepsJobOrder(t *testing.T) {
	closes := []float64{10, 9, 8, 11, 13, 12, 10, 9, 12, 14}
	var jobs []Job
	for _, kind := range []strategy.Kind{strategy.MeanReversion, strategy.Momentum, strategy.SentimentGated} {
		p := strategy.DefaultParams(kind)
		p.Period = 2
		jobs = append(jobs, Job{
			Params: p,
			Feed:   market.NewSliceFeed("btc", market.Closes(t0, closes...)),
		})
	}

	progress := &countingProgress{}
	results, err := Batch{Concurrency: 2, Progress: progress}.Run(context.Background(), jobs)
	require.NoError(t, err)

	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, string(jobs[i].Params.Kind), res.Strategy)
		assert.Equal(t, "btc", res.Dataset)
		assert.Len(t, res.EquityCurve, len(closes))
	}

	assert.ElementsMatch(t, []int{1, 2, 3}, progress.seen)
	assert.Equal(t, 3, progress.total)
}

func TestRunBatch_MatchesSequentialRuns(t *testing.T) {
	p := strategy.DefaultParams(strategy.MeanReversion)
	p.Period = 2
	f := market.NewSliceFeed("aapl", market.Closes(t0, 10, 9, 8, 11, 13))

	results, err := RunBatch(context.Background(), []Job{{Params: p, Feed: f}, {Params: p, Feed: f}}, 0)
	require.NoError(t, err)

	single, err := mustRunner(t, p).Run(context.Background(), f, nil)
	require.NoError(t, err)
	for _, res := range results {
		assert.Equal(t, single.Trades, res.Trades)
		assert.Equal(t, single.EquityCurve, res.EquityCurve)
	}
	assert.NotEqual(t, results[0].RunID, results[1].RunID)
}

func TestRunBatch_DataErrorDoesNotStopSiblings(t *testing.T) {
	p := strategy.DefaultParams(strategy.MeanReversion)
	p.Period = 2

	bad := market.Closes(t0, 10, 9, 8)
	bad[2].Timestamp = bad[0].Timestamp

	results, err := RunBatch(context.Background(), []Job{
		{Params: p, Feed: market.NewSliceFeed("bad", bad)},
		{Params: p, Feed: market.NewSliceFeed("good", market.Closes(t0, 10, 9, 8, 11, 13))},
	}, 1)

	var dataErr *DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Contains(t, err.Error(), "bad/mean_reversion")

	assert.Equal(t, StatusAborted, results[0].Status)
	assert.Equal(t, StatusCompleted, results[1].Status)
	assert.Len(t, results[1].Trades, 1)
}

func TestRunBatch_ConfigErrorFailsFast(t *testing.T) {
	good := strategy.DefaultParams(strategy.Momentum)
	bad := strategy.DefaultParams(strategy.Momentum)
	bad.RSIOverbought = 10

	results, err := RunBatch(context.Background(), []Job{
		{Params: good, Feed: market.NewSliceFeed("x", nil)},
		{Params: bad, Feed: market.NewSliceFeed("x", nil)},
	}, 2)

	assert.Nil(t, results)
	var cfgErr *strategy.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "job 1")
}

func TestRunBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := strategy.DefaultParams(strategy.MeanReversion)
	results, err := RunBatch(ctx, []Job{{Params: p, Feed: market.NewSliceFeed("x", market.Closes(t0, 1, 2, 3))}}, 1)

	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.Equal(t, StatusCancelled, results[0].Status)
}
