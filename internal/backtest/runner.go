// Package backtest drives a strategy over a bar feed one bar at a time.
//
// Each run owns its indicator set, position machine and ledger, so independent
// runs can execute concurrently without locking. Cancellation is checked at the
// top of every bar and leaves a valid partial Result behind.
package backtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/razaquegoraya007/trading-bot-env/internal/domain/indicators"
	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
	"github.com/razaquegoraya007/trading-bot-env/internal/position"
	"github.com/razaquegoraya007/trading-bot-env/internal/report/perf"
	"github.com/razaquegoraya007/trading-bot-env/internal/strategy"
)

// DefaultInitialCash is the starting balance of every run unless overridden
const DefaultInitialCash = 10000.0

// Runner executes one strategy configuration. A Runner holds no per-run state
// and may be reused, including from several goroutines.
type Runner struct {
	params      strategy.Params
	evaluator   strategy.Evaluator
	initialCash float64
	perfConfig  perf.Config
	logger      zerolog.Logger
	recorder    Recorder
	clock       Clock
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger routes per-decision debug events and run summaries to logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithInitialCash sets the starting cash balance
func WithInitialCash(cash float64) Option {
	return func(r *Runner) { r.initialCash = cash }
}

// WithPerfConfig sets the metric calculation options
func WithPerfConfig(cfg perf.Config) Option {
	return func(r *Runner) { r.perfConfig = cfg }
}

// WithRecorder attaches a telemetry sink
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithClock sets the clock implementation (for testing)
func WithClock(c Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// NewRunner validates params and builds a runner. Invalid parameters return a
// *strategy.ConfigError and no runner.
func NewRunner(params strategy.Params, opts ...Option) (*Runner, error) {
	ev, err := strategy.New(params)
	if err != nil {
		return nil, fmt.Errorf("strategy %q: %w", params.Name, err)
	}

	r := &Runner{
		params:      params,
		evaluator:   ev,
		initialCash: DefaultInitialCash,
		perfConfig:  perf.DefaultConfig(),
		logger:      zerolog.Nop(),
		clock:       RealClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.initialCash <= 0 {
		return nil, &strategy.ConfigError{Field: "initial_cash", Reason: fmt.Sprintf("must be positive, got %v", r.initialCash)}
	}
	return r, nil
}

// Name returns the strategy name used in results
func (r *Runner) Name() string {
	if r.params.Name != "" {
		return r.params.Name
	}
	return r.evaluator.Name()
}

// Run processes every bar of feed in order. signals may be nil, meaning every
// bar sees the neutral signal.
//
// A DataError or context cancellation stops the loop at the offending bar. The
// returned Result then covers the bars processed so far, reports any open
// position without closing it, and err is non-nil. A completed run force-closes
// an open position at the final bar.
func (r *Runner) Run(ctx context.Context, feed market.Feed, signals market.SignalSource) (*Result, error) {
	if signals == nil {
		signals = market.NeutralSignals{}
	}

	n := feed.Len()
	res := &Result{
		RunID:       uuid.New(),
		Strategy:    r.Name(),
		Dataset:     feed.Name(),
		Status:      StatusCompleted,
		StartedAt:   r.clock.Now(),
		InitialCash: r.initialCash,
		EquityCurve: make([]EquityPoint, 0, n),
	}
	logger := r.logger.With().
		Str("run_id", res.RunID.String()).
		Str("strategy", res.Strategy).
		Str("dataset", res.Dataset).
		Logger()

	machine := position.NewMachine(r.initialCash)
	set := indicators.NewSet(r.params.Period, r.params.ATRPeriod)

	var (
		runErr error
		prev   market.Bar
	)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run cancelled before bar %d: %w", i, err)
			res.Status = StatusCancelled
			break
		}

		bar := feed.At(i)
		if err := validateBar(i, bar, prev); err != nil {
			runErr = err
			res.Status = StatusAborted
			break
		}
		prev = bar

		snap := set.Update(bar)
		in := strategy.Inputs{
			Index:      i,
			Bar:        bar,
			Indicators: snap,
			Signal:     signals.Lookup(i, bar.Timestamp),
			Position:   machine.State(),
			Levels:     machine.Levels(r.params.Exits, snap.ATR),
		}
		decision := r.evaluator.Evaluate(in)

		// no later bar exists to exit an entry taken on the last one
		if i == n-1 && decision.Action == position.EnterLong {
			decision = position.HoldDecision()
		}

		trade, err := machine.Apply(i, bar, decision)
		if err != nil {
			runErr = fmt.Errorf("apply decision at bar %d: %w", i, err)
			res.Status = StatusAborted
			break
		}
		if decision.Action != position.Hold {
			logger.Debug().
				Int("index", i).
				Stringer("action", decision.Action).
				Stringer("reason", decision.Reason).
				Float64("price", bar.Close).
				Msg("decision")
		}
		if trade != nil {
			r.tradeClosed(*trade)
		}

		res.EquityCurve = append(res.EquityCurve, EquityPoint{
			Index:     i,
			Timestamp: bar.Timestamp,
			Equity:    machine.Equity(bar.Close),
		})
		res.BarsProcessed++
	}

	if runErr == nil && n > 0 {
		trade, err := machine.ForceClose(n-1, prev)
		if err != nil {
			runErr = fmt.Errorf("force close: %w", err)
			res.Status = StatusAborted
		} else if trade != nil {
			logger.Debug().Int("index", n-1).Float64("price", prev.Close).Msg("position force-closed at end of run")
			r.tradeClosed(*trade)
		}
	}

	if st := machine.State(); st.IsLong() {
		res.OpenPosition = &st
	}
	res.Trades = machine.Trades()
	res.FinalEquity = r.initialCash
	if len(res.EquityCurve) > 0 {
		res.FinalEquity = res.EquityCurve[len(res.EquityCurve)-1].Equity
	}
	res.Summary = perf.Summarize(res.Trades, res.Equities(), r.perfConfig)
	res.Duration = r.clock.Now().Sub(res.StartedAt)
	if runErr != nil {
		res.Err = runErr
		res.Error = runErr.Error()
	}

	event := logger.Info()
	var dataErr *DataError
	if runErr != nil {
		event = logger.Warn().Err(runErr)
		if errors.As(runErr, &dataErr) {
			event = event.Int("bad_index", dataErr.Index)
		}
	}
	event.
		Str("status", string(res.Status)).
		Int("bars", res.BarsProcessed).
		Int("trades", len(res.Trades)).
		Float64("final_equity", res.FinalEquity).
		Stringer("sharpe", res.Summary.Sharpe).
		Float64("max_drawdown", res.Summary.MaxDrawdown).
		Msg("backtest run finished")

	if r.recorder != nil {
		r.recorder.RunFinished(res)
	}
	return res, runErr
}

func (r *Runner) tradeClosed(t position.Trade) {
	if r.recorder != nil {
		r.recorder.TradeClosed(r.Name(), t)
	}
}
