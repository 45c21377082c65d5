package backtest

import (
	"time"

	"github.com/google/uuid"

	"github.com/razaquegoraya007/trading-bot-env/internal/position"
	"github.com/razaquegoraya007/trading-bot-env/internal/report/perf"
)

// Status describes how a run ended
type Status string

const (
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"   // stopped by a DataError
	StatusCancelled Status = "cancelled" // context cancelled between bars
)

// EquityPoint is the account value marked at one bar's close
type EquityPoint struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"ts"`
	Equity    float64   `json:"equity"`
}

// Result represents the complete outcome of one strategy over one feed.
// It is built once when the run stops and is read-only afterwards.
type Result struct {
	RunID         uuid.UUID        `json:"run_id"`
	Strategy      string           `json:"strategy"`
	Dataset       string           `json:"dataset"`
	Status        Status           `json:"status"`
	StartedAt     time.Time        `json:"started_at"`
	Duration      time.Duration    `json:"duration_ns"`
	InitialCash   float64          `json:"initial_cash"`
	FinalEquity   float64          `json:"final_equity"`
	BarsProcessed int              `json:"bars_processed"`
	Trades        []position.Trade `json:"trades"`
	EquityCurve   []EquityPoint    `json:"equity_curve"`
	Summary       perf.Summary     `json:"summary"`
	OpenPosition  *position.State  `json:"open_position,omitempty"` // only set on aborted or cancelled runs
	Error         string           `json:"error,omitempty"`

	Err error `json:"-"`
}

// Key identifies the run in logs, caches and reports
func (r *Result) Key() string {
	return r.Dataset + "/" + r.Strategy
}

// Equities returns the equity curve values in bar order
func (r *Result) Equities() []float64 {
	out := make([]float64, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		out[i] = p.Equity
	}
	return out
}

// Recorder receives run telemetry. Implementations must be safe for concurrent use.
type Recorder interface {
	TradeClosed(strategy string, t position.Trade)
	RunFinished(r *Result)
}

// Clock interface for time operations (injectable for testing)
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using real time
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}
