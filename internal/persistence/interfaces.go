package persistence

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/razaquegoraya007/trading-bot-env/internal/backtest"
	"github.com/razaquegoraya007/trading-bot-env/internal/position"
)

// ErrNotFound is returned when a run id has no stored record
var ErrNotFound = errors.New("run not found")

// RunRecord is one stored backtest run. Ratios that are not available, or are
// infinite, are stored as NULL; the full summary is kept in SummaryJSON.
type RunRecord struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Strategy     string          `json:"strategy" db:"strategy"`
	Dataset      string          `json:"dataset" db:"dataset"`
	Status       string          `json:"status" db:"status"`
	StartedAt    time.Time       `json:"started_at" db:"started_at"`
	DurationMS   int64           `json:"duration_ms" db:"duration_ms"`
	InitialCash  float64         `json:"initial_cash" db:"initial_cash"`
	FinalEquity  float64         `json:"final_equity" db:"final_equity"`
	Bars         int             `json:"bars" db:"bars"`
	TotalTrades  int             `json:"total_trades" db:"total_trades"`
	Sharpe       *float64        `json:"sharpe,omitempty" db:"sharpe"`
	MaxDrawdown  float64         `json:"max_drawdown" db:"max_drawdown"`
	WinRate      float64         `json:"win_rate" db:"win_rate"`
	ProfitFactor *float64        `json:"profit_factor,omitempty" db:"profit_factor"`
	Summary      JSONB           `json:"summary" db:"summary"`
	EquityCurve  JSONB           `json:"equity_curve,omitempty" db:"equity_curve"`
	Error        *string         `json:"error,omitempty" db:"error"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// JSONB is a raw JSON document column. NULL scans to an empty value.
type JSONB []byte

// Scan implements sql.Scanner
func (j *JSONB) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONB(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", src)
	}
	return nil
}

// Value implements driver.Valuer
func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// MarshalJSON emits the document unchanged
func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON keeps a copy of the raw document
func (j *JSONB) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[:0], b...)
	return nil
}

// RunFilter narrows ListRuns; empty fields match everything
type RunFilter struct {
	Strategy string
	Dataset  string
	Status   string
	Limit    int
}

// RunsRepo persists backtest runs with their trade ledgers
type RunsRepo interface {
	// Save stores the run and its trades atomically
	Save(ctx context.Context, run RunRecord, trades []position.Trade) error

	// Get returns one run, or ErrNotFound
	Get(ctx context.Context, id uuid.UUID) (*RunRecord, error)

	// List returns the newest runs first
	List(ctx context.Context, filter RunFilter) ([]RunRecord, error)

	// Trades returns a run's ledger in exit order
	Trades(ctx context.Context, id uuid.UUID) ([]position.Trade, error)
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
	StoredRuns     int64          `json:"stored_runs"`
}

// RepositoryHealth provides health monitoring for persistence layer
type RepositoryHealth interface {
	// Health returns current repository health status
	Health(ctx context.Context) HealthCheck

	// Ping tests basic connectivity to database
	Ping(ctx context.Context) error
}

// NewRunRecord flattens a result into its stored form
func NewRunRecord(res *backtest.Result) (RunRecord, error) {
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to marshal summary: %w", err)
	}
	equity, err := json.Marshal(res.EquityCurve)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to marshal equity curve: %w", err)
	}

	rec := RunRecord{
		ID:          res.RunID,
		Strategy:    res.Strategy,
		Dataset:     res.Dataset,
		Status:      string(res.Status),
		StartedAt:   res.StartedAt,
		DurationMS:  res.Duration.Milliseconds(),
		InitialCash: res.InitialCash,
		FinalEquity: res.FinalEquity,
		Bars:        res.BarsProcessed,
		TotalTrades: len(res.Trades),
		MaxDrawdown: res.Summary.MaxDrawdown,
		WinRate:     res.Summary.WinRate,
		Summary:     summary,
		EquityCurve: equity,
	}
	if s := res.Summary.Sharpe; s.Valid && !math.IsInf(s.Value, 0) {
		v := s.Value
		rec.Sharpe = &v
	}
	if pf := res.Summary.ProfitFactor; pf.Valid && !math.IsInf(pf.Value, 0) {
		v := pf.Value
		rec.ProfitFactor = &v
	}
	if res.Error != "" {
		e := res.Error
		rec.Error = &e
	}
	return rec, nil
}
