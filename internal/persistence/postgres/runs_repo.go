package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/razaquegoraya007/trading-bot-env/internal/exits"
	"github.com/razaquegoraya007/trading-bot-env/internal/persistence"
	"github.com/razaquegoraya007/trading-bot-env/internal/position"
)

// Schema creates the tables used by the runs repository
const Schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id            UUID PRIMARY KEY,
	strategy      TEXT NOT NULL,
	dataset       TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL,
	initial_cash  DOUBLE PRECISION NOT NULL,
	final_equity  DOUBLE PRECISION NOT NULL,
	bars          INTEGER NOT NULL,
	total_trades  INTEGER NOT NULL,
	sharpe        DOUBLE PRECISION,
	max_drawdown  DOUBLE PRECISION NOT NULL,
	win_rate      DOUBLE PRECISION NOT NULL,
	profit_factor DOUBLE PRECISION,
	summary       JSONB NOT NULL,
	equity_curve  JSONB,
	error         TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS backtest_runs_started_idx ON backtest_runs (started_at DESC);

CREATE TABLE IF NOT EXISTS backtest_trades (
	run_id      UUID NOT NULL REFERENCES backtest_runs (id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	entry_index INTEGER NOT NULL,
	exit_index  INTEGER NOT NULL,
	entry_ts    TIMESTAMPTZ NOT NULL,
	exit_ts     TIMESTAMPTZ NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	exit_price  DOUBLE PRECISION NOT NULL,
	pnl         DOUBLE PRECISION NOT NULL,
	exit_reason TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

const runColumns = `id, strategy, dataset, status, started_at, duration_ms, initial_cash, final_equity,
		bars, total_trades, sharpe, max_drawdown, win_rate, profit_factor, summary, equity_curve, error, created_at`

// runsRepo implements RunsRepo interface for PostgreSQL
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunsRepo creates a new PostgreSQL runs repository
func NewRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.RunsRepo {
	return &runsRepo{
		db:      db,
		timeout: timeout,
	}
}

// EnsureSchema applies Schema
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Save inserts the run row and its trades in one transaction
func (r *runsRepo) Save(ctx context.Context, run persistence.RunRecord, trades []position.Trade) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(trades)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs (id, strategy, dataset, status, started_at, duration_ms, initial_cash,
			final_equity, bars, total_trades, sharpe, max_drawdown, win_rate, profit_factor, summary,
			equity_curve, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		run.ID, run.Strategy, run.Dataset, run.Status, run.StartedAt, run.DurationMS, run.InitialCash,
		run.FinalEquity, run.Bars, run.TotalTrades, run.Sharpe, run.MaxDrawdown, run.WinRate,
		run.ProfitFactor, run.Summary, run.EquityCurve, run.Error)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate run %s: %w", run.ID, err)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(trades) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO backtest_trades (run_id, seq, entry_index, exit_index, entry_ts, exit_ts,
				entry_price, exit_price, pnl, exit_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, t := range trades {
			_, err = stmt.ExecContext(ctx, run.ID, i, t.EntryIndex, t.ExitIndex, t.EntryTime, t.ExitTime,
				t.EntryPrice, t.ExitPrice, t.PnL, t.ExitReason.String())
			if err != nil {
				return fmt.Errorf("failed to insert trade %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Get retrieves one run by id
func (r *runsRepo) Get(ctx context.Context, id uuid.UUID) (*persistence.RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var run persistence.RunRecord
	err := r.db.GetContext(ctx, &run, `SELECT `+runColumns+` FROM backtest_runs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// List retrieves the newest runs matching filter. Equity curves are omitted.
func (r *runsRepo) List(ctx context.Context, filter persistence.RunFilter) ([]persistence.RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		where []string
		args  []interface{}
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("strategy", filter.Strategy)
	add("dataset", filter.Dataset)
	add("status", filter.Status)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + strings.Replace(runColumns, "equity_curve", "NULL AS equity_curve", 1) + ` FROM backtest_runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, len(args))

	var runs []persistence.RunRecord
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Trades retrieves a run's ledger in exit order
func (r *runsRepo) Trades(ctx context.Context, id uuid.UUID) ([]position.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT entry_index, exit_index, entry_ts, exit_ts, entry_price, exit_price, pnl, exit_reason
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []position.Trade
	for rows.Next() {
		var (
			t      position.Trade
			reason string
		)
		if err := rows.Scan(&t.EntryIndex, &t.ExitIndex, &t.EntryTime, &t.ExitTime,
			&t.EntryPrice, &t.ExitPrice, &t.PnL, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		if t.ExitReason, err = exits.ParseReason(reason); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return trades, nil
}
