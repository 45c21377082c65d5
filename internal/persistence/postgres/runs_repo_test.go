package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razaquegoraya007/trading-bot-env/internal/exits"
	"github.com/razaquegoraya007/trading-bot-env/internal/persistence"
	"github.com/razaquegoraya007/trading-bot-env/internal/position"
)

var (
	runID = uuid.MustParse("6f1c2b7e-3d4a-4c5b-9e8f-0a1b2c3d4e5f")
	t0    = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func sampleRun() persistence.RunRecord {
	sharpe := 1.25
	return persistence.RunRecord{
		ID:          runID,
		Strategy:    "momentum",
		Dataset:     "btc",
		Status:      "completed",
		StartedAt:   t0,
		DurationMS:  12,
		InitialCash: 10000,
		FinalEquity: 10002,
		Bars:        5,
		TotalTrades: 1,
		Sharpe:      &sharpe,
		MaxDrawdown: 0.0001,
		WinRate:     100,
		Summary:     persistence.JSONB(`{"win_rate":100}`),
	}
}

func sampleTrades() []position.Trade {
	return []position.Trade{{
		EntryIndex: 1, ExitIndex: 3,
		EntryTime: t0.Add(time.Minute), ExitTime: t0.Add(3 * time.Minute),
		EntryPrice: 9, ExitPrice: 11, PnL: 2,
		ExitReason: exits.TakeProfit,
	}}
}

var runColumnNames = []string{
	"id", "strategy", "dataset", "status", "started_at", "duration_ms", "initial_cash", "final_equity",
	"bars", "total_trades", "sharpe", "max_drawdown", "win_rate", "profit_factor", "summary",
	"equity_curve", "error", "created_at",
}

func TestRunsRepo_Save(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRunsRepo(db, 5*time.Second)
	run := sampleRun()
	trade := sampleTrades()[0]

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO backtest_runs")).
		WithArgs(runID.String(), "momentum", "btc", "completed", t0, int64(12), 10000.0, 10002.0,
			5, 1, 1.25, 0.0001, 100.0, nil, []byte(`{"win_rate":100}`), nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO backtest_trades"))
	prep.ExpectExec().
		WithArgs(runID.String(), 0, 1, 3, trade.EntryTime, trade.ExitTime, 9.0, 11.0, 2.0, "take_profit").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), run, sampleTrades()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepo_SaveDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRunsRepo(db, 5*time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO backtest_runs")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	err := repo.Save(context.Background(), sampleRun(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepo_Get(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRunsRepo(db, 5*time.Second)

	rows := sqlmock.NewRows(runColumnNames).AddRow(
		runID.String(), "momentum", "btc", "completed", t0, 12, 10000.0, 10002.0,
		5, 1, 1.25, 0.0001, 100.0, nil, []byte(`{"win_rate":100}`),
		[]byte(`[{"index":0,"equity":10000}]`), nil, t0)
	mock.ExpectQuery(`SELECT .* FROM backtest_runs WHERE id = \$1`).
		WithArgs(runID.String()).
		WillReturnRows(rows)

	run, err := repo.Get(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, runID, run.ID)
	assert.Equal(t, "momentum", run.Strategy)
	require.NotNil(t, run.Sharpe)
	assert.Equal(t, 1.25, *run.Sharpe)
	assert.Nil(t, run.ProfitFactor)
	assert.Nil(t, run.Error)
	assert.JSONEq(t, `{"win_rate":100}`, string(run.Summary))
	assert.NotEmpty(t, run.EquityCurve)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepo_GetNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRunsRepo(db, 5*time.Second)

	mock.ExpectQuery(`SELECT .* FROM backtest_runs WHERE id = \$1`).
		WithArgs(runID.String()).
		WillReturnRows(sqlmock.NewRows(runColumnNames))

	_, err := repo.Get(context.Background(), runID)
	assert.True(t, errors.Is(err, persistence.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepo_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRunsRepo(db, 5*time.Second)

	rows := sqlmock.NewRows(runColumnNames).
		AddRow(runID.String(), "momentum", "btc", "completed", t0, 12, 10000.0, 10002.0,
			5, 1, nil, 0.0, 0.0, nil, []byte(`{}`), nil, nil, t0)
	mock.ExpectQuery(`FROM backtest_runs WHERE strategy = \$1 AND dataset = \$2 ORDER BY started_at DESC LIMIT \$3`).
		WithArgs("momentum", "btc", 10).
		WillReturnRows(rows)

	runs, err := repo.List(context.Background(), persistence.RunFilter{Strategy: "momentum", Dataset: "btc", Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].Sharpe)
	assert.Empty(t, runs[0].EquityCurve)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepo_ListDefaultLimit(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRunsRepo(db, 5*time.Second)

	mock.ExpectQuery(`FROM backtest_runs ORDER BY started_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows(runColumnNames))

	runs, err := repo.List(context.Background(), persistence.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepo_Trades(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRunsRepo(db, 5*time.Second)
	want := sampleTrades()

	rows := sqlmock.NewRows([]string{"entry_index", "exit_index", "entry_ts", "exit_ts", "entry_price", "exit_price", "pnl", "exit_reason"}).
		AddRow(1, 3, want[0].EntryTime, want[0].ExitTime, 9.0, 11.0, 2.0, "take_profit")
	mock.ExpectQuery(`FROM backtest_trades\s+WHERE run_id = \$1\s+ORDER BY seq`).
		WithArgs(runID.String()).
		WillReturnRows(rows)

	trades, err := repo.Trades(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, want, trades)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS backtest_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
