package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razaquegoraya007/trading-bot-env/internal/backtest"
	"github.com/razaquegoraya007/trading-bot-env/internal/config"
	"github.com/razaquegoraya007/trading-bot-env/internal/exits"
	httpiface "github.com/razaquegoraya007/trading-bot-env/internal/interfaces/http"
	"github.com/razaquegoraya007/trading-bot-env/internal/persistence"
	"github.com/razaquegoraya007/trading-bot-env/internal/strategy"
)

func writeBars(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 + 5*float64((i%7)-3)
		fmt.Fprintf(&b, "%s,%v,%v,%v,%v,1000\n", t0.AddDate(0, 0, i).Format("2006-01-02"), c, c+1, c-1, c)
	}
	path := filepath.Join(dir, "btc.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestBacktestPipeline_Run(t *testing.T) {
	dir := t.TempDir()
	bars := writeBars(t, dir, 40)

	cfg := config.DefaultAppConfig()
	cfg.Datasets = []config.DatasetConfig{{Bars: bars}}
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.Concurrency = 2

	repo := persistence.NewMemoryRepo()
	metrics := httpiface.NewMetricsRegistry()
	p := &backtestPipeline{cfg: cfg, logger: zerolog.Nop(), metrics: metrics, repo: repo}

	outcome, err := p.run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcome.Results, 3)
	for _, r := range outcome.Results {
		require.NotNil(t, r)
		assert.Equal(t, backtest.StatusCompleted, r.Status)
		assert.Equal(t, "btc", r.Dataset)
		assert.Len(t, r.EquityCurve, 40)
	}

	for _, name := range []string{"trades.jsonl", "equity.csv", "summary.json", "report.md"} {
		_, err := os.Stat(filepath.Join(outcome.Dir, name))
		assert.NoError(t, err, name)
	}

	stored, err := repo.List(context.Background(), persistence.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, map[string]float64{"completed": 3}, metrics.RunTotals())
}

func TestBacktestPipeline_BadDataReportsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,close\n2024-01-01,10\n2024-01-02,11\n2024-01-02,12\n"), 0o644))

	cfg := config.DefaultAppConfig()
	cfg.Datasets = []config.DatasetConfig{{Bars: path}}
	cfg.Strategies = []strategy.Params{strategy.DefaultParams(strategy.MeanReversion)}
	cfg.Cache.Enabled = false

	p := &backtestPipeline{cfg: cfg, logger: zerolog.Nop(), metrics: httpiface.NewMetricsRegistry(), skipArtifacts: true, repo: persistence.NewMemoryRepo()}
	outcome, err := p.run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 runs did not complete")

	var dataErr *backtest.DataError
	assert.ErrorAs(t, err, &dataErr)
	require.NotNil(t, outcome)
	assert.Equal(t, backtest.StatusAborted, outcome.Results[0].Status)
	assert.Empty(t, outcome.Dir)
}

func TestApplyBacktestFlags(t *testing.T) {
	cmd := newBacktestCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--bars", "eth.csv",
		"--strategy", "momentum",
		"--period", "12",
		"--exit-mode", "atr",
		"--whale-gate",
		"--initial-cash", "2500",
		"--annualization", "365",
		"--no-cache",
	}))

	cfg := config.DefaultAppConfig()
	require.NoError(t, applyBacktestFlags(cfg, cmd.Flags()))

	require.Len(t, cfg.Datasets, 1)
	assert.Equal(t, "eth.csv", cfg.Datasets[0].Bars)
	require.Len(t, cfg.Strategies, 1)
	assert.Equal(t, 12, cfg.Strategies[0].Period)
	assert.Equal(t, exits.ModeATR, cfg.Strategies[0].Exits.Mode)
	assert.True(t, cfg.Strategies[0].UseWhaleGate)
	assert.Equal(t, 2500.0, cfg.InitialCash)
	assert.Equal(t, 365.0, cfg.Annualization)
	assert.False(t, cfg.Cache.Enabled)
}

func TestApplyBacktestFlags_NoDatasets(t *testing.T) {
	cmd := newBacktestCmd()
	require.NoError(t, cmd.Flags().Parse(nil))

	err := applyBacktestFlags(config.DefaultAppConfig(), cmd.Flags())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no datasets")
}

func TestApplyBacktestFlags_UnknownStrategy(t *testing.T) {
	cmd := newBacktestCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--bars", "x.csv", "--strategy", "grid"}))

	err := applyBacktestFlags(config.DefaultAppConfig(), cmd.Flags())
	var cfgErr *strategy.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "strategy", cfgErr.Field)
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, setupLogging("debug", "json"))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.Error(t, setupLogging("loud", "json"))
	assert.Error(t, setupLogging("info", "xml"))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
