package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/razaquegoraya007/trading-bot-env/internal/backtest"
	"github.com/razaquegoraya007/trading-bot-env/internal/config"
	"github.com/razaquegoraya007/trading-bot-env/internal/data/cache"
	"github.com/razaquegoraya007/trading-bot-env/internal/exits"
	"github.com/razaquegoraya007/trading-bot-env/internal/infrastructure/db"
	httpiface "github.com/razaquegoraya007/trading-bot-env/internal/interfaces/http"
	progresslog "github.com/razaquegoraya007/trading-bot-env/internal/log"
	"github.com/razaquegoraya007/trading-bot-env/internal/persistence"
	"github.com/razaquegoraya007/trading-bot-env/internal/report"
	"github.com/razaquegoraya007/trading-bot-env/internal/report/perf"
	"github.com/razaquegoraya007/trading-bot-env/internal/strategy"
)

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run every configured strategy over every configured dataset",
		Long: `Runs strategies x datasets from a YAML config, or a single run described
by flags. Artifacts (trades.jsonl, equity.csv, summary.json, report.md) are
written under the output directory; runs are persisted when a database is
configured.`,
		RunE: runBacktest,
	}

	addConfigFlags(cmd.Flags())
	cmd.Flags().String("bars", "", "OHLCV CSV for a single dataset (overrides config datasets)")
	cmd.Flags().String("dataset", "", "Dataset name (defaults to the bars file name)")
	cmd.Flags().String("sentiment", "", "Daily sentiment CSV (date,sentiment)")
	cmd.Flags().String("whale", "", "Whale activity CSV (timestamp,whale)")
	cmd.Flags().String("strategy", "", "Run a single strategy family (mean_reversion|momentum|sentiment_gated)")
	cmd.Flags().Int("period", 0, "Indicator lookback for --strategy")
	cmd.Flags().String("exit-mode", "", "Exit mode for --strategy (fraction|atr)")
	cmd.Flags().Bool("whale-gate", false, "Suppress entries and exit longs on whale activity")
	cmd.Flags().Float64("initial-cash", 0, "Starting cash (default from config)")
	cmd.Flags().Float64("annualization", -1, "Sharpe annualization factor, 0 for raw")
	cmd.Flags().Int("concurrency", 0, "Maximum concurrent runs")
	cmd.Flags().String("output", "", "Artifact output directory")
	cmd.Flags().Bool("no-cache", false, "Skip the result cache")
	cmd.Flags().Bool("no-artifacts", false, "Do not write artifact files")
	return cmd
}

func addConfigFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Path to YAML configuration")
}

// loadConfig reads --config when given and applies environment overrides
func loadConfig(fs *pflag.FlagSet) (*config.AppConfig, error) {
	path, _ := fs.GetString("config")
	if path == "" {
		cfg := config.DefaultAppConfig()
		cfg.ApplyEnvOverrides()
		return cfg, nil
	}
	return config.Load(path)
}

// applyBacktestFlags layers single-run flags over the configuration
func applyBacktestFlags(cfg *config.AppConfig, fs *pflag.FlagSet) error {
	if bars, _ := fs.GetString("bars"); bars != "" {
		name, _ := fs.GetString("dataset")
		sentiment, _ := fs.GetString("sentiment")
		whale, _ := fs.GetString("whale")
		cfg.Datasets = []config.DatasetConfig{{Name: name, Bars: bars, Sentiment: sentiment, Whale: whale}}
	}

	if kind, _ := fs.GetString("strategy"); kind != "" {
		p := strategy.DefaultParams(strategy.Kind(kind))
		if period, _ := fs.GetInt("period"); period > 0 {
			p.Period = period
		}
		if mode, _ := fs.GetString("exit-mode"); mode != "" {
			p.Exits.Mode = exits.Mode(mode)
		}
		p.UseWhaleGate, _ = fs.GetBool("whale-gate")
		cfg.Strategies = []strategy.Params{p}
	}

	if cash, _ := fs.GetFloat64("initial-cash"); cash != 0 {
		cfg.InitialCash = cash
	}
	if ann, _ := fs.GetFloat64("annualization"); ann >= 0 {
		cfg.Annualization = ann
	}
	if n, _ := fs.GetInt("concurrency"); n > 0 {
		cfg.Concurrency = n
	}
	if out, _ := fs.GetString("output"); out != "" {
		cfg.OutputDir = out
	}
	if noCache, _ := fs.GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}

	if len(cfg.Datasets) == 0 {
		return fmt.Errorf("no datasets: pass --bars or list datasets in --config")
	}
	return cfg.Validate()
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if err := applyBacktestFlags(cfg, cmd.Flags()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	noArtifacts, _ := cmd.Flags().GetBool("no-artifacts")

	pipeline := &backtestPipeline{
		cfg:           cfg,
		logger:        log.Logger,
		metrics:       httpiface.NewMetricsRegistry(),
		skipArtifacts: noArtifacts,
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		pipeline.progressBar = os.Stderr
	}
	_, err = pipeline.run(ctx)
	return err
}

// backtestPipeline loads data, consults the cache, runs the batch, checks
// alerts, persists and writes artifacts
type backtestPipeline struct {
	cfg           *config.AppConfig
	logger        zerolog.Logger
	metrics       *httpiface.MetricsRegistry
	progressBar   io.Writer
	repo          persistence.RunsRepo // overrides the configured database when set
	skipArtifacts bool
}

type batchOutcome struct {
	Results []*backtest.Result
	Alerts  []perf.Alert
	Dir     string
	Cached  int
}

func (p *backtestPipeline) run(ctx context.Context) (*batchOutcome, error) {
	cfg := p.cfg

	datasets, err := cfg.LoadDatasets()
	if err != nil {
		return nil, err
	}
	jobs := cfg.Jobs(datasets)
	p.logger.Info().
		Int("strategies", len(cfg.Strategies)).
		Int("datasets", len(datasets)).
		Int("jobs", len(jobs)).
		Int("concurrency", cfg.Concurrency).
		Float64("initial_cash", cfg.InitialCash).
		Msg("Starting backtest batch")

	var rc *cache.ResultCache
	if cfg.Cache.Enabled {
		rc = cache.New(ctx, cfg.Cache, p.logger)
		defer rc.Close()
	}

	// Serve what the cache has, run the rest
	results := make([]*backtest.Result, len(jobs))
	keys := make([]string, len(jobs))
	var pending []backtest.Job
	var pendingIdx []int
	cached := 0
	for i, job := range jobs {
		if rc != nil {
			key, err := cache.Key(cache.KeyInput{
				Params:        job.Params,
				InitialCash:   cfg.InitialCash,
				Annualization: cfg.Annualization,
				Feed:          job.Feed,
				Signals:       job.Signals,
			})
			if err == nil {
				keys[i] = key
				res, hit := rc.Get(ctx, key)
				p.metrics.RecordCacheLookup(hit)
				if hit {
					results[i] = res
					cached++
					continue
				}
			}
		}
		pending = append(pending, job)
		pendingIdx = append(pendingIdx, i)
	}

	progress := progresslog.NewProgressIndicator("backtest", p.logger, progresslog.ProgressConfig{Bar: p.progressBar})
	batch := backtest.Batch{
		Concurrency: cfg.Concurrency,
		Progress:    progress,
		Options: []backtest.Option{
			backtest.WithLogger(p.logger),
			backtest.WithInitialCash(cfg.InitialCash),
			backtest.WithPerfConfig(cfg.PerfConfig()),
			backtest.WithRecorder(p.metrics),
		},
	}
	ran, runErr := batch.Run(ctx, pending)
	if ran == nil && runErr != nil {
		return nil, runErr
	}
	progress.Finish(len(pending))

	fresh := make([]*backtest.Result, 0, len(ran))
	for j, res := range ran {
		i := pendingIdx[j]
		results[i] = res
		if res == nil {
			continue
		}
		fresh = append(fresh, res)
		if rc != nil && keys[i] != "" {
			if err := rc.Put(ctx, keys[i], res); err != nil {
				p.logger.Warn().Err(err).Str("run", res.Key()).Msg("Failed to cache result")
			}
		}
	}

	var alerts []perf.Alert
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, a := range perf.CheckSummary(res.Key(), res.Summary, cfg.Alerts) {
			p.logger.Warn().
				Str("run", a.Run).
				Str("type", a.Type).
				Str("severity", a.Severity).
				Float64("value", a.Value).
				Float64("threshold", a.Threshold).
				Msg(a.Message)
			alerts = append(alerts, a)
		}
	}

	if err := p.persist(ctx, fresh); err != nil {
		p.logger.Error().Err(err).Msg("Failed to persist runs")
	}

	outcome := &batchOutcome{Results: results, Alerts: alerts, Cached: cached}
	if !p.skipArtifacts {
		dir, err := report.NewWriter(cfg.OutputDir).WriteBatch(results, alerts)
		if err != nil {
			return outcome, fmt.Errorf("failed to write artifacts: %w", err)
		}
		outcome.Dir = dir
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		p.logger.Info().Str("output_dir", dir).Msg("Artifacts written")
	}

	if runErr != nil {
		return outcome, fmt.Errorf("%d of %d runs did not complete: %w", progress.Failed(), len(pending), runErr)
	}
	return outcome, nil
}

// persist saves freshly computed runs; cached results were stored when first computed
func (p *backtestPipeline) persist(ctx context.Context, results []*backtest.Result) error {
	repo := p.repo
	if repo == nil {
		if !p.cfg.Database.Enabled {
			return nil
		}
		manager, err := db.NewManager(ctx, p.cfg.Database, p.logger)
		if err != nil {
			return err
		}
		defer manager.Close()
		repo = manager.Runs()
	}

	var errs []error
	for _, res := range results {
		rec, err := persistence.NewRunRecord(res)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := repo.Save(ctx, rec, res.Trades); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Key(), err))
			continue
		}
		p.logger.Debug().Str("run_id", rec.ID.String()).Str("run", res.Key()).Msg("Run persisted")
	}
	return errors.Join(errs...)
}
