package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"github.com/razaquegoraya007/trading-bot-env/internal/backtest"
	"github.com/razaquegoraya007/trading-bot-env/internal/position"
)

// MetricsRegistry holds the Prometheus metrics for backtest runs. It implements
// backtest.Recorder so runners report into it directly.
type MetricsRegistry struct {
	registry *prometheus.Registry

	// Run metrics
	RunsTotal     *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	BarsProcessed *prometheus.CounterVec
	FinalEquity   *prometheus.GaugeVec

	// Trade metrics
	TradesTotal *prometheus.CounterVec
	TradePnL    *prometheus.HistogramVec

	// Result cache metrics
	CacheLookups *prometheus.CounterVec
}

var _ backtest.Recorder = (*MetricsRegistry)(nil)

// NewMetricsRegistry creates a registry with every backtest metric registered
func NewMetricsRegistry() *MetricsRegistry {
	registry := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradebot_runs_total",
				Help: "Total number of backtest runs by strategy and final status",
			},
			[]string{"strategy", "status"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradebot_run_duration_seconds",
				Help:    "Wall-clock duration of a backtest run in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"strategy"},
		),

		BarsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradebot_bars_processed_total",
				Help: "Total number of bars walked by backtest runs",
			},
			[]string{"strategy"},
		),

		FinalEquity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradebot_final_equity",
				Help: "Ending equity of the latest run per strategy and dataset",
			},
			[]string{"strategy", "dataset"},
		),

		TradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradebot_trades_total",
				Help: "Total number of closed trades by exit reason",
			},
			[]string{"strategy", "reason"},
		),

		TradePnL: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradebot_trade_pnl",
				Help:    "Per-unit profit or loss of closed trades",
				Buckets: []float64{-1000, -100, -10, -1, 0, 1, 10, 100, 1000},
			},
			[]string{"strategy"},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradebot_result_cache_lookups_total",
				Help: "Result cache lookups by outcome",
			},
			[]string{"result"},
		),
	}

	registry.registry.MustRegister(
		registry.RunsTotal,
		registry.RunDuration,
		registry.BarsProcessed,
		registry.FinalEquity,
		registry.TradesTotal,
		registry.TradePnL,
		registry.CacheLookups,
	)

	return registry
}

// TradeClosed records one closed trade
func (m *MetricsRegistry) TradeClosed(strategy string, t position.Trade) {
	m.TradesTotal.WithLabelValues(strategy, t.ExitReason.String()).Inc()
	m.TradePnL.WithLabelValues(strategy).Observe(t.PnL)
}

// RunFinished records a finished run of any status
func (m *MetricsRegistry) RunFinished(r *backtest.Result) {
	m.RunsTotal.WithLabelValues(r.Strategy, string(r.Status)).Inc()
	m.RunDuration.WithLabelValues(r.Strategy).Observe(r.Duration.Seconds())
	m.BarsProcessed.WithLabelValues(r.Strategy).Add(float64(r.BarsProcessed))
	m.FinalEquity.WithLabelValues(r.Strategy, r.Dataset).Set(r.FinalEquity)

	log.Debug().
		Str("strategy", r.Strategy).
		Str("dataset", r.Dataset).
		Str("status", string(r.Status)).
		Dur("duration", r.Duration).
		Msg("Run metrics recorded")
}

// RecordCacheLookup counts a result cache hit or miss
func (m *MetricsRegistry) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RunTotals sums tradebot_runs_total by status
func (m *MetricsRegistry) RunTotals() map[string]float64 {
	totals := make(map[string]float64)

	families, err := m.registry.Gather()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to gather metrics")
		return totals
	}

	for _, mf := range families {
		if mf.GetName() != "tradebot_runs_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			totals[labelValue(metric, "status")] += metric.GetCounter().GetValue()
		}
	}
	return totals
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// Handler returns the Prometheus exposition handler for this registry
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
