package perf

import (
	"fmt"
)

// Alert represents a run whose metrics breached a review threshold
type Alert struct {
	Run       string  `json:"run"`
	Type      string  `json:"type"`     // sharpe, drawdown, win_rate, profit_factor
	Severity  string  `json:"severity"` // CRITICAL, WARNING
	Message   string  `json:"message"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// Thresholds are the review limits applied to each finished run.
// A zero threshold disables its check.
type Thresholds struct {
	MinSharpe   float64 `yaml:"min_sharpe" json:"min_sharpe"`
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"` // fraction
	MinWinRate  float64 `yaml:"min_win_rate" json:"min_win_rate"` // percent
}

// DefaultThresholds returns review limits suited to single-asset daily backtests
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSharpe:   0,
		MaxDrawdown: 0.20,
		MinWinRate:  40,
	}
}

// CheckSummary compares a run summary against the thresholds
func CheckSummary(run string, s Summary, th Thresholds) []Alert {
	alerts := make([]Alert, 0)

	if th.MinSharpe != 0 && s.Sharpe.Valid && s.Sharpe.Value < th.MinSharpe {
		alerts = append(alerts, Alert{
			Run:       run,
			Type:      "sharpe",
			Severity:  "WARNING",
			Message:   fmt.Sprintf("Sharpe ratio %.2f is below minimum threshold of %.2f", s.Sharpe.Value, th.MinSharpe),
			Metric:    "sharpe_ratio",
			Value:     s.Sharpe.Value,
			Threshold: th.MinSharpe,
		})
	}

	if th.MaxDrawdown > 0 && s.MaxDrawdown > th.MaxDrawdown {
		severity := "WARNING"
		if s.MaxDrawdown > th.MaxDrawdown*1.5 { // 1.5x threshold = critical
			severity = "CRITICAL"
		}
		alerts = append(alerts, Alert{
			Run:       run,
			Type:      "drawdown",
			Severity:  severity,
			Message:   fmt.Sprintf("Maximum drawdown %.2f%% exceeds threshold of %.2f%%", s.MaxDrawdown*100, th.MaxDrawdown*100),
			Metric:    "max_drawdown",
			Value:     s.MaxDrawdown,
			Threshold: th.MaxDrawdown,
		})
	}

	if th.MinWinRate > 0 && s.TotalTrades > 0 && s.WinRate < th.MinWinRate {
		alerts = append(alerts, Alert{
			Run:       run,
			Type:      "win_rate",
			Severity:  "WARNING",
			Message:   fmt.Sprintf("Win rate %.2f%% is below %.2f%%", s.WinRate, th.MinWinRate),
			Metric:    "win_rate",
			Value:     s.WinRate,
			Threshold: th.MinWinRate,
		})
	}

	// break-even trades give a zero profit factor without any loss
	if pf := s.ProfitFactor; s.GrossLoss < 0 && pf.Valid && pf.Value < 1.0 {
		alerts = append(alerts, Alert{
			Run:       run,
			Type:      "profit_factor",
			Severity:  "CRITICAL",
			Message:   fmt.Sprintf("Profit factor %.2f indicates net losses", pf.Value),
			Metric:    "profit_factor",
			Value:     pf.Value,
			Threshold: 1.0,
		})
	}

	return alerts
}
