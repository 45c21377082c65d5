// Package perf computes performance metrics from a finished trade ledger and equity curve
package perf

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/razaquegoraya007/trading-bot-env/internal/position"
)

// Ratio is a metric that may be unavailable or infinite.
// JSON encodes unavailable as null and infinities as "+Inf"/"-Inf".
type Ratio struct {
	Value float64
	Valid bool
}

// Available wraps a defined value
func Available(v float64) Ratio { return Ratio{Value: v, Valid: true} }

// NotAvailable is the sentinel for undefined metrics
var NotAvailable = Ratio{}

func (r Ratio) String() string {
	if !r.Valid {
		return "n/a"
	}
	if math.IsInf(r.Value, 1) {
		return "+Inf"
	}
	if math.IsInf(r.Value, -1) {
		return "-Inf"
	}
	return fmt.Sprintf("%.4f", r.Value)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	switch {
	case !r.Valid:
		return []byte("null"), nil
	case math.IsInf(r.Value, 0):
		return json.Marshal(r.String())
	default:
		return json.Marshal(r.Value)
	}
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = NotAvailable
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case "+Inf":
			*r = Available(math.Inf(1))
		case "-Inf":
			*r = Available(math.Inf(-1))
		default:
			return fmt.Errorf("perf: invalid ratio %q", s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("perf: invalid ratio: %w", err)
	}
	*r = Available(v)
	return nil
}

// Config controls metric calculation
type Config struct {
	// Annualization multiplies the per-bar Sharpe by sqrt(Annualization).
	// Zero reports the raw ratio over the sampled returns.
	Annualization float64 `yaml:"annualization" json:"annualization"`
}

// DefaultConfig reports raw, non-annualized ratios
func DefaultConfig() Config {
	return Config{}
}

// Summary contains performance analysis results
type Summary struct {
	// Core P&L
	StartingEquity float64 `json:"starting_equity"`
	FinalEquity    float64 `json:"final_equity"`
	NetPnL         float64 `json:"net_pnl"`
	TotalReturn    float64 `json:"total_return"` // fraction of starting equity

	// Risk-adjusted
	Sharpe      Ratio   `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"` // fraction of the running peak

	// Hit rate
	WinRate      float64 `json:"win_rate"` // percent
	ProfitFactor Ratio   `json:"profit_factor"`

	// Trade analysis
	TotalTrades   int            `json:"total_trades"`
	WinningTrades int            `json:"winning_trades"`
	LosingTrades  int            `json:"losing_trades"`
	GrossProfit   float64        `json:"gross_profit"`
	GrossLoss     float64        `json:"gross_loss"` // negative or zero
	AvgWin        float64        `json:"avg_win"`
	AvgLoss       float64        `json:"avg_loss"`
	ExitReasons   map[string]int `json:"exit_reasons"`
}

// Summarize computes every metric for one run
func Summarize(trades []position.Trade, equity []float64, cfg Config) Summary {
	s := Summary{ExitReasons: make(map[string]int)}

	if len(equity) > 0 {
		s.StartingEquity = equity[0]
		s.FinalEquity = equity[len(equity)-1]
	}

	calculateTradeAnalysis(trades, &s)
	s.WinRate = WinRate(trades)
	s.ProfitFactor = ProfitFactor(trades)
	s.MaxDrawdown = MaxDrawdown(equity)
	s.Sharpe = Sharpe(equity, cfg.Annualization)

	if s.StartingEquity != 0 {
		s.TotalReturn = (s.FinalEquity - s.StartingEquity) / s.StartingEquity
	}
	return s
}

func calculateTradeAnalysis(trades []position.Trade, s *Summary) {
	s.TotalTrades = len(trades)
	for _, t := range trades {
		s.NetPnL += t.PnL
		s.ExitReasons[t.ExitReason.String()]++
		switch {
		case t.PnL > 0:
			s.WinningTrades++
			s.GrossProfit += t.PnL
		case t.PnL < 0:
			s.LosingTrades++
			s.GrossLoss += t.PnL
		}
	}
	if s.WinningTrades > 0 {
		s.AvgWin = s.GrossProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = s.GrossLoss / float64(s.LosingTrades)
	}
}

// WinRate is winning closed trades over all closed trades, in percent; 0 without trades
func WinRate(trades []position.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades)) * 100
}

// ProfitFactor is gross profit over absolute gross loss.
// It is +Inf with profits and no losses, and 0 with no trades or no profits.
func ProfitFactor(trades []position.Trade) Ratio {
	if len(trades) == 0 {
		return Available(0)
	}
	gain, loss := 0.0, 0.0
	for _, t := range trades {
		if t.PnL > 0 {
			gain += t.PnL
		} else {
			loss += t.PnL
		}
	}
	if loss == 0 {
		if gain > 0 {
			return Available(math.Inf(1))
		}
		return Available(0)
	}
	return Available(gain / math.Abs(loss))
}

// MaxDrawdown is the largest peak-to-trough decline as a fraction of the peak
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
			continue
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Returns computes per-bar simple returns, skipping steps from a non-positive base
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev <= 0 {
			continue
		}
		out = append(out, equity[i]/prev-1)
	}
	return out
}

// Sharpe is mean over sample standard deviation of per-bar returns, scaled by
// sqrt(annualization) when annualization > 0. It is not available with fewer
// than two returns or zero deviation.
func Sharpe(equity []float64, annualization float64) Ratio {
	returns := Returns(equity)
	if len(returns) < 2 {
		return NotAvailable
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	sd := math.Sqrt(variance)

	if sd == 0 || math.IsNaN(sd) {
		return NotAvailable
	}

	ratio := mean / sd
	if annualization > 0 {
		ratio *= math.Sqrt(annualization)
	}
	return Available(ratio)
}
