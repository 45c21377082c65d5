package exits

import (
	"fmt"
	"math"

	"github.com/razaquegoraya007/trading-bot-env/internal/domain/indicators"
)

// Reason represents why a long position was closed
type Reason int

const (
	NoExit         Reason = iota
	StopLoss              // Price fell to or below the stop level
	TakeProfit            // Price rose to or above the take level
	SignalReversal        // Strategy signal flipped (RSI overbought, negative sentiment)
	WhaleActivity         // On-chain whale alert while in a position
	ForcedEndOfRun        // Position still open at the final bar
)

func (r Reason) String() string {
	switch r {
	case NoExit:
		return "no_exit"
	case StopLoss:
		return "stop_loss"
	case TakeProfit:
		return "take_profit"
	case SignalReversal:
		return "signal_reversal"
	case WhaleActivity:
		return "whale_activity"
	case ForcedEndOfRun:
		return "forced_end_of_run"
	default:
		return "unknown"
	}
}

// MarshalText encodes the reason by name
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a reason name
func (r *Reason) UnmarshalText(b []byte) error {
	parsed, err := ParseReason(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseReason maps a reason name back to its value
func ParseReason(s string) (Reason, error) {
	for r := NoExit; r <= ForcedEndOfRun; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return NoExit, fmt.Errorf("unknown exit reason %q", s)
}

// Mode selects how stop and take levels are derived
type Mode string

const (
	// ModeFraction sets levels once, as fixed multiples of the entry price
	ModeFraction Mode = "fraction"
	// ModeATR recomputes levels every bar from the current ATR
	ModeATR Mode = "atr"
)

// Config contains exit rule configuration
type Config struct {
	Mode               Mode    `yaml:"exit_mode" json:"exit_mode"`
	StopLossFraction   float64 `yaml:"stop_loss_fraction" json:"stop_loss_fraction"`     // 0.02 = 2% below entry
	TakeProfitFraction float64 `yaml:"take_profit_fraction" json:"take_profit_fraction"` // 0.04 = 4% above entry
	ATRMultiplier      float64 `yaml:"atr_multiplier" json:"atr_multiplier"`
}

// DefaultConfig returns the mean-reversion exit defaults
func DefaultConfig() Config {
	return Config{
		Mode:               ModeFraction,
		StopLossFraction:   0.02,
		TakeProfitFraction: 0.04,
		ATRMultiplier:      2.0,
	}
}

// Levels are the stop and take prices in force for one bar
type Levels struct {
	Stop  float64 `json:"stop"`
	Take  float64 `json:"take"`
	Valid bool    `json:"valid"`
}

// ComputeLevels derives the levels for a position entered at entry.
// In ATR mode the levels are unset until the ATR has warmed up.
func ComputeLevels(cfg Config, entry float64, atr indicators.Value) Levels {
	switch cfg.Mode {
	case ModeATR:
		if !atr.Valid || math.IsNaN(atr.V) {
			return Levels{}
		}
		band := cfg.ATRMultiplier * atr.V
		return Levels{Stop: entry - band, Take: entry + band, Valid: true}
	default:
		return Levels{
			Stop:  entry * (1 - cfg.StopLossFraction),
			Take:  entry * (1 + cfg.TakeProfitFraction),
			Valid: true,
		}
	}
}

// Check evaluates price exits in precedence order: stop before take
func (l Levels) Check(price float64) Reason {
	if !l.Valid {
		return NoExit
	}
	if price <= l.Stop {
		return StopLoss
	}
	if price >= l.Take {
		return TakeProfit
	}
	return NoExit
}
