package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/razaquegoraya007/trading-bot-env/internal/exits"
)

// Kind selects the evaluator family
type Kind string

const (
	MeanReversion  Kind = "mean_reversion"
	Momentum       Kind = "momentum"
	SentimentGated Kind = "sentiment_gated"
)

// Params is the immutable strategy configuration for one run
type Params struct {
	Name               string       `yaml:"name" json:"name"`
	Kind               Kind         `yaml:"strategy" json:"strategy"`
	Period             int          `yaml:"period" json:"period"` // SMA/StdDev/RSI lookback
	RSIOversold        float64      `yaml:"rsi_oversold" json:"rsi_oversold"`
	RSIOverbought      float64      `yaml:"rsi_overbought" json:"rsi_overbought"`
	Exits              exits.Config `yaml:",inline" json:"exits"`
	ATRPeriod          int          `yaml:"atr_period" json:"atr_period"`
	SentimentThreshold float64      `yaml:"sentiment_threshold" json:"sentiment_threshold"`
	UseWhaleGate       bool         `yaml:"use_whale_gate" json:"use_whale_gate"`
	DeviationThreshold float64      `yaml:"deviation_threshold" json:"deviation_threshold"` // std devs below SMA required to buy
}

// DefaultParams returns the reference parameters for each strategy family
func DefaultParams(kind Kind) Params {
	p := Params{
		Name:               string(kind),
		Kind:               kind,
		Period:             10,
		RSIOversold:        30,
		RSIOverbought:      70,
		Exits:              exits.DefaultConfig(),
		ATRPeriod:          14,
		SentimentThreshold: 0.1,
	}

	switch kind {
	case Momentum:
		p.Period = 8
		p.RSIOversold = 35
		p.RSIOverbought = 65
		p.Exits.StopLossFraction = 0.01
		p.Exits.TakeProfitFraction = 0.02
	case SentimentGated:
		p.Exits.StopLossFraction = 0.02
		p.Exits.TakeProfitFraction = 0.05
	}
	return p
}

// ConfigError reports one invalid strategy parameter
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid strategy config: %s %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks every parameter and joins all failures
func (p Params) Validate() error {
	var errs []error

	switch p.Kind {
	case MeanReversion, Momentum, SentimentGated:
	default:
		errs = append(errs, invalid("strategy", "%q is not one of %s, %s, %s", p.Kind, MeanReversion, Momentum, SentimentGated))
	}

	if p.Period < 1 {
		errs = append(errs, invalid("period", "must be positive, got %d", p.Period))
	}
	if p.ATRPeriod < 1 {
		errs = append(errs, invalid("atr_period", "must be positive, got %d", p.ATRPeriod))
	}

	switch p.Exits.Mode {
	case exits.ModeFraction:
		if !(p.Exits.StopLossFraction > 0 && p.Exits.StopLossFraction < 1) {
			errs = append(errs, invalid("stop_loss_fraction", "must be in (0, 1), got %v", p.Exits.StopLossFraction))
		}
		if !(p.Exits.TakeProfitFraction > 0) || math.IsInf(p.Exits.TakeProfitFraction, 0) {
			errs = append(errs, invalid("take_profit_fraction", "must be positive, got %v", p.Exits.TakeProfitFraction))
		}
	case exits.ModeATR:
		if !(p.Exits.ATRMultiplier > 0) || math.IsInf(p.Exits.ATRMultiplier, 0) {
			errs = append(errs, invalid("atr_multiplier", "must be positive, got %v", p.Exits.ATRMultiplier))
		}
	default:
		errs = append(errs, invalid("exit_mode", "%q is not one of %s, %s", p.Exits.Mode, exits.ModeFraction, exits.ModeATR))
	}

	if p.Kind == Momentum {
		if !(p.RSIOversold >= 0 && p.RSIOverbought <= 100) {
			errs = append(errs, invalid("rsi_oversold", "thresholds must lie in [0, 100], got %v/%v", p.RSIOversold, p.RSIOverbought))
		}
		if !(p.RSIOverbought > p.RSIOversold) {
			errs = append(errs, invalid("rsi_overbought", "must exceed rsi_oversold, got %v <= %v", p.RSIOverbought, p.RSIOversold))
		}
	}

	if p.Kind == SentimentGated && !(p.SentimentThreshold >= 0 && p.SentimentThreshold < 1) {
		errs = append(errs, invalid("sentiment_threshold", "must be in [0, 1), got %v", p.SentimentThreshold))
	}

	if !(p.DeviationThreshold >= 0) || math.IsInf(p.DeviationThreshold, 0) {
		errs = append(errs, invalid("deviation_threshold", "must be non-negative, got %v", p.DeviationThreshold))
	}

	return errors.Join(errs...)
}
