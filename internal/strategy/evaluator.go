// Package strategy maps one bar of inputs to a trade decision.
//
// Evaluators are pure: they keep no state between calls, so the same Inputs
// always produce the same Decision. Everything that changes across bars lives
// in the indicator set and the position machine owned by the runner.
package strategy

import (
	"github.com/razaquegoraya007/trading-bot-env/internal/domain/indicators"
	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
	"github.com/razaquegoraya007/trading-bot-env/internal/exits"
	"github.com/razaquegoraya007/trading-bot-env/internal/position"
)

// Inputs is everything known at decision time for one bar
type Inputs struct {
	Index      int
	Bar        market.Bar
	Indicators indicators.Snapshot
	Signal     market.Signal
	Position   position.State
	Levels     exits.Levels
}

// Evaluator decides Hold, EnterLong or ExitLong for a bar
type Evaluator interface {
	Evaluate(in Inputs) position.Decision
	Name() string
}

// New validates p and builds its evaluator, wrapped in the whale gate when enabled
func New(p Params) (Evaluator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var ev Evaluator
	switch p.Kind {
	case MeanReversion:
		ev = &meanReversion{deviation: p.DeviationThreshold}
	case Momentum:
		ev = &momentum{oversold: p.RSIOversold, overbought: p.RSIOverbought}
	case SentimentGated:
		ev = &sentimentGated{threshold: p.SentimentThreshold}
	}

	if p.UseWhaleGate {
		ev = &whaleGate{inner: ev}
	}
	return ev, nil
}

// priceExit applies the stop/take levels to an open position
func priceExit(in Inputs) (position.Decision, bool) {
	if r := in.Levels.Check(in.Bar.Close); r != exits.NoExit {
		return position.ExitDecision(r), true
	}
	return position.Decision{}, false
}

// meanReversion buys closes below the moving average and exits on price levels only
type meanReversion struct {
	deviation float64
}

func (s *meanReversion) Name() string { return string(MeanReversion) }

func (s *meanReversion) Evaluate(in Inputs) position.Decision {
	if in.Position.IsLong() {
		if d, ok := priceExit(in); ok {
			return d
		}
		return position.HoldDecision()
	}

	sma := in.Indicators.SMA
	if !sma.Valid {
		return position.HoldDecision()
	}
	floor := sma.V
	if s.deviation > 0 {
		if !in.Indicators.StdDev.Valid {
			return position.HoldDecision()
		}
		floor -= s.deviation * in.Indicators.StdDev.V
	}
	if in.Bar.Close < floor {
		return position.EnterDecision()
	}
	return position.HoldDecision()
}

// momentum buys RSI oversold and sells RSI overbought or on price levels
type momentum struct {
	oversold   float64
	overbought float64
}

func (s *momentum) Name() string { return string(Momentum) }

func (s *momentum) Evaluate(in Inputs) position.Decision {
	rsi := in.Indicators.RSI
	if in.Position.IsLong() {
		if d, ok := priceExit(in); ok {
			return d
		}
		if rsi.Valid && rsi.V > s.overbought {
			return position.ExitDecision(exits.SignalReversal)
		}
		return position.HoldDecision()
	}

	if rsi.Valid && rsi.V < s.oversold {
		return position.EnterDecision()
	}
	return position.HoldDecision()
}

// sentimentGated trades on the upstream sentiment score
type sentimentGated struct {
	threshold float64
}

func (s *sentimentGated) Name() string { return string(SentimentGated) }

func (s *sentimentGated) Evaluate(in Inputs) position.Decision {
	sentiment := in.Signal.Sentiment
	if in.Position.IsLong() {
		if d, ok := priceExit(in); ok {
			return d
		}
		if sentiment <= -s.threshold {
			return position.ExitDecision(exits.SignalReversal)
		}
		return position.HoldDecision()
	}

	if sentiment > s.threshold {
		return position.EnterDecision()
	}
	return position.HoldDecision()
}

// whaleGate suppresses entries during whale activity and forces an exit
// when whales show up while a position is open
type whaleGate struct {
	inner Evaluator
}

func (g *whaleGate) Name() string { return g.inner.Name() + "+whale_gate" }

func (g *whaleGate) Evaluate(in Inputs) position.Decision {
	d := g.inner.Evaluate(in)
	if !in.Signal.Whale {
		return d
	}
	if !in.Position.IsLong() {
		return position.HoldDecision()
	}
	if d.Action == position.ExitLong {
		return d
	}
	return position.ExitDecision(exits.WhaleActivity)
}
