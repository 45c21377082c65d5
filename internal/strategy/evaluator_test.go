package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razaquegoraya007/trading-bot-env/internal/domain/indicators"
	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
	"github.com/razaquegoraya007/trading-bot-env/internal/exits"
	"github.com/razaquegoraya007/trading-bot-env/internal/position"
)

func flat() position.State { return position.State{Status: position.Flat} }

func long(entry float64) position.State {
	idx := 0
	return position.State{Status: position.Long, EntryPrice: &entry, EntryIndex: &idx}
}

func inputs(close float64, st position.State) Inputs {
	in := Inputs{
		Index:    1,
		Bar:      market.Bar{Timestamp: time.Unix(0, 0).UTC(), Close: close, High: close, Low: close, Open: close},
		Position: st,
	}
	if st.IsLong() {
		in.Levels = exits.ComputeLevels(exits.DefaultConfig(), st.Entry(), indicators.Value{})
	}
	return in
}

func mustNew(t *testing.T, p Params) Evaluator {
	t.Helper()
	ev, err := New(p)
	require.NoError(t, err)
	return ev
}

func TestMeanReversion(t *testing.T) {
	ev := mustNew(t, DefaultParams(MeanReversion))

	tests := []struct {
		name string
		in   Inputs
		want position.Decision
	}{
		{
			name: "warmup holds",
			in:   inputs(90, flat()),
			want: position.HoldDecision(),
		},
		{
			name: "close below SMA enters",
			in: func() Inputs {
				in := inputs(90, flat())
				in.Indicators.SMA = indicators.Value{V: 100, Valid: true}
				return in
			}(),
			want: position.EnterDecision(),
		},
		{
			name: "close above SMA holds",
			in: func() Inputs {
				in := inputs(110, flat())
				in.Indicators.SMA = indicators.Value{V: 100, Valid: true}
				return in
			}(),
			want: position.HoldDecision(),
		},
		{
			name: "stop loss",
			in:   inputs(97, long(100)),
			want: position.ExitDecision(exits.StopLoss),
		},
		{
			name: "take profit",
			in:   inputs(104, long(100)),
			want: position.ExitDecision(exits.TakeProfit),
		},
		{
			name: "inside band holds even below SMA",
			in: func() Inputs {
				in := inputs(99, long(100))
				in.Indicators.SMA = indicators.Value{V: 120, Valid: true}
				return in
			}(),
			want: position.HoldDecision(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.Evaluate(tt.in))
		})
	}
}

func TestMeanReversion_DeviationThreshold(t *testing.T) {
	p := DefaultParams(MeanReversion)
	p.DeviationThreshold = 1
	ev := mustNew(t, p)

	in := inputs(95, flat())
	in.Indicators.SMA = indicators.Value{V: 100, Valid: true}
	in.Indicators.StdDev = indicators.Value{V: 6, Valid: true}
	assert.Equal(t, position.Hold, ev.Evaluate(in).Action, "95 is above 100-1*6")

	in.Bar.Close = 95.5
	in.Indicators.StdDev = indicators.Value{V: 5, Valid: true}
	assert.Equal(t, position.Hold, ev.Evaluate(in).Action)

	in.Bar.Close = 94
	assert.Equal(t, position.EnterLong, ev.Evaluate(in).Action)
}

func TestMomentum(t *testing.T) {
	ev := mustNew(t, DefaultParams(Momentum)) // oversold 35, overbought 65, sl 1%, tp 2%

	in := inputs(100, flat())
	in.Indicators.RSI = indicators.Value{V: 20, Valid: true}
	assert.Equal(t, position.EnterDecision(), ev.Evaluate(in))

	in.Indicators.RSI = indicators.Value{V: 80, Valid: true}
	assert.Equal(t, position.HoldDecision(), ev.Evaluate(in), "flat + overbought never shorts")

	in = Inputs{Bar: market.Bar{Close: 100.5}, Position: long(100)}
	in.Levels = exits.ComputeLevels(DefaultParams(Momentum).Exits, 100, indicators.Value{})
	in.Indicators.RSI = indicators.Value{V: 70, Valid: true}
	assert.Equal(t, position.ExitDecision(exits.SignalReversal), ev.Evaluate(in))

	in.Indicators.RSI = indicators.Value{V: 50, Valid: true}
	assert.Equal(t, position.HoldDecision(), ev.Evaluate(in))

	in.Bar.Close = 98.9
	in.Indicators.RSI = indicators.Value{V: 70, Valid: true}
	assert.Equal(t, position.ExitDecision(exits.StopLoss), ev.Evaluate(in), "price exits take precedence")
}

func TestSentimentGated(t *testing.T) {
	ev := mustNew(t, DefaultParams(SentimentGated))

	in := inputs(100, flat())
	assert.Equal(t, position.Hold, ev.Evaluate(in).Action, "neutral sentiment")

	in.Signal.Sentiment = 0.1
	assert.Equal(t, position.Hold, ev.Evaluate(in).Action, "threshold is exclusive")

	in.Signal.Sentiment = 0.4
	assert.Equal(t, position.EnterLong, ev.Evaluate(in).Action)

	in = inputs(100, long(100))
	in.Signal.Sentiment = -0.1
	assert.Equal(t, position.ExitDecision(exits.SignalReversal), ev.Evaluate(in), "-threshold is inclusive")

	in.Signal.Sentiment = 0
	assert.Equal(t, position.Hold, ev.Evaluate(in).Action)
}

func TestWhaleGate(t *testing.T) {
	p := DefaultParams(SentimentGated)
	p.UseWhaleGate = true
	ev := mustNew(t, p)
	assert.Equal(t, "sentiment_gated+whale_gate", ev.Name())

	in := inputs(100, flat())
	in.Signal = market.Signal{Sentiment: 0.9, Whale: true}
	assert.Equal(t, position.HoldDecision(), ev.Evaluate(in), "whales suppress entries")

	in = inputs(100, long(100))
	in.Signal = market.Signal{Sentiment: 0.9, Whale: true}
	assert.Equal(t, position.ExitDecision(exits.WhaleActivity), ev.Evaluate(in))

	in = inputs(90, long(100))
	in.Signal = market.Signal{Whale: true}
	assert.Equal(t, position.ExitDecision(exits.StopLoss), ev.Evaluate(in), "price exit keeps its reason")
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	ev := mustNew(t, DefaultParams(Momentum))
	in := inputs(100, flat())
	in.Indicators.RSI = indicators.Value{V: 10, Valid: true}

	first := ev.Evaluate(in)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, ev.Evaluate(in))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(p *Params)
		field string
	}{
		{"unknown kind", func(p *Params) { p.Kind = "arbitrage" }, "strategy"},
		{"negative period", func(p *Params) { p.Period = -3 }, "period"},
		{"zero atr period", func(p *Params) { p.ATRPeriod = 0 }, "atr_period"},
		{"stop loss above one", func(p *Params) { p.Exits.StopLossFraction = 1.5 }, "stop_loss_fraction"},
		{"zero take profit", func(p *Params) { p.Exits.TakeProfitFraction = 0 }, "take_profit_fraction"},
		{"atr mode needs multiplier", func(p *Params) { p.Exits.Mode = exits.ModeATR; p.Exits.ATRMultiplier = 0 }, "atr_multiplier"},
		{"unknown exit mode", func(p *Params) { p.Exits.Mode = "trailing" }, "exit_mode"},
		{"negative deviation", func(p *Params) { p.DeviationThreshold = -1 }, "deviation_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams(MeanReversion)
			tt.mut(&p)

			_, err := New(p)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidate_MomentumThresholds(t *testing.T) {
	p := DefaultParams(Momentum)
	p.RSIOverbought = 30
	p.RSIOversold = 30

	err := p.Validate()
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "rsi_overbought", cfgErr.Field)
}

func TestValidate_SentimentThreshold(t *testing.T) {
	p := DefaultParams(SentimentGated)
	p.SentimentThreshold = 1.2
	assert.Error(t, p.Validate())

	for _, kind := range []Kind{MeanReversion, Momentum, SentimentGated} {
		assert.NoError(t, DefaultParams(kind).Validate(), kind)
	}
}
