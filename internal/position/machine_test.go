package position

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razaquegoraya007/trading-bot-env/internal/domain/indicators"
	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
	"github.com/razaquegoraya007/trading-bot-env/internal/exits"
)

var t0 = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func bar(i int, c float64) market.Bar {
	return market.Bar{Timestamp: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c}
}

func TestMachine_EnterThenExit(t *testing.T) {
	m := NewMachine(10000)

	trade, err := m.Apply(0, bar(0, 100), EnterDecision())
	require.NoError(t, err)
	assert.Nil(t, trade)

	st := m.State()
	require.True(t, st.IsLong())
	assert.Equal(t, 100.0, *st.EntryPrice)
	assert.Equal(t, 0, *st.EntryIndex)
	assert.Equal(t, 9900.0, m.Cash())
	assert.Equal(t, 10005.0, m.Equity(105))

	trade, err = m.Apply(1, bar(1, 110), ExitDecision(exits.TakeProfit))
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.Equal(t, 0, trade.EntryIndex)
	assert.Equal(t, 1, trade.ExitIndex)
	assert.Equal(t, 10.0, trade.PnL)
	assert.Equal(t, exits.TakeProfit, trade.ExitReason)
	assert.Equal(t, t0.Add(time.Hour), trade.ExitTime)

	st = m.State()
	assert.False(t, st.IsLong())
	assert.Nil(t, st.EntryPrice)
	assert.Nil(t, st.EntryIndex)
	assert.Equal(t, 10010.0, m.Equity(999))
	assert.Len(t, m.Trades(), 1)
}

func TestMachine_RejectedTransitionsAreNoOps(t *testing.T) {
	m := NewMachine(1000)

	trade, err := m.Apply(0, bar(0, 50), ExitDecision(exits.StopLoss))
	require.NoError(t, err)
	assert.Nil(t, trade)
	assert.Equal(t, 0, m.Exits())

	_, err = m.Apply(1, bar(1, 50), EnterDecision())
	require.NoError(t, err)
	_, err = m.Apply(2, bar(2, 60), EnterDecision())
	require.NoError(t, err)

	assert.Equal(t, 1, m.Entries())
	assert.Equal(t, 50.0, m.State().Entry(), "second entry must not move the entry price")
	assert.Equal(t, 950.0, m.Cash())
}

func TestMachine_OneDecisionPerBar(t *testing.T) {
	m := NewMachine(1000)

	_, err := m.Apply(3, bar(3, 10), EnterDecision())
	require.NoError(t, err)

	_, err = m.Apply(3, bar(3, 10), ExitDecision(exits.SignalReversal))
	assert.ErrorIs(t, err, ErrBarAlreadyDecided)

	_, err = m.Apply(2, bar(2, 10), HoldDecision())
	assert.ErrorIs(t, err, ErrBarAlreadyDecided)

	assert.True(t, m.State().IsLong())
}

func TestMachine_ForceClose(t *testing.T) {
	m := NewMachine(1000)

	trade, err := m.ForceClose(0, bar(0, 10))
	require.NoError(t, err)
	assert.Nil(t, trade, "flat machine has nothing to close")

	_, err = m.Apply(1, bar(1, 10), EnterDecision())
	require.NoError(t, err)

	_, err = m.ForceClose(1, bar(1, 10))
	assert.Error(t, err, "cannot exit on the entry bar")

	_, err = m.Apply(2, bar(2, 8), HoldDecision())
	require.NoError(t, err)

	trade, err = m.ForceClose(2, bar(2, 8))
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, exits.ForcedEndOfRun, trade.ExitReason)
	assert.Equal(t, -2.0, trade.PnL)
	assert.Equal(t, m.Entries(), m.Exits())
}

func TestMachine_StateIsACopy(t *testing.T) {
	m := NewMachine(1000)
	_, err := m.Apply(0, bar(0, 10), EnterDecision())
	require.NoError(t, err)

	st := m.State()
	*st.EntryPrice = 999

	assert.Equal(t, 10.0, m.State().Entry())
}

func TestMachine_Levels(t *testing.T) {
	m := NewMachine(1000)
	cfg := exits.Config{Mode: exits.ModeATR, ATRMultiplier: 1.5}

	assert.False(t, m.Levels(cfg, indicators.Value{V: 2, Valid: true}).Valid, "flat has no levels")

	_, err := m.Apply(0, bar(0, 100), EnterDecision())
	require.NoError(t, err)

	l1 := m.Levels(cfg, indicators.Value{V: 2, Valid: true})
	l2 := m.Levels(cfg, indicators.Value{V: 4, Valid: true})
	assert.Equal(t, 97.0, l1.Stop)
	assert.Equal(t, 106.0, l2.Take)
}

func TestDecision_Strings(t *testing.T) {
	assert.Equal(t, "enter_long", EnterLong.String())
	assert.Equal(t, "long", Long.String())
	assert.Equal(t, "flat", Flat.String())
}

func TestState_JSONRoundTrip(t *testing.T) {
	m := NewMachine(100)
	_, err := m.Apply(4, bar(4, 7), EnterDecision())
	require.NoError(t, err)

	data, err := json.Marshal(m.State())
	require.NoError(t, err)

	var back State
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Long, back.Status)
	assert.Equal(t, 7.0, back.Entry())
	assert.Equal(t, 4, *back.EntryIndex)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"short"}`), &back))
}
