package indicators

import "github.com/razaquegoraya007/trading-bot-env/internal/domain/market"

// Value is one indicator reading; Valid is false during warm-up
type Value struct {
	V     float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Snapshot is every indicator reading for a single bar
type Snapshot struct {
	SMA    Value `json:"sma"`
	StdDev Value `json:"std_dev"`
	RSI    Value `json:"rsi"`
	ATR    Value `json:"atr"`
}

// Set drives the indicators a run needs. A run owns its Set exclusively.
type Set struct {
	sma    *SMA
	stdDev *StdDev
	rsi    *RSI
	atr    *ATR
}

// NewSet creates a Set where SMA, StdDev and RSI share period and ATR uses atrPeriod
func NewSet(period, atrPeriod int) *Set {
	return &Set{
		sma:    NewSMA(period),
		stdDev: NewStdDev(period),
		rsi:    NewRSI(period),
		atr:    NewATR(atrPeriod),
	}
}

// Update feeds bar to every indicator and returns their readings
func (s *Set) Update(bar market.Bar) Snapshot {
	var snap Snapshot
	snap.SMA.V, snap.SMA.Valid = s.sma.Update(bar)
	snap.StdDev.V, snap.StdDev.Valid = s.stdDev.Update(bar)
	snap.RSI.V, snap.RSI.Valid = s.rsi.Update(bar)
	snap.ATR.V, snap.ATR.Valid = s.atr.Update(bar)
	return snap
}
