// Package market holds the price bar and external signal model consumed by the backtest core
package market

import (
	"math"
	"time"
)

// Bar represents one OHLCV observation
type Bar struct {
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Finite reports whether every price and volume field is a real number
func (b Bar) Finite() bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Signal is the pre-computed external signal joined to a bar.
// The zero value is neutral: no sentiment and no whale activity.
type Signal struct {
	Sentiment float64 `json:"sentiment"`
	Whale     bool    `json:"whale"`
}

// Neutral is the signal used whenever a source has no entry for a bar
var Neutral = Signal{}

// Feed is an ordered, finite and restartable bar sequence.
// Implementations must return the same bar for the same index on every call.
type Feed interface {
	Name() string
	Len() int
	At(i int) Bar
}

// SliceFeed is a Feed backed by an in-memory slice
type SliceFeed struct {
	name string
	bars []Bar
}

// NewSliceFeed creates a feed over bars. The slice is not copied.
func NewSliceFeed(name string, bars []Bar) *SliceFeed {
	return &SliceFeed{name: name, bars: bars}
}

func (f *SliceFeed) Name() string { return f.name }
func (f *SliceFeed) Len() int { return len(f.bars) }
func (f *SliceFeed) At(i int) Bar { return f.bars[i] }

// Closes builds bars from a close series, one minute apart, with high/low equal to close.
// Useful for fixtures and quick experiments.
func Closes(start time.Time, closes ...float64) []Bar {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
		}
	}
	return bars
}
