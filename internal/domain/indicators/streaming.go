// Package indicators provides streaming technical indicators.
// Every indicator consumes one bar at a time and only ever looks at bars it has
// already been given, so a value for bar i depends on bars <= i.
package indicators

import (
	"fmt"

	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
)

// Indicator is a streaming computation over bars.
// Update returns ok=false until the trailing window is filled.
type Indicator interface {
	Update(bar market.Bar) (value float64, ok bool)
	Period() int
}

func mustPeriod(name string, period int) {
	if period < 1 {
		panic(fmt.Sprintf("indicators: %s period must be positive, got %d", name, period))
	}
}

// window is a fixed-size ring of the most recent closes
type window struct {
	values []float64
	next   int
	filled bool
}

func newWindow(size int) *window {
	return &window{values: make([]float64, size)}
}

func (w *window) push(v float64) {
	w.values[w.next] = v
	w.next++
	if w.next == len(w.values) {
		w.next = 0
		w.filled = true
	}
}

// SMA is the simple moving average of closes
type SMA struct {
	period int
	win    *window
}

// NewSMA creates an SMA; period must be positive
func NewSMA(period int) *SMA {
	mustPeriod("SMA", period)
	return &SMA{period: period, win: newWindow(period)}
}

func (s *SMA) Period() int { return s.period }

func (s *SMA) Update(bar market.Bar) (float64, bool) {
	s.win.push(bar.Close)
	if !s.win.filled {
		return 0, false
	}
	mean, _ := meanStd(s.win.values)
	return mean, true
}

// StdDev is the population standard deviation of closes (denominator = period)
type StdDev struct {
	period int
	win    *window
}

// NewStdDev creates a StdDev; period must be positive
func NewStdDev(period int) *StdDev {
	mustPeriod("StdDev", period)
	return &StdDev{period: period, win: newWindow(period)}
}

func (s *StdDev) Period() int { return s.period }

func (s *StdDev) Update(bar market.Bar) (float64, bool) {
	s.win.push(bar.Close)
	if !s.win.filled {
		return 0, false
	}
	_, sd := meanStd(s.win.values)
	return sd, true
}

// RSI is Wilder's relative strength index. The first value needs period
// close-to-close changes, i.e. period+1 bars.
type RSI struct {
	period    int
	prevClose float64
	hasPrev   bool
	count     int
	avgGain   float64
	avgLoss   float64
	ready     bool
}

// NewRSI creates an RSI; period must be positive
func NewRSI(period int) *RSI {
	mustPeriod("RSI", period)
	return &RSI{period: period}
}

func (r *RSI) Period() int { return r.period }

func (r *RSI) Update(bar market.Bar) (float64, bool) {
	if !r.hasPrev {
		r.prevClose = bar.Close
		r.hasPrev = true
		return 0, false
	}

	change := bar.Close - r.prevClose
	r.prevClose = bar.Close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if !r.ready {
		// Seed with the simple average of the first period changes
		r.avgGain += gain
		r.avgLoss += loss
		r.count++
		if r.count < r.period {
			return 0, false
		}
		r.avgGain /= float64(r.period)
		r.avgLoss /= float64(r.period)
		r.ready = true
		return rsiFromAverages(r.avgGain, r.avgLoss), true
	}

	alpha := 1.0 / float64(r.period)
	r.avgGain = r.avgGain*(1-alpha) + gain*alpha
	r.avgLoss = r.avgLoss*(1-alpha) + loss*alpha
	return rsiFromAverages(r.avgGain, r.avgLoss), true
}

// ATR is Wilder's average true range. The first bar has no previous close,
// so its true range is high-low.
type ATR struct {
	period    int
	prevClose float64
	hasPrev   bool
	count     int
	atr       float64
	ready     bool
}

// NewATR creates an ATR; period must be positive
func NewATR(period int) *ATR {
	mustPeriod("ATR", period)
	return &ATR{period: period}
}

func (a *ATR) Period() int { return a.period }

func (a *ATR) Update(bar market.Bar) (float64, bool) {
	tr := bar.High - bar.Low
	if a.hasPrev {
		tr = trueRange(bar, a.prevClose)
	}
	a.prevClose = bar.Close
	a.hasPrev = true

	if !a.ready {
		a.atr += tr
		a.count++
		if a.count < a.period {
			return 0, false
		}
		a.atr /= float64(a.period)
		a.ready = true
		return a.atr, true
	}

	alpha := 1.0 / float64(a.period)
	a.atr = a.atr*(1-alpha) + tr*alpha
	return a.atr, true
}
