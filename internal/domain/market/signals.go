package market

import (
	"math"
	"time"
)

// SignalSource maps a bar to its external signal. A missing entry must yield Neutral.
type SignalSource interface {
	Lookup(index int, ts time.Time) Signal
}

// NeutralSignals is a source with no entries
type NeutralSignals struct{}

func (NeutralSignals) Lookup(int, time.Time) Signal { return Neutral }

// SignalTable holds signals keyed by bar timestamp and, optionally, by bar index.
// Index entries win over timestamp entries for the same bar.
type SignalTable struct {
	byTime  map[int64]Signal
	byIndex map[int]Signal
}

// NewSignalTable creates an empty table
func NewSignalTable() *SignalTable {
	return &SignalTable{
		byTime:  make(map[int64]Signal),
		byIndex: make(map[int]Signal),
	}
}

// SetAt stores the signal for the bar with timestamp ts
func (t *SignalTable) SetAt(ts time.Time, s Signal) {
	t.byTime[ts.UnixNano()] = clampSignal(s)
}

// SetIndex stores the signal for the bar at position i
func (t *SignalTable) SetIndex(i int, s Signal) {
	t.byIndex[i] = clampSignal(s)
}

// Len returns the number of stored entries
func (t *SignalTable) Len() int {
	return len(t.byTime) + len(t.byIndex)
}

func (t *SignalTable) Lookup(index int, ts time.Time) Signal {
	if s, ok := t.byIndex[index]; ok {
		return s
	}
	if s, ok := t.byTime[ts.UnixNano()]; ok {
		return s
	}
	return Neutral
}

// DailySignals joins signals to bars by UTC calendar day, so one daily sentiment
// score applies to every intraday bar of that day. Whale flags are point events
// looked up by exact timestamp; a flag set with SetWhaleDay covers the whole day
// unless the bar has its own timestamp entry.
type DailySignals struct {
	sentiment map[string]float64
	whales    map[int64]bool
	whaleDays map[string]bool
}

// NewDailySignals creates an empty daily table
func NewDailySignals() *DailySignals {
	return &DailySignals{
		sentiment: make(map[string]float64),
		whales:    make(map[int64]bool),
		whaleDays: make(map[string]bool),
	}
}

func dayKey(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// SetSentiment stores the sentiment score for the day containing ts
func (d *DailySignals) SetSentiment(ts time.Time, score float64) {
	d.sentiment[dayKey(ts)] = clampSentiment(score)
}

// SetWhale flags whale activity on the bar with timestamp ts
func (d *DailySignals) SetWhale(ts time.Time, active bool) {
	d.whales[ts.UnixNano()] = active
}

// SetWhaleDay flags whale activity on every bar of the day containing ts
func (d *DailySignals) SetWhaleDay(ts time.Time, active bool) {
	d.whaleDays[dayKey(ts)] = active
}

// Days returns the number of days with a sentiment score
func (d *DailySignals) Days() int {
	return len(d.sentiment)
}

func (d *DailySignals) Lookup(_ int, ts time.Time) Signal {
	day := dayKey(ts)
	whale, ok := d.whales[ts.UnixNano()]
	if !ok {
		whale = d.whaleDays[day]
	}
	return Signal{
		Sentiment: d.sentiment[day],
		Whale:     whale,
	}
}

func clampSignal(s Signal) Signal {
	s.Sentiment = clampSentiment(s.Sentiment)
	return s
}

// clampSentiment keeps scores in [-1, 1]; NaN collapses to neutral
func clampSentiment(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
