// Package position owns the single-position lifecycle of a backtest run.
//
// A Machine moves between Flat and Long, accepts at most one decision per bar
// and appends a Trade to its ledger on every Long -> Flat transition.
package position

import (
	"fmt"
	"time"

	"github.com/razaquegoraya007/trading-bot-env/internal/exits"
)

// Status is the position status
type Status int

const (
	Flat Status = iota
	Long
)

func (s Status) String() string {
	if s == Long {
		return "long"
	}
	return "flat"
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "flat":
		*s = Flat
	case "long":
		*s = Long
	default:
		return fmt.Errorf("unknown position status %q", b)
	}
	return nil
}

// State is the current position. EntryPrice and EntryIndex are set only while Long.
type State struct {
	Status     Status    `json:"status"`
	EntryPrice *float64  `json:"entry_price,omitempty"`
	EntryIndex *int      `json:"entry_index,omitempty"`
	EntryTime  time.Time `json:"entry_time,omitempty"`
}

// IsLong reports whether a position is open
func (s State) IsLong() bool {
	return s.Status == Long
}

// Entry returns the entry price, or 0 when flat
func (s State) Entry() float64 {
	if s.EntryPrice == nil {
		return 0
	}
	return *s.EntryPrice
}

// Action is what an evaluator asks the machine to do on a bar
type Action int

const (
	Hold Action = iota
	EnterLong
	ExitLong
)

func (a Action) String() string {
	switch a {
	case Hold:
		return "hold"
	case EnterLong:
		return "enter_long"
	case ExitLong:
		return "exit_long"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// MarshalText encodes the action by name
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Decision is one evaluator output. Reason is only meaningful for ExitLong.
type Decision struct {
	Action Action       `json:"action"`
	Reason exits.Reason `json:"reason"`
}

// HoldDecision does nothing
func HoldDecision() Decision { return Decision{Action: Hold} }

// EnterDecision opens a long position at the bar close
func EnterDecision() Decision { return Decision{Action: EnterLong} }

// ExitDecision closes the long position at the bar close
func ExitDecision(reason exits.Reason) Decision {
	return Decision{Action: ExitLong, Reason: reason}
}

// Trade is a closed round trip, immutable once appended to the ledger
type Trade struct {
	EntryIndex int          `json:"entry_index"`
	ExitIndex  int          `json:"exit_index"`
	EntryTime  time.Time    `json:"entry_time"`
	ExitTime   time.Time    `json:"exit_time"`
	EntryPrice float64      `json:"entry_price"`
	ExitPrice  float64      `json:"exit_price"`
	PnL        float64      `json:"pnl"`
	ExitReason exits.Reason `json:"exit_reason"`
}
