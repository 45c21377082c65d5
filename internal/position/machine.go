package position

import (
	"errors"
	"fmt"

	"github.com/razaquegoraya007/trading-bot-env/internal/domain/indicators"
	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
	"github.com/razaquegoraya007/trading-bot-env/internal/exits"
)

// ErrBarAlreadyDecided is returned when a second decision arrives for a bar
var ErrBarAlreadyDecided = errors.New("position: bar already has a decision")

// Machine is the Flat/Long state machine with one-unit sizing and cash accounting.
// It is not safe for concurrent use; each run owns one.
type Machine struct {
	state     State
	cash      float64
	ledger    []Trade
	lastIndex int
	decided   bool
	entries   int
	exits     int
}

// NewMachine creates a flat machine holding initialCash
func NewMachine(initialCash float64) *Machine {
	return &Machine{cash: initialCash, lastIndex: -1}
}

// State returns a copy of the current position
func (m *Machine) State() State {
	s := m.state
	if s.EntryPrice != nil {
		p := *s.EntryPrice
		s.EntryPrice = &p
	}
	if s.EntryIndex != nil {
		i := *s.EntryIndex
		s.EntryIndex = &i
	}
	return s
}

// Cash returns the cash balance
func (m *Machine) Cash() float64 { return m.cash }

// Equity marks the open position, if any, at mark
func (m *Machine) Equity(mark float64) float64 {
	if m.state.IsLong() {
		return m.cash + mark
	}
	return m.cash
}

// Trades returns the ledger in close order
func (m *Machine) Trades() []Trade {
	out := make([]Trade, len(m.ledger))
	copy(out, m.ledger)
	return out
}

// Entries and Exits count accepted transitions
func (m *Machine) Entries() int { return m.entries }
func (m *Machine) Exits() int { return m.exits }

// Levels returns the stop/take levels in force for the current bar.
// Fraction levels are fixed at entry; ATR levels move with atr.
func (m *Machine) Levels(cfg exits.Config, atr indicators.Value) exits.Levels {
	if !m.state.IsLong() {
		return exits.Levels{}
	}
	return exits.ComputeLevels(cfg, m.state.Entry(), atr)
}

// Apply executes d on the bar at index. Enter while Long and Exit while Flat are
// rejected as no-ops. The returned trade is non-nil only when a position closed.
func (m *Machine) Apply(index int, bar market.Bar, d Decision) (*Trade, error) {
	if m.decided && index <= m.lastIndex {
		return nil, fmt.Errorf("%w: index %d (last %d)", ErrBarAlreadyDecided, index, m.lastIndex)
	}
	m.lastIndex = index
	m.decided = true

	switch d.Action {
	case EnterLong:
		if m.state.IsLong() {
			return nil, nil
		}
		m.open(index, bar)
		return nil, nil
	case ExitLong:
		if !m.state.IsLong() {
			return nil, nil
		}
		trade := m.close(index, bar, d.Reason)
		return &trade, nil
	default:
		return nil, nil
	}
}

// ForceClose closes an open position at the final bar with ForcedEndOfRun.
// It returns nil when flat.
func (m *Machine) ForceClose(index int, bar market.Bar) (*Trade, error) {
	if !m.state.IsLong() {
		return nil, nil
	}
	if index <= *m.state.EntryIndex {
		return nil, fmt.Errorf("position: cannot close at index %d, entered at %d", index, *m.state.EntryIndex)
	}
	trade := m.close(index, bar, exits.ForcedEndOfRun)
	if index > m.lastIndex {
		m.lastIndex = index
	}
	return &trade, nil
}

func (m *Machine) open(index int, bar market.Bar) {
	price := bar.Close
	idx := index
	m.state = State{
		Status:     Long,
		EntryPrice: &price,
		EntryIndex: &idx,
		EntryTime:  bar.Timestamp,
	}
	m.cash -= price
	m.entries++
}

func (m *Machine) close(index int, bar market.Bar, reason exits.Reason) Trade {
	entry := *m.state.EntryPrice
	trade := Trade{
		EntryIndex: *m.state.EntryIndex,
		ExitIndex:  index,
		EntryTime:  m.state.EntryTime,
		ExitTime:   bar.Timestamp,
		EntryPrice: entry,
		ExitPrice:  bar.Close,
		PnL:        bar.Close - entry,
		ExitReason: reason,
	}
	m.cash += bar.Close
	m.ledger = append(m.ledger, trade)
	m.state = State{Status: Flat}
	m.exits++
	return trade
}
