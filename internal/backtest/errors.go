package backtest

import (
	"fmt"
	"time"

	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
)

// DataError reports a malformed or out-of-order bar. The run stops at Index.
type DataError struct {
	Index     int
	Timestamp time.Time
	Reason    string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error at bar %d (%s): %s", e.Index, e.Timestamp.Format(time.RFC3339), e.Reason)
}

func validateBar(index int, bar, prev market.Bar) error {
	if !bar.Finite() {
		return &DataError{Index: index, Timestamp: bar.Timestamp, Reason: "non-finite price or volume"}
	}
	if bar.Close <= 0 {
		return &DataError{Index: index, Timestamp: bar.Timestamp, Reason: fmt.Sprintf("non-positive close %v", bar.Close)}
	}
	if bar.High < bar.Low {
		return &DataError{Index: index, Timestamp: bar.Timestamp, Reason: fmt.Sprintf("high %v below low %v", bar.High, bar.Low)}
	}
	if bar.Close > bar.High || bar.Close < bar.Low {
		return &DataError{Index: index, Timestamp: bar.Timestamp, Reason: fmt.Sprintf("close %v outside range [%v, %v]", bar.Close, bar.Low, bar.High)}
	}
	if bar.Open > bar.High || bar.Open < bar.Low {
		return &DataError{Index: index, Timestamp: bar.Timestamp, Reason: fmt.Sprintf("open %v outside range [%v, %v]", bar.Open, bar.Low, bar.High)}
	}
	if index > 0 && !bar.Timestamp.After(prev.Timestamp) {
		reason := "timestamp out of order"
		if bar.Timestamp.Equal(prev.Timestamp) {
			reason = "duplicate timestamp"
		}
		return &DataError{Index: index, Timestamp: bar.Timestamp, Reason: reason}
	}
	return nil
}
