package indicators

import (
	"math"

	"github.com/razaquegoraya007/trading-bot-env/internal/domain/market"
)

// RSIResult represents the result of RSI calculation
type RSIResult struct {
	Value     float64 `json:"value"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateRSI calculates the Relative Strength Index over a close series.
// The value is the one the streaming RSI reports after the last price.
func CalculateRSI(prices []float64, period int) RSIResult {
	result := RSIResult{
		Value:     50.0, // Neutral RSI when insufficient data
		Period:    period,
		DataCount: len(prices),
	}
	if period < 1 || len(prices) < period+1 {
		return result
	}

	rsi := NewRSI(period)
	for _, p := range prices {
		if v, ok := rsi.Update(market.Bar{Close: p}); ok {
			result.Value = v
			result.IsValid = true
		}
	}
	return result
}

// ATRResult represents the result of ATR calculation
type ATRResult struct {
	Value     float64 `json:"value"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateATR calculates the Average True Range for given OHLC data
func CalculateATR(bars []market.Bar, period int) ATRResult {
	result := ATRResult{
		Period:    period,
		DataCount: len(bars),
	}
	if period < 1 || len(bars) < period {
		return result
	}

	atr := NewATR(period)
	for _, b := range bars {
		if v, ok := atr.Update(b); ok {
			result.Value = v
			result.IsValid = true
		}
	}
	return result
}

// SMAResult represents the result of a simple moving average calculation
type SMAResult struct {
	Value     float64 `json:"value"`
	StdDev    float64 `json:"std_dev"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateSMA calculates the mean and population standard deviation of the last period prices
func CalculateSMA(prices []float64, period int) SMAResult {
	result := SMAResult{
		Period:    period,
		DataCount: len(prices),
	}
	if period < 1 || len(prices) < period {
		return result
	}

	recent := prices[len(prices)-period:]
	mean, sd := meanStd(recent)
	result.Value = mean
	result.StdDev = sd
	result.IsValid = true
	return result
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|)
func trueRange(bar market.Bar, prevClose float64) float64 {
	hl := bar.High - bar.Low
	hc := math.Abs(bar.High - prevClose)
	lc := math.Abs(bar.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// rsiFromAverages applies the RSI formula. A series with no losses reads 100,
// a series with neither gains nor losses reads a neutral 50.
func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// meanStd returns the arithmetic mean and population standard deviation
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
