package formulas

import (
	"github.com/markcheno/go-talib"
)

// RSI calculates the Relative Strength Index series for a price series.
//
// RSI = 100 - (100 / (1 + RS)), RS = average gain / average loss over N periods.
// talib zero-fills the first `length` warm-up entries; they are sliced off so
// the result holds only computed values. Returns nil when fewer than length+1
// prices exist.
func RSI(prices []float64, length int) []float64 {
	if length < 2 || len(prices) < length+1 {
		return nil
	}
	return talib.Rsi(prices, length)[length:]
}

// SMA calculates the simple moving average series for a price series, warm-up
// entries sliced off. Returns nil when fewer than `length` prices exist.
func SMA(prices []float64, length int) []float64 {
	if length < 1 || len(prices) < length {
		return nil
	}
	return talib.Sma(prices, length)[length-1:]
}

// LatestRSI returns the most recent RSI value, or nil when the series is too
// short.
func LatestRSI(prices []float64, length int) *float64 {
	rsi := RSI(prices, length)
	if len(rsi) == 0 {
		return nil
	}

	last := rsi[len(rsi)-1]
	return &last
}
