package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}

	sma := SMA(prices, 3)
	require.Len(t, sma, 3)
	assert.InDelta(t, 2, sma[0], 1e-9)
	assert.InDelta(t, 3, sma[1], 1e-9)
	assert.InDelta(t, 4, sma[2], 1e-9)
}

func TestSMA_TooShort(t *testing.T) {
	assert.Nil(t, SMA([]float64{1, 2}, 3))
	assert.Nil(t, SMA([]float64{1, 2, 3}, 0))
}

func TestRSI(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i%5)
	}

	rsi := RSI(prices, 14)
	require.Len(t, rsi, len(prices)-14)
	for _, v := range rsi {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestRSI_AllGainsIsMax(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = float64(100 + i)
	}

	rsi := RSI(prices, 14)
	require.NotEmpty(t, rsi)
	assert.InDelta(t, 100, rsi[len(rsi)-1], 1e-9)
}

func TestRSI_TooShort(t *testing.T) {
	assert.Nil(t, RSI([]float64{1, 2, 3}, 14))
	assert.Nil(t, RSI([]float64{1, 2, 3}, 1))
}

func TestLatestRSI(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i%3)
	}

	latest := LatestRSI(prices, 14)
	require.NotNil(t, latest)
	assert.GreaterOrEqual(t, *latest, 0.0)
	assert.LessOrEqual(t, *latest, 100.0)

	assert.Nil(t, LatestRSI(prices[:5], 14))
}
