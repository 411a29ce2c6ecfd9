package formulas

import (
	"math"
)

// SharpeRatio calculates the annualized Sharpe ratio from daily returns.
//
// Sharpe = (mean daily return - daily risk-free rate) / stddev of daily returns
// Annualized: Sharpe x sqrt(365)
//
// riskFreeRate is the annual risk-free rate as a decimal (0.02 for 2%).
// Returns nil when fewer than 2 data points exist or volatility is zero;
// callers report 0 with a low-confidence flag in that case.
func SharpeRatio(dailyReturns []float64, riskFreeRate float64) *float64 {
	if len(dailyReturns) < 2 {
		return nil
	}

	stdDev := StdDev(dailyReturns)
	if stdDev == 0 {
		return nil
	}

	dailyRiskFree := riskFreeRate / DaysPerYear
	sharpe := (Mean(dailyReturns) - dailyRiskFree) / stdDev

	annualized := sharpe * math.Sqrt(DaysPerYear)
	return &annualized
}

// SortinoRatio calculates the annualized Sortino ratio (downside-deviation
// variant of Sharpe). Only returns below the daily MAR contribute to risk.
func SortinoRatio(dailyReturns []float64, riskFreeRate, targetReturn float64) *float64 {
	if len(dailyReturns) < 2 {
		return nil
	}

	dailyMAR := targetReturn / DaysPerYear

	var downsideSquaredSum float64
	downsideCount := 0
	for _, ret := range dailyReturns {
		if ret < dailyMAR {
			deviation := ret - dailyMAR
			downsideSquaredSum += deviation * deviation
			downsideCount++
		}
	}

	if downsideCount == 0 {
		return nil
	}

	downsideDeviation := math.Sqrt(downsideSquaredSum / float64(downsideCount))
	if downsideDeviation == 0 {
		return nil
	}

	dailyRiskFree := riskFreeRate / DaysPerYear
	sortino := (Mean(dailyReturns) - dailyRiskFree) / downsideDeviation

	annualized := sortino * math.Sqrt(DaysPerYear)
	return &annualized
}
