package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DaysPerYear is the annualization basis. Portfolios here hold assets that
// trade every calendar day, so 365 rather than the 252 equity trading days.
const DaysPerYear = 365

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// SimpleReturns converts a value series to periodic percentage returns.
// Returns[i] = (Value[i+1] - Value[i]) / Value[i]; zero-valued days yield 0.
func SimpleReturns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}

	return returns
}

// LogReturns converts a value series to log returns: ln(Value[i+1] / Value[i]).
// Non-positive values produce a 0 return for that step rather than NaN.
func LogReturns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 && values[i] > 0 {
			returns[i-1] = math.Log(values[i] / values[i-1])
		}
	}

	return returns
}

// AnnualizedVolatility calculates annualized volatility from daily returns.
// Formula: StdDev of daily returns x sqrt(365)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	return StdDev(dailyReturns) * math.Sqrt(DaysPerYear)
}

// AnnualizedReturn computes the compound annual growth rate over a window of
// `days` calendar days: (end/start)^(365/days) - 1.
// Guarded against zero-length windows and non-positive values, which would put
// a negative base under a fractional power.
func AnnualizedReturn(startValue, endValue float64, days int) float64 {
	if days <= 0 || startValue <= 0 || endValue <= 0 {
		return 0
	}
	return math.Pow(endValue/startValue, DaysPerYear/float64(days)) - 1
}
