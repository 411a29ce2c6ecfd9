package formulas

// MaxDrawdown calculates the maximum peak-to-trough loss of a value series.
//
// Drawdown at t = (peak value up to t - value at t) / peak value up to t
// Max drawdown = maximum over all t, as a positive fraction (0.25 = 25% loss).
//
// Series with fewer than 2 points have no drawdown.
func MaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, v := range values {
		if v > peak {
			peak = v
		}

		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown
}

// CurrentDrawdown returns how far the final value sits below the series peak,
// as a positive fraction. 0 when the series is at its peak.
func CurrentDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}

	if peak <= 0 {
		return 0
	}
	return (peak - values[len(values)-1]) / peak
}
