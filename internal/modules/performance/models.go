// Package performance derives point-in-time and windowed metrics from the
// transaction journal and the price history. Metrics are pure derived
// values: recomputed on demand, cached briefly, never persisted.
package performance

import (
	"fmt"
	"time"

	"github.com/bookman/portfolio-service/internal/domain"
)

// Named windows accepted by the metrics endpoint
var namedWindows = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
	"1y":  365,
}

// Window is a resolved metrics time range
type Window struct {
	Start time.Time
	End   time.Time
	Key   string // cache key component: the period name or explicit range
}

// ResolveWindow turns a period name or explicit start/end dates into a
// Window. "all" leaves Start zero; the engine anchors it to the first
// journal entry.
func ResolveWindow(period string, start, end *time.Time, now time.Time) (Window, error) {
	now = now.UTC()

	if start != nil || end != nil {
		if start == nil || end == nil {
			return Window{}, fmt.Errorf("%w: start_date and end_date must both be set", domain.ErrValidation)
		}
		if end.Before(*start) {
			return Window{}, fmt.Errorf("%w: end_date before start_date", domain.ErrValidation)
		}
		w := Window{Start: start.UTC(), End: end.UTC()}
		w.Key = w.Start.Format("2006-01-02") + ".." + w.End.Format("2006-01-02")
		return w, nil
	}

	if period == "" {
		period = "30d"
	}
	if period == "all" {
		return Window{End: now, Key: "all"}, nil
	}

	days, ok := namedWindows[period]
	if !ok {
		return Window{}, fmt.Errorf("%w: unsupported period %q", domain.ErrValidation, period)
	}
	return Window{Start: now.AddDate(0, 0, -days), End: now, Key: period}, nil
}

// DailyPoint is one day of the reconstructed valuation series
type DailyPoint struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Value  float64 `json:"value"`
	Return float64 `json:"return"` // simple return vs previous day, 0 for the first
}

// Metrics is the full windowed performance report
type Metrics struct {
	PortfolioID      string       `json:"portfolio_id"`
	StartDate        string       `json:"start_date"`
	EndDate          string       `json:"end_date"`
	StartValue       float64      `json:"start_value"`
	EndValue         float64      `json:"end_value"`
	ProfitLoss       float64      `json:"profit_loss"`
	ProfitLossPct    float64      `json:"profit_loss_pct"`
	AnnualizedReturn float64      `json:"annualized_return"`
	Volatility       float64      `json:"volatility"`
	SharpeRatio      float64      `json:"sharpe_ratio"`
	MaxDrawdown      float64      `json:"max_drawdown"`
	LowConfidence    bool         `json:"low_confidence"`
	DailyReturns     []DailyPoint `json:"daily_returns"`
}
