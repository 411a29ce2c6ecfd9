package performance

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bookman/portfolio-service/internal/modules/journal"
	"github.com/bookman/portfolio-service/internal/modules/portfolio"
	"github.com/bookman/portfolio-service/internal/modules/pricing"
	"github.com/bookman/portfolio-service/pkg/formulas"
)

// Service reconstructs a portfolio's daily valuation series from the
// journal plus the price history and computes windowed metrics from it.
type Service struct {
	portfolios   *portfolio.Repository
	journal      *journal.Repository
	prices       *pricing.Repository
	cache        *Cache
	riskFreeRate float64
	log          zerolog.Logger
}

func NewService(
	portfolios *portfolio.Repository,
	journalRepo *journal.Repository,
	prices *pricing.Repository,
	cache *Cache,
	riskFreeRate float64,
	log zerolog.Logger,
) *Service {
	return &Service{
		portfolios:   portfolios,
		journal:      journalRepo,
		prices:       prices,
		cache:        cache,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("service", "performance").Logger(),
	}
}

// Invalidate drops cached metrics for a portfolio. Satisfies the
// invalidator hooks on the ledger service and the price synchronizer.
func (s *Service) Invalidate(portfolioID string) {
	s.cache.Invalidate(portfolioID)
}

// GetMetrics computes windowed performance metrics for a portfolio.
// Archived portfolios stay readable. A portfolio with fewer than two
// valuation points returns all-zero metrics flagged low confidence.
func (s *Service) GetMetrics(ctx context.Context, portfolioID string, w Window) (*Metrics, error) {
	if _, err := s.portfolios.GetByID(portfolioID); err != nil {
		return nil, err
	}

	key := cacheKey(portfolioID, w.Key, w.End)
	if m, ok := s.cache.Get(key); ok {
		return m, nil
	}

	entries, err := s.journal.ListForReplay(portfolioID, w.End)
	if err != nil {
		return nil, err
	}

	series, err := s.buildDailySeries(ctx, entries, w)
	if err != nil {
		return nil, err
	}

	m := s.compute(portfolioID, w, series)
	s.cache.Set(key, m)
	return m, nil
}

type dayValue struct {
	day   time.Time
	value float64
}

// buildDailySeries replays the journal into end-of-day holdings and values
// each day at the latest recorded price at or before that day, falling back
// to the most recent transaction price when no tick exists yet.
func (s *Service) buildDailySeries(ctx context.Context, entries []journal.Transaction, w Window) ([]dayValue, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	histories := make(map[string][]pricing.PricePoint)
	cursors := make(map[string]int)
	for _, e := range entries {
		if _, ok := histories[e.Symbol]; ok {
			continue
		}
		hist, err := s.prices.History(e.Symbol, time.Time{})
		if err != nil {
			return nil, err
		}
		histories[e.Symbol] = hist
	}

	start := w.Start
	firstDay := dayOf(entries[0].ExecutedAt)
	if start.IsZero() || start.Before(firstDay) {
		// Days before the first entry have no holdings and would only
		// pad the series with zeros
		start = firstDay
	}

	holdings := make(map[string]decimal.Decimal)
	lastTxPrice := make(map[string]decimal.Decimal)

	var series []dayValue
	next := 0
	for day := dayOf(start); !day.After(w.End); day = day.AddDate(0, 0, 1) {
		dayEnd := day.AddDate(0, 0, 1)

		for next < len(entries) && entries[next].ExecutedAt.Before(dayEnd) {
			e := entries[next]
			holdings[e.Symbol] = holdings[e.Symbol].Add(e.QuantityDelta())
			if e.Price.IsPositive() {
				lastTxPrice[e.Symbol] = e.Price
			}
			next++
		}

		total := decimal.Zero
		for symbol, qty := range holdings {
			if qty.IsZero() {
				continue
			}
			total = total.Add(qty.Mul(s.priceAt(histories, cursors, lastTxPrice, symbol, dayEnd)))
		}
		series = append(series, dayValue{day: day, value: total.InexactFloat64()})

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return series, nil
}

// priceAt advances the per-symbol history cursor up to cutoff and returns
// the latest price seen, or the last transaction price when the history is
// still empty at that time.
func (s *Service) priceAt(
	histories map[string][]pricing.PricePoint,
	cursors map[string]int,
	lastTxPrice map[string]decimal.Decimal,
	symbol string,
	cutoff time.Time,
) decimal.Decimal {
	hist := histories[symbol]
	i := cursors[symbol]
	for i < len(hist) && hist[i].RecordedAt.Before(cutoff) {
		i++
	}
	cursors[symbol] = i
	if i > 0 {
		return hist[i-1].Price
	}
	return lastTxPrice[symbol]
}

func (s *Service) compute(portfolioID string, w Window, series []dayValue) *Metrics {
	m := &Metrics{
		PortfolioID:  portfolioID,
		StartDate:    w.Start.UTC().Format("2006-01-02"),
		EndDate:      w.End.UTC().Format("2006-01-02"),
		DailyReturns: []DailyPoint{},
	}
	if len(series) > 0 {
		m.StartDate = series[0].day.Format("2006-01-02")
		m.EndDate = series[len(series)-1].day.Format("2006-01-02")
	}

	values := make([]float64, len(series))
	for i, dv := range series {
		values[i] = dv.value
	}

	if len(series) < 2 {
		m.LowConfidence = true
		if len(series) == 1 {
			m.StartValue = values[0]
			m.EndValue = values[0]
			m.DailyReturns = append(m.DailyReturns, DailyPoint{Date: series[0].day.Format("2006-01-02"), Value: values[0]})
		}
		return m
	}

	m.StartValue = values[0]
	m.EndValue = values[len(values)-1]
	m.ProfitLoss = m.EndValue - m.StartValue
	if m.StartValue != 0 {
		m.ProfitLossPct = m.ProfitLoss / m.StartValue * 100
	}

	days := int(series[len(series)-1].day.Sub(series[0].day).Hours() / 24)
	m.AnnualizedReturn = formulas.AnnualizedReturn(m.StartValue, m.EndValue, days)
	m.MaxDrawdown = formulas.MaxDrawdown(values)
	m.Volatility = formulas.AnnualizedVolatility(formulas.LogReturns(values))

	simple := formulas.SimpleReturns(values)
	if sharpe := formulas.SharpeRatio(simple, s.riskFreeRate); sharpe != nil {
		m.SharpeRatio = *sharpe
	} else {
		m.LowConfidence = true
	}

	m.DailyReturns = append(m.DailyReturns, DailyPoint{Date: series[0].day.Format("2006-01-02"), Value: values[0]})
	for i := 1; i < len(series); i++ {
		var ret float64
		if values[i-1] != 0 {
			ret = values[i]/values[i-1] - 1
		}
		m.DailyReturns = append(m.DailyReturns, DailyPoint{
			Date:   series[i].day.Format("2006-01-02"),
			Value:  values[i],
			Return: ret,
		})
	}
	return m
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
