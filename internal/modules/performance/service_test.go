package performance

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookman/portfolio-service/internal/domain"
	"github.com/bookman/portfolio-service/internal/modules/journal"
	"github.com/bookman/portfolio-service/internal/modules/portfolio"
	"github.com/bookman/portfolio-service/internal/modules/pricing"
)

type perfFixture struct {
	db      *sql.DB
	svc     *Service
	cache   *Cache
	journal *journal.Repository
	prices  *pricing.Repository
}

func newPerfFixture(t *testing.T) *perfFixture {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, portfolio.InitSchema(db))
	require.NoError(t, journal.InitSchema(db))
	require.NoError(t, pricing.InitSchema(db))

	portfolios := portfolio.NewRepository(db, zerolog.Nop())
	journalRepo := journal.NewRepository(db, zerolog.Nop())
	prices := pricing.NewRepository(db, zerolog.Nop())
	cache := NewCache(time.Minute)

	return &perfFixture{
		db:      db,
		svc:     NewService(portfolios, journalRepo, prices, cache, 0.02, zerolog.Nop()),
		cache:   cache,
		journal: journalRepo,
		prices:  prices,
	}
}

func (f *perfFixture) createPortfolio(t *testing.T, id string) {
	t.Helper()
	repo := portfolio.NewRepository(f.db, zerolog.Nop())
	now := time.Now().UTC()
	require.NoError(t, repo.Create(&portfolio.Portfolio{
		ID:        id,
		UserID:    "user-1",
		Name:      "Test",
		Status:    portfolio.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func (f *perfFixture) appendJournal(t *testing.T, id, portfolioID, symbol, txType string, qty, price int64, at time.Time) {
	t.Helper()
	tx, err := f.db.Begin()
	require.NoError(t, err)
	require.NoError(t, f.journal.AppendTx(tx, &journal.Transaction{
		ID:          id,
		PortfolioID: portfolioID,
		AssetID:     "asset-" + symbol,
		Symbol:      symbol,
		Type:        txType,
		Quantity:    decimal.NewFromInt(qty),
		Price:       decimal.NewFromInt(price),
		Fee:         decimal.Zero,
		ExecutedAt:  at,
		CreatedAt:   at,
	}))
	require.NoError(t, tx.Commit())
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func window(start, end time.Time) Window {
	return Window{Start: start, End: end, Key: start.Format("2006-01-02") + ".." + end.Format("2006-01-02")}
}

func TestGetMetrics_PortfolioNotFound(t *testing.T) {
	f := newPerfFixture(t)

	_, err := f.svc.GetMetrics(context.Background(), "missing", window(day(2026, 1, 1), day(2026, 1, 31)))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetMetrics_NoTransactions(t *testing.T) {
	f := newPerfFixture(t)
	f.createPortfolio(t, "p1")

	m, err := f.svc.GetMetrics(context.Background(), "p1", window(day(2026, 1, 1), day(2026, 1, 31)))
	require.NoError(t, err)

	assert.True(t, m.LowConfidence)
	assert.Zero(t, m.StartValue)
	assert.Zero(t, m.EndValue)
	assert.Zero(t, m.AnnualizedReturn)
	assert.Zero(t, m.Volatility)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.MaxDrawdown)
	assert.Empty(t, m.DailyReturns)
}

func TestGetMetrics_DailySeriesFromPriceHistory(t *testing.T) {
	f := newPerfFixture(t)
	f.createPortfolio(t, "p1")

	d0 := day(2026, 1, 1)
	f.appendJournal(t, "tx-1", "p1", "BTC", journal.TypeBuy, 1, 100, d0.Add(10*time.Hour))

	require.NoError(t, f.prices.Record("BTC", decimal.NewFromInt(100), d0.Add(12*time.Hour)))
	require.NoError(t, f.prices.Record("BTC", decimal.NewFromInt(110), d0.AddDate(0, 0, 1).Add(12*time.Hour)))
	require.NoError(t, f.prices.Record("BTC", decimal.NewFromInt(99), d0.AddDate(0, 0, 2).Add(12*time.Hour)))

	m, err := f.svc.GetMetrics(context.Background(), "p1", window(d0, d0.AddDate(0, 0, 2)))
	require.NoError(t, err)

	assert.InDelta(t, 100, m.StartValue, 1e-6)
	assert.InDelta(t, 99, m.EndValue, 1e-6)
	assert.InDelta(t, -1, m.ProfitLoss, 1e-6)
	assert.InDelta(t, -1, m.ProfitLossPct, 1e-6)
	// Peak 110, trough 99
	assert.InDelta(t, 0.1, m.MaxDrawdown, 1e-6)
	assert.False(t, m.LowConfidence)

	require.Len(t, m.DailyReturns, 3)
	assert.InDelta(t, 0.10, m.DailyReturns[1].Return, 1e-9)
	assert.InDelta(t, -0.10, m.DailyReturns[2].Return, 1e-9)
}

func TestGetMetrics_FallsBackToTransactionPrice(t *testing.T) {
	f := newPerfFixture(t)
	f.createPortfolio(t, "p1")

	d0 := day(2026, 1, 1)
	f.appendJournal(t, "tx-1", "p1", "BTC", journal.TypeBuy, 2, 50, d0.Add(time.Hour))
	// No price history at all: days value at the executed price

	m, err := f.svc.GetMetrics(context.Background(), "p1", window(d0, d0.AddDate(0, 0, 1)))
	require.NoError(t, err)
	assert.InDelta(t, 100, m.StartValue, 1e-6)
	assert.InDelta(t, 100, m.EndValue, 1e-6)
	assert.Zero(t, m.ProfitLoss)
}

func TestGetMetrics_SellsReduceHoldings(t *testing.T) {
	f := newPerfFixture(t)
	f.createPortfolio(t, "p1")

	d0 := day(2026, 1, 1)
	f.appendJournal(t, "tx-1", "p1", "BTC", journal.TypeBuy, 2, 100, d0.Add(time.Hour))
	f.appendJournal(t, "tx-2", "p1", "BTC", journal.TypeSell, 1, 100, d0.AddDate(0, 0, 1).Add(time.Hour))

	m, err := f.svc.GetMetrics(context.Background(), "p1", window(d0, d0.AddDate(0, 0, 1)))
	require.NoError(t, err)
	assert.InDelta(t, 200, m.StartValue, 1e-6)
	assert.InDelta(t, 100, m.EndValue, 1e-6)
}

func TestGetMetrics_SinglePointIsLowConfidence(t *testing.T) {
	f := newPerfFixture(t)
	f.createPortfolio(t, "p1")

	d0 := day(2026, 1, 1)
	f.appendJournal(t, "tx-1", "p1", "BTC", journal.TypeBuy, 1, 100, d0.Add(time.Hour))

	m, err := f.svc.GetMetrics(context.Background(), "p1", window(d0, d0))
	require.NoError(t, err)
	assert.True(t, m.LowConfidence)
	assert.InDelta(t, 100, m.StartValue, 1e-6)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.Volatility)
}

func TestGetMetrics_CachesUntilInvalidated(t *testing.T) {
	f := newPerfFixture(t)
	f.createPortfolio(t, "p1")

	d0 := day(2026, 1, 1)
	f.appendJournal(t, "tx-1", "p1", "BTC", journal.TypeBuy, 1, 100, d0.Add(time.Hour))

	w := window(d0, d0.AddDate(0, 0, 1))
	first, err := f.svc.GetMetrics(context.Background(), "p1", w)
	require.NoError(t, err)
	assert.InDelta(t, 100, first.EndValue, 1e-6)

	// A new price arrives; the cached window does not see it
	require.NoError(t, f.prices.Record("BTC", decimal.NewFromInt(120), d0.Add(2*time.Hour)))
	cached, err := f.svc.GetMetrics(context.Background(), "p1", w)
	require.NoError(t, err)
	assert.InDelta(t, 100, cached.EndValue, 1e-6)

	f.svc.Invalidate("p1")
	fresh, err := f.svc.GetMetrics(context.Background(), "p1", w)
	require.NoError(t, err)
	assert.InDelta(t, 120, fresh.EndValue, 1e-6)
}

func TestGetMetrics_WindowStartsAtFirstEntry(t *testing.T) {
	f := newPerfFixture(t)
	f.createPortfolio(t, "p1")

	d5 := day(2026, 1, 5)
	f.appendJournal(t, "tx-1", "p1", "BTC", journal.TypeBuy, 1, 100, d5.Add(time.Hour))

	// Window opens before the first entry: no zero-padded leading days
	m, err := f.svc.GetMetrics(context.Background(), "p1", window(day(2026, 1, 1), day(2026, 1, 6)))
	require.NoError(t, err)
	assert.Equal(t, "2026-01-05", m.StartDate)
	assert.InDelta(t, 100, m.StartValue, 1e-6)
}

func TestResolveWindow(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	w, err := ResolveWindow("30d", nil, nil, now)
	require.NoError(t, err)
	assert.Equal(t, "30d", w.Key)
	assert.Equal(t, now.AddDate(0, 0, -30), w.Start)

	w, err = ResolveWindow("", nil, nil, now)
	require.NoError(t, err)
	assert.Equal(t, "30d", w.Key)

	w, err = ResolveWindow("all", nil, nil, now)
	require.NoError(t, err)
	assert.True(t, w.Start.IsZero())

	_, err = ResolveWindow("2w", nil, nil, now)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestResolveWindow_ExplicitRange(t *testing.T) {
	now := time.Now().UTC()
	start := day(2026, 1, 1)
	end := day(2026, 1, 31)

	w, err := ResolveWindow("", &start, &end, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01..2026-01-31", w.Key)

	_, err = ResolveWindow("", &start, nil, now)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = ResolveWindow("", &end, &start, now)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestCache_InvalidateIsScopedToPortfolio(t *testing.T) {
	cache := NewCache(time.Minute)
	asOf := day(2026, 1, 1)

	cache.Set(cacheKey("p1", "30d", asOf), &Metrics{PortfolioID: "p1"})
	cache.Set(cacheKey("p2", "30d", asOf), &Metrics{PortfolioID: "p2"})

	cache.Invalidate("p1")

	_, ok := cache.Get(cacheKey("p1", "30d", asOf))
	assert.False(t, ok)
	_, ok = cache.Get(cacheKey("p2", "30d", asOf))
	assert.True(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := NewCache(time.Millisecond)
	key := cacheKey("p1", "30d", day(2026, 1, 1))
	cache.Set(key, &Metrics{})

	time.Sleep(5 * time.Millisecond)
	_, ok := cache.Get(key)
	assert.False(t, ok)
}
