package pricing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookman/portfolio-service/internal/database"
	"github.com/bookman/portfolio-service/internal/events"
	"github.com/bookman/portfolio-service/internal/modules/portfolio"
)

const moduleName = "pricing"

// Synchronizer applies external price ticks to every holding of a symbol.
// Each application takes the same per-portfolio lock as ordinary mutations
// so ledger-invariant checks cannot race with ticks, and the price write
// commits in one transaction per portfolio so readers never see a fresh
// price next to a stale total.
type Synchronizer struct {
	conn        *sql.DB
	assets      *portfolio.AssetRepository
	prices      *Repository
	locks       *portfolio.Locks
	eventsMgr   *events.Manager
	invalidator portfolio.MetricsInvalidator
	log         zerolog.Logger
}

// NewSynchronizer creates a new price synchronizer
func NewSynchronizer(
	conn *sql.DB,
	assets *portfolio.AssetRepository,
	prices *Repository,
	locks *portfolio.Locks,
	eventsMgr *events.Manager,
	log zerolog.Logger,
) *Synchronizer {
	return &Synchronizer{
		conn:      conn,
		assets:    assets,
		prices:    prices,
		locks:     locks,
		eventsMgr: eventsMgr,
		log:       log.With().Str("service", "price_sync").Logger(),
	}
}

// SetMetricsInvalidator wires the performance cache; optional.
func (s *Synchronizer) SetMetricsInvalidator(inv portfolio.MetricsInvalidator) {
	s.invalidator = inv
}

// ApplyTick records a price observation and pushes it into every active
// portfolio holding the symbol. Work done is O(holders of the symbol).
func (s *Synchronizer) ApplyTick(ctx context.Context, tick Tick) error {
	if tick.Symbol == "" || !tick.Price.IsPositive() {
		return fmt.Errorf("invalid tick for %q: price %s", tick.Symbol, tick.Price)
	}
	if tick.Timestamp.IsZero() {
		tick.Timestamp = time.Now().UTC()
	}

	if err := s.prices.Record(tick.Symbol, tick.Price, tick.Timestamp); err != nil {
		return err
	}

	holders, err := s.assets.HolderPortfolios(tick.Symbol)
	if err != nil {
		return err
	}

	for _, portfolioID := range holders {
		if err := s.applyToPortfolio(ctx, portfolioID, tick); err != nil {
			s.log.Error().
				Err(err).
				Str("portfolio_id", portfolioID).
				Str("symbol", tick.Symbol).
				Msg("Failed to apply price tick")
			continue
		}

		s.eventsMgr.Emit(events.PriceUpdated, portfolioID, moduleName, map[string]interface{}{
			"symbol":    tick.Symbol,
			"price":     tick.Price.String(),
			"ticked_at": tick.Timestamp.Format(time.RFC3339),
		})
		if s.invalidator != nil {
			s.invalidator.Invalidate(portfolioID)
		}
	}

	s.log.Debug().
		Str("symbol", tick.Symbol).
		Str("price", tick.Price.String()).
		Int("holders", len(holders)).
		Msg("Price tick applied")

	return nil
}

func (s *Synchronizer) applyToPortfolio(ctx context.Context, portfolioID string, tick Tick) error {
	unlock := s.locks.Lock(portfolioID)
	defer unlock()

	return database.WithTransaction(ctx, s.conn, func(tx *sql.Tx) error {
		return s.assets.UpdatePriceTx(tx, portfolioID, tick.Symbol, tick.Price, tick.Timestamp)
	})
}
