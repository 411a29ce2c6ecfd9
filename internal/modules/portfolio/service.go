package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bookman/portfolio-service/internal/database"
	"github.com/bookman/portfolio-service/internal/domain"
	"github.com/bookman/portfolio-service/internal/events"
	"github.com/bookman/portfolio-service/internal/modules/journal"
)

const moduleName = "portfolio"

// MetricsInvalidator drops cached performance metrics after a mutation.
type MetricsInvalidator interface {
	Invalidate(portfolioID string)
}

// Service orchestrates the asset ledger and the transaction journal.
// Every mutation follows the same order: validate, acquire the portfolio
// lock, run the ledger write and journal append in one repository
// transaction, then publish events after commit.
type Service struct {
	conn        *sql.DB
	repo        *Repository
	assets      *AssetRepository
	journal     *journal.Repository
	eventsMgr   *events.Manager
	locks       *Locks
	staleAfter  time.Duration
	invalidator MetricsInvalidator
	log         zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(
	conn *sql.DB,
	repo *Repository,
	assets *AssetRepository,
	journalRepo *journal.Repository,
	eventsMgr *events.Manager,
	locks *Locks,
	staleAfter time.Duration,
	log zerolog.Logger,
) *Service {
	return &Service{
		conn:       conn,
		repo:       repo,
		assets:     assets,
		journal:    journalRepo,
		eventsMgr:  eventsMgr,
		locks:      locks,
		staleAfter: staleAfter,
		log:        log.With().Str("service", "portfolio").Logger(),
	}
}

// SetMetricsInvalidator wires the performance cache; optional.
func (s *Service) SetMetricsInvalidator(inv MetricsInvalidator) {
	s.invalidator = inv
}

// CreatePortfolio creates a new active portfolio
func (s *Service) CreatePortfolio(ctx context.Context, p *Portfolio) (*Portfolio, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.Status = StatusActive
	p.CreatedAt = now
	p.UpdatedAt = now
	p.TotalValue = decimal.Zero
	p.ProfitLoss = decimal.Zero

	if err := s.repo.Create(p); err != nil {
		return nil, s.classify(err)
	}

	s.log.Info().
		Str("portfolio_id", p.ID).
		Str("user_id", p.UserID).
		Msg("Portfolio created")

	s.eventsMgr.Emit(events.PortfolioCreated, p.ID, moduleName, map[string]interface{}{
		"name": p.Name,
	})

	return p, nil
}

// GetPortfolio returns a portfolio with its assets and derived totals.
// Reads are served from the committed state and never block writers.
func (s *Service) GetPortfolio(ctx context.Context, id string) (*Portfolio, error) {
	p, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	assets, err := s.assets.ListByPortfolio(id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range assets {
		assets[i].MarkStaleness(now, s.staleAfter)
	}
	p.Assets = assets
	p.Derive()

	return p, nil
}

// UpdatePortfolio updates name, description and risk profile
func (s *Service) UpdatePortfolio(ctx context.Context, p *Portfolio) (*Portfolio, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(p.ID)
	defer unlock()

	existing, err := s.repo.GetByID(p.ID)
	if err != nil {
		return nil, err
	}
	if existing.Status == StatusArchived {
		return nil, fmt.Errorf("%w: %s", domain.ErrPortfolioArchived, p.ID)
	}

	existing.Name = p.Name
	existing.Description = p.Description
	existing.RiskProfile = p.RiskProfile
	existing.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(existing); err != nil {
		return nil, s.classify(err)
	}

	s.eventsMgr.Emit(events.PortfolioUpdated, p.ID, moduleName, map[string]interface{}{
		"name": existing.Name,
	})
	s.invalidate(p.ID)

	return s.GetPortfolio(ctx, p.ID)
}

// ArchivePortfolio soft-deletes a portfolio. Archived portfolios are
// read-only and excluded from new mutations and price sync.
func (s *Service) ArchivePortfolio(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.repo.Archive(id, time.Now().UTC()); err != nil {
		return s.classify(err)
	}

	s.log.Info().Str("portfolio_id", id).Msg("Portfolio archived")
	s.eventsMgr.Emit(events.PortfolioArchived, id, moduleName, nil)
	s.invalidate(id)
	return nil
}

// ListPortfolios returns a user's portfolios with cursor pagination
func (s *Service) ListPortfolios(ctx context.Context, userID string, includeArchived bool, pageSize int, pageToken string) ([]Portfolio, string, error) {
	if userID == "" {
		return nil, "", fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}
	return s.repo.List(userID, includeArchived, pageSize, pageToken)
}

// AddAsset creates a new holding and the synthetic buy transaction that
// keeps the journal authoritative. Fails with ErrDuplicateAsset when the
// symbol is already held.
func (s *Service) AddAsset(ctx context.Context, portfolioID string, asset *Asset) (*Asset, error) {
	asset.Symbol = strings.ToUpper(strings.TrimSpace(asset.Symbol))
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(portfolioID)
	defer unlock()

	if err := s.requireActive(portfolioID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	asset.ID = uuid.NewString()
	asset.PortfolioID = portfolioID
	if asset.CurrentPrice.IsZero() {
		asset.CurrentPrice = asset.AvgBuyPrice
	}
	asset.CreatedAt = now
	asset.UpdatedAt = now

	entry := &journal.Transaction{
		ID:          uuid.NewString(),
		PortfolioID: portfolioID,
		AssetID:     asset.ID,
		Symbol:      asset.Symbol,
		Type:        journal.TypeBuy,
		Quantity:    asset.Quantity,
		Price:       asset.AvgBuyPrice,
		Fee:         decimal.Zero,
		ExecutedAt:  now,
		CreatedAt:   now,
	}

	err := database.WithTransaction(ctx, s.conn, func(tx *sql.Tx) error {
		existing, err := s.assets.GetBySymbolTx(tx, portfolioID, asset.Symbol)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s in portfolio %s", domain.ErrDuplicateAsset, asset.Symbol, portfolioID)
		}

		count, err := s.assets.CountByPortfolioTx(tx, portfolioID)
		if err != nil {
			return err
		}
		if count >= MaxAssetsPerPortfolio {
			return fmt.Errorf("%w: portfolio holds the maximum of %d assets", domain.ErrValidation, MaxAssetsPerPortfolio)
		}

		if err := s.assets.CreateTx(tx, asset); err != nil {
			return err
		}
		return s.journal.AppendTx(tx, entry)
	})
	if err != nil {
		return nil, s.classify(err)
	}

	asset.Recompute()

	s.log.Info().
		Str("portfolio_id", portfolioID).
		Str("symbol", asset.Symbol).
		Str("quantity", asset.Quantity.String()).
		Msg("Asset added")

	s.eventsMgr.Emit(events.AssetAdded, portfolioID, moduleName, map[string]interface{}{
		"asset_id": asset.ID,
		"symbol":   asset.Symbol,
	})
	s.invalidate(portfolioID)

	return asset, nil
}

// UpdateAsset adjusts a holding to a target quantity. The delta is applied
// through a reconciling transfer transaction so the journal stays the source
// of truth for every quantity change.
func (s *Service) UpdateAsset(ctx context.Context, portfolioID, assetID string, quantity decimal.Decimal) (*Asset, error) {
	if quantity.IsNegative() {
		return nil, fmt.Errorf("%w: quantity cannot be negative", domain.ErrValidation)
	}

	unlock := s.locks.Lock(portfolioID)
	defer unlock()

	if err := s.requireActive(portfolioID); err != nil {
		return nil, err
	}

	var updated *Asset
	now := time.Now().UTC()

	err := database.WithTransaction(ctx, s.conn, func(tx *sql.Tx) error {
		asset, err := s.assets.GetByIDTx(tx, assetID)
		if err != nil {
			return err
		}
		if asset.PortfolioID != portfolioID {
			return fmt.Errorf("%w: asset %s in portfolio %s", domain.ErrNotFound, assetID, portfolioID)
		}

		delta := quantity.Sub(asset.Quantity)
		if delta.IsZero() {
			updated = asset
			return nil
		}

		entryType := journal.TypeTransferIn
		if delta.IsNegative() {
			entryType = journal.TypeTransferOut
		}
		entry := &journal.Transaction{
			ID:          uuid.NewString(),
			PortfolioID: portfolioID,
			AssetID:     asset.ID,
			Symbol:      asset.Symbol,
			Type:        entryType,
			Quantity:    delta.Abs(),
			Price:       asset.CurrentPrice,
			Fee:         decimal.Zero,
			ExecutedAt:  now,
			CreatedAt:   now,
		}

		asset.Quantity = quantity
		asset.UpdatedAt = now
		if err := s.assets.UpdateTx(tx, asset); err != nil {
			return err
		}
		if err := s.journal.AppendTx(tx, entry); err != nil {
			return err
		}

		asset.Recompute()
		updated = asset
		return nil
	})
	if err != nil {
		return nil, s.classify(err)
	}

	s.eventsMgr.Emit(events.AssetUpdated, portfolioID, moduleName, map[string]interface{}{
		"asset_id": assetID,
		"quantity": quantity.String(),
	})
	s.invalidate(portfolioID)

	return updated, nil
}

// RemoveAsset removes a holding. Requires quantity == 0 unless force is set,
// in which case a reconciling liquidation sell is journaled first.
func (s *Service) RemoveAsset(ctx context.Context, portfolioID, assetID string, force bool) error {
	unlock := s.locks.Lock(portfolioID)
	defer unlock()

	if err := s.requireActive(portfolioID); err != nil {
		return err
	}

	now := time.Now().UTC()
	var symbol string

	err := database.WithTransaction(ctx, s.conn, func(tx *sql.Tx) error {
		asset, err := s.assets.GetByIDTx(tx, assetID)
		if err != nil {
			return err
		}
		if asset.PortfolioID != portfolioID {
			return fmt.Errorf("%w: asset %s in portfolio %s", domain.ErrNotFound, assetID, portfolioID)
		}
		symbol = asset.Symbol

		if !asset.Quantity.IsZero() {
			if !force {
				return fmt.Errorf("%w: asset %s still holds %s, pass force to liquidate",
					domain.ErrInsufficientHoldings, asset.Symbol, asset.Quantity)
			}

			liquidation := &journal.Transaction{
				ID:          uuid.NewString(),
				PortfolioID: portfolioID,
				AssetID:     asset.ID,
				Symbol:      asset.Symbol,
				Type:        journal.TypeSell,
				Quantity:    asset.Quantity,
				Price:       asset.CurrentPrice,
				Fee:         decimal.Zero,
				ExecutedAt:  now,
				CreatedAt:   now,
			}
			if err := s.journal.AppendTx(tx, liquidation); err != nil {
				return err
			}
		}

		return s.assets.DeleteTx(tx, assetID)
	})
	if err != nil {
		return s.classify(err)
	}

	s.log.Info().
		Str("portfolio_id", portfolioID).
		Str("asset_id", assetID).
		Bool("forced", force).
		Msg("Asset removed")

	s.eventsMgr.Emit(events.AssetRemoved, portfolioID, moduleName, map[string]interface{}{
		"asset_id": assetID,
		"symbol":   symbol,
		"forced":   force,
	})
	s.invalidate(portfolioID)

	return nil
}

// RecordTransaction applies a journal entry exactly once. Replaying an id
// that already exists returns the prior entry unchanged. The idempotency
// check, negative-quantity validation, journal append and ledger update
// commit atomically or not at all.
func (s *Service) RecordTransaction(ctx context.Context, t *journal.Transaction) (*journal.Transaction, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))

	unlock := s.locks.Lock(t.PortfolioID)
	defer unlock()

	if err := s.requireActive(t.PortfolioID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = now
	}
	t.CreatedAt = now

	var result *journal.Transaction
	var replayed bool

	err := database.WithTransaction(ctx, s.conn, func(tx *sql.Tx) error {
		prior, err := s.journal.GetByIDTx(tx, t.ID)
		if err != nil {
			return err
		}
		if prior != nil {
			result = prior
			replayed = true
			return nil
		}

		asset, err := s.resolveAssetTx(tx, t)
		if err != nil {
			return err
		}

		newQuantity := asset.Quantity.Add(t.QuantityDelta())
		if newQuantity.IsNegative() {
			return fmt.Errorf("%w: %s holds %s, transaction needs %s",
				domain.ErrInsufficientHoldings, asset.Symbol, asset.Quantity, t.Quantity)
		}

		// Buys reweight the cost basis: quantity-weighted average of the
		// existing basis and the executed price.
		if t.Type == journal.TypeBuy && newQuantity.IsPositive() {
			oldCost := asset.AvgBuyPrice.Mul(asset.Quantity)
			newCost := t.Price.Mul(t.Quantity)
			asset.AvgBuyPrice = oldCost.Add(newCost).Div(newQuantity)
		}

		asset.Quantity = newQuantity
		asset.UpdatedAt = now
		if err := s.assets.UpdateTx(tx, asset); err != nil {
			return err
		}

		t.AssetID = asset.ID
		if err := s.journal.AppendTx(tx, t); err != nil {
			return err
		}

		result = t
		return nil
	})
	if err != nil {
		return nil, s.classify(err)
	}

	if replayed {
		s.log.Debug().
			Str("transaction_id", result.ID).
			Msg("Transaction replay, returning prior result")
		return result, nil
	}

	s.log.Info().
		Str("portfolio_id", t.PortfolioID).
		Str("transaction_id", t.ID).
		Str("type", t.Type).
		Str("symbol", t.Symbol).
		Msg("Transaction recorded")

	s.eventsMgr.Emit(events.TransactionRecorded, t.PortfolioID, moduleName, map[string]interface{}{
		"transaction_id": t.ID,
		"asset_id":       t.AssetID,
		"symbol":         t.Symbol,
		"tx_type":        t.Type,
	})
	s.invalidate(t.PortfolioID)

	return result, nil
}

// GetTransactions returns journal entries for a portfolio
func (s *Service) GetTransactions(ctx context.Context, f journal.Filter) ([]journal.Transaction, string, error) {
	if _, err := s.repo.GetByID(f.PortfolioID); err != nil {
		return nil, "", err
	}
	return s.journal.List(f)
}

// resolveAssetTx finds the transaction's asset, creating the row on a first
// buy or transfer_in for a new symbol.
func (s *Service) resolveAssetTx(tx *sql.Tx, t *journal.Transaction) (*Asset, error) {
	if t.AssetID != "" {
		asset, err := s.assets.GetByIDTx(tx, t.AssetID)
		if err != nil {
			return nil, err
		}
		if asset.PortfolioID != t.PortfolioID {
			return nil, fmt.Errorf("%w: asset %s in portfolio %s", domain.ErrNotFound, t.AssetID, t.PortfolioID)
		}
		return asset, nil
	}

	if t.Symbol == "" {
		return nil, fmt.Errorf("%w: asset_id or symbol is required", domain.ErrValidation)
	}

	asset, err := s.assets.GetBySymbolTx(tx, t.PortfolioID, t.Symbol)
	if err != nil {
		return nil, err
	}
	if asset != nil {
		return asset, nil
	}

	if t.Direction() < 0 {
		return nil, fmt.Errorf("%w: %s is not held", domain.ErrInsufficientHoldings, t.Symbol)
	}

	now := time.Now().UTC()
	asset = &Asset{
		ID:           uuid.NewString(),
		PortfolioID:  t.PortfolioID,
		Symbol:       t.Symbol,
		Quantity:     decimal.Zero,
		AvgBuyPrice:  t.Price,
		CurrentPrice: t.Price,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.assets.CreateTx(tx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func (s *Service) requireActive(portfolioID string) error {
	p, err := s.repo.GetByID(portfolioID)
	if err != nil {
		return err
	}
	if p.Status == StatusArchived {
		return fmt.Errorf("%w: %s", domain.ErrPortfolioArchived, portfolioID)
	}
	return nil
}

func (s *Service) invalidate(portfolioID string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(portfolioID)
	}
}

// classify rewrites sqlite write contention as a retryable conflict.
func (s *Service) classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}
