package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bookman/portfolio-service/internal/domain"
)

// AssetRepository handles asset ledger rows. Mutations are transaction-scoped
// so the service can commit ledger writes and journal appends atomically.
type AssetRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *sql.DB, log zerolog.Logger) *AssetRepository {
	return &AssetRepository{
		db:  db,
		log: log.With().Str("repo", "asset").Logger(),
	}
}

const assetColumns = `id, portfolio_id, symbol, quantity, avg_buy_price, current_price, price_updated_at, created_at, updated_at`

// GetByIDTx returns an asset by id within a transaction
func (r *AssetRepository) GetByIDTx(tx *sql.Tx, id string) (*Asset, error) {
	row := tx.QueryRow(`SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: asset %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get asset: %v", domain.ErrRepository, err)
	}
	return a, nil
}

// GetBySymbolTx returns the portfolio's live asset for a symbol, or nil when
// the symbol is not held.
func (r *AssetRepository) GetBySymbolTx(tx *sql.Tx, portfolioID, symbol string) (*Asset, error) {
	row := tx.QueryRow(`SELECT `+assetColumns+` FROM assets WHERE portfolio_id = ? AND symbol = ?`, portfolioID, symbol)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get asset by symbol: %v", domain.ErrRepository, err)
	}
	return a, nil
}

// ListByPortfolio returns all assets held by a portfolio
func (r *AssetRepository) ListByPortfolio(portfolioID string) ([]Asset, error) {
	rows, err := r.db.Query(`SELECT `+assetColumns+` FROM assets WHERE portfolio_id = ? ORDER BY symbol`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list assets: %v", domain.ErrRepository, err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan asset: %v", domain.ErrRepository, err)
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating assets: %v", domain.ErrRepository, err)
	}
	return assets, nil
}

// CountByPortfolioTx returns the number of assets a portfolio holds
func (r *AssetRepository) CountByPortfolioTx(tx *sql.Tx, portfolioID string) (int, error) {
	var count int
	err := tx.QueryRow(`SELECT COUNT(*) FROM assets WHERE portfolio_id = ?`, portfolioID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count assets: %v", domain.ErrRepository, err)
	}
	return count, nil
}

// CreateTx inserts a new asset row within a transaction
func (r *AssetRepository) CreateTx(tx *sql.Tx, a *Asset) error {
	query := `
		INSERT INTO assets (id, portfolio_id, symbol, quantity, avg_buy_price, current_price, price_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query,
		a.ID, a.PortfolioID, a.Symbol,
		decToDB(a.Quantity), decToDB(a.AvgBuyPrice), decToDB(a.CurrentPrice),
		nullableTime(a.PriceUpdatedAt), fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to create asset: %v", domain.ErrRepository, err)
	}
	return nil
}

// UpdateTx writes an asset's quantity, cost basis and price within a transaction
func (r *AssetRepository) UpdateTx(tx *sql.Tx, a *Asset) error {
	query := `
		UPDATE assets SET quantity = ?, avg_buy_price = ?, current_price = ?, price_updated_at = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := tx.Exec(query,
		decToDB(a.Quantity), decToDB(a.AvgBuyPrice), decToDB(a.CurrentPrice),
		nullableTime(a.PriceUpdatedAt), fmtTime(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update asset: %v", domain.ErrRepository, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: asset %s", domain.ErrNotFound, a.ID)
	}
	return nil
}

// DeleteTx removes an asset row within a transaction. Callers only delete
// assets whose quantity reached exactly zero.
func (r *AssetRepository) DeleteTx(tx *sql.Tx, id string) error {
	res, err := tx.Exec(`DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete asset: %v", domain.ErrRepository, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: asset %s", domain.ErrNotFound, id)
	}
	return nil
}

// UpdatePriceTx applies a price tick to one portfolio's holding of a symbol.
// The derived totals recompute on read, so a committed price write is never
// observable alongside a stale total.
func (r *AssetRepository) UpdatePriceTx(tx *sql.Tx, portfolioID, symbol string, price decimal.Decimal, at time.Time) error {
	query := `
		UPDATE assets SET current_price = ?, price_updated_at = ?, updated_at = ?
		WHERE portfolio_id = ? AND symbol = ?
	`
	_, err := tx.Exec(query, decToDB(price), fmtTime(at), fmtTime(at), portfolioID, symbol)
	if err != nil {
		return fmt.Errorf("%w: failed to update price: %v", domain.ErrRepository, err)
	}
	return nil
}

// HolderPortfolios returns the ids of active portfolios holding a symbol.
// Indexed on assets(symbol): the price synchronizer touches O(holders of S),
// not O(all assets).
func (r *AssetRepository) HolderPortfolios(symbol string) ([]string, error) {
	query := `
		SELECT DISTINCT a.portfolio_id
		FROM assets a
		JOIN portfolios p ON p.id = a.portfolio_id
		WHERE a.symbol = ? AND p.status = ?
	`
	rows, err := r.db.Query(query, symbol, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find holders: %v", domain.ErrRepository, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: failed to scan holder: %v", domain.ErrRepository, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating holders: %v", domain.ErrRepository, err)
	}
	return ids, nil
}

// HeldSymbols returns the distinct symbols held across active portfolios,
// the working set for the price sync job.
func (r *AssetRepository) HeldSymbols() ([]string, error) {
	query := `
		SELECT DISTINCT a.symbol
		FROM assets a
		JOIN portfolios p ON p.id = a.portfolio_id
		WHERE p.status = ?
		ORDER BY a.symbol
	`
	rows, err := r.db.Query(query, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list held symbols: %v", domain.ErrRepository, err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%w: failed to scan symbol: %v", domain.ErrRepository, err)
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating symbols: %v", domain.ErrRepository, err)
	}
	return symbols, nil
}

func scanAsset(s scanner) (*Asset, error) {
	var a Asset
	var quantity, avgBuyPrice, currentPrice string
	var priceUpdatedAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&a.ID, &a.PortfolioID, &a.Symbol, &quantity, &avgBuyPrice, &currentPrice,
		&priceUpdatedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.Quantity = decFromDB(quantity)
	a.AvgBuyPrice = decFromDB(avgBuyPrice)
	a.CurrentPrice = decFromDB(currentPrice)
	if priceUpdatedAt.Valid {
		a.PriceUpdatedAt = parseTime(priceUpdatedAt.String)
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	a.Recompute()
	return &a, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return fmtTime(t)
}
