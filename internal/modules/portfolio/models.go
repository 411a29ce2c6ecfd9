// Package portfolio owns the authoritative state of user holdings: the
// portfolio records, the asset ledger, and the orchestrating service that
// ties ledger mutations to the transaction journal and the event bus.
package portfolio

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookman/portfolio-service/internal/domain"
)

// Portfolio lifecycle states. Archived portfolios are read-only.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// SupportedRiskProfiles defines the valid risk classifications
var SupportedRiskProfiles = []string{
	"conservative",
	"moderate",
	"aggressive",
}

// MaxAssetsPerPortfolio caps distinct holdings per portfolio
const MaxAssetsPerPortfolio = 1000

// MinQuantity is the smallest allowed asset or transaction quantity
var MinQuantity = decimal.New(1, -9) // 1e-9

// Portfolio represents a user's portfolio. TotalValue and ProfitLoss are
// derived from the assets on every read, never stored independently.
type Portfolio struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	RiskProfile string          `json:"risk_profile"`
	Status      string          `json:"status"`
	TotalValue  decimal.Decimal `json:"total_value"`
	ProfitLoss  decimal.Decimal `json:"profit_loss"`
	Assets      []Asset         `json:"assets,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Asset represents a single symbol's current holding within a portfolio.
// TotalValue and ProfitLoss are derived; Stale is computed from the age of
// the last applied price tick.
type Asset struct {
	ID             string          `json:"id"`
	PortfolioID    string          `json:"portfolio_id"`
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	AvgBuyPrice    decimal.Decimal `json:"avg_buy_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	TotalValue     decimal.Decimal `json:"total_value"`
	ProfitLoss     decimal.Decimal `json:"profit_loss"`
	Stale          bool            `json:"stale"`
	PriceUpdatedAt time.Time       `json:"price_updated_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Recompute refreshes the derived fields:
//
//	total_value = quantity x current_price
//	profit_loss = (current_price - avg_buy_price) x quantity
func (a *Asset) Recompute() {
	a.TotalValue = a.Quantity.Mul(a.CurrentPrice)
	a.ProfitLoss = a.CurrentPrice.Sub(a.AvgBuyPrice).Mul(a.Quantity)
}

// MarkStaleness sets the Stale flag when the last price tick is older than
// threshold. Assets that never received a tick are not flagged; their
// valuation derives from the cost basis.
func (a *Asset) MarkStaleness(now time.Time, threshold time.Duration) {
	a.Stale = !a.PriceUpdatedAt.IsZero() && now.Sub(a.PriceUpdatedAt) > threshold
}

// Derive recomputes portfolio totals from the attached assets.
func (p *Portfolio) Derive() {
	total := decimal.Zero
	pnl := decimal.Zero
	for i := range p.Assets {
		p.Assets[i].Recompute()
		total = total.Add(p.Assets[i].TotalValue)
		pnl = pnl.Add(p.Assets[i].ProfitLoss)
	}
	p.TotalValue = total
	p.ProfitLoss = pnl
}

// Validate checks portfolio fields before any state change commits.
func (p *Portfolio) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if p.RiskProfile != "" && !validRiskProfile(p.RiskProfile) {
		return fmt.Errorf("%w: unsupported risk profile %q", domain.ErrValidation, p.RiskProfile)
	}
	return nil
}

// Validate checks asset fields before any state change commits.
func (a *Asset) Validate() error {
	if a.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", domain.ErrValidation)
	}
	if a.Quantity.LessThan(MinQuantity) {
		return fmt.Errorf("%w: quantity must be at least %s", domain.ErrValidation, MinQuantity)
	}
	if a.AvgBuyPrice.IsNegative() {
		return fmt.Errorf("%w: avg_buy_price cannot be negative", domain.ErrValidation)
	}
	return nil
}

func validRiskProfile(profile string) bool {
	for _, p := range SupportedRiskProfiles {
		if profile == p {
			return true
		}
	}
	return false
}
