// Package journal is the append-only, idempotent record of every
// value-changing event. The asset ledger's quantities are always the net
// effect of replaying this journal.
package journal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookman/portfolio-service/internal/domain"
)

// Transaction types
const (
	TypeBuy         = "buy"
	TypeSell        = "sell"
	TypeTransferIn  = "transfer_in"
	TypeTransferOut = "transfer_out"
	TypeStake       = "stake"
	TypeUnstake     = "unstake"
	TypeReward      = "reward"
	TypeFee         = "fee"
)

// quantity effect per type: +1 increases the holding, -1 decreases it
var typeDirection = map[string]int{
	TypeBuy:         +1,
	TypeTransferIn:  +1,
	TypeReward:      +1,
	TypeUnstake:     +1,
	TypeSell:        -1,
	TypeTransferOut: -1,
	TypeStake:       -1,
	TypeFee:         -1,
}

// Transaction is an immutable journal entry. ID doubles as the idempotency
// key: replaying an id that already exists returns the prior entry unchanged.
type Transaction struct {
	ID          string          `json:"id"`
	PortfolioID string          `json:"portfolio_id"`
	AssetID     string          `json:"asset_id"`
	Symbol      string          `json:"symbol"`
	Type        string          `json:"type"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Fee         decimal.Decimal `json:"fee"`
	ExternalRef string          `json:"external_ref,omitempty"`
	ExecutedAt  time.Time       `json:"executed_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Direction returns +1 for types that increase the holding, -1 for types
// that decrease it.
func (t *Transaction) Direction() int {
	return typeDirection[t.Type]
}

// QuantityDelta returns the signed quantity effect on the asset.
func (t *Transaction) QuantityDelta() decimal.Decimal {
	if t.Direction() < 0 {
		return t.Quantity.Neg()
	}
	return t.Quantity
}

// Validate checks transaction fields before any state change commits.
func (t *Transaction) Validate() error {
	if t.PortfolioID == "" {
		return fmt.Errorf("%w: portfolio_id is required", domain.ErrValidation)
	}
	if _, ok := typeDirection[t.Type]; !ok {
		return fmt.Errorf("%w: unsupported transaction type %q", domain.ErrValidation, t.Type)
	}
	if !t.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	if t.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", domain.ErrValidation)
	}
	if t.Fee.IsNegative() {
		return fmt.Errorf("%w: fee cannot be negative", domain.ErrValidation)
	}
	return nil
}

// Filter narrows GetTransactions queries
type Filter struct {
	PortfolioID string
	AssetID     string
	Type        string
	StartDate   *time.Time
	EndDate     *time.Time
	PageSize    int
	PageToken   string
}
