// Package pricing applies external price ticks to held assets and keeps the
// historical price record the analytics engine replays against.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one external price observation for a symbol
type Tick struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// PricePoint is one stored price observation
type PricePoint struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	RecordedAt time.Time       `json:"recorded_at"`
}
