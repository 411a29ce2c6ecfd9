// Package events provides the event bus that fans out committed portfolio
// mutations and price updates to streaming subscribers.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	PortfolioCreated    EventType = "PORTFOLIO_CREATED"
	PortfolioUpdated    EventType = "PORTFOLIO_UPDATED"
	PortfolioArchived   EventType = "PORTFOLIO_ARCHIVED"
	AssetAdded          EventType = "ASSET_ADDED"
	AssetUpdated        EventType = "ASSET_UPDATED"
	AssetRemoved        EventType = "ASSET_REMOVED"
	TransactionRecorded EventType = "TRANSACTION_RECORDED"
	PriceUpdated        EventType = "PRICE_UPDATED"

	// ResyncRequired is synthesized by the stream writer after a subscriber's
	// buffer overflowed; the client should refetch portfolio state.
	ResyncRequired EventType = "RESYNC_REQUIRED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event represents a committed change scoped to one portfolio
type Event struct {
	Type        EventType              `json:"type"`
	PortfolioID string                 `json:"portfolio_id"`
	Timestamp   time.Time              `json:"timestamp"`
	Module      string                 `json:"module"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// PortfolioUpdateTypes lists the event types carried by the per-portfolio stream.
var PortfolioUpdateTypes = []EventType{
	PortfolioCreated,
	PortfolioUpdated,
	PortfolioArchived,
	AssetAdded,
	AssetUpdated,
	AssetRemoved,
	TransactionRecorded,
	PriceUpdated,
}

// AssetPriceTypes lists the event types carried by the global price stream.
var AssetPriceTypes = []EventType{
	PriceUpdated,
}
