package portfolio

import "database/sql"

// Monetary columns are stored as TEXT (decimal strings, rounded half-even to
// 8 decimal places at the persistence boundary) to avoid float drift in the
// ledger invariants. Timestamps are RFC3339 UTC.
const Schema = `
CREATE TABLE IF NOT EXISTS portfolios (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    risk_profile TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_portfolios_user ON portfolios(user_id, status);

CREATE TABLE IF NOT EXISTS assets (
    id TEXT PRIMARY KEY,
    portfolio_id TEXT NOT NULL REFERENCES portfolios(id),
    symbol TEXT NOT NULL,
    quantity TEXT NOT NULL,
    avg_buy_price TEXT NOT NULL,
    current_price TEXT NOT NULL,
    price_updated_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE(portfolio_id, symbol)
);

CREATE INDEX IF NOT EXISTS idx_assets_portfolio ON assets(portfolio_id);
CREATE INDEX IF NOT EXISTS idx_assets_symbol ON assets(symbol);
`

// InitSchema ensures the portfolio and asset tables exist
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
