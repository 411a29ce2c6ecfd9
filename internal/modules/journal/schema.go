package journal

import "database/sql"

// The journal is append-only: rows are never updated or deleted. The primary
// key is the idempotency key.
const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    portfolio_id TEXT NOT NULL REFERENCES portfolios(id),
    asset_id TEXT NOT NULL,
    symbol TEXT NOT NULL,
    type TEXT NOT NULL,
    quantity TEXT NOT NULL,
    price TEXT NOT NULL,
    fee TEXT NOT NULL DEFAULT '0',
    external_ref TEXT NOT NULL DEFAULT '',
    executed_at TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_portfolio_time ON transactions(portfolio_id, executed_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_asset ON transactions(asset_id);
`

// InitSchema ensures the transactions table exists
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
