package pricing

import "database/sql"

const Schema = `
CREATE TABLE IF NOT EXISTS price_history (
    id INTEGER PRIMARY KEY,
    symbol TEXT NOT NULL,
    price TEXT NOT NULL,
    recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_history_symbol_time ON price_history(symbol, recorded_at DESC);
`

// InitSchema ensures the price_history table exists
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
