package pricing

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bookman/portfolio-service/internal/database"
	"github.com/bookman/portfolio-service/internal/domain"
)

// Repository handles price history rows
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new price history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "pricing").Logger(),
	}
}

// Record appends one price observation
func (r *Repository) Record(symbol string, price decimal.Decimal, at time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO price_history (symbol, price, recorded_at) VALUES (?, ?, ?)`,
		symbol, price.RoundBank(8).String(), fmtTime(at),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to record price: %v", domain.ErrRepository, err)
	}
	return nil
}

// History returns a symbol's observations since a cutoff, oldest first
func (r *Repository) History(symbol string, since time.Time) ([]PricePoint, error) {
	rows, err := r.db.Query(
		`SELECT symbol, price, recorded_at FROM price_history
		 WHERE symbol = ? AND recorded_at >= ? ORDER BY recorded_at ASC`,
		symbol, fmtTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query price history: %v", domain.ErrRepository, err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan price point: %v", domain.ErrRepository, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating price history: %v", domain.ErrRepository, err)
	}
	return points, nil
}

// LatestAt returns the last observation at or before a cutoff, or nil when
// the symbol has no observation yet.
func (r *Repository) LatestAt(symbol string, at time.Time) (*PricePoint, error) {
	row := r.db.QueryRow(
		`SELECT symbol, price, recorded_at FROM price_history
		 WHERE symbol = ? AND recorded_at <= ? ORDER BY recorded_at DESC LIMIT 1`,
		symbol, fmtTime(at),
	)

	var p PricePoint
	var price, recordedAt string
	err := row.Scan(&p.Symbol, &price, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get latest price: %v", domain.ErrRepository, err)
	}

	p.Price, _ = decimal.NewFromString(price)
	p.RecordedAt = parseTime(recordedAt)
	return &p, nil
}

func scanPoint(rows *sql.Rows) (PricePoint, error) {
	var p PricePoint
	var price, recordedAt string
	if err := rows.Scan(&p.Symbol, &price, &recordedAt); err != nil {
		return PricePoint{}, err
	}
	p.Price, _ = decimal.NewFromString(price)
	p.RecordedAt = parseTime(recordedAt)
	return p, nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(database.TimeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
