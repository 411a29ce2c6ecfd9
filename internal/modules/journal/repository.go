package journal

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

// Repository handles journal rows. Appends are transaction-scoped so they
// commit atomically with the asset ledger write they describe.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new journal repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "journal").Logger(),
	}
}

const txColumns = `id, portfolio_id, asset_id, symbol, type, quantity, price, fee, external_ref, executed_at, created_at`

// AppendTx inserts an immutable journal entry within a transaction
func (r *Repository) AppendTx(tx *sql.Tx, t *Transaction) error {
	query := `
		INSERT INTO transactions (` + txColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query,
		t.ID, t.PortfolioID, t.AssetID, t.Symbol, t.Type,
		decToDB(t.Quantity), decToDB(t.Price), decToDB(t.Fee),
		t.ExternalRef, fmtTime(t.ExecutedAt), fmtTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to append transaction: %v", domain.ErrRepository, err)
	}
	return nil
}

// GetByIDTx returns a journal entry by idempotency key within a transaction,
// or nil when the key has never been applied.
func (r *Repository) GetByIDTx(tx *sql.Tx, id string) (*Transaction, error) {
	row := tx.QueryRow(`SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get transaction: %v", domain.ErrRepository, err)
	}
	return t, nil
}

// GetByID returns a journal entry by id
func (r *Repository) GetByID(id string) (*Transaction, error) {
	row := r.db.QueryRow(`SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get transaction: %v", domain.ErrRepository, err)
	}
	return t, nil
}

// List returns journal entries in reverse-chronological order with cursor
// pagination. Never mutates state.
func (r *Repository) List(f Filter) ([]Transaction, string, error) {
	pageSize := f.PageSize
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	query := `SELECT ` + txColumns + ` FROM transactions WHERE portfolio_id = ?`
	args := []interface{}{f.PortfolioID}

	if f.AssetID != "" {
		query += ` AND asset_id = ?`
		args = append(args, f.AssetID)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.StartDate != nil {
		query += ` AND executed_at >= ?`
		args = append(args, fmtTime(*f.StartDate))
	}
	if f.EndDate != nil {
		query += ` AND executed_at <= ?`
		args = append(args, fmtTime(*f.EndDate))
	}
	if f.PageToken != "" {
		ts, id, err := database.DecodeCursor(f.PageToken)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		query += ` AND (executed_at < ? OR (executed_at = ? AND id < ?))`
		cursorTS := fmtTime(ts)
		args = append(args, cursorTS, cursorTS, id)
	}

	query += ` ORDER BY executed_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to list transactions: %v", domain.ErrRepository, err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, "", fmt.Errorf("%w: failed to scan transaction: %v", domain.ErrRepository, err)
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: error iterating transactions: %v", domain.ErrRepository, err)
	}

	var nextToken string
	if len(txs) > pageSize {
		txs = txs[:pageSize]
		last := txs[len(txs)-1]
		nextToken = database.EncodeCursor(last.ExecutedAt, last.ID)
	}

	return txs, nextToken, nil
}

// ListForReplay returns a portfolio's entries up to a cutoff in ascending
// timestamp order, the order the performance engine replays them in.
func (r *Repository) ListForReplay(portfolioID string, until time.Time) ([]Transaction, error) {
	query := `
		SELECT ` + txColumns + ` FROM transactions
		WHERE portfolio_id = ? AND executed_at <= ?
		ORDER BY executed_at ASC, created_at ASC
	`
	rows, err := r.db.Query(query, portfolioID, fmtTime(until))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load journal for replay: %v", domain.ErrRepository, err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan transaction: %v", domain.ErrRepository, err)
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating transactions: %v", domain.ErrRepository, err)
	}
	return txs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (*Transaction, error) {
	var t Transaction
	var quantity, price, fee string
	var executedAt, createdAt string

	err := s.Scan(&t.ID, &t.PortfolioID, &t.AssetID, &t.Symbol, &t.Type,
		&quantity, &price, &fee, &t.ExternalRef, &executedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	t.Quantity = decFromDB(quantity)
	t.Price = decFromDB(price)
	t.Fee = decFromDB(fee)
	t.ExecutedAt = parseTime(executedAt)
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(database.TimeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func decToDB(d decimal.Decimal) string {
	return d.RoundBank(8).String()
}

func decFromDB(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
