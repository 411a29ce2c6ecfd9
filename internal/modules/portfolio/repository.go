package portfolio

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

// Repository handles portfolio row operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// Create inserts a new portfolio row
func (r *Repository) Create(p *Portfolio) error {
	query := `
		INSERT INTO portfolios (id, user_id, name, description, risk_profile, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		p.ID, p.UserID, p.Name, p.Description, p.RiskProfile, p.Status,
		fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to create portfolio: %v", domain.ErrRepository, err)
	}
	return nil
}

// GetByID returns a portfolio without its assets
func (r *Repository) GetByID(id string) (*Portfolio, error) {
	query := `
		SELECT id, user_id, name, description, risk_profile, status, created_at, updated_at
		FROM portfolios WHERE id = ?
	`
	p, err := scanPortfolio(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: portfolio %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get portfolio: %v", domain.ErrRepository, err)
	}
	return p, nil
}

// Update writes mutable portfolio fields
func (r *Repository) Update(p *Portfolio) error {
	query := `
		UPDATE portfolios SET name = ?, description = ?, risk_profile = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.Exec(query, p.Name, p.Description, p.RiskProfile, fmtTime(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to update portfolio: %v", domain.ErrRepository, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: portfolio %s", domain.ErrNotFound, p.ID)
	}
	return nil
}

// Archive soft-deletes a portfolio. The row is never physically removed
// while journal entries reference it.
func (r *Repository) Archive(id string, at time.Time) error {
	query := `UPDATE portfolios SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := r.db.Exec(query, StatusArchived, fmtTime(at), id, StatusActive)
	if err != nil {
		return fmt.Errorf("%w: failed to archive portfolio: %v", domain.ErrRepository, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: active portfolio %s", domain.ErrNotFound, id)
	}
	return nil
}

// List returns a user's portfolios, newest first, with cursor pagination.
// Archived portfolios are excluded unless includeArchived is set.
func (r *Repository) List(userID string, includeArchived bool, pageSize int, pageToken string) ([]Portfolio, string, error) {
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	query := `
		SELECT id, user_id, name, description, risk_profile, status, created_at, updated_at
		FROM portfolios WHERE user_id = ?
	`
	args := []interface{}{userID}

	if !includeArchived {
		query += ` AND status = ?`
		args = append(args, StatusActive)
	}

	if pageToken != "" {
		ts, id, err := database.DecodeCursor(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		cursorTS := ts.UTC().Format(database.TimeFormat)
		args = append(args, cursorTS, cursorTS, id)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to list portfolios: %v", domain.ErrRepository, err)
	}
	defer rows.Close()

	var portfolios []Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, "", fmt.Errorf("%w: failed to scan portfolio: %v", domain.ErrRepository, err)
		}
		portfolios = append(portfolios, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: error iterating portfolios: %v", domain.ErrRepository, err)
	}

	var nextToken string
	if len(portfolios) > pageSize {
		portfolios = portfolios[:pageSize]
		last := portfolios[len(portfolios)-1]
		nextToken = database.EncodeCursor(last.CreatedAt, last.ID)
	}

	return portfolios, nextToken, nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPortfolio(s scanner) (*Portfolio, error) {
	var p Portfolio
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.RiskProfile, &p.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	p.TotalValue = decimal.Zero
	p.ProfitLoss = decimal.Zero
	return &p, nil
}

// Persistence boundary helpers shared by the module's repositories.

func fmtTime(t time.Time) string {
	return t.UTC().Format(database.TimeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// decToDB rounds half-even to 8 decimal places at the persistence boundary.
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
