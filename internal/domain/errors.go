// Package domain holds the error taxonomy shared by every module.
package domain

import "errors"

// Sentinel errors. Business errors are detected before any state change
// commits; repository failures are wrapped so callers can tell "not found"
// apart from infrastructure trouble with errors.Is.
var (
	// ErrValidation marks malformed or missing required fields.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown portfolio, asset or transaction id.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateAsset marks an AddAsset for a symbol the portfolio already holds.
	ErrDuplicateAsset = errors.New("asset already exists")

	// ErrInsufficientHoldings marks an operation that would drive a quantity negative.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrConflict marks lock or version contention; the caller should retry.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrRepository wraps underlying storage failures.
	ErrRepository = errors.New("repository operation failed")

	// ErrPortfolioArchived marks a mutation against a soft-deleted portfolio.
	ErrPortfolioArchived = errors.New("portfolio is archived")
)
