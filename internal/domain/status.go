package domain

import (
	"errors"
	"net/http"
)

// HTTPStatus maps the error taxonomy onto transport status codes:
// not-found -> 404, validation and holdings violations -> 400 (the
// INVALID_ARGUMENT class), retryable contention -> 409, rest -> 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInsufficientHoldings),
		errors.Is(err, ErrDuplicateAsset),
		errors.Is(err, ErrPortfolioArchived):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
