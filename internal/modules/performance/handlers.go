package performance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/bookman/portfolio-service/internal/domain"
)

// Handler serves the performance metrics endpoint
type Handler struct {
	service *Service
	log     zerolog.Logger
}

func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "performance").Logger(),
	}
}

// HandleGetMetrics handles GET /api/portfolios/{portfolioID}/performance.
// Accepts either ?period=7d|30d|90d|1y|all (default 30d) or an explicit
// ?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD pair.
func (h *Handler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	q := r.URL.Query()
	start, err := parseDate(q.Get("start_date"), false)
	if err != nil {
		h.writeError(w, err)
		return
	}
	end, err := parseDate(q.Get("end_date"), true)
	if err != nil {
		h.writeError(w, err)
		return
	}

	window, err := ResolveWindow(q.Get("period"), start, end, time.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}

	metrics, err := h.service.GetMetrics(r.Context(), portfolioID, window)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, metrics)
}

// parseDate parses a YYYY-MM-DD query value. End dates cover the whole day.
func parseDate(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", domain.ErrValidation, value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := domain.HTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
		message = "internal server error"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
