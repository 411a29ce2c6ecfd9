package pricing

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/bookman/portfolio-service/pkg/formulas"
)

// Handler handles price history HTTP requests
type Handler struct {
	prices *Repository
	log    zerolog.Logger
}

// NewHandler creates a new pricing handler
func NewHandler(prices *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		prices: prices,
		log:    log.With().Str("handler", "pricing").Logger(),
	}
}

// Routes mounts the pricing routes on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Get("/{symbol}/history", h.HandleGetHistory)
}

// HandleGetHistory returns a symbol's stored price series with optional
// SMA/RSI indicator series: GET /api/prices/{symbol}/history?days=&sma=&rsi=
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	q := r.URL.Query()

	days, _ := strconv.Atoi(q.Get("days"))
	if days < 1 || days > 3650 {
		days = 90
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	points, err := h.prices.History(symbol, since)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load price history")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := map[string]interface{}{
		"symbol":  symbol,
		"days":    days,
		"history": points,
	}

	if len(points) > 0 {
		closes := make([]float64, len(points))
		for i, p := range points {
			closes[i], _ = p.Price.Float64()
		}

		if smaLen, _ := strconv.Atoi(q.Get("sma")); smaLen > 0 {
			if series := formulas.SMA(closes, smaLen); series != nil {
				resp["sma"] = series
			}
		}
		if rsiLen, _ := strconv.Atoi(q.Get("rsi")); rsiLen > 0 {
			if series := formulas.RSI(closes, rsiLen); series != nil {
				resp["rsi"] = series
			}
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
