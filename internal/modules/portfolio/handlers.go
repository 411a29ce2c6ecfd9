package portfolio

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bookman/portfolio-service/internal/domain"
	"github.com/bookman/portfolio-service/internal/modules/journal"
)

// Handler handles portfolio, asset and transaction HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// Routes mounts the portfolio routes on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.HandleCreatePortfolio)
	r.Get("/", h.HandleListPortfolios)

	r.Route("/{portfolioID}", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)
		r.Put("/", h.HandleUpdatePortfolio)
		r.Delete("/", h.HandleDeletePortfolio)

		r.Post("/assets", h.HandleAddAsset)
		r.Put("/assets/{assetID}", h.HandleUpdateAsset)
		r.Delete("/assets/{assetID}", h.HandleRemoveAsset)

		r.Post("/transactions", h.HandleRecordTransaction)
		r.Get("/transactions", h.HandleGetTransactions)
	})
}

type createPortfolioRequest struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	RiskProfile string `json:"risk_profile"`
}

// HandleCreatePortfolio handles POST /api/portfolios
func (h *Handler) HandleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req createPortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.service.CreatePortfolio(r.Context(), &Portfolio{
		UserID:      req.UserID,
		Name:        req.Name,
		Description: req.Description,
		RiskProfile: req.RiskProfile,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, p)
}

// HandleGetPortfolio handles GET /api/portfolios/{portfolioID}
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPortfolio(r.Context(), chi.URLParam(r, "portfolioID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleUpdatePortfolio handles PUT /api/portfolios/{portfolioID}
func (h *Handler) HandleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req createPortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.service.UpdatePortfolio(r.Context(), &Portfolio{
		ID:          chi.URLParam(r, "portfolioID"),
		UserID:      req.UserID,
		Name:        req.Name,
		Description: req.Description,
		RiskProfile: req.RiskProfile,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, p)
}

// HandleDeletePortfolio handles DELETE /api/portfolios/{portfolioID} (archive)
func (h *Handler) HandleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ArchivePortfolio(r.Context(), chi.URLParam(r, "portfolioID")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": StatusArchived})
}

// HandleListPortfolios handles GET /api/portfolios?user_id=
func (h *Handler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeArchived, _ := strconv.ParseBool(q.Get("include_archived"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	portfolios, nextToken, err := h.service.ListPortfolios(
		r.Context(), q.Get("user_id"), includeArchived, pageSize, q.Get("page_token"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolios":      portfolios,
		"next_page_token": nextToken,
	})
}

type addAssetRequest struct {
	Symbol      string          `json:"symbol"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgBuyPrice decimal.Decimal `json:"avg_buy_price"`
}

// HandleAddAsset handles POST /api/portfolios/{portfolioID}/assets
func (h *Handler) HandleAddAsset(w http.ResponseWriter, r *http.Request) {
	var req addAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	asset, err := h.service.AddAsset(r.Context(), chi.URLParam(r, "portfolioID"), &Asset{
		Symbol:      req.Symbol,
		Quantity:    req.Quantity,
		AvgBuyPrice: req.AvgBuyPrice,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, asset)
}

type updateAssetRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

// HandleUpdateAsset handles PUT /api/portfolios/{portfolioID}/assets/{assetID}
func (h *Handler) HandleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	var req updateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	asset, err := h.service.UpdateAsset(r.Context(),
		chi.URLParam(r, "portfolioID"), chi.URLParam(r, "assetID"), req.Quantity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, asset)
}

// HandleRemoveAsset handles DELETE /api/portfolios/{portfolioID}/assets/{assetID}?force=
func (h *Handler) HandleRemoveAsset(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	err := h.service.RemoveAsset(r.Context(),
		chi.URLParam(r, "portfolioID"), chi.URLParam(r, "assetID"), force)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type recordTransactionRequest struct {
	ID          string          `json:"id"`
	AssetID     string          `json:"asset_id"`
	Symbol      string          `json:"symbol"`
	Type        string          `json:"type"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Fee         decimal.Decimal `json:"fee"`
	ExternalRef string          `json:"external_ref"`
	ExecutedAt  *time.Time      `json:"executed_at"`
}

// HandleRecordTransaction handles POST /api/portfolios/{portfolioID}/transactions
func (h *Handler) HandleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t := &journal.Transaction{
		ID:          req.ID,
		PortfolioID: chi.URLParam(r, "portfolioID"),
		AssetID:     req.AssetID,
		Symbol:      req.Symbol,
		Type:        req.Type,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Fee:         req.Fee,
		ExternalRef: req.ExternalRef,
	}
	if req.ExecutedAt != nil {
		t.ExecutedAt = req.ExecutedAt.UTC()
	}

	recorded, err := h.service.RecordTransaction(r.Context(), t)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, recorded)
}

// HandleGetTransactions handles GET /api/portfolios/{portfolioID}/transactions
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := journal.Filter{
		PortfolioID: chi.URLParam(r, "portfolioID"),
		AssetID:     q.Get("asset_id"),
		Type:        q.Get("type"),
		PageToken:   q.Get("page_token"),
	}
	f.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	if v := q.Get("start_date"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid start_date")
			return
		}
		f.StartDate = &ts
	}
	if v := q.Get("end_date"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid end_date")
			return
		}
		f.EndDate = &ts
	}

	txs, nextToken, err := h.service.GetTransactions(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions":    txs,
		"next_page_token": nextToken,
	})
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

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := domain.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
		h.writeError(w, status, "internal server error")
		return
	}
	h.writeError(w, status, err.Error())
}
