package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/bookman/portfolio-service/internal/domain"
	"github.com/bookman/portfolio-service/internal/events"
	"github.com/bookman/portfolio-service/internal/modules/portfolio"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

// StreamHandler upgrades stream endpoints to websockets and pumps bus
// events to the client. One subscription per connection; slow clients get
// a RESYNC_REQUIRED signal instead of blocking publishers.
type StreamHandler struct {
	bus        *events.Bus
	portfolios *portfolio.Service
	log        zerolog.Logger
}

func NewStreamHandler(bus *events.Bus, portfolios *portfolio.Service, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		bus:        bus,
		portfolios: portfolios,
		log:        log.With().Str("component", "stream").Logger(),
	}
}

// HandlePortfolioStream handles GET /api/portfolios/{portfolioID}/stream.
// Streams every committed change to the portfolio, including price-driven
// valuation updates.
func (h *StreamHandler) HandlePortfolioStream(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	if _, err := h.portfolios.GetPortfolio(r.Context(), portfolioID); err != nil {
		http.Error(w, err.Error(), domain.HTTPStatus(err))
		return
	}

	h.serve(w, r, portfolioID, events.PortfolioUpdateTypes)
}

// HandlePortfolioPriceStream handles GET /api/portfolios/{portfolioID}/prices/stream.
// Streams price updates for the symbols the portfolio holds.
func (h *StreamHandler) HandlePortfolioPriceStream(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "portfolioID")

	if _, err := h.portfolios.GetPortfolio(r.Context(), portfolioID); err != nil {
		http.Error(w, err.Error(), domain.HTTPStatus(err))
		return
	}

	h.serve(w, r, portfolioID, events.AssetPriceTypes)
}

// HandlePriceStream handles GET /api/prices/stream. Streams price updates
// across all portfolios.
func (h *StreamHandler) HandlePriceStream(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, events.AllPortfolios, events.AssetPriceTypes)
}

func (h *StreamHandler) serve(w http.ResponseWriter, r *http.Request, portfolioID string, types []events.EventType) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	sub := h.bus.Subscribe(portfolioID, types...)
	defer sub.Close()

	h.log.Info().Str("portfolio_id", portfolioID).Msg("Stream client connected")
	defer h.log.Info().Str("portfolio_id", portfolioID).Msg("Stream client disconnected")

	ctx := r.Context()
	pings := time.NewTicker(streamPingInterval)
	defer pings.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case <-pings.C:
			if err := h.ping(ctx, conn); err != nil {
				return
			}

		case ev, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "subscription closed")
				return
			}
			if sub.ConsumeStale() {
				resync := events.Event{
					Type:        events.ResyncRequired,
					PortfolioID: ev.PortfolioID,
					Timestamp:   time.Now().UTC(),
					Module:      "stream",
				}
				if err := h.write(ctx, conn, resync); err != nil {
					return
				}
			}
			if err := h.write(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) write(ctx context.Context, conn *websocket.Conn, ev events.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, ev)
}

func (h *StreamHandler) ping(ctx context.Context, conn *websocket.Conn) error {
	pingCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Ping(pingCtx)
}
