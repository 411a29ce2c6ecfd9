package pricing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHistoryRouter(t *testing.T) (*chi.Mux, *Repository) {
	t.Helper()
	f := newSyncFixture(t)
	handler := NewHandler(f.prices, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api/prices", handler.Routes)
	return router, f.prices
}

func getHistory(t *testing.T, router http.Handler, path string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleGetHistory(t *testing.T) {
	router, prices := newHistoryRouter(t)

	base := time.Now().UTC().AddDate(0, 0, -5)
	for i := 0; i < 5; i++ {
		price := decimal.NewFromInt(int64(100 + i))
		require.NoError(t, prices.Record("BTC", price, base.AddDate(0, 0, i)))
	}

	body := getHistory(t, router, "/api/prices/BTC/history")
	assert.Equal(t, "BTC", body["symbol"])
	assert.EqualValues(t, 90, body["days"])
	assert.Len(t, body["history"], 5)
}

func TestHandleGetHistory_UnknownSymbolIsEmpty(t *testing.T) {
	router, _ := newHistoryRouter(t)

	body := getHistory(t, router, "/api/prices/DOGE/history")
	assert.Empty(t, body["history"])
	assert.NotContains(t, body, "sma")
}

func TestHandleGetHistory_Indicators(t *testing.T) {
	router, prices := newHistoryRouter(t)

	base := time.Now().UTC().AddDate(0, 0, -30)
	for i := 0; i < 30; i++ {
		price := decimal.NewFromInt(int64(100 + i%7))
		require.NoError(t, prices.Record("ETH", price, base.AddDate(0, 0, i)))
	}

	body := getHistory(t, router, "/api/prices/ETH/history?sma=5&rsi=14")

	sma, ok := body["sma"].([]interface{})
	require.True(t, ok)
	// Warm-up entries are sliced off
	assert.Len(t, sma, 30-5+1)
	for _, v := range sma {
		assert.IsType(t, float64(0), v)
	}

	rsi, ok := body["rsi"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, rsi)
}

func TestHandleGetHistory_DaysWindow(t *testing.T) {
	router, prices := newHistoryRouter(t)

	now := time.Now().UTC()
	require.NoError(t, prices.Record("BTC", decimal.NewFromInt(90), now.AddDate(0, 0, -20)))
	require.NoError(t, prices.Record("BTC", decimal.NewFromInt(100), now.AddDate(0, 0, -2)))

	body := getHistory(t, router, "/api/prices/BTC/history?days=7")
	assert.EqualValues(t, 7, body["days"])
	assert.Len(t, body["history"], 1)

	// Out-of-range values fall back to the default window
	body = getHistory(t, router, fmt.Sprintf("/api/prices/BTC/history?days=%d", 99999))
	assert.EqualValues(t, 90, body["days"])
	assert.Len(t, body["history"], 2)
}
