package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.Conn().PingContext(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Health check database ping failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// handleSystemStatus handles GET /api/system/status
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var portfolios, transactions int
	dbStatus := "ok"
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM portfolios WHERE status = 'active'`).Scan(&portfolios); err != nil {
		dbStatus = "error"
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&transactions); err != nil {
		dbStatus = "error"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":            "running",
		"uptime_seconds":    int(time.Since(s.started).Seconds()),
		"database":          dbStatus,
		"active_portfolios": portfolios,
		"transactions":      transactions,
		"goroutines":        runtime.NumGoroutine(),
		"heap_alloc_bytes":  mem.HeapAlloc,
	})
}
