package web

// handlers_common.go holds helpers shared across handlers.

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/datacrew/internal/core"
	"github.com/JonMunkholm/datacrew/internal/logging"
)

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func (s *Server) logger(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context())
}

// HealthResponse reports liveness and crew slot usage.
type HealthResponse struct {
	Status     string             `json:"status"`
	ActiveRuns int                `json:"active_runs"`
	Limiter    core.LimiterStatus `json:"limiter"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		ActiveRuns: s.service.ActiveCount(),
		Limiter:    s.service.LimiterStatus(),
	})
}
