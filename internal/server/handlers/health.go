package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/gophreview/pkg/api"
)

// SessionProvider отдает сведения о запущенной сессии
//
//go:generate moq -out session_provider_mock.go . SessionProvider
type SessionProvider interface {
	Info() api.SessionInfo
	PeerCount() int
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger   *slog.Logger
	sessions SessionProvider
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, sessions SessionProvider) *HealthHandler {
	return &HealthHandler{
		logger:   logger,
		sessions: sessions,
	}
}

// Health обрабатывает GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:    "ok",
		SessionID: h.sessions.Info().SessionID,
		Peers:     h.sessions.PeerCount(),
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, api.ErrorResponse{Error: message})
}
