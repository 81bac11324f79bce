package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/gophreview/internal/models"
	"github.com/iudanet/gophreview/internal/server/middleware"
	"github.com/iudanet/gophreview/pkg/api"
)

const (
	// DefaultInviteTTL время жизни приглашения по умолчанию
	DefaultInviteTTL = 24 * time.Hour
	// MaxInviteTTL максимальное время жизни приглашения
	MaxInviteTTL = 7 * 24 * time.Hour
)

// TokenIssuer выпускает токены сессии
//
//go:generate moq -out token_issuer_mock.go . TokenIssuer
type TokenIssuer interface {
	Issue(subject string, role models.Role, ttl time.Duration) (string, error)
}

// SessionHandler обслуживает административное API сессии
type SessionHandler struct {
	logger   *slog.Logger
	sessions SessionProvider
	issuer   TokenIssuer
}

// NewSessionHandler создает handler административного API
func NewSessionHandler(logger *slog.Logger, sessions SessionProvider, issuer TokenIssuer) *SessionHandler {
	return &SessionHandler{
		logger:   logger,
		sessions: sessions,
		issuer:   issuer,
	}
}

// Session обрабатывает GET /api/v1/session: сведения о сессии и ростер
func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.sessions.Info())
}

// IssueToken обрабатывает POST /api/v1/tokens: выпуск приглашения
func (h *SessionHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req api.TokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		h.logger.Warn("Invalid token request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Role == "" {
		req.Role = models.RoleReviewer
	}
	// Приглашение с ролью master не выдается
	if req.Role != models.RoleReviewer && req.Role != models.RoleViewer {
		writeError(w, h.logger, http.StatusBadRequest, "role must be reviewer or viewer")
		return
	}

	ttl := DefaultInviteTTL
	if req.TTLSeconds < 0 {
		writeError(w, h.logger, http.StatusBadRequest, "ttl must not be negative")
		return
	}
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	if ttl > MaxInviteTTL {
		ttl = MaxInviteTTL
	}

	subject := "invite"
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		subject = "invite:" + claims.Subject
	}

	token, err := h.issuer.Issue(subject, req.Role, ttl)
	if err != nil {
		h.logger.Error("Failed to issue invite token", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.logger.Info("Invite token issued", "role", req.Role, "ttl", ttl)
	writeJSON(w, h.logger, http.StatusCreated, api.TokenResponse{
		Token:     token,
		Role:      req.Role,
		ExpiresIn: int64(ttl.Seconds()),
	})
}
