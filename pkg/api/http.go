package api

import "github.com/iudanet/gophreview/internal/models"

// HealthResponse ответ GET /api/v1/health
type HealthResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Peers     int    `json:"peers"`
}

// TokenRequest запрос на выпуск приглашения POST /api/v1/tokens
type TokenRequest struct {
	Role       models.Role `json:"role"`        // роль приглашенного пира
	TTLSeconds int64       `json:"ttl_seconds"` // время жизни токена, 0 - значение по умолчанию
}

// TokenResponse ответ с токеном приглашения
type TokenResponse struct {
	Token     string      `json:"token"`      // JWT приглашения
	Role      models.Role `json:"role"`       // роль в токене
	ExpiresIn int64       `json:"expires_in"` // время жизни токена в секундах
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
