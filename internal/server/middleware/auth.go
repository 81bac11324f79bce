package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/gophreview/internal/models"
	"github.com/iudanet/gophreview/internal/server/jwt"
)

type contextKey string

// ClaimsKey ключ контекста с claims проверенного токена
const ClaimsKey contextKey = "claims"

// TokenValidator проверяет токен сессии
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// ClaimsFromContext возвращает claims, положенные AdminAuthMiddleware
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*jwt.Claims)
	return claims, ok
}

// AdminAuthMiddleware пропускает только запросы с Bearer токеном роли master
func AdminAuthMiddleware(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header", "path", r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("Invalid Authorization header format", "path", r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			claims, err := validator.Validate(parts[1])
			if err != nil {
				logger.Warn("Invalid session token", "error", err)
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if claims.Role != models.RoleMaster {
				logger.Warn("Admin endpoint called with non-admin token", "role", claims.Role, "subject", claims.Subject)
				writeJSONError(w, http.StatusForbidden, "admin token required")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
