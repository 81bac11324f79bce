// Package jwt выпускает и проверяет токены доступа к сессии:
// административный токен мастера и приглашения для пиров.
package jwt

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/gophreview/internal/models"
)

const issuer = "gophreview"

var (
	// ErrInvalidToken токен не прошел проверку подписи, срока или формата
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongSession токен выпущен для другой сессии
	ErrWrongSession = errors.New("token issued for another session")
)

// Claims представляет JWT claims токена сессии
type Claims struct {
	SessionID string      `json:"sid"`
	Role      models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service выпускает и проверяет токены одной сессии
type Service struct {
	secret    []byte
	sessionID string
}

// NewService создает сервис. Пустой secret заменяется случайным:
// токены тогда действительны только пока жив процесс мастера.
func NewService(secret []byte, sessionID string) (*Service, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
	}
	return &Service{secret: secret, sessionID: sessionID}, nil
}

// Issue создает подписанный токен с ролью и временем жизни ttl (0 - без срока)
func (s *Service) Issue(subject string, role models.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: s.sessionID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate проверяет подпись, срок, издателя и принадлежность сессии
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID != s.sessionID {
		return nil, ErrWrongSession
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims, nil
}
