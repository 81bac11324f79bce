package storage

import (
	"context"
	"regexp"

	"github.com/iudanet/gophreview/internal/models"
)

// sessionIDPattern допустимый ключ сессии: безопасен как имя директории
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateSessionID проверяет, что id можно использовать как ключ хранилища
func ValidateSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return ErrInvalidSessionID
	}
	return nil
}

// SessionStorage defines interface for persisted review sessions
//
//go:generate moq -out session_storage_mock.go . SessionStorage
type SessionStorage interface {
	// SaveSession stamps meta.UpdatedAt and writes meta, state and peers.
	// Overwrites any previous snapshot of the same session.
	SaveSession(ctx context.Context, sessionID string, state []byte, meta models.SessionMeta, peers []models.Peer) error

	// LoadSession returns ErrSessionNotFound if meta or state is missing or unparsable
	LoadSession(ctx context.Context, sessionID string) (*models.StoredSession, error)

	// ListSessions returns metadata of readable sessions, newest first
	ListSessions(ctx context.Context) ([]models.SessionMeta, error)

	// DeleteSession returns ErrSessionNotFound if session does not exist
	DeleteSession(ctx context.Context, sessionID string) error

	// SessionExists reports whether a loadable session exists
	SessionExists(ctx context.Context, sessionID string) (bool, error)
}

// Journal defines interface for the admission journal
//
//go:generate moq -out journal_mock.go . Journal
type Journal interface {
	// Record appends validation decisions
	Record(ctx context.Context, decisions ...models.Decision) error

	// List returns decisions of a session in insertion order; limit <= 0 means all
	List(ctx context.Context, sessionID string, limit int) ([]models.Decision, error)
}
