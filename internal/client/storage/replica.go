package storage

import (
	"context"
	"time"
)

//go:generate moq -out replica_mock.go . ReplicaCache

// ReplicaCache хранит локальную реплику хранилища аннотаций по id сессии
type ReplicaCache interface {
	// SaveReplica перезаписывает снимок реплики сессии
	SaveReplica(ctx context.Context, sessionID string, state []byte) error

	// LoadReplica returns ErrReplicaNotFound if nothing was saved for the session
	LoadReplica(ctx context.Context, sessionID string) ([]byte, error)

	// DeleteReplica удаляет снимок; отсутствие снимка не ошибка
	DeleteReplica(ctx context.Context, sessionID string) error
}

// LastSession сведения о последней сессии, к которой подключался клиент
type LastSession struct {
	JoinedAt   time.Time `json:"joined_at"`
	SessionID  string    `json:"session_id"`
	URL        string    `json:"url"`
	PeerID     string    `json:"peer_id"`
	MasterName string    `json:"master_name"`
}

// SessionHistory запоминает последнюю сессию клиента
type SessionHistory interface {
	SaveLastSession(ctx context.Context, last LastSession) error

	// GetLastSession returns ErrNoLastSession if the client never joined
	GetLastSession(ctx context.Context) (*LastSession, error)
}
