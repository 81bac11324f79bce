package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/gophreview/internal/client/session"
	"github.com/iudanet/gophreview/internal/client/storage"
)

// Cache локальное хранилище клиента: реплики и последняя сессия
type Cache interface {
	storage.ReplicaCache
	storage.SessionHistory
}

// LastSession возвращает последнюю сессию или nil, если клиент еще не подключался
func LastSession(ctx context.Context, cache Cache) (*storage.LastSession, error) {
	last, err := cache.GetLastSession(ctx)
	if errors.Is(err, storage.ErrNoLastSession) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last session: %w", err)
	}
	return last, nil
}

// Restore засевает реплику из кэша, если последняя сессия была по тому же url.
// fresh удаляет кэшированную реплику вместо восстановления.
func Restore(ctx context.Context, s *session.Session, cache Cache, url string, fresh bool) error {
	last, err := LastSession(ctx, cache)
	if err != nil || last == nil || last.URL != url || last.SessionID == "" {
		return err
	}

	if fresh {
		return cache.DeleteReplica(ctx, last.SessionID)
	}
	err = s.RestoreReplica(ctx, last.SessionID)
	if errors.Is(err, storage.ErrReplicaNotFound) {
		return nil
	}
	return err
}

// Remember запоминает сессию как последнюю при каждом подключении
func Remember(s *session.Session, cache Cache, url string, logger *slog.Logger) (unsubscribe func()) {
	return s.Subscribe(func(ev session.Event) {
		if ev.Type != session.EventConnected {
			return
		}
		info := s.Info()
		last := storage.LastSession{
			JoinedAt:   time.Now(),
			SessionID:  info.SessionID,
			URL:        url,
			PeerID:     s.PeerID(),
			MasterName: info.MasterName,
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := cache.SaveLastSession(ctx, last); err != nil {
			logger.Warn("Failed to remember session", "error", err)
		}
	})
}
