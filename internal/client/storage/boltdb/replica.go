package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophreview/internal/client/storage"
)

// SaveReplica перезаписывает снимок реплики сессии
func (s *Storage) SaveReplica(ctx context.Context, sessionID string, state []byte) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketReplicas)
		if bucket == nil {
			return fmt.Errorf("replicas bucket not found")
		}
		return bucket.Put([]byte(sessionID), state)
	})
	if err != nil {
		return fmt.Errorf("failed to save replica: %w", err)
	}
	return nil
}

// LoadReplica возвращает снимок реплики или storage.ErrReplicaNotFound
func (s *Storage) LoadReplica(ctx context.Context, sessionID string) ([]byte, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var state []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketReplicas)
		if bucket == nil {
			return storage.ErrReplicaNotFound
		}
		data := bucket.Get([]byte(sessionID))
		if data == nil {
			return storage.ErrReplicaNotFound
		}
		// Данные bbolt валидны только внутри транзакции
		state = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// DeleteReplica удаляет снимок сессии
func (s *Storage) DeleteReplica(ctx context.Context, sessionID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketReplicas)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(sessionID))
	})
}
