package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophreview/internal/client/storage"
)

const (
	keyLastSession = "last_session"
)

// SaveLastSession запоминает последнюю сессию, к которой подключился клиент
func (s *Storage) SaveLastSession(ctx context.Context, last storage.LastSession) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(last)
	if err != nil {
		return fmt.Errorf("failed to marshal last session: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		if err := bucket.Put([]byte(keyLastSession), data); err != nil {
			return fmt.Errorf("failed to save last session: %w", err)
		}

		return nil
	})
}

// GetLastSession возвращает последнюю сессию или storage.ErrNoLastSession
func (s *Storage) GetLastSession(ctx context.Context) (*storage.LastSession, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var last storage.LastSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		data := bucket.Get([]byte(keyLastSession))
		if data == nil {
			return storage.ErrNoLastSession
		}

		if err := json.Unmarshal(data, &last); err != nil {
			return fmt.Errorf("failed to unmarshal last session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &last, nil
}
