package boltdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// bucketReplicas снимки реплик по session id
	bucketReplicas = []byte("replicas")
	// bucketMetadata последняя сессия, к которой подключался клиент
	bucketMetadata = []byte("metadata")
)

// openTimeout сколько ждать блокировку файла, если он открыт другим клиентом
const openTimeout = time.Second

// Storage локальный кэш реплик клиента. Переживает переподключения и
// позволяет показать аннотации до первой синхронизации с мастером.
type Storage struct {
	db *bbolt.DB
}

// New открывает кэш реплик по пути dbPath, создавая родительскую директорию
func New(ctx context.Context, dbPath string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create replica cache dir: %w", err)
	}

	// Второй клиент на том же файле получит ошибку через openTimeout
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open replica cache %s: %w", dbPath, err)
	}

	storage := &Storage{db: db}
	if err := storage.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare replica cache: %w", err)
	}

	return storage, nil
}

// Close закрывает кэш. Повторный вызов ничего не делает.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает бакеты реплик и метаданных, если их еще нет
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketReplicas, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}
