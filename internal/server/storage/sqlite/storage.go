// Package sqlite хранит журнал допуска изменений (admitted/rejected) в SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/gophreview/internal/server/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// journalPragmas применяются к каждому открытому журналу.
// Мастер пишет решения из одной горутины, читает только CLI.
var journalPragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = NORMAL;",
	"PRAGMA busy_timeout = 5000;",
}

// Storage журнал решений мастера
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Journal = (*Storage)(nil)

// New открывает (или создает) журнал решений по пути dbPath и накатывает схему.
// ":memory:" дает журнал на время жизни процесса.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision journal %s: %w", dbPath, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("decision journal %s is unreachable: %w", dbPath, err)
	}

	// Один писатель: записи решений не конкурируют между собой
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range journalPragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure decision journal: %w", err)
		}
	}

	journal := &Storage{db: db, now: time.Now}
	if err := journal.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return journal, nil
}

// Close закрывает журнал
func (s *Storage) Close() error {
	return s.db.Close()
}

// migrate накатывает схему таблицы decisions из встроенных миграций
func (s *Storage) migrate() error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("decision journal dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate decision journal: %w", err)
	}
	return nil
}
