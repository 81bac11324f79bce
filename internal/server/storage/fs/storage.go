// Package fs хранит сессии на файловой системе: одна директория на сессию
// с файлами meta.json, state.bin (snappy) и peers.json.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang/snappy"

	"github.com/iudanet/gophreview/internal/crdt"
	"github.com/iudanet/gophreview/internal/fsutil"
	"github.com/iudanet/gophreview/internal/models"
	"github.com/iudanet/gophreview/internal/server/storage"
)

const (
	metaFile  = "meta.json"
	stateFile = "state.bin"
	peersFile = "peers.json"

	dirPerm  = 0o700
	filePerm = 0o600
)

// Storage файловое хранилище сессий
type Storage struct {
	now    func() time.Time
	logger *slog.Logger
	root   string
}

var _ storage.SessionStorage = (*Storage)(nil)

// New создает хранилище в директории root (создается при необходимости)
func New(root string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &Storage{root: root, logger: logger, now: time.Now}, nil
}

// Root возвращает корневую директорию хранилища
func (s *Storage) Root() string {
	return s.root
}

func (s *Storage) dir(sessionID string) string {
	return filepath.Join(s.root, sessionID)
}

// SaveSession пишет снимок сессии. meta пишется последним: без него сессия не загружается,
// поэтому прерванная запись не дает полусобранного снимка.
func (s *Storage) SaveSession(ctx context.Context, sessionID string, state []byte, meta models.SessionMeta, peers []models.Peer) error {
	if err := storage.ValidateSessionID(sessionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := s.dir(sessionID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	if err := fsutil.WriteFileAtomic(filepath.Join(dir, stateFile), snappy.Encode(nil, state), filePerm); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	if peers == nil {
		peers = []models.Peer{}
	}
	peersData, err := json.MarshalIndent(peers, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode peers: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, peersFile), peersData, filePerm); err != nil {
		return fmt.Errorf("failed to write peers: %w", err)
	}

	meta.SessionID = sessionID
	meta.UpdatedAt = s.now().UTC()
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode meta: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, metaFile), metaData, filePerm); err != nil {
		return fmt.Errorf("failed to write meta: %w", err)
	}

	s.logger.Debug("Session saved", "session_id", sessionID, "state_bytes", len(state), "peers", len(peers))
	return nil
}

// LoadSession читает снимок. Отсутствующие или поврежденные meta/state дают ErrSessionNotFound,
// в том числе state, который распаковывается, но не декодируется как дельта. peers необязателен.
func (s *Storage) LoadSession(ctx context.Context, sessionID string) (*models.StoredSession, error) {
	if err := storage.ValidateSessionID(sessionID); err != nil {
		return nil, storage.ErrSessionNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, err := s.readMeta(sessionID)
	if err != nil {
		s.logger.Debug("Session meta unreadable", "session_id", sessionID, "error", err)
		return nil, storage.ErrSessionNotFound
	}

	compressed, err := os.ReadFile(filepath.Join(s.dir(sessionID), stateFile))
	if err != nil {
		s.logger.Debug("Session state unreadable", "session_id", sessionID, "error", err)
		return nil, storage.ErrSessionNotFound
	}
	state, err := snappy.Decode(nil, compressed)
	if err != nil {
		s.logger.Warn("Session state corrupted", "session_id", sessionID, "error", err)
		return nil, storage.ErrSessionNotFound
	}
	if _, err := crdt.DecodeDelta(state); err != nil {
		s.logger.Warn("Session state is not a valid delta", "session_id", sessionID, "error", err)
		return nil, storage.ErrSessionNotFound
	}

	peers := []models.Peer{}
	if data, err := os.ReadFile(filepath.Join(s.dir(sessionID), peersFile)); err == nil {
		if err := json.Unmarshal(data, &peers); err != nil {
			s.logger.Warn("Session peers unreadable, using empty roster", "session_id", sessionID, "error", err)
			peers = []models.Peer{}
		}
	}

	return &models.StoredSession{Meta: *meta, State: state, Peers: peers}, nil
}

// ListSessions перечисляет сессии, пропуская нечитаемые, от новых к старым
func (s *Storage) ListSessions(ctx context.Context) ([]models.SessionMeta, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage dir: %w", err)
	}

	sessions := make([]models.SessionMeta, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || storage.ValidateSessionID(entry.Name()) != nil {
			continue
		}
		meta, err := s.readMeta(entry.Name())
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir(entry.Name()), stateFile)); err != nil {
			continue
		}
		sessions = append(sessions, *meta)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// DeleteSession удаляет директорию сессии
func (s *Storage) DeleteSession(ctx context.Context, sessionID string) error {
	if err := storage.ValidateSessionID(sessionID); err != nil {
		return storage.ErrSessionNotFound
	}
	if _, err := os.Stat(s.dir(sessionID)); errors.Is(err, os.ErrNotExist) {
		return storage.ErrSessionNotFound
	}
	if err := os.RemoveAll(s.dir(sessionID)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("Session deleted", "session_id", sessionID)
	return nil
}

// SessionExists сообщает, есть ли загружаемая сессия
func (s *Storage) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	_, err := s.LoadSession(ctx, sessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storage) readMeta(sessionID string) (*models.SessionMeta, error) {
	data, err := os.ReadFile(filepath.Join(s.dir(sessionID), metaFile))
	if err != nil {
		return nil, err
	}
	var meta models.SessionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	if meta.SessionID == "" {
		return nil, fmt.Errorf("meta without session id")
	}
	return &meta, nil
}
