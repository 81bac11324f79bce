package fs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophreview/internal/crdt"
	"github.com/iudanet/gophreview/internal/models"
	"github.com/iudanet/gophreview/internal/server/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(t.TempDir(), testLogger())
	require.NoError(t, err)
	return s
}

// testState снимок хранилища с одним комментарием
func testState(t *testing.T, content string) []byte {
	t.Helper()
	store := crdt.NewStore("alice", testLogger())
	require.NoError(t, store.Set(models.Annotation{
		ID:        "a1",
		Type:      models.TypeComment,
		Content:   content,
		Status:    models.StatusOpen,
		Timestamp: 1,
	}))
	state, err := store.EncodeFull()
	require.NoError(t, err)
	return state
}

func testMeta(name string) models.SessionMeta {
	return models.SessionMeta{Session: models.Session{
		MasterName:       name,
		DocumentPath:     "/tmp/doc.md",
		Port:             4455,
		CreatedAt:        time.Unix(1_700_000_000, 0).UTC(),
		AutoSaveInterval: 30 * time.Second,
	}}
}

func TestStorage_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return now }

	peers := []models.Peer{{PeerID: "p1", Name: "bob", Role: models.RoleReviewer}}
	state := testState(t, "first")
	require.NoError(t, s.SaveSession(ctx, "s1", state, testMeta("alice"), peers))

	loaded, err := s.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state, loaded.State)
	assert.Equal(t, "s1", loaded.Meta.SessionID)
	assert.Equal(t, "alice", loaded.Meta.MasterName)
	assert.Equal(t, 30*time.Second, loaded.Meta.AutoSaveInterval)
	assert.True(t, now.Equal(loaded.Meta.UpdatedAt))
	require.Len(t, loaded.Peers, 1)
	assert.Equal(t, "bob", loaded.Peers[0].Name)

	// Перезапись идемпотентна
	newer := testState(t, "newer")
	require.NoError(t, s.SaveSession(ctx, "s1", newer, testMeta("alice"), nil))
	loaded, err = s.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, newer, loaded.State)
	assert.Empty(t, loaded.Peers)
}

func TestStorage_LoadMissingOrCorrupted(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)
	require.NoError(t, s.SaveSession(ctx, "good", testState(t, "x"), testMeta("a"), nil))

	tests := []struct {
		corrupt func(dir string)
		name    string
	}{
		{name: "missing meta", corrupt: func(dir string) { require.NoError(t, os.Remove(filepath.Join(dir, metaFile))) }},
		{name: "missing state", corrupt: func(dir string) { require.NoError(t, os.Remove(filepath.Join(dir, stateFile))) }},
		{name: "garbage meta", corrupt: func(dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, metaFile), []byte("{"), filePerm))
		}},
		{name: "garbage state", corrupt: func(dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, stateFile), []byte{0xff, 0xff, 0xff}, filePerm))
		}},
		{name: "state is not a delta", corrupt: func(dir string) {
			compressed := snappy.Encode(nil, []byte("not a delta"))
			require.NoError(t, os.WriteFile(filepath.Join(dir, stateFile), compressed, filePerm))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.SaveSession(ctx, "broken", testState(t, "x"), testMeta("a"), nil))
			tt.corrupt(s.dir("broken"))

			_, err := s.LoadSession(ctx, "broken")
			assert.ErrorIs(t, err, storage.ErrSessionNotFound)

			exists, err := s.SessionExists(ctx, "broken")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}

	_, err := s.LoadSession(ctx, "never-saved")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
	_, err = s.LoadSession(ctx, "../escape")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestStorage_PeersOptional(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)
	require.NoError(t, s.SaveSession(ctx, "s1", testState(t, "x"), testMeta("a"), nil))
	require.NoError(t, os.Remove(filepath.Join(s.dir("s1"), peersFile)))

	loaded, err := s.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, loaded.Peers)
	assert.Empty(t, loaded.Peers)
}

func TestStorage_ListSessions(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"old", "newest", "middle"} {
		offsets := map[string]time.Duration{"old": 0, "middle": time.Hour, "newest": 2 * time.Hour}
		at := base.Add(offsets[id])
		s.now = func() time.Time { return at }
		require.NoError(t, s.SaveSession(ctx, id, testState(t, id), testMeta(id), nil))
	}

	// Нечитаемая сессия и посторонний файл пропускаются
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "junk"), dirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "junk", metaFile), []byte("nope"), filePerm))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "stray.txt"), []byte("x"), filePerm))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "newest", sessions[0].SessionID)
	assert.Equal(t, "middle", sessions[1].SessionID)
	assert.Equal(t, "old", sessions[2].SessionID)
}

func TestStorage_DeleteSession(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)
	require.NoError(t, s.SaveSession(ctx, "s1", testState(t, "x"), testMeta("a"), nil))

	exists, err := s.SessionExists(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.DeleteSession(ctx, "s1"))
	assert.ErrorIs(t, s.DeleteSession(ctx, "s1"), storage.ErrSessionNotFound)

	exists, err = s.SessionExists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStorage_InvalidSessionID(t *testing.T) {
	s := setupTestStorage(t)
	err := s.SaveSession(context.Background(), "../../etc", testState(t, "x"), testMeta("a"), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidSessionID)
}
