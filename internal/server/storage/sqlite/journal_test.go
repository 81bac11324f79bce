package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophreview/internal/models"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	return s, func() { _ = s.Close() }
}

func TestJournal_RecordAndList(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s.now = func() time.Time { return at }

	err := s.Record(ctx,
		models.Decision{SessionID: "s1", PeerID: "p1", AnnotationID: "a1", Action: "add", Admitted: true},
		models.Decision{SessionID: "s1", PeerID: "p2", AnnotationID: "a2", Action: "add", Reason: "role viewer cannot modify annotations"},
		models.Decision{SessionID: "s2", PeerID: "p3", AnnotationID: "b1", Action: "delete", Admitted: true},
	)
	require.NoError(t, err)

	decisions, err := s.List(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	assert.Equal(t, "a1", decisions[0].AnnotationID)
	assert.True(t, decisions[0].Admitted)
	assert.True(t, at.Equal(decisions[0].CreatedAt))
	assert.NotZero(t, decisions[0].ID)

	assert.False(t, decisions[1].Admitted)
	assert.Contains(t, decisions[1].Reason, "viewer")
	assert.Greater(t, decisions[1].ID, decisions[0].ID)

	limited, err := s.List(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.List(ctx, "unknown", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJournal_RecordEmpty(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	assert.NoError(t, s.Record(context.Background()))
}

func TestJournal_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, models.Decision{SessionID: "s1", PeerID: "p1", AnnotationID: "a1", Action: "add", Admitted: true}))
	require.NoError(t, s.Close())

	// Повторные миграции безопасны
	s, err = New(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	decisions, err := s.List(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, decisions, 1)
}
