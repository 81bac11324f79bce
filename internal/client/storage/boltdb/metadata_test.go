package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophreview/internal/client/storage"
)

// createTestStorage создает временное BoltDB хранилище и инициализирует buckets
func createTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestSaveAndGetLastSession(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	// Изначально сессии нет
	_, err := store.GetLastSession(ctx)
	assert.ErrorIs(t, err, storage.ErrNoLastSession)

	last := storage.LastSession{
		JoinedAt:   time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		SessionID:  "2ZmZ1HjZ0v2oNn3CqNq0hA8L5dP",
		URL:        "ws://127.0.0.1:4455/ws",
		PeerID:     "bob",
		MasterName: "alice",
	}
	require.NoError(t, store.SaveLastSession(ctx, last))

	got, err := store.GetLastSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, last.SessionID, got.SessionID)
	assert.Equal(t, last.URL, got.URL)
	assert.True(t, last.JoinedAt.Equal(got.JoinedAt))

	// Перезапись
	last.SessionID = "other"
	require.NoError(t, store.SaveLastSession(ctx, last))
	got, err = store.GetLastSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "other", got.SessionID)
}

func TestLastSession_BucketMissing(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	// Удаляем bucket metadata напрямую
	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketMetadata)
	})
	require.NoError(t, err)

	_, err = store.GetLastSession(ctx)
	assert.ErrorContains(t, err, "metadata bucket not found")

	err = store.SaveLastSession(ctx, storage.LastSession{SessionID: "s1"})
	assert.ErrorContains(t, err, "metadata bucket not found")
}

func TestReplica_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	_, err := store.LoadReplica(ctx, "s1")
	assert.ErrorIs(t, err, storage.ErrReplicaNotFound)

	require.NoError(t, store.SaveReplica(ctx, "s1", []byte("state-v1")))
	require.NoError(t, store.SaveReplica(ctx, "s2", []byte("other")))
	require.NoError(t, store.SaveReplica(ctx, "s1", []byte("state-v2")))

	state, err := store.LoadReplica(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []byte("state-v2"), state)

	require.NoError(t, store.DeleteReplica(ctx, "s1"))
	require.NoError(t, store.DeleteReplica(ctx, "s1"), "deleting a missing replica is not an error")
	_, err = store.LoadReplica(ctx, "s1")
	assert.ErrorIs(t, err, storage.ErrReplicaNotFound)

	state, err = store.LoadReplica(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, []byte("other"), state)
}

func TestReplica_Closed(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.SaveReplica(ctx, "s1", nil), storage.ErrStorageClosed)
	_, err = store.LoadReplica(ctx, "s1")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, store.DeleteReplica(ctx, "s1"), storage.ErrStorageClosed)
	_, err = store.GetLastSession(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
