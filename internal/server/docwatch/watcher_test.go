package docwatch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophreview/internal/fsutil"
)

type recorder struct {
	texts []string
	mu    sync.Mutex
}

func (r *recorder) handle(text string) {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()
}

func (r *recorder) last() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return "", 0
	}
	return r.texts[len(r.texts)-1], len(r.texts)
}

func startWatcher(t *testing.T, initial string) (*Watcher, string, *recorder) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	rec := &recorder{}
	w := New(path, initial, rec.handle, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return w, path, rec
}

func TestWatcher_ReportsExternalWrite(t *testing.T) {
	_, path, rec := startWatcher(t, "v1")

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))

	require.Eventually(t, func() bool {
		text, _ := rec.last()
		return text == "v2"
	}, 5*time.Second, 10*time.Millisecond)
}

// Атомарная запись через rename тоже замечается
func TestWatcher_ReportsAtomicReplace(t *testing.T) {
	_, path, rec := startWatcher(t, "v1")

	require.NoError(t, fsutil.WriteFileAtomic(path, []byte("v2"), 0o600))

	require.Eventually(t, func() bool {
		text, _ := rec.last()
		return text == "v2"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresKnownText(t *testing.T) {
	w, path, rec := startWatcher(t, "v1")

	w.SetKnown("mine")
	require.NoError(t, os.WriteFile(path, []byte("mine"), 0o600))

	// Даем debounce сработать
	time.Sleep(200 * time.Millisecond)
	_, n := rec.last()
	assert.Equal(t, 0, n)

	require.NoError(t, os.WriteFile(path, []byte("theirs"), 0o600))
	require.Eventually(t, func() bool {
		text, _ := rec.last()
		return text == "theirs"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	_, path, rec := startWatcher(t, "v1")

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.md"), []byte("x"), 0o600))
	time.Sleep(200 * time.Millisecond)

	_, n := rec.last()
	assert.Equal(t, 0, n)
}

func TestWatcher_RunTwice(t *testing.T) {
	w, _, _ := startWatcher(t, "v1")

	err := w.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope", "doc.md"), "", func(string) {}, nil)
	err := w.Run(context.Background())
	assert.Error(t, err)
}
