// Package docwatch следит за файлом документа и сообщает о внешних правках.
//
// Наблюдается директория документа, а не сам файл: редакторы часто сохраняют
// через rename, и watch на исходный inode после этого теряется.
package docwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/iudanet/gophreview/internal/fsutil"
)

// DefaultDebounce пауза, после которой серия событий считается одной правкой
const DefaultDebounce = 100 * time.Millisecond

// ErrAlreadyRunning возвращается при повторном Run
var ErrAlreadyRunning = errors.New("watcher already running")

// Handler получает новый текст документа
type Handler func(text string)

// Watcher reports external edits of a single document file.
type Watcher struct {
	handler   Handler
	logger    *slog.Logger
	timer     *time.Timer
	ready     chan struct{}
	readyOnce sync.Once
	path      string
	known     string
	debounce  time.Duration
	mu        sync.Mutex
	running   bool
}

// New создает наблюдатель. initial - текущий текст документа: правка,
// оставившая текст прежним, не сообщается.
func New(path, initial string, handler Handler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		known:    initial,
		handler:  handler,
		logger:   logger,
		debounce: DefaultDebounce,
		ready:    make(chan struct{}),
	}
}

// SetKnown запоминает текст, записанный самим процессом, чтобы собственная
// запись не вернулась как внешняя правка.
func (w *Watcher) SetKnown(text string) {
	w.mu.Lock()
	w.known = text
	w.mu.Unlock()
}

// Ready закрывается, когда наблюдение установлено
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run наблюдает за документом до отмены ctx.
func (w *Watcher) Run(ctx context.Context) (err error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.mu.Unlock()
	}()

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			w.logger.Error("Document watcher panic", "error", err, "stack", string(debug.Stack()))
		}
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("Watching document", "path", w.path)
	w.readyOnce.Do(func() { close(w.ready) })

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("watcher events channel closed")
			}
			if w.relevant(event) {
				w.schedule()
			}

		case wErr, ok := <-watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("fsnotify error", "error", wErr)
		}
	}
}

// relevant отбрасывает события других файлов и временных файлов атомарной записи
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), fsutil.TempFilePrefix) {
		return false
	}
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// Файл может временно отсутствовать между remove и create
		w.logger.Debug("Document not readable", "path", w.path, "error", err)
		return
	}
	text := string(data)

	w.mu.Lock()
	if text == w.known {
		w.mu.Unlock()
		return
	}
	w.known = text
	w.mu.Unlock()

	w.logger.Info("Document changed on disk", "path", w.path, "bytes", len(data))
	w.handler(text)
}
