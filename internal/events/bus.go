// Package events реализует синхронную раздачу событий подписчикам.
package events

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

type subscriber[T any] struct {
	fn func(T)
	id uint64
}

// Bus хранит упорядоченный список подписчиков.
// Emit вызывает их синхронно в порядке подписки; паника одного
// подписчика логируется и не мешает доставке остальным.
type Bus[T any] struct {
	logger *slog.Logger
	subs   []subscriber[T]
	nextID uint64
	mu     sync.Mutex
}

// NewBus создает шину событий. logger может быть nil.
func NewBus[T any](logger *slog.Logger) *Bus[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus[T]{logger: logger}
}

// Subscribe добавляет подписчика и возвращает функцию отписки.
// Повторный вызов функции отписки безопасен.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit доставляет событие всем текущим подписчикам.
func (b *Bus[T]) Emit(ev T) {
	// Берем snapshot, чтобы подписчик мог отписаться прямо из обработчика
	b.mu.Lock()
	subs := make([]subscriber[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		b.call(s, ev)
	}
}

func (b *Bus[T]) call(s subscriber[T], ev T) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event subscriber panicked",
				"subscriber", s.id,
				"error", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.fn(ev)
}

// Len возвращает количество подписчиков
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
