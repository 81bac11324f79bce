// Package presence хранит эфемерное состояние участников сессии
// (имя, цвет, просматриваемое место, флаг набора текста).
//
// Каждый участник публикует только свою запись; остальные записи - зеркала.
// Записи упорядочиваются собственным счетчиком владельца: побеждает больший.
// Ничего из этого не сохраняется на диск.
package presence

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/iudanet/gophreview/internal/events"
	"github.com/iudanet/gophreview/internal/models"
)

// OriginLocal помечает изменения собственной записи
const OriginLocal = "local"

var (
	// ErrInvalidUpdate возвращается, если бинарное обновление не декодируется
	ErrInvalidUpdate = errors.New("invalid presence update")
	// ErrNoOwner возвращается, если не указан отправитель обновления
	ErrNoOwner = errors.New("presence update owner is empty")
)

var palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#42d4f4", "#f032e6", "#9a6324",
}

// ColorFor детерминированно выбирает цвет участника по его идентификатору
func ColorFor(clientID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clientID))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Entry запись одного участника. State == nil означает, что участник ушел.
type Entry struct {
	State *models.PresenceState `msgpack:"s"`
	Clock uint64                `msgpack:"c"`
}

type updateWire struct {
	Entries map[string]Entry `msgpack:"e"`
}

// Change изменение набора участников
type Change struct {
	Origin  string
	Added   []string
	Updated []string
	Removed []string
	Update  []byte // закодированные записи, которые нужно переслать остальным
}

// IsLocal сообщает, что изменилась собственная запись
func (c Change) IsLocal() bool {
	return c.Origin == OriginLocal
}

// Tracker карта присутствия одной стороны соединения
type Tracker struct {
	now       func() time.Time
	entries   map[string]Entry
	observers *events.Bus[Change]
	logger    *slog.Logger
	clientID  string
	mu        sync.Mutex
	destroyed bool
}

// NewTracker создает трекер с собственной записью clientID.
// Пустой цвет заменяется цветом из палитры.
func NewTracker(clientID string, initial models.PresenceState, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if initial.Color == "" {
		initial.Color = ColorFor(clientID)
	}

	t := &Tracker{
		now:       time.Now,
		entries:   make(map[string]Entry),
		observers: events.NewBus[Change](logger),
		logger:    logger,
		clientID:  clientID,
	}
	initial.LastActive = t.now().UnixMilli()
	t.entries[clientID] = Entry{State: &initial, Clock: 1}
	return t
}

// ClientID возвращает идентификатор собственной записи
func (t *Tracker) ClientID() string {
	return t.clientID
}

// Local возвращает копию собственного состояния или nil после Destroy
func (t *Tracker) Local() *models.PresenceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyState(t.entries[t.clientID].State)
}

// SetLocal изменяет собственную запись и проставляет LastActive
func (t *Tracker) SetLocal(update func(state *models.PresenceState)) {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	entry := t.entries[t.clientID]
	state := copyState(entry.State)
	update(state)
	state.LastActive = t.now().UnixMilli()
	t.entries[t.clientID] = Entry{State: state, Clock: entry.Clock + 1}
	data, err := t.encodeLocked([]string{t.clientID})
	t.mu.Unlock()

	if err != nil {
		t.logger.Error("Failed to encode presence", "error", err)
		return
	}
	t.observers.Emit(Change{Origin: OriginLocal, Updated: []string{t.clientID}, Update: data})
}

// SetActiveAnchor запоминает просматриваемое место документа
func (t *Tracker) SetActiveAnchor(anchor map[string]any, section string) {
	t.SetLocal(func(state *models.PresenceState) {
		state.Anchor = anchor
		state.Section = section
	})
}

// SetTyping выставляет флаг набора текста
func (t *Tracker) SetTyping(typing bool) {
	t.SetLocal(func(state *models.PresenceState) {
		state.Typing = typing
	})
}

// Peers возвращает состояния всех участников, кроме себя
func (t *Tracker) Peers() map[string]models.PresenceState {
	return t.collect(false)
}

// All возвращает состояния всех участников, включая себя
func (t *Tracker) All() map[string]models.PresenceState {
	return t.collect(true)
}

func (t *Tracker) collect(includeSelf bool) map[string]models.PresenceState {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]models.PresenceState, len(t.entries))
	for id, entry := range t.entries {
		if entry.State == nil || (!includeSelf && id == t.clientID) {
			continue
		}
		out[id] = *copyState(entry.State)
	}
	return out
}

// EncodeAll кодирует все известные записи для нового участника
func (t *Tracker) EncodeAll() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	return t.encodeLocked(ids)
}

// Encode кодирует выбранные записи
func (t *Tracker) Encode(ids ...string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.encodeLocked(ids)
}

// ApplyUpdate сливает удаленное обновление. Собственная запись не перезаписывается.
// Запись с State == nil удаляет участника из карты.
func (t *Tracker) ApplyUpdate(data []byte, origin string) (Change, error) {
	return t.apply(data, origin, "")
}

// ApplyUpdateFrom сливает обновление, присланное участником owner.
// Участник владеет только своей записью: записи с другими id отбрасываются.
func (t *Tracker) ApplyUpdateFrom(data []byte, owner string) (Change, error) {
	if owner == "" {
		return Change{}, ErrNoOwner
	}
	return t.apply(data, owner, owner)
}

// apply сливает записи обновления; owner != "" ограничивает их одним id
func (t *Tracker) apply(data []byte, origin, owner string) (Change, error) {
	var wire updateWire
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return Change{}, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}

	change := Change{Origin: origin}
	applied := make(map[string]Entry)

	t.mu.Lock()
	for _, id := range sortedKeys(wire.Entries) {
		incoming := wire.Entries[id]
		if id == t.clientID {
			continue
		}
		if owner != "" && id != owner {
			t.logger.Warn("Dropping presence entry of another participant", "sender", owner, "entry", id)
			continue
		}
		existing, known := t.entries[id]
		if known && incoming.Clock <= existing.Clock {
			continue
		}

		switch {
		case incoming.State == nil:
			if !known {
				continue
			}
			delete(t.entries, id)
			change.Removed = append(change.Removed, id)
		case !known:
			t.entries[id] = incoming
			change.Added = append(change.Added, id)
		default:
			t.entries[id] = incoming
			change.Updated = append(change.Updated, id)
		}
		applied[id] = incoming
	}
	t.mu.Unlock()

	if len(applied) == 0 {
		return change, nil
	}
	encoded, err := msgpack.Marshal(&updateWire{Entries: applied})
	if err != nil {
		return change, fmt.Errorf("failed to encode presence relay: %w", err)
	}
	change.Update = encoded
	t.observers.Emit(change)
	return change, nil
}

// Remove удаляет записи участников (например, при их отключении) и публикует
// удаление от имени origin
func (t *Tracker) Remove(origin string, ids ...string) Change {
	change := Change{Origin: origin}
	removed := make(map[string]Entry)

	t.mu.Lock()
	for _, id := range ids {
		entry, ok := t.entries[id]
		if !ok || id == t.clientID {
			continue
		}
		delete(t.entries, id)
		removed[id] = Entry{Clock: entry.Clock + 1}
		change.Removed = append(change.Removed, id)
	}
	t.mu.Unlock()

	if len(removed) == 0 {
		return change
	}
	encoded, err := msgpack.Marshal(&updateWire{Entries: removed})
	if err != nil {
		t.logger.Error("Failed to encode presence removal", "error", err)
		return change
	}
	change.Update = encoded
	t.observers.Emit(change)
	return change
}

// Destroy удаляет собственную запись; пиры увидят это как уход участника.
// Возвращает обновление для отправки.
func (t *Tracker) Destroy() []byte {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return nil
	}
	t.destroyed = true
	entry := t.entries[t.clientID]
	tombstone := Entry{Clock: entry.Clock + 1}
	delete(t.entries, t.clientID)
	t.mu.Unlock()

	encoded, err := msgpack.Marshal(&updateWire{Entries: map[string]Entry{t.clientID: tombstone}})
	if err != nil {
		t.logger.Error("Failed to encode presence removal", "error", err)
		return nil
	}
	t.observers.Emit(Change{Origin: OriginLocal, Removed: []string{t.clientID}, Update: encoded})
	return encoded
}

// Observe подписывает callback на изменения. Возвращает функцию отписки.
func (t *Tracker) Observe(fn func(Change)) (unsubscribe func()) {
	return t.observers.Subscribe(fn)
}

func (t *Tracker) encodeLocked(ids []string) ([]byte, error) {
	entries := make(map[string]Entry, len(ids))
	for _, id := range ids {
		if entry, ok := t.entries[id]; ok {
			entries[id] = entry
		}
	}
	return msgpack.Marshal(&updateWire{Entries: entries})
}

func copyState(state *models.PresenceState) *models.PresenceState {
	if state == nil {
		return nil
	}
	c := *state
	if state.Anchor != nil {
		c.Anchor = make(map[string]any, len(state.Anchor))
		for k, v := range state.Anchor {
			c.Anchor[k] = v
		}
	}
	return &c
}

func sortedKeys(m map[string]Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
