// Package crdt реализует реплицируемое хранилище аннотаций.
//
// Хранилище - это map record -> field -> LWW-регистр с часами Лампорта.
// Реплики обмениваются дельтами (наборами регистров); две реплики, применившие
// одинаковый набор дельт в любом порядке, сходятся к одинаковому содержимому.
package crdt

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/iudanet/gophreview/internal/events"
	"github.com/iudanet/gophreview/internal/models"
)

// OriginLocal помечает изменения, сделанные через Set/Delete на этой реплике
const OriginLocal = "local"

// MaxClockAhead насколько timestamp регистра пира может опережать часы реплики.
// Честный пир опережает мастера не больше чем на число своих правок без связи.
const MaxClockAhead int64 = 1 << 20

// Change описывает одно наблюдаемое изменение хранилища.
type Change struct {
	Origin  string   // OriginLocal или идентификатор источника удаленной дельты
	Added   []string // созданные записи
	Updated []string // измененные записи
	Deleted []string // удаленные записи
	Delta   []byte   // закодированные регистры, которые реально изменили состояние
}

// IsLocal сообщает, что изменение сделано локально и его нужно отправить дальше
func (c Change) IsLocal() bool {
	return c.Origin == OriginLocal
}

// Parser разбирает текст документа в список аннотаций
type Parser interface {
	Parse(text string) ([]models.Annotation, error)
}

// Serializer записывает аннотации обратно в текст документа
type Serializer interface {
	Serialize(body string, records []models.Annotation) (string, error)
}

// Store реплика хранилища аннотаций. Безопасна для конкурентного использования.
type Store struct {
	clock     *LamportClock
	state     *lwwMap
	observers *events.Bus[Change]
	logger    *slog.Logger
	mu        sync.RWMutex
}

// NewStore создает пустую реплику. nodeID пустой - сгенерировать случайный.
func NewStore(nodeID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	clock := NewLamportClock()
	if nodeID != "" {
		clock = NewLamportClockWithNodeID(nodeID)
	}
	return &Store{
		clock:     clock,
		state:     newLWWMap(),
		observers: events.NewBus[Change](logger),
		logger:    logger,
	}
}

// FromText создает реплику, заполненную аннотациями из текста документа.
func FromText(nodeID, text string, parser Parser, logger *slog.Logger) (*Store, error) {
	records, err := parser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse annotations: %w", err)
	}

	s := NewStore(nodeID, logger)
	for i := range records {
		if err := s.Set(records[i]); err != nil {
			return nil, fmt.Errorf("failed to seed annotation %q: %w", records[i].ID, err)
		}
	}
	return s, nil
}

// NodeID возвращает идентификатор узла реплики
func (s *Store) NodeID() string {
	return s.clock.GetNodeID()
}

// Get возвращает аннотацию по id. Удаленные и нечитаемые записи не возвращаются.
func (s *Store) Get(id string) (*models.Annotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.aliveLocked(id) {
		return nil, false
	}
	record, err := s.recordLocked(id)
	if err != nil {
		return nil, false
	}
	return record, true
}

// Has сообщает, существует ли запись (даже если ее поля не читаются)
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aliveLocked(id)
}

// List возвращает живые аннотации в стабильном порядке: по timestamp, затем по id.
func (s *Store) List() []models.Annotation {
	snapshot := s.Snapshot()

	out := make([]models.Annotation, 0, len(snapshot))
	for _, record := range snapshot {
		if record != nil {
			out = append(out, *record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Snapshot возвращает все живые записи. Запись, поля которой не декодируются
// (например, от пира с несовместимыми значениями), присутствует со значением nil.
func (s *Store) Snapshot() map[string]*models.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*models.Annotation)
	for _, id := range s.state.recordIDs() {
		if !s.aliveLocked(id) {
			continue
		}
		record, err := s.recordLocked(id)
		if err != nil {
			s.logger.Debug("Undecodable record in store", "id", id, "error", err)
			out[id] = nil
			continue
		}
		out[id] = record
	}
	return out
}

// Set вставляет или обновляет аннотацию. Записываются только изменившиеся поля,
// поэтому конкурентные правки разных полей сливаются без потерь.
func (s *Store) Set(record models.Annotation) error {
	if record.ID == "" {
		return ErrEmptyID
	}

	values := make(map[string][]byte)
	for field, value := range record.Fields() {
		encoded, err := encodeValue(value)
		if err != nil {
			return fmt.Errorf("failed to encode field %q: %w", field, err)
		}
		values[field] = encoded
	}

	s.mu.Lock()
	existed := s.aliveLocked(record.ID)

	names := make([]string, 0, len(values))
	for field := range values {
		names = append(names, field)
	}
	sort.Strings(names)

	var pending []*models.Register
	if !existed {
		pending = append(pending, &models.Register{RecordID: record.ID, Field: FieldAlive, Value: aliveTrue})
	}
	for _, field := range names {
		if existed {
			if current := s.state.get(record.ID, field); current != nil && bytes.Equal(current.Value, values[field]) {
				continue
			}
		}
		pending = append(pending, &models.Register{RecordID: record.ID, Field: field, Value: values[field]})
	}

	if len(pending) == 0 {
		s.mu.Unlock()
		return nil
	}

	written := s.writeLocked(pending)
	s.mu.Unlock()

	if len(written) > 0 {
		change := Change{Origin: OriginLocal}
		if existed {
			change.Updated = []string{record.ID}
		} else {
			change.Added = []string{record.ID}
		}
		s.emit(change, written)
	}
	if len(written) < len(pending) {
		return fmt.Errorf("%w: %s", ErrStaleWrite, record.ID)
	}
	return nil
}

// Delete помечает запись удаленной. Возвращает false, если записи не было
// или tombstone проиграл слияние.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	if !s.aliveLocked(id) {
		s.mu.Unlock()
		return false
	}
	written := s.writeLocked([]*models.Register{{RecordID: id, Field: FieldAlive, Value: aliveFalse}})
	s.mu.Unlock()

	if len(written) == 0 {
		return false
	}
	s.emit(Change{Origin: OriginLocal, Deleted: []string{id}}, written)
	return true
}

// EncodeFull возвращает полное состояние реплики в виде дельты
func (s *Store) EncodeFull() ([]byte, error) {
	return s.EncodeSince(nil)
}

// Since возвращает регистры, которых нет у владельца вектора vv
func (s *Store) Since(vv VersionVector) *Delta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Delta{Registers: s.state.since(vv)}
}

// EncodeSince возвращает закодированную дельту Since(vv)
func (s *Store) EncodeSince(vv VersionVector) ([]byte, error) {
	return s.Since(vv).Encode()
}

// StateVector возвращает version vector реплики
func (s *Store) StateVector() VersionVector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.vector()
}

// Screen делит дельту пира по записям. Запись попадает в accepted, только если
// все ее регистры допустимы: известное поле, timestamp > 0 и не дальше
// MaxClockAhead от часов реплики. Остальные записи возвращаются с причиной.
func (s *Store) Screen(delta *Delta) (accepted *Delta, rejected map[string]error) {
	horizon := s.clock.Horizon(MaxClockAhead)

	rejected = make(map[string]error)
	for _, reg := range delta.Registers {
		if _, bad := rejected[reg.RecordID]; bad {
			continue
		}
		if err := checkRegister(reg, horizon); err != nil {
			rejected[reg.RecordID] = err
		}
	}
	accepted = delta.Filter(func(id string) bool {
		_, bad := rejected[id]
		return !bad
	})
	return accepted, rejected
}

// ApplyDelta декодирует и сливает удаленную дельту.
func (s *Store) ApplyDelta(data []byte, origin string) (Change, error) {
	delta, err := DecodeDelta(data)
	if err != nil {
		return Change{}, err
	}
	return s.Apply(delta, origin), nil
}

// Apply сливает декодированную дельту. Наблюдатели получают изменение с
// переданным origin; пустое изменение не публикуется.
func (s *Store) Apply(delta *Delta, origin string) Change {
	change := Change{Origin: origin}

	s.mu.Lock()
	ids := delta.RecordIDs()
	before := make(map[string]bool, len(ids))
	for _, id := range ids {
		before[id] = s.aliveLocked(id)
	}

	touched := make(map[string]bool)
	var applied []*models.Register
	var maxTimestamp int64
	for _, reg := range delta.Registers {
		if reg.Timestamp > maxTimestamp {
			maxTimestamp = reg.Timestamp
		}
		if s.state.apply(reg) {
			touched[reg.RecordID] = true
			applied = append(applied, reg)
		}
	}
	s.clock.Witness(maxTimestamp)

	for _, id := range ids {
		after := s.aliveLocked(id)
		switch {
		case !before[id] && after:
			change.Added = append(change.Added, id)
		case before[id] && !after:
			change.Deleted = append(change.Deleted, id)
		case before[id] && after && touched[id]:
			change.Updated = append(change.Updated, id)
		}
	}
	s.mu.Unlock()

	s.emit(change, applied)
	return change
}

// Observe подписывает callback на изменения. Возвращает функцию отписки.
func (s *Store) Observe(fn func(Change)) (unsubscribe func()) {
	return s.observers.Subscribe(fn)
}

// Materialize сериализует живые аннотации в текст документа
func (s *Store) Materialize(serializer Serializer, body string) (string, error) {
	return serializer.Serialize(body, s.List())
}

// Clone возвращает независимую копию реплики без наблюдателей.
// Используется для проверки дельты до применения к основному хранилищу.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &Store{
		clock:     s.clock.clone(),
		state:     s.state.clone(),
		observers: events.NewBus[Change](s.logger),
		logger:    s.logger,
	}
}

// writeLocked проставляет регистрам узел и один общий timestamp, применяет их
// и возвращает только регистры, выигравшие слияние
func (s *Store) writeLocked(pending []*models.Register) []*models.Register {
	ts := s.clock.Tick()
	written := make([]*models.Register, 0, len(pending))
	for _, reg := range pending {
		reg.NodeID = s.clock.GetNodeID()
		reg.Timestamp = ts
		if s.state.apply(reg) {
			written = append(written, reg)
		} else {
			s.logger.Warn("Local write lost the merge", "id", reg.RecordID, "field", reg.Field, "timestamp", ts)
		}
	}
	return written
}

func (s *Store) emit(change Change, registers []*models.Register) {
	if len(registers) == 0 {
		return
	}
	data, err := (&Delta{Registers: registers}).Encode()
	if err != nil {
		s.logger.Error("Failed to encode change delta", "error", err)
		return
	}
	change.Delta = data
	s.observers.Emit(change)
}

func (s *Store) aliveLocked(id string) bool {
	reg := s.state.get(id, FieldAlive)
	return reg != nil && bytes.Equal(reg.Value, aliveTrue)
}

// recordLocked собирает аннотацию из регистров полей
func (s *Store) recordLocked(id string) (*models.Annotation, error) {
	raw := make(map[string]msgpack.RawMessage)
	for field, reg := range s.state.fields(id) {
		if field == FieldAlive {
			continue
		}
		raw[field] = msgpack.RawMessage(reg.Value)
	}
	idValue, err := msgpack.Marshal(id)
	if err != nil {
		return nil, err
	}
	raw["id"] = idValue

	data, err := msgpack.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var record models.Annotation
	if err := msgpack.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record %q: %w", id, err)
	}
	return &record, nil
}
