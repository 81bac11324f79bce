package crdt

import (
	"math"
	"sync"

	"github.com/google/uuid"
)

// LamportClock представляет логические часы Лампорта для упорядочивания записей
// в хранилище без необходимости синхронизации физического времени.
type LamportClock struct {
	nodeID  string     // уникальный идентификатор узла
	counter int64      // монотонно возрастающий счетчик
	mu      sync.Mutex // мьютекс для потокобезопасности
}

// NewLamportClock создает часы со случайным идентификатором узла (UUID).
func NewLamportClock() *LamportClock {
	return NewLamportClockWithNodeID(uuid.New().String())
}

// NewLamportClockWithNodeID создает часы с заданным идентификатором узла.
func NewLamportClockWithNodeID(nodeID string) *LamportClock {
	return &LamportClock{nodeID: nodeID}
}

// Tick увеличивает счетчик и возвращает новое значение timestamp.
// Вызывается при каждой локальной записи. На math.MaxInt64 счетчик останавливается.
func (lc *LamportClock) Tick() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.counter < math.MaxInt64 {
		lc.counter++
	}
	return lc.counter
}

// Witness сдвигает часы вперед до удаленного timestamp, не увеличивая его.
// Следующий Tick гарантированно вернет значение больше всех увиденных.
func (lc *LamportClock) Witness(remoteTimestamp int64) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if remoteTimestamp > lc.counter {
		lc.counter = remoteTimestamp
	}
}

// Horizon возвращает наибольший timestamp, который реплика примет от пира:
// текущее значение счетчика плюс ahead (без переполнения).
func (lc *LamportClock) Horizon(ahead int64) int64 {
	now := lc.GetTimestamp()
	if ahead <= 0 {
		return now
	}
	if now > math.MaxInt64-ahead {
		return math.MaxInt64
	}
	return now + ahead
}

// GetTimestamp возвращает текущее значение счетчика без его изменения.
func (lc *LamportClock) GetTimestamp() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.counter
}

// GetNodeID возвращает идентификатор узла.
func (lc *LamportClock) GetNodeID() string {
	return lc.nodeID
}

// clone копирует часы вместе с идентификатором узла
func (lc *LamportClock) clone() *LamportClock {
	return &LamportClock{nodeID: lc.nodeID, counter: lc.GetTimestamp()}
}
