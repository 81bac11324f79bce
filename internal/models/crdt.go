package models

// Register представляет LWW-регистр одного поля одной аннотации.
// Это минимальная единица репликации: дельта между узлами - это набор регистров.
type Register struct {
	RecordID  string `msgpack:"r"` // RecordID идентификатор аннотации
	Field     string `msgpack:"f"` // Field имя поля (или служебный маркер существования)
	NodeID    string `msgpack:"n"` // NodeID идентификатор узла, записавшего эту версию
	Value     []byte `msgpack:"v"` // Value msgpack-представление значения поля
	Timestamp int64  `msgpack:"t"` // Timestamp Lamport timestamp записи
}

// IsNewerThan сравнивает два регистра по правилу LWW (Last-Write-Wins):
// 1. Сначала сравнивается Timestamp (больший выигрывает)
// 2. При равных Timestamp сравнивается NodeID (лексикографически)
// Возвращает true, если current регистр новее, чем other.
func (r *Register) IsNewerThan(other *Register) bool {
	if r.Timestamp > other.Timestamp {
		return true
	}
	if r.Timestamp < other.Timestamp {
		return false
	}
	// Timestamps равны - сравниваем NodeID для детерминизма
	return r.NodeID > other.NodeID
}

// Clone создает глубокую копию регистра
func (r *Register) Clone() *Register {
	value := make([]byte, len(r.Value))
	copy(value, r.Value)

	return &Register{
		RecordID:  r.RecordID,
		Field:     r.Field,
		NodeID:    r.NodeID,
		Value:     value,
		Timestamp: r.Timestamp,
	}
}
