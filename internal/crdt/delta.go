package crdt

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/iudanet/gophreview/internal/models"
)

// FieldAlive служебное поле-маркер существования записи.
// true - запись создана, false - удалена (tombstone).
const FieldAlive = "_alive"

const deltaVersion = 1

var (
	aliveTrue  = mustMarshal(true)
	aliveFalse = mustMarshal(false)

	// knownFields поля, которые реплика принимает от пиров
	knownFields = fieldSet()
)

func fieldSet() map[string]bool {
	out := map[string]bool{FieldAlive: true}
	for field := range (&models.Annotation{}).Fields() {
		out[field] = true
	}
	return out
}

// checkRegister проверяет удаленный регистр: известное поле, корректный маркер
// существования и timestamp в пределах (0, horizon]
func checkRegister(reg *models.Register, horizon int64) error {
	if !knownFields[reg.Field] {
		return fmt.Errorf("%w: %q", ErrUnknownField, reg.Field)
	}
	if reg.Field == FieldAlive && !bytes.Equal(reg.Value, aliveTrue) && !bytes.Equal(reg.Value, aliveFalse) {
		return ErrInvalidAlive
	}
	if reg.Timestamp <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTimestamp, reg.Timestamp)
	}
	if reg.Timestamp > horizon {
		return fmt.Errorf("%w: %d", ErrClockSkew, reg.Timestamp)
	}
	return nil
}

// deltaWire бинарное представление дельты
type deltaWire struct {
	Registers []*models.Register `msgpack:"r"`
	Version   uint8              `msgpack:"v"`
}

// Delta набор регистров, которыми обмениваются реплики.
type Delta struct {
	Registers []*models.Register
}

// DecodeDelta декодирует дельту и проверяет каждый регистр.
func DecodeDelta(data []byte) (*Delta, error) {
	var wire deltaWire
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDelta, err)
	}
	if wire.Version != deltaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, wire.Version)
	}

	for i, reg := range wire.Registers {
		if reg == nil || reg.RecordID == "" || reg.Field == "" || reg.NodeID == "" {
			return nil, fmt.Errorf("%w: register %d is incomplete", ErrInvalidDelta, i)
		}
	}

	return &Delta{Registers: wire.Registers}, nil
}

// Encode сериализует дельту
func (d *Delta) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(&deltaWire{Version: deltaVersion, Registers: d.Registers})
	if err != nil {
		return nil, fmt.Errorf("failed to encode delta: %w", err)
	}
	return data, nil
}

// Empty сообщает, что дельта не содержит регистров
func (d *Delta) Empty() bool {
	return len(d.Registers) == 0
}

// RecordIDs возвращает отсортированный список затронутых записей
func (d *Delta) RecordIDs() []string {
	seen := make(map[string]struct{})
	for _, reg := range d.Registers {
		seen[reg.RecordID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Created возвращает id записей, для которых дельта несет маркер создания
func (d *Delta) Created() map[string]bool {
	return d.aliveMarkers(aliveTrue)
}

// Removed возвращает id записей, для которых дельта несет tombstone
func (d *Delta) Removed() map[string]bool {
	return d.aliveMarkers(aliveFalse)
}

func (d *Delta) aliveMarkers(value []byte) map[string]bool {
	out := make(map[string]bool)
	for _, reg := range d.Registers {
		if reg.Field == FieldAlive && bytes.Equal(reg.Value, value) {
			out[reg.RecordID] = true
		}
	}
	return out
}

// Filter возвращает новую дельту только с регистрами записей, для которых keep вернул true
func (d *Delta) Filter(keep func(recordID string) bool) *Delta {
	out := &Delta{}
	for _, reg := range d.Registers {
		if keep(reg.RecordID) {
			out.Registers = append(out.Registers, reg)
		}
	}
	return out
}

// Vector возвращает version vector регистров дельты
func (d *Delta) Vector() VersionVector {
	vv := make(VersionVector)
	for _, reg := range d.Registers {
		vv.Observe(reg)
	}
	return vv
}

func mustMarshal(v any) []byte {
	data, err := msgpack.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// encodeValue сериализует значение поля с сортировкой ключей map,
// чтобы одинаковые значения давали одинаковые байты
func encodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
