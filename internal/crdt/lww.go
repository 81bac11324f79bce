package crdt

import (
	"sort"

	"github.com/iudanet/gophreview/internal/models"
)

// lwwMap представляет отображение record -> field -> LWW-регистр.
// Каждый регистр сливается независимо, поэтому конкурентные правки
// разных полей одной аннотации не теряются.
// Операция слияния коммутативна, ассоциативна и идемпотентна.
// Синхронизацию обеспечивает Store.
type lwwMap struct {
	records map[string]map[string]*models.Register // map[recordID]map[field]register
}

func newLWWMap() *lwwMap {
	return &lwwMap{records: make(map[string]map[string]*models.Register)}
}

// apply сливает регистр в map.
// Возвращает true, если регистр был добавлен или заменил более старый.
func (m *lwwMap) apply(reg *models.Register) bool {
	fields, exists := m.records[reg.RecordID]
	if !exists {
		fields = make(map[string]*models.Register)
		m.records[reg.RecordID] = fields
	}

	existing, exists := fields[reg.Field]

	// Если регистра нет - добавляем
	if !exists {
		fields[reg.Field] = reg.Clone()
		return true
	}

	// Если новая версия новее - обновляем
	if reg.IsNewerThan(existing) {
		fields[reg.Field] = reg.Clone()
		return true
	}

	// Существующая версия новее - не обновляем
	return false
}

// get возвращает регистр поля или nil
func (m *lwwMap) get(recordID, field string) *models.Register {
	return m.records[recordID][field]
}

// fields возвращает все регистры записи
func (m *lwwMap) fields(recordID string) map[string]*models.Register {
	return m.records[recordID]
}

// recordIDs возвращает идентификаторы всех записей (включая удаленные) в порядке сортировки
func (m *lwwMap) recordIDs() []string {
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// since возвращает регистры, которых нет у владельца вектора vv.
// vv == nil означает полный снимок. Порядок детерминированный.
func (m *lwwMap) since(vv VersionVector) []*models.Register {
	var out []*models.Register
	for _, id := range m.recordIDs() {
		fields := m.records[id]
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			reg := fields[name]
			if vv != nil && vv.Covers(reg) {
				continue
			}
			out = append(out, reg.Clone())
		}
	}
	return out
}

// vector строит version vector по всем регистрам
func (m *lwwMap) vector() VersionVector {
	vv := make(VersionVector)
	for _, fields := range m.records {
		for _, reg := range fields {
			vv.Observe(reg)
		}
	}
	return vv
}

// clone создает глубокую копию map
func (m *lwwMap) clone() *lwwMap {
	out := newLWWMap()
	for id, fields := range m.records {
		copied := make(map[string]*models.Register, len(fields))
		for name, reg := range fields {
			copied[name] = reg.Clone()
		}
		out.records[id] = copied
	}
	return out
}
