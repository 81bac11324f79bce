package validation

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/iudanet/gophreview/internal/models"
)

// Op вид изменения аннотации
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Причины отказа
const (
	ReasonRateLimited = "rate limit exceeded"
	ReasonDuplicate   = "annotation already exists"
	ReasonNotFound    = "annotation does not exist"
	ReasonMalformed   = "malformed annotation"
)

// Snapshot состояние хранилища: id -> запись. nil-значение означает
// существующую запись, поля которой не читаются.
type Snapshot map[string]*models.Annotation

// Limiter ограничивает частоту операций по ключу (peerId)
type Limiter interface {
	Allow(key string) bool
	Reset(key string)
}

// Result результат проверки одной операции
type Result struct {
	Reason string
	Valid  bool
}

func admit() Result { return Result{Valid: true} }

func reject(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Rejection отказ по одной записи пакета
type Rejection struct {
	AnnotationID string
	Op           Op
	Reason       string
}

// Admission принятая операция пакета
type Admission struct {
	AnnotationID string
	Op           Op
}

// Batch описывает входящую дельту в терминах снимков до и после слияния.
type Batch struct {
	Before  Snapshot
	After   Snapshot
	Created map[string]bool // записи, для которых дельта несет маркер создания
	// Touched записи, регистры которых выиграли слияние. nil - определить
	// по различию снимков.
	Touched map[string]bool
	IDs     []string // все записи, затронутые дельтой
}

// touched сообщает, изменит ли слияние регистры записи
func (b Batch) touched(id string) bool {
	if b.Touched != nil {
		return b.Touched[id]
	}
	return !reflect.DeepEqual(b.Before[id], b.After[id])
}

// BatchResult итог проверки пакета
type BatchResult struct {
	Admitted []Admission
	Rejected []Rejection
}

// AdmittedIDs возвращает множество принятых записей
func (r BatchResult) AdmittedIDs() map[string]bool {
	out := make(map[string]bool, len(r.Admitted))
	for _, a := range r.Admitted {
		out[a.AnnotationID] = true
	}
	return out
}

// CanWrite сообщает, может ли роль изменять аннотации
func CanWrite(role models.Role) bool {
	return role != models.RoleViewer
}

// Validator принимает решения о допуске изменений. Не зависит от транспорта.
type Validator struct {
	limiter Limiter
}

// NewValidator создает валидатор. limiter может быть nil - тогда частота не ограничивается.
func NewValidator(limiter Limiter) *Validator {
	return &Validator{limiter: limiter}
}

// ResetPeer сбрасывает счетчик частоты пира (при отключении)
func (v *Validator) ResetPeer(peerID string) {
	if v.limiter != nil {
		v.limiter.Reset(peerID)
	}
}

// gate общая проверка роли и частоты
func (v *Validator) gate(peerID string, role models.Role) (Result, bool) {
	if !CanWrite(role) {
		return reject("role %s cannot modify annotations", role), false
	}
	if v.limiter != nil && !v.limiter.Allow(peerID) {
		return reject(ReasonRateLimited), false
	}
	return Result{}, true
}

// ValidateAdd проверяет создание записи в состоянии state
func (v *Validator) ValidateAdd(state Snapshot, record *models.Annotation, peerID string, role models.Role) Result {
	return v.validateAdd(state, state, record, peerID, role)
}

// validateAdd проверяет уникальность id по before, а родителя - по after,
// чтобы родитель и ответ могли прийти в одной дельте
func (v *Validator) validateAdd(before, after Snapshot, record *models.Annotation, peerID string, role models.Role) Result {
	if res, ok := v.gate(peerID, role); !ok {
		return res
	}
	if record == nil {
		return reject(ReasonMalformed)
	}
	if _, exists := before[record.ID]; exists {
		return reject(ReasonDuplicate)
	}
	if err := ValidateAnnotation(record); err != nil {
		return reject("%s: %v", ReasonMalformed, err)
	}
	if record.ParentID != "" {
		if parent, exists := after[record.ParentID]; !exists || parent == nil {
			return reject("parent annotation %s does not exist", record.ParentID)
		}
	}
	return admit()
}

// ValidateUpdate проверяет изменение существующей записи. Обновление не создает запись.
func (v *Validator) ValidateUpdate(state Snapshot, record *models.Annotation, peerID string, role models.Role) Result {
	if res, ok := v.gate(peerID, role); !ok {
		return res
	}
	if record == nil {
		return reject(ReasonMalformed)
	}
	if _, exists := state[record.ID]; !exists {
		return reject(ReasonNotFound)
	}
	if err := ValidateAnnotation(record); err != nil {
		return reject("%s: %v", ReasonMalformed, err)
	}
	return admit()
}

// ValidateDelete проверяет удаление записи
func (v *Validator) ValidateDelete(state Snapshot, id string, peerID string, role models.Role) Result {
	if res, ok := v.gate(peerID, role); !ok {
		return res
	}
	if _, exists := state[id]; !exists {
		return reject(ReasonNotFound)
	}
	return admit()
}

// ValidateBatch классифицирует каждую затронутую запись (add/update/delete)
// по снимкам до и после слияния и проверяет ее отдельно.
// Ответ, чей родитель отклонен в этом же пакете, тоже отклоняется.
func (v *Validator) ValidateBatch(batch Batch, peerID string, role models.Role) BatchResult {
	var result BatchResult
	ids := append([]string(nil), batch.IDs...)
	sort.Strings(ids)

	if !CanWrite(role) {
		for _, id := range ids {
			result.Rejected = append(result.Rejected, Rejection{
				AnnotationID: id,
				Op:           classify(batch, id),
				Reason:       fmt.Sprintf("role %s cannot modify annotations", role),
			})
		}
		return result
	}

	admitted := make(map[string]Op)
	var adds []string
	for _, id := range ids {
		op := classify(batch, id)
		var res Result

		switch op {
		case OpAdd:
			res = v.validateAdd(batch.Before, batch.After, withID(batch.After[id], id), peerID, role)
		case OpUpdate:
			if !batch.touched(id) {
				// Регистры проиграли слияние: сливать нечего
				admitted[id] = op
				continue
			}
			res = v.ValidateUpdate(batch.Before, withID(batch.After[id], id), peerID, role)
		case OpDelete:
			res = v.ValidateDelete(batch.Before, id, peerID, role)
		}

		if !res.Valid {
			result.Rejected = append(result.Rejected, Rejection{AnnotationID: id, Op: op, Reason: res.Reason})
			continue
		}
		admitted[id] = op
		if op == OpAdd {
			adds = append(adds, id)
		}
	}

	// Родитель, добавленный в этом пакете, должен быть принят
	for changed := true; changed; {
		changed = false
		for _, id := range adds {
			if _, ok := admitted[id]; !ok {
				continue
			}
			parentID := batch.After[id].ParentID
			if parentID == "" {
				continue
			}
			_, existed := batch.Before[parentID]
			_, parentAdmitted := admitted[parentID]
			if !existed && !parentAdmitted {
				delete(admitted, id)
				result.Rejected = append(result.Rejected, Rejection{
					AnnotationID: id,
					Op:           OpAdd,
					Reason:       fmt.Sprintf("parent annotation %s does not exist", parentID),
				})
				changed = true
			}
		}
	}

	for _, id := range ids {
		if op, ok := admitted[id]; ok {
			result.Admitted = append(result.Admitted, Admission{AnnotationID: id, Op: op})
		}
	}
	return result
}

// classify определяет вид операции по снимкам
func classify(batch Batch, id string) Op {
	_, before := batch.Before[id]
	_, after := batch.After[id]

	switch {
	case !before && after:
		return OpAdd
	case before && after && batch.Created[id]:
		// Маркер создания для уже существующей записи - попытка дубликата
		return OpAdd
	case before && after:
		return OpUpdate
	case before && !after:
		return OpDelete
	default:
		// Удаление или обновление записи, которой нет
		return OpDelete
	}
}

// withID возвращает запись с гарантированным id (nil остается nil)
func withID(record *models.Annotation, id string) *models.Annotation {
	if record == nil {
		return nil
	}
	if record.ID != id {
		c := record.Clone()
		c.ID = id
		return c
	}
	return record
}
