package models

// AnnotationType тип аннотации. Набор расширяемый: неизвестные типы
// проходят структурную проверку, но без type-specific ограничений.
type AnnotationType string

// Известные типы аннотаций
const (
	TypeComment    AnnotationType = "comment"
	TypeQuestion   AnnotationType = "question"
	TypeSuggestion AnnotationType = "suggestion"
	TypeReaction   AnnotationType = "reaction"
)

// Status статус обсуждения
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Suggestion описывает предлагаемую правку текста документа.
type Suggestion struct {
	Original    string `msgpack:"original" yaml:"original" json:"original"`
	Replacement string `msgpack:"replacement" yaml:"replacement" json:"replacement"`
}

// Annotation представляет одну аннотацию документа (комментарий, вопрос,
// предложение правки, реакцию). Единица репликации в сессии ревью.
type Annotation struct {
	Anchor     map[string]any `msgpack:"anchor,omitempty" yaml:"anchor,omitempty" json:"anchor,omitempty"`       // Anchor дескриптор позиции в тексте, для этой подсистемы непрозрачен
	Metadata   map[string]any `msgpack:"metadata,omitempty" yaml:"metadata,omitempty" json:"metadata,omitempty"` // Metadata произвольные поля
	Suggestion *Suggestion    `msgpack:"suggestion,omitempty" yaml:"suggestion,omitempty" json:"suggestion,omitempty"`
	ID         string         `msgpack:"id" yaml:"id" json:"id" validate:"required,max=128,printascii"`
	Type       AnnotationType `msgpack:"type" yaml:"type" json:"type" validate:"required,max=32"`
	Content    string         `msgpack:"content" yaml:"content" json:"content" validate:"max=65536"`
	Author     string         `msgpack:"author,omitempty" yaml:"author,omitempty" json:"author,omitempty" validate:"max=128"`
	Status     Status         `msgpack:"status" yaml:"status" json:"status" validate:"required,oneof=open resolved"`
	ParentID   string         `msgpack:"parent_id,omitempty" yaml:"parent_id,omitempty" json:"parent_id,omitempty" validate:"max=128"`
	Timestamp  int64          `msgpack:"timestamp" yaml:"timestamp" json:"timestamp" validate:"gte=0"` // Timestamp время создания, unix millis
}

// Fields раскладывает аннотацию на реплицируемые поля.
// Ключи совпадают с msgpack-тегами, чтобы запись можно было собрать обратно.
func (a *Annotation) Fields() map[string]any {
	return map[string]any{
		"type":       a.Type,
		"content":    a.Content,
		"author":     a.Author,
		"timestamp":  a.Timestamp,
		"status":     a.Status,
		"parent_id":  a.ParentID,
		"anchor":     a.Anchor,
		"suggestion": a.Suggestion,
		"metadata":   a.Metadata,
	}
}

// Clone создает глубокую копию аннотации
func (a *Annotation) Clone() *Annotation {
	c := *a
	if a.Suggestion != nil {
		s := *a.Suggestion
		c.Suggestion = &s
	}
	c.Anchor = cloneMap(a.Anchor)
	c.Metadata = cloneMap(a.Metadata)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
