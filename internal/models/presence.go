package models

// PresenceState эфемерное состояние участника: кто он, где смотрит, печатает ли.
// Никогда не сохраняется на диск.
type PresenceState struct {
	Anchor     map[string]any `msgpack:"anchor,omitempty" json:"anchor,omitempty"`
	Name       string         `msgpack:"name" json:"name"`
	Color      string         `msgpack:"color" json:"color"`
	Section    string         `msgpack:"section,omitempty" json:"section,omitempty"`
	LastActive int64          `msgpack:"last_active" json:"last_active"` // LastActive unix millis
	Typing     bool           `msgpack:"typing" json:"typing"`
}
