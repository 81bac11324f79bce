package master

import (
	"github.com/iudanet/gophreview/internal/models"
)

// EventType тип события мастер-сессии
type EventType string

const (
	EventStarted      EventType = "started"
	EventStopped      EventType = "stopped"
	EventPeerJoined   EventType = "peer_joined"
	EventPeerLeft     EventType = "peer_left"
	EventBlockAdded   EventType = "block_added"
	EventBlockUpdated EventType = "block_updated"
	EventBlockDeleted EventType = "block_deleted"
	EventRejected     EventType = "rejected"
	EventRoleChanged  EventType = "role_changed"
	EventSaved        EventType = "saved"
	EventError        EventType = "error"
)

// Event событие мастер-сессии. Заполнены только поля, относящиеся к Type.
type Event struct {
	Err          error
	Block        *models.Annotation // block_added, block_updated
	Type         EventType
	PeerID       string
	Name         string
	AnnotationID string
	Reason       string
	Origin       string // peerId автора изменения или "local"
	Role         models.Role
	ChangedBy    string
}
