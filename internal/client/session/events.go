package session

import (
	"time"

	"github.com/iudanet/gophreview/internal/models"
)

// EventType тип события клиентской сессии
type EventType string

const (
	EventConnected       EventType = "connected"
	EventDisconnected    EventType = "disconnected"
	EventReconnecting    EventType = "reconnecting"
	EventReconnectFailed EventType = "reconnect_failed"
	EventSessionEnded    EventType = "session_ended"
	EventSynced          EventType = "synced"
	EventBlockAdded      EventType = "block_added"
	EventBlockUpdated    EventType = "block_updated"
	EventBlockDeleted    EventType = "block_deleted"
	EventRejected        EventType = "rejected"
	EventRoleChanged     EventType = "role_changed"
	EventPeerJoined      EventType = "peer_joined"
	EventPeerLeft        EventType = "peer_left"
	EventPresence        EventType = "presence"
	EventDocContent      EventType = "doc_content"
	EventError           EventType = "error"
)

// Event событие клиентской сессии. Заполнены только поля, относящиеся к Type.
type Event struct {
	Err          error
	Block        *models.Annotation
	Type         EventType
	PeerID       string
	Name         string
	AnnotationID string
	Reason       string
	Origin       string // local или master для событий об аннотациях
	Role         models.Role
	ChangedBy    string
	Text         string // текст документа для doc_content
	Path         string
	Attempt      int
	Delay        time.Duration // пауза перед попыткой для reconnecting
	Code         int           // код закрытия для disconnected
}
