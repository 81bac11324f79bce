package models

import "time"

// Decision запись журнала допуска изменений
type Decision struct {
	CreatedAt    time.Time `json:"created_at"`
	SessionID    string    `json:"session_id"`
	PeerID       string    `json:"peer_id"`
	AnnotationID string    `json:"annotation_id"`
	Action       string    `json:"action"` // Action add, update или delete
	Reason       string    `json:"reason,omitempty"`
	ID           int64     `json:"id"`
	Admitted     bool      `json:"admitted"`
}
