package models

import "time"

// Role роль участника сессии
type Role string

const (
	RoleMaster   Role = "master"
	RoleReviewer Role = "reviewer"
	RoleViewer   Role = "viewer"
)

// Valid проверяет, что роль входит в известный набор
func (r Role) Valid() bool {
	switch r {
	case RoleMaster, RoleReviewer, RoleViewer:
		return true
	}
	return false
}

// Session описывает один запущенный экземпляр ревью документа.
type Session struct {
	CreatedAt        time.Time     `json:"created_at"`
	SessionID        string        `json:"session_id"` // SessionID KSUID, сортируется по времени создания
	MasterName       string        `json:"master_name"`
	DocumentPath     string        `json:"document_path"`
	Port             int           `json:"port"`
	AutoSaveInterval time.Duration `json:"auto_save_interval"`
	Sidecar          bool          `json:"sidecar"` // Sidecar аннотации пишутся рядом с документом, а не внутрь
}

// SessionMeta метаданные сохраненной сессии
type SessionMeta struct {
	Session
	UpdatedAt time.Time `json:"updated_at"`

	// PassphraseHash/PassphraseSalt сохраняются, чтобы возобновленная
	// сессия требовала ту же парольную фразу
	PassphraseHash string `json:"passphrase_hash,omitempty"`
	PassphraseSalt string `json:"passphrase_salt,omitempty"`
}

// Peer один подключенный участник
type Peer struct {
	ConnectedAt time.Time `json:"connected_at"`
	PeerID      string    `json:"peer_id"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
}

// StoredSession полный снимок сессии на диске
type StoredSession struct {
	Meta  SessionMeta `json:"meta"`
	State []byte      `json:"-"` // State бинарный снимок реплицируемого хранилища
	Peers []Peer      `json:"peers"`
}
