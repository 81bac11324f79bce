// Package api описывает протокол обмена между мастером сессии и пирами:
// закрытый набор конвертов, бинарный кодек и коды закрытия соединения.
package api

import "github.com/iudanet/gophreview/internal/models"

// Kind тип конверта
type Kind string

// Типы конвертов
const (
	KindAuth       Kind = "auth"
	KindAuthOK     Kind = "auth_ok"
	KindSync       Kind = "sync"
	KindAwareness  Kind = "awareness"
	KindReject     Kind = "reject"
	KindSession    Kind = "session"
	KindRoleChange Kind = "role_change"
	KindDocContent Kind = "doc_content"
	KindPing       Kind = "ping"
	KindPong       Kind = "pong"
)

// SessionAction действие в конверте session
type SessionAction string

const (
	ActionJoin  SessionAction = "join"
	ActionLeave SessionAction = "leave"
	ActionEnd   SessionAction = "end"
)

// Коды закрытия websocket-соединения
const (
	CloseNormal       = 1000 // штатное завершение сессии или отключение
	CloseInternal     = 1011 // внутренняя ошибка мастера
	CloseAuthRequired = 4001 // первое сообщение не auth
	CloseMalformed    = 4002 // нечитаемый конверт
	CloseAuthFailed   = 4003 // неверный токен или пароль
	CloseReplaced     = 4004 // подключился пир с тем же peerId
	CloseOverflow     = 4005 // переполнена очередь отправки
)

// IsTerminalClose сообщает, что после закрытия с этим кодом переподключаться не нужно
func IsTerminalClose(code int) bool {
	return code == CloseAuthFailed || code == CloseReplaced
}

// Envelope конверт протокола. Для каждого Kind заполнено ровно свое поле полезной нагрузки;
// sync и awareness несут непрозрачные бинарные данные в Data.
type Envelope struct {
	Auth       *Auth       `msgpack:"auth,omitempty"`
	AuthOK     *AuthOK     `msgpack:"auth_ok,omitempty"`
	Reject     *Reject     `msgpack:"reject,omitempty"`
	Session    *SessionMsg `msgpack:"session,omitempty"`
	RoleChange *RoleChange `msgpack:"role_change,omitempty"`
	DocContent *DocContent `msgpack:"doc_content,omitempty"`
	Kind       Kind        `msgpack:"k"`
	Data       []byte      `msgpack:"d,omitempty"`
}

// Auth первое сообщение пира
type Auth struct {
	PeerID     string      `msgpack:"peer_id"`
	Name       string      `msgpack:"name"`
	Role       models.Role `msgpack:"role"`
	Token      string      `msgpack:"token,omitempty"`
	Passphrase string      `msgpack:"passphrase,omitempty"`
}

// AuthOK подтверждение аутентификации. Role - роль, которую мастер назначил пиру.
type AuthOK struct {
	Session SessionInfo `msgpack:"session"`
	PeerID  string      `msgpack:"peer_id"`
	Role    models.Role `msgpack:"role"`
}

// SessionInfo описание сессии для пиров
type SessionInfo struct {
	Peers            []PeerInfo `msgpack:"peers" json:"peers"`
	SessionID        string     `msgpack:"session_id" json:"session_id"`
	MasterName       string     `msgpack:"master_name" json:"master_name"`
	DocumentPath     string     `msgpack:"document_path" json:"document_path"`
	CreatedAt        int64      `msgpack:"created_at" json:"created_at"` // unix millis
	AutoSaveInterval int64      `msgpack:"autosave_ms" json:"autosave_ms"`
	Port             int        `msgpack:"port" json:"port"`
	Sidecar          bool       `msgpack:"sidecar" json:"sidecar"`
}

// PeerInfo запись ростера
type PeerInfo struct {
	PeerID      string      `msgpack:"peer_id" json:"peer_id"`
	Name        string      `msgpack:"name" json:"name"`
	Role        models.Role `msgpack:"role" json:"role"`
	ConnectedAt int64       `msgpack:"connected_at" json:"connected_at"` // unix millis
}

// Reject отказ в принятии изменения. AnnotationID пустой, если отказ не относится к записи.
type Reject struct {
	AnnotationID string `msgpack:"annotation_id"`
	Reason       string `msgpack:"reason"`
}

// SessionMsg событие жизненного цикла сессии
type SessionMsg struct {
	Action SessionAction `msgpack:"action"`
	PeerID string        `msgpack:"peer_id,omitempty"`
	Name   string        `msgpack:"name,omitempty"`
}

// RoleChange уведомление о смене роли пира
type RoleChange struct {
	PeerID    string      `msgpack:"peer_id"`
	NewRole   models.Role `msgpack:"new_role"`
	ChangedBy string      `msgpack:"changed_by"`
}

// DocContent текст документа
type DocContent struct {
	Text string `msgpack:"text"`
	Path string `msgpack:"path"`
}

// NewAuth создает конверт auth
func NewAuth(auth Auth) *Envelope {
	return &Envelope{Kind: KindAuth, Auth: &auth}
}

// NewAuthOK создает конверт auth_ok
func NewAuthOK(peerID string, role models.Role, info SessionInfo) *Envelope {
	return &Envelope{Kind: KindAuthOK, AuthOK: &AuthOK{PeerID: peerID, Role: role, Session: info}}
}

// NewSync создает конверт с дельтой хранилища
func NewSync(data []byte) *Envelope {
	return &Envelope{Kind: KindSync, Data: data}
}

// NewAwareness создает конверт с дельтой присутствия
func NewAwareness(data []byte) *Envelope {
	return &Envelope{Kind: KindAwareness, Data: data}
}

// NewReject создает конверт reject
func NewReject(annotationID, reason string) *Envelope {
	return &Envelope{Kind: KindReject, Reject: &Reject{AnnotationID: annotationID, Reason: reason}}
}

// NewSessionMsg создает конверт session
func NewSessionMsg(action SessionAction, peerID, name string) *Envelope {
	return &Envelope{Kind: KindSession, Session: &SessionMsg{Action: action, PeerID: peerID, Name: name}}
}

// NewRoleChange создает конверт role_change
func NewRoleChange(peerID string, role models.Role, changedBy string) *Envelope {
	return &Envelope{Kind: KindRoleChange, RoleChange: &RoleChange{PeerID: peerID, NewRole: role, ChangedBy: changedBy}}
}

// NewDocContent создает конверт doc_content
func NewDocContent(text, path string) *Envelope {
	return &Envelope{Kind: KindDocContent, DocContent: &DocContent{Text: text, Path: path}}
}

// NewPing создает конверт ping
func NewPing() *Envelope { return &Envelope{Kind: KindPing} }

// NewPong создает конверт pong
func NewPong() *Envelope { return &Envelope{Kind: KindPong} }
