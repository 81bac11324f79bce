package master

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/iudanet/gophreview/internal/crdt"
	"github.com/iudanet/gophreview/internal/models"
	"github.com/iudanet/gophreview/internal/server/handlers"
	"github.com/iudanet/gophreview/internal/server/metrics"
	"github.com/iudanet/gophreview/internal/server/middleware"
	"github.com/iudanet/gophreview/internal/validation"
	"github.com/iudanet/gophreview/pkg/api"
)

// journalTimeout время на запись решений в журнал
const journalTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Пиры - нативные клиенты, не браузер
	CheckOrigin: func(r *http.Request) bool { return true },
}

var errTextFrame = errors.New("text frames are not supported")

func (m *Master) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware(m.logger))
	r.Use(middleware.LoggingMiddleware(m.logger, "/metrics", "/api/v1/health"))

	r.HandleFunc("/ws", m.serveWS)
	r.Handle("/metrics", m.metrics.Handler()).Methods(http.MethodGet)

	health := handlers.NewHealthHandler(m.logger, m)
	session := handlers.NewSessionHandler(m.logger, m, m.tokens)
	admin := middleware.AdminAuthMiddleware(m.tokens, m.logger)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.RateLimitMiddleware(m.apiLimiter, m.logger))
	apiRouter.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	apiRouter.Handle("/session", admin(http.HandlerFunc(session.Session))).Methods(http.MethodGet)
	apiRouter.Handle("/tokens", admin(http.HandlerFunc(session.IssueToken))).Methods(http.MethodPost)

	return r
}

// serveWS обслуживает одно websocket-соединение до его закрытия
func (m *Master) serveWS(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	running := m.state == stateStarted
	if running {
		m.conns.Add(1)
	}
	m.mu.Unlock()

	if !running {
		http.Error(w, "session is not running", http.StatusServiceUnavailable)
		return
	}
	defer m.conns.Done()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := newConn(ws, m.metrics, m.logger.With("remote_addr", r.RemoteAddr))
	go c.writePump()

	m.handleConn(c)

	c.close(api.CloseNormal, "")
	<-c.done
}

// handleConn: первое сообщение - auth, затем цикл чтения.
// Паника в обработчике закрывает только это соединение.
func (m *Master) handleConn(c *conn) {
	defer func() {
		if recovered := recover(); recovered != nil {
			m.logger.Error("Connection handler panic",
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
			c.close(api.CloseInternal, "internal error")
		}
	}()

	env, err := m.read(c)
	if err != nil {
		m.closeOnReadError(c, err)
		return
	}
	if env.Kind != api.KindAuth {
		m.logger.Warn("First message is not auth", "kind", env.Kind)
		c.close(api.CloseAuthRequired, "auth required")
		return
	}

	peer, ok := m.authenticate(c, env.Auth)
	if !ok {
		return
	}
	defer m.disconnect(peer, c)

	for {
		env, err := m.read(c)
		if err != nil {
			m.closeOnReadError(c, err)
			return
		}
		m.dispatch(c, peer.PeerID, env)
	}
}

func (m *Master) read(c *conn) (*api.Envelope, error) {
	msgType, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if msgType != websocket.BinaryMessage {
		m.metrics.RecordEnvelope(metrics.DirectionIn, "invalid", len(data))
		return nil, &api.DecodeError{Err: errTextFrame}
	}

	env, err := api.Decode(data)
	if err != nil {
		m.metrics.RecordEnvelope(metrics.DirectionIn, "invalid", len(data))
		return nil, err
	}
	m.metrics.RecordEnvelope(metrics.DirectionIn, string(env.Kind), len(data))
	return env, nil
}

func (m *Master) closeOnReadError(c *conn, err error) {
	var decodeErr *api.DecodeError
	if errors.As(err, &decodeErr) {
		m.logger.Warn("Malformed envelope", "error", err)
		c.close(api.CloseMalformed, "malformed envelope")
		return
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Debug("Connection closed", "error", err)
	}
}

// authenticate проверяет auth и регистрирует пира. При отказе пир получает
// reject с пустым annotationId, затем соединение закрывается с CloseAuthFailed.
func (m *Master) authenticate(c *conn, auth *api.Auth) (models.Peer, bool) {
	fail := func(reason string) (models.Peer, bool) {
		m.logger.Warn("Peer authentication failed", "peer_id", auth.PeerID, "reason", reason)
		m.metrics.RecordJoin(false)
		m.send(c, api.NewReject("", reason))
		c.close(api.CloseAuthFailed, reason)
		return models.Peer{}, false
	}

	if err := validation.ValidatePeerID(auth.PeerID); err != nil {
		return fail(err.Error())
	}
	if auth.PeerID == MasterPeerID {
		return fail("peer id is reserved")
	}
	name := auth.Name
	if name == "" {
		name = auth.PeerID
	}
	if err := validation.ValidateDisplayName(name); err != nil {
		return fail(err.Error())
	}

	role := auth.Role
	if role == "" {
		role = models.RoleReviewer
	}
	if !role.Valid() {
		return fail("unknown role " + string(role))
	}

	if auth.Token != "" || m.cfg.RequireToken {
		if auth.Token == "" {
			return fail("invite token required")
		}
		claims, err := m.tokens.Validate(auth.Token)
		if err != nil {
			return fail("invalid invite token")
		}
		role = claims.Role
	}

	// Роль master удаленному пиру не выдается
	if role == models.RoleMaster {
		role = models.RoleReviewer
	}

	if m.passphrase != nil && !m.passphrase.Verify(auth.Passphrase) {
		return fail("invalid passphrase")
	}

	peer := models.Peer{
		PeerID:      auth.PeerID,
		Name:        name,
		Role:        role,
		ConnectedAt: time.Now(),
	}

	m.locked(func() {
		if old, ok := m.roster.get(peer.PeerID); ok {
			m.logger.Info("Peer replaced by a newer connection", "peer_id", peer.PeerID)
			old.conn.close(api.CloseReplaced, "replaced by a newer connection")
			// Запись присутствия старого соединения удаляется до того,
			// как новое успеет прислать свою
			m.presence.Remove("", peer.PeerID)
		}
		m.roster.add(peer, c)

		m.send(c, api.NewAuthOK(peer.PeerID, peer.Role, m.infoLocked()))
		if m.docText != "" {
			m.send(c, api.NewDocContent(m.docText, m.session.DocumentPath))
		}
		if full, err := m.store.EncodeFull(); err != nil {
			m.logger.Error("Failed to encode store snapshot", "error", err)
		} else {
			m.send(c, api.NewSync(full))
		}
		if snapshot, err := m.presence.EncodeAll(); err != nil {
			m.logger.Error("Failed to encode presence snapshot", "error", err)
		} else {
			m.send(c, api.NewAwareness(snapshot))
		}

		m.broadcastLocked(api.NewSessionMsg(api.ActionJoin, peer.PeerID, peer.Name), peer.PeerID)
		m.pending = append(m.pending, Event{Type: EventPeerJoined, PeerID: peer.PeerID, Name: peer.Name, Role: peer.Role})
		m.metrics.SetPeers(m.roster.len())
	})

	m.metrics.RecordJoin(true)
	m.logger.Info("Peer joined", "peer_id", peer.PeerID, "name", peer.Name, "role", peer.Role)
	return peer, true
}

// disconnect убирает пира из ростера, если запись все еще принадлежит c
func (m *Master) disconnect(peer models.Peer, c *conn) {
	removed := false
	m.locked(func() {
		if _, removed = m.roster.remove(peer.PeerID, c); !removed {
			return
		}
		m.validator.ResetPeer(peer.PeerID)
		m.presence.Remove("", peer.PeerID)
		m.broadcastLocked(api.NewSessionMsg(api.ActionLeave, peer.PeerID, peer.Name), "")
		m.pending = append(m.pending, Event{Type: EventPeerLeft, PeerID: peer.PeerID, Name: peer.Name})
		m.metrics.SetPeers(m.roster.len())
	})
	if removed {
		m.logger.Info("Peer left", "peer_id", peer.PeerID)
	}
}

func (m *Master) dispatch(c *conn, peerID string, env *api.Envelope) {
	switch env.Kind {
	case api.KindSync:
		m.handleSync(c, peerID, env.Data)
	case api.KindAwareness:
		m.locked(func() {
			if _, err := m.presence.ApplyUpdateFrom(env.Data, peerID); err != nil {
				m.logger.Warn("Invalid presence update", "peer_id", peerID, "error", err)
			}
		})
	case api.KindPing:
		m.send(c, api.NewPong())
	case api.KindAuth:
		m.logger.Debug("Ignoring repeated auth", "peer_id", peerID)
	default:
		m.logger.Debug("Ignoring unexpected envelope", "peer_id", peerID, "kind", env.Kind)
	}
}

// handleSync проверяет дельту на копии хранилища и сливает в живое хранилище
// только записи, прошедшие проверку. Отказы получает только автор.
func (m *Master) handleSync(c *conn, peerID string, data []byte) {
	delta, err := crdt.DecodeDelta(data)
	if err != nil {
		m.logger.Warn("Malformed delta", "peer_id", peerID, "error", err)
		m.send(c, api.NewReject("", "malformed delta"))
		return
	}

	var decisions []models.Decision
	m.locked(func() {
		member, ok := m.roster.get(peerID)
		if !ok || member.conn != c {
			return
		}

		screened, malformed := m.store.Screen(delta)
		for _, id := range sortedIDs(malformed) {
			op := validation.OpAdd
			if m.store.Has(id) {
				op = validation.OpUpdate
			}
			reason := fmt.Sprintf("%s: %v", validation.ReasonMalformed, malformed[id])
			decisions = append(decisions, m.rejectLocked(c, peerID, validation.Rejection{AnnotationID: id, Op: op, Reason: reason}))
		}
		if screened.Empty() {
			return
		}

		before := m.store.Snapshot()
		trial := m.store.Clone()
		applied := trial.Apply(screened, peerID)
		touched := make(map[string]bool, len(applied.Updated))
		for _, id := range applied.Updated {
			touched[id] = true
		}

		result := m.validator.ValidateBatch(validation.Batch{
			Before:  before,
			After:   trial.Snapshot(),
			Created: screened.Created(),
			Touched: touched,
			IDs:     screened.RecordIDs(),
		}, peerID, member.peer.Role)

		for _, rejection := range result.Rejected {
			decisions = append(decisions, m.rejectLocked(c, peerID, rejection))
		}
		for _, admission := range result.Admitted {
			m.metrics.RecordDecision(true, string(admission.Op))
			decisions = append(decisions, m.decision(peerID, admission.AnnotationID, string(admission.Op), "", true))
		}

		if len(result.Admitted) == 0 {
			return
		}
		admitted := result.AdmittedIDs()
		m.store.Apply(screened.Filter(func(id string) bool { return admitted[id] }), peerID)
	})

	m.record(decisions)
}

// rejectLocked отправляет отказ автору и возвращает решение для журнала.
// Вызывается под m.mu.
func (m *Master) rejectLocked(c *conn, peerID string, rejection validation.Rejection) models.Decision {
	m.send(c, api.NewReject(rejection.AnnotationID, rejection.Reason))
	m.metrics.RecordDecision(false, string(rejection.Op))
	m.pending = append(m.pending, Event{
		Type:         EventRejected,
		PeerID:       peerID,
		AnnotationID: rejection.AnnotationID,
		Reason:       rejection.Reason,
	})
	m.logger.Warn("Change rejected",
		"peer_id", peerID,
		"annotation_id", rejection.AnnotationID,
		"reason", rejection.Reason,
	)
	return m.decision(peerID, rejection.AnnotationID, string(rejection.Op), rejection.Reason, false)
}

func sortedIDs(set map[string]error) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Master) decision(peerID, annotationID, action, reason string, admitted bool) models.Decision {
	return models.Decision{
		CreatedAt:    time.Now(),
		SessionID:    m.session.SessionID,
		PeerID:       peerID,
		AnnotationID: annotationID,
		Action:       action,
		Reason:       reason,
		Admitted:     admitted,
	}
}

func (m *Master) record(decisions []models.Decision) {
	if m.cfg.Journal == nil || len(decisions) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	if err := m.cfg.Journal.Record(ctx, decisions...); err != nil {
		m.logger.Error("Failed to record decisions", "error", err)
	}
}
