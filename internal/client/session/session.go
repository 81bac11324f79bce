// Package session реализует клиентскую сторону сессии ревью: подключение и
// аутентификацию, локальную реплику с оптимистичными правками, keepalive
// и переподключение по фиксированному расписанию.
//
// Правки применяются к локальной реплике сразу. Отказ мастера приходит позже
// событием rejected и локальное состояние не откатывает.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/iudanet/gophreview/internal/client/storage"
	"github.com/iudanet/gophreview/internal/crdt"
	"github.com/iudanet/gophreview/internal/events"
	"github.com/iudanet/gophreview/internal/format"
	"github.com/iudanet/gophreview/internal/models"
	"github.com/iudanet/gophreview/internal/presence"
	"github.com/iudanet/gophreview/internal/validation"
	"github.com/iudanet/gophreview/pkg/api"
)

const (
	DefaultKeepalive         = 25 * time.Second
	DefaultReconnectDelay    = 2 * time.Second
	DefaultReconnectMaxDelay = 16 * time.Second
	DefaultReconnectRetries  = 4

	handshakeTimeout = 10 * time.Second

	// OriginMaster источник изменений, пришедших от мастера
	OriginMaster = "master"
	// OriginCache источник изменений, восстановленных из локального кэша
	OriginCache = "cache"
)

// State состояние соединения
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Config параметры клиентской сессии
type Config struct {
	Cache             storage.ReplicaCache // nil - реплика не кэшируется
	Logger            *slog.Logger
	Dialer            *websocket.Dialer
	URL               string
	PeerID            string
	Name              string
	Role              models.Role // пожелание; итоговую роль назначает мастер
	Token             string
	Passphrase        string
	Keepalive         time.Duration
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
	ReconnectRetries  int
}

// Session клиент сессии ревью
type Session struct {
	store         *crdt.Store
	presence      *presence.Tracker
	events        *events.Bus[Event]
	logger        *slog.Logger
	transport     *transport
	cancel        context.CancelFunc
	done          chan struct{}
	stopPresence  func()
	role          models.Role
	docText       string
	docPath       string
	cfg           Config
	info          api.SessionInfo
	state         State
	mu            sync.Mutex
	awaitingState bool
}

// New создает отключенную сессию с пустой локальной репликой
func New(cfg Config) (*Session, error) {
	if cfg.URL == "" {
		return nil, errors.New("server url is required")
	}
	if err := validation.ValidatePeerID(cfg.PeerID); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = cfg.PeerID
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Keepalive == 0 {
		cfg.Keepalive = DefaultKeepalive
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if cfg.ReconnectRetries <= 0 {
		cfg.ReconnectRetries = DefaultReconnectRetries
	}

	logger := cfg.Logger.With("peer_id", cfg.PeerID)
	s := &Session{
		cfg:    cfg,
		logger: logger,
		store:  crdt.NewStore("", logger),
		events: events.NewBus[Event](logger),
		role:   cfg.Role,
	}
	s.store.Observe(s.onStoreChange)
	s.resetPresence()
	return s, nil
}

// Subscribe подписывает fn на события сессии. Возвращает функцию отписки.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	return s.events.Subscribe(fn)
}

func (s *Session) emit(ev Event) {
	s.events.Emit(ev)
}

// Connect подключается к мастеру и возвращается после auth_ok.
// Отказ в аутентификации возвращается как *CloseError с кодом api.CloseAuthFailed.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected || s.done != nil {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state = StateConnecting
	s.mu.Unlock()

	if s.tracker().Local() == nil {
		s.resetPresence()
	}

	t, err := s.dial(ctx)
	if err != nil {
		s.setState(StateDisconnected)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.run(runCtx, t, done)
	return nil
}

// Disconnect закрывает соединение штатно, без переподключения,
// и сохраняет реплику в кэш
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	cancel, done, t := s.cancel, s.done, s.transport
	s.mu.Unlock()

	if done != nil {
		if t != nil {
			// Пиры увидят уход участника
			s.tracker().Destroy()
			t.close(api.CloseNormal, "")
		}
		cancel()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := s.SaveReplica(ctx); err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	return nil
}

// dial открывает соединение, отправляет auth и ждет auth_ok
func (s *Session) dial(ctx context.Context) (*transport, error) {
	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	ws, resp, err := s.cfg.Dialer.DialContext(hctx, s.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", s.cfg.URL, err)
	}

	t := newTransport(ws, s.cfg.Keepalive, s.logger)
	go t.writePump()

	stop := context.AfterFunc(hctx, t.abort)
	defer stop()

	t.enqueue(api.NewAuth(api.Auth{
		PeerID:     s.cfg.PeerID,
		Name:       s.cfg.Name,
		Role:       s.cfg.Role,
		Token:      s.cfg.Token,
		Passphrase: s.cfg.Passphrase,
	}))

	var rejectReason string
	for {
		env, err := t.read()
		if err != nil {
			t.close(api.CloseNormal, "")
			<-t.done

			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				reason := closeErr.Text
				if rejectReason != "" {
					reason = rejectReason
				}
				return nil, &CloseError{Code: closeErr.Code, Reason: reason}
			}
			if ctxErr := hctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrHandshake, ctxErr)
			}
			return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
		}

		switch env.Kind {
		case api.KindReject:
			rejectReason = env.Reject.Reason
		case api.KindAuthOK:
			s.onAuthOK(t, env.AuthOK)
			return t, nil
		default:
			s.logger.Debug("Ignoring envelope before auth_ok", "kind", env.Kind)
		}
	}
}

func (s *Session) onAuthOK(t *transport, ok *api.AuthOK) {
	s.mu.Lock()
	s.transport = t
	s.state = StateAuthenticated
	s.role = ok.Role
	s.info = ok.Session
	s.awaitingState = true
	s.mu.Unlock()

	// Своя запись присутствия; снимок остальных пришлет мастер
	if data, err := s.tracker().Encode(s.cfg.PeerID); err == nil {
		t.enqueue(api.NewAwareness(data))
	}

	s.logger.Info("Connected to session",
		"session_id", ok.Session.SessionID,
		"master", ok.Session.MasterName,
		"role", ok.Role,
	)
	s.emit(Event{Type: EventConnected, PeerID: ok.PeerID, Role: ok.Role})
}

// run читает соединение и переподключается после нештатного закрытия
func (s *Session) run(ctx context.Context, t *transport, done chan struct{}) {
	defer close(done)
	defer s.finish()

	for {
		code, reason := s.readLoop(t)
		t.close(api.CloseNormal, "")
		<-t.done
		s.onTransportClosed(t, code)

		if ctx.Err() != nil {
			return
		}

		switch {
		case code == api.CloseNormal:
			s.logger.Info("Session ended by master")
			s.emit(Event{Type: EventSessionEnded, Code: code})
			return
		case api.IsTerminalClose(code):
			err := &CloseError{Code: code, Reason: reason}
			s.logger.Error("Connection closed permanently", "error", err)
			s.emit(Event{Type: EventError, Err: err, Code: code})
			return
		}

		next, err := s.reconnect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("Reconnect failed", "error", err)
				s.emit(Event{Type: EventReconnectFailed, Err: err})
			}
			return
		}
		t = next
	}
}

func (s *Session) finish() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.done = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// readLoop возвращает код закрытия соединения
func (s *Session) readLoop(t *transport) (int, string) {
	for {
		env, err := t.read()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return closeErr.Code, closeErr.Text
			}
			var decodeErr *api.DecodeError
			if errors.As(err, &decodeErr) {
				s.logger.Warn("Malformed envelope from master", "error", err)
				continue
			}
			return websocket.CloseAbnormalClosure, err.Error()
		}
		s.handle(env)
	}
}

func (s *Session) onTransportClosed(t *transport, code int) {
	s.mu.Lock()
	if s.transport == t {
		s.transport = nil
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	// Присутствие остальных без соединения не обновляется
	tracker := s.tracker()
	peers := tracker.Peers()
	ids := make([]string, 0, len(peers))
	for id := range peers {
		ids = append(ids, id)
	}
	tracker.Remove(OriginMaster, ids...)

	s.logger.Info("Disconnected", "code", code)
	s.emit(Event{Type: EventDisconnected, Code: code})
}

// reconnect повторяет подключение по расписанию: задержка растет вдвое
// от ReconnectDelay до ReconnectMaxDelay, не больше ReconnectRetries попыток
func (s *Session) reconnect(ctx context.Context) (*transport, error) {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = s.cfg.ReconnectDelay
	schedule.MaxInterval = s.cfg.ReconnectMaxDelay
	schedule.Multiplier = 2
	schedule.RandomizationFactor = 0
	schedule.MaxElapsedTime = 0
	schedule.Reset()
	b := backoff.WithMaxRetries(schedule, uint64(s.cfg.ReconnectRetries))

	var lastErr error
	for attempt := 1; ; attempt++ {
		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return nil, &ReconnectExhaustedError{Attempts: attempt - 1, Err: lastErr}
		}

		s.logger.Info("Reconnecting", "attempt", attempt, "delay", delay)
		s.emit(Event{Type: EventReconnecting, Attempt: attempt, Delay: delay})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		s.setState(StateConnecting)
		t, err := s.dial(ctx)
		if err == nil {
			return t, nil
		}
		s.setState(StateDisconnected)
		lastErr = err
		s.logger.Warn("Reconnect attempt failed", "attempt", attempt, "error", err)

		var closeErr *CloseError
		if errors.As(err, &closeErr) && api.IsTerminalClose(closeErr.Code) {
			return nil, err
		}
	}
}

func (s *Session) handle(env *api.Envelope) {
	switch env.Kind {
	case api.KindSync:
		s.applySync(env.Data)
	case api.KindAwareness:
		if _, err := s.tracker().ApplyUpdate(env.Data, OriginMaster); err != nil {
			s.logger.Warn("Invalid presence update", "error", err)
		}
	case api.KindReject:
		s.logger.Warn("Change rejected by master",
			"annotation_id", env.Reject.AnnotationID,
			"reason", env.Reject.Reason,
		)
		s.emit(Event{Type: EventRejected, AnnotationID: env.Reject.AnnotationID, Reason: env.Reject.Reason})
	case api.KindSession:
		s.handleSessionMsg(env.Session)
	case api.KindRoleChange:
		rc := env.RoleChange
		if rc.PeerID == s.cfg.PeerID {
			s.mu.Lock()
			s.role = rc.NewRole
			s.mu.Unlock()
			s.logger.Info("Role changed", "role", rc.NewRole, "changed_by", rc.ChangedBy)
		}
		s.emit(Event{Type: EventRoleChanged, PeerID: rc.PeerID, Role: rc.NewRole, ChangedBy: rc.ChangedBy})
	case api.KindDocContent:
		s.mu.Lock()
		s.docText = env.DocContent.Text
		s.docPath = env.DocContent.Path
		s.mu.Unlock()
		s.emit(Event{Type: EventDocContent, Text: env.DocContent.Text, Path: env.DocContent.Path})
	case api.KindPong:
		s.logger.Debug("Pong received")
	default:
		s.logger.Debug("Ignoring envelope", "kind", env.Kind)
	}
}

func (s *Session) handleSessionMsg(msg *api.SessionMsg) {
	switch msg.Action {
	case api.ActionJoin:
		s.emit(Event{Type: EventPeerJoined, PeerID: msg.PeerID, Name: msg.Name})
	case api.ActionLeave:
		s.emit(Event{Type: EventPeerLeft, PeerID: msg.PeerID, Name: msg.Name})
	case api.ActionEnd:
		// session_ended публикуется по close-фрейму, который придет следом
		s.logger.Debug("Master is ending the session")
	}
}

// applySync сливает дельту мастера. После первого снимка отправляет мастеру
// локальные правки, которых в снимке нет (сделанные без соединения).
func (s *Session) applySync(data []byte) {
	delta, err := crdt.DecodeDelta(data)
	if err != nil {
		s.logger.Warn("Malformed delta from master", "error", err)
		s.emit(Event{Type: EventError, Err: err})
		return
	}
	s.store.Apply(delta, OriginMaster)

	s.mu.Lock()
	first := s.awaitingState
	s.awaitingState = false
	s.mu.Unlock()
	if !first {
		return
	}

	pending := s.store.Since(delta.Vector())
	if !pending.Empty() {
		encoded, err := pending.Encode()
		if err != nil {
			s.logger.Error("Failed to encode pending changes", "error", err)
		} else {
			s.logger.Info("Sending offline changes", "records", len(pending.RecordIDs()))
			s.sendEnvelope(api.NewSync(encoded))
		}
	}
	s.emit(Event{Type: EventSynced})
}

// onStoreChange отправляет локальные изменения мастеру и публикует события
func (s *Session) onStoreChange(change crdt.Change) {
	if change.IsLocal() {
		s.sendEnvelope(api.NewSync(change.Delta))
	}

	for _, id := range change.Added {
		block, _ := s.store.Get(id)
		s.emit(Event{Type: EventBlockAdded, AnnotationID: id, Block: block, Origin: change.Origin})
	}
	for _, id := range change.Updated {
		block, _ := s.store.Get(id)
		s.emit(Event{Type: EventBlockUpdated, AnnotationID: id, Block: block, Origin: change.Origin})
	}
	for _, id := range change.Deleted {
		s.emit(Event{Type: EventBlockDeleted, AnnotationID: id, Origin: change.Origin})
	}
}

func (s *Session) onPresenceChange(change presence.Change) {
	if change.IsLocal() {
		if len(change.Update) > 0 {
			s.sendEnvelope(api.NewAwareness(change.Update))
		}
		return
	}
	for _, ids := range [][]string{change.Added, change.Updated, change.Removed} {
		for _, id := range ids {
			s.emit(Event{Type: EventPresence, PeerID: id})
		}
	}
}

// sendEnvelope отправляет конверт, если соединение аутентифицировано.
// Без соединения правка остается только в реплике и уйдет после переподключения.
func (s *Session) sendEnvelope(env *api.Envelope) {
	s.mu.Lock()
	t := s.transport
	ready := s.state == StateAuthenticated
	s.mu.Unlock()

	if t == nil || !ready {
		s.logger.Debug("Not connected, envelope kept for resync", "kind", env.Kind)
		return
	}
	t.enqueue(env)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) tracker() *presence.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence
}

// resetPresence создает новый трекер (после Destroy прежний не используется)
func (s *Session) resetPresence() {
	tracker := presence.NewTracker(s.cfg.PeerID, models.PresenceState{Name: s.cfg.Name}, s.logger)

	s.mu.Lock()
	stop := s.stopPresence
	s.presence = tracker
	s.stopPresence = tracker.Observe(s.onPresenceChange)
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// AddBlock добавляет аннотацию в локальную реплику и отправляет ее мастеру
func (s *Session) AddBlock(record models.Annotation) error {
	s.fillDefaults(&record)
	if err := validation.ValidateAnnotation(&record); err != nil {
		return err
	}
	if s.store.Has(record.ID) {
		return ErrBlockExists
	}
	return s.store.Set(record)
}

// UpdateBlock изменяет существующую аннотацию
func (s *Session) UpdateBlock(record models.Annotation) error {
	s.fillDefaults(&record)
	if err := validation.ValidateAnnotation(&record); err != nil {
		return err
	}
	if !s.store.Has(record.ID) {
		return ErrBlockNotFound
	}
	return s.store.Set(record)
}

// DeleteBlock удаляет аннотацию
func (s *Session) DeleteBlock(id string) error {
	if !s.store.Delete(id) {
		return ErrBlockNotFound
	}
	return nil
}

func (s *Session) fillDefaults(record *models.Annotation) {
	if record.Status == "" {
		record.Status = models.StatusOpen
	}
	if record.Author == "" {
		record.Author = s.cfg.Name
	}
	if record.Timestamp == 0 {
		record.Timestamp = time.Now().UnixMilli()
	}
}

// GetBlocks возвращает аннотации локальной реплики
func (s *Session) GetBlocks() []models.Annotation {
	return s.store.List()
}

// GetBlock возвращает аннотацию по id
func (s *Session) GetBlock(id string) (*models.Annotation, bool) {
	return s.store.Get(id)
}

// Materialize возвращает текст документа с аннотациями локальной реплики
// в формате сессии: inline-блок или содержимое sidecar-файла
func (s *Session) Materialize() (string, error) {
	s.mu.Lock()
	sidecar := s.info.Sidecar
	text := s.docText
	s.mu.Unlock()

	if sidecar {
		return s.store.Materialize(format.Sidecar{}, text)
	}
	return s.store.Materialize(format.Inline{}, format.Body(text))
}

// SetPresence меняет собственное присутствие
func (s *Session) SetPresence(update func(state *models.PresenceState)) {
	s.tracker().SetLocal(update)
}

// SetActiveAnchor запоминает просматриваемое место документа
func (s *Session) SetActiveAnchor(anchor map[string]any, section string) {
	s.tracker().SetActiveAnchor(anchor, section)
}

// SetTyping выставляет признак набора текста
func (s *Session) SetTyping(typing bool) {
	s.tracker().SetTyping(typing)
}

// Presence возвращает присутствие остальных участников
func (s *Session) Presence() map[string]models.PresenceState {
	return s.tracker().Peers()
}

// SaveReplica сохраняет локальную реплику в кэш под id текущей сессии
func (s *Session) SaveReplica(ctx context.Context) error {
	if s.cfg.Cache == nil {
		return nil
	}
	sessionID := s.Info().SessionID
	if sessionID == "" {
		return ErrNoSession
	}

	state, err := s.store.EncodeFull()
	if err != nil {
		return fmt.Errorf("failed to encode replica: %w", err)
	}
	if err := s.cfg.Cache.SaveReplica(ctx, sessionID, state); err != nil {
		return fmt.Errorf("failed to save replica: %w", err)
	}
	return nil
}

// RestoreReplica засевает локальную реплику из кэша до подключения.
// Снимок мастера после подключения сливается поверх.
func (s *Session) RestoreReplica(ctx context.Context, sessionID string) error {
	if s.cfg.Cache == nil {
		return nil
	}
	state, err := s.cfg.Cache.LoadReplica(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, err := s.store.ApplyDelta(state, OriginCache); err != nil {
		return fmt.Errorf("failed to restore replica: %w", err)
	}
	s.logger.Info("Replica restored from cache", "session_id", sessionID, "annotations", len(s.store.List()))
	return nil
}

// State возвращает состояние соединения
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Role возвращает роль, назначенную мастером
func (s *Session) Role() models.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Info возвращает сведения о сессии из последнего auth_ok
func (s *Session) Info() api.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Document возвращает последний присланный мастером текст документа и его путь
func (s *Session) Document() (text, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docText, s.docPath
}

// PeerID возвращает идентификатор клиента
func (s *Session) PeerID() string {
	return s.cfg.PeerID
}
