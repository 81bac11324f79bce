// Package master реализует мастер-сессию ревью: websocket-эндпоинт, ростер пиров,
// проверку входящих дельт до слияния, ретрансляцию, автосохранение и смену ролей.
//
// Хранилище, ростер и присутствие меняются только под одним мьютексом мастера.
// Чтение одного соединения последовательно, поэтому сообщения одного пира
// не перемешиваются, а сообщения разных пиров сериализуются на мьютексе.
package master

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/gophreview/internal/crdt"
	"github.com/iudanet/gophreview/internal/crypto"
	"github.com/iudanet/gophreview/internal/discovery"
	"github.com/iudanet/gophreview/internal/events"
	"github.com/iudanet/gophreview/internal/format"
	"github.com/iudanet/gophreview/internal/models"
	"github.com/iudanet/gophreview/internal/presence"
	"github.com/iudanet/gophreview/internal/server/docwatch"
	"github.com/iudanet/gophreview/internal/server/jwt"
	"github.com/iudanet/gophreview/internal/server/metrics"
	"github.com/iudanet/gophreview/internal/server/middleware"
	"github.com/iudanet/gophreview/internal/server/storage"
	"github.com/iudanet/gophreview/internal/validation"
	"github.com/iudanet/gophreview/pkg/api"
)

const (
	// MasterPeerID идентификатор мастера в присутствии и role_change
	MasterPeerID = "master"

	// DefaultRateLimit операций на пира в окне DefaultRateWindow
	DefaultRateLimit  = 60
	DefaultRateWindow = time.Minute

	// apiRateLimit запросов к HTTP API с одного IP в минуту
	apiRateLimit = 120

	originStorage = "storage"
)

type state int

const (
	stateCreated state = iota
	stateStarted
	stateStopped
)

// Config параметры мастер-сессии
type Config struct {
	Storage       storage.SessionStorage // nil - сессия не сохраняется в хранилище
	Journal       storage.Journal        // nil - журнал решений не ведется
	Limiter       validation.Limiter     // nil - DefaultRateLimit в минуту
	Metrics       *metrics.Registry
	Logger        *slog.Logger
	InitialState  *models.StoredSession // снимок для возобновления сессии
	Host          string
	DocumentPath  string
	MasterName    string
	Passphrase    string
	Secret        []byte // HMAC-ключ токенов; пустой - случайный
	Port          int
	AutoSave      time.Duration // 0 - без автосохранения
	Sidecar       bool
	RequireToken  bool
	Discovery     bool
	WatchDocument bool
}

// Master владелец авторитетной копии хранилища
type Master struct {
	store      *crdt.Store
	presence   *presence.Tracker
	validator  *validation.Validator
	tokens     *jwt.Service
	metrics    *metrics.Registry
	events     *events.Bus[Event]
	logger     *slog.Logger
	roster     *roster
	passphrase *crypto.PassphraseHash
	server     *http.Server
	listener   net.Listener
	advertiser *discovery.Advertiser
	watcher    *docwatch.Watcher
	apiLimiter *middleware.RateLimiter
	ownLimiter *middleware.RateLimiter
	group      *errgroup.Group
	cancel     context.CancelFunc
	cfg        Config
	session    models.Session
	body       string // текст документа без блока аннотаций
	docText    string // текст документа как на диске
	adminToken string
	pending    []Event
	conns      sync.WaitGroup
	mu         sync.Mutex
	saveMu     sync.Mutex
	state      state
}

// New создает сессию: новую или возобновленную из cfg.InitialState.
// Аннотации из документа засеваются только в новую сессию; при возобновлении
// авторитетен сохраненный снимок.
func New(cfg Config) (*Master, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewRegistry()
	}
	if cfg.MasterName == "" {
		cfg.MasterName = MasterPeerID
	}

	m := &Master{
		cfg:     cfg,
		store:   crdt.NewStore("", cfg.Logger),
		metrics: cfg.Metrics,
		events:  events.NewBus[Event](cfg.Logger),
		logger:  cfg.Logger,
		roster:  newRoster(),
		session: models.Session{
			SessionID:        ksuid.New().String(),
			CreatedAt:        time.Now(),
			MasterName:       cfg.MasterName,
			DocumentPath:     cfg.DocumentPath,
			Port:             cfg.Port,
			AutoSaveInterval: cfg.AutoSave,
			Sidecar:          cfg.Sidecar,
		},
	}

	if resume := cfg.InitialState; resume != nil {
		meta := resume.Meta
		m.session.SessionID = meta.SessionID
		m.session.CreatedAt = meta.CreatedAt
		if m.session.DocumentPath == "" {
			m.session.DocumentPath = meta.DocumentPath
			m.session.Sidecar = meta.Sidecar
		}
		if _, err := m.store.ApplyDelta(resume.State, originStorage); err != nil {
			return nil, fmt.Errorf("failed to restore session state: %w", err)
		}
		if meta.PassphraseHash != "" {
			m.passphrase = &crypto.PassphraseHash{Hash: meta.PassphraseHash, Salt: meta.PassphraseSalt}
		}
	}

	if err := m.loadDocument(cfg.InitialState == nil); err != nil {
		return nil, err
	}

	if cfg.Passphrase != "" {
		if err := validation.ValidatePassphrase(cfg.Passphrase); err != nil {
			return nil, err
		}
		hash, err := crypto.HashPassphrase(cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to hash passphrase: %w", err)
		}
		m.passphrase = hash
	}

	tokens, err := jwt.NewService(cfg.Secret, m.session.SessionID)
	if err != nil {
		return nil, err
	}
	m.tokens = tokens
	m.adminToken, err = tokens.Issue("master:"+cfg.MasterName, models.RoleMaster, 0)
	if err != nil {
		return nil, err
	}

	m.presence = presence.NewTracker(MasterPeerID, models.PresenceState{Name: cfg.MasterName}, cfg.Logger)

	limiter := cfg.Limiter
	if limiter == nil {
		m.ownLimiter = middleware.NewRateLimiter(DefaultRateLimit, DefaultRateWindow, cfg.Logger)
		limiter = m.ownLimiter
	}
	m.validator = validation.NewValidator(limiter)
	m.apiLimiter = middleware.NewRateLimiter(apiRateLimit, time.Minute, cfg.Logger)

	// Оба наблюдателя вызываются под m.mu: хранилище и присутствие
	// меняются только внутри m.locked
	m.store.Observe(m.onStoreChange)
	m.presence.Observe(m.onPresenceChange)

	return m, nil
}

// loadDocument читает текст документа и, если seed, засевает хранилище его аннотациями
func (m *Master) loadDocument(seed bool) error {
	path := m.session.DocumentPath
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("Document does not exist yet", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	m.docText = string(raw)
	m.body = m.docText
	if !m.session.Sidecar {
		m.body = format.Body(m.docText)
	}

	if !seed {
		return nil
	}
	_, records, err := format.LoadDocument(path, m.session.Sidecar)
	if err != nil {
		return fmt.Errorf("failed to load annotations: %w", err)
	}
	for i := range records {
		if err := m.store.Set(records[i]); err != nil {
			return fmt.Errorf("failed to seed annotation %q: %w", records[i].ID, err)
		}
	}
	m.logger.Info("Document loaded", "path", path, "annotations", len(records))
	return nil
}

// Start открывает порт и начинает принимать подключения.
// Ошибка занятого порта возвращается как *BindError.
func (m *Master) Start(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case stateStarted:
		m.mu.Unlock()
		return ErrAlreadyStarted
	case stateStopped:
		m.mu.Unlock()
		return ErrStopped
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		m.mu.Unlock()
		return &BindError{Addr: addr, Err: err}
	}
	m.listener = ln
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		m.session.Port = tcpAddr.Port
	}

	m.server = &http.Server{
		Handler:           m.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(runCtx)
	m.group = g
	m.cancel = cancel

	g.Go(func() error {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("HTTP server failed", "error", err)
			m.emit(Event{Type: EventError, Err: err})
			return err
		}
		return nil
	})

	if m.cfg.AutoSave > 0 {
		g.Go(func() error {
			m.autosave(gctx)
			return nil
		})
	}

	if m.cfg.WatchDocument && m.session.DocumentPath != "" {
		m.watcher = docwatch.New(m.session.DocumentPath, m.docText, m.onDocumentChanged, m.logger)
		g.Go(func() error {
			if err := m.watcher.Run(gctx); err != nil {
				m.logger.Error("Document watcher stopped", "error", err)
				m.emit(Event{Type: EventError, Err: err})
			}
			return nil
		})
	}

	if m.cfg.Discovery {
		adv, err := discovery.Advertise(discovery.Announcement{
			SessionID:  m.session.SessionID,
			MasterName: m.session.MasterName,
			Document:   m.session.DocumentPath,
			Port:       m.session.Port,
		}, m.logger)
		if err != nil {
			m.logger.Warn("LAN discovery disabled", "error", err)
		} else {
			m.advertiser = adv
		}
	}

	m.state = stateStarted
	m.mu.Unlock()

	m.logger.Info("Session started",
		"session_id", m.session.SessionID,
		"addr", ln.Addr().String(),
		"document", m.session.DocumentPath,
	)
	m.emit(Event{Type: EventStarted})
	return nil
}

// Stop рассылает session end, закрывает все соединения, останавливает
// автосохранение и сохраняет сессию в документ и хранилище. Повторный вызов ничего не делает.
func (m *Master) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.state == stateStopped {
		m.mu.Unlock()
		return nil
	}
	wasStarted := m.state == stateStarted
	m.state = stateStopped
	if wasStarted {
		m.broadcastLocked(api.NewSessionMsg(api.ActionEnd, "", ""), "")
		for _, c := range m.roster.conns() {
			c.close(api.CloseNormal, "session ended")
		}
	}
	m.mu.Unlock()

	var errs []error
	if wasStarted {
		m.cancel()
		if err := m.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown http server: %w", err))
		}
		if err := m.group.Wait(); err != nil {
			errs = append(errs, err)
		}
		if err := m.waitConns(ctx); err != nil {
			errs = append(errs, err)
		}
		m.advertiser.Shutdown()
	}

	if err := m.Save(ctx); err != nil {
		errs = append(errs, err)
	}

	m.apiLimiter.Stop()
	if m.ownLimiter != nil {
		m.ownLimiter.Stop()
	}

	m.logger.Info("Session stopped", "session_id", m.session.SessionID)
	m.emit(Event{Type: EventStopped})
	return errors.Join(errs...)
}

func (m *Master) waitConns(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connections still open: %w", ctx.Err())
	}
}

func (m *Master) autosave(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.AutoSave)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Save(ctx); err != nil {
				m.logger.Error("Autosave failed", "error", err)
			}
		}
	}
}

// Save записывает аннотации в документ (или sidecar) и снимок сессии в хранилище
func (m *Master) Save(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	start := time.Now()
	err := m.save(ctx)
	m.metrics.RecordSave(err, time.Since(start))
	if err != nil {
		m.emit(Event{Type: EventError, Err: err})
		return err
	}
	m.emit(Event{Type: EventSaved})
	return nil
}

func (m *Master) save(ctx context.Context) error {
	records := m.store.List()

	m.mu.Lock()
	body := m.body
	peers := m.roster.list()
	meta := m.metaLocked()
	m.mu.Unlock()

	var errs []error
	if path := meta.DocumentPath; path != "" {
		text, err := format.WriteDocument(path, meta.Sidecar, body, records)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to write document: %w", err))
		} else if !meta.Sidecar {
			m.mu.Lock()
			m.docText = text
			m.mu.Unlock()
			if m.watcher != nil {
				m.watcher.SetKnown(text)
			}
		}
	}

	if m.cfg.Storage != nil {
		state, err := m.store.EncodeFull()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to encode state: %w", err))
		} else if err := m.cfg.Storage.SaveSession(ctx, meta.SessionID, state, meta, peers); err != nil {
			errs = append(errs, fmt.Errorf("failed to save session: %w", err))
		}
	}

	if len(errs) == 0 {
		m.logger.Debug("Session saved", "session_id", meta.SessionID, "annotations", len(records))
	}
	return errors.Join(errs...)
}

func (m *Master) metaLocked() models.SessionMeta {
	meta := models.SessionMeta{Session: m.session}
	if m.passphrase != nil {
		meta.PassphraseHash = m.passphrase.Hash
		meta.PassphraseSalt = m.passphrase.Salt
	}
	return meta
}

// Subscribe подписывает fn на события сессии. Возвращает функцию отписки.
func (m *Master) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.events.Subscribe(fn)
}

func (m *Master) emit(ev Event) {
	m.events.Emit(ev)
}

// locked выполняет fn под мьютексом мастера и публикует накопленные события после отпускания
func (m *Master) locked(fn func()) {
	m.mu.Lock()
	fn()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, ev := range pending {
		m.emit(ev)
	}
}

// onStoreChange ретранслирует изменение хранилища: локальное - всем,
// удаленное - всем, кроме автора. Вызывается под m.mu.
func (m *Master) onStoreChange(change crdt.Change) {
	except := ""
	if !change.IsLocal() {
		except = change.Origin
	}
	m.broadcastLocked(api.NewSync(change.Delta), except)

	for _, id := range change.Added {
		block, _ := m.store.Get(id)
		m.pending = append(m.pending, Event{Type: EventBlockAdded, AnnotationID: id, Block: block, Origin: change.Origin})
	}
	for _, id := range change.Updated {
		block, _ := m.store.Get(id)
		m.pending = append(m.pending, Event{Type: EventBlockUpdated, AnnotationID: id, Block: block, Origin: change.Origin})
	}
	for _, id := range change.Deleted {
		m.pending = append(m.pending, Event{Type: EventBlockDeleted, AnnotationID: id, Origin: change.Origin})
	}
}

// onPresenceChange ретранслирует изменение присутствия. Вызывается под m.mu.
func (m *Master) onPresenceChange(change presence.Change) {
	if len(change.Update) == 0 {
		return
	}
	except := ""
	if !change.IsLocal() {
		except = change.Origin
	}
	m.broadcastLocked(api.NewAwareness(change.Update), except)
}

func (m *Master) onDocumentChanged(text string) {
	m.locked(func() {
		m.docText = text
		m.body = text
		if !m.session.Sidecar {
			m.body = format.Body(text)
		}
		m.broadcastLocked(api.NewDocContent(text, m.session.DocumentPath), "")
	})
}

// broadcastLocked отправляет конверт всем пирам, кроме except
func (m *Master) broadcastLocked(env *api.Envelope, except string) {
	data, err := api.Encode(env)
	if err != nil {
		m.logger.Error("Failed to encode envelope", "kind", env.Kind, "error", err)
		return
	}
	for peerID, member := range m.roster.members {
		if peerID == except {
			continue
		}
		member.conn.enqueue(env.Kind, data)
	}
}

func (m *Master) send(c *conn, env *api.Envelope) {
	data, err := api.Encode(env)
	if err != nil {
		m.logger.Error("Failed to encode envelope", "kind", env.Kind, "error", err)
		return
	}
	c.enqueue(env.Kind, data)
}

// GetBlocks возвращает аннотации авторитетной копии
func (m *Master) GetBlocks() []models.Annotation {
	return m.store.List()
}

// GetBlock возвращает аннотацию по id
func (m *Master) GetBlock(id string) (*models.Annotation, bool) {
	return m.store.Get(id)
}

// AddBlock добавляет аннотацию от имени мастера и рассылает ее всем пирам.
// Запись мастера доверенная: проверяются только схема, уникальность id и родитель.
func (m *Master) AddBlock(record models.Annotation) error {
	m.fillDefaults(&record)
	if err := validation.ValidateAnnotation(&record); err != nil {
		return err
	}

	var err error
	m.locked(func() {
		if m.store.Has(record.ID) {
			err = ErrBlockExists
			return
		}
		if record.ParentID != "" && !m.store.Has(record.ParentID) {
			err = fmt.Errorf("%w: parent %s", ErrBlockNotFound, record.ParentID)
			return
		}
		err = m.store.Set(record)
	})
	return err
}

// UpdateBlock изменяет существующую аннотацию
func (m *Master) UpdateBlock(record models.Annotation) error {
	m.fillDefaults(&record)
	if err := validation.ValidateAnnotation(&record); err != nil {
		return err
	}

	var err error
	m.locked(func() {
		if !m.store.Has(record.ID) {
			err = ErrBlockNotFound
			return
		}
		err = m.store.Set(record)
	})
	return err
}

// DeleteBlock удаляет аннотацию
func (m *Master) DeleteBlock(id string) error {
	var err error
	m.locked(func() {
		if !m.store.Delete(id) {
			err = ErrBlockNotFound
		}
	})
	return err
}

func (m *Master) fillDefaults(record *models.Annotation) {
	if record.Status == "" {
		record.Status = models.StatusOpen
	}
	if record.Author == "" {
		record.Author = m.cfg.MasterName
	}
	if record.Timestamp == 0 {
		record.Timestamp = time.Now().UnixMilli()
	}
}

// ChangePeerRole меняет роль подключенного пира. Смена на ту же роль ничего не делает;
// иначе role_change получают все пиры, включая самого пира.
func (m *Master) ChangePeerRole(peerID string, role models.Role) error {
	if role != models.RoleReviewer && role != models.RoleViewer {
		return ErrInvalidRole
	}

	var err error
	m.locked(func() {
		member, ok := m.roster.get(peerID)
		if !ok {
			err = ErrPeerNotFound
			return
		}
		if member.peer.Role == role {
			return
		}
		m.roster.setRole(peerID, role)
		m.broadcastLocked(api.NewRoleChange(peerID, role, MasterPeerID), "")
		m.pending = append(m.pending, Event{Type: EventRoleChanged, PeerID: peerID, Role: role, ChangedBy: MasterPeerID})
		m.logger.Info("Peer role changed", "peer_id", peerID, "role", role)
	})
	return err
}

// SetPresence меняет присутствие мастера и рассылает его пирам
func (m *Master) SetPresence(update func(state *models.PresenceState)) {
	m.locked(func() {
		m.presence.SetLocal(update)
	})
}

// Presence возвращает присутствие всех участников, включая мастера
func (m *Master) Presence() map[string]models.PresenceState {
	return m.presence.All()
}

// Peers возвращает ростер в порядке подключения
func (m *Master) Peers() []models.Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roster.list()
}

// PeerCount возвращает число подключенных пиров
func (m *Master) PeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roster.len()
}

// Info возвращает сведения о сессии для пиров и HTTP API
func (m *Master) Info() api.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.infoLocked()
}

func (m *Master) infoLocked() api.SessionInfo {
	return api.SessionInfo{
		Peers:            m.roster.peerInfos(),
		SessionID:        m.session.SessionID,
		MasterName:       m.session.MasterName,
		DocumentPath:     m.session.DocumentPath,
		CreatedAt:        m.session.CreatedAt.UnixMilli(),
		AutoSaveInterval: m.session.AutoSaveInterval.Milliseconds(),
		Port:             m.session.Port,
		Sidecar:          m.session.Sidecar,
	}
}

// Session возвращает описание сессии
func (m *Master) Session() models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// SessionID возвращает идентификатор сессии
func (m *Master) SessionID() string {
	return m.session.SessionID
}

// Addr возвращает адрес, на котором слушает мастер, или пустую строку до Start
func (m *Master) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// AdminToken возвращает токен администратора сессии (роль master, без срока)
func (m *Master) AdminToken() string {
	return m.adminToken
}

// IssueInvite выпускает приглашение для роли reviewer или viewer
func (m *Master) IssueInvite(role models.Role, ttl time.Duration) (string, error) {
	if role != models.RoleReviewer && role != models.RoleViewer {
		return "", ErrInvalidRole
	}
	return m.tokens.Issue("invite", role, ttl)
}

// Document возвращает текущий текст документа
func (m *Master) Document() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docText
}
