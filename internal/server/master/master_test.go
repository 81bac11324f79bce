package master

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophreview/internal/crdt"
	"github.com/iudanet/gophreview/internal/models"
	"github.com/iudanet/gophreview/internal/presence"
	"github.com/iudanet/gophreview/internal/server/middleware"
	"github.com/iudanet/gophreview/internal/server/storage"
	"github.com/iudanet/gophreview/internal/server/storage/fs"
	"github.com/iudanet/gophreview/internal/validation"
	"github.com/iudanet/gophreview/pkg/api"
)

const testTimeout = 3 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startMaster(t *testing.T, cfg Config) *Master {
	t.Helper()
	cfg.Host = "127.0.0.1"
	cfg.Logger = testLogger()
	if cfg.MasterName == "" {
		cfg.MasterName = "alice"
	}

	m, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = m.Stop(ctx)
	})
	return m
}

// testPeer websocket-клиент с локальной репликой
type testPeer struct {
	t     *testing.T
	ws    *websocket.Conn
	store *crdt.Store
	id    string
}

func dial(t *testing.T, m *Master) *websocket.Conn {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial("ws://"+m.Addr()+"/ws", nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// join подключает пира и дочитывает начальную синхронизацию
func join(t *testing.T, m *Master, auth api.Auth) *testPeer {
	t.Helper()
	ws := dial(t, m)
	p := &testPeer{t: t, ws: ws, id: auth.PeerID, store: crdt.NewStore("", testLogger())}
	p.write(api.NewAuth(auth))

	ok := p.expect(api.KindAuthOK)
	require.Equal(t, auth.PeerID, ok.AuthOK.PeerID)
	p.applySync(p.expect(api.KindSync))
	p.expect(api.KindAwareness)
	return p
}

func (p *testPeer) write(env *api.Envelope) {
	p.t.Helper()
	data, err := api.Encode(env)
	require.NoError(p.t, err)
	require.NoError(p.t, p.ws.WriteMessage(websocket.BinaryMessage, data))
}

func (p *testPeer) read() (*api.Envelope, error) {
	_ = p.ws.SetReadDeadline(time.Now().Add(testTimeout))
	_, data, err := p.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return api.Decode(data)
}

// expect читает конверты до первого конверта вида kind
func (p *testPeer) expect(kind api.Kind) *api.Envelope {
	p.t.Helper()
	for {
		env, err := p.read()
		require.NoError(p.t, err, "waiting for %s", kind)
		if env.Kind == kind {
			return env
		}
	}
}

// expectClose читает до закрытия соединения и возвращает код закрытия
func (p *testPeer) expectClose() int {
	p.t.Helper()
	for {
		_, err := p.read()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.True(p.t, errors.As(err, &closeErr), "unexpected error: %v", err)
		return closeErr.Code
	}
}

func (p *testPeer) applySync(env *api.Envelope) {
	p.t.Helper()
	_, err := p.store.ApplyDelta(env.Data, "master")
	require.NoError(p.t, err)
}

// collect выполняет fn над локальной репликой и собирает локальные регистры в одну дельту
func (p *testPeer) collect(fn func(s *crdt.Store)) *crdt.Delta {
	p.t.Helper()
	merged := &crdt.Delta{}
	unsubscribe := p.store.Observe(func(c crdt.Change) {
		if !c.IsLocal() {
			return
		}
		delta, err := crdt.DecodeDelta(c.Delta)
		require.NoError(p.t, err)
		merged.Registers = append(merged.Registers, delta.Registers...)
	})
	fn(p.store)
	unsubscribe()
	return merged
}

func (p *testPeer) send(delta *crdt.Delta) {
	p.t.Helper()
	data, err := delta.Encode()
	require.NoError(p.t, err)
	p.write(api.NewSync(data))
}

// change выполняет fn над локальной репликой и отправляет все изменения одной дельтой
func (p *testPeer) change(fn func(s *crdt.Store)) {
	p.t.Helper()
	p.send(p.collect(fn))
}

// expectNone отправляет ping и проверяет, что до pong не пришло конвертов вида kind
func (p *testPeer) expectNone(kind api.Kind) {
	p.t.Helper()
	p.write(api.NewPing())
	for {
		env, err := p.read()
		require.NoError(p.t, err, "waiting for pong")
		require.NotEqual(p.t, kind, env.Kind, "unexpected %s", kind)
		if env.Kind == api.KindPong {
			return
		}
	}
}

func comment(id, content string) models.Annotation {
	return models.Annotation{
		ID:        id,
		Type:      models.TypeComment,
		Content:   content,
		Status:    models.StatusOpen,
		Timestamp: 1,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, testTimeout, 10*time.Millisecond)
}

func TestMaster_JoinReceivesState(t *testing.T) {
	m := startMaster(t, Config{})
	require.NoError(t, m.AddBlock(comment("a1", "first")))

	p := join(t, m, api.Auth{PeerID: "bob", Name: "Bob"})

	got, ok := p.store.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "first", got.Content)
	assert.Equal(t, 1, m.PeerCount())

	peers := m.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, models.RoleReviewer, peers[0].Role)
}

func TestMaster_RelaysAdmittedChanges(t *testing.T) {
	m := startMaster(t, Config{})

	bob := join(t, m, api.Auth{PeerID: "bob", Name: "Bob"})
	carol := join(t, m, api.Auth{PeerID: "carol", Name: "Carol"})
	bob.expect(api.KindSession)

	var mu sync.Mutex
	var added []string
	m.Subscribe(func(ev Event) {
		if ev.Type == EventBlockAdded {
			mu.Lock()
			added = append(added, ev.AnnotationID)
			mu.Unlock()
		}
	})

	bob.change(func(s *crdt.Store) {
		require.NoError(t, s.Set(comment("c1", "looks good")))
	})

	carol.applySync(carol.expect(api.KindSync))
	got, ok := carol.store.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "looks good", got.Content)

	_, ok = m.GetBlock("c1")
	assert.True(t, ok)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(added) == 1 && added[0] == "c1"
	})
}

func TestMaster_RejectionIsPrivate(t *testing.T) {
	m := startMaster(t, Config{})

	viewer := join(t, m, api.Auth{PeerID: "vic", Role: models.RoleViewer})
	other := join(t, m, api.Auth{PeerID: "bob"})
	viewer.expect(api.KindSession)

	viewer.change(func(s *crdt.Store) {
		require.NoError(t, s.Set(comment("v1", "not allowed")))
	})

	reject := viewer.expect(api.KindReject)
	assert.Equal(t, "v1", reject.Reject.AnnotationID)
	assert.Contains(t, reject.Reject.Reason, "viewer")

	// Мастер не принял запись, второй пир ничего не получил
	_, ok := m.GetBlock("v1")
	assert.False(t, ok)

	other.write(api.NewPing())
	env := other.expect(api.KindPong)
	assert.Equal(t, api.KindPong, env.Kind)
	_, ok = other.store.Get("v1")
	assert.False(t, ok)
}

func TestMaster_PartialAdmission(t *testing.T) {
	m := startMaster(t, Config{})
	require.NoError(t, m.AddBlock(comment("exists", "already here")))

	bob := join(t, m, api.Auth{PeerID: "bob"})

	// Одна дельта: валидное добавление и ответ на несуществующего родителя
	bob.change(func(s *crdt.Store) {
		require.NoError(t, s.Set(comment("ok", "fine")))
		orphan := comment("orphan", "reply")
		orphan.ParentID = "missing"
		require.NoError(t, s.Set(orphan))
	})

	reject := bob.expect(api.KindReject)
	assert.Equal(t, "orphan", reject.Reject.AnnotationID)

	waitFor(t, func() bool {
		_, ok := m.GetBlock("ok")
		return ok
	})
	_, ok := m.GetBlock("orphan")
	assert.False(t, ok)
}

func TestMaster_FirstAddWins(t *testing.T) {
	m := startMaster(t, Config{})
	bob := join(t, m, api.Auth{PeerID: "bob"})
	carol := join(t, m, api.Auth{PeerID: "carol"})
	bob.expect(api.KindSession)

	bob.change(func(s *crdt.Store) {
		require.NoError(t, s.Set(comment("dup", "from bob")))
	})
	waitFor(t, func() bool {
		_, ok := m.GetBlock("dup")
		return ok
	})

	// carol не видела добавления bob и создает запись с тем же id
	carol.change(func(s *crdt.Store) {
		require.NoError(t, s.Set(comment("dup", "from carol")))
	})
	reject := carol.expect(api.KindReject)
	assert.Equal(t, "dup", reject.Reject.AnnotationID)
	assert.Equal(t, validation.ReasonDuplicate, reject.Reject.Reason)

	got, ok := m.GetBlock("dup")
	require.True(t, ok)
	assert.Equal(t, "from bob", got.Content)

	bob.expectNone(api.KindReject)
}

func TestMaster_RejectsFarFutureTimestamps(t *testing.T) {
	m := startMaster(t, Config{})
	require.NoError(t, m.AddBlock(comment("a1", "orig")))
	bob := join(t, m, api.Auth{PeerID: "bob"})

	delta := bob.collect(func(s *crdt.Store) {
		a1, ok := s.Get("a1")
		require.True(t, ok)
		a1.Content = "hijacked"
		require.NoError(t, s.Set(*a1))
		require.NoError(t, s.Set(comment("x", "from the future")))
		require.NoError(t, s.Set(comment("ok", "fine")))
	})
	for _, reg := range delta.Registers {
		if reg.RecordID != "ok" {
			reg.Timestamp = math.MaxInt64
		}
	}
	bob.send(delta)

	// Отказы приходят по записям в порядке id
	for _, id := range []string{"a1", "x"} {
		reject := bob.expect(api.KindReject)
		assert.Equal(t, id, reject.Reject.AnnotationID)
		assert.Contains(t, reject.Reject.Reason, validation.ReasonMalformed)
		assert.Contains(t, reject.Reject.Reason, "too far ahead")
	}

	waitFor(t, func() bool {
		_, ok := m.GetBlock("ok")
		return ok
	})
	_, ok := m.GetBlock("x")
	assert.False(t, ok)
	got, ok := m.GetBlock("a1")
	require.True(t, ok)
	assert.Equal(t, "orig", got.Content)

	// Часы мастера не ушли в MaxInt64, своя правка по-прежнему побеждает
	edited := *got
	edited.Content = "edited"
	require.NoError(t, m.UpdateBlock(edited))
	got, ok = m.GetBlock("a1")
	require.True(t, ok)
	assert.Equal(t, "edited", got.Content)
}

func TestMaster_UnknownFieldsRejected(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute, testLogger())
	t.Cleanup(limiter.Stop)
	m := startMaster(t, Config{Limiter: limiter})
	require.NoError(t, m.AddBlock(comment("a1", "orig")))

	bob := join(t, m, api.Auth{PeerID: "bob"})
	carol := join(t, m, api.Auth{PeerID: "carol"})
	bob.expect(api.KindSession)

	junk := bytes.Repeat([]byte{'j'}, 100*1024)
	for i := 1; i <= 5; i++ {
		bob.send(&crdt.Delta{Registers: []*models.Register{
			{RecordID: "a1", Field: "junk", NodeID: "bob", Value: junk, Timestamp: int64(i)},
		}})
		reject := bob.expect(api.KindReject)
		assert.Equal(t, "a1", reject.Reject.AnnotationID)
		assert.Contains(t, reject.Reject.Reason, "unknown annotation field")
	}
	carol.expectNone(api.KindSync)

	full, err := m.store.EncodeFull()
	require.NoError(t, err)
	state, err := crdt.DecodeDelta(full)
	require.NoError(t, err)
	for _, reg := range state.Registers {
		assert.NotEqual(t, "junk", reg.Field)
	}

	// Отклоненный мусор не расходует лимит: первая настоящая правка проходит
	bob.change(func(s *crdt.Store) {
		a1, ok := s.Get("a1")
		require.True(t, ok)
		a1.Content = "first"
		require.NoError(t, s.Set(*a1))
	})
	carol.applySync(carol.expect(api.KindSync))
	got, ok := carol.store.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "first", got.Content)

	bob.change(func(s *crdt.Store) {
		a1, ok := s.Get("a1")
		require.True(t, ok)
		a1.Content = "second"
		require.NoError(t, s.Set(*a1))
	})
	reject := bob.expect(api.KindReject)
	assert.Equal(t, "a1", reject.Reject.AnnotationID)
	assert.Contains(t, reject.Reject.Reason, validation.ReasonRateLimited)
}

func TestMaster_MalformedDeltaKeepsConnection(t *testing.T) {
	m := startMaster(t, Config{})
	bob := join(t, m, api.Auth{PeerID: "bob"})

	bob.write(api.NewSync([]byte{0xc1, 0x00}))
	reject := bob.expect(api.KindReject)
	assert.Empty(t, reject.Reject.AnnotationID)
	assert.Equal(t, "malformed delta", reject.Reject.Reason)

	bob.write(api.NewPing())
	bob.expect(api.KindPong)
}

func TestMaster_AuthRequired(t *testing.T) {
	m := startMaster(t, Config{})
	p := &testPeer{t: t, ws: dial(t, m)}

	p.write(api.NewPing())
	assert.Equal(t, api.CloseAuthRequired, p.expectClose())
	assert.Equal(t, 0, m.PeerCount())
}

func TestMaster_MalformedEnvelope(t *testing.T) {
	m := startMaster(t, Config{})
	ws := dial(t, m)
	p := &testPeer{t: t, ws: ws}

	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte("not msgpack")))
	assert.Equal(t, api.CloseMalformed, p.expectClose())
}

func TestMaster_AuthFailed(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		auth api.Auth
	}{
		{
			name: "wrong passphrase",
			cfg:  Config{Passphrase: "correct horse"},
			auth: api.Auth{PeerID: "bob", Passphrase: "wrong one"},
		},
		{
			name: "missing token",
			cfg:  Config{RequireToken: true},
			auth: api.Auth{PeerID: "bob"},
		},
		{
			name: "garbage token",
			cfg:  Config{},
			auth: api.Auth{PeerID: "bob", Token: "garbage"},
		},
		{
			name: "reserved id",
			cfg:  Config{},
			auth: api.Auth{PeerID: MasterPeerID},
		},
		{
			name: "invalid id",
			cfg:  Config{},
			auth: api.Auth{PeerID: "bad id with spaces"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := startMaster(t, tt.cfg)
			p := &testPeer{t: t, ws: dial(t, m)}
			p.write(api.NewAuth(tt.auth))

			reject := p.expect(api.KindReject)
			assert.Empty(t, reject.Reject.AnnotationID)
			assert.Equal(t, api.CloseAuthFailed, p.expectClose())
			assert.Equal(t, 0, m.PeerCount())
		})
	}
}

func TestMaster_PassphraseAndInvite(t *testing.T) {
	m := startMaster(t, Config{Passphrase: "correct horse", RequireToken: true})

	token, err := m.IssueInvite(models.RoleViewer, time.Hour)
	require.NoError(t, err)

	// Роль из токена важнее запрошенной
	join(t, m, api.Auth{PeerID: "bob", Role: models.RoleReviewer, Token: token, Passphrase: "correct horse"})
	peers := m.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, models.RoleViewer, peers[0].Role)

	_, err = m.IssueInvite(models.RoleMaster, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestMaster_ReplacedConnection(t *testing.T) {
	m := startMaster(t, Config{})

	first := join(t, m, api.Auth{PeerID: "bob"})
	second := join(t, m, api.Auth{PeerID: "bob"})

	assert.Equal(t, api.CloseReplaced, first.expectClose())
	assert.Equal(t, 1, m.PeerCount())

	second.write(api.NewPing())
	second.expect(api.KindPong)

	// Отключение старого соединения не удаляет нового пира
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, m.PeerCount())
}

func TestMaster_PeerLeaveBroadcast(t *testing.T) {
	m := startMaster(t, Config{})

	bob := join(t, m, api.Auth{PeerID: "bob"})
	carol := join(t, m, api.Auth{PeerID: "carol", Name: "Carol"})
	joined := bob.expect(api.KindSession)
	assert.Equal(t, api.ActionJoin, joined.Session.Action)
	assert.Equal(t, "carol", joined.Session.PeerID)

	require.NoError(t, carol.ws.Close())

	left := bob.expect(api.KindSession)
	assert.Equal(t, api.ActionLeave, left.Session.Action)
	assert.Equal(t, "carol", left.Session.PeerID)
	waitFor(t, func() bool { return m.PeerCount() == 1 })
}

func TestMaster_ChangePeerRole(t *testing.T) {
	m := startMaster(t, Config{})
	bob := join(t, m, api.Auth{PeerID: "bob"})

	require.NoError(t, m.ChangePeerRole("bob", models.RoleViewer))
	env := bob.expect(api.KindRoleChange)
	assert.Equal(t, "bob", env.RoleChange.PeerID)
	assert.Equal(t, models.RoleViewer, env.RoleChange.NewRole)
	assert.Equal(t, MasterPeerID, env.RoleChange.ChangedBy)

	// Viewer больше не может писать
	bob.change(func(s *crdt.Store) {
		require.NoError(t, s.Set(comment("b1", "late")))
	})
	bob.expect(api.KindReject)

	assert.ErrorIs(t, m.ChangePeerRole("nobody", models.RoleViewer), ErrPeerNotFound)
	assert.ErrorIs(t, m.ChangePeerRole("bob", models.RoleMaster), ErrInvalidRole)
	assert.NoError(t, m.ChangePeerRole("bob", models.RoleViewer))
}

func TestMaster_MasterEditsReachPeers(t *testing.T) {
	m := startMaster(t, Config{})
	bob := join(t, m, api.Auth{PeerID: "bob"})

	require.NoError(t, m.AddBlock(comment("m1", "from master")))
	bob.applySync(bob.expect(api.KindSync))
	got, ok := bob.store.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "alice", got.Author)

	update := comment("m1", "edited")
	require.NoError(t, m.UpdateBlock(update))
	bob.applySync(bob.expect(api.KindSync))
	got, _ = bob.store.Get("m1")
	assert.Equal(t, "edited", got.Content)

	require.NoError(t, m.DeleteBlock("m1"))
	bob.applySync(bob.expect(api.KindSync))
	assert.False(t, bob.store.Has("m1"))

	assert.ErrorIs(t, m.DeleteBlock("m1"), ErrBlockNotFound)
	assert.ErrorIs(t, m.UpdateBlock(comment("nope", "x")), ErrBlockNotFound)
	require.NoError(t, m.AddBlock(comment("m2", "x")))
	assert.ErrorIs(t, m.AddBlock(comment("m2", "x")), ErrBlockExists)
}

func TestMaster_PresenceRelay(t *testing.T) {
	m := startMaster(t, Config{})
	bob := join(t, m, api.Auth{PeerID: "bob", Name: "Bob"})

	m.SetPresence(func(state *models.PresenceState) { state.Typing = true })
	env := bob.expect(api.KindAwareness)

	tracker := presence.NewTracker("bob", models.PresenceState{Name: "Bob"}, testLogger())
	_, err := tracker.ApplyUpdate(env.Data, "master")
	require.NoError(t, err)
	state, ok := tracker.Peers()[MasterPeerID]
	require.True(t, ok)
	assert.True(t, state.Typing)

	update, err := tracker.EncodeAll()
	require.NoError(t, err)
	bob.write(api.NewAwareness(update))
	waitFor(t, func() bool {
		_, ok := m.Presence()["bob"]
		return ok
	})
}

func TestMaster_PresenceOwnEntryOnly(t *testing.T) {
	m := startMaster(t, Config{})
	bob := join(t, m, api.Auth{PeerID: "bob", Name: "Bob"})
	carol := join(t, m, api.Auth{PeerID: "carol", Name: "Carol"})
	bob.expect(api.KindSession)

	own := presence.NewTracker("carol", models.PresenceState{Name: "Carol"}, testLogger())
	update, err := own.EncodeAll()
	require.NoError(t, err)
	carol.write(api.NewAwareness(update))
	waitFor(t, func() bool {
		_, ok := m.Presence()["carol"]
		return ok
	})

	// bob выдает себя за carol: запись с большим clock и tombstone
	forged := presence.NewTracker("carol", models.PresenceState{Name: "Impostor"}, testLogger())
	for i := 0; i < 5; i++ {
		forged.SetTyping(true)
	}
	update, err = forged.EncodeAll()
	require.NoError(t, err)
	bob.write(api.NewAwareness(update))
	bob.write(api.NewAwareness(forged.Destroy()))

	mine := presence.NewTracker("bob", models.PresenceState{Name: "Bob"}, testLogger())
	update, err = mine.EncodeAll()
	require.NoError(t, err)
	bob.write(api.NewAwareness(update))
	waitFor(t, func() bool {
		_, ok := m.Presence()["bob"]
		return ok
	})

	state, ok := m.Presence()["carol"]
	require.True(t, ok)
	assert.Equal(t, "Carol", state.Name)
	assert.False(t, state.Typing)
}

func TestMaster_SaveAndResume(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(doc, []byte("# Title\n\nBody text.\n"), 0o600))

	store, err := fs.New(filepath.Join(dir, "sessions"), testLogger())
	require.NoError(t, err)

	m, err := New(Config{
		Storage:      store,
		DocumentPath: doc,
		MasterName:   "alice",
		Passphrase:   "correct horse",
		Host:         "127.0.0.1",
		Logger:       testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))

	bob := join(t, m, api.Auth{PeerID: "bob", Passphrase: "correct horse"})
	bob.change(func(s *crdt.Store) {
		require.NoError(t, s.Set(comment("r1", "remember me")))
	})
	waitFor(t, func() bool {
		_, ok := m.GetBlock("r1")
		return ok
	})

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	assert.Equal(t, api.CloseNormal, bob.expectClose())
	require.NoError(t, m.Stop(ctx), "second stop is a no-op")

	text, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Contains(t, string(text), "remember me")

	stored, err := store.LoadSession(ctx, m.SessionID())
	require.NoError(t, err)

	resumed, err := New(Config{
		Storage:      store,
		InitialState: stored,
		Host:         "127.0.0.1",
		Logger:       testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = resumed.Stop(context.Background()) })
	assert.Equal(t, m.SessionID(), resumed.SessionID())
	assert.Equal(t, doc, resumed.Session().DocumentPath)

	got, ok := resumed.GetBlock("r1")
	require.True(t, ok)
	assert.Equal(t, "remember me", got.Content)

	// Парольная фраза переживает возобновление
	require.NotNil(t, resumed.passphrase)
	assert.True(t, resumed.passphrase.Verify("correct horse"))
}

func TestMaster_JournalRecordsDecisions(t *testing.T) {
	var mu sync.Mutex
	var recorded []models.Decision
	journal := &storage.JournalMock{
		RecordFunc: func(ctx context.Context, decisions ...models.Decision) error {
			mu.Lock()
			defer mu.Unlock()
			recorded = append(recorded, decisions...)
			return nil
		},
	}
	m := startMaster(t, Config{Journal: journal})

	viewer := join(t, m, api.Auth{PeerID: "vic", Role: models.RoleViewer})
	viewer.change(func(s *crdt.Store) {
		require.NoError(t, s.Set(comment("j1", "nope")))
	})
	viewer.expect(api.KindReject)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(recorded) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, recorded[0].Admitted)
	assert.Equal(t, "vic", recorded[0].PeerID)
	assert.Equal(t, "add", recorded[0].Action)
	assert.Equal(t, m.SessionID(), recorded[0].SessionID)
}

func TestMaster_StartErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	m, err := New(Config{Host: "127.0.0.1", Port: port, Logger: testLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	err = m.Start(context.Background())
	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.True(t, bindErr.IsAddrInUse())
	assert.Contains(t, bindErr.Addr, strconv.Itoa(port))

	started := startMaster(t, Config{})
	assert.ErrorIs(t, started.Start(context.Background()), ErrAlreadyStarted)
}

func TestMaster_HTTPAPI(t *testing.T) {
	m := startMaster(t, Config{})
	base := "http://" + m.Addr() + "/api/v1"

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/session")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+"/session", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+m.AdminToken())
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), m.SessionID())

	req, err = http.NewRequest(http.MethodPost, base+"/tokens", strings.NewReader(`{"role":"viewer"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+m.AdminToken())
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get("http://" + m.Addr() + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "gophreview_peers_connected")
}
