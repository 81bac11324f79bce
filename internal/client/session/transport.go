package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/gophreview/pkg/api"
)

const (
	sendQueueSize = 256
	writeWait     = 10 * time.Second
)

// transport одно websocket-соединение с мастером. В сокет пишет только writePump.
type transport struct {
	ws          *websocket.Conn
	logger      *slog.Logger
	send        chan []byte
	closing     chan struct{}
	done        chan struct{}
	closeReason string
	keepalive   time.Duration
	closeCode   int
	closeOnce   sync.Once
}

func newTransport(ws *websocket.Conn, keepalive time.Duration, logger *slog.Logger) *transport {
	return &transport{
		ws:        ws,
		logger:    logger,
		keepalive: keepalive,
		send:      make(chan []byte, sendQueueSize),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// enqueue кодирует конверт и ставит его в очередь без блокировки
func (t *transport) enqueue(env *api.Envelope) bool {
	data, err := api.Encode(env)
	if err != nil {
		t.logger.Error("Failed to encode envelope", "kind", env.Kind, "error", err)
		return false
	}

	select {
	case <-t.closing:
		return false
	default:
	}

	select {
	case t.send <- data:
		return true
	default:
		// Неотправленное уйдет после переподключения вместе с остальными правками
		t.logger.Warn("Send queue overflow, dropping connection")
		t.close(api.CloseInternal, "send queue overflow")
		return false
	}
}

// close инициирует закрытие с кодом code. Первый вызов побеждает.
func (t *transport) close(code int, reason string) {
	t.closeOnce.Do(func() {
		t.closeCode = code
		t.closeReason = reason
		close(t.closing)
	})
}

// abort рвет соединение без close-фрейма
func (t *transport) abort() {
	_ = t.ws.Close()
}

func (t *transport) read() (*api.Envelope, error) {
	_, data, err := t.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return api.Decode(data)
}

// writePump пишет очередь и раз в keepalive отправляет ping
func (t *transport) writePump() {
	defer close(t.done)
	defer t.abort()

	var tick <-chan time.Time
	if t.keepalive > 0 {
		ticker := time.NewTicker(t.keepalive)
		defer ticker.Stop()
		tick = ticker.C
	}

	ping, err := api.Encode(api.NewPing())
	if err != nil {
		t.logger.Error("Failed to encode ping", "error", err)
		return
	}

	for {
		select {
		case data := <-t.send:
			if err := t.write(data); err != nil {
				t.logger.Debug("Write failed", "error", err)
				return
			}
		case <-tick:
			if err := t.write(ping); err != nil {
				t.logger.Debug("Keepalive failed", "error", err)
				return
			}
		case <-t.closing:
			t.flush()
			msg := websocket.FormatCloseMessage(t.closeCode, t.closeReason)
			_ = t.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

func (t *transport) flush() {
	for {
		select {
		case data := <-t.send:
			if err := t.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (t *transport) write(data []byte) error {
	if err := t.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.ws.WriteMessage(websocket.BinaryMessage, data)
}
