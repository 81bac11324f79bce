package master

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/gophreview/internal/server/metrics"
	"github.com/iudanet/gophreview/pkg/api"
)

const (
	// sendQueueSize размер очереди отправки одного пира
	sendQueueSize = 256
	// writeWait время на запись одного сообщения
	writeWait = 10 * time.Second
	// maxMessageSize максимальный размер входящего конверта
	maxMessageSize = 8 << 20
)

// conn одно websocket-соединение с пиром.
// Писать в сокет может только writePump; остальные кладут сообщения в очередь.
type conn struct {
	ws          *websocket.Conn
	logger      *slog.Logger
	metrics     *metrics.Registry
	send        chan []byte
	closing     chan struct{}
	done        chan struct{}
	closeReason string
	closeCode   int
	closeOnce   sync.Once
}

func newConn(ws *websocket.Conn, reg *metrics.Registry, logger *slog.Logger) *conn {
	ws.SetReadLimit(maxMessageSize)
	return &conn{
		ws:      ws,
		logger:  logger,
		metrics: reg,
		send:    make(chan []byte, sendQueueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// enqueue ставит конверт в очередь без блокировки.
// Переполнение очереди закрывает соединение с кодом overflow.
func (c *conn) enqueue(kind api.Kind, data []byte) bool {
	select {
	case <-c.closing:
		return false
	default:
	}

	select {
	case c.send <- data:
		c.metrics.RecordEnvelope(metrics.DirectionOut, string(kind), len(data))
		return true
	default:
		c.logger.Warn("Send queue overflow, closing connection")
		c.close(api.CloseOverflow, "send queue overflow")
		return false
	}
}

// close инициирует закрытие. Первый код побеждает; уже поставленные
// в очередь сообщения отправляются до close-фрейма.
func (c *conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.closing)
	})
}

// writePump единственный писатель сокета
func (c *conn) writePump() {
	defer close(c.done)
	defer c.ws.Close()

	for {
		select {
		case data := <-c.send:
			if err := c.write(data); err != nil {
				c.logger.Debug("Write failed", "error", err)
				c.close(api.CloseInternal, "write failed")
				return
			}
		case <-c.closing:
			c.flush()
			msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

// flush дописывает то, что уже в очереди
func (c *conn) flush() {
	for {
		select {
		case data := <-c.send:
			if err := c.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) write(data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}
