package relay

import (
	"sync"
	"time"

	"github.com/fasthttp/websocket"
)

// Conn is one side of a relayed session. The websocket connections from
// gofiber/websocket and fasthttp/websocket both satisfy it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

type controlWriter interface {
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

type readLimiter interface {
	SetReadLimit(limit int64)
}

// endpoint serializes writes to a Conn and closes it at most once.
type endpoint struct {
	conn         Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newEndpoint(conn Conn, writeTimeout time.Duration) *endpoint {
	return &endpoint{conn: conn, writeTimeout: writeTimeout}
}

func (e *endpoint) write(messageType int, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if d, ok := e.conn.(writeDeadliner); ok && e.writeTimeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(e.writeTimeout)); err != nil {
			return err
		}
	}
	return e.conn.WriteMessage(messageType, data)
}

func (e *endpoint) writeText(data []byte) error {
	return e.write(websocket.TextMessage, data)
}

// close sends a best-effort close frame and closes the underlying connection.
func (e *endpoint) close(code int, reason string) error {
	e.closeOnce.Do(func() {
		if cw, ok := e.conn.(controlWriter); ok {
			_ = cw.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		}
		e.closeErr = e.conn.Close()
	})
	return e.closeErr
}

func setReadLimit(conn Conn, limit int64) {
	if limit <= 0 {
		return
	}
	if l, ok := conn.(readLimiter); ok {
		l.SetReadLimit(limit)
	}
}
