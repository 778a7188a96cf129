package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// sendBufferSize bounds the per-connection outbound queue. A member that
// cannot drain this many frames is a slow consumer and gets frames
// dropped rather than stalling its room.
const sendBufferSize = 64

// wsConn is the subset of the websocket connection the hub writes to.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connection is one member socket inside a room. All outbound frames go
// through the send channel and a single write pump goroutine, so the hub
// never writes to the socket concurrently.
type Connection struct {
	ID          string
	RoomID      int64
	UserID      int64
	Username    string
	ConnectedAt time.Time

	conn      wsConn
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	limiter   *rateLimiter
}

// NewConnection wraps an upgraded socket for the given room and identity.
func NewConnection(conn wsConn, roomID, userID int64, username string) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		UserID:      userID,
		Username:    username,
		ConnectedAt: time.Now().UTC(),
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		closed:      make(chan struct{}),
		limiter:     newRateLimiter(burstSize, messagesPerSecond),
	}
}

// writePump drains the send channel onto the socket. It exits when the
// connection is closed.
func (c *Connection) writePump() {
	for {
		select {
		case data := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Warn("WebSocket write failed", "connectionID", c.ID, "error", err)
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// enqueue offers a frame to the write pump. It reports false when the
// connection is closed or its buffer is full.
func (c *Connection) enqueue(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close shuts the connection down exactly once.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}
