package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// NewUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Conn serialises writes to a gorilla connection, which allows only one
// concurrent writer. Ticks and replies are written from different goroutines.
type Conn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Wrap takes ownership of conn.
func Wrap(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

// Send writes one event.
func (c *Conn) Send(event Event, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(Message{Event: event, Data: data})
}

// SendError writes an error event.
func (c *Conn) SendError(code, message string) error {
	return c.Send(EventError, ErrorData{Code: code, Message: message})
}

// ErrBadPayload wraps decode failures so callers can reply instead of
// dropping the connection.
var ErrBadPayload = errors.New("malformed message")

// Read reads and decodes the next client message. It sets a read deadline.
func (c *Conn) Read(v interface{}) error {
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// IsUnexpectedClose reports whether err is anything but a normal close.
func IsUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure)
}
