package bridge

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// controlWait bounds ping and close-frame writes.
const controlWait = 5 * time.Second

// WSChannel adapts a websocket connection to the bridge transport. One
// value serves either role: the host uses Send and Alive, the guest uses
// Receive. The mutex serializes data writes since the underlying
// connection supports only one concurrent writer; control frames are
// safe without it.
type WSChannel struct {
	conn *websocket.Conn
	mu   sync.Mutex
	dead atomic.Bool
}

// NewWSChannel wraps an already-established connection.
func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{conn: conn}
}

// Send writes one envelope as a text frame.
func (c *WSChannel) Send(data []byte) error {
	if c.dead.Load() {
		return ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.dead.Store(true)
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

// Receive blocks for the next text frame. A normal or going-away close
// from the peer, or our own Close, surfaces as ErrClosed.
func (c *WSChannel) Receive() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.dead.Store(true)
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
			errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("read envelope: %w", err)
	}
	return data, nil
}

// Alive probes the peer with a ping. The host never reads this
// connection, so a passive dead flag alone would not notice a vanished
// guest between sends.
func (c *WSChannel) Alive() bool {
	if c.dead.Load() {
		return false
	}
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWait)); err != nil {
		c.dead.Store(true)
		return false
	}
	return true
}

// Close sends a best-effort close frame and drops the connection.
// Idempotent.
func (c *WSChannel) Close() error {
	if c.dead.Swap(true) {
		return nil
	}
	// Best effort close frame; the peer may already be gone.
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWait))
	return c.conn.Close()
}
