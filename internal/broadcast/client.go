package broadcast

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Protocol-level keepalive constants, grounded on the upstream
// websocket hub's writePump/readPump timings.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// heartbeatIdle is the application-level idle threshold: if a
	// client sends nothing for this long, the server pushes a
	// {"type":"heartbeat"} frame rather than closing the connection.
	heartbeatIdle = 30 * time.Second
)

// Upgrader is shared across incoming connection requests.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client wraps one WebSocket connection registered with a Hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *logrus.Logger

	mu           sync.Mutex
	closed       bool
	lastActivity time.Time
}

// NewClient wraps an upgraded connection for registration with a hub.
func NewClient(hub *Hub, conn *websocket.Conn, logger *logrus.Logger) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		logger:       logger,
		lastActivity: time.Now(),
	}
}

// Serve registers the client and runs its read/write pumps until the
// connection closes. Blocks until both pumps exit.
func (c *Client) Serve() {
	c.hub.Register(c)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	go func() {
		defer wg.Done()
		c.readPump()
	}()
	wg.Wait()

	c.hub.Unregister(c)
}

// deliver enqueues payload for the write pump, failing if the client
// doesn't drain its queue within timeout. A full send channel means a
// stalled writer; eviction is the hub's policy, not this method's.
func (c *Client) deliver(payload []byte, timeout time.Duration) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	select {
	case c.send <- payload:
		return true
	case <-time.After(timeout):
		return false
	}
}

// close marks the client closed and stops its write pump. Safe to call
// more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.conn.Close()
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Client) idleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastActivity)
}

// readPump drains client frames: protocol pongs refresh the read
// deadline, and an application-level "ping" text frame gets an
// immediate "pong" reply. Any read error (including client close)
// ends the pump.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.touch()

		if string(message) == "ping" {
			select {
			case c.send <- []byte("pong"):
			default:
			}
		}
	}
}

// writePump owns the connection's writer. It drains the send channel,
// enforces the write deadline, pushes protocol pings every pingPeriod,
// and pushes an application heartbeat whenever the client has been
// silent for heartbeatIdle.
func (c *Client) writePump() {
	pingTicker := time.NewTicker(pingPeriod)
	heartbeatTicker := time.NewTicker(heartbeatIdle / 3)
	defer func() {
		pingTicker.Stop()
		heartbeatTicker.Stop()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-heartbeatTicker.C:
			if c.idleFor() < heartbeatIdle {
				continue
			}
			payload, _ := heartbeatPayload()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			c.touch()
		}
	}
}
