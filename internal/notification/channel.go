package notification

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-artists-client/internal/model"
)

// Topic is the single broadcast destination the channel subscribes to.
const Topic = "/topic/notifications"

const (
	// DefaultHeartbeatInterval matches the backend's keepalive expectation.
	DefaultHeartbeatInterval = 25 * time.Second
	DefaultReconnectDelay    = 3 * time.Second
	DefaultMaxReconnects     = 5
)

// Status is the externally visible connection state.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusConnecting   Status = "connecting"
	StatusDisconnected Status = "disconnected"
)

// frame is the subscription handshake sent over the socket.
type frame struct {
	Command     string `json:"command"`
	Destination string `json:"destination"`
}

type listener struct {
	id string
	fn func(model.Notification)
}

// Channel maintains the persistent push connection for live notifications.
// It subscribes to the broadcast topic after every (re)connect, keeps the
// link alive with ping frames, and fans incoming events out to registered
// listeners in registration order.
//
// Abnormal closures trigger a bounded reconnect: after DefaultMaxReconnects
// consecutive failed attempts the channel stays down until Connect or
// ForceReconnect is called again. Exhaustion is observable through Status,
// never thrown at the caller.
type Channel struct {
	url            string
	dialer         *websocket.Dialer
	heartbeat      time.Duration
	reconnectDelay time.Duration
	maxReconnects  int

	mu             sync.Mutex
	conn           *websocket.Conn
	connecting     bool
	attempts       int
	gen            uint64 // bumped by Disconnect so stale dials abandon
	reconnectTimer *time.Timer

	listenersMu sync.Mutex
	listeners   []listener
}

func New(url string) *Channel {
	return NewWithPolicy(url, DefaultHeartbeatInterval, DefaultReconnectDelay, DefaultMaxReconnects)
}

func NewWithPolicy(url string, heartbeat time.Duration, reconnectDelay time.Duration, maxReconnects int) *Channel {
	return &Channel{
		url:            url,
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		heartbeat:      heartbeat,
		reconnectDelay: reconnectDelay,
		maxReconnects:  maxReconnects,
	}
}

// Connect opens the push connection in the background. Idempotent: calling
// it while connected or connecting is a no-op.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.conn != nil || c.connecting {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.reconnectTimer = nil
	gen := c.gen
	c.mu.Unlock()

	go c.dial(gen)
}

func (c *Channel) dial(gen uint64) {
	conn, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		slog.Warn("notification channel dial failed", "url", c.url, "error", err)
		c.mu.Lock()
		c.connecting = false
		stale := c.gen != gen
		c.mu.Unlock()
		if !stale {
			c.scheduleReconnect()
		}
		return
	}

	if err := conn.WriteJSON(frame{Command: "SUBSCRIBE", Destination: Topic}); err != nil {
		slog.Warn("notification topic subscription failed", "error", err)
		conn.Close()
		c.mu.Lock()
		c.connecting = false
		stale := c.gen != gen
		c.mu.Unlock()
		if !stale {
			c.scheduleReconnect()
		}
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		// Disconnected while the dial was in flight.
		c.connecting = false
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.connecting = false
	c.mu.Unlock()

	slog.Info("notification channel connected", "url", c.url)

	_ = conn.SetReadDeadline(time.Now().Add(2 * c.heartbeat))
	conn.SetPongHandler(func(string) error {
		c.resetAttempts()
		return conn.SetReadDeadline(time.Now().Add(2 * c.heartbeat))
	})

	done := make(chan struct{})
	go c.heartbeatLoop(conn, done)
	c.readLoop(conn, done)
}

// readLoop consumes frames until the connection dies. It runs on the dial
// goroutine.
func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.detach(conn) {
				// Intentional disconnect; nothing to do.
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				slog.Info("notification channel closed by server")
				return
			}
			slog.Warn("notification channel dropped", "error", err)
			c.scheduleReconnect()
			return
		}

		// Traffic proves the link is healthy again.
		c.resetAttempts()
		c.dispatch(data)
	}
}

// detach clears the connection if it is still the current one. It returns
// true when the connection was already removed by Disconnect, meaning the
// closure was intentional.
func (c *Channel) detach(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn {
		return true
	}
	c.conn = nil
	return false
}

func (c *Channel) heartbeatLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				// The read loop will observe the dead connection.
				conn.Close()
				return
			}
		}
	}
}

func (c *Channel) dispatch(data []byte) {
	var notification model.Notification
	if err := json.Unmarshal(data, &notification); err != nil {
		slog.Warn("discarding malformed notification", "error", err)
		return
	}

	c.listenersMu.Lock()
	subs := make([]listener, len(c.listeners))
	copy(subs, c.listeners)
	c.listenersMu.Unlock()

	for _, sub := range subs {
		// A panicking listener must not starve the ones after it.
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("notification listener panicked", "panic", r)
				}
			}()
			sub.fn(notification)
		}()
	}
}

func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempts >= c.maxReconnects {
		c.reconnectTimer = nil
		slog.Warn("notification channel gave up reconnecting", "attempts", c.attempts)
		return
	}

	c.attempts++
	slog.Info("notification channel reconnecting", "attempt", c.attempts, "max", c.maxReconnects)
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, c.Connect)
}

func (c *Channel) resetAttempts() {
	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()
}

// Disconnect unsubscribes, closes the transport and cancels any pending
// reconnect by exhausting the attempt counter. Idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.attempts = c.maxReconnects
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.connecting = false
	c.mu.Unlock()

	if conn == nil {
		return
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteJSON(frame{Command: "UNSUBSCRIBE", Destination: Topic})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = conn.Close()

	slog.Info("notification channel disconnected")
}

// ForceReconnect tears the channel down, resets the attempt counter and
// connects again.
func (c *Channel) ForceReconnect() {
	c.Disconnect()

	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()

	c.Connect()
}

// AddListener registers a callback for incoming notifications and returns
// its de-registration function.
func (c *Channel) AddListener(fn func(model.Notification)) func() {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	id := uuid.NewString()
	c.listeners = append(c.listeners, listener{id: id, fn: fn})

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		for i, sub := range c.listeners {
			if sub.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// ClearListeners drops every registered listener.
func (c *Channel) ClearListeners() {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = nil
}

// Status reports the current connection state.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.conn != nil:
		return StatusConnected
	case c.connecting || c.reconnectTimer != nil:
		return StatusConnecting
	default:
		return StatusDisconnected
	}
}

func (c *Channel) IsConnected() bool {
	return c.Status() == StatusConnected
}
