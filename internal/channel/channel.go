// Package channel maintains the client side of a session WebSocket. It
// owns connection lifecycle: connect by session id, deliver decoded
// messages to a handler, and reconnect with the remembered session id
// after an unexpected drop.
package channel

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/michalfoune/rizma-heygen/internal/protocol"
)

// ErrNotConnected is returned by Send when no connection is up. Messages
// are dropped, not queued; callers decide what is worth repeating once
// the channel comes back.
var ErrNotConnected = errors.New("channel: not connected")

// DefaultReconnectBackoff is the delay before an automatic reconnect.
const DefaultReconnectBackoff = 3 * time.Second

// Handler receives every decoded message from the server.
type Handler func(protocol.Message)

// StatusFunc is told about connection state changes.
type StatusFunc func(connected bool)

// Channel is a reconnecting WebSocket session client. All methods are
// safe for concurrent use.
type Channel struct {
	baseURL string
	backoff time.Duration
	handler Handler
	status  StatusFunc
	log     zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	retry     *time.Timer
	closed    bool
}

// Option adjusts channel behavior.
type Option func(*Channel)

// WithBackoff overrides the reconnect delay.
func WithBackoff(d time.Duration) Option {
	return func(c *Channel) { c.backoff = d }
}

// WithStatusFunc registers a connection state callback.
func WithStatusFunc(fn StatusFunc) Option {
	return func(c *Channel) { c.status = fn }
}

// New builds a channel against baseURL (a ws:// or wss:// URL whose path
// prefix routes to the session endpoint, e.g. ws://host/ws).
func New(baseURL string, handler Handler, log zerolog.Logger, opts ...Option) *Channel {
	c := &Channel{
		baseURL: baseURL,
		backoff: DefaultReconnectBackoff,
		handler: handler,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the session endpoint. An empty sessionID reuses the last
// one, which is how the reconnect path restores its session. Connecting
// while already connected to the same session is a no-op; a different
// session id replaces the connection.
func (c *Channel) Connect(sessionID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("channel: closed")
	}
	if sessionID == "" {
		sessionID = c.sessionID
	}
	if sessionID == "" {
		c.mu.Unlock()
		return errors.New("channel: no session id")
	}
	if c.conn != nil {
		if c.sessionID == sessionID {
			c.mu.Unlock()
			return nil
		}
		// Switching sessions: drop the old connection first.
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.sessionID = sessionID
	endpoint, err := url.JoinPath(c.baseURL, sessionID)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("channel: build endpoint: %w", err)
	}
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		c.mu.Lock()
		stillWanted := !c.closed && c.sessionID == sessionID
		if stillWanted {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
		return fmt.Errorf("channel: dial %s: %w", endpoint, err)
	}

	c.mu.Lock()
	if c.closed || c.sessionID != sessionID {
		c.mu.Unlock()
		_ = conn.Close()
		return errors.New("channel: connection superseded")
	}
	c.conn = conn
	c.mu.Unlock()

	c.log.Info().Str("sessionId", sessionID).Msg("session channel connected")
	c.notify(true)
	go c.readLoop(conn, sessionID)
	return nil
}

// Send writes a message to the server. When disconnected it warns and
// returns ErrNotConnected without queuing.
func (c *Channel) Send(m protocol.Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.log.Warn().Str("type", string(m.Kind)).Msg("send while disconnected, message dropped")
		return ErrNotConnected
	}
	if err := conn.WriteJSON(m); err != nil {
		return fmt.Errorf("channel: write: %w", err)
	}
	return nil
}

// Connected reports whether a connection is currently up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SessionID returns the session the channel is bound to, if any.
func (c *Channel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Disconnect tears the connection down deliberately: the pending retry
// is cancelled and the session id forgotten, so no reconnect follows.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	conn := c.conn
	c.conn = nil
	c.sessionID = ""
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
		c.notify(false)
	}
}

// Close shuts the channel down for good.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Disconnect()
}

// readLoop pumps messages until the connection drops, then schedules a
// reconnect unless the drop was deliberate.
func (c *Channel) readLoop(conn *websocket.Conn, sessionID string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			deliberate := c.conn != conn
			if !deliberate {
				c.conn = nil
			}
			wantReconnect := !deliberate && !c.closed && c.sessionID == sessionID
			if wantReconnect {
				c.scheduleReconnectLocked()
			}
			c.mu.Unlock()

			if !deliberate {
				c.log.Warn().Err(err).Str("sessionId", sessionID).Msg("session channel lost")
				c.notify(false)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("skipping undecodable message")
			continue
		}
		if c.handler != nil {
			c.handler(msg)
		}
	}
}

// scheduleReconnectLocked arms the retry timer. Callers hold c.mu.
func (c *Channel) scheduleReconnectLocked() {
	if c.retry != nil {
		c.retry.Stop()
	}
	c.log.Info().Dur("backoff", c.backoff).Msg("scheduling reconnect")
	c.retry = time.AfterFunc(c.backoff, func() {
		if err := c.Connect(""); err != nil {
			c.log.Warn().Err(err).Msg("reconnect failed")
		}
	})
}

func (c *Channel) notify(connected bool) {
	if c.status != nil {
		c.status(connected)
	}
}
