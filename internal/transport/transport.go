// Package transport owns the WebSocket socket: dialing, keepalive, the
// redial loop, and delivery of frames and lifecycle events to the client.
//
// Reconnection lives here, not in the client. After a network-induced close
// the transport waits per the backoff policy and dials again until Close is
// called. The client above only reacts to the Opened/Closed events.
package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/ledgerlink/internal/backoff"
)

// EventKind discriminates transport events.
type EventKind int

const (
	// Opened is emitted once per established socket, before any Frame.
	Opened EventKind = iota
	// Frame carries one inbound message.
	Frame
	// Closed is emitted when a socket session ends. Terminal for that
	// session; a later Opened means the redial loop succeeded again.
	Closed
)

func (k EventKind) String() string {
	switch k {
	case Opened:
		return "opened"
	case Frame:
		return "frame"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Event is delivered in order on the Events channel.
type Event struct {
	Kind EventKind
	Data []byte // Frame only
	Err  error  // Closed only; nil on clean close
}

// Config configures a transport client.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	EventBuffer      int
	Backoff          backoff.Policy
}

// DefaultConfig returns sensible defaults for everything but the URL.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     15 * time.Second,
		EventBuffer:      1024,
		Backoff:          backoff.Default(),
	}
}

// Client is a single logical WebSocket connection with automatic redial.
type Client interface {
	// Start launches the dial/redial loop. It returns immediately; the
	// outcome of each dial arrives on Events.
	Start(ctx context.Context)

	// Send writes one message on the current socket.
	Send(data []byte) error

	// Events returns the ordered event stream.
	Events() <-chan Event

	// Close sends a close frame with the given code and reason, stops the
	// redial loop, and emits a final Closed event. Idempotent.
	Close(code int, reason string) error

	// IsConnected reports whether a socket is currently established.
	IsConnected() bool
}

type client struct {
	cfg    Config
	logger *slog.Logger

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	// Write serialization
	writeMu sync.Mutex

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	stopped   bool
	started   bool
}

// New creates a transport client. Start must be called before Send.
func New(cfg Config, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	return &client{
		cfg:    cfg,
		logger: logger,
		events: make(chan Event, cfg.EventBuffer),
		done:   make(chan struct{}),
	}
}

func (c *client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run(ctx)
}

func (c *client) Events() <-chan Event {
	return c.events
}

func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *client) Send(data []byte) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) Close(code int, reason string) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	conn := c.conn
	c.mu.Unlock()

	close(c.done)

	if conn != nil {
		if code == 0 {
			code = websocket.CloseNormalClosure
		}
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
	return nil
}

// run is the dial/redial loop. One iteration per socket session; dial
// failures retry with backoff without emitting events.
func (c *client) run(ctx context.Context) {
	attempt := 0

	for {
		select {
		case <-c.done:
			c.emitClosed(nil)
			return
		case <-ctx.Done():
			c.emitClosed(ctx.Err())
			return
		default:
		}

		conn, err := c.dial(ctx)
		if err != nil {
			wait := c.cfg.Backoff.Delay(attempt)
			attempt++
			c.logger.Warn("dial failed, backing off",
				"url", c.cfg.URL,
				"attempt", attempt,
				"wait", wait,
				"error", err,
			)
			select {
			case <-time.After(wait):
			case <-c.done:
				c.emitClosed(nil)
				return
			case <-ctx.Done():
				c.emitClosed(ctx.Err())
				return
			}
			continue
		}
		attempt = 0

		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.mu.Unlock()

		c.emit(Event{Kind: Opened})
		c.logger.Debug("websocket connected", "url", c.cfg.URL)

		readErr := c.serve(ctx, conn)

		c.mu.Lock()
		c.connected = false
		c.conn = nil
		stopped := c.stopped
		c.mu.Unlock()

		conn.Close()

		if stopped || ctx.Err() != nil {
			c.emitClosed(readErr)
			return
		}

		// Network-induced drop: report it and let the loop redial.
		c.emit(Event{Kind: Closed, Err: readErr})
		c.logger.Warn("connection dropped, reconnecting", "error", readErr)
	}
}

func (c *client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	return conn, err
}

// serve reads frames from one socket until it fails or the transport stops.
func (c *client) serve(ctx context.Context, conn *websocket.Conn) error {
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	pingStop := make(chan struct{})
	defer close(pingStop)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(conn, pingStop)
	}

	for {
		select {
		case <-c.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
				return err
			}
		}

		c.emit(Event{Kind: Frame, Data: data})
	}
}

// pingLoop sends keepalive pings for the lifetime of one socket.
func (c *client) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}

// emit delivers an event, dropping frames when the consumer is saturated.
// Lifecycle events are never dropped.
func (c *client) emit(ev Event) {
	if ev.Kind == Frame {
		select {
		case c.events <- ev:
		default:
			c.logger.Warn("event buffer full, dropping frame")
		}
		return
	}
	c.events <- ev
}

// emitClosed emits the terminal Closed event exactly once per transport.
func (c *client) emitClosed(err error) {
	c.closeOnce.Do(func() {
		c.events <- Event{Kind: Closed, Err: err}
		close(c.events)
	})
}
