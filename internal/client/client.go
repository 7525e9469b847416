// Package client implements the persistent multiplexing connection: request
// correlation, listener fan-out, and the connection lifecycle over a
// redialing transport.
package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rickgao/ledgerlink/internal/backoff"
	"github.com/rickgao/ledgerlink/internal/metrics"
	"github.com/rickgao/ledgerlink/internal/transport"
)

// Defaults for client options.
const (
	DefaultURL            = "wss://ws01.casinocoin.org:4443"
	DefaultRequestTimeout = 30 * time.Second

	// NoTimeout disables per-request timeouts when set as RequestTimeout.
	NoTimeout time.Duration = -1
)

// ConnState is the connection lifecycle state. Transitions only ever run
// Idle → Connecting → Open → Closed → Connecting → …
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Transport is the capability the client needs from the socket layer.
// Satisfied by transport.Client.
type Transport interface {
	Start(ctx context.Context)
	Send(data []byte) error
	Events() <-chan transport.Event
	Close(code int, reason string) error
	IsConnected() bool
}

// TransportFactory builds a fresh transport for one connection generation.
type TransportFactory func() Transport

// Options configures a Client.
type Options struct {
	// URL is the transport endpoint. Defaults to DefaultURL.
	URL string

	// RequestTimeout bounds both Connect and each request's wait for a
	// reply. The zero value means DefaultRequestTimeout, not "no
	// timeout", so a zero-valued Options never waits forever by
	// accident. To disable per-request timeouts set NoTimeout.
	RequestTimeout time.Duration

	// Backoff bounds the transport's redial delays. Zero value means
	// backoff.Default().
	Backoff backoff.Policy

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Clock drives request timers. Tests inject a mock; nil means the
	// real clock.
	Clock clock.Clock

	// NewTransport overrides the transport constructor. Tests inject
	// fakes; nil means a websocket transport with the options above.
	NewTransport TransportFactory
}

// connectAttempt is one shared in-flight connect. err is written before
// done is closed; readers take err only after done.
type connectAttempt struct {
	done chan struct{}
	err  error
}

// Client multiplexes requests and push notifications over one logical
// connection.
type Client struct {
	timeout      time.Duration
	logger       *slog.Logger
	clock        clock.Clock
	metrics      *metrics.Metrics
	newTransport TransportFactory

	pending   *pendingTable
	listeners *listenerRegistry
	reqID     atomic.Uint64 // correlation id counter, first id is 1

	reconnectMu  sync.Mutex
	reconnectFns []func()

	mu       sync.Mutex
	state    ConnState
	tr       Transport
	attempt  *connectAttempt
	closing  bool // Disconnect or connect-timeout requested transport stop
	opened   bool // at least one socket session succeeded
	loopDone chan struct{}
}

// New validates options and returns an idle client.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Backoff == (backoff.Policy{}) {
		opts.Backoff = backoff.Default()
	}
	if err := opts.Backoff.Validate(); err != nil {
		return nil, err
	}

	timeout := opts.RequestTimeout
	switch {
	case timeout == 0:
		timeout = DefaultRequestTimeout
	case timeout < 0:
		timeout = 0
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	c := &Client{
		timeout:   timeout,
		logger:    logger,
		clock:     clk,
		metrics:   opts.Metrics,
		pending:   newPendingTable(clk, opts.Metrics),
		listeners: newListenerRegistry(),
		state:     StateIdle,
	}

	c.newTransport = opts.NewTransport
	if c.newTransport == nil {
		cfg := transport.DefaultConfig()
		cfg.URL = opts.URL
		cfg.Backoff = opts.Backoff
		c.newTransport = func() Transport {
			return transport.New(cfg, logger.With("component", "transport"))
		}
	}
	return c, nil
}

// State returns the current lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the connection. Open connections return immediately;
// a connect already underway is joined rather than duplicated. The wait is
// bounded by the request timeout.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateOpen {
		c.mu.Unlock()
		return nil
	}
	att := c.attempt
	if att == nil {
		att = &connectAttempt{done: make(chan struct{})}
		c.attempt = att
		c.state = StateConnecting
		if c.tr == nil {
			c.tr = c.newTransport()
			c.loopDone = make(chan struct{})
			c.tr.Start(context.Background())
			go c.eventLoop(c.tr, c.loopDone)
		}
	}
	c.mu.Unlock()

	var timeoutCh <-chan time.Time
	if c.timeout > 0 {
		timer := c.clock.Timer(c.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-att.done:
		return att.err
	case <-timeoutCh:
		c.failConnect(att)
		<-att.done
		return att.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// failConnect resolves a timed-out attempt: waiting callers get
// ErrConnectTimeout and the transport generation is stopped. A lost race
// with the Opened event leaves the attempt's real outcome in place.
func (c *Client) failConnect(att *connectAttempt) {
	c.mu.Lock()
	if c.attempt != att {
		c.mu.Unlock()
		return
	}
	c.attempt = nil
	c.state = StateClosed
	c.closing = true
	tr := c.tr
	c.mu.Unlock()

	att.err = ErrConnectTimeout
	close(att.done)

	if tr != nil {
		tr.Close(0, "connect timeout")
	}
}

// Disconnect closes the transport and waits until every pending request
// has been rejected. No active transport is a no-op; idempotent.
func (c *Client) Disconnect(code int, reason string) error {
	c.mu.Lock()
	tr := c.tr
	loopDone := c.loopDone
	if tr == nil {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	tr.Close(code, reason)
	<-loopDone
	return nil
}

// Listen registers a wildcard listener invoked for every inbound message.
// The returned remover is idempotent.
func (c *Client) Listen(fn ListenerFunc) func() {
	return c.listeners.add("", fn)
}

// ListenType registers a listener filtered by the message "type" field.
func (c *Client) ListenType(category string, fn ListenerFunc) func() {
	return c.listeners.add(category, fn)
}

// OnReconnect registers a callback invoked after every re-established
// socket (not the first). Server-side state such as subscriptions does not
// survive a drop; callers restore it here. The callback runs on its own
// goroutine so it may issue requests.
func (c *Client) OnReconnect(fn func()) {
	c.reconnectMu.Lock()
	c.reconnectFns = append(c.reconnectFns, fn)
	c.reconnectMu.Unlock()
}

// eventLoop consumes one transport generation's events.
func (c *Client) eventLoop(tr Transport, done chan struct{}) {
	defer close(done)

	for ev := range tr.Events() {
		switch ev.Kind {
		case transport.Opened:
			c.onOpened()
		case transport.Frame:
			c.route(ev.Data)
		case transport.Closed:
			c.onClosed(tr, ev.Err)
		}
	}

	c.mu.Lock()
	if c.tr == tr {
		c.tr = nil
		c.closing = false
		if c.state == StateConnecting {
			c.state = StateClosed
		}
		// A Connect that slipped in after the final Closed event would
		// otherwise wait on an attempt no event can resolve.
		if att := c.attempt; att != nil {
			c.attempt = nil
			att.err = ErrDisconnected
			close(att.done)
		}
	}
	c.mu.Unlock()
}

func (c *Client) onOpened() {
	c.mu.Lock()
	c.state = StateOpen
	att := c.attempt
	c.attempt = nil
	reconnected := c.opened
	c.opened = true
	c.mu.Unlock()

	if reconnected {
		c.metrics.Reconnect()
		c.logger.Info("reconnected")
		c.reconnectMu.Lock()
		fns := make([]func(), len(c.reconnectFns))
		copy(fns, c.reconnectFns)
		c.reconnectMu.Unlock()
		for _, fn := range fns {
			go fn()
		}
	} else {
		c.logger.Info("connected")
	}
	if att != nil {
		close(att.done)
	}
}

// onClosed handles a socket drop. The pending table is fully drained while
// the state is Closed; only afterwards may the state move to Connecting
// for the transport's redial.
func (c *Client) onClosed(tr Transport, err error) {
	c.mu.Lock()
	c.state = StateClosed
	att := c.attempt
	c.attempt = nil
	closing := c.closing
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("connection closed", "error", err)
	} else {
		c.logger.Info("connection closed")
	}

	c.pending.drain(ErrDisconnected)

	if att != nil {
		att.err = ErrDisconnected
		close(att.done)
	}

	if !closing {
		// The transport is already redialing; reflect that.
		c.mu.Lock()
		if c.tr == tr && !c.closing {
			c.state = StateConnecting
		}
		c.mu.Unlock()
	}
}
