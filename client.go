// Package mqclient is a single-threaded, cooperative MQTT 3.1.1
// client: it frames control packets on a byte stream, tracks
// in-flight packet identifiers, enforces QoS 0/1 delivery through
// retransmission, dispatches inbound publishes to subscription
// handlers with wildcard matching, and maintains liveness via
// keep-alive pings — all inside a single event loop sharing one
// socket, with no background goroutines.
package mqclient

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gonzalop/mqclient/internal/idgen"
)

// Client owns the byte transport, the packet-identifier counter, the
// connection settings and the last-activity timestamp exclusively
// (spec.md §3 "Ownership"). None of its exported methods are safe for
// concurrent use from multiple goroutines; see SPEC_FULL.md §5.
type Client struct {
	host string
	port int

	clientID string
	caFile   string

	store  SessionStore
	logger Logger
	clock  Clock
	rec    Recorder

	transport *transport

	settings       ConnectionSettings
	lastActivityAt time.Time
	lastSweepAt    time.Time
	nextID         uint16

	closed atomic.Bool
}

// Option configures a Client at construction time, mirroring the
// teacher's functional-options style (options.go's WithXxx family)
// applied to construction instead of to ConnectionSettings.
type Option func(*Client)

// WithClientID fixes the MQTT client identifier. Without it, New
// generates a random one (internal/idgen).
func WithClientID(id string) Option {
	return func(c *Client) { c.clientID = id }
}

// WithCAFile configures a PEM CA bundle used to verify the broker's
// certificate for tls:// connections.
func WithCAFile(path string) Option {
	return func(c *Client) { c.caFile = path }
}

// WithSessionStore overrides the default in-memory SessionStore —
// primarily for tests that want to substitute a fake (spec.md §3
// "Ownership").
func WithSessionStore(s SessionStore) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger overrides the default no-op Logger.
func WithLogger(l Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides the default real-time Clock (tests only).
func WithClock(clk Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithRecorder attaches a metrics Recorder (see metrics.go).
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.rec = r }
}

// New constructs a Client for host:port. Call Connect to perform the
// handshake before issuing any operation; every public operation
// fails with ErrClosed until Connect succeeds (spec.md §3 invariant
// 4).
func New(host string, port int, opts ...Option) *Client {
	c := &Client{
		host:   host,
		port:   port,
		logger: NopLogger{},
		clock:  realClock{},
		rec:    NopRecorder{},
		nextID: 1,
	}
	c.closed.Store(true)

	for _, opt := range opts {
		opt(c)
	}

	if c.clientID == "" {
		c.clientID = idgen.NewClientID()
	}
	if c.store == nil {
		c.store = newMemStore(c.clock)
	}
	return c
}

// Connect dials the broker (tcp:// by default, or tls:// when a CA
// file was supplied via WithCAFile) and performs the CONNECT/CONNACK
// handshake described in spec.md §4.D.
func (c *Client) Connect(settings ConnectionSettings, cleanSession bool) error {
	scheme := "tcp"
	if c.caFile != "" {
		scheme = "tls"
	}
	addr := fmt.Sprintf("%s://%s:%d", scheme, c.host, c.port)
	return c.ConnectURL(addr, settings, cleanSession)
}

// ConnectURL is Connect but with an explicit scheme://host:port URL,
// allowing tls:// dialing.
func (c *Client) ConnectURL(addr string, settings ConnectionSettings, cleanSession bool) error {
	t, err := dialTransport(addr, dialOptions{
		timeout:     settings.SocketTimeout,
		blockSocket: settings.BlockSocket,
		caFile:      c.caFile,
	})
	if err != nil {
		return err
	}

	c.transport = t
	c.settings = settings
	c.lastSweepAt = c.clock.Now()

	if err := c.connect(c.clientID, settings, cleanSession); err != nil {
		_ = t.close()
		c.transport = nil
		return err
	}

	c.closed.Store(false)
	return nil
}

// Close performs an orderly shutdown: DISCONNECT, then shuts down the
// writable half of the stream (spec.md §4.E, §5). It is safe to call
// more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.transport == nil {
		return nil
	}
	err := c.disconnect()
	closeErr := c.transport.close()
	if err != nil {
		return err
	}
	return closeErr
}

// requireOpen enforces spec.md §3 invariant 4: while the socket is
// closed, all public operations fail with a transport error, and none
// mutate session state.
func (c *Client) requireOpen() error {
	if c.closed.Load() || c.transport == nil {
		return ErrClosed
	}
	return nil
}

// allocatePacketID returns the next packet identifier, wrapping from
// 65535 back to 1 (0 is reserved) and skipping any value still held
// by the session store (spec.md §3 data model, open question §9.3).
func (c *Client) allocatePacketID() (uint16, error) {
	start := c.nextID
	for {
		id := c.nextID
		if c.nextID == 65535 {
			c.nextID = 1
		} else {
			c.nextID++
		}

		if !c.store.HasPendingMessageID(id) {
			return id, nil
		}

		if c.nextID == start {
			return 0, fmt.Errorf("mqclient: packet identifier space exhausted (65535 in flight)")
		}
	}
}
