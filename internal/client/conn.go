package client

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/frame"
	"main/pkg/exception"
)

// State is the observable connection state.
type State uint32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultDialRetries       = 3
)

// Config defines the transport connection.
type Config struct {
	URL               string
	Origin            string
	UserAgent         string
	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration
	// DialRetries caps the exponential-backoff dial attempts of Connect.
	// Reconnects triggered by Send never retry more than once.
	DialRetries        uint64
	InsecureSkipVerify bool
	Clock              clock.Clock
}

// Conn owns the single duplex socket to the venue: one receive loop, one
// heartbeat loop, serialized writes, and a single-flight reconnect.
type Conn struct {
	cfg     Config
	clock   clock.Clock
	handler func(raw []byte)

	state atomic.Uint32

	mu         sync.Mutex // guards ws and loop lifecycle
	ws         *websocket.Conn
	loopCancel context.CancelFunc

	writeMu     sync.Mutex
	reconnectMu sync.Mutex
}

// New builds a connection that feeds every received frame to handler.
func New(cfg Config, handler func(raw []byte)) *Conn {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Conn{
		cfg:     cfg,
		clock:   cfg.Clock,
		handler: handler,
	}
}

// State returns the current connection state.
func (c *Conn) State() State {
	if c == nil {
		return StateDisconnected
	}
	return State(c.state.Load())
}

// Connected reports whether the socket is established.
func (c *Conn) Connected() bool {
	return c.State() == StateConnected
}

// Connect dials the venue with backoff, then starts the receive and
// heartbeat loops. A handshake that never completes surfaces as a
// connection error.
func (c *Conn) Connect(ctx context.Context) error {
	if c == nil {
		return exception.ErrNilInstance
	}
	if c.Connected() {
		return nil
	}

	c.state.Store(uint32(StateConnecting))

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.dialRetries()), ctx)
	var ws *websocket.Conn
	err := backoff.Retry(func() error {
		conn, dialErr := c.dial(ctx)
		if dialErr != nil {
			logs.Warnf("dial %s failed, err: %+v", c.cfg.URL, dialErr)
			return dialErr
		}
		ws = conn
		return nil
	}, policy)
	if err != nil {
		c.state.Store(uint32(StateDisconnected))
		return errors.Wrap(exception.ErrHandshakeFailed, err.Error())
	}

	c.install(ws)
	logs.Infof("connected to %s", c.cfg.URL)
	return nil
}

// Disconnect cancels both loops and closes the socket, tolerating close
// errors.
func (c *Conn) Disconnect() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	c.state.Store(uint32(StateDisconnected))

	if ws != nil {
		if err := ws.Close(); err != nil {
			logs.Warnf("close socket, err: %+v", err)
		}
	}
	return nil
}

// Send transmits one outbound frame. A send on a dropped connection
// transparently attempts exactly one reconnect before retrying the send
// once; a second consecutive failure surfaces a transport error.
func (c *Conn) Send(ctx context.Context, f frame.Outbound) error {
	if c == nil {
		return exception.ErrNilInstance
	}

	payload, err := f.Encode()
	if err != nil {
		return err
	}

	if !c.Connected() {
		if err := c.reconnect(ctx); err != nil {
			return err
		}
	}

	if err := c.write(payload); err == nil {
		return nil
	} else {
		logs.Warnf("send failed, reconnecting once, err: %+v", err)
	}

	c.markDown()
	if err := c.reconnect(ctx); err != nil {
		return err
	}
	if err := c.write(payload); err != nil {
		c.markDown()
		return errors.Wrap(exception.ErrConnectionClosed, err.Error())
	}
	return nil
}

func (c *Conn) dialRetries() uint64 {
	if c.cfg.DialRetries == 0 {
		return DefaultDialRetries
	}
	return c.cfg.DialRetries
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify},
	}

	header := http.Header{}
	if c.cfg.Origin != "" {
		header.Set("Origin", c.cfg.Origin)
	}
	if c.cfg.UserAgent != "" {
		header.Set("User-Agent", c.cfg.UserAgent)
	}

	ws, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return ws, err
}

// reconnect is single-flight: concurrent callers wait for the in-flight
// attempt instead of dialing twice. It dials exactly once.
func (c *Conn) reconnect(ctx context.Context) error {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	if c.Connected() {
		return nil
	}

	c.state.Store(uint32(StateConnecting))
	ws, err := c.dial(ctx)
	if err != nil {
		c.state.Store(uint32(StateDisconnected))
		return errors.Wrap(exception.ErrReconnectFailed, err.Error())
	}

	c.install(ws)
	logs.Infof("reconnected to %s", c.cfg.URL)
	return nil
}

func (c *Conn) install(ws *websocket.Conn) {
	loopCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.loopCancel != nil {
		c.loopCancel()
	}
	c.ws = ws
	c.loopCancel = cancel
	c.mu.Unlock()

	c.state.Store(uint32(StateConnected))

	go c.receiveLoop(loopCtx, ws)
	go c.heartbeatLoop(loopCtx)
}

func (c *Conn) write(payload []byte) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return exception.ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteMessage(websocket.TextMessage, payload)
}

// markDown clears the connected flag so subsequent sends observe the
// failure and trigger reconnect logic.
func (c *Conn) markDown() {
	c.mu.Lock()
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
	}
	c.state.Store(uint32(StateDisconnected))
}

func (c *Conn) receiveLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logs.Warnf("receive loop stopped, err: %+v", err)
				c.markDown()
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if c.handler != nil {
			c.handler(data)
		}
	}
}

// heartbeatLoop emits a keepalive ping at a fixed interval independent of
// application traffic, terminating when the connection flag clears.
func (c *Conn) heartbeatLoop(ctx context.Context) {
	ticker := c.clock.Ticker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.Connected() {
				return
			}
			payload, err := frame.Ping().Encode()
			if err != nil {
				logs.Errorf("encode ping, err: %+v", err)
				return
			}
			if err := c.write(payload); err != nil {
				logs.Warnf("heartbeat write failed, err: %+v", err)
				return
			}
		}
	}
}
