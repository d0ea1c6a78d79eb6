package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned by writes while the socket is not open.
var ErrNotConnected = errors.New("websocket not connected")

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("websocket client closed")

// WSConfig holds configuration options for a websocket client.
type WSConfig struct {
	// URL is the websocket server endpoint to connect to.
	URL string
	// HandshakeTimeout bounds the dial and upgrade.
	HandshakeTimeout time.Duration
	// PingInterval is the expected interval between server pings.
	PingInterval time.Duration
	// PongWait is the extra time allowed past PingInterval before the read deadline expires.
	PongWait time.Duration
	// BufferSize is the capacity of the inbound frame channel.
	BufferSize int
}

// WSClient owns one websocket at a time. Inbound text frames are copied onto
// a single buffered channel for one consumer; the client never reconnects on
// its own.
type WSClient struct {
	config  WSConfig
	state   *State
	conn    *gws.Conn
	handler *wsEventHandler
	logger  zerolog.Logger
	onDial  func()
	onOpen  func(*WSClient)

	mu            sync.RWMutex
	frames        chan []byte
	connectedChan chan struct{}
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

type wsEventHandler struct {
	client *WSClient
}

// NewWSClient creates a new websocket client with the given configuration.
// Default values are applied for any zero-valued configuration fields.
func NewWSClient(config WSConfig) *WSClient {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.PingInterval == 0 {
		config.PingInterval = 3 * time.Minute
	}
	if config.PongWait == 0 {
		config.PongWait = time.Minute
	}
	if config.BufferSize == 0 {
		config.BufferSize = 256
	}

	client := &WSClient{
		config:        config,
		state:         new(State),
		frames:        make(chan []byte, config.BufferSize),
		connectedChan: make(chan struct{}),
		stopChan:      make(chan struct{}),
		logger:        zerolog.Nop(),
	}
	client.handler = &wsEventHandler{client: client}
	return client
}

// SetLogger configures the logger for the websocket client.
func (c *WSClient) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// OnDial registers a hook run by Connect once the state is Connecting and
// before the dial starts. Nothing can be written to the socket while it runs.
func (c *WSClient) OnDial(fn func()) {
	c.onDial = fn
}

// OnOpen registers a hook run on the read loop goroutine each time a
// connection opens, before any inbound frame is delivered.
func (c *WSClient) OnOpen(fn func(*WSClient)) {
	c.onOpen = fn
}

// Frames returns the inbound frame channel. It is closed by Close.
func (c *WSClient) Frames() <-chan []byte {
	return c.frames
}

func (h *wsEventHandler) OnOpen(socket *gws.Conn) {
	c := h.client
	if !c.state.CompareAndSwap(StateConnecting, StateConnected) {
		return
	}
	_ = socket.SetDeadline(time.Now().Add(c.config.PingInterval + c.config.PongWait))

	c.logger.Info().
		Str("url", c.config.URL).
		Msg("websocket connected")

	if c.onOpen != nil {
		c.onOpen(c)
	}

	c.mu.Lock()
	select {
	case <-c.connectedChan:
	default:
		close(c.connectedChan)
	}
	c.mu.Unlock()
}

func (h *wsEventHandler) OnClose(socket *gws.Conn, err error) {
	c := h.client

	c.mu.Lock()
	c.connectedChan = make(chan struct{})
	c.mu.Unlock()

	c.state.Drop()

	var closeErr *gws.CloseError
	switch {
	case errors.As(err, &closeErr):
		c.logger.Info().
			Uint16("code", closeErr.Code).
			Str("reason", string(closeErr.Reason)).
			Str("url", c.config.URL).
			Msg("websocket closed")
	case c.state.Load() == StateClosed:
		c.logger.Info().
			Str("url", c.config.URL).
			Msg("websocket closed")
	default:
		c.logger.Warn().
			Err(err).
			Str("url", c.config.URL).
			Msg("websocket error")
	}
}

func (h *wsEventHandler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(h.client.config.PingInterval + h.client.config.PongWait))
	_ = socket.WritePong(payload)
}

func (h *wsEventHandler) OnPong(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(h.client.config.PingInterval + h.client.config.PongWait))
}

func (h *wsEventHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	if message.Opcode != gws.OpcodeText {
		return
	}
	data := message.Bytes()
	if len(data) == 0 {
		return
	}

	// The message buffer is pooled and reused after Close.
	frame := make([]byte, len(data))
	copy(frame, data)

	select {
	case h.client.frames <- frame:
	case <-h.client.stopChan:
	}
}

// Connect dials the configured URL and blocks until the socket is open and
// the OnOpen hook has run. Connecting while already connected is a no-op.
func (c *WSClient) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(StateDisconnected, StateConnecting) {
		switch current := c.state.Load(); current {
		case StateConnected:
			return nil
		case StateClosed:
			return ErrClosed
		default:
			return fmt.Errorf("invalid state for connect: %s", current)
		}
	}

	if c.onDial != nil {
		c.onDial()
	}

	c.mu.RLock()
	connected := c.connectedChan
	c.mu.RUnlock()

	socket, _, err := gws.NewClient(c.handler, &gws.ClientOption{
		Addr:             c.config.URL,
		HandshakeTimeout: c.config.HandshakeTimeout,
	})
	if err != nil {
		c.state.CompareAndSwap(StateConnecting, StateDisconnected)
		return fmt.Errorf("connect websocket: %w", err)
	}

	// Close holds mu before it waits on wg, so the read loop is either
	// started here before that or never.
	c.mu.Lock()
	if c.state.Load() == StateClosed {
		c.mu.Unlock()
		_ = socket.NetConn().Close()
		return ErrClosed
	}
	c.conn = socket
	c.wg.Go(func() {
		socket.ReadLoop()
	})
	c.mu.Unlock()

	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		_ = socket.NetConn().Close()
		return ctx.Err()
	case <-c.stopChan:
		_ = socket.NetConn().Close()
		return ErrClosed
	}
}

// Close shuts down the socket, waits for the read loop to exit and closes
// the frame channel. It is safe to call more than once.
func (c *WSClient) Close() error {
	if !c.state.Shutdown() {
		return nil
	}

	close(c.stopChan)

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteClose(1000, nil)
		_ = c.conn.NetConn().Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	close(c.frames)
	return nil
}

// State returns the current connection state of the websocket.
func (c *WSClient) State() ConnState {
	return c.state.Load()
}

// IsConnected returns true if the websocket has an active connection.
func (c *WSClient) IsConnected() bool {
	return c.state.Load() == StateConnected
}

// WriteMessage sends raw bytes as one text frame.
func (c *WSClient) WriteMessage(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil || c.state.Load() != StateConnected {
		return ErrNotConnected
	}

	return c.conn.WriteMessage(gws.OpcodeText, data)
}

// SendJSON marshals the given value to JSON and sends it over the websocket.
func (c *WSClient) SendJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return c.WriteMessage(data)
}
