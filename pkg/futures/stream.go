package futures

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"futurex/internal/ws"
	"futurex/pkg/core"
	"futurex/pkg/prices"
)

// Stream keeps a prices.Store current from the bookTicker websocket stream.
// It subscribes to every watched symbol each time the socket opens and never
// reconnects on its own; call Connect again after a drop.
type Stream struct {
	conn       *ws.WSClient
	normalizer *Normalizer
	prices     *prices.Store
	logger     zerolog.Logger

	mu      sync.Mutex
	watched []string

	requestID atomic.Int64
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type wsRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type wsEnvelope struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	ID        *int64 `json:"id"`
	Error *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
}

// NewStream builds a Stream over the configured stream URL. The symbols in
// config.StreamSymbols are watched from the start. No connection is made.
func NewStream(config *core.Config, opts ...Option) (*Stream, error) {
	if config == nil {
		return nil, errors.New("config is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	options := applyOptions(opts...)

	conn := ws.NewWSClient(ws.WSConfig{
		URL:        config.WebsocketURL(),
		BufferSize: config.StreamBufferSize,
	})
	conn.SetLogger(options.Logger)

	s := &Stream{
		conn:       conn,
		normalizer: NewNormalizer(),
		prices:     options.Prices,
		logger:     options.Logger,
	}
	for _, symbol := range config.StreamSymbols {
		s.watch(symbol)
	}

	conn.OnDial(s.resetRequestIDs)
	conn.OnOpen(s.onOpen)
	s.wg.Go(s.consume)

	return s, nil
}

// Prices returns the store updated by the stream.
func (s *Stream) Prices() *prices.Store {
	return s.prices
}

// State returns the connection state.
func (s *Stream) State() ws.ConnState {
	return s.conn.State()
}

// Watch adds contract to the symbols subscribed on every open. It takes
// effect on the next Connect; use Subscribe on an open stream.
func (s *Stream) Watch(contract core.Contract) {
	s.watch(contract.Symbol)
}

func (s *Stream) watch(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.watched, symbol) {
		return false
	}
	s.watched = append(s.watched, symbol)
	return true
}

func (s *Stream) unwatch(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watched = slices.DeleteFunc(s.watched, func(w string) bool { return w == symbol })
}

// Watched returns the symbols subscribed on open, in watch order.
func (s *Stream) Watched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.watched)
}

// Connect opens the socket and blocks until the subscriptions for every
// watched symbol have been sent.
func (s *Stream) Connect(ctx context.Context) error {
	err := s.conn.Connect(ctx)
	if errors.Is(err, ws.ErrClosed) {
		return core.ErrStreamClosed
	}
	return err
}

// Subscribe starts the bookTicker subscription for contract and watches it
// for later connections. It fails with core.ErrNotConnected unless the socket
// is open.
func (s *Stream) Subscribe(contract core.Contract) error {
	if !s.conn.IsConnected() {
		return core.ErrNotConnected
	}
	if err := s.send("SUBSCRIBE", contract.Symbol); err != nil {
		return err
	}
	s.watch(contract.Symbol)
	return nil
}

// Unsubscribe stops the bookTicker subscription for contract. Entries already
// in the price store are kept.
func (s *Stream) Unsubscribe(contract core.Contract) error {
	if !s.conn.IsConnected() {
		return core.ErrNotConnected
	}
	if err := s.send("UNSUBSCRIBE", contract.Symbol); err != nil {
		return err
	}
	s.unwatch(contract.Symbol)
	return nil
}

// Close closes the socket and waits for the read loop and frame consumer to
// exit.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}

func streamName(symbol string) string {
	return strings.ToLower(symbol) + "@bookTicker"
}

func (s *Stream) send(method, symbol string) error {
	req := wsRequest{
		Method: method,
		Params: []string{streamName(symbol)},
		ID:     s.requestID.Add(1),
	}
	if err := s.conn.SendJSON(req); err != nil {
		if errors.Is(err, ws.ErrNotConnected) {
			return core.ErrNotConnected
		}
		return err
	}

	s.logger.Debug().
		Str("method", method).
		Str("symbol", symbol).
		Int64("id", req.ID).
		Msg("stream request sent")
	return nil
}

// resetRequestIDs runs before each dial, so every connection numbers its
// requests from 1.
func (s *Stream) resetRequestIDs() {
	s.requestID.Store(0)
}

// onOpen runs on the read loop before any frame of the new connection is
// delivered.
func (s *Stream) onOpen(_ *ws.WSClient) {
	for _, symbol := range s.Watched() {
		if err := s.send("SUBSCRIBE", symbol); err != nil {
			s.logger.Warn().
				Err(err).
				Str("symbol", symbol).
				Msg("subscribe on open")
		}
	}
}

func (s *Stream) consume() {
	for frame := range s.conn.Frames() {
		s.handleFrame(frame)
	}
}

// handleFrame applies one inbound frame. Acks are logged, bookTicker events
// update bid and ask together, anything unparseable is logged and dropped.
func (s *Stream) handleFrame(frame []byte) {
	var env wsEnvelope
	if err := exchangeJSON.Unmarshal(frame, &env); err != nil {
		s.logger.Warn().
			Err(err).
			Bytes("frame", frame).
			Msg("stream frame is not json")
		return
	}

	if env.ID != nil {
		if env.Error != nil {
			s.logger.Warn().
				Int64("id", *env.ID).
				Int("code", env.Error.Code).
				Str("msg", env.Error.Msg).
				Msg("stream request rejected")
			return
		}
		s.logger.Debug().
			Int64("id", *env.ID).
			Msg("stream request acknowledged")
		return
	}

	ticker, err := s.normalizer.NormalizeBookTickerEvent(frame)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Bytes("frame", frame).
			Msg("parse stream frame")
		return
	}

	s.prices.Upsert(ticker.Symbol, &ticker.Bid, &ticker.Ask)
}
