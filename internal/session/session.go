// Package session implements the session supervisor: one infinite
// reconnect loop per configured (exchange, symbol-group) session, driving
// frames through the normalizer, builder and emitter, and emitting
// ConnectionStatus lifecycle events through the same pipeline it feeds.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sicarius01/CryptoFeeder/internal/builder"
	"github.com/sicarius01/CryptoFeeder/internal/canonical"
	"github.com/sicarius01/CryptoFeeder/internal/config"
	"github.com/sicarius01/CryptoFeeder/internal/emitter"
	"github.com/sicarius01/CryptoFeeder/internal/metrics"
	"github.com/sicarius01/CryptoFeeder/internal/normalize"
	"github.com/sicarius01/CryptoFeeder/internal/venue"
	"github.com/sicarius01/CryptoFeeder/internal/wire"
)

// Pipeline is the shared, already-constructed tail of the processing
// pipeline every session feeds into: normalize -> build -> send. Every
// collaborator is safe for concurrent use by every session.
type Pipeline struct {
	Normalizer *normalize.Normalizer
	Builder    *builder.Builder
	Emitter    *emitter.Emitter
	Tracker    *Tracker          // nil disables heartbeat liveness tracking
	Metrics    *metrics.Registry // nil if metrics are disabled
}

// Supervisor runs the reconnect loop for one configured session. A
// Supervisor owns no lock shared with any other session; a failure in one
// never blocks or cancels another.
type Supervisor struct {
	spec     config.SessionSpec
	endpoint config.Endpoint
	venueID  venue.ID
	kind     venue.MarketKind
	tag      string // e.g. "BinanceSpot"
	port     int    // destination multicast port for this session's traffic

	pipeline Pipeline
	logger   *zap.Logger
	dialer   *websocket.Dialer

	state wire.ConnStatus
	retry uint32
}

// New constructs a Supervisor for one SessionSpec. port is the multicast
// destination port datagrams from this session are sent to.
func New(spec config.SessionSpec, endpoint config.Endpoint, pipeline Pipeline, logger *zap.Logger, port int) *Supervisor {
	id, kind := venue.ParseTag(spec.Exchange)
	tag := venue.SessionTag(spec.Exchange)
	return &Supervisor{
		spec:     spec,
		endpoint: endpoint,
		venueID:  id,
		kind:     kind,
		tag:      tag,
		port:     port,
		pipeline: pipeline,
		logger:   logger.With(zap.String("session", tag), zap.Strings("symbols", spec.Symbols)),
		dialer: &websocket.Dialer{
			HandshakeTimeout: time.Duration(endpoint.TimeoutMs) * time.Millisecond,
		},
		state: wire.ConnDisconnected,
	}
}

// Run drives the session's infinite reconnect loop until ctx is
// cancelled or retries are exhausted. It returns nil on context
// cancellation (graceful shutdown) and a non-nil error only on terminal
// retry exhaustion; other sessions continue regardless.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		s.transition(wire.ConnConnecting)
		connErr := s.connectAndListen(ctx)

		if ctx.Err() != nil {
			return nil
		}

		if connErr == nil {
			// Graceful close: CONNECTED -> DISCONNECTED, retry count
			// resets and the loop immediately attempts to reconnect.
			s.transition(wire.ConnDisconnected)
			s.retry = 0
			continue
		}

		s.logger.Warn("session connection lost", zap.Error(connErr))
		s.transition(wire.ConnReconnecting)

		s.retry++
		if s.retry > maxRetries {
			s.transition(wire.ConnFailed)
			s.logger.Error("session exhausted retries, giving up", zap.Uint32("retry", s.retry))
			return fmt.Errorf("session: %s: exhausted %d retries: %w", s.tag, maxRetries, connErr)
		}

		delay := time.Duration(backoffSchedule(int(s.retry)-1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// connectAndListen dials the session's stream URL, reads frames until
// error or close, and feeds every text/binary frame to the pipeline. It
// returns nil only on a graceful server-initiated close.
func (s *Supervisor) connectAndListen(ctx context.Context) error {
	streamURL := buildStreamURL(s.venueID, s.kind, s.endpoint.WSURLBase, s.spec.Symbols)

	conn, _, err := s.dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", streamURL, err)
	}
	defer conn.Close()

	s.transition(wire.ConnConnected)
	s.retry = 0

	for _, evt := range s.subscriptionEvents(wire.SubStatusActive) {
		s.emitRecord(evt)
	}

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	pingInterval := time.Duration(s.endpoint.PingIntervalMs) * time.Millisecond
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go s.pingLoop(pingCtx, conn, pingInterval)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		switch msgType {
		case websocket.TextMessage, websocket.BinaryMessage:
			s.handleFrame(data)
		default:
			// Pong and other control frames: ignored.
		}
	}
}

// pingLoop sends a WebSocket ping control frame every interval, mirroring
// the server-driven ping/pong Binance itself issues (conn's PingHandler
// answers those); this half keeps intermediate proxies and venues that
// expect a client-initiated ping alive.
func (s *Supervisor) pingLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping write failed", zap.Error(err))
				return
			}
		}
	}
}

// handleFrame normalizes one raw frame and pushes every resulting record
// through the builder and emitter. Parse errors are logged and dropped;
// the connection is retained.
func (s *Supervisor) handleFrame(raw []byte) {
	records, err := s.pipeline.Normalizer.Parse(s.venueID, raw, s.tag)
	if err != nil {
		if s.pipeline.Metrics != nil {
			s.pipeline.Metrics.ParseErrors.Inc()
		}
		s.logger.Debug("parse error, dropping frame", zap.Error(err))
		s.emitRecord(canonical.SystemEvent{
			Kind: canonical.ErrorEvent,
			Err: &canonical.ErrorEventData{
				ErrorType:  wire.ErrorTypeParse,
				ExchangeID: uint16(s.venueID),
				Severity:   wire.SeverityWarning,
			},
		})
		return
	}
	for _, rec := range records {
		s.emitRecord(rec)
	}
}

// emitRecord builds and sends one canonical record, draining pool
// buffers regardless of send outcome. Serialization and send failures are
// logged, never fatal for the session.
func (s *Supervisor) emitRecord(rec any) {
	datagrams, err := s.pipeline.Builder.Build(rec)
	if err != nil {
		s.logger.Debug("serialization error, dropping record", zap.Error(err))
		return
	}
	for _, buf := range datagrams {
		if sendErr := s.pipeline.Emitter.SendToPort(*buf, s.port); sendErr != nil {
			s.logger.Debug("send error", zap.Error(sendErr))
		} else if s.pipeline.Metrics != nil {
			s.pipeline.Metrics.PacketsSent.Inc()
			s.pipeline.Metrics.BytesSent.Add(float64(len(*buf)))
		}
		s.pipeline.Builder.Release(buf)
	}
}

// transition applies a single state-machine edge from the session's
// current tracked state to "to" and emits the resulting ConnectionStatus
// event through the pipeline.
func (s *Supervisor) transition(to wire.ConnStatus) {
	from := s.state
	if !isValidTransition(from, to) {
		s.logger.Debug("ignoring invalid state transition", zap.Uint8("from", uint8(from)), zap.Uint8("to", uint8(to)))
		return
	}
	s.state = to

	if to == wire.ConnConnected {
		if s.pipeline.Tracker != nil {
			s.pipeline.Tracker.connected()
		}
		if s.pipeline.Metrics != nil {
			s.pipeline.Metrics.ActiveSessions.Inc()
		}
	}
	if from == wire.ConnConnected && to != wire.ConnConnected {
		if s.pipeline.Tracker != nil {
			s.pipeline.Tracker.disconnected()
		}
		if s.pipeline.Metrics != nil {
			s.pipeline.Metrics.ActiveSessions.Dec()
		}
	}
	if s.pipeline.Metrics != nil && to == wire.ConnReconnecting {
		s.pipeline.Metrics.SessionRetries.WithLabelValues(s.tag).Inc()
	}

	evt := canonical.SystemEvent{
		Kind: canonical.ConnectionStatus,
		ConnStatus: &canonical.ConnectionStatusData{
			ExchangeName: s.tag,
			ExchangeID:   uint16(s.venueID),
			Prev:         uint8(from),
			Cur:          uint8(to),
			Retry:        s.retry,
		},
	}
	s.emitRecord(evt)
}

// subscriptionEvents reports one SubscriptionStatus event per (symbol,
// channel) pair this session's stream carries. Binance sessions subscribe
// a trade and a depth channel per symbol through the combined-stream URL;
// other venues report the single post-connect subscription their frames
// arrive on.
func (s *Supervisor) subscriptionEvents(status uint8) []canonical.SystemEvent {
	subTypes := []uint8{wire.SubTypeTrade}
	if s.venueID == venue.Binance {
		subTypes = []uint8{wire.SubTypeTrade, wire.SubTypeDepth}
	}
	events := make([]canonical.SystemEvent, 0, len(s.spec.Symbols)*len(subTypes))
	for _, sym := range s.spec.Symbols {
		for _, st := range subTypes {
			events = append(events, canonical.SystemEvent{
				Kind: canonical.SubscriptionStatus,
				SubStatus: &canonical.SubscriptionStatusData{
					ExchangeName: s.tag,
					ExchangeID:   uint16(s.venueID),
					SubType:      st,
					Status:       status,
					SymbolShort:  sym,
				},
			})
		}
	}
	return events
}
