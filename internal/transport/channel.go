// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package transport owns one raw bidirectional websocket connection to
// the positioning backend and keeps it alive: heartbeat-based liveness,
// exponential-backoff reconnection with jitter, and stale-handler
// detachment on replacement. The package has no domain knowledge; it
// moves opaque frames and reports lifecycle status through callbacks.
package transport

import (
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wardmap/wardmap/internal/logging"
	"github.com/wardmap/wardmap/internal/metrics"
)

// State is the transport channel lifecycle state.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

// String returns the state's lowercase name for logs and the status API.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Reconnection policy constants. The delay for attempt n is
// min(maxBackoff, baseBackoff * 2^min(n, backoffCapExp)) plus a random
// jitter in [0, jitterMax) to avoid thundering-herd reconnects.
const (
	baseBackoff   = 1 * time.Second
	maxBackoff    = 30 * time.Second
	backoffCapExp = 5
	jitterMax     = 2 * time.Second

	defaultHeartbeatInterval = 20 * time.Second
	handshakeTimeout         = 10 * time.Second
	writeTimeout             = 10 * time.Second
	maxFrameSize             = 512 * 1024 // 512 KB

	// degradedAttempts is the high-water mark past which the channel
	// reports a user-visible degraded condition. Retrying continues
	// regardless.
	degradedAttempts = 5
)

// Callbacks deliver channel events. All callbacks are optional and are
// invoked from channel-owned goroutines without internal locks held;
// they must not call back into the channel synchronously from OnStatus.
type Callbacks struct {
	// OnMessage receives every raw inbound frame in delivery order.
	OnMessage func(payload []byte)
	// OnStatus fires on every state transition.
	OnStatus func(state State)
	// OnError reports recoverable transport errors.
	OnError func(err error)
	// OnReconnect fires when a retry is scheduled, carrying the new
	// attempt number.
	OnReconnect func(attempt int)
	// OnDegraded fires once the attempt counter crosses the high-water
	// mark, suggesting the user check their network.
	OnDegraded func(attempt int)
}

// Config tunes a channel. Zero values use the package defaults.
type Config struct {
	// HeartbeatInterval is how long the channel tolerates inbound
	// silence before sending a heartbeat frame. The timer re-arms on
	// every inbound frame, not just heartbeat acks, so regular traffic
	// suppresses heartbeats entirely.
	HeartbeatInterval time.Duration
	// HeartbeatPayload is the frame sent when the heartbeat timer
	// fires. The transport does not know the protocol; the caller
	// supplies the token. Nil disables heartbeats.
	HeartbeatPayload []byte
}

// Channel owns at most one live websocket connection. Replacing or
// closing the connection detaches its handlers first (by bumping an
// internal generation counter) so a delayed event from an old socket
// can never be attributed to the new one.
//
// All methods are safe for concurrent use.
type Channel struct {
	cfg Config
	cb  Callbacks

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	url      string
	attempts int
	lastErr  error
	manual   bool

	// generation identifies the current connection epoch. Read loops
	// and timers capture it at spawn and become inert once it moves on.
	generation uint64

	heartbeatTimer *time.Timer
	reconnectTimer *time.Timer

	rng *rand.Rand
}

// NewChannel creates an idle channel. Call Open to start connecting.
func NewChannel(cfg Config, cb Callbacks) *Channel {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	return &Channel{
		cfg:   cfg,
		cb:    cb,
		state: StateClosed,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Status returns the current lifecycle state.
func (c *Channel) Status() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the current reconnection attempt counter. It resets
// to zero only on a successful open.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// LastError returns the most recent transport error, if any.
func (c *Channel) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Open connects the channel to the given endpoint, tearing down any
// previous connection first. An empty URL leaves the channel idle: this
// is the deliberate "no device selected yet" state, not an error.
//
// A malformed URL is reported through OnError and leaves the channel
// Closed with no retry loop. Dial failures are recoverable and enter
// the reconnection policy.
func (c *Channel) Open(rawURL string) {
	c.mu.Lock()
	c.detachLocked()
	c.url = rawURL
	c.manual = false

	if rawURL == "" {
		c.setStateLocked(StateClosed)
		c.mu.Unlock()
		return
	}

	if _, err := url.Parse(rawURL); err != nil {
		c.lastErr = fmt.Errorf("parse channel url: %w", err)
		c.setStateLocked(StateClosed)
		errCb := c.cb.OnError
		lastErr := c.lastErr
		c.mu.Unlock()
		if errCb != nil {
			errCb(lastErr)
		}
		return
	}

	gen := c.generation
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	go c.dial(gen)
}

// Send writes one frame. It is a silent no-op unless the channel is
// Open; a write failure is reported via OnError and the connection is
// dropped so the read loop can drive reconnection.
func (c *Channel) Send(payload []byte) {
	c.mu.Lock()
	if c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		c.lastErr = fmt.Errorf("channel write: %w", err)
		errCb := c.cb.OnError
		lastErr := c.lastErr
		c.mu.Unlock()

		metrics.ChannelErrors.WithLabelValues("write").Inc()
		logging.Warn().Err(err).Msg("channel write failed, dropping connection")
		_ = conn.Close()
		if errCb != nil {
			errCb(lastErr)
		}
		return
	}
	c.mu.Unlock()
}

// Close shuts the channel down manually. Reconnection is suppressed and
// all timers are cleared; this is mandatory teardown, not an error path.
func (c *Channel) Close(code int, reason string) {
	c.mu.Lock()
	c.manual = true
	conn := c.conn
	c.detachLocked()
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), deadline)
		_ = conn.Close()
		logging.Info().Int("code", code).Str("reason", reason).Msg("channel closed manually")
	}
}

// dial establishes the connection for the given generation. It runs on
// its own goroutine so Open never blocks the caller.
func (c *Channel) dial(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.manual {
		c.mu.Unlock()
		return
	}
	rawURL := c.url
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.Dial(rawURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}

	c.mu.Lock()
	if gen != c.generation || c.manual {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		c.lastErr = fmt.Errorf("channel dial: %w", err)
		errCb := c.cb.OnError
		lastErr := c.lastErr
		c.setStateLocked(StateClosed)
		c.scheduleReconnectLocked(gen)
		c.mu.Unlock()

		metrics.ChannelErrors.WithLabelValues("dial").Inc()
		logging.Warn().Err(err).Str("url", rawURL).Msg("channel dial failed")
		if errCb != nil {
			errCb(lastErr)
		}
		return
	}

	conn.SetReadLimit(maxFrameSize)
	c.conn = conn
	c.attempts = 0
	c.lastErr = nil
	c.setStateLocked(StateOpen)
	c.armHeartbeatLocked(gen)
	c.mu.Unlock()

	logging.Info().Str("url", rawURL).Msg("channel open")
	go c.readLoop(conn, gen)
}

// readLoop pumps inbound frames until the connection dies. It belongs
// to one generation; once the channel moves on the loop's events are
// discarded.
func (c *Channel) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, payload, err := conn.ReadMessage()

		c.mu.Lock()
		if gen != c.generation {
			// Detached: a new connection owns the channel now.
			c.mu.Unlock()
			return
		}

		if err != nil {
			c.handleReadError(err, gen)
			return
		}

		// Any inbound traffic proves the link is alive.
		c.armHeartbeatLocked(gen)
		onMessage := c.cb.OnMessage
		c.mu.Unlock()

		if onMessage != nil {
			onMessage(payload)
		}
	}
}

// handleReadError classifies a read failure and schedules reconnection
// for abnormal closures. Called with c.mu held; releases it.
func (c *Channel) handleReadError(err error, gen uint64) {
	c.conn = nil
	c.stopHeartbeatLocked()
	c.setStateLocked(StateClosed)

	if c.manual || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.mu.Unlock()
		logging.Info().Msg("channel closed normally")
		return
	}

	c.lastErr = fmt.Errorf("channel read: %w", err)
	errCb := c.cb.OnError
	lastErr := c.lastErr
	c.scheduleReconnectLocked(gen)
	c.mu.Unlock()

	metrics.ChannelErrors.WithLabelValues("read").Inc()
	logging.Warn().Err(err).Msg("channel read failed, reconnect scheduled")
	if errCb != nil {
		errCb(lastErr)
	}
}

// scheduleReconnectLocked arms the backoff timer for the next attempt.
// Caller holds c.mu.
func (c *Channel) scheduleReconnectLocked(gen uint64) {
	if c.manual || gen != c.generation {
		return
	}

	delay := BackoffDelay(c.attempts) + time.Duration(c.rng.Int63n(int64(jitterMax)))
	c.attempts++
	attempt := c.attempts

	metrics.ReconnectAttempts.Inc()
	logging.Info().Int("attempt", attempt).Dur("delay", delay).Msg("channel reconnect scheduled")

	if c.cb.OnReconnect != nil {
		go c.cb.OnReconnect(attempt)
	}
	if attempt > degradedAttempts && c.cb.OnDegraded != nil {
		go c.cb.OnDegraded(attempt)
	}

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if gen != c.generation || c.manual {
			c.mu.Unlock()
			return
		}
		c.setStateLocked(StateConnecting)
		c.mu.Unlock()
		c.dial(gen)
	})
}

// armHeartbeatLocked (re)arms the liveness timer. Caller holds c.mu.
func (c *Channel) armHeartbeatLocked(gen uint64) {
	if c.cfg.HeartbeatPayload == nil {
		return
	}
	c.stopHeartbeatLocked()
	c.heartbeatTimer = time.AfterFunc(c.cfg.HeartbeatInterval, func() {
		c.mu.Lock()
		stale := gen != c.generation || c.state != StateOpen
		c.mu.Unlock()
		if stale {
			return
		}

		metrics.HeartbeatsSent.Inc()
		logging.Debug().Msg("heartbeat sent")
		c.Send(c.cfg.HeartbeatPayload)

		c.mu.Lock()
		if gen == c.generation && c.state == StateOpen {
			c.armHeartbeatLocked(gen)
		}
		c.mu.Unlock()
	})
}

func (c *Channel) stopHeartbeatLocked() {
	if c.heartbeatTimer != nil {
		c.heartbeatTimer.Stop()
		c.heartbeatTimer = nil
	}
}

// detachLocked invalidates the current generation: timers stop, the old
// connection (if any) is closed, and any in-flight read loop or dial
// becomes inert. Caller holds c.mu.
func (c *Channel) detachLocked() {
	c.generation++
	c.stopHeartbeatLocked()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// setStateLocked updates the state and fires OnStatus. Caller holds
// c.mu; the callback is dispatched on its own goroutine so it can call
// back into the channel safely.
func (c *Channel) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	metrics.ChannelState.Set(float64(stateGaugeValue(state)))
	if c.cb.OnStatus != nil {
		go c.cb.OnStatus(state)
	}
}

func stateGaugeValue(s State) int {
	switch s {
	case StateConnecting:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}

// BackoffDelay returns the base reconnection delay for the given
// attempt number, before jitter: min(30s, 1s * 2^min(attempt, 5)).
func BackoffDelay(attempt int) time.Duration {
	exp := attempt
	if exp > backoffCapExp {
		exp = backoffCapExp
	}
	delay := baseBackoff * time.Duration(1<<uint(exp))
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}
