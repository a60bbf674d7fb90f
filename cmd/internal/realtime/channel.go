// Package realtime implements the client's single live push channel.
//
// A Channel owns at most one websocket at a time. It subscribes to the
// account feeds on every successful connect, forwards inbound events to a
// Sink, rotates its bearer token in place, and reconnects after transient
// drops with a bounded, fixed-delay retry policy. When retries are exhausted
// the channel settles in StateFailed until Open is called again.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"pedex/cmd/internal/metrics"
	"pedex/cmd/internal/state"
	"pedex/cmd/security/token"
	v1 "pedex/shared/contracts/live/v1"
)

// ErrNotConnected is returned by Send when no connection is open.
var ErrNotConnected = errors.New("live channel not connected")

// Sink receives translated inbound events. state.Store satisfies it.
type Sink interface {
	Handle(ev state.Event)
}

// StateFunc observes state transitions. It runs under the channel lock and
// must not call back into the Channel.
type StateFunc func(State)

// Channel is the live connection state machine.
type Channel struct {
	cfg    Config
	log    *slog.Logger
	dialer Dialer
	sink   Sink
	now    func() time.Time

	mu      sync.Mutex
	state   State
	token   string
	conn    Conn
	cancel  context.CancelFunc
	done    chan struct{}
	onState StateFunc
}

// NewChannel constructs a disconnected Channel. dialer may be nil (coder/websocket).
func NewChannel(cfg Config, dialer Dialer, sink Sink, log *slog.Logger) *Channel {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	def := DefaultConfig()
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if dialer == nil {
		dialer = &WebsocketDialer{Subprotocol: cfg.Subprotocol, ReadLimit: cfg.ReadLimit}
	}
	return &Channel{
		cfg:    cfg,
		log:    log,
		dialer: dialer,
		sink:   sink,
		now:    time.Now,
		state:  StateDisconnected,
	}
}

// OnStateChange installs the transition observer.
func (c *Channel) OnStateChange(fn StateFunc) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open starts connecting with tok. It is a no-op while a connection is open
// or being established, so at most one transport ever exists.
func (c *Channel) Open(tok string) {
	c.mu.Lock()
	if c.state.active() {
		c.mu.Unlock()
		c.log.Debug("live.open.noop", "state", c.State().String())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.token = tok
	c.cancel = cancel
	c.done = done
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	c.log.Info("live.open", "url", c.cfg.URL, "token_fp", token.Fingerprint(tok))
	go c.run(ctx, done)
}

// UpdateToken stores tok for future dials and, when connected, rotates it on
// the open connection without reconnecting.
func (c *Channel) UpdateToken(ctx context.Context, tok string) error {
	c.mu.Lock()
	c.token = tok
	conn, st := c.conn, c.state
	c.mu.Unlock()

	if st != StateConnected || conn == nil {
		return nil
	}

	env, err := newEnvelope(v1.TypeUpdateToken, v1.UpdateTokenPayload{Token: tok}, c.now())
	if err != nil {
		return err
	}
	if err := writeEnvelope(ctx, conn, env, c.cfg.WriteTimeout); err != nil {
		c.log.Warn("live.update_token.fail", "err", err)
		return fmt.Errorf("update token: %w", err)
	}
	c.log.Info("live.update_token", "token_fp", token.Fingerprint(tok))
	return nil
}

// Send writes one envelope on the open connection.
func (c *Channel) Send(ctx context.Context, typ string, payload any) error {
	c.mu.Lock()
	conn, st := c.conn, c.state
	c.mu.Unlock()

	if st != StateConnected || conn == nil {
		return ErrNotConnected
	}
	env, err := newEnvelope(typ, payload, c.now())
	if err != nil {
		return err
	}
	return writeEnvelope(ctx, conn, env, c.cfg.WriteTimeout)
}

// Close tears down the connection and any reconnect loop. It is always safe,
// blocks until background work has stopped, and must not be called from the Sink.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.cancel, c.done, c.conn = nil, nil, nil
	if cancel != nil {
		cancel()
	}
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close("client closing")
	}
	if done != nil {
		<-done
	}
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	retries := 0
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.RecordDial(false)
			c.log.Warn("live.dial.fail", "attempt", retries+1, "err", err)

			if retries >= c.cfg.MaxRetries {
				c.log.Error("live.failed", "attempts", retries+1)
				c.transition(ctx, StateFailed)
				return
			}
			retries++
			metrics.RecordReconnect()
			c.transition(ctx, StateReconnecting)
			if !sleepCtx(ctx, c.cfg.RetryDelay) {
				return
			}
			continue
		}
		metrics.RecordDial(true)

		if !c.attach(ctx, conn) {
			_ = conn.Close("client closing")
			return
		}
		retries = 0

		err = c.serve(ctx, conn)
		c.detach(conn)
		_ = conn.Close("reconnecting")
		if ctx.Err() != nil {
			return
		}

		c.log.Warn("live.drop", "kind", classifyReadErr(err).String(), "err", err)
		retries++
		metrics.RecordReconnect()
		c.transition(ctx, StateReconnecting)
		if !sleepCtx(ctx, c.cfg.RetryDelay) {
			return
		}
	}
}

func (c *Channel) dial(ctx context.Context) (Conn, error) {
	c.mu.Lock()
	tok := c.token
	c.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	return c.dialer.Dial(dctx, c.cfg.URL, tok)
}

// attach publishes conn and moves to StateConnected unless Close won the race.
func (c *Channel) attach(ctx context.Context, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.conn = conn
	c.setStateLocked(StateConnected)
	c.log.Info("live.connected", "url", c.cfg.URL)
	return true
}

func (c *Channel) detach(conn Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Channel) transition(ctx context.Context, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	c.setStateLocked(s)
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	prev := c.state
	c.state = s
	metrics.SetLiveState(int(s))
	c.log.Info("live.state", "from", prev.String(), "to", s.String())
	if c.onState != nil {
		c.onState(s)
	}
}

// serve subscribes, runs the heartbeat, and reads until the connection ends.
func (c *Channel) serve(ctx context.Context, conn Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, typ := range v1.Subscriptions {
		env, err := newEnvelope(typ, nil, c.now())
		if err != nil {
			return err
		}
		if err := writeEnvelope(connCtx, conn, env, c.cfg.WriteTimeout); err != nil {
			return fmt.Errorf("subscribe %s: %w", typ, err)
		}
	}

	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		c.heartbeat(connCtx, conn)
	}()
	defer func() {
		cancel()
		<-hbDone
	}()

	for {
		data, err := conn.Read(connCtx)
		if err != nil {
			return err
		}

		env, err := decodeEnvelope(data)
		if err != nil {
			c.log.Warn("live.envelope.bad", "err", err)
			continue
		}
		metrics.RecordLiveEvent(env.Type)

		ev, ok, err := translate(env)
		if err != nil {
			c.log.Warn("live.payload.bad", "type", env.Type, "id", env.ID, "err", err)
			continue
		}
		if !ok || c.sink == nil {
			continue
		}
		if e, isErr := ev.(state.ErrorEvent); isErr {
			c.log.Warn("live.event.error", "source", e.Source, "message", e.Message)
		}
		c.sink.Handle(ev)
	}
}

func (c *Channel) heartbeat(ctx context.Context, conn Conn) {
	if c.cfg.HeartbeatInterval <= 0 {
		return
	}
	t := time.NewTicker(c.cfg.HeartbeatInterval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, c.cfg.HeartbeatTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()

			if err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				c.log.Info("live.ping.fail", "failures", failures, "err", err)
				if failures >= maxPingFailures {
					_ = conn.Close("heartbeat failed")
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
