package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pedex/cmd/internal/state"
	v1 "pedex/shared/contracts/live/v1"
)

// ---- fakes ----

type fakeConn struct {
	in     chan []byte
	closed chan struct{}

	mu     sync.Mutex
	writes []v1.Envelope
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, io.EOF
	case b := <-c.in:
		return b, nil
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	c.mu.Lock()
	c.writes = append(c.writes, env)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Ping(context.Context) error { return nil }

func (c *fakeConn) Close(string) error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// drop simulates the server going away.
func (c *fakeConn) drop() { _ = c.Close("") }

func (c *fakeConn) push(t *testing.T, typ string, payload any) {
	t.Helper()
	env, err := v1.NewEnvelope(typ, "srv-1", time.Now(), payload)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	b, _ := json.Marshal(env)
	c.in <- b
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.writes))
	for _, w := range c.writes {
		out = append(out, w.Type)
	}
	return out
}

type fakeDialer struct {
	mu     sync.Mutex
	calls  int
	tokens []string
	conns  []*fakeConn

	fail bool
	gate chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, _ string, token string) (Conn, error) {
	if d.gate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-d.gate:
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.tokens = append(d.tokens, token)
	if d.fail {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

type recordingSink struct {
	mu     sync.Mutex
	events []state.Event
}

func (s *recordingSink) Handle(ev state.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() []state.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]state.Event(nil), s.events...)
}

// ---- helpers ----

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.URL = "ws://live.test/live"
	cfg.RetryDelay = 5 * time.Millisecond
	cfg.ConnectTimeout = time.Second
	cfg.HeartbeatInterval = 0
	return cfg
}

func newTestChannel(cfg Config, d Dialer, sink Sink) (*Channel, *stateLog) {
	ch := NewChannel(cfg, d, sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sl := &stateLog{}
	ch.OnStateChange(sl.record)
	return ch, sl
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) get() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ---- tests ----

func TestChannel_OpenWhileConnectingIsNoop(t *testing.T) {
	d := &fakeDialer{gate: make(chan struct{})}
	ch, _ := newTestChannel(testConfig(), d, nil)
	defer ch.Close()

	ch.Open("tok-1")
	if got := ch.State(); got != StateConnecting {
		t.Fatalf("state after Open = %s, want connecting", got)
	}
	ch.Open("tok-2")
	ch.Open("tok-3")

	close(d.gate)
	waitFor(t, "connected", func() bool { return ch.State() == StateConnected })

	// A further Open while connected is also a no-op.
	ch.Open("tok-4")
	time.Sleep(20 * time.Millisecond)

	if n := d.count(); n != 1 {
		t.Fatalf("dial count = %d, want 1", n)
	}
	if d.tokens[0] != "tok-1" {
		t.Fatalf("dialed with %q, want tok-1", d.tokens[0])
	}
}

func TestChannel_RetriesExhaustedFails(t *testing.T) {
	d := &fakeDialer{fail: true}
	cfg := testConfig()
	cfg.MaxRetries = 5
	ch, sl := newTestChannel(cfg, d, nil)
	defer ch.Close()

	ch.Open("tok")
	waitFor(t, "failed", func() bool { return ch.State() == StateFailed })

	if n := d.count(); n != 6 {
		t.Fatalf("dial count = %d, want 6 (initial + 5 retries)", n)
	}
	want := []State{StateConnecting, StateReconnecting, StateFailed}
	got := sl.get()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", got, want)
		}
	}

	// No further attempts once failed.
	time.Sleep(30 * time.Millisecond)
	if n := d.count(); n != 6 {
		t.Fatalf("dial count after failure = %d, want 6", n)
	}
}

func TestChannel_OpenAfterFailureRetriesAgain(t *testing.T) {
	d := &fakeDialer{fail: true}
	cfg := testConfig()
	cfg.MaxRetries = 1
	ch, _ := newTestChannel(cfg, d, nil)
	defer ch.Close()

	ch.Open("tok")
	waitFor(t, "failed", func() bool { return ch.State() == StateFailed })

	d.mu.Lock()
	d.fail = false
	d.mu.Unlock()

	ch.Open("tok")
	waitFor(t, "connected", func() bool { return ch.State() == StateConnected })
}

func TestChannel_SubscribesOnConnect(t *testing.T) {
	d := &fakeDialer{}
	ch, _ := newTestChannel(testConfig(), d, nil)
	defer ch.Close()

	ch.Open("tok")
	waitFor(t, "subscriptions", func() bool {
		c := d.conn(0)
		return c != nil && len(c.types()) == len(v1.Subscriptions)
	})

	got := d.conn(0).types()
	for i, typ := range v1.Subscriptions {
		if got[i] != typ {
			t.Fatalf("subscription[%d] = %q, want %q", i, got[i], typ)
		}
	}
}

func TestChannel_ForwardsEventsToSink(t *testing.T) {
	d := &fakeDialer{}
	sink := &recordingSink{}
	ch, _ := newTestChannel(testConfig(), d, sink)
	defer ch.Close()

	ch.Open("tok")
	waitFor(t, "connected", func() bool { return ch.State() == StateConnected && d.conn(0) != nil })

	c := d.conn(0)
	c.push(t, v1.TypeTradePrice, map[string]any{"pdes_buy_price": "1.25"})
	c.push(t, v1.TypeTradePrice, map[string]any{"error": "price feed unavailable"})
	c.push(t, v1.TypeTransactionHistory, []map[string]any{{"id": 1, "amount": "5", "created_at": "2026-01-01T00:00:00Z"}})
	c.push(t, "unknown_type", nil)
	c.in <- []byte("not json")
	c.push(t, v1.TypeError, map[string]any{"message": "invalid token"})

	waitFor(t, "four events", func() bool { return len(sink.snapshot()) == 4 })
	evs := sink.snapshot()

	if pe, ok := evs[0].(state.PriceEvent); !ok || pe.Quote.BuyPrice.String() != "1.25" {
		t.Fatalf("event[0] = %#v, want price 1.25", evs[0])
	}
	if ee, ok := evs[1].(state.ErrorEvent); !ok || ee.Message != "price feed unavailable" {
		t.Fatalf("event[1] = %#v, want trade_price error", evs[1])
	}
	if te, ok := evs[2].(state.TransactionsEvent); !ok || te.Mode != state.ModePush || len(te.Records) != 1 {
		t.Fatalf("event[2] = %#v, want one pushed transaction", evs[2])
	}
	if ee, ok := evs[3].(state.ErrorEvent); !ok || ee.Message != "invalid token" {
		t.Fatalf("event[3] = %#v, want live error", evs[3])
	}
	if ch.State() != StateConnected {
		t.Fatalf("malformed frames must not drop the connection")
	}
}

func TestChannel_UpdateTokenRotatesInPlace(t *testing.T) {
	d := &fakeDialer{}
	ch, _ := newTestChannel(testConfig(), d, nil)
	defer ch.Close()

	// Before connecting the token is only stored.
	if err := ch.UpdateToken(context.Background(), "early"); err != nil {
		t.Fatalf("UpdateToken while disconnected: %v", err)
	}

	ch.Open("tok-1")
	waitFor(t, "subscribed", func() bool {
		c := d.conn(0)
		return c != nil && len(c.types()) == len(v1.Subscriptions)
	})

	if err := ch.UpdateToken(context.Background(), "tok-2"); err != nil {
		t.Fatalf("UpdateToken: %v", err)
	}

	c := d.conn(0)
	c.mu.Lock()
	last := c.writes[len(c.writes)-1]
	c.mu.Unlock()
	if last.Type != v1.TypeUpdateToken {
		t.Fatalf("last write = %q, want update_token", last.Type)
	}
	var p v1.UpdateTokenPayload
	if err := json.Unmarshal(last.Payload, &p); err != nil || p.Token != "tok-2" {
		t.Fatalf("payload = %s err=%v", last.Payload, err)
	}
	if n := d.count(); n != 1 {
		t.Fatalf("dial count = %d, rotation must not reconnect", n)
	}
}

func TestChannel_ReconnectsAfterDropWithLatestToken(t *testing.T) {
	d := &fakeDialer{}
	ch, sl := newTestChannel(testConfig(), d, nil)
	defer ch.Close()

	ch.Open("tok-1")
	waitFor(t, "connected", func() bool { return ch.State() == StateConnected && d.conn(0) != nil })
	if err := ch.UpdateToken(context.Background(), "tok-2"); err != nil {
		t.Fatalf("UpdateToken: %v", err)
	}

	d.conn(0).drop()
	waitFor(t, "second connection", func() bool { return d.conn(1) != nil && ch.State() == StateConnected })

	if d.tokens[1] != "tok-2" {
		t.Fatalf("redial token = %q, want tok-2", d.tokens[1])
	}
	waitFor(t, "resubscribe", func() bool { return len(d.conn(1).types()) >= len(v1.Subscriptions) })

	seenReconnecting := false
	for _, s := range sl.get() {
		if s == StateReconnecting {
			seenReconnecting = true
		}
	}
	if !seenReconnecting {
		t.Fatalf("transitions %v never passed through reconnecting", sl.get())
	}
}

func TestChannel_CloseFromAnyState(t *testing.T) {
	// Disconnected.
	ch, _ := newTestChannel(testConfig(), &fakeDialer{}, nil)
	ch.Close()
	ch.Close()
	if ch.State() != StateDisconnected {
		t.Fatalf("state = %s", ch.State())
	}

	// Connecting (dial blocked).
	gated := &fakeDialer{gate: make(chan struct{})}
	ch, _ = newTestChannel(testConfig(), gated, nil)
	ch.Open("tok")
	ch.Close()
	if ch.State() != StateDisconnected {
		t.Fatalf("state after closing while connecting = %s", ch.State())
	}
	if gated.count() != 0 {
		t.Fatalf("dial completed after Close")
	}

	// Connected.
	d := &fakeDialer{}
	ch, _ = newTestChannel(testConfig(), d, nil)
	ch.Open("tok")
	waitFor(t, "connected", func() bool { return ch.State() == StateConnected })
	ch.Close()
	select {
	case <-d.conn(0).closed:
	default:
		t.Fatalf("connection not closed")
	}

	// Reconnecting.
	failing := &fakeDialer{fail: true}
	cfg := testConfig()
	cfg.RetryDelay = time.Hour
	ch, _ = newTestChannel(cfg, failing, nil)
	ch.Open("tok")
	waitFor(t, "reconnecting", func() bool { return ch.State() == StateReconnecting })
	ch.Close()
	if ch.State() != StateDisconnected {
		t.Fatalf("state after closing while reconnecting = %s", ch.State())
	}
}

func TestChannel_NoTransitionsAfterClose(t *testing.T) {
	var after atomic.Int32
	var closed atomic.Bool

	d := &fakeDialer{fail: true}
	cfg := testConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRetries = 1000
	ch := NewChannel(cfg, d, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ch.OnStateChange(func(State) {
		if closed.Load() {
			after.Add(1)
		}
	})

	ch.Open("tok")
	waitFor(t, "a retry", func() bool { return d.count() >= 2 })
	ch.Close()
	closed.Store(true)
	dials := d.count()

	time.Sleep(20 * time.Millisecond)
	if n := after.Load(); n != 0 {
		t.Fatalf("%d transitions observed after Close returned", n)
	}
	if d.count() != dials {
		t.Fatalf("dialed %d more times after Close", d.count()-dials)
	}
	if ch.State() != StateDisconnected {
		t.Fatalf("state = %s", ch.State())
	}
}

func TestChannel_SendRequiresConnection(t *testing.T) {
	ch, _ := newTestChannel(testConfig(), &fakeDialer{}, nil)
	if err := ch.Send(context.Background(), v1.TypeGetCurrentPrice, nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send while disconnected err = %v", err)
	}
}
