package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"pedex/cmd/internal/state"
	v1 "pedex/shared/contracts/live/v1"
)

type liveTestServer struct {
	t *testing.T

	mu       sync.Mutex
	received []v1.Envelope
	queries  []string
	authz    []string
}

func (s *liveTestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	s.mu.Lock()
	s.queries = append(s.queries, tok)
	s.authz = append(s.authz, r.Header.Get("Authorization"))
	s.mu.Unlock()

	if tok == "" || tok == "revoked" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{v1.Subprotocol}})
	if err != nil {
		return
	}
	defer func() { _ = c.CloseNow() }()

	ctx := r.Context()
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		var env v1.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, env)
		s.mu.Unlock()

		if env.Type == v1.TypeGetCurrentPrice {
			reply, _ := v1.NewEnvelope(v1.TypeTradePrice, "srv-1", time.Now(), map[string]any{
				"pdes_buy_price":  "0.42",
				"pdes_sell_price": "0.40",
			})
			b, _ := json.Marshal(reply)
			if err := c.Write(ctx, websocket.MessageText, b); err != nil {
				return
			}
		}
	}
}

func (s *liveTestServer) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.received))
	for _, e := range s.received {
		out = append(out, e.Type)
	}
	return out
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/live"
}

func TestWebsocketDialer_EndToEnd(t *testing.T) {
	srv := &liveTestServer{t: t}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	cfg := testConfig()
	cfg.URL = wsURL(ts.URL)

	sink := &recordingSink{}
	ch := NewChannel(cfg, nil, sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer ch.Close()

	ch.Open("tok-1")
	waitFor(t, "price push", func() bool { return len(sink.snapshot()) > 0 })

	pe, ok := sink.snapshot()[0].(state.PriceEvent)
	if !ok {
		t.Fatalf("first event = %#v, want PriceEvent", sink.snapshot()[0])
	}
	if pe.Quote.BuyPrice.String() != "0.42" || pe.Quote.SellPrice.String() != "0.4" {
		t.Fatalf("quote = %+v", pe.Quote)
	}

	got := srv.types()
	if len(got) < 3 || got[0] != v1.TypeGetTransactionHistory || got[1] != v1.TypeGetTradeHistory || got[2] != v1.TypeGetCurrentPrice {
		t.Fatalf("server received %v", got)
	}

	srv.mu.Lock()
	q, a := srv.queries[0], srv.authz[0]
	srv.mu.Unlock()
	if q != "tok-1" || a != "Bearer tok-1" {
		t.Fatalf("handshake token query=%q authz=%q", q, a)
	}

	if err := ch.UpdateToken(context.Background(), "tok-2"); err != nil {
		t.Fatalf("UpdateToken: %v", err)
	}
	waitFor(t, "update_token", func() bool {
		types := srv.types()
		return len(types) > 0 && types[len(types)-1] == v1.TypeUpdateToken
	})
}

func TestWebsocketDialer_HandshakeUnauthorized(t *testing.T) {
	ts := httptest.NewServer(&liveTestServer{t: t})
	defer ts.Close()

	d := &WebsocketDialer{Subprotocol: v1.Subprotocol}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := d.Dial(ctx, wsURL(ts.URL), "revoked")
	if !errors.Is(err, ErrHandshakeUnauthorized) {
		t.Fatalf("err = %v, want ErrHandshakeUnauthorized", err)
	}
}

func TestWebsocketDialer_SubprotocolRequired(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = c.CloseNow() }()
		_, _, _ = c.Read(r.Context())
	}))
	defer ts.Close()

	d := &WebsocketDialer{Subprotocol: v1.Subprotocol}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := d.Dial(ctx, wsURL(ts.URL), "tok"); err == nil {
		t.Fatalf("expected subprotocol failure")
	}
}

func TestClassifyReadErr(t *testing.T) {
	cases := []struct {
		err  error
		want readErrKind
	}{
		{context.Canceled, readErrCtxDone},
		{io.EOF, readErrConnClosed},
		{errors.New("boom"), readErrUnknown},
	}
	for _, tc := range cases {
		if got := classifyReadErr(tc.err); got != tc.want {
			t.Fatalf("classifyReadErr(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
