// Package main provides a CI-friendly smoke test of the pedex live channel
// against a running backend.
//
// It validates:
//   - handshake with bearer token + subprotocol selection
//   - the three subscriptions are answered
//   - price quotes decode (or report a remote error)
//   - optional in-place token rotation keeps the connection open
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	"pedex/cmd/identity/ids"
	v1 "pedex/shared/contracts/live/v1"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	conn  *websocket.Conn
	inbox chan v1.Envelope
	errCh chan error
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:5000/live", "live channel URL")
		tok     = flag.String("token", os.Getenv("PEDEX_ACCESS_TOKEN"), "access token (default $PEDEX_ACCESS_TOKEN)")
		rotate  = flag.String("rotate", "", "token to send with update_token after subscribing")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if strings.TrimSpace(*tok) == "" {
		fatalf("missing -token")
	}

	root := context.Background()

	c := mustConnect(root, *wsURL, *tok, *timeout)
	defer closeWS(c.conn)

	for _, typ := range v1.Subscriptions {
		mustWrite(root, c.conn, typ, nil, *timeout)
	}

	seen := map[string]int{}
	var quote *v1.PriceQuote
	deadline := time.Now().Add(*timeout)
	for time.Now().Before(deadline) && (quote == nil || seen["transactions"] == 0 || seen["trades"] == 0) {
		env := c.mustRead(root, time.Until(deadline))
		if *verbose {
			fmt.Printf("recv type=%s id=%s bytes=%d\n", env.Type, env.ID, len(env.Payload))
		}

		switch env.Type {
		case v1.TypeTransactionHistory, v1.TypeGetTransactionHistory:
			recs, err := v1.DecodeTransactions(env.Payload)
			if err != nil {
				fatalf("decode transactions: %v", err)
			}
			seen["transactions"] += len(recs) + 1
		case v1.TypeTradeHistory, v1.TypeGetTradeHistory:
			recs, err := v1.DecodeTrades(env.Payload)
			if err != nil {
				fatalf("decode trades: %v", err)
			}
			seen["trades"] += len(recs) + 1
		case v1.TypeTradePrice:
			q, err := v1.DecodePriceQuote(env.Payload)
			var remote *v1.RemoteError
			if errors.As(err, &remote) {
				fatalf("price subscription failed: %s", remote.Message)
			}
			if err != nil {
				fatalf("decode price: %v", err)
			}
			quote = &q
		case v1.TypeError:
			fatalf("server error: %s", v1.DecodeError(env.Payload).Text())
		}
	}

	if quote == nil || seen["transactions"] == 0 || seen["trades"] == 0 {
		fatalf("timeout waiting for subscriptions: transactions=%d trades=%d price=%t",
			seen["transactions"], seen["trades"], quote != nil)
	}

	if *rotate != "" {
		mustWrite(root, c.conn, v1.TypeUpdateToken, v1.UpdateTokenPayload{Token: *rotate}, *timeout)
		mustStayOpen(c, 1500*time.Millisecond)
	}

	fmt.Printf("OK: transactions=%d trades=%d buy=%s sell=%s rotated=%t\n",
		seen["transactions"]-1, seen["trades"]-1, quote.BuyPrice, quote.SellPrice, *rotate != "")
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func mustConnect(parent context.Context, rawURL, tok string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	u, _ := url.Parse(rawURL)
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()

	h := http.Header{}
	h.Set("Authorization", "Bearer "+tok)

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			fatalf("connect: token rejected (401)")
		}
		fatalf("connect: %v", err)
	}
	if got := conn.Subprotocol(); got != v1.Subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, v1.Subprotocol)
	}

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		conn:  conn,
		inbox: make(chan v1.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				c.fail(err)
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.fail(fmt.Errorf("bad json: %w", err))
				return
			}
			if err := env.Validate(); err != nil {
				c.fail(fmt.Errorf("bad envelope: %w", err))
				return
			}

			select {
			case c.inbox <- env:
			default:
				c.fail(errors.New("inbox overflow: consumer too slow"))
				return
			}
		}
	}()
}

func (c *smokeClient) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

func (c *smokeClient) mustRead(parent context.Context, wait time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, wait)
	defer cancel()

	select {
	case env, ok := <-c.inbox:
		if !ok {
			fatalf("connection closed: %v", <-c.errCh)
		}
		return env
	case err := <-c.errCh:
		fatalf("read: %v", err)
	case <-ctx.Done():
		fatalf("timeout waiting for server message")
	}
	return v1.Envelope{}
}

func mustStayOpen(c *smokeClient, hold time.Duration) {
	t := time.NewTimer(hold)
	defer t.Stop()
	for {
		select {
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed after token rotation: %v", <-c.errCh)
			}
			if env.Type == v1.TypeError {
				fatalf("token rotation rejected: %s", v1.DecodeError(env.Payload).Text())
			}
		case err := <-c.errCh:
			fatalf("connection failed after token rotation: %v", err)
		case <-t.C:
			return
		}
	}
}

func mustWrite(parent context.Context, conn *websocket.Conn, typ string, payload any, stepTimeout time.Duration) {
	id, err := ids.NewULID(time.Now())
	if err != nil {
		fatalf("envelope id: %v", err)
	}
	env, err := v1.NewEnvelope(typ, id, time.Now(), payload)
	if err != nil {
		fatalf("%v", err)
	}
	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal %s: %v", typ, err)
	}

	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write %s: %v", typ, err)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
