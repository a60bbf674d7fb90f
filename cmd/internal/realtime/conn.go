package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/coder/websocket"
)

// Conn is one open transport. Read is called from a single goroutine;
// Write and Ping may be called concurrently with it.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
	Close(reason string) error
}

// Dialer opens a Conn authenticated with token.
type Dialer interface {
	Dial(ctx context.Context, rawURL, token string) (Conn, error)
}

// WebsocketDialer dials with coder/websocket. The token travels both as the
// "token" query parameter and as a bearer Authorization header.
type WebsocketDialer struct {
	Subprotocol string
	ReadLimit   int64
	HTTPClient  *http.Client
	Header      http.Header
}

var _ Dialer = (*WebsocketDialer)(nil)

func (d *WebsocketDialer) Dial(ctx context.Context, rawURL, token string) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse live url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	h := http.Header{}
	for k, vs := range d.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	h.Set("Authorization", "Bearer "+token)

	opts := &websocket.DialOptions{HTTPHeader: h, HTTPClient: d.HTTPClient}
	if d.Subprotocol != "" {
		opts.Subprotocols = []string{d.Subprotocol}
	}

	conn, resp, err := websocket.Dial(ctx, u.String(), opts)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeUnauthorized, err)
		}
		return nil, err
	}
	if d.Subprotocol != "" && conn.Subprotocol() != d.Subprotocol {
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return nil, fmt.Errorf("subprotocol not negotiated: got %q", conn.Subprotocol())
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = maxFrameBytes
	}
	conn.SetReadLimit(limit)

	return &wsConn{conn: conn}, nil
}

// ErrHandshakeUnauthorized is returned when the server rejects the token during the handshake.
var ErrHandshakeUnauthorized = errors.New("live handshake unauthorized")

// wsConn adapts *websocket.Conn. Close is idempotent.
type wsConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	mt, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return nil, fmt.Errorf("unsupported message type: %v", mt)
	}
	return data, nil
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *wsConn) Close(reason string) error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close(websocket.StatusNormalClosure, reason)
	})
	return err
}
