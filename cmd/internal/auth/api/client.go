package authapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
)

// Client talks to the platform REST API.
type Client struct {
	cfg Config
	log *slog.Logger

	// plain carries explicit Authorization headers (auth endpoints).
	plain *http.Client
	// bearer attaches the TokenSource's access token (protected endpoints).
	bearer *http.Client
}

// New constructs a Client. tokens supplies the access token for protected calls.
// base may be nil (http.DefaultTransport).
func New(cfg Config, tokens oauth2.TokenSource, base http.RoundTripper, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	headers := &headerTransport{base: base, userAgent: cfg.UserAgent, instanceID: cfg.InstanceID}
	return &Client{
		cfg:    cfg,
		log:    log,
		plain:  &http.Client{Timeout: cfg.Timeout, Transport: headers},
		bearer: &http.Client{Timeout: cfg.Timeout, Transport: &oauth2.Transport{Source: tokens, Base: headers}},
	}
}

// do issues one request and returns the 2xx body. bearer selects the
// TokenSource-backed client; otherwise authz (if set) is sent verbatim.
func (c *Client) do(ctx context.Context, op, method, path string, body any, bearer bool, authz string) ([]byte, error) {
	rdr, err := encodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", "Bearer "+authz)
	}

	hc := c.plain
	if bearer {
		hc = c.bearer
	}

	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}

	data, err := readBody(resp, c.cfg.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, ErrMalformed) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug("api.status", "op", op, "status", resp.StatusCode)
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

type headerTransport struct {
	base       http.RoundTripper
	userAgent  string
	instanceID string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if t.userAgent != "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	if t.instanceID != "" {
		r.Header.Set("X-Pedex-Instance", t.instanceID)
	}
	return t.base.RoundTrip(r)
}
