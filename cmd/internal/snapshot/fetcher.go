// Package snapshot fetches point-in-time copies of the account's data.
//
// Fetches never fail from the caller's point of view: any error yields an
// empty result, is logged, and is counted. A 401 also triggers the
// unauthorized hook so the session can refresh or end.
package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"pedex/cmd/identity"
	authapi "pedex/cmd/internal/auth/api"
	"pedex/cmd/internal/auth/credential"
	"pedex/cmd/internal/metrics"
	v1 "pedex/shared/contracts/live/v1"
)

// API is the subset of the REST client the fetcher uses.
type API interface {
	Identity(ctx context.Context) (*identity.Identity, error)
	TransactionHistory(ctx context.Context) ([]v1.TransactionRecord, error)
	TradeHistory(ctx context.Context) ([]v1.TradeRecord, error)
	CurrentPrice(ctx context.Context) (v1.PriceQuote, error)
}

var _ API = (*authapi.Client)(nil)

// Kinds label metrics and logs.
const (
	KindIdentity     = "identity"
	KindTransactions = "transactions"
	KindTrades       = "trades"
	KindPrice        = "price"
)

// Fetcher issues snapshot calls.
type Fetcher struct {
	api            API
	log            *slog.Logger
	onUnauthorized func()
}

// New constructs a Fetcher. onUnauthorized may be nil and must not block.
func New(api API, log *slog.Logger, onUnauthorized func()) *Fetcher {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return &Fetcher{api: api, log: log, onUnauthorized: onUnauthorized}
}

// SetUnauthorizedHandler replaces the 401 hook.
func (f *Fetcher) SetUnauthorizedHandler(fn func()) {
	f.onUnauthorized = fn
}

// FetchIdentity returns the profile, or nil on any failure.
func (f *Fetcher) FetchIdentity(ctx context.Context) *identity.Identity {
	start := time.Now()
	id, err := f.api.Identity(ctx)
	if f.observe(KindIdentity, start, err) {
		return nil
	}
	return id
}

// FetchTransactionHistory returns transactions, or an empty slice on any failure.
func (f *Fetcher) FetchTransactionHistory(ctx context.Context) []v1.TransactionRecord {
	start := time.Now()
	recs, err := f.api.TransactionHistory(ctx)
	if f.observe(KindTransactions, start, err) || recs == nil {
		return []v1.TransactionRecord{}
	}
	return recs
}

// FetchTradeHistory returns trades, or an empty slice on any failure.
func (f *Fetcher) FetchTradeHistory(ctx context.Context) []v1.TradeRecord {
	start := time.Now()
	recs, err := f.api.TradeHistory(ctx)
	if f.observe(KindTrades, start, err) || recs == nil {
		return []v1.TradeRecord{}
	}
	return recs
}

// FetchCurrentPrice returns the quote, or nil on any failure.
func (f *Fetcher) FetchCurrentPrice(ctx context.Context) *v1.PriceQuote {
	start := time.Now()
	q, err := f.api.CurrentPrice(ctx)
	if f.observe(KindPrice, start, err) {
		return nil
	}
	return &q
}

// observe records the outcome and reports whether the call failed.
func (f *Fetcher) observe(kind string, start time.Time, err error) bool {
	reason := failureReason(err)
	metrics.RecordSnapshot(kind, reason, time.Since(start))
	if err == nil {
		return false
	}

	f.log.Warn("snapshot.fetch.fail", "kind", kind, "reason", reason, "err", err)
	if reason == "unauthorized" && f.onUnauthorized != nil {
		f.onUnauthorized()
	}
	return true
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, authapi.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, credential.ErrNoCredential):
		return "no_credential"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, authapi.ErrNetwork):
		return "network"
	case errors.Is(err, authapi.ErrMalformed):
		return "malformed"
	default:
		return "status"
	}
}
