package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pedex/cmd/identity"
	authapi "pedex/cmd/internal/auth/api"
	"pedex/cmd/internal/auth/credential"
	v1 "pedex/shared/contracts/live/v1"
)

type fakeAPI struct {
	err error
}

func (f fakeAPI) Identity(context.Context) (*identity.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &identity.Identity{ID: 1, Email: "a@b.c"}, nil
}

func (f fakeAPI) TransactionHistory(context.Context) ([]v1.TransactionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []v1.TransactionRecord{{ID: 1}}, nil
}

func (f fakeAPI) TradeHistory(context.Context) ([]v1.TradeRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f fakeAPI) CurrentPrice(context.Context) (v1.PriceQuote, error) {
	if f.err != nil {
		return v1.PriceQuote{}, f.err
	}
	return v1.PriceQuote{BuyPrice: decimal.NewFromInt(3)}, nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestFetcher_Success(t *testing.T) {
	f := New(fakeAPI{}, quiet, nil)
	ctx := context.Background()

	require.NotNil(t, f.FetchIdentity(ctx))
	require.Len(t, f.FetchTransactionHistory(ctx), 1)

	trades := f.FetchTradeHistory(ctx)
	require.NotNil(t, trades, "nil list normalizes to empty")
	require.Empty(t, trades)

	require.Equal(t, "3", f.FetchCurrentPrice(ctx).BuyPrice.String())
}

func TestFetcher_FailuresYieldEmpty(t *testing.T) {
	errs := []error{
		fmt.Errorf("x: %w", authapi.ErrNetwork),
		fmt.Errorf("x: %w", authapi.ErrMalformed),
		&authapi.StatusError{Op: "x", Status: 500},
		fmt.Errorf("x: %w", credential.ErrNoCredential),
		context.DeadlineExceeded,
	}
	for _, err := range errs {
		var hooks atomic.Int32
		f := New(fakeAPI{err: err}, quiet, func() { hooks.Add(1) })
		ctx := context.Background()

		require.Nil(t, f.FetchIdentity(ctx), err.Error())
		require.Empty(t, f.FetchTransactionHistory(ctx))
		require.NotNil(t, f.FetchTransactionHistory(ctx))
		require.Empty(t, f.FetchTradeHistory(ctx))
		require.Nil(t, f.FetchCurrentPrice(ctx))
		require.Zero(t, hooks.Load(), "only 401 triggers the hook")
	}
}

func TestFetcher_UnauthorizedTriggersHook(t *testing.T) {
	var hooks atomic.Int32
	f := New(fakeAPI{err: &authapi.StatusError{Op: "x", Status: 401}}, quiet, nil)
	f.SetUnauthorizedHandler(func() { hooks.Add(1) })

	require.Empty(t, f.FetchTransactionHistory(context.Background()))
	require.Equal(t, int32(1), hooks.Load())
}

func TestFailureReason(t *testing.T) {
	require.Equal(t, "", failureReason(nil))
	require.Equal(t, "unauthorized", failureReason(&authapi.StatusError{Status: 401}))
	require.Equal(t, "status", failureReason(&authapi.StatusError{Status: 503}))
	require.Equal(t, "status", failureReason(errors.New("other")))
}
