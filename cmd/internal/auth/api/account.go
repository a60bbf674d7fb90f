package authapi

import (
	"context"
	"fmt"
	"net/http"

	"pedex/cmd/identity"
	v1 "pedex/shared/contracts/live/v1"
)

// Identity fetches the authenticated user's profile.
func (c *Client) Identity(ctx context.Context) (*identity.Identity, error) {
	const op = "authapi.Identity"

	body, err := c.do(ctx, op, http.MethodGet, "/users/users_info", nil, true, "")
	if err != nil {
		return nil, err
	}
	id, err := identity.DecodeIdentity(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}
	return id, nil
}

// TransactionHistory fetches the full transaction history.
func (c *Client) TransactionHistory(ctx context.Context) ([]v1.TransactionRecord, error) {
	const op = "authapi.TransactionHistory"

	body, err := c.do(ctx, op, http.MethodGet, "/transactions/history", nil, true, "")
	if err != nil {
		return nil, err
	}
	recs, err := v1.DecodeTransactions(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}
	return recs, nil
}

// TradeHistory fetches the full trade history.
func (c *Client) TradeHistory(ctx context.Context) ([]v1.TradeRecord, error) {
	const op = "authapi.TradeHistory"

	body, err := c.do(ctx, op, http.MethodGet, "/transactions/trade-history", nil, true, "")
	if err != nil {
		return nil, err
	}
	recs, err := v1.DecodeTrades(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}
	return recs, nil
}

// CurrentPrice fetches the latest price quote.
func (c *Client) CurrentPrice(ctx context.Context) (v1.PriceQuote, error) {
	const op = "authapi.CurrentPrice"

	body, err := c.do(ctx, op, http.MethodGet, "/transactions/current-price", nil, true, "")
	if err != nil {
		return v1.PriceQuote{}, err
	}
	q, err := v1.DecodePriceQuote(body)
	if err != nil {
		return v1.PriceQuote{}, fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}
	return q, nil
}
