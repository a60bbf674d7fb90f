package session

import (
	"context"

	"golang.org/x/sync/errgroup"

	"pedex/cmd/identity"
	v1 "pedex/shared/contracts/live/v1"
)

// GetIdentity loads the profile from the platform. It needs a stored
// credential; when no identity has been loaded yet, a successful load
// establishes the session (snapshots seeded, live channel opened).
//
// At most one lookup is in flight; concurrent callers share it. Lookups are
// rate limited. Failures count against a budget that spans the session; when
// it is spent the session ends. A restricted standing also ends the session.
func (c *Controller) GetIdentity(ctx context.Context) (*identity.Identity, error) {
	if _, ok := c.creds.Read(ctx); !ok {
		return nil, ErrNotAuthenticated
	}

	shared := context.WithoutCancel(ctx)
	ch := c.identityGroup.DoChan("identity", func() (any, error) {
		return c.loadIdentity(shared)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*identity.Identity).Clone(), nil
	}
}

func (c *Controller) loadIdentity(ctx context.Context) (*identity.Identity, error) {
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}

	gen := c.state.Generation()
	active := c.state.IsAuthenticated()
	cred, ok := c.creds.Read(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	id := c.fetch.FetchIdentity(ctx)
	if id == nil {
		n := int(c.identityFails.Add(1))
		c.log.Warn("session.identity.fail", "failures", n, "budget", c.cfg.IdentityBudget, "active", active)
		if n >= c.cfg.IdentityBudget {
			c.logoutAt(ctx, gen, "identity_unavailable")
		}
		return nil, ErrIdentityUnavailable
	}

	if standing := c.policy.Evaluate(id); standing.Restricted() {
		c.log.Warn("session.identity.restricted", "user_id", id.ID, "standing", standing.String())
		if c.logoutAt(ctx, gen, "restricted") {
			c.notify(NoticeAccountRestricted, standing.Message())
		}
		return nil, &RestrictedError{Standing: standing}
	}

	if active {
		if !c.state.SetSessionAt(gen, id) {
			return nil, ErrNotAuthenticated
		}
		return id, nil
	}
	if !c.establish(ctx, gen, id, cred.AccessToken) {
		return nil, ErrNotAuthenticated
	}
	c.log.Info("session.resume", "user_id", id.ID)
	return id, nil
}

// seed loads the three snapshots concurrently and applies them only while gen
// is still the current session.
func (c *Controller) seed(ctx context.Context, gen uint64) {
	var (
		txns   []v1.TransactionRecord
		trades []v1.TradeRecord
		price  *v1.PriceQuote
	)

	var g errgroup.Group
	g.Go(func() error {
		txns = c.fetch.FetchTransactionHistory(ctx)
		return nil
	})
	g.Go(func() error {
		trades = c.fetch.FetchTradeHistory(ctx)
		return nil
	})
	g.Go(func() error {
		price = c.fetch.FetchCurrentPrice(ctx)
		return nil
	})
	_ = g.Wait()

	applied := c.state.SeedTransactionsAt(gen, txns)
	applied = c.state.SeedTradesAt(gen, trades) && applied
	if price != nil {
		applied = c.state.SeedPriceAt(gen, *price) && applied
	}
	if !applied {
		c.log.Info("session.seed.discard", "gen", gen)
		return
	}
	c.log.Debug("session.seed", "transactions", len(txns), "trades", len(trades), "price", price != nil)
}
