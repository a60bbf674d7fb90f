package session

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"pedex/cmd/identity"
	authapi "pedex/cmd/internal/auth/api"
	"pedex/cmd/internal/auth/credential"
	"pedex/cmd/internal/metrics"
	"pedex/cmd/internal/realtime"
	"pedex/cmd/internal/state"
	v1 "pedex/shared/contracts/live/v1"
)

// AuthAPI is the subset of the REST client used for the credential lifecycle.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (authapi.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (authapi.Tokens, error)
	Logout(ctx context.Context, accessToken string) error
}

// Credentials is the credential store.
type Credentials interface {
	Save(ctx context.Context, c credential.Credential) error
	Read(ctx context.Context) (credential.Credential, bool)
	Clear(ctx context.Context)
	ExpiresAt(tok string) (time.Time, error)
	IsExpired(tok string) bool
	ExpiresWithin(tok string, d time.Duration) bool
}

// Fetcher loads snapshots. Failures yield empty results.
type Fetcher interface {
	FetchIdentity(ctx context.Context) *identity.Identity
	FetchTransactionHistory(ctx context.Context) []v1.TransactionRecord
	FetchTradeHistory(ctx context.Context) []v1.TradeRecord
	FetchCurrentPrice(ctx context.Context) *v1.PriceQuote
}

// Live is the push channel.
type Live interface {
	Open(token string)
	UpdateToken(ctx context.Context, token string) error
	Close()
	State() realtime.State
	OnStateChange(fn realtime.StateFunc)
}

var (
	_ AuthAPI     = (*authapi.Client)(nil)
	_ Credentials = (*credential.Store)(nil)
	_ Live        = (*realtime.Channel)(nil)
)

// Deps are the controller's collaborators. All are required.
type Deps struct {
	API         AuthAPI
	Credentials Credentials
	Fetcher     Fetcher
	Live        Live
	State       *state.Store
}

// Controller owns the session lifecycle.
type Controller struct {
	cfg    Config
	log    *slog.Logger
	now    func() time.Time
	policy identity.StandingPolicy

	api   AuthAPI
	creds Credentials
	fetch Fetcher
	live  Live
	state *state.Store

	// mu serializes session transitions (start, login, logout, credential writes).
	mu sync.Mutex

	refreshGroup  singleflight.Group
	identityGroup singleflight.Group
	limiter       *rate.Limiter
	identityFails atomic.Int32
	degraded      atomic.Bool

	notices chan Notice

	bgMu     sync.Mutex
	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
	started  atomic.Bool
}

// New constructs a Controller and subscribes it to live state transitions.
func New(cfg Config, deps Deps, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	def := DefaultConfig()
	if cfg.ExpiryCheckInterval <= 0 {
		cfg.ExpiryCheckInterval = def.ExpiryCheckInterval
	}
	if cfg.IdentityBudget <= 0 {
		cfg.IdentityBudget = def.IdentityBudget
	}
	if cfg.LogoutTimeout <= 0 {
		cfg.LogoutTimeout = def.LogoutTimeout
	}
	if cfg.NoticeBuffer <= 0 {
		cfg.NoticeBuffer = def.NoticeBuffer
	}

	limit := rate.Inf
	if cfg.IdentityMinInterval > 0 {
		limit = rate.Every(cfg.IdentityMinInterval)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		policy:   cfg.StandingPolicy(),
		api:      deps.API,
		creds:    deps.Credentials,
		fetch:    deps.Fetcher,
		live:     deps.Live,
		state:    deps.State,
		limiter:  rate.NewLimiter(limit, 1),
		notices:  make(chan Notice, cfg.NoticeBuffer),
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}
	c.live.OnStateChange(c.onLiveState)
	return c
}

// Start restores a stored session, if any, and starts the expiry watcher.
// An expired access token is renewed first. Without a stored credential the
// controller stays unauthenticated and Start returns nil.
func (c *Controller) Start(ctx context.Context) error {
	if c.started.CompareAndSwap(false, true) {
		c.goBackground(c.watchExpiry)
	}

	cred, ok := c.creds.Read(ctx)
	if !ok {
		c.log.Info("session.start", "authenticated", false)
		return nil
	}

	if c.creds.IsExpired(cred.AccessToken) {
		c.log.Info("session.start.expired")
		if err := c.RefreshAuthToken(ctx); err != nil {
			return err
		}
	}
	return c.resume(ctx)
}

// Shutdown stops background work and closes the live channel. The stored
// credential is kept so the next Start resumes the session.
func (c *Controller) Shutdown() {
	c.bgMu.Lock()
	c.bgCancel()
	c.bgMu.Unlock()
	c.wg.Wait()

	// A shared refresh can outlive its callers; it saves only under mu while
	// bgCtx is live, so once mu is taken here nothing more is written.
	c.mu.Lock()
	c.live.Close()
	c.mu.Unlock()
	c.log.Info("session.shutdown")
}

// Notices delivers informational messages. Unread notices are dropped once the buffer fills.
func (c *Controller) Notices() <-chan Notice { return c.notices }

// ---- collaborator surface ----
// Read accessors delegate to the state store.

func (c *Controller) IsAuthenticated() bool { return c.state.IsAuthenticated() }
func (c *Controller) Identity() *identity.Identity { return c.state.Identity() }
func (c *Controller) Roles() identity.RoleSet { return c.state.Roles() }
func (c *Controller) IsAllowed(role identity.Role) bool { return c.state.IsAllowed(role) }
func (c *Controller) Transactions() []v1.TransactionRecord { return c.state.Transactions() }
func (c *Controller) TradeHistory() []v1.TradeRecord { return c.state.TradeHistory() }
func (c *Controller) CurrentPrice() *v1.PriceQuote { return c.state.CurrentPrice() }
func (c *Controller) View() state.View { return c.state.View() }
func (c *Controller) Subscribe() (<-chan struct{}, func()) { return c.state.Subscribe() }
func (c *Controller) LiveState() realtime.State { return c.live.State() }

// LiveErr reports the live channel's health as an error, or nil when it is
// connected or idle.
func (c *Controller) LiveErr() error {
	switch c.live.State() {
	case realtime.StateReconnecting:
		return ErrConnectionDropped
	case realtime.StateFailed:
		return ErrConnectionFailed
	default:
		return nil
	}
}

// onLiveState runs under the channel's lock and must not call back into it.
func (c *Controller) onLiveState(s realtime.State) {
	degraded := s == realtime.StateFailed
	c.state.SetLive(s.String(), degraded)

	was := c.degraded.Swap(degraded)
	switch {
	case degraded && !was:
		c.log.Warn("session.realtime.degraded")
		c.notify(NoticeRealtimeDegraded, "Live updates are unavailable. Data may be out of date.")
	case !degraded && was && s == realtime.StateConnected:
		c.notify(NoticeRealtimeRestored, "Live updates restored.")
	}
}

// resume establishes the session from the stored credential when it is not
// already active. The identity lookup is the one GetIdentity uses, so resumes
// share its rate limit and failure budget.
func (c *Controller) resume(ctx context.Context) error {
	if c.state.IsAuthenticated() {
		return nil
	}
	_, err := c.GetIdentity(ctx)
	return err
}

// establish marks the session active at gen, seeds snapshots, then opens the
// live channel. It reports false when gen was superseded by a logout or
// another login while it ran.
func (c *Controller) establish(ctx context.Context, gen uint64, id *identity.Identity, accessToken string) bool {
	if !c.state.SetSessionAt(gen, id) {
		return false
	}
	c.identityFails.Store(0)

	c.seed(ctx, gen)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Generation() != gen {
		c.log.Info("session.establish.discard", "gen", gen)
		return false
	}
	metrics.SetAuthenticated(true)
	c.live.Open(accessToken)
	return true
}

// logoutAt ends the session only while gen is still current.
func (c *Controller) logoutAt(ctx context.Context, gen uint64, reason string) bool {
	c.mu.Lock()
	if c.state.Generation() != gen {
		c.mu.Unlock()
		return false
	}
	tok := c.endLocked(ctx, reason)
	c.mu.Unlock()

	c.notifyServerLogout(tok)
	return true
}

// goBackground runs fn on the background context and joins it on Shutdown.
// After Shutdown it does nothing.
func (c *Controller) goBackground(fn func(ctx context.Context)) {
	c.bgMu.Lock()
	defer c.bgMu.Unlock()
	if c.bgCtx.Err() != nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.bgCtx)
	}()
}
