package state

import (
	"cmp"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"pedex/cmd/identity"
	v1 "pedex/shared/contracts/live/v1"
)

// View is an immutable copy of the store's contents.
type View struct {
	Generation       uint64                 `json:"generation"`
	Authenticated    bool                   `json:"authenticated"`
	Identity         *identity.Identity     `json:"identity,omitempty"`
	Roles            identity.RoleSet       `json:"roles"`
	Transactions     []v1.TransactionRecord `json:"transactions"`
	TradeHistory     []v1.TradeRecord       `json:"trade_history"`
	CurrentPrice     *v1.PriceQuote         `json:"current_price,omitempty"`
	Live             string                 `json:"live"`
	RealtimeDegraded bool                   `json:"realtime_degraded"`
	LastError        string                 `json:"last_error,omitempty"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// Store is the session read model.
type Store struct {
	log *slog.Logger
	now func() time.Time

	mu           sync.RWMutex
	gen          uint64
	ident        *identity.Identity
	transactions map[int64]v1.TransactionRecord
	trades       map[string]v1.TradeRecord
	price        *v1.PriceQuote
	live         string
	degraded     bool
	lastError    string
	updatedAt    time.Time

	subMu sync.Mutex
	subs  map[int]chan struct{}
	subID int
}

// NewStore constructs an empty, unauthenticated Store.
func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return &Store{
		log:          log,
		now:          time.Now,
		transactions: make(map[int64]v1.TransactionRecord),
		trades:       make(map[string]v1.TradeRecord),
		live:         "disconnected",
		subs:         make(map[int]chan struct{}),
	}
}

// Generation identifies the current session. Reset advances it.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// SetSession marks the session authenticated with id. A nil id is ignored;
// use Reset to end a session.
func (s *Store) SetSession(id *identity.Identity) {
	if id == nil {
		return
	}
	s.mutate(func() { s.ident = id.Clone() })
}

// SetSessionAt is SetSession guarded by generation: it applies only while gen is current.
func (s *Store) SetSessionAt(gen uint64, id *identity.Identity) bool {
	if id == nil {
		return false
	}
	return s.mutateAt(gen, func() { s.ident = id.Clone() })
}

// Reset clears identity and collections and advances the generation.
// The live status is preserved; the channel reports its own transitions.
func (s *Store) Reset() {
	s.mutate(func() {
		s.gen++
		s.ident = nil
		s.transactions = make(map[int64]v1.TransactionRecord)
		s.trades = make(map[string]v1.TradeRecord)
		s.price = nil
		s.lastError = ""
	})
}

// ApplyTransactions applies a batch in the given mode.
func (s *Store) ApplyTransactions(mode Mode, recs []v1.TransactionRecord) {
	s.mutate(func() { s.applyTransactions(mode, recs) })
}

// ApplyTrades applies a batch in the given mode.
func (s *Store) ApplyTrades(mode Mode, recs []v1.TradeRecord) {
	s.mutate(func() { s.applyTrades(mode, recs) })
}

// ApplyPriceQuote replaces the current price.
func (s *Store) ApplyPriceQuote(q v1.PriceQuote) {
	s.mutate(func() { s.price = &q })
}

// SeedTransactionsAt replaces transactions if gen is still current.
func (s *Store) SeedTransactionsAt(gen uint64, recs []v1.TransactionRecord) bool {
	return s.mutateAt(gen, func() { s.applyTransactions(ModeSnapshot, recs) })
}

// SeedTradesAt replaces trade history if gen is still current.
func (s *Store) SeedTradesAt(gen uint64, recs []v1.TradeRecord) bool {
	return s.mutateAt(gen, func() { s.applyTrades(ModeSnapshot, recs) })
}

// SeedPriceAt replaces the price if gen is still current.
func (s *Store) SeedPriceAt(gen uint64, q v1.PriceQuote) bool {
	return s.mutateAt(gen, func() { s.price = &q })
}

// SetLive records the live channel state name and whether realtime is degraded.
func (s *Store) SetLive(name string, degraded bool) {
	s.mutate(func() {
		s.live = name
		s.degraded = degraded
	})
}

// Handle is the single entry point for live events. Data events that arrive
// while no session is active are dropped.
func (s *Store) Handle(ev Event) {
	switch e := ev.(type) {
	case ErrorEvent:
		s.log.Warn("state.event.error", "source", e.Source, "message", e.Message)
		s.mutate(func() { s.lastError = e.Message })
		return
	case nil:
		return
	}

	s.mu.Lock()
	if s.ident == nil {
		s.mu.Unlock()
		s.log.Debug("state.event.drop", "reason", "unauthenticated", "event", eventName(ev))
		return
	}
	switch e := ev.(type) {
	case TransactionsEvent:
		s.applyTransactions(e.Mode, e.Records)
	case TradesEvent:
		s.applyTrades(e.Mode, e.Records)
	case PriceEvent:
		q := e.Quote
		s.price = &q
	}
	s.updatedAt = s.now().UTC()
	s.mu.Unlock()

	s.notify()
}

// IsAuthenticated reports whether a session with a loaded identity is active.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ident != nil
}

// Identity returns a copy of the current identity, or nil.
func (s *Store) Identity() *identity.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ident.Clone()
}

// Roles returns the current role set (empty when unauthenticated).
func (s *Store) Roles() identity.RoleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ident == nil {
		return identity.RoleSet{}
	}
	return s.ident.Roles.Clone()
}

// IsAllowed reports whether an identity is loaded and holds role.
func (s *Store) IsAllowed(role identity.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ident != nil && s.ident.Roles.Has(role)
}

// View returns a consistent copy of everything in the store.
// Transactions are newest first; trades are oldest first.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		Generation:       s.gen,
		Authenticated:    s.ident != nil,
		Identity:         s.ident.Clone(),
		Roles:            identity.RoleSet{},
		Transactions:     make([]v1.TransactionRecord, 0, len(s.transactions)),
		TradeHistory:     make([]v1.TradeRecord, 0, len(s.trades)),
		Live:             s.live,
		RealtimeDegraded: s.degraded,
		LastError:        s.lastError,
		UpdatedAt:        s.updatedAt,
	}
	if s.ident != nil {
		v.Roles = s.ident.Roles.Clone()
	}
	if s.price != nil {
		p := *s.price
		v.CurrentPrice = &p
	}
	for _, r := range s.transactions {
		v.Transactions = append(v.Transactions, r)
	}
	for _, r := range s.trades {
		v.TradeHistory = append(v.TradeHistory, r)
	}

	slices.SortFunc(v.Transactions, func(a, b v1.TransactionRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt.Time); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	slices.SortFunc(v.TradeHistory, func(a, b v1.TradeRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt.Time); c != 0 {
			return c
		}
		return cmp.Compare(tradeKey(a), tradeKey(b))
	})
	return v
}

// Transactions returns transaction history, newest first.
func (s *Store) Transactions() []v1.TransactionRecord { return s.View().Transactions }

// TradeHistory returns trade history, oldest first.
func (s *Store) TradeHistory() []v1.TradeRecord { return s.View().TradeHistory }

// CurrentPrice returns the latest quote, or nil.
func (s *Store) CurrentPrice() *v1.PriceQuote { return s.View().CurrentPrice }

func (s *Store) applyTransactions(mode Mode, recs []v1.TransactionRecord) {
	if mode == ModeSnapshot {
		s.transactions = replaceAll(recs, transactionKey, transactionTime)
		return
	}
	mergeByRecency(s.transactions, recs, transactionKey, transactionTime)
}

func (s *Store) applyTrades(mode Mode, recs []v1.TradeRecord) {
	if mode == ModeSnapshot {
		s.trades = replaceAll(recs, tradeKey, tradeTime)
		return
	}
	mergeByRecency(s.trades, recs, tradeKey, tradeTime)
}

func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.updatedAt = s.now().UTC()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) mutateAt(gen uint64, fn func()) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.log.Debug("state.apply.stale", "gen", gen)
		return false
	}
	fn()
	s.updatedAt = s.now().UTC()
	s.mu.Unlock()
	s.notify()
	return true
}

func eventName(ev Event) string {
	switch ev.(type) {
	case TransactionsEvent:
		return "transactions"
	case TradesEvent:
		return "trades"
	case PriceEvent:
		return "price"
	case ErrorEvent:
		return "error"
	default:
		return "unknown"
	}
}
