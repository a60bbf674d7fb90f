package state

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pedex/cmd/identity"
	v1 "pedex/shared/contracts/live/v1"
)

var (
	t0 = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
	t2 = t1.Add(time.Minute)
)

func newTestStore() *Store {
	return NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func txn(id int64, at time.Time, amount string) v1.TransactionRecord {
	return v1.TransactionRecord{ID: id, Amount: decimal.RequireFromString(amount), Type: "deposit", CreatedAt: v1.At(at)}
}

func signedIn(s *Store) {
	s.SetSession(&identity.Identity{ID: 1, Email: "a@b.c", Roles: identity.RoleSet{identity.RoleUser}})
}

func TestApplyTransactions_MergeByRecency(t *testing.T) {
	s := newTestStore()
	s.ApplyTransactions(ModeSnapshot, []v1.TransactionRecord{txn(7, t1, "10")})

	s.ApplyTransactions(ModePush, []v1.TransactionRecord{txn(7, t0, "99")})
	got := s.Transactions()
	require.Len(t, got, 1)
	require.Equal(t, "10", got[0].Amount.String(), "older push must not replace")

	s.ApplyTransactions(ModePush, []v1.TransactionRecord{txn(7, t2, "20")})
	got = s.Transactions()
	require.Len(t, got, 1)
	require.Equal(t, "20", got[0].Amount.String(), "newer push replaces")
}

func TestApplyTransactions_OrderInsensitiveAndIdempotent(t *testing.T) {
	batch := []v1.TransactionRecord{txn(1, t0, "1"), txn(2, t1, "2"), txn(1, t2, "3")}

	a := newTestStore()
	a.ApplyTransactions(ModePush, batch)
	a.ApplyTransactions(ModePush, batch)

	b := newTestStore()
	for i := len(batch) - 1; i >= 0; i-- {
		b.ApplyTransactions(ModePush, batch[i:i+1])
	}

	require.Equal(t, a.Transactions(), b.Transactions())
	require.Len(t, a.Transactions(), 2)
	require.Equal(t, int64(1), a.Transactions()[0].ID, "newest first")
}

func TestApplyTransactions_SnapshotReplaces(t *testing.T) {
	s := newTestStore()
	s.ApplyTransactions(ModePush, []v1.TransactionRecord{txn(1, t0, "1"), txn(2, t0, "2")})
	s.ApplyTransactions(ModeSnapshot, []v1.TransactionRecord{txn(3, t1, "3")})

	got := s.Transactions()
	require.Len(t, got, 1)
	require.Equal(t, int64(3), got[0].ID)
}

func TestApplyTrades_KeyWithoutID(t *testing.T) {
	s := newTestStore()
	buy := v1.TradeRecord{Amount: decimal.NewFromInt(5), Type: "buy", CreatedAt: v1.At(t0)}
	sell := v1.TradeRecord{Amount: decimal.NewFromInt(2), Type: "sell", CreatedAt: v1.At(t0)}
	later := v1.TradeRecord{ID: "x1", Amount: decimal.NewFromInt(1), Type: "buy", CreatedAt: v1.At(t1)}

	s.ApplyTrades(ModePush, []v1.TradeRecord{buy, sell, buy, later})
	got := s.TradeHistory()
	require.Len(t, got, 3)
	require.Equal(t, "x1", got[2].ID, "oldest first")
}

func TestApplyTrades_SameTypeAndTimeDifferentAmountsKept(t *testing.T) {
	s := newTestStore()
	first := v1.TradeRecord{Amount: decimal.NewFromInt(5), Type: "buy", CreatedAt: v1.At(t0)}
	second := v1.TradeRecord{Amount: decimal.NewFromInt(7), Type: "buy", CreatedAt: v1.At(t0)}
	again := v1.TradeRecord{Amount: decimal.RequireFromString("5.00"), Type: "buy", CreatedAt: v1.At(t0)}

	s.ApplyTrades(ModePush, []v1.TradeRecord{first, second})
	s.ApplyTrades(ModePush, []v1.TradeRecord{again})

	got := s.TradeHistory()
	require.Len(t, got, 2, "distinct trades kept, redelivery merged")
	amounts := []string{got[0].Amount.String(), got[1].Amount.String()}
	require.ElementsMatch(t, []string{"5", "7"}, amounts)
}

func TestApplyPriceQuote_Replaces(t *testing.T) {
	s := newTestStore()
	require.Nil(t, s.CurrentPrice())

	s.ApplyPriceQuote(v1.PriceQuote{BuyPrice: decimal.NewFromInt(2)})
	s.ApplyPriceQuote(v1.PriceQuote{BuyPrice: decimal.NewFromInt(1)})
	require.Equal(t, "1", s.CurrentPrice().BuyPrice.String())
}

func TestHandle_DropsDataWhenUnauthenticated(t *testing.T) {
	s := newTestStore()
	s.Handle(TransactionsEvent{Mode: ModePush, Records: []v1.TransactionRecord{txn(1, t0, "1")}})
	s.Handle(PriceEvent{Quote: v1.PriceQuote{BuyPrice: decimal.NewFromInt(1)}})
	require.Empty(t, s.Transactions())
	require.Nil(t, s.CurrentPrice())

	signedIn(s)
	s.Handle(TransactionsEvent{Mode: ModePush, Records: []v1.TransactionRecord{txn(1, t0, "1")}})
	s.Handle(TradesEvent{Mode: ModePush, Records: []v1.TradeRecord{{Type: "buy", CreatedAt: v1.At(t0)}}})
	s.Handle(PriceEvent{Quote: v1.PriceQuote{BuyPrice: decimal.NewFromInt(1)}})
	require.Len(t, s.Transactions(), 1)
	require.Len(t, s.TradeHistory(), 1)
	require.NotNil(t, s.CurrentPrice())
}

func TestHandle_ErrorEventKeepsCollections(t *testing.T) {
	s := newTestStore()
	signedIn(s)
	s.ApplyTransactions(ModeSnapshot, []v1.TransactionRecord{txn(1, t0, "1")})

	s.Handle(ErrorEvent{Source: "live", Message: "invalid token"})
	v := s.View()
	require.Len(t, v.Transactions, 1)
	require.Equal(t, "invalid token", v.LastError)
}

func TestReset_ClearsAndAdvancesGeneration(t *testing.T) {
	s := newTestStore()
	signedIn(s)
	s.ApplyTransactions(ModeSnapshot, []v1.TransactionRecord{txn(1, t0, "1")})
	s.ApplyPriceQuote(v1.PriceQuote{})
	gen := s.Generation()

	s.Reset()
	v := s.View()
	require.False(t, v.Authenticated)
	require.Nil(t, v.Identity)
	require.Empty(t, v.Transactions)
	require.Nil(t, v.CurrentPrice)
	require.Equal(t, gen+1, v.Generation)

	require.False(t, s.SeedTransactionsAt(gen, []v1.TransactionRecord{txn(2, t0, "2")}), "stale generation is discarded")
	require.False(t, s.SetSessionAt(gen, &identity.Identity{ID: 9}))
	require.Empty(t, s.Transactions())
	require.False(t, s.IsAuthenticated())

	require.True(t, s.SeedTransactionsAt(gen+1, []v1.TransactionRecord{txn(2, t0, "2")}))
}

func TestIsAllowed(t *testing.T) {
	s := newTestStore()
	require.False(t, s.IsAllowed(identity.RoleUser))

	s.SetSession(&identity.Identity{ID: 1, Roles: identity.NewRoleSet(identity.RoleUser, identity.RoleSupport)})
	require.True(t, s.IsAllowed(identity.RoleSupport))
	require.False(t, s.IsAllowed(identity.RoleAdmin))

	roles := s.Roles()
	roles[0] = identity.RoleOwner
	require.False(t, s.IsAllowed(identity.RoleOwner), "Roles returns a copy")
}

func TestSubscribe_CoalescesAndCancels(t *testing.T) {
	s := newTestStore()
	ch, cancel := s.Subscribe()

	s.ApplyPriceQuote(v1.PriceQuote{})
	s.ApplyPriceQuote(v1.PriceQuote{})

	select {
	case <-ch:
	default:
		t.Fatal("expected a change signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}

	cancel()
	s.ApplyPriceQuote(v1.PriceQuote{})
	select {
	case <-ch:
		t.Fatal("no signal after cancel")
	default:
	}
}
