package state

import (
	"strconv"
	"time"

	v1 "pedex/shared/contracts/live/v1"
)

// mergeByRecency folds recs into dst. An incoming record replaces the stored one
// when its timestamp is the same or newer. It returns the number of records kept.
func mergeByRecency[K comparable, R any](dst map[K]R, recs []R, key func(R) K, ts func(R) time.Time) int {
	kept := 0
	for _, r := range recs {
		k := key(r)
		if cur, ok := dst[k]; ok && ts(r).Before(ts(cur)) {
			continue
		}
		dst[k] = r
		kept++
	}
	return kept
}

func replaceAll[K comparable, R any](recs []R, key func(R) K, ts func(R) time.Time) map[K]R {
	out := make(map[K]R, len(recs))
	mergeByRecency(out, recs, key, ts)
	return out
}

func transactionKey(r v1.TransactionRecord) int64 { return r.ID }

func transactionTime(r v1.TransactionRecord) time.Time { return r.CreatedAt.Time }

// tradeKey uses the id when the platform sends one, otherwise
// (type, created_at, amount). Amounts compare by value, so "2.5" and "2.50"
// are the same trade.
func tradeKey(r v1.TradeRecord) string {
	if r.ID != "" {
		return "id:" + r.ID
	}
	return "t:" + r.Type + "@" + strconv.FormatInt(r.CreatedAt.UnixNano(), 10) + "/" + r.Amount.String()
}

func tradeTime(r v1.TradeRecord) time.Time { return r.CreatedAt.Time }
