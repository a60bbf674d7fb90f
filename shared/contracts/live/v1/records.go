package v1

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ErrMalformed is returned by the decoders when a body is not the expected shape.
var ErrMalformed = errors.New("malformed payload")

// RemoteError is an error reported inside a data payload (e.g. trade_price {error}).
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return "remote error: " + e.Message }

// Timestamp accepts RFC 3339 as well as the naive ISO-8601 forms the backend
// emits ("2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"). Naive values are UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC1123,
}

// At wraps t.
func At(t time.Time) Timestamp { return Timestamp{Time: t.UTC()} }

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// TransactionRecord is one deposit/withdrawal/purchase entry.
type TransactionRecord struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"transaction_type"`
	AccountName   string          `json:"account_name,omitempty"`
	AccountNumber string          `json:"account_number,omitempty"`
	CreatedAt     Timestamp       `json:"created_at"`
	UpdatedAt     Timestamp       `json:"updated_at"`
}

// TradeRecord is one executed trade. ID is optional on the wire.
type TradeRecord struct {
	ID        string          `json:"id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"type"`
	CreatedAt Timestamp       `json:"created_at"`
}

// PriceQuote is the current market snapshot for the platform token.
type PriceQuote struct {
	BuyPrice          decimal.Decimal `json:"pdes_buy_price"`
	SellPrice         decimal.Decimal `json:"pdes_sell_price"`
	MarketCap         decimal.Decimal `json:"pdes_market_cap"`
	CirculatingSupply decimal.Decimal `json:"pdes_circulating_supply"`
	SupplyLeft        decimal.Decimal `json:"pdes_supply_left"`
	TotalSupply       decimal.Decimal `json:"pdes_total_supply"`
}

// DecodeTransactions accepts {"transactions":[...]} or a bare array.
func DecodeTransactions(raw []byte) ([]TransactionRecord, error) {
	return decodeList[TransactionRecord](raw, "transactions")
}

// DecodeTrades accepts {"trade_history":[...]} or a bare array.
func DecodeTrades(raw []byte) ([]TradeRecord, error) {
	return decodeList[TradeRecord](raw, "trade_history")
}

// DecodePriceQuote decodes a quote. A payload of the form {"error": "..."}
// yields a *RemoteError.
func DecodePriceQuote(raw []byte) (PriceQuote, error) {
	if !gjson.ValidBytes(raw) {
		return PriceQuote{}, ErrMalformed
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return PriceQuote{}, fmt.Errorf("%w: price quote is not an object", ErrMalformed)
	}
	if msg := doc.Get("error"); msg.Exists() && msg.String() != "" {
		return PriceQuote{}, &RemoteError{Message: msg.String()}
	}
	var q PriceQuote
	if err := json.Unmarshal(raw, &q); err != nil {
		return PriceQuote{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return q, nil
}

// DecodeError decodes an error payload; a bare JSON string is accepted as the message.
func DecodeError(raw []byte) ErrorPayload {
	doc := gjson.ParseBytes(raw)
	if doc.Type == gjson.String {
		return ErrorPayload{Message: doc.String()}
	}
	var p ErrorPayload
	_ = json.Unmarshal(raw, &p)
	return p
}

func decodeList[T any](raw []byte, key string) ([]T, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformed
	}
	list := gjson.ParseBytes(raw)
	if list.IsObject() {
		list = list.Get(key)
		if !list.Exists() {
			return nil, fmt.Errorf("%w: missing %q", ErrMalformed, key)
		}
	}
	if list.Type == gjson.Null {
		return []T{}, nil
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: %q is not a list", ErrMalformed, key)
	}

	out := make([]T, 0, len(list.Array()))
	if err := json.Unmarshal([]byte(list.Raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}
