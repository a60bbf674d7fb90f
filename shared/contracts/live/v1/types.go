// Package v1 defines the Pedex Live Protocol v1 contract.
//
// The live channel carries JSON envelopes over a single websocket. The client
// subscribes to three feeds (transaction history, trade history, current price)
// and rotates its bearer token in place with an update_token control message.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Subprotocol is negotiated during the websocket handshake.
const Subprotocol = "pedex.live.v1"

// Type constants (wire-stable).
const (
	// TypeGetTransactionHistory subscribes to transaction history (client -> server).
	// The server may answer with the same type.
	TypeGetTransactionHistory = "get_transaction_history"
	// TypeGetTradeHistory subscribes to trade history (client -> server).
	// The server may answer with the same type.
	TypeGetTradeHistory = "get_trade_history"
	// TypeGetCurrentPrice subscribes to the current price (client -> server).
	TypeGetCurrentPrice = "get_current_price"
	// TypeUpdateToken rotates the bearer token on an open connection (client -> server).
	TypeUpdateToken = "update_token"

	// TypeTransactionHistory carries transaction records (server -> client).
	TypeTransactionHistory = "transaction_history"
	// TypeTradeHistory carries trade records (server -> client).
	TypeTradeHistory = "trade_history"
	// TypeTradePrice carries a PriceQuote (server -> client).
	TypeTradePrice = "trade_price"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Subscriptions are the requests emitted once per successful connection, in order.
var Subscriptions = []string{
	TypeGetTransactionHistory,
	TypeGetTradeHistory,
	TypeGetCurrentPrice,
}

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload and wraps it. A nil payload encodes as {}.
func NewEnvelope(typ, id string, now time.Time, payload any) (Envelope, error) {
	raw := json.RawMessage(`{}`)
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		raw = b
	}
	return Envelope{V: Version, Type: typ, ID: id, TS: now.UTC(), Payload: raw}, nil
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeGetTransactionHistory,
		TypeGetTradeHistory,
		TypeGetCurrentPrice,
		TypeUpdateToken,
		TypeTransactionHistory,
		TypeTradeHistory,
		TypeTradePrice,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// UpdateTokenPayload carries a freshly issued access token.
type UpdateTokenPayload struct {
	Token string `json:"token"`
}

// ErrorPayload is a generic error payload. The backend uses either field.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Text returns the most specific human readable message.
func (p ErrorPayload) Text() string {
	if p.Message != "" {
		return p.Message
	}
	if p.Error != "" {
		return p.Error
	}
	return p.Code
}
