package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/coder/websocket"

	"pedex/cmd/internal/state"
	v1 "pedex/shared/contracts/live/v1"
)

// ---- envelope IO ----

func newEnvelope(typ string, payload any, ts time.Time) (v1.Envelope, error) {
	id, err := NewEnvelopeID(ts)
	if err != nil {
		return v1.Envelope{}, err
	}
	return v1.NewEnvelope(typ, id, ts, payload)
}

func decodeEnvelope(data []byte) (v1.Envelope, error) {
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	if err := env.Validate(); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, b)
}

// translate maps an inbound envelope onto a state event. ok is false for
// envelopes that carry nothing for the read model.
func translate(env v1.Envelope) (ev state.Event, ok bool, err error) {
	switch env.Type {
	case v1.TypeTransactionHistory, v1.TypeGetTransactionHistory:
		recs, err := v1.DecodeTransactions(env.Payload)
		if err != nil {
			return nil, false, err
		}
		return state.TransactionsEvent{Mode: state.ModePush, Records: recs}, true, nil

	case v1.TypeTradeHistory, v1.TypeGetTradeHistory:
		recs, err := v1.DecodeTrades(env.Payload)
		if err != nil {
			return nil, false, err
		}
		return state.TradesEvent{Mode: state.ModePush, Records: recs}, true, nil

	case v1.TypeTradePrice:
		q, err := v1.DecodePriceQuote(env.Payload)
		var remote *v1.RemoteError
		if errors.As(err, &remote) {
			return state.ErrorEvent{Source: v1.TypeTradePrice, Message: remote.Message}, true, nil
		}
		if err != nil {
			return nil, false, err
		}
		return state.PriceEvent{Quote: q}, true, nil

	case v1.TypeError:
		return state.ErrorEvent{Source: "live", Message: v1.DecodeError(env.Payload).Text()}, true, nil

	default:
		return nil, false, nil
	}
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || strings.Contains(err.Error(), "use of closed network connection") {
		return readErrConnClosed
	}
	return readErrUnknown
}

func (k readErrKind) String() string {
	switch k {
	case readErrClose:
		return "peer_closed"
	case readErrCtxDone:
		return "context_done"
	case readErrConnClosed:
		return "conn_closed"
	default:
		return "read_failed"
	}
}
