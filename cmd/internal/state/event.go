package state

import (
	v1 "pedex/shared/contracts/live/v1"
)

// Mode selects how a batch of records is applied.
type Mode int

const (
	// ModeSnapshot replaces the collection.
	ModeSnapshot Mode = iota
	// ModePush merges into the collection by key and recency.
	ModePush
)

func (m Mode) String() string {
	if m == ModeSnapshot {
		return "snapshot"
	}
	return "push"
}

// Event is the closed set of inputs accepted by Store.Handle.
type Event interface {
	event()
}

// TransactionsEvent carries transaction records.
type TransactionsEvent struct {
	Mode    Mode
	Records []v1.TransactionRecord
}

// TradesEvent carries trade records.
type TradesEvent struct {
	Mode    Mode
	Records []v1.TradeRecord
}

// PriceEvent carries a price quote; it always replaces the current one.
type PriceEvent struct {
	Quote v1.PriceQuote
}

// ErrorEvent reports a server-side error; it never changes collections.
type ErrorEvent struct {
	Source  string
	Message string
}

func (TransactionsEvent) event() {}
func (TradesEvent) event()       {}
func (PriceEvent) event()        {}
func (ErrorEvent) event()        {}
