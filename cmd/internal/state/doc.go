// Package state holds the merged, consumer-facing read model of a session:
// identity, roles, transaction and trade history, and the live price.
//
// Two sources feed it. REST snapshots replace a collection wholesale; live
// pushes merge into it by record key, keeping whichever copy has the newer
// CreatedAt. The merge is idempotent and insensitive to arrival order, so
// overlapping snapshot and push deliveries converge.
//
// Store does no I/O and is safe for concurrent use.
package state
