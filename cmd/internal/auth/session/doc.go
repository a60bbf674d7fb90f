// Package session implements the client's session controller.
//
// The Controller is the single authority over the authenticated session. It
// bootstraps from a stored credential, logs in and out, renews the access
// token before it lapses (coalescing concurrent triggers into one refresh),
// seeds the read model from REST snapshots, and keeps exactly one live
// channel open while a session is active.
//
// Every asynchronous result is tagged with the session generation observed
// before the call and discarded if a logout or a new login intervened.
package session
