// Package authapi is the REST client for the platform API.
//
// Auth endpoints (login, refresh, logout) carry their token explicitly. Account
// and ledger endpoints go through an oauth2.Transport that attaches the current
// access token from a TokenSource, so callers never handle bearer headers.
//
// Errors are classified for callers: ErrUnauthorized for 401, ErrNetwork for
// transport failures, ErrMalformed for unexpected bodies, and *StatusError for
// every other non-2xx response.
package authapi
