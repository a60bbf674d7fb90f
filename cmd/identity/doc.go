// Package identity models the authenticated principal as the platform reports it.
//
// It contains the Identity record, the closed Role vocabulary used for
// authorization checks, account standing evaluation, and small id helpers.
//
// This package is intentionally dependency-light and has no I/O.
package identity
