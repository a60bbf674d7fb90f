// Package credential owns the client's access/refresh token pair.
//
// A Store persists the pair through one Backend (the storage tier is a
// deployment decision), decodes access-token expiry without verifying the
// signature, and doubles as an oauth2.TokenSource for the REST client.
//
// Read and Clear never fail from the caller's point of view: unreadable state
// is treated as absent, and clearing an absent credential is a no-op.
package credential
