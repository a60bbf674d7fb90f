// Package credentialtest provides helpers for tests that need realistic tokens.
package credentialtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var signingKey = []byte("credentialtest-signing-key")

// MintJWT returns an HS256 token whose exp claim is exp. The signature is not
// meaningful to the client, which never verifies it.
func MintJWT(t testing.TB, subject string, exp time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(exp.Add(-15 * time.Minute)),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return tok
}

// MintJWTWithoutExp returns a token that carries no exp claim.
func MintJWTWithoutExp(t testing.TB, subject string) string {
	t.Helper()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: subject}).SignedString(signingKey)
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return tok
}
