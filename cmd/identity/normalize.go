package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
// Login requests are sent with the normalized form.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
