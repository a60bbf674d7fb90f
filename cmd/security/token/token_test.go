package token

import (
	"bytes"
	"errors"
	"testing"
)

func TestFingerprint(t *testing.T) {
	if got := Fingerprint(""); got != "" {
		t.Fatalf("Fingerprint(\"\") = %q, want empty", got)
	}
	a := Fingerprint("secret-token")
	if len(a) != fingerprintLen {
		t.Fatalf("len = %d, want %d", len(a), fingerprintLen)
	}
	if a != Fingerprint("secret-token") {
		t.Fatalf("fingerprint not stable")
	}
	if a == Fingerprint("other-token") {
		t.Fatalf("distinct tokens share a fingerprint")
	}
}

func TestSealKeyFromEnv(t *testing.T) {
	t.Setenv(SealEnvKey, "")
	if _, err := SealKeyFromEnv(32); !errors.Is(err, ErrSealKeyMissing) {
		t.Fatalf("err = %v, want ErrSealKeyMissing", err)
	}

	t.Setenv(SealEnvKey, "short")
	if _, err := SealKeyFromEnv(32); !errors.Is(err, ErrSealKeyTooShort) {
		t.Fatalf("err = %v, want ErrSealKeyTooShort", err)
	}

	t.Setenv(SealEnvKey, "  0123456789abcdef0123456789abcdef  ")
	key, err := SealKeyFromEnv(32)
	if err != nil {
		t.Fatalf("SealKeyFromEnv: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("key not trimmed: len=%d", len(key))
	}
	if !SealEnabled() {
		t.Fatalf("SealEnabled() = false")
	}
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	sealed, err := s.Seal([]byte("payload"), []byte("slot"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("payload")) {
		t.Fatalf("sealed output contains plaintext")
	}

	out, err := s.Open(sealed, []byte("slot"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(out) != "payload" {
		t.Fatalf("Open = %q", out)
	}

	if _, err := s.Open(sealed, []byte("other-slot")); !errors.Is(err, ErrSealedInvalid) {
		t.Fatalf("wrong aad err = %v, want ErrSealedInvalid", err)
	}

	other, _ := NewSealer([]byte("a-completely-different-secret-value"))
	if _, err := other.Open(sealed, []byte("slot")); !errors.Is(err, ErrSealedInvalid) {
		t.Fatalf("wrong key err = %v, want ErrSealedInvalid", err)
	}
	if _, err := s.Open([]byte("tiny"), nil); !errors.Is(err, ErrSealedInvalid) {
		t.Fatalf("short input err = %v, want ErrSealedInvalid", err)
	}
}

func TestNewSealer_EmptySecret(t *testing.T) {
	if _, err := NewSealer(nil); !errors.Is(err, ErrSealKeyMissing) {
		t.Fatalf("err = %v, want ErrSealKeyMissing", err)
	}
}
