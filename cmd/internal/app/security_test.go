package app

import (
	"strings"
	"testing"

	"pedex/cmd/internal/auth/credential"
)

func sealedConfig(tier credential.Tier) Config {
	cc := credential.DefaultConfig()
	cc.Tier = tier
	cc.RequireSealed = true
	return Config{Credential: cc}
}

func TestValidateSecurityConfig_NotRequired(t *testing.T) {
	t.Setenv("PEDEX_CREDENTIAL_KEY", "")

	cfg := sealedConfig(credential.TierPersistent)
	cfg.Credential.RequireSealed = false
	if err := ValidateSecurityConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateSecurityConfig_SessionTierNeverPersists(t *testing.T) {
	t.Setenv("PEDEX_CREDENTIAL_KEY", "")

	if err := ValidateSecurityConfig(sealedConfig(credential.TierSession)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateSecurityConfig_MissingKey(t *testing.T) {
	t.Setenv("PEDEX_CREDENTIAL_KEY", "")

	err := ValidateSecurityConfig(sealedConfig(credential.TierPersistent))
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestValidateSecurityConfig_ShortKey(t *testing.T) {
	t.Setenv("PEDEX_CREDENTIAL_KEY", "short")

	err := ValidateSecurityConfig(sealedConfig(credential.TierPostgres))
	if err == nil || !strings.Contains(err.Error(), "too short") {
		t.Fatalf("expected short key error, got %v", err)
	}
}

func TestValidateSecurityConfig_Valid(t *testing.T) {
	t.Setenv("PEDEX_CREDENTIAL_KEY", strings.Repeat("k", 32))

	if err := ValidateSecurityConfig(sealedConfig(credential.TierPersistent)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
