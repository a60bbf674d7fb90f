package credential

import (
	"context"
	"encoding/json"
	"fmt"

	"pedex/cmd/security/token"
)

// Credential is the token pair issued by the platform.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Empty reports whether no access token is present.
func (c Credential) Empty() bool { return c.AccessToken == "" }

// Backend abstracts one storage tier. Slots allow several profiles per backend.
type Backend interface {
	// Load returns ErrNotFound when the slot is empty.
	Load(ctx context.Context, slot string) (Credential, error)
	Store(ctx context.Context, slot string, c Credential) error
	// Delete is idempotent.
	Delete(ctx context.Context, slot string) error
	Close() error
}

// codec turns a Credential into stored bytes, sealing them when a Sealer is set.
type codec struct {
	sealer *token.Sealer
}

func (c codec) encode(slot string, cred Credential) ([]byte, error) {
	b, err := json.Marshal(cred)
	if err != nil {
		return nil, err
	}
	if c.sealer == nil {
		return b, nil
	}
	return c.sealer.Seal(b, []byte(slot))
}

func (c codec) decode(slot string, data []byte) (Credential, error) {
	if c.sealer != nil {
		opened, err := c.sealer.Open(data, []byte(slot))
		if err != nil {
			return Credential{}, fmt.Errorf("open %s: %w", slot, err)
		}
		data = opened
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("decode %s: %w", slot, err)
	}
	return cred, nil
}
