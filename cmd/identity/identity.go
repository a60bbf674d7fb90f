package identity

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	v1 "pedex/shared/contracts/live/v1"
)

// Identity is the authenticated user's profile as returned by the platform.
type Identity struct {
	ID             int64           `json:"id"`
	Email          string          `json:"email"`
	FullName       string          `json:"full_name,omitempty"`
	Username       string          `json:"username,omitempty"`
	Roles          RoleSet         `json:"role"`
	Balance        decimal.Decimal `json:"balance"`
	CryptoBalance  decimal.Decimal `json:"crypto_balance"`
	ReferralCode   string          `json:"referral_code,omitempty"`
	TotalReferrals int             `json:"total_referrals"`
	ReferralReward decimal.Decimal `json:"referral_reward"`

	// IsBlocked and Sticks drive account standing (see StandingPolicy).
	IsBlocked bool `json:"is_blocked"`
	Sticks    int  `json:"sticks"`

	CreatedAt v1.Timestamp `json:"created_at"`
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.Roles = i.Roles.Clone()
	return &c
}

// DecodeIdentity accepts either {"user": {...}} or a bare identity object.
// The result must carry an id or an email.
func DecodeIdentity(raw []byte) (*Identity, error) {
	const op = "identity.DecodeIdentity"

	if !gjson.ValidBytes(raw) {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "body is not json"}
	}
	doc := gjson.ParseBytes(raw)
	if u := doc.Get("user"); u.IsObject() {
		doc = u
	}
	if !doc.IsObject() {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "identity is not an object"}
	}

	var id Identity
	if err := json.Unmarshal([]byte(doc.Raw), &id); err != nil {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}
	if id.ID == 0 && id.Email == "" {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing id and email"}
	}
	return &id, nil
}
