package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Role is a named permission group. The set of roles is closed.
type Role string

const (
	RoleUser       Role = "USER"
	RoleModerator  Role = "MODERATOR"
	RoleSupport    Role = "SUPPORT"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleDeveloper  Role = "DEVELOPER"
	RoleOwner      Role = "OWNER"
)

// AllRoles lists every known role in ascending privilege order.
var AllRoles = []Role{
	RoleUser,
	RoleModerator,
	RoleSupport,
	RoleAdmin,
	RoleSuperAdmin,
	RoleDeveloper,
	RoleOwner,
}

// ParseRole maps a wire value onto a Role (case-insensitive, "-" and " " read as "_").
func ParseRole(s string) (Role, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for _, r := range AllRoles {
		if string(r) == norm {
			return r, nil
		}
	}
	return "", OpError{Op: "identity.ParseRole", Kind: ErrUnknownRole, Msg: fmt.Sprintf("%q", s)}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return slices.Contains(AllRoles, r)
}

func (r Role) String() string { return string(r) }

// RoleSet is a deduplicated set of roles.
//
// On the wire the platform sends either a single role string or a list; unknown
// names are dropped so they can never grant access.
type RoleSet []Role

// NewRoleSet builds a set from roles, ignoring invalid and duplicate entries.
func NewRoleSet(roles ...Role) RoleSet {
	out := make(RoleSet, 0, len(roles))
	for _, r := range roles {
		if r.Valid() && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// Has reports whether role is in the set.
func (s RoleSet) Has(role Role) bool {
	return slices.Contains(s, role)
}

// Strings returns the role names in set order.
func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}

// Clone returns an independent copy.
func (s RoleSet) Clone() RoleSet {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

func (s *RoleSet) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = nil
		return nil
	}

	var names []string
	if b[0] == '[' {
		if err := json.Unmarshal(b, &names); err != nil {
			return OpError{Op: "identity.RoleSet", Kind: ErrInvalidInput, Msg: err.Error()}
		}
	} else {
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return OpError{Op: "identity.RoleSet", Kind: ErrInvalidInput, Msg: err.Error()}
		}
		names = []string{one}
	}

	roles := make([]Role, 0, len(names))
	for _, n := range names {
		if r, err := ParseRole(n); err == nil {
			roles = append(roles, r)
		}
	}
	*s = NewRoleSet(roles...)
	return nil
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Role(s))
}
