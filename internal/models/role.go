package models

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies the platform persona of a user. The set is closed: values
// outside of it are rejected by ParseRole.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleInvestor Role = "investor"
	RoleBroker   Role = "broker"
	RoleTenant   Role = "tenant"
	RoleOwner    Role = "owner"
)

// ErrUnknownRole is returned when a raw value does not name a known role.
var ErrUnknownRole = errors.New("unknown role")

var allRoles = []Role{RoleAdmin, RoleInvestor, RoleBroker, RoleTenant, RoleOwner}

// Roles returns every known role in declaration order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole normalises and validates a raw role value.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// ParseRoles validates a list of raw roles, dropping duplicates while keeping order.
func ParseRoles(raw []string) ([]Role, error) {
	if len(raw) == 0 {
		return []Role{}, nil
	}
	seen := make(map[Role]struct{}, len(raw))
	out := make([]Role, 0, len(raw))
	for _, value := range raw {
		role, err := ParseRole(value)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out, nil
}
