package model

import "fmt"

// RoleName is the closed set of roles a health worker can hold.
type RoleName string

const (
	RoleVHT   RoleName = "VHT"
	RoleHCW   RoleName = "HCW"
	RoleAdmin RoleName = "ADMIN"
	RoleCHO   RoleName = "CHO"
)

// AllRoles lists every role in seed order.
var AllRoles = []RoleName{RoleVHT, RoleHCW, RoleAdmin, RoleCHO}

func (r RoleName) Valid() bool {
	switch r {
	case RoleVHT, RoleHCW, RoleAdmin, RoleCHO:
		return true
	}
	return false
}

func ParseRoleName(s string) (RoleName, error) {
	r := RoleName(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type Role struct {
	ID   int64    `db:"id" json:"id"`
	Name RoleName `db:"name" json:"name"`
}

// HasRole reports whether role is present in roles.
func HasRole(roles []RoleName, role RoleName) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
