package model

import "errors"

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "user"
)

var ErrInvalidRole = errors.New("invalid role specified")

// ParseRole maps a stored role string onto a Role. Matching is exact and case-sensitive;
// anything unrecognized is an error rather than a silent member.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleMember:
		return RoleMember, nil
	default:
		return "", ErrInvalidRole
	}
}

// IsAdmin reports whether r is exactly RoleAdmin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}
