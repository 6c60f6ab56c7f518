package model

// Principal is the identity resolved for one request by the auth gate.
type Principal struct {
	User *User
	Role Role
}

// IsAdmin is the only authorization primitive handlers use.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role.IsAdmin()
}
