// file: model/user.go

package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a row of the users table. PasswordHash and PasswordSalt are both nil for
// accounts linked through an OAuth provider.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"`
	PasswordSalt []byte    `json:"-"`
	Role         string    `json:"role"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasCredential reports whether the user can log in with a password.
func (u *User) HasCredential() bool {
	return u.PasswordHash != nil && *u.PasswordHash != "" && len(u.PasswordSalt) > 0
}
