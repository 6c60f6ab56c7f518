// file: model/token.go

package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a persisted refresh token record. Only the SHA-256 digest of the raw
// token is stored; the raw value is handed to the client once and never kept.
type RefreshToken struct {
	TokenHash       string         `json:"-"` // The hash is not exposed in JSON responses.
	UserID          uuid.NullUUID  `json:"user_id"`
	CreatedAt       time.Time      `json:"created_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
	ParentTokenHash sql.NullString `json:"-"`
	Revoked         bool           `json:"revoked"`
}

// IsExpired reports whether the record is past its expiry at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// OwnedBy reports whether the record belongs to userID. Orphaned records belong to nobody.
func (t *RefreshToken) OwnedBy(userID uuid.UUID) bool {
	return t.UserID.Valid && t.UserID.UUID == userID
}

// HasParent reports whether the record was produced by a rotation.
func (t *RefreshToken) HasParent() bool {
	return t.ParentTokenHash.Valid
}
