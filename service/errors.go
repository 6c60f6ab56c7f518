// file: service/errors.go

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenOwnership     = errors.New("token does not belong to the caller")
	ErrMissingBearer      = errors.New("missing bearer token")
	ErrPrincipalNotFound  = errors.New("principal not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrHashingFailure     = errors.New("password hashing failed")
	ErrTooManyAttempts    = errors.New("too many login attempts")
	ErrUserNotFound       = errors.New("user not found")
	ErrCorruptRecord      = errors.New("stored record is corrupt")
)

// UnverifiedAccountError is returned by the auth gate when email verification is
// enforced and the principal has not verified yet. Link points at the resend/verify page.
type UnverifiedAccountError struct {
	Link string
}

func (e *UnverifiedAccountError) Error() string {
	return "account email is not verified"
}

// IsUnauthorized reports whether err is one of the failures that must be answered with
// a plain 401. All of them share one response.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenOwnership) ||
		errors.Is(err, ErrMissingBearer) ||
		errors.Is(err, ErrPrincipalNotFound)
}

// storageError wraps a repository failure so callers can match ErrStorageUnavailable
// while the original cause stays available for logging.
func storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
