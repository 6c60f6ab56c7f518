package model

import "github.com/golang-jwt/jwt/v5"

// AccessClaims is the claim set of an access token. Subject carries the user id,
// ID the token id.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set of a raw refresh token. It is only used to make every
// raw value unique and self-describing; validity is decided by the stored record.
type RefreshClaims struct {
	jwt.RegisteredClaims
}
