// file: service/token_service.go

package service

import (
	"errors"
	"fmt"
	"go-trip-api/model"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenService mints and verifies HS256 tokens. Access tokens are stateless and cannot
// be revoked; their short TTL is the only bound on a stolen token.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	leeway        time.Duration
	now           Clock
}

// NewTokenService creates a TokenService. Access and refresh tokens use separate secrets
// so one can never be replayed as the other.
func NewTokenService(accessSecret, refreshSecret string, leeway time.Duration, clock Clock) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		leeway:        leeway,
		now:           clockOrDefault(clock),
	}
}

// MintAccess builds and signs the access claims for a user.
func (s *TokenService) MintAccess(userID uuid.UUID, role model.Role, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("access token ttl must be positive")
	}
	now := s.now()
	claims := &model.AccessClaims{
		Role: role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return sign(claims, s.accessSecret)
}

// VerifyAccess checks the signature and the library's expiry rules, including leeway.
// Callers must still re-check the time bounds themselves; see AuthGate.
func (s *TokenService) VerifyAccess(token string) (*model.AccessClaims, error) {
	return VerifyAccessWithSecret(token, s.accessSecret, s.now, s.leeway)
}

// VerifyAccessWithSecret parses token with an explicit secret.
func VerifyAccessWithSecret(token string, secret []byte, now Clock, leeway time.Duration) (*model.AccessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(clockOrDefault(now)),
	)

	claims := &model.AccessClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// MintRefresh produces a raw refresh token. It reuses the signed-token format; its
// validity is decided by the stored record, not by the signature.
func (s *TokenService) MintRefresh(userID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("refresh token ttl must be positive")
	}
	now := s.now()
	claims := &model.RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return sign(claims, s.refreshSecret)
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}
	return signed, nil
}
