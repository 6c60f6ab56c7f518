// file: service/auth_gate.go

package service

import (
	"context"
	"fmt"
	"go-trip-api/model"
	"go-trip-api/repository"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// AccessVerifier verifies the signature and library-level claims of an access token.
type AccessVerifier interface {
	VerifyAccess(token string) (*model.AccessClaims, error)
}

// AuthGate resolves the Principal of a request from its Authorization header.
// It fails closed: every ambiguity ends in an error, never in an anonymous principal.
type AuthGate struct {
	verifier        AccessVerifier
	users           repository.IUserRepository
	now             Clock
	requireVerified bool
	verifyURL       string
}

// GateOptions configures the email verification step of the gate.
type GateOptions struct {
	RequireVerifiedEmail bool
	VerifyURL            string
}

func NewAuthGate(verifier AccessVerifier, users repository.IUserRepository, clock Clock, opts GateOptions) *AuthGate {
	return &AuthGate{
		verifier:        verifier,
		users:           users,
		now:             clockOrDefault(clock),
		requireVerified: opts.RequireVerifiedEmail,
		verifyURL:       opts.VerifyURL,
	}
}

// Authenticate runs the gate against a raw Authorization header value.
func (g *AuthGate) Authenticate(ctx context.Context, header string) (*model.Principal, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, ErrMissingBearer
	}

	claims, err := g.verifier.VerifyAccess(token)
	if err != nil {
		return nil, err
	}

	// The signing library may run with leeway or be misconfigured; re-check the bounds
	// against our own clock with no tolerance.
	now := g.now()
	if claims.ExpiresAt == nil || now.After(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if claims.IssuedAt == nil || claims.IssuedAt.Time.After(now) {
		return nil, fmt.Errorf("%w: issued in the future", ErrTokenMalformed)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrTokenMalformed)
	}

	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrPrincipalNotFound
		}
		return nil, storageError("load principal", err)
	}

	role, err := model.ParseRole(user.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrincipalNotFound, err)
	}

	if g.requireVerified && !user.Verified {
		return nil, &UnverifiedAccountError{Link: g.verifyLink(user)}
	}

	return &model.Principal{User: user, Role: role}, nil
}

func (g *AuthGate) verifyLink(user *model.User) string {
	sep := "?"
	if strings.Contains(g.verifyURL, "?") {
		sep = "&"
	}
	return g.verifyURL + sep + "email=" + url.QueryEscape(user.Email)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.Contains(token, " ") {
		return "", false
	}
	return token, true
}
