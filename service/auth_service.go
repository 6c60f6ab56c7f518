package service

import (
	"context"
	"errors"
	"fmt"
	"go-trip-api/logger"
	"go-trip-api/model"
	"go-trip-api/repository"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TokenPair is returned by login, register and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionConfig holds the token lifetimes.
type SessionConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthService implements login, registration, refresh, logout and password changes on
// top of the credential, token and refresh-store components.
type AuthService struct {
	users     repository.IUserRepository
	passwords *PasswordService
	tokens    *TokenService
	refresh   *RefreshTokenStore
	limiter   *LoginLimiter
	cfg       SessionConfig
}

func NewAuthService(
	users repository.IUserRepository,
	passwords *PasswordService,
	tokens *TokenService,
	refresh *RefreshTokenStore,
	limiter *LoginLimiter,
	cfg SessionConfig,
) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		refresh:   refresh,
		limiter:   limiter,
		cfg:       cfg,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks an email/password pair. An unknown email, an account without a password
// and a wrong password all produce ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = normalizeEmail(email)
	if err := s.limiter.Check(ctx, email); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !isNoRows(err) {
			return nil, storageError("find user by email", err)
		}
		s.passwords.SpendDummyHash(ctx, password)
		s.limiter.RecordFailure(ctx, email)
		return nil, ErrInvalidCredentials
	}

	if !user.HasCredential() {
		s.passwords.SpendDummyHash(ctx, password)
		s.limiter.RecordFailure(ctx, email)
		return nil, ErrInvalidCredentials
	}

	ok, err := s.passwords.Verify(ctx, password, *user.PasswordHash, user.PasswordSalt)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Error("Failed to verify password hash")
		return nil, err
	}
	if !ok {
		s.limiter.RecordFailure(ctx, email)
		return nil, ErrInvalidCredentials
	}

	role, err := model.ParseRole(user.Role)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Error("Stored role does not parse")
		return nil, fmt.Errorf("%w: stored role of user %s: %v", ErrCorruptRecord, user.ID, err)
	}

	s.limiter.Reset(ctx, email)
	logger.Log.WithField("user_id", user.ID).Info("User logged in")
	return s.issuePair(ctx, user.ID, role)
}

// Register creates a member account with a fresh salt and hash and opens its first session.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, *TokenPair, error) {
	salt, err := s.passwords.GenerateSalt()
	if err != nil {
		return nil, nil, err
	}
	hash, err := s.passwords.Hash(ctx, req.Password, salt)
	if err != nil {
		return nil, nil, err
	}

	user := &model.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        normalizeEmail(req.Email),
		PasswordHash: &hash,
		PasswordSalt: salt,
		Role:         model.RoleMember.String(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, nil, err
		}
		return nil, nil, storageError("create user", err)
	}

	pair, err := s.issuePair(ctx, user.ID, model.RoleMember)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a live refresh token for a new pair, rotating the presented token.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	record, err := s.refresh.Find(ctx, raw)
	if err != nil {
		return nil, err
	}
	if record.Revoked {
		return nil, ErrTokenRevoked
	}
	if !record.UserID.Valid {
		return nil, ErrPrincipalNotFound
	}

	user, err := s.users.GetUserByID(ctx, record.UserID.UUID)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrPrincipalNotFound
		}
		return nil, storageError("load token owner", err)
	}
	role, err := model.ParseRole(user.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrincipalNotFound, err)
	}

	newRaw, _, err := s.refresh.Rotate(ctx, record, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.MintAccess(user.ID, role, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: newRaw}, nil
}

// Logout revokes a refresh token owned by the principal.
func (s *AuthService) Logout(ctx context.Context, raw string, principal *model.Principal) error {
	record, err := s.ownedRecord(ctx, raw, principal)
	if err != nil {
		return err
	}
	if record.Revoked {
		return ErrTokenRevoked
	}
	return s.refresh.Revoke(ctx, record)
}

// LogoutAll revokes every session of the principal.
func (s *AuthService) LogoutAll(ctx context.Context, principal *model.Principal) (int64, error) {
	return s.refresh.RevokeAll(ctx, principal.User.ID)
}

// ChangePassword verifies the current password, stores a new credential and revokes
// every refresh token of the user.
func (s *AuthService) ChangePassword(ctx context.Context, principal *model.Principal, current, next string) error {
	user := principal.User
	if !user.HasCredential() {
		return ErrInvalidCredentials
	}
	ok, err := s.passwords.Verify(ctx, current, *user.PasswordHash, user.PasswordSalt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	salt, err := s.passwords.GenerateSalt()
	if err != nil {
		return err
	}
	hash, err := s.passwords.Hash(ctx, next, salt)
	if err != nil {
		return err
	}
	// The new credential and the revocation commit together, so a failed revoke
	// leaves the old password in place.
	var revoked int64
	err = s.refresh.InTx(ctx, func(tx repository.DBTX) error {
		if err := s.users.UpdatePassword(ctx, tx, user.ID, hash, salt); err != nil {
			if isNoRows(err) {
				return ErrPrincipalNotFound
			}
			return storageError("update password", err)
		}
		n, err := s.refresh.RevokeAllIn(ctx, tx, user.ID)
		revoked = n
		return err
	})
	if err != nil {
		return err
	}
	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "revoked": revoked}).Info("Password changed")
	return nil
}

// Lineage returns the rotation chain of a refresh token owned by the principal.
func (s *AuthService) Lineage(ctx context.Context, raw string, principal *model.Principal) ([]*model.RefreshToken, error) {
	record, err := s.ownedRecord(ctx, raw, principal)
	if err != nil {
		return nil, err
	}
	return s.refresh.Lineage(ctx, record)
}

// DeleteUser revokes the sessions of a user and removes the account in one transaction.
// Revocation runs first because the delete detaches the user's tokens.
func (s *AuthService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.refresh.InTx(ctx, func(tx repository.DBTX) error {
		if _, err := s.refresh.RevokeAllIn(ctx, tx, id); err != nil {
			return err
		}
		if err := s.users.DeleteUser(ctx, tx, id); err != nil {
			if isNoRows(err) {
				return ErrUserNotFound
			}
			return storageError("delete user", err)
		}
		return nil
	})
}

func (s *AuthService) ownedRecord(ctx context.Context, raw string, principal *model.Principal) (*model.RefreshToken, error) {
	record, err := s.refresh.Find(ctx, raw)
	if err != nil {
		return nil, err
	}
	if principal == nil || principal.User == nil || !record.OwnedBy(principal.User.ID) {
		return nil, ErrTokenOwnership
	}
	return record, nil
}

func (s *AuthService) issuePair(ctx context.Context, userID uuid.UUID, role model.Role) (*TokenPair, error) {
	access, err := s.tokens.MintAccess(userID, role, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.refresh.Create(ctx, userID, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
