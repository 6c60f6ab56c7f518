// file: service/refresh_store.go

package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"go-trip-api/logger"
	"go-trip-api/model"
	"go-trip-api/repository"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RefreshTokenStore persists hashed refresh tokens and owns their lifecycle:
// Active -> Rotated (revoked, exactly one child) or Active -> Revoked (no child).
// Both end states are terminal.
type RefreshTokenStore struct {
	db     *sql.DB
	repo   repository.ITokenRepository
	tokens *TokenService
	now    Clock
}

// NewRefreshTokenStore creates a RefreshTokenStore over the given pool.
func NewRefreshTokenStore(db *sql.DB, repo repository.ITokenRepository, tokens *TokenService, clock Clock) *RefreshTokenStore {
	return &RefreshTokenStore{
		db:     db,
		repo:   repo,
		tokens: tokens,
		now:    clockOrDefault(clock),
	}
}

// HashRefreshToken returns the storage key of a raw refresh token: its SHA-256 in lowercase hex.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *RefreshTokenStore) newRecord(userID uuid.UUID, ttl time.Duration, parent sql.NullString) (string, *model.RefreshToken, error) {
	raw, err := s.tokens.MintRefresh(userID, ttl)
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	return raw, &model.RefreshToken{
		TokenHash:       HashRefreshToken(raw),
		UserID:          uuid.NullUUID{UUID: userID, Valid: true},
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
		ParentTokenHash: parent,
	}, nil
}

// Create stores a new root record for userID and returns the raw token. The raw value
// is returned exactly once and never persisted.
func (s *RefreshTokenStore) Create(ctx context.Context, userID uuid.UUID, ttl time.Duration) (string, *model.RefreshToken, error) {
	raw, record, err := s.newRecord(userID, ttl, sql.NullString{})
	if err != nil {
		return "", nil, err
	}
	if err := s.repo.Create(ctx, s.db, record); err != nil {
		return "", nil, storageError("create refresh token", err)
	}
	return raw, record, nil
}

// Find looks up the record of a raw token by its hash.
func (s *RefreshTokenStore) Find(ctx context.Context, raw string) (*model.RefreshToken, error) {
	if raw == "" {
		return nil, ErrTokenNotFound
	}
	record, err := s.repo.GetByTokenHash(ctx, s.db, HashRefreshToken(raw))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrTokenNotFound
		}
		return nil, storageError("find refresh token", err)
	}
	return record, nil
}

// Rotate revokes record and issues its single child in one transaction. The parent is
// claimed with a conditional update, so of two concurrent rotations of the same parent
// only one can commit; the other gets ErrTokenRevoked.
func (s *RefreshTokenStore) Rotate(ctx context.Context, record *model.RefreshToken, ttl time.Duration) (string, *model.RefreshToken, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"token_ref": logger.TokenRef(record.TokenHash),
		"user_id":   record.UserID.UUID,
	})

	if record.Revoked {
		log.Warn("Rotation attempted with a revoked refresh token")
		return "", nil, ErrTokenRevoked
	}
	if record.IsExpired(s.now()) {
		return "", nil, ErrTokenExpired
	}
	if !record.UserID.Valid {
		return "", nil, ErrPrincipalNotFound
	}

	raw, child, err := s.newRecord(record.UserID.UUID, ttl, sql.NullString{String: record.TokenHash, Valid: true})
	if err != nil {
		return "", nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, storageError("could not begin transaction", err)
	}
	defer tx.Rollback()

	claimed, err := s.repo.MarkRevoked(ctx, tx, record.TokenHash)
	if err != nil {
		return "", nil, storageError("could not revoke parent token", err)
	}
	if !claimed {
		log.Warn("Refresh token was already rotated or revoked; possible reuse")
		return "", nil, ErrTokenRevoked
	}

	if err := s.repo.Create(ctx, tx, child); err != nil {
		if repository.IsUniqueViolation(err) {
			log.Warn("Parent token already has a child; possible reuse")
			return "", nil, ErrTokenRevoked
		}
		return "", nil, storageError("could not create child token", err)
	}

	if err := tx.Commit(); err != nil {
		return "", nil, storageError("could not commit transaction", err)
	}

	record.Revoked = true
	log.WithField("child_ref", logger.TokenRef(child.TokenHash)).Info("Refresh token rotated")
	return raw, child, nil
}

// Revoke marks record as revoked. Revoking an already revoked record is a no-op.
func (s *RefreshTokenStore) Revoke(ctx context.Context, record *model.RefreshToken) error {
	if _, err := s.repo.MarkRevoked(ctx, s.db, record.TokenHash); err != nil {
		return storageError("revoke refresh token", err)
	}
	record.Revoked = true
	return nil
}

// RevokeAll revokes every active record of userID and returns how many were revoked.
func (s *RefreshTokenStore) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.RevokeAllIn(ctx, s.db, userID)
	if err != nil {
		return 0, err
	}
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "revoked": n}).Info("Revoked all refresh tokens for user")
	return n, nil
}

// RevokeAllIn is RevokeAll on q, typically a transaction opened by InTx.
func (s *RefreshTokenStore) RevokeAllIn(ctx context.Context, q repository.DBTX, userID uuid.UUID) (int64, error) {
	n, err := s.repo.RevokeAllByUserID(ctx, q, userID)
	if err != nil {
		return 0, storageError("revoke all refresh tokens", err)
	}
	return n, nil
}

// InTx runs fn in a transaction on the store's pool. Nothing fn writes through tx is
// kept unless fn returns nil and the commit succeeds.
func (s *RefreshTokenStore) InTx(ctx context.Context, fn func(tx repository.DBTX) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("could not begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageError("could not commit transaction", err)
	}
	return nil
}

// Lineage returns record and its ancestors, newest first.
func (s *RefreshTokenStore) Lineage(ctx context.Context, record *model.RefreshToken) ([]*model.RefreshToken, error) {
	chain, err := s.repo.GetLineage(ctx, s.db, record.TokenHash)
	if err != nil {
		return nil, storageError("load refresh token lineage", err)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("lineage of %s: %w", logger.TokenRef(record.TokenHash), ErrTokenNotFound)
	}
	return chain, nil
}
