// file: repository/token_repository.go

package repository

import (
	"context"
	"go-trip-api/logger"
	"go-trip-api/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ITokenRepository defines the contract for refresh token database operations.
type ITokenRepository interface {
	Create(ctx context.Context, q DBTX, token *model.RefreshToken) error
	GetByTokenHash(ctx context.Context, q DBTX, tokenHash string) (*model.RefreshToken, error)
	MarkRevoked(ctx context.Context, q DBTX, tokenHash string) (bool, error)
	RevokeAllByUserID(ctx context.Context, q DBTX, userID uuid.UUID) (int64, error)
	GetLineage(ctx context.Context, q DBTX, tokenHash string) ([]*model.RefreshToken, error)
}

// TokenRepository implements ITokenRepository.
type TokenRepository struct{}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository() *TokenRepository {
	return &TokenRepository{}
}

const tokenColumns = `token_hash, user_id, created_at, expires_at, parent_token_hash, revoked`

// Create inserts a new refresh token record.
func (r *TokenRepository) Create(ctx context.Context, q DBTX, token *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"token_ref":  logger.TokenRef(token.TokenHash),
		"user_id":    token.UserID.UUID,
		"expires_at": token.ExpiresAt,
		"has_parent": token.HasParent(),
	})
	log.Info("Executing query to create a new refresh token")

	query := `INSERT INTO refresh_tokens (` + tokenColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := q.ExecContext(ctx, query,
		token.TokenHash, token.UserID, token.CreatedAt, token.ExpiresAt, token.ParentTokenHash, token.Revoked)
	if err != nil {
		log.WithError(err).Error("Failed to execute create refresh token query")
		return err
	}
	return nil
}

// GetByTokenHash retrieves a refresh token by its hashed value.
func (r *TokenRepository) GetByTokenHash(ctx context.Context, q DBTX, tokenHash string) (*model.RefreshToken, error) {
	log := logger.Log.WithField("token_ref", logger.TokenRef(tokenHash))
	log.Debug("Executing query to get refresh token by hash")

	token := &model.RefreshToken{}
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`
	err := q.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.TokenHash, &token.UserID, &token.CreatedAt, &token.ExpiresAt, &token.ParentTokenHash, &token.Revoked)
	if err != nil {
		return nil, err // sql.ErrNoRows if not found
	}
	return token, nil
}

// MarkRevoked flips revoked to true if it is still false. It reports whether this call
// performed the transition, which makes it usable as an atomic claim.
func (r *TokenRepository) MarkRevoked(ctx context.Context, q DBTX, tokenHash string) (bool, error) {
	log := logger.Log.WithField("token_ref", logger.TokenRef(tokenHash))
	log.Info("Executing query to revoke refresh token")

	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1 AND revoked = FALSE`
	res, err := q.ExecContext(ctx, query, tokenHash)
	if err != nil {
		log.WithError(err).Error("Failed to execute revoke refresh token query")
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeAllByUserID revokes every active refresh token of a user.
// This is used for logging out from all sessions and after a password change.
func (r *TokenRepository) RevokeAllByUserID(ctx context.Context, q DBTX, userID uuid.UUID) (int64, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to revoke all refresh tokens for a user")

	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`
	res, err := q.ExecContext(ctx, query, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute revoke all refresh tokens query")
		return 0, err
	}
	return res.RowsAffected()
}

// GetLineage returns the record for tokenHash followed by its ancestors, newest first.
func (r *TokenRepository) GetLineage(ctx context.Context, q DBTX, tokenHash string) ([]*model.RefreshToken, error) {
	log := logger.Log.WithField("token_ref", logger.TokenRef(tokenHash))
	log.Debug("Executing query to get refresh token lineage")

	query := `
		WITH RECURSIVE lineage AS (
			SELECT ` + tokenColumns + `, 0 AS depth FROM refresh_tokens WHERE token_hash = $1
			UNION ALL
			SELECT t.token_hash, t.user_id, t.created_at, t.expires_at, t.parent_token_hash, t.revoked, l.depth + 1
			FROM refresh_tokens t
			JOIN lineage l ON t.token_hash = l.parent_token_hash
		)
		SELECT ` + tokenColumns + ` FROM lineage ORDER BY depth`

	rows, err := q.QueryContext(ctx, query, tokenHash)
	if err != nil {
		log.WithError(err).Error("Failed to execute lineage query")
		return nil, err
	}
	defer rows.Close()

	var chain []*model.RefreshToken
	for rows.Next() {
		var t model.RefreshToken
		if err := rows.Scan(&t.TokenHash, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.ParentTokenHash, &t.Revoked); err != nil {
			log.WithError(err).Error("Failed to scan refresh token row")
			return nil, err
		}
		chain = append(chain, &t)
	}
	return chain, rows.Err()
}
