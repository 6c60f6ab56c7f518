package repository

import (
	"context"
	"database/sql"
	"go-trip-api/logger"
	"go-trip-api/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IUserRepository is the user directory the auth subsystem reads from.
type IUserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetAllUsers(ctx context.Context) ([]*model.User, error)
	UpdatePassword(ctx context.Context, q DBTX, id uuid.UUID, hash string, salt []byte) error
	UpdateUserRole(ctx context.Context, id uuid.UUID, role string) error
	DeleteUser(ctx context.Context, q DBTX, id uuid.UUID) error
}

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = `id, username, email, password_hash, password_salt, role, verified, created_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var hash sql.NullString
	err := row.Scan(&user.ID, &user.Username, &user.Email, &hash, &user.PasswordSalt, &user.Role, &user.Verified, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	if hash.Valid {
		user.PasswordHash = &hash.String
	}
	return user, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *model.User) error {
	log := logger.Log.WithFields(logrus.Fields{
		"username": user.Username,
		"role":     user.Role,
	})
	log.Info("Executing query to create a new user")

	query := `INSERT INTO users (username, email, password_hash, password_salt, role, verified)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
	err := r.DB.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.PasswordSalt, user.Role, user.Verified,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		log.WithError(err).Error("Failed to execute create user query")
		return err
	}
	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.DB.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.DB.QueryRowContext(ctx, query, email))
}

// GetAllUsers retrieves all users. For admin use only.
func (r *UserRepository) GetAllUsers(ctx context.Context) ([]*model.User, error) {
	log := logger.Log
	log.Info("Executing query to get all users")

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for all users")
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			log.WithError(err).Error("Failed to scan user row")
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdatePassword replaces the stored credential of a user. q may be a transaction so the
// caller can revoke sessions in the same commit.
func (r *UserRepository) UpdatePassword(ctx context.Context, q DBTX, id uuid.UUID, hash string, salt []byte) error {
	log := logger.Log.WithField("user_id", id)
	log.Info("Executing query to update user password")

	res, err := q.ExecContext(ctx, `UPDATE users SET password_hash = $1, password_salt = $2 WHERE id = $3`, hash, salt, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute update password query")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *UserRepository) UpdateUserRole(ctx context.Context, id uuid.UUID, role string) error {
	log := logger.Log.WithFields(logrus.Fields{"user_id": id, "role": role})
	log.Info("Executing query to update user role")

	res, err := r.DB.ExecContext(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute update role query")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteUser removes a user. Their refresh tokens stay behind with a NULL user_id.
func (r *UserRepository) DeleteUser(ctx context.Context, q DBTX, id uuid.UUID) error {
	log := logger.Log.WithField("user_id", id)
	log.Info("Executing query to delete user")

	res, err := q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute delete user query")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
