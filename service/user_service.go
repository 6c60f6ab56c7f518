package service

import (
	"context"
	"go-trip-api/model"
	"go-trip-api/repository"

	"github.com/google/uuid"
)

// UserService handles user-directory operations exposed to admins.
type UserService struct {
	userRepo repository.IUserRepository
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.IUserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// ListUsers returns every user. Callers must have checked Principal.IsAdmin.
func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.GetAllUsers(ctx)
	if err != nil {
		return nil, storageError("list users", err)
	}
	return users, nil
}

// UpdateUserRole validates the role and calls the repository to update it.
func (s *UserService) UpdateUserRole(ctx context.Context, userID uuid.UUID, newRole string) error {
	// Only roles of the closed set can be assigned.
	role, err := model.ParseRole(newRole)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdateUserRole(ctx, userID, role.String()); err != nil {
		if isNoRows(err) {
			return ErrUserNotFound
		}
		return storageError("update role", err)
	}
	return nil
}
