package handler

import (
	"context"
	"errors"
	"go-trip-api/common"
	"go-trip-api/model"
	"go-trip-api/service"
	"net/http"

	"github.com/google/uuid"
)

// IUserService covers the admin user operations.
type IUserService interface {
	ListUsers(ctx context.Context) ([]*model.User, error)
	UpdateUserRole(ctx context.Context, userID uuid.UUID, role string) error
}

// IUserRemover deletes a user after revoking their sessions.
type IUserRemover interface {
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type UserHandler struct {
	users   IUserService
	remover IUserRemover
}

func NewUserHandler(users IUserService, remover IUserRemover) *UserHandler {
	return &UserHandler{users: users, remover: remover}
}

// ListUsers godoc
// @Summary      List all users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   model.User
// @Failure      403  {object}  common.AppError
// @Router       /api/admin/users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) *common.AppError {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		return common.NewAppError(http.StatusInternalServerError, "Could not list users", err)
	}
	common.WriteJSON(w, http.StatusOK, users)
	return nil
}

// UpdateUserRole godoc
// @Summary      Change the role of a user
// @Tags         admin
// @Accept       json
// @Security     BearerAuth
// @Param        id   path string true "User ID"
// @Param        role body model.UpdateUserRoleRequest true "New role"
// @Success      204
// @Failure      400  {object}  common.AppError
// @Failure      404  {object}  common.AppError
// @Router       /api/admin/users/{id}/role [patch]
func (h *UserHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := userIDFromPath(r)
	if appErr != nil {
		return appErr
	}

	var req model.UpdateUserRoleRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	if err := h.users.UpdateUserRole(r.Context(), id, req.Role); err != nil {
		if errors.Is(err, model.ErrInvalidRole) {
			return common.NewAppError(http.StatusBadRequest, err.Error(), nil)
		}
		return authErrorToAppError(err, "Could not update role")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// DeleteUser godoc
// @Summary      Delete a user
// @Description  Revokes every refresh token of the user first. Token records are kept for audit.
// @Tags         admin
// @Security     BearerAuth
// @Param        id path string true "User ID"
// @Success      204
// @Failure      404  {object}  common.AppError
// @Router       /api/admin/users/{id} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := userIDFromPath(r)
	if appErr != nil {
		return appErr
	}

	if err := h.remover.DeleteUser(r.Context(), id); err != nil {
		return authErrorToAppError(err, "Could not delete user")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// DeleteMe godoc
// @Summary      Delete the caller's account
// @Description  Revokes every refresh token of the caller, then removes the account.
// @Tags         users
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  common.AppError
// @Router       /api/users/me [delete]
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) *common.AppError {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, unauthorizedMessage, nil)
	}

	if err := h.remover.DeleteUser(r.Context(), principal.User.ID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return common.NewAppError(http.StatusUnauthorized, unauthorizedMessage, err)
		}
		return authErrorToAppError(err, "Could not delete account")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func userIDFromPath(r *http.Request) (uuid.UUID, *common.AppError) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, common.NewAppError(http.StatusBadRequest, "Invalid user ID", err)
	}
	return id, nil
}
