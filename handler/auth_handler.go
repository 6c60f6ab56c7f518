// file: handler/auth_handler.go

package handler

import (
	"context"
	"errors"
	"go-trip-api/common"
	"go-trip-api/model"
	"go-trip-api/service"
	"net/http"
)

// IAuthService is the part of service.AuthService the HTTP layer uses.
type IAuthService interface {
	Login(ctx context.Context, email, password string) (*service.TokenPair, error)
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, *service.TokenPair, error)
	Refresh(ctx context.Context, raw string) (*service.TokenPair, error)
	Logout(ctx context.Context, raw string, principal *model.Principal) error
	LogoutAll(ctx context.Context, principal *model.Principal) (int64, error)
	ChangePassword(ctx context.Context, principal *model.Principal, current, next string) error
	Lineage(ctx context.Context, raw string, principal *model.Principal) ([]*model.RefreshToken, error)
}

type AuthHandler struct {
	service IAuthService
}

func NewAuthHandler(s IAuthService) *AuthHandler {
	return &AuthHandler{service: s}
}

// RegisterResponse is the body of a successful registration.
type RegisterResponse struct {
	User *model.User `json:"user"`
	service.TokenPair
}

// Register godoc
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        user body model.RegisterRequest true "Registration details"
// @Success      201  {object}  RegisterResponse
// @Failure      400  {object}  common.AppError
// @Failure      409  {object}  common.AppError
// @Router       /register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	user, pair, err := h.service.Register(r.Context(), req)
	if err != nil {
		return authErrorToAppError(err, "Could not register user")
	}

	common.WriteJSON(w, http.StatusCreated, RegisterResponse{User: user, TokenPair: *pair})
	return nil
}

// Login godoc
// @Summary      Log in with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        credentials body model.LoginRequest true "Login credentials"
// @Success      200  {object}  service.TokenPair
// @Failure      401  {object}  common.AppError "Unknown email or wrong password"
// @Failure      429  {object}  common.AppError
// @Router       /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return authErrorToAppError(err, "Could not log in")
	}

	common.WriteJSON(w, http.StatusOK, pair)
	return nil
}

// Refresh godoc
// @Summary      Exchange a refresh token for a new token pair
// @Description  The presented refresh token is rotated and cannot be used again.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token body model.RefreshRequest true "Refresh token"
// @Success      200  {object}  service.TokenPair
// @Failure      401  {object}  common.AppError "Unknown, expired or revoked refresh token"
// @Router       /api/token/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		return authErrorToAppError(err, "Could not refresh token")
	}

	common.WriteJSON(w, http.StatusOK, pair)
	return nil
}

// Logout godoc
// @Summary      Revoke one refresh token of the caller
// @Tags         auth
// @Accept       json
// @Security     BearerAuth
// @Param        token body model.RefreshRequest true "Refresh token to revoke"
// @Success      204
// @Failure      401  {object}  common.AppError
// @Router       /api/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, unauthorizedMessage, nil)
	}

	var req model.RefreshRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken, principal); err != nil {
		return authErrorToAppError(err, "Could not log out")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// LogoutAll godoc
// @Summary      Revoke every refresh token of the caller
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  common.AppError
// @Router       /api/logout/all [post]
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) *common.AppError {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, unauthorizedMessage, nil)
	}

	if _, err := h.service.LogoutAll(r.Context(), principal); err != nil {
		return authErrorToAppError(err, "Could not log out")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Me godoc
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.User
// @Failure      401  {object}  common.AppError
// @Failure      303  {object}  common.AppError "Email not verified"
// @Router       /api/users/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) *common.AppError {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, unauthorizedMessage, nil)
	}

	common.WriteJSON(w, http.StatusOK, principal.User)
	return nil
}

// ChangePassword godoc
// @Summary      Change the caller's password
// @Description  Every refresh token of the caller is revoked afterwards.
// @Tags         users
// @Accept       json
// @Security     BearerAuth
// @Param        passwords body model.ChangePasswordRequest true "Current and new password"
// @Success      204
// @Failure      400  {object}  common.AppError
// @Failure      403  {object}  common.AppError "Current password is incorrect"
// @Router       /api/users/me/password [put]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, unauthorizedMessage, nil)
	}

	var req model.ChangePasswordRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	err := h.service.ChangePassword(r.Context(), principal, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return common.NewAppError(http.StatusForbidden, "Current password is incorrect", nil)
		}
		return authErrorToAppError(err, "Could not change password")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Lineage godoc
// @Summary      Rotation history of a refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        token body model.RefreshRequest true "Refresh token"
// @Success      200  {array}   model.RefreshToken "Newest first"
// @Failure      401  {object}  common.AppError
// @Router       /api/sessions/lineage [post]
func (h *AuthHandler) Lineage(w http.ResponseWriter, r *http.Request) *common.AppError {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, unauthorizedMessage, nil)
	}

	var req model.RefreshRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	chain, err := h.service.Lineage(r.Context(), req.RefreshToken, principal)
	if err != nil {
		return authErrorToAppError(err, "Could not load session lineage")
	}

	common.WriteJSON(w, http.StatusOK, chain)
	return nil
}
