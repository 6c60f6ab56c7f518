package handler

import (
	"errors"
	"go-trip-api/common"
	"go-trip-api/repository"
	"go-trip-api/service"
	"net/http"
)

const unauthorizedMessage = "Invalid credentials or token"

func ErrorHandlingMiddleware(next func(http.ResponseWriter, *http.Request) *common.AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := next(w, r); err != nil {
			err.Send(w)
		}
	}
}

// authErrorToAppError maps service errors onto HTTP responses. All authentication
// failures share one message so responses do not reveal which check failed.
func authErrorToAppError(err error, internalMessage string) *common.AppError {
	var unverified *service.UnverifiedAccountError
	switch {
	case errors.As(err, &unverified):
		return common.NewRedirectError("Email address not verified", unverified.Link, err)
	case service.IsUnauthorized(err):
		return common.NewAppError(http.StatusUnauthorized, unauthorizedMessage, err)
	case errors.Is(err, service.ErrTooManyAttempts):
		return common.NewAppError(http.StatusTooManyRequests, "Too many login attempts, try again later", err)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return common.NewAppError(http.StatusConflict, "Email already registered", nil)
	case errors.Is(err, service.ErrUserNotFound):
		return common.NewAppError(http.StatusNotFound, "User not found", nil)
	default:
		return common.NewAppError(http.StatusInternalServerError, internalMessage, err)
	}
}
