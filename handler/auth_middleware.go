package handler

import (
	"context"
	"go-trip-api/common"
	"go-trip-api/model"
	"net/http"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// Authenticator resolves the principal of a request from its Authorization header.
type Authenticator interface {
	Authenticate(ctx context.Context, authorizationHeader string) (*model.Principal, error)
}

// AuthMiddleware guards next with the auth gate and stores the resolved principal in the
// request context. Any gate failure short-circuits the request.
func AuthMiddleware(gate Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate == nil {
				common.NewAppError(http.StatusUnauthorized, unauthorizedMessage, nil).Send(w)
				return
			}

			principal, err := gate.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				authErrorToAppError(err, "Could not authenticate request").Send(w)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminMiddleware only lets principals with the admin role through. It must run after AuthMiddleware.
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok || !principal.IsAdmin() {
			err := common.NewAppError(http.StatusForbidden, "Access denied. Admin privileges required.", nil)
			err.Send(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// PrincipalFromContext returns the principal stored by AuthMiddleware.
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(*model.Principal)
	return p, ok && p != nil && p.User != nil
}
