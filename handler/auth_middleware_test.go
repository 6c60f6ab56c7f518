package handler_test

import (
	"errors"
	"fmt"
	"go-trip-api/handler"
	"go-trip-api/service"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := handler.PrincipalFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		fmt.Fprint(w, p.User.Username)
	})
}

func serve(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("stores the principal", func(t *testing.T) {
		gate := newFakeGate()
		rr := serve(handler.AuthMiddleware(gate)(principalEcho()), "Bearer member")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "traveler", rr.Body.String())
	})

	t.Run("every auth failure is the same 401", func(t *testing.T) {
		var bodies []string
		for _, err := range []error{
			service.ErrMissingBearer,
			service.ErrTokenMalformed,
			service.ErrTokenExpired,
			fmt.Errorf("%w: %w", service.ErrPrincipalNotFound, errors.New("invalid role")),
		} {
			gate := newFakeGate()
			gate.err = err
			rr := serve(handler.AuthMiddleware(gate)(principalEcho()), "Bearer whatever")
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			bodies = append(bodies, rr.Body.String())
		}
		for _, b := range bodies[1:] {
			assert.Equal(t, bodies[0], b)
		}
	})

	t.Run("unverified account is redirected", func(t *testing.T) {
		gate := newFakeGate()
		gate.err = &service.UnverifiedAccountError{Link: "/verify?email=traveler%40example.com"}
		rr := serve(handler.AuthMiddleware(gate)(principalEcho()), "Bearer whatever")
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/verify?email=traveler%40example.com", rr.Header().Get("Location"))
	})

	t.Run("storage failure is not a 401", func(t *testing.T) {
		gate := newFakeGate()
		gate.err = fmt.Errorf("load principal: %w: %w", service.ErrStorageUnavailable, errors.New("timeout"))
		rr := serve(handler.AuthMiddleware(gate)(principalEcho()), "Bearer whatever")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("nil gate fails closed", func(t *testing.T) {
		rr := serve(handler.AuthMiddleware(nil)(principalEcho()), "Bearer member")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestAdminMiddleware(t *testing.T) {
	gate := newFakeGate()
	h := handler.AuthMiddleware(gate)(handler.AdminMiddleware(principalEcho()))

	assert.Equal(t, http.StatusOK, serve(h, "Bearer admin").Code)
	assert.Equal(t, http.StatusForbidden, serve(h, "Bearer member").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)

	// Without AuthMiddleware there is no principal.
	assert.Equal(t, http.StatusForbidden, serve(handler.AdminMiddleware(principalEcho()), "Bearer admin").Code)
}
