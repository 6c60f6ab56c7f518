package router

import (
	_ "go-trip-api/docs"
	"go-trip-api/handler"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// NewRouter registers every route. Nil handlers leave their routes unregistered,
// which keeps /health usable on its own.
func NewRouter(authHandler *handler.AuthHandler, userHandler *handler.UserHandler, gate handler.Authenticator) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	auth := handler.AuthMiddleware(gate)
	admin := func(h http.Handler) http.Handler { return auth(handler.AdminMiddleware(h)) }

	if authHandler != nil {
		// Public
		mux.Handle("POST /register", handler.ErrorHandlingMiddleware(authHandler.Register))
		mux.Handle("POST /login", handler.ErrorHandlingMiddleware(authHandler.Login))
		mux.Handle("POST /api/token/refresh", handler.ErrorHandlingMiddleware(authHandler.Refresh))

		// Authenticated
		mux.Handle("POST /api/logout", auth(handler.ErrorHandlingMiddleware(authHandler.Logout)))
		mux.Handle("POST /api/logout/all", auth(handler.ErrorHandlingMiddleware(authHandler.LogoutAll)))
		mux.Handle("GET /api/users/me", auth(handler.ErrorHandlingMiddleware(authHandler.Me)))
		mux.Handle("PUT /api/users/me/password", auth(handler.ErrorHandlingMiddleware(authHandler.ChangePassword)))
		mux.Handle("POST /api/sessions/lineage", auth(handler.ErrorHandlingMiddleware(authHandler.Lineage)))
	}

	if userHandler != nil {
		mux.Handle("DELETE /api/users/me", auth(handler.ErrorHandlingMiddleware(userHandler.DeleteMe)))
		mux.Handle("GET /api/admin/users", admin(handler.ErrorHandlingMiddleware(userHandler.ListUsers)))
		mux.Handle("PATCH /api/admin/users/{id}/role", admin(handler.ErrorHandlingMiddleware(userHandler.UpdateUserRole)))
		mux.Handle("DELETE /api/admin/users/{id}", admin(handler.ErrorHandlingMiddleware(userHandler.DeleteUser)))
	}

	return mux
}
