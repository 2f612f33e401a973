package routes

import (
	"net/http"

	"Fanvault/internal/api/handlers/like"
	"Fanvault/internal/api/middleware"
	"Fanvault/internal/core/likes"

	"github.com/go-chi/chi/v5"
)

// RegisterLikeRoutes registers like endpoints on the router. Both require authentication.
func RegisterLikeRoutes(r chi.Router, service likes.Service, authMiddleware *middleware.AuthMiddleware, after ...func(http.Handler) http.Handler) {
	toggleHandler := like.NewToggleLikeHandler(service)
	stateHandler := like.NewGetStateHandler(service)

	r.With(chain(authMiddleware.RequireAuth, after)...).Post("/api/likes/{postID}/toggle", toggleHandler.HandleToggle)
	r.With(chain(authMiddleware.RequireAuth, after)...).Get("/api/likes/state", stateHandler.HandleGetState)
}

// chain puts the auth middleware ahead of the rest so later middleware can
// read the authenticated actor
func chain(auth func(http.Handler) http.Handler, after []func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	return append([]func(http.Handler) http.Handler{auth}, after...)
}
