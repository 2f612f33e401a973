package routes

import (
	"net/http"

	"Fanvault/internal/api/handlers/post"
	"Fanvault/internal/api/middleware"
	"Fanvault/internal/core/posts"

	"github.com/go-chi/chi/v5"
)

// RegisterPostRoutes registers post listing endpoints on the router
func RegisterPostRoutes(r chi.Router, service posts.Service, authMiddleware *middleware.AuthMiddleware, after ...func(http.Handler) http.Handler) {
	listHandler := post.NewListPostsHandler(service)

	// Works for anonymous viewers; auth only feeds the per-actor rate limit key
	r.With(chain(authMiddleware.OptionalAuth, after)...).Get("/api/posts", listHandler.HandleListPosts)
}
