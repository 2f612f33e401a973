package post

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"Fanvault/internal/api/handlers"
	"Fanvault/internal/core/posts"
)

// ListPostsHandler serves the cached post listing
type ListPostsHandler struct {
	service posts.Service
}

// NewListPostsHandler creates a new list posts handler
func NewListPostsHandler(service posts.Service) *ListPostsHandler {
	return &ListPostsHandler{
		service: service,
	}
}

// HandleListPosts returns one page of posts with live counters
// GET /api/posts?limit=20&offset=0
func (h *ListPostsHandler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "limit must be an integer")
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "offset must be an integer")
		return
	}

	views, err := h.service.ListPosts(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if views == nil {
		views = []*posts.PostView{}
	}

	handlers.WriteJSON(w, map[string]interface{}{
		"posts": views,
	})
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// handleServiceError maps service errors to HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case posts.IsValidationError(err):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	case errors.Is(err, posts.ErrNotFound):
		handlers.WriteError(w, http.StatusNotFound, "NotFound", "Post not found")
	default:
		slog.Error("post listing failed", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to list posts")
	}
}
