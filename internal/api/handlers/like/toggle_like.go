package like

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"Fanvault/internal/api/handlers"
	"Fanvault/internal/api/middleware"
	"Fanvault/internal/core/likes"
)

// ToggleLikeHandler handles like toggles
type ToggleLikeHandler struct {
	service likes.Service
}

// NewToggleLikeHandler creates a new toggle like handler
func NewToggleLikeHandler(service likes.Service) *ToggleLikeHandler {
	return &ToggleLikeHandler{
		service: service,
	}
}

// HandleToggle flips the caller's like on a post
// POST /api/likes/{postID}/toggle
//
// Response: { "engaged": bool, "count": int }
func (h *ToggleLikeHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	if postID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "postID is required")
		return
	}

	actorID := middleware.GetUserID(r)
	if actorID == "" {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return
	}

	result, err := h.service.Toggle(r.Context(), actorID, postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, result)
}
