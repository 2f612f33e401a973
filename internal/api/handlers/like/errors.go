package like

import (
	"errors"
	"log/slog"
	"net/http"

	"Fanvault/internal/api/handlers"
	"Fanvault/internal/core/likes"
)

// handleServiceError converts service errors to HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, likes.ErrNotAuthenticated):
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
	case errors.Is(err, likes.ErrTargetNotFound):
		handlers.WriteError(w, http.StatusNotFound, "TargetNotFound", "Post not found")
	case likes.IsValidationError(err):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	default:
		slog.Error("like request failed", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to process like")
	}
}
