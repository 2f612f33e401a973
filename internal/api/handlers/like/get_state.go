package like

import (
	"net/http"
	"strings"

	"Fanvault/internal/api/handlers"
	"Fanvault/internal/api/middleware"
	"Fanvault/internal/core/likes"
)

// GetStateHandler serves the read endpoint used to seed client views
type GetStateHandler struct {
	service likes.Service
}

// NewGetStateHandler creates a new state handler
func NewGetStateHandler(service likes.Service) *GetStateHandler {
	return &GetStateHandler{
		service: service,
	}
}

// HandleGetState returns the caller's liked set and counters
// GET /api/likes/state?targets=a,b
//
// Response: { "likedTargetIds": [...], "likeCounts": {...}, "commentCounts": {...} }
func (h *GetStateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r)
	if actorID == "" {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return
	}

	state, err := h.service.GetState(r.Context(), actorID, parseTargets(r.URL.Query().Get("targets")))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, state)
}

// parseTargets splits a comma separated id list, dropping blanks and duplicates
func parseTargets(raw string) []string {
	if raw == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
