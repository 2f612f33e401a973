package likes

import (
	"context"
	"log/slog"
)

// LogNotifier records owner notifications in the log. Used when no message
// broker is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// NotifyLiked logs the notification
func (n LogNotifier) NotifyLiked(_ context.Context, ownerID, actorID, postID string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("post liked", "owner", ownerID, "actor", actorID, "post", postID)
	return nil
}
