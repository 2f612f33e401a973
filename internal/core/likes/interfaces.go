package likes

import "context"

// Service defines the business logic interface for likes
type Service interface {
	// Toggle flips the actor's like on a post and returns the authoritative state.
	// Safe under concurrent and duplicate calls: losing an insert race or a delete
	// race is reported as success with the re-read count.
	Toggle(ctx context.Context, actorID, postID string) (*ToggleResult, error)

	// GetState returns the actor's liked set plus counters for postIDs
	GetState(ctx context.Context, actorID string, postIDs []string) (*State, error)
}

// Repository defines the data access interface for like records
type Repository interface {
	// Create inserts a like. Returns ErrAlreadyLiked on a uniqueness violation.
	Create(ctx context.Context, like *Like) error

	// Delete removes the actor's like on a post. Returns ErrLikeNotFound if no row was removed.
	Delete(ctx context.Context, actorID, postID string) error

	// Exists reports whether the actor currently likes the post
	Exists(ctx context.Context, actorID, postID string) (bool, error)

	// ListPostIDsByActor returns every post the actor likes
	ListPostIDsByActor(ctx context.Context, actorID string) ([]string, error)
}

// Notifier tells a post's owner that someone liked it
type Notifier interface {
	NotifyLiked(ctx context.Context, ownerID, actorID, postID string) error
}
