package posts

import "context"

// Service defines the read side of posts used by engagement displays
type Service interface {
	// ListPosts returns a page of posts. The listing comes from the read cache;
	// counters are always read live.
	ListPosts(ctx context.Context, limit, offset int) ([]*PostView, error)

	// GetCounts returns live counters for the given post IDs. Unknown IDs are omitted.
	GetCounts(ctx context.Context, ids []string) (map[string]Counts, error)

	// InvalidateListings drops every cached listing page
	InvalidateListings(ctx context.Context)
}

// Repository defines the data access interface for posts
type Repository interface {
	// Create inserts a post (seeding and tests; post CRUD lives elsewhere)
	Create(ctx context.Context, post *Post) error

	// GetByID retrieves a live post. Returns ErrNotFound for missing or deleted posts.
	GetByID(ctx context.Context, id string) (*Post, error)

	// List returns live posts, newest first
	List(ctx context.Context, limit, offset int) ([]*Post, error)

	// GetCounts returns counters for the given live posts
	GetCounts(ctx context.Context, ids []string) (map[string]Counts, error)

	// IncrementLikeCount adds one to like_count
	IncrementLikeCount(ctx context.Context, id string) error

	// DecrementLikeCount subtracts one from like_count, never going below zero
	DecrementLikeCount(ctx context.Context, id string) error

	// ReconcileLikeCount recomputes like_count from the like records, stores it
	// and returns the true count together with the value that was stored before.
	// Returns ErrNotFound if the post disappeared.
	ReconcileLikeCount(ctx context.Context, id string) (actual int, stored int, err error)

	// ReconcileAllLikeCounts repairs every drifted like_count and reports the repairs
	ReconcileAllLikeCounts(ctx context.Context) ([]CountDrift, error)
}
