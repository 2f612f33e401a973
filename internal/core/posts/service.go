package posts

import (
	"Fanvault/internal/core/readcache"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

const (
	// DefaultListTTL is how long a listing page stays cached
	DefaultListTTL = 3 * time.Minute

	defaultLimit = 20
	maxLimit     = 100
)

var listingKeys = regexp.MustCompile(`^posts_`)

type postService struct {
	repo    Repository
	cache   *readcache.Cache
	logger  *slog.Logger
	listTTL time.Duration
}

// NewPostService creates a new post service. cache may be nil, in which case
// every listing is read from the repository.
func NewPostService(repo Repository, cache *readcache.Cache, listTTL time.Duration, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if listTTL <= 0 {
		listTTL = DefaultListTTL
	}
	return &postService{
		repo:    repo,
		cache:   cache,
		listTTL: listTTL,
		logger:  logger,
	}
}

// ListPosts returns a page of posts with live counters
func (s *postService) ListPosts(ctx context.Context, limit, offset int) ([]*PostView, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		return nil, NewValidationError("limit", fmt.Sprintf("must be at most %d", maxLimit))
	}
	if offset < 0 {
		return nil, NewValidationError("offset", "must not be negative")
	}

	summaries, err := s.listSummaries(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return []*PostView{}, nil
	}

	ids := make([]string, len(summaries))
	for i, sum := range summaries {
		ids[i] = sum.ID
	}

	counts, err := s.repo.GetCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load post counts: %w", err)
	}

	views := make([]*PostView, 0, len(summaries))
	for _, sum := range summaries {
		c, ok := counts[sum.ID]
		if !ok {
			// Deleted since the page was cached
			continue
		}
		views = append(views, &PostView{Summary: sum, Counts: c})
	}
	return views, nil
}

func (s *postService) listSummaries(ctx context.Context, limit, offset int) ([]Summary, error) {
	fetch := func(ctx context.Context) ([]Summary, error) {
		rows, err := s.repo.List(ctx, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list posts: %w", err)
		}
		out := make([]Summary, len(rows))
		for i, p := range rows {
			out[i] = p.ToSummary()
		}
		return out, nil
	}

	if s.cache == nil {
		return fetch(ctx)
	}
	key := fmt.Sprintf("posts_%d_%d", offset, limit)
	return readcache.GetOrFetch(ctx, s.cache, key, s.listTTL, fetch)
}

// GetCounts returns live counters for the given posts
func (s *postService) GetCounts(ctx context.Context, ids []string) (map[string]Counts, error) {
	if len(ids) == 0 {
		return map[string]Counts{}, nil
	}
	counts, err := s.repo.GetCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load post counts: %w", err)
	}
	return counts, nil
}

// InvalidateListings drops all cached listing pages
func (s *postService) InvalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.InvalidatePattern(ctx, listingKeys); err != nil {
		s.logger.Warn("failed to invalidate post listings", "error", err)
	}
}
