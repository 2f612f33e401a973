package likes

import (
	"Fanvault/internal/core/posts"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// MaxStateTargets bounds the number of posts a single state read may ask about
const MaxStateTargets = 100

// ListingInvalidator drops cached post listings. Satisfied by posts.Service.
type ListingInvalidator interface {
	InvalidateListings(ctx context.Context)
}

type likeService struct {
	repo     Repository
	postRepo posts.Repository
	notifier Notifier
	listings ListingInvalidator
	logger   *slog.Logger
	now      func() time.Time
}

// NewLikeService creates a new like service.
// notifier and listings may be nil.
func NewLikeService(
	repo Repository,
	postRepo posts.Repository,
	notifier Notifier,
	listings ListingInvalidator,
	logger *slog.Logger,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &likeService{
		repo:     repo,
		postRepo: postRepo,
		notifier: notifier,
		listings: listings,
		logger:   logger,
		now:      time.Now,
	}
}

// Toggle flips the actor's like on a post.
//
// No lock is held between the membership check and the write. Two requests
// that both see "not liked" both try to insert; the loser gets ErrAlreadyLiked
// from the uniqueness constraint and reports the same outcome as the winner.
// The symmetric case on delete is handled through ErrLikeNotFound. Either way
// the count in the response is re-derived from the like records.
func (s *likeService) Toggle(ctx context.Context, actorID, postID string) (*ToggleResult, error) {
	if actorID == "" {
		return nil, ErrNotAuthenticated
	}
	if postID == "" {
		return nil, NewValidationError("postId", "required")
	}

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, posts.ErrNotFound) {
			return nil, s.targetGone(ctx, postID)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	liked, err := s.repo.Exists(ctx, actorID, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing like: %w", err)
	}

	created := false
	if liked {
		err = s.unlike(ctx, actorID, postID)
	} else {
		created, err = s.like(ctx, actorID, postID)
	}
	if err != nil {
		return nil, err
	}

	count, err := s.reconcileCount(ctx, postID)
	if err != nil {
		return nil, err
	}

	// Only the request that performed the insert notifies, so a lost race
	// never produces a second notification.
	if created {
		s.notifyOwner(ctx, post.AuthorID, actorID, postID)
	}

	return &ToggleResult{Engaged: !liked, Count: count}, nil
}

// like inserts the record and bumps the counter. created is false when a
// concurrent request inserted the same record first.
func (s *likeService) like(ctx context.Context, actorID, postID string) (bool, error) {
	err := s.repo.Create(ctx, &Like{
		ActorID:   actorID,
		PostID:    postID,
		CreatedAt: s.now(),
	})
	switch {
	case errors.Is(err, ErrAlreadyLiked):
		s.logger.Info("[LIKE-TOGGLE] insert race absorbed", "actor", actorID, "post", postID)
		return false, nil
	case errors.Is(err, ErrTargetNotFound):
		return false, s.targetGone(ctx, postID)
	case err != nil:
		return false, fmt.Errorf("failed to create like: %w", err)
	}

	if err := s.postRepo.IncrementLikeCount(ctx, postID); err != nil {
		// The record exists; reconcileCount will repair the counter.
		s.logger.Warn("[LIKE-TOGGLE] failed to increment like count", "post", postID, "error", err)
	}
	return true, nil
}

// unlike deletes the record and decrements the counter
func (s *likeService) unlike(ctx context.Context, actorID, postID string) error {
	err := s.repo.Delete(ctx, actorID, postID)
	if errors.Is(err, ErrLikeNotFound) {
		s.logger.Info("[LIKE-TOGGLE] delete race absorbed", "actor", actorID, "post", postID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}

	if err := s.postRepo.DecrementLikeCount(ctx, postID); err != nil {
		s.logger.Warn("[LIKE-TOGGLE] failed to decrement like count", "post", postID, "error", err)
	}
	return nil
}

func (s *likeService) reconcileCount(ctx context.Context, postID string) (int, error) {
	actual, stored, err := s.postRepo.ReconcileLikeCount(ctx, postID)
	if err != nil {
		if errors.Is(err, posts.ErrNotFound) {
			return 0, s.targetGone(ctx, postID)
		}
		return 0, fmt.Errorf("failed to re-read like count: %w", err)
	}
	if actual != stored {
		s.logger.Info("[LIKE-TOGGLE] like count corrected",
			"post", postID,
			"stored", stored,
			"actual", actual)
	}
	return actual, nil
}

// targetGone invalidates cached listings that may still show the post
func (s *likeService) targetGone(ctx context.Context, postID string) error {
	if s.listings != nil {
		s.listings.InvalidateListings(ctx)
	}
	s.logger.Debug("like target missing", "post", postID)
	return ErrTargetNotFound
}

func (s *likeService) notifyOwner(ctx context.Context, ownerID, actorID, postID string) {
	if s.notifier == nil || ownerID == "" || ownerID == actorID {
		return
	}
	if err := s.notifier.NotifyLiked(ctx, ownerID, actorID, postID); err != nil {
		s.logger.Warn("[LIKE-TOGGLE] owner notification failed",
			"owner", ownerID,
			"post", postID,
			"error", err)
	}
}

// GetState returns the actor's liked set and counters for postIDs
func (s *likeService) GetState(ctx context.Context, actorID string, postIDs []string) (*State, error) {
	if actorID == "" {
		return nil, ErrNotAuthenticated
	}
	if len(postIDs) > MaxStateTargets {
		return nil, NewValidationError("targets", fmt.Sprintf("at most %d targets per request", MaxStateTargets))
	}

	liked, err := s.repo.ListPostIDsByActor(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list liked posts: %w", err)
	}
	if liked == nil {
		liked = []string{}
	}

	state := &State{
		LikedTargetIDs: liked,
		LikeCounts:     make(map[string]int, len(postIDs)),
		CommentCounts:  make(map[string]int, len(postIDs)),
	}
	if len(postIDs) == 0 {
		return state, nil
	}

	counts, err := s.postRepo.GetCounts(ctx, postIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load post counts: %w", err)
	}
	for id, c := range counts {
		state.LikeCounts[id] = c.LikeCount
		state.CommentCounts[id] = c.CommentCount
	}
	return state, nil
}
