package postgres

import (
	"Fanvault/internal/core/likes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"

	uniqueActorPostConstraint = "unique_actor_post"
)

type postgresLikeRepo struct {
	db *sql.DB
}

// NewLikeRepository creates a new PostgreSQL like repository
func NewLikeRepository(db *sql.DB) likes.Repository {
	return &postgresLikeRepo{db: db}
}

// Create inserts a like. A concurrent insert of the same (actor, post) pair
// surfaces as ErrAlreadyLiked through the unique_actor_post constraint.
func (r *postgresLikeRepo) Create(ctx context.Context, like *likes.Like) error {
	query := `
		INSERT INTO likes (actor_id, post_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query, like.ActorID, like.PostID, like.CreatedAt).Scan(&like.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch {
			case pqErr.Code == pqUniqueViolation && pqErr.Constraint == uniqueActorPostConstraint:
				return likes.ErrAlreadyLiked
			case pqErr.Code == pqForeignKeyViolation:
				return likes.ErrTargetNotFound
			}
		}
		return fmt.Errorf("failed to insert like: %w", err)
	}

	return nil
}

// Delete hard-deletes the actor's like on a post
func (r *postgresLikeRepo) Delete(ctx context.Context, actorID, postID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM likes WHERE actor_id = $1 AND post_id = $2`,
		actorID, postID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rowsAffected == 0 {
		return likes.ErrLikeNotFound
	}

	return nil
}

// Exists reports whether the actor currently likes the post
func (r *postgresLikeRepo) Exists(ctx context.Context, actorID, postID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM likes WHERE actor_id = $1 AND post_id = $2)`,
		actorID, postID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return exists, nil
}

// ListPostIDsByActor returns every post the actor likes, newest like first
func (r *postgresLikeRepo) ListPostIDsByActor(ctx context.Context, actorID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT post_id FROM likes WHERE actor_id = $1 ORDER BY created_at DESC`,
		actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list likes by actor: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := []string{}
	for rows.Next() {
		var postID string
		if err := rows.Scan(&postID); err != nil {
			return nil, fmt.Errorf("failed to scan like: %w", err)
		}
		result = append(result, postID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating likes: %w", err)
	}

	return result, nil
}
