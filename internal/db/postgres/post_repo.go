package postgres

import (
	"Fanvault/internal/core/posts"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
)

type postgresPostRepo struct {
	db *sql.DB
}

// NewPostRepository creates a new PostgreSQL post repository
func NewPostRepository(db *sql.DB) posts.Repository {
	return &postgresPostRepo{db: db}
}

// Create inserts a post
func (r *postgresPostRepo) Create(ctx context.Context, post *posts.Post) error {
	query := `
		INSERT INTO posts (id, author_id, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, post.ID, post.AuthorID, post.Title, post.Body, post.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return fmt.Errorf("post already exists: %s", post.ID)
		}
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// GetByID retrieves a live post
func (r *postgresPostRepo) GetByID(ctx context.Context, id string) (*posts.Post, error) {
	query := `
		SELECT id, author_id, title, body, like_count, comment_count, created_at, deleted_at
		FROM posts
		WHERE id = $1 AND deleted_at IS NULL
	`

	var post posts.Post
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&post.ID, &post.AuthorID, &post.Title, &post.Body,
		&post.LikeCount, &post.CommentCount, &post.CreatedAt, &post.DeletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, posts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return &post, nil
}

// List returns live posts, newest first
func (r *postgresPostRepo) List(ctx context.Context, limit, offset int) ([]*posts.Post, error) {
	query := `
		SELECT id, author_id, title, body, like_count, comment_count, created_at, deleted_at
		FROM posts
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*posts.Post
	for rows.Next() {
		var post posts.Post
		if err := rows.Scan(
			&post.ID, &post.AuthorID, &post.Title, &post.Body,
			&post.LikeCount, &post.CommentCount, &post.CreatedAt, &post.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		result = append(result, &post)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	return result, nil
}

// GetCounts returns counters for the given live posts
func (r *postgresPostRepo) GetCounts(ctx context.Context, ids []string) (map[string]posts.Counts, error) {
	result := make(map[string]posts.Counts, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, like_count, comment_count FROM posts WHERE id = ANY($1) AND deleted_at IS NULL`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get post counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		var c posts.Counts
		if err := rows.Scan(&id, &c.LikeCount, &c.CommentCount); err != nil {
			return nil, fmt.Errorf("failed to scan post counts: %w", err)
		}
		result[id] = c
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post counts: %w", err)
	}

	return result, nil
}

// IncrementLikeCount adds one to like_count
func (r *postgresPostRepo) IncrementLikeCount(ctx context.Context, id string) error {
	return r.updateLikeCount(ctx, id, `
		UPDATE posts
		SET like_count = like_count + 1
		WHERE id = $1 AND deleted_at IS NULL
	`)
}

// DecrementLikeCount subtracts one from like_count (GREATEST prevents negative counts)
func (r *postgresPostRepo) DecrementLikeCount(ctx context.Context, id string) error {
	return r.updateLikeCount(ctx, id, `
		UPDATE posts
		SET like_count = GREATEST(0, like_count - 1)
		WHERE id = $1 AND deleted_at IS NULL
	`)
}

func (r *postgresPostRepo) updateLikeCount(ctx context.Context, id, query string) error {
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update like count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		return posts.ErrNotFound
	}
	return nil
}

// ReconcileLikeCount recomputes like_count from the likes table and returns
// the true count together with the previous value. The post row is locked
// before counting so the count is taken no earlier than any reconcile that
// held the lock before it.
func (r *postgresPostRepo) ReconcileLikeCount(ctx context.Context, id string) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
			slog.Warn("failed to rollback reconcile", "post", id, "error", rollbackErr)
		}
	}()

	var stored int
	err = tx.QueryRowContext(ctx,
		`SELECT like_count FROM posts WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id,
	).Scan(&stored)
	if err == sql.ErrNoRows {
		return 0, 0, posts.ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to lock post: %w", err)
	}

	// A separate statement, so its snapshot is taken after the lock was granted
	var actual int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*)::int FROM likes WHERE post_id = $1`, id,
	).Scan(&actual); err != nil {
		return 0, 0, fmt.Errorf("failed to count likes: %w", err)
	}

	if actual != stored {
		if _, err := tx.ExecContext(ctx, `UPDATE posts SET like_count = $2 WHERE id = $1`, id, actual); err != nil {
			return 0, 0, fmt.Errorf("failed to reconcile like count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit reconcile: %w", err)
	}
	return actual, stored, nil
}

// ReconcileAllLikeCounts repairs every drifted like_count
func (r *postgresPostRepo) ReconcileAllLikeCounts(ctx context.Context) ([]posts.CountDrift, error) {
	query := `
		WITH actual AS (
			SELECT p.id, p.like_count AS stored, COUNT(l.id)::int AS n
			FROM posts p
			LEFT JOIN likes l ON l.post_id = p.id
			WHERE p.deleted_at IS NULL
			GROUP BY p.id, p.like_count
		)
		UPDATE posts
		SET like_count = actual.n
		FROM actual
		WHERE posts.id = actual.id AND actual.stored <> actual.n
		RETURNING posts.id, actual.stored, actual.n
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile like counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var drifts []posts.CountDrift
	for rows.Next() {
		var d posts.CountDrift
		if err := rows.Scan(&d.PostID, &d.Stored, &d.Actual); err != nil {
			return nil, fmt.Errorf("failed to scan drift: %w", err)
		}
		drifts = append(drifts, d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drifts: %w", err)
	}

	return drifts, nil
}
