package posts

import (
	"time"
)

// Post is an engagement target. LikeCount and CommentCount are denormalized
// counters owned by the like service and the comment collaborator respectively.
type Post struct {
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
	ID           string     `json:"id" db:"id"`
	AuthorID     string     `json:"authorId" db:"author_id"`
	Title        string     `json:"title" db:"title"`
	Body         string     `json:"body" db:"body"`
	LikeCount    int        `json:"likeCount" db:"like_count"`
	CommentCount int        `json:"commentCount" db:"comment_count"`
}

// Counts holds the live engagement counters of one post
type Counts struct {
	LikeCount    int `json:"likeCount"`
	CommentCount int `json:"commentCount"`
}

// Summary is the slow-changing part of a post that may be served from the
// read cache. It deliberately carries no counters.
type Summary struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
}

// PostView is a listed post with counters overlaid from the database
type PostView struct {
	Summary
	Counts
}

// CountDrift records a post whose stored like counter disagreed with its records
type CountDrift struct {
	PostID string
	Stored int
	Actual int
}

// ToSummary strips the counters from a post
func (p *Post) ToSummary() Summary {
	return Summary{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Title:     p.Title,
		Body:      p.Body,
		CreatedAt: p.CreatedAt,
	}
}
