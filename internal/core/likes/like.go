package likes

import (
	"time"
)

// Like is one actor's endorsement of one post. At most one exists per
// (ActorID, PostID); it is created or deleted, never updated.
type Like struct {
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	ActorID   string    `json:"actorId" db:"actor_id"`
	PostID    string    `json:"postId" db:"post_id"`
	ID        int64     `json:"id" db:"id"`
}

// ToggleResult is the authoritative outcome of a toggle. Count is always
// re-derived from storage, never computed in memory.
type ToggleResult struct {
	Engaged bool `json:"engaged"`
	Count   int  `json:"count"`
}

// State seeds a client view: every post the actor likes plus live counters
// for the requested page of posts.
type State struct {
	LikeCounts     map[string]int `json:"likeCounts"`
	CommentCounts  map[string]int `json:"commentCounts"`
	LikedTargetIDs []string       `json:"likedTargetIds"`
}
