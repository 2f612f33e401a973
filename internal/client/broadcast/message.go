package broadcast

import (
	"errors"
	"fmt"
	"time"
)

// Kind names the engagement a message is about
type Kind string

const (
	KindLike         Kind = "like"
	KindCommentCount Kind = "comment_count"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k == KindLike || k == KindCommentCount
}

// ErrInvalidMessage is wrapped by every Validate failure
var ErrInvalidMessage = errors.New("invalid engagement message")

// EngagementChanged announces a confirmed engagement state. It carries the
// absolute state, never a delta, so receivers may apply it unconditionally.
type EngagementChanged struct {
	EmittedAt time.Time `json:"emittedAt"`
	Kind      Kind      `json:"kind"`
	TargetID  string    `json:"targetId"`
	ActorID   string    `json:"actorId"`
	Engaged   bool      `json:"engaged"`
	Count     int       `json:"count"`
}

// Validate rejects messages that must not reach a subscriber
func (m EngagementChanged) Validate() error {
	switch {
	case !m.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	case m.TargetID == "":
		return fmt.Errorf("%w: missing targetId", ErrInvalidMessage)
	case m.ActorID == "":
		return fmt.Errorf("%w: missing actorId", ErrInvalidMessage)
	case m.Count < 0:
		return fmt.Errorf("%w: negative count %d", ErrInvalidMessage, m.Count)
	case m.EmittedAt.IsZero():
		return fmt.Errorf("%w: missing emittedAt", ErrInvalidMessage)
	}
	return nil
}

// envelope is what travels over a cross-view Channel. Origin identifies the
// writing bus so it can ignore its own echo.
type envelope struct {
	Origin  string            `json:"origin"`
	Message EngagementChanged `json:"message"`
}
