package viewstate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Fanvault/internal/client/api"
	"Fanvault/internal/client/broadcast"
)

// DefaultMirrorTTL bounds how stale a warm start may be
const DefaultMirrorTTL = 10 * time.Minute

// StateReader fetches the seed for a view. Satisfied by *api.Client.
type StateReader interface {
	State(ctx context.Context, targetIDs []string) (*api.State, error)
}

// Client is the transport a View needs
type Client interface {
	Toggler
	StateReader
}

// Mirror is the durable warm-start store. Satisfied by *mirror.Mirror.
type Mirror interface {
	Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Load(ctx context.Context, key string, dst interface{}) (bool, error)
}

// Bus is the broadcast surface a View uses. Satisfied by *broadcast.Bus.
type Bus interface {
	Publisher
	Subscribe(actorID string, kind broadcast.Kind, handler broadcast.Handler) func()
}

// ViewConfig wires a View
type ViewConfig struct {
	Client    Client
	Bus       Bus
	Mirror    Mirror
	Logger    *slog.Logger
	OnChange  func(Change)
	Now       func() time.Time
	ActorID   string
	MirrorTTL time.Duration
}

// View is one open screen of the client: a store per engagement kind kept in
// step with sibling views through the bus.
type View struct {
	Likes       *Store
	Comments    *Store
	client      Client
	mirror      Mirror
	logger      *slog.Logger
	actorID     string
	unsubscribe []func()
	mirrorTTL   time.Duration
}

// mirrorState is what a view persists for its next warm start
type mirrorState struct {
	LikeCounts    map[string]int `json:"likeCounts"`
	CommentCounts map[string]int `json:"commentCounts"`
	Liked         []string       `json:"liked"`
}

// NewView builds the stores and subscribes them to the bus
func NewView(cfg ViewConfig) *View {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.MirrorTTL
	if ttl <= 0 {
		ttl = DefaultMirrorTTL
	}

	opts := []Option{WithLogger(logger)}
	if cfg.OnChange != nil {
		opts = append(opts, OnChange(cfg.OnChange))
	}
	if cfg.Now != nil {
		opts = append(opts, WithClock(cfg.Now))
	}

	var publisher Publisher
	if cfg.Bus != nil {
		publisher = cfg.Bus
	}
	var toggler Toggler
	if cfg.Client != nil {
		toggler = cfg.Client
	}

	v := &View{
		Likes:     NewStore(broadcast.KindLike, cfg.ActorID, toggler, publisher, opts...),
		Comments:  NewStore(broadcast.KindCommentCount, cfg.ActorID, nil, publisher, opts...),
		client:    cfg.Client,
		mirror:    cfg.Mirror,
		logger:    logger,
		actorID:   cfg.ActorID,
		mirrorTTL: ttl,
	}

	if cfg.Bus != nil && cfg.ActorID != "" {
		for _, store := range []*Store{v.Likes, v.Comments} {
			store := store
			v.unsubscribe = append(v.unsubscribe, cfg.Bus.Subscribe(cfg.ActorID, store.Kind(), func(msg broadcast.EngagementChanged) {
				store.ApplyBroadcast(msg)
			}))
		}
	}
	return v
}

func (v *View) mirrorKey() string {
	return "view_state_" + v.actorID
}

// Open warm-starts from the mirror, then seeds from the read endpoint. A
// failed read is only an error when there was nothing to warm-start from.
func (v *View) Open(ctx context.Context, targetIDs []string) error {
	warm := v.warmStart(ctx)

	if v.client == nil || v.actorID == "" {
		return nil
	}

	state, err := v.client.State(ctx, targetIDs)
	if err != nil {
		if warm {
			v.logger.Warn("serving mirrored state, seed read failed", "error", err)
			return nil
		}
		return fmt.Errorf("failed to load view state: %w", err)
	}

	v.Likes.Seed(state.LikedTargetIDs, state.LikeCounts)
	v.Comments.Seed(nil, state.CommentCounts)
	v.Persist(ctx)
	return nil
}

// Refresh re-reads targetIDs from the server. Like state is reseeded; comment
// counts that moved are confirmed, which also carries them to sibling views.
func (v *View) Refresh(ctx context.Context, targetIDs []string) error {
	if v.client == nil || v.actorID == "" {
		return nil
	}
	state, err := v.client.State(ctx, targetIDs)
	if err != nil {
		return fmt.Errorf("failed to refresh view state: %w", err)
	}

	v.Likes.Seed(state.LikedTargetIDs, state.LikeCounts)
	for id, count := range state.CommentCounts {
		if v.Comments.State(id).Count != count {
			v.Comments.Confirm(id, false, count)
		}
	}
	v.Persist(ctx)
	return nil
}

func (v *View) warmStart(ctx context.Context) bool {
	if v.mirror == nil || v.actorID == "" {
		return false
	}
	var saved mirrorState
	found, err := v.mirror.Load(ctx, v.mirrorKey(), &saved)
	if err != nil {
		v.logger.Warn("failed to read view mirror", "error", err)
		return false
	}
	if !found {
		return false
	}
	v.Likes.Warm(saved.Liked, saved.LikeCounts)
	v.Comments.Warm(nil, saved.CommentCounts)
	return true
}

// Persist writes the current state to the mirror for the next warm start
func (v *View) Persist(ctx context.Context) {
	if v.mirror == nil || v.actorID == "" {
		return
	}
	likes := v.Likes.Snapshot()
	comments := v.Comments.Snapshot()

	saved := mirrorState{
		LikeCounts:    make(map[string]int, len(likes)),
		CommentCounts: make(map[string]int, len(comments)),
	}
	for id, st := range likes {
		saved.LikeCounts[id] = st.Count
		if st.Engaged {
			saved.Liked = append(saved.Liked, id)
		}
	}
	for id, st := range comments {
		saved.CommentCounts[id] = st.Count
	}

	if err := v.mirror.Save(ctx, v.mirrorKey(), saved, v.mirrorTTL); err != nil {
		v.logger.Warn("failed to write view mirror", "error", err)
	}
}

// Like applies one like intent and persists the outcome
func (v *View) Like(ctx context.Context, targetID string) (TargetState, error) {
	st, err := v.Likes.ApplyIntent(ctx, targetID)
	if err == nil {
		v.Persist(ctx)
	}
	return st, err
}

// Close detaches the view from the bus
func (v *View) Close() {
	for _, unsubscribe := range v.unsubscribe {
		unsubscribe()
	}
	v.unsubscribe = nil
}
