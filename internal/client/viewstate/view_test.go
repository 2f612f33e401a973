package viewstate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Fanvault/internal/client/api"
	"Fanvault/internal/client/broadcast"
)

type fakeClient struct {
	stateErr    error
	state       *api.State
	toggle      func(targetID string) (*api.ToggleResult, error)
	toggleCalls int
	stateCalls  int
	mu          sync.Mutex
}

func (f *fakeClient) Toggle(ctx context.Context, targetID string) (*api.ToggleResult, error) {
	f.mu.Lock()
	f.toggleCalls++
	f.mu.Unlock()
	return f.toggle(targetID)
}

func (f *fakeClient) State(ctx context.Context, targetIDs []string) (*api.State, error) {
	f.mu.Lock()
	f.stateCalls++
	f.mu.Unlock()
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	return f.state, nil
}

func (f *fakeClient) calls() (toggles, reads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toggleCalls, f.stateCalls
}

type memMirror struct {
	data map[string][]byte
	mu   sync.Mutex
}

func newMemMirror() *memMirror {
	return &memMirror{data: make(map[string][]byte)}
}

func (m *memMirror) Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func (m *memMirror) Load(ctx context.Context, key string, dst interface{}) (bool, error) {
	m.mu.Lock()
	b, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func seededClient(toggle func(string) (*api.ToggleResult, error)) *fakeClient {
	return &fakeClient{
		toggle: toggle,
		state: &api.State{
			LikedTargetIDs: []string{},
			LikeCounts:     map[string]int{"p1": 5, "p2": 1},
			CommentCounts:  map[string]int{"p1": 2, "p2": 0},
		},
	}
}

func TestView_CrossViewConsistency(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shared := broadcast.NewMemoryChannel()
	bus1 := broadcast.NewBus(shared, nil)
	bus2 := broadcast.NewBus(shared, nil)
	require.NoError(t, bus1.Start(ctx))
	require.NoError(t, bus2.Start(ctx))

	client1 := seededClient(func(string) (*api.ToggleResult, error) {
		return &api.ToggleResult{Engaged: true, Count: 6}, nil
	})
	client2 := seededClient(nil)

	v1 := NewView(ViewConfig{ActorID: "user-a", Client: client1, Bus: bus1})
	v2 := NewView(ViewConfig{ActorID: "user-a", Client: client2, Bus: bus2})
	defer v1.Close()
	defer v2.Close()

	require.NoError(t, v1.Open(ctx, []string{"p1", "p2"}))
	require.NoError(t, v2.Open(ctx, []string{"p1", "p2"}))

	st, err := v1.Like(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, TargetState{Engaged: true, Count: 6}, st)

	assert.Equal(t, st, v2.Likes.State("p1"))
	toggles, reads := client2.calls()
	assert.Equal(t, 0, toggles)
	assert.Equal(t, 1, reads, "sibling converged without another read")
}

func TestView_ForeignActorIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shared := broadcast.NewMemoryChannel()
	busA := broadcast.NewBus(shared, nil)
	busB := broadcast.NewBus(shared, nil)
	require.NoError(t, busA.Start(ctx))
	require.NoError(t, busB.Start(ctx))

	clientA := seededClient(func(string) (*api.ToggleResult, error) {
		return &api.ToggleResult{Engaged: true, Count: 6}, nil
	})
	viewA := NewView(ViewConfig{ActorID: "user-a", Client: clientA, Bus: busA})
	viewB := NewView(ViewConfig{ActorID: "user-b", Client: seededClient(nil), Bus: busB})
	require.NoError(t, viewA.Open(ctx, []string{"p1"}))
	require.NoError(t, viewB.Open(ctx, []string{"p1"}))

	_, err := viewA.Like(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, TargetState{Engaged: false, Count: 5}, viewB.Likes.State("p1"))
}

func TestView_CommentCountsPropagate(t *testing.T) {
	bus := broadcast.NewBus(nil, nil)
	feed := NewView(ViewConfig{ActorID: "user-a", Client: seededClient(nil), Bus: bus})
	detail := NewView(ViewConfig{ActorID: "user-a", Client: seededClient(nil), Bus: bus})
	require.NoError(t, feed.Open(context.Background(), []string{"p1"}))
	require.NoError(t, detail.Open(context.Background(), []string{"p1"}))

	// The detail panel learned a new comment count from the comment collaborator
	time.Sleep(time.Millisecond)
	detail.Comments.Confirm("p1", false, 3)

	assert.Equal(t, 3, feed.Comments.State("p1").Count)
}

func TestView_WarmStartFromMirror(t *testing.T) {
	ctx := context.Background()
	mirror := newMemMirror()

	online := seededClient(func(string) (*api.ToggleResult, error) {
		return &api.ToggleResult{Engaged: true, Count: 6}, nil
	})
	first := NewView(ViewConfig{ActorID: "user-a", Client: online, Mirror: mirror})
	require.NoError(t, first.Open(ctx, []string{"p1"}))
	_, err := first.Like(ctx, "p1")
	require.NoError(t, err)

	offline := &fakeClient{stateErr: &api.NetworkError{Op: "GET", Err: errors.New("offline")}}
	second := NewView(ViewConfig{ActorID: "user-a", Client: offline, Mirror: mirror})
	require.NoError(t, second.Open(ctx, []string{"p1"}))
	assert.Equal(t, TargetState{Engaged: true, Count: 6}, second.Likes.State("p1"))
}

func TestView_OpenFailsWithoutWarmStart(t *testing.T) {
	offline := &fakeClient{stateErr: &api.NetworkError{Op: "GET", Err: errors.New("offline")}}
	v := NewView(ViewConfig{ActorID: "user-a", Client: offline, Mirror: newMemMirror()})

	err := v.Open(context.Background(), []string{"p1"})
	assert.True(t, IsRetryable(err))
}

func TestView_SeedReplacesWarmState(t *testing.T) {
	ctx := context.Background()
	mirror := newMemMirror()
	require.NoError(t, mirror.Save(ctx, "view_state_user-a", mirrorState{
		Liked:      []string{"p1"},
		LikeCounts: map[string]int{"p1": 40},
	}, time.Minute))

	v := NewView(ViewConfig{ActorID: "user-a", Client: seededClient(nil), Mirror: mirror})
	require.NoError(t, v.Open(ctx, []string{"p1"}))

	assert.Equal(t, TargetState{Engaged: false, Count: 5}, v.Likes.State("p1"))
}

func TestView_SeedClearsLikesOutsidePage(t *testing.T) {
	ctx := context.Background()
	mirror := newMemMirror()
	require.NoError(t, mirror.Save(ctx, "view_state_user-a", mirrorState{
		Liked:      []string{"p9"},
		LikeCounts: map[string]int{"p9": 3},
	}, time.Minute))

	v := NewView(ViewConfig{ActorID: "user-a", Client: seededClient(nil), Mirror: mirror})
	require.NoError(t, v.Open(ctx, []string{"p1"}))

	assert.Equal(t, TargetState{Engaged: false, Count: 3}, v.Likes.State("p9"))

	var saved mirrorState
	found, err := mirror.Load(ctx, "view_state_user-a", &saved)
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, saved.Liked)
	assert.Equal(t, 3, saved.LikeCounts["p9"])
}

func TestView_RefreshConfirmsMovedCommentCounts(t *testing.T) {
	ctx := context.Background()
	bus := broadcast.NewBus(nil, nil)
	feedClient := seededClient(nil)
	watchClient := seededClient(nil)
	feed := NewView(ViewConfig{ActorID: "user-a", Client: feedClient, Bus: bus})
	watcher := NewView(ViewConfig{ActorID: "user-a", Client: watchClient, Bus: bus})
	require.NoError(t, feed.Open(ctx, []string{"p1", "p2"}))
	require.NoError(t, watcher.Open(ctx, []string{"p1", "p2"}))

	watchClient.mu.Lock()
	watchClient.state = &api.State{
		LikedTargetIDs: []string{},
		LikeCounts:     map[string]int{"p1": 5, "p2": 1},
		CommentCounts:  map[string]int{"p1": 4, "p2": 0},
	}
	watchClient.mu.Unlock()

	time.Sleep(time.Millisecond)
	require.NoError(t, watcher.Refresh(ctx, []string{"p1", "p2"}))

	assert.Equal(t, 4, watcher.Comments.State("p1").Count)
	assert.Equal(t, 4, feed.Comments.State("p1").Count)
	_, reads := feedClient.calls()
	assert.Equal(t, 1, reads)
}
