package viewstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"Fanvault/internal/client/api"
	"Fanvault/internal/client/broadcast"
)

var (
	// ErrNotAuthenticated is returned before any local change when the view has no signed-in actor
	ErrNotAuthenticated = errors.New("sign in to like posts")

	// ErrIntentNotSupported is returned by ApplyIntent on stores whose kind has no user intent
	ErrIntentNotSupported = errors.New("engagement kind does not accept intents")
)

// Source says why a target's state changed
type Source string

const (
	SourceSeed       Source = "seed"
	SourceOptimistic Source = "optimistic"
	SourceConfirmed  Source = "confirmed"
	SourceRollback   Source = "rollback"
	SourceBroadcast  Source = "broadcast"
)

// TargetState is what a view shows for one target
type TargetState struct {
	Engaged bool `json:"engaged"`
	Count   int  `json:"count"`
}

// Change is passed to OnChange after every state transition
type Change struct {
	Kind     broadcast.Kind
	TargetID string
	Source   Source
	State    TargetState
}

// Toggler sends one toggle to the server. Satisfied by *api.Client.
type Toggler interface {
	Toggle(ctx context.Context, targetID string) (*api.ToggleResult, error)
}

// Publisher fans confirmed outcomes out to sibling views. Satisfied by *broadcast.Bus.
type Publisher interface {
	Publish(msg broadcast.EngagementChanged) error
}

// entry is the per-target bookkeeping behind a TargetState
type entry struct {
	confirmedAt time.Time
	state       TargetState
	// gen increments on every change so a failing intent can tell whether
	// anything touched the target after its optimistic apply
	gen uint64
	// confirmedGen is gen at the last authoritative change
	confirmedGen uint64
}

// Store is the optimistic state of one engagement kind in one view.
// Intents are never serialized; each issues its own request and the last
// response to arrive wins.
type Store struct {
	toggler  Toggler
	bus      Publisher
	onChange func(Change)
	logger   *slog.Logger
	now      func() time.Time
	entries  map[string]*entry
	kind     broadcast.Kind
	actorID  string
	mu       sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for broadcast ordering
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the store logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// OnChange registers the render callback. It runs outside the store lock.
func OnChange(fn func(Change)) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

// NewStore creates a store. toggler may be nil for kinds that only receive
// confirmed values (comment counts); bus may be nil for an isolated view.
func NewStore(kind broadcast.Kind, actorID string, toggler Toggler, bus Publisher, opts ...Option) *Store {
	s := &Store{
		kind:    kind,
		actorID: actorID,
		toggler: toggler,
		bus:     bus,
		logger:  slog.Default(),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind returns the engagement kind this store tracks
func (s *Store) Kind() broadcast.Kind {
	return s.kind
}

// State returns the current state of targetID
func (s *Store) State(targetID string) TargetState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[targetID]; ok {
		return e.state
	}
	return TargetState{}
}

// Snapshot returns a copy of every tracked target
func (s *Store) Snapshot() map[string]TargetState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]TargetState, len(s.entries))
	for id, e := range s.entries {
		out[id] = e.state
	}
	return out
}

// Seed replaces state with a server read. engaged lists targets the actor has
// engaged with; counts holds the authoritative counters.
func (s *Store) Seed(engaged []string, counts map[string]int) {
	s.seed(engaged, counts, true)
}

// Warm fills state from a non-authoritative source such as the local mirror.
// Any later seed, response or broadcast overrides it.
func (s *Store) Warm(engaged []string, counts map[string]int) {
	s.seed(engaged, counts, false)
}

func (s *Store) seed(engaged []string, counts map[string]int, authoritative bool) {
	liked := make(map[string]bool, len(engaged))
	for _, id := range engaged {
		liked[id] = true
	}

	now := s.now()
	var changes []Change

	s.mu.Lock()
	apply := func(id string, st TargetState) {
		e := s.entry(id)
		if !authoritative && !e.confirmedAt.IsZero() {
			return
		}
		e.gen++
		if authoritative {
			e.confirmedAt = now
			e.confirmedGen = e.gen
		}
		if e.state != st {
			e.state = st
			changes = append(changes, Change{Kind: s.kind, TargetID: id, Source: SourceSeed, State: st})
		}
	}
	for id, count := range counts {
		apply(id, TargetState{Engaged: liked[id], Count: max(count, 0)})
	}
	for id := range liked {
		if _, ok := counts[id]; ok {
			continue
		}
		// Liked elsewhere but not on this page: keep whatever count we know
		st := s.entry(id).state
		st.Engaged = true
		apply(id, st)
	}
	if authoritative {
		// engaged is the actor's full set, so anything else is not engaged
		for id, e := range s.entries {
			if liked[id] || !e.state.Engaged {
				continue
			}
			if _, ok := counts[id]; ok {
				continue
			}
			apply(id, TargetState{Count: e.state.Count})
		}
	}
	s.mu.Unlock()

	s.emit(changes...)
}

// ApplyIntent flips the actor's engagement with targetID immediately, sends
// the toggle and then either replaces local state with the server's answer
// or rolls back exactly what it applied. It returns the state left in place.
func (s *Store) ApplyIntent(ctx context.Context, targetID string) (TargetState, error) {
	if s.toggler == nil {
		return s.State(targetID), ErrIntentNotSupported
	}
	if s.actorID == "" {
		return s.State(targetID), ErrNotAuthenticated
	}

	s.mu.Lock()
	e := s.entry(targetID)
	prior := e.state
	optimistic := TargetState{Engaged: !prior.Engaged}
	if optimistic.Engaged {
		optimistic.Count = prior.Count + 1
	} else {
		optimistic.Count = max(prior.Count-1, 0)
	}
	e.state = optimistic
	e.gen++
	appliedGen := e.gen
	confirmedGenAtApply := e.confirmedGen
	s.mu.Unlock()

	s.emit(Change{Kind: s.kind, TargetID: targetID, Source: SourceOptimistic, State: optimistic})

	res, err := s.toggler.Toggle(ctx, targetID)
	if err != nil {
		st := s.rollback(targetID, prior, appliedGen, confirmedGenAtApply)
		s.logger.Info("engagement intent rolled back",
			"kind", s.kind, "target", targetID, "error", err)
		return st, fmt.Errorf("toggle %s: %w", targetID, err)
	}

	return s.Confirm(targetID, res.Engaged, res.Count), nil
}

// rollback undoes one failed intent. If nothing touched the target since the
// optimistic apply, the prior state is restored verbatim. If only other
// optimistic intents followed, this intent's flip is removed from the chain,
// which flips the end state back and moves the count with it. If an
// authoritative value arrived meanwhile it is left alone.
func (s *Store) rollback(targetID string, prior TargetState, appliedGen, confirmedGenAtApply uint64) TargetState {
	s.mu.Lock()
	e := s.entry(targetID)
	switch {
	case e.gen == appliedGen:
		e.state = prior
	case e.confirmedGen != confirmedGenAtApply:
		st := e.state
		s.mu.Unlock()
		return st
	default:
		engaged := !e.state.Engaged
		count := e.state.Count - 1
		if engaged {
			count = e.state.Count + 1
		}
		e.state = TargetState{Engaged: engaged, Count: max(count, 0)}
	}
	e.gen++
	st := e.state
	s.mu.Unlock()

	s.emit(Change{Kind: s.kind, TargetID: targetID, Source: SourceRollback, State: st})
	return st
}

// Confirm replaces local state with an authoritative outcome and publishes it
// to sibling views. The latest call wins regardless of request order.
func (s *Store) Confirm(targetID string, engaged bool, count int) TargetState {
	st := TargetState{Engaged: engaged, Count: max(count, 0)}
	now := s.now()

	s.mu.Lock()
	e := s.entry(targetID)
	e.state = st
	e.gen++
	e.confirmedGen = e.gen
	e.confirmedAt = now
	s.mu.Unlock()

	s.emit(Change{Kind: s.kind, TargetID: targetID, Source: SourceConfirmed, State: st})

	if s.bus != nil && s.actorID != "" {
		err := s.bus.Publish(broadcast.EngagementChanged{
			Kind:      s.kind,
			TargetID:  targetID,
			ActorID:   s.actorID,
			Engaged:   st.Engaged,
			Count:     st.Count,
			EmittedAt: now,
		})
		if err != nil {
			s.logger.Warn("failed to broadcast engagement", "target", targetID, "error", err)
		}
	}
	return st
}

// ApplyBroadcast adopts a confirmed state learned by a sibling view. Messages
// for another actor or kind, and messages older than the last authoritative
// update of the target, are ignored. It reports whether the message was applied.
func (s *Store) ApplyBroadcast(msg broadcast.EngagementChanged) bool {
	if msg.ActorID != s.actorID || msg.Kind != s.kind || msg.Validate() != nil {
		return false
	}

	st := TargetState{Engaged: msg.Engaged, Count: msg.Count}

	s.mu.Lock()
	e := s.entry(msg.TargetID)
	if msg.EmittedAt.Before(e.confirmedAt) {
		s.mu.Unlock()
		return false
	}
	changed := e.state != st
	e.state = st
	e.gen++
	e.confirmedGen = e.gen
	e.confirmedAt = msg.EmittedAt
	s.mu.Unlock()

	if changed {
		s.emit(Change{Kind: s.kind, TargetID: msg.TargetID, Source: SourceBroadcast, State: st})
	}
	return true
}

// entry returns the bookkeeping for id, creating it. Callers hold s.mu.
func (s *Store) entry(id string) *entry {
	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	return e
}

func (s *Store) emit(changes ...Change) {
	if s.onChange == nil {
		return
	}
	for _, c := range changes {
		s.onChange(c)
	}
}

// IsRetryable reports whether a failed intent may succeed if the user tries again
func IsRetryable(err error) bool {
	return api.IsRetryable(err)
}
