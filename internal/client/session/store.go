package session

import (
	"log/slog"
	"sync"
)

type subscriber struct {
	id int
	fn func(Session)
}

// Store is the single owner of the Session. All mutations go through
// Dispatch, which applies Reduce atomically and then notifies subscribers
// synchronously, in dispatch order.
//
// Subscribers may read the store but must not call Dispatch or Begin from
// inside their callback.
type Store struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	state    State
	subs     []subscriber
	nextSub  int
	log      *slog.Logger
}

// NewStore returns a Store holding the initial empty Session.
func NewStore() *Store {
	return &Store{log: slog.Default().With("component", "session")}
}

// Session returns a snapshot of the current session.
func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Session.clone()
}

// Generation returns the current generation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Generation
}

// Dispatch applies a and reports whether it was accepted. Completions issued
// under an older generation are dropped and false is returned.
func (s *Store) Dispatch(a Action) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if !s.state.Accepts(a) {
		gen := s.state.Generation
		s.mu.Unlock()
		s.log.Debug("discarded stale action", "action", a.String(), "issued", a.Generation, "current", gen)
		return false
	}
	s.apply(a)
	return true
}

// Begin marks op as pending and returns the generation the request is issued
// under. Reading the generation and dispatching pending happen atomically.
func (s *Store) Begin(op Op) uint64 {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	gen := s.state.Generation
	s.apply(Pending(op, gen))
	return gen
}

// apply must be called with notifyMu and mu held, always locked in that
// order. It releases mu before notifying so subscribers can read the store.
func (s *Store) apply(a Action) {
	s.state = Reduce(s.state, a)
	snapshot := s.state.Session.clone()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	s.log.Debug("applied action", "action", a.String(), "authenticated", snapshot.IsAuthenticated, "loading", snapshot.IsLoading())
	for _, sub := range subs {
		sub.fn(snapshot.clone())
	}
}

// Subscribe registers fn to be called after every applied action. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}
