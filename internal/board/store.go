package board

import "sync"

// Store serializes actions against one State and notifies subscribers after
// each dispatch.
type Store struct {
	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]func(State))}
}

// Dispatch applies actions in order as a single change. Subscribers see the
// state after the last one.
func (s *Store) Dispatch(actions ...Action) {
	if len(actions) == 0 {
		return
	}
	s.mu.Lock()
	for _, a := range actions {
		a.apply(&s.state)
	}
	snapshot := s.state.clone()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot.clone())
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to run after every dispatch. Callbacks run on the
// dispatching goroutine and must not dispatch themselves.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
