// Package connectivity supplies the "device is online" signal the dispatch
// gate consults and the "came back online" event the wake coordinator
// listens to.
package connectivity

import (
	"sync"
	"sync/atomic"
)

// Checker reports the last known connectivity state. The answer may be
// stale; callers must tolerate a positive signal that turns out wrong.
type Checker interface {
	Online() bool
}

// Source delivers connectivity transitions. The returned cancel function
// unsubscribes and is safe to call more than once.
type Source interface {
	Subscribe(fn func(online bool)) (cancel func())
}

// subscribers is a set of callbacks keyed by registration order.
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(bool)
}

func (s *subscribers) add(fn func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(bool))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) notify(online bool) {
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// Static is a manually driven Checker and Source.
type Static struct {
	online atomic.Bool
	subs   subscribers
}

// NewStatic creates a Static with the given initial state.
func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

// Online implements Checker.
func (s *Static) Online() bool {
	return s.online.Load()
}

// Set changes the state. Subscribers are notified only on a transition.
func (s *Static) Set(online bool) {
	if s.online.Swap(online) != online {
		s.subs.notify(online)
	}
}

// Subscribe implements Source.
func (s *Static) Subscribe(fn func(online bool)) func() {
	return s.subs.add(fn)
}
