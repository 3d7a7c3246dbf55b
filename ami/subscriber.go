package ami

import (
	"sync"
)

// Subscriber receives unsolicited events and the client's terminal
// lifecycle signal. After OnError or OnCompleted, a subscriber is removed
// and never signaled again.
type Subscriber interface {
	OnNext(msg Message)
	OnError(err error)
	OnCompleted()
}

// subscriberHandle is the token returned by Subscribe. The set is keyed by
// the Subscriber value itself, so subscribing the same observer twice
// returns the same handle (see subscriberSet.Add).
type subscriberHandle struct{}

// subscriberSet is a concurrent set of subscribers. DispatchNext delivers
// msg to every subscriber present at the moment of the call (snapshot
// iteration; subscribers added mid-dispatch may miss that message).
// DispatchTerminal delivers the matching terminal signal to everyone, then
// empties the set.
type subscriberSet struct {
	mu      sync.Mutex
	byOwner map[Subscriber]*subscriberHandle
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{
		byOwner: make(map[Subscriber]*subscriberHandle),
	}
}

// Add registers sub, returning its handle. Adding the same Subscriber
// value twice is idempotent: the first handle is returned again.
func (s *subscriberSet) Add(sub Subscriber) *subscriberHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.byOwner[sub]; ok {
		return h
	}
	h := &subscriberHandle{}
	s.byOwner[sub] = h
	return h
}

// Remove unregisters sub.
func (s *subscriberSet) Remove(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byOwner, sub)
}

// snapshot returns the current subscribers without holding the lock
// during dispatch.
func (s *subscriberSet) snapshot() []Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]Subscriber, 0, len(s.byOwner))
	for sub := range s.byOwner {
		subs = append(subs, sub)
	}
	return subs
}

// DispatchNext delivers msg to every subscriber present at call time.
func (s *subscriberSet) DispatchNext(msg Message) {
	for _, sub := range s.snapshot() {
		sub.OnNext(msg)
	}
}

// DispatchTerminal delivers OnError(err) if err is non-nil, else
// OnCompleted(), to every subscriber, then empties the set.
func (s *subscriberSet) DispatchTerminal(err error) {
	s.mu.Lock()
	subs := make([]Subscriber, 0, len(s.byOwner))
	for sub := range s.byOwner {
		subs = append(subs, sub)
	}
	s.byOwner = make(map[Subscriber]*subscriberHandle)
	s.mu.Unlock()

	for _, sub := range subs {
		if err != nil {
			sub.OnError(err)
		} else {
			sub.OnCompleted()
		}
	}
}
