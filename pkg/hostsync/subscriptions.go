package hostsync

import "sort"

// SubscriptionSet tracks which host events the synchronizer is listening for.
// Each event has at most one listener. A one-shot listener is removed by the
// first Fire; later fires of the same event find nothing armed.
type SubscriptionSet struct {
	listeners map[Event]bool // value: one-shot
}

// NewSubscriptionSet creates an empty set.
func NewSubscriptionSet() *SubscriptionSet {
	return &SubscriptionSet{listeners: make(map[Event]bool)}
}

// Add arms a listener for ev. It returns false if one was already armed.
func (s *SubscriptionSet) Add(ev Event, oneShot bool) bool {
	if _, ok := s.listeners[ev]; ok {
		return false
	}
	s.listeners[ev] = oneShot
	return true
}

// Remove disarms the listener for ev. It returns false if none was armed.
func (s *SubscriptionSet) Remove(ev Event) bool {
	if _, ok := s.listeners[ev]; !ok {
		return false
	}
	delete(s.listeners, ev)
	return true
}

// Has reports whether a listener for ev is armed.
func (s *SubscriptionSet) Has(ev Event) bool {
	_, ok := s.listeners[ev]
	return ok
}

// Fire reports whether ev should be handled, disarming it if it is one-shot.
func (s *SubscriptionSet) Fire(ev Event) bool {
	oneShot, ok := s.listeners[ev]
	if !ok {
		return false
	}
	if oneShot {
		delete(s.listeners, ev)
	}
	return true
}

// Armed returns the armed events, sorted.
func (s *SubscriptionSet) Armed() []Event {
	out := make([]Event, 0, len(s.listeners))
	for ev := range s.listeners {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
