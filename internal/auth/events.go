package auth

import (
	"slices"
	"sync"

	"github.com/chatlog-dashboard/internal/models"
)

// EventType identifies an auth state change
type EventType string

const (
	EventInitialSession   EventType = "INITIAL_SESSION"
	EventSignedIn         EventType = "SIGNED_IN"
	EventSignedOut        EventType = "SIGNED_OUT"
	EventTokenRefreshed   EventType = "TOKEN_REFRESHED"
	EventUserUpdated      EventType = "USER_UPDATED"
	EventPasswordRecovery EventType = "PASSWORD_RECOVERY"
)

// Event is delivered to listeners on every auth state change.
// Session is nil after a sign out or when no session exists.
type Event struct {
	Type    EventType
	Session *models.Session
}

// Listener receives auth events
type Listener func(Event)

// Subscription is the handle returned by Subscribe.
// Events emitted before the subscription is started are queued, so the
// listener always sees INITIAL_SESSION first.
type Subscription struct {
	id       uint64
	hub      *eventHub
	listener Listener
	once     sync.Once

	mu      sync.Mutex
	started bool
	pending []Event
}

// Unsubscribe stops event delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s.id)
	})
}

func (s *Subscription) deliver(event Event) {
	s.mu.Lock()
	if !s.started {
		s.pending = append(s.pending, event)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.listener(event)
}

// start delivers first, then every queued event, and switches to direct delivery
func (s *Subscription) start(first Event) {
	s.listener(first)

	for {
		s.mu.Lock()
		queued := s.pending
		s.pending = nil
		if len(queued) == 0 {
			s.started = true
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		for _, event := range queued {
			s.listener(event)
		}
	}
}

// eventHub keeps the registered subscriptions
type eventHub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[uint64]*Subscription)}
}

// add registers a subscription that queues events until it is started
func (h *eventHub) add(listener Listener) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{id: h.nextID, hub: h, listener: listener}
	h.subs[sub.id] = sub
	return sub
}

func (h *eventHub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// emit calls every listener outside the lock, in subscription order
func (h *eventHub) emit(event Event) {
	h.mu.Lock()
	ids := make([]uint64, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]*Subscription, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, h.subs[id])
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(event)
	}
}
