// Package statesync keeps an append-only, strictly ordered event log per
// channel, with a mutable snapshot and synchronous live subscription. A
// channel identifies one run or one agent; inspection endpoints replay its
// timeline by sequence number.
package statesync

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one immutable entry in a channel's timeline.
type Event struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Seq       uint64    `json:"seq"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Snapshot is the per-channel summary, mutated in place on every publish.
// A channel never published to has the zero snapshot (seq 0, version 0).
type Snapshot struct {
	Channel   string    `json:"channel"`
	Seq       uint64    `json:"seq"`
	Version   uint64    `json:"version"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Handler receives published events synchronously, in publish order.
// A handler must not publish to or query a channel it is subscribed to from
// inside the callback; it may interact with other channels freely.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// channelState owns one channel's timeline. Its mutex is held across
// subscriber notification, which is what keeps delivery on one channel in
// exact publish order; there is no ordering guarantee across channels.
type channelState struct {
	mu     sync.Mutex
	events []Event
	snap   Snapshot
	subs   []*subscription
}

// Service is the in-memory state synchronization service.
type Service struct {
	mu       sync.Mutex
	channels map[string]*channelState
	nextSub  uint64
	clock    func() time.Time
	logger   *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.clock = fn
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates an empty state-sync service.
func NewService(opts ...Option) *Service {
	s := &Service{
		channels: make(map[string]*channelState),
		clock:    time.Now,
		logger:   slog.Default().With("component", "statesync"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) channel(name string) *channelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[name]
	if !ok {
		ch = &channelState{snap: Snapshot{Channel: name}}
		s.channels[name] = ch
	}
	return ch
}

// Publish appends one event to the channel's timeline. Sequence assignment,
// log append, and snapshot update happen atomically before any subscriber is
// notified; subscribers then see the event synchronously, in subscription
// order, before Publish returns.
func (s *Service) Publish(channel, eventType string, payload any, status string) Event {
	now := s.clock()
	ch := s.channel(channel)

	ch.mu.Lock()
	defer ch.mu.Unlock()

	evt := Event{
		ID:        uuid.NewString(),
		Channel:   channel,
		Seq:       ch.snap.Seq + 1,
		Type:      eventType,
		Status:    status,
		Timestamp: now,
		Payload:   payload,
	}
	ch.events = append(ch.events, evt)
	ch.snap.Seq = evt.Seq
	ch.snap.Version++
	ch.snap.Status = status
	ch.snap.UpdatedAt = now

	for _, sub := range ch.subs {
		sub.handler(evt)
	}
	return evt
}

// Snapshot returns the channel's current snapshot, or the zero-value default
// for a channel never published to.
func (s *Service) Snapshot(channel string) Snapshot {
	s.mu.Lock()
	ch, ok := s.channels[channel]
	s.mu.Unlock()
	if !ok {
		return Snapshot{Channel: channel}
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.snap
}

// EventsSince returns all retained events with seq > since, ascending.
// This is the basis for resumable polling and streaming.
func (s *Service) EventsSince(channel string, since uint64) []Event {
	s.mu.Lock()
	ch, ok := s.channels[channel]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	// Events are stored in seq order starting at 1, so slicing suffices.
	if since >= uint64(len(ch.events)) {
		return nil
	}
	out := make([]Event, len(ch.events)-int(since))
	copy(out, ch.events[since:])
	return out
}

// Channels lists every channel seen so far.
func (s *Service) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	return names
}

// Subscribe registers a live handler for future events on the given
// channels and returns an unsubscribe function. Subscribing several channels
// with one handler lets a consumer follow multiple logical streams.
func (s *Service) Subscribe(handler Handler, channels ...string) func() {
	if handler == nil || len(channels) == 0 {
		return func() {}
	}

	s.mu.Lock()
	s.nextSub++
	sub := &subscription{id: s.nextSub, handler: handler}
	s.mu.Unlock()

	names := append([]string(nil), channels...)
	for _, name := range names {
		ch := s.channel(name)
		ch.mu.Lock()
		ch.subs = append(ch.subs, sub)
		ch.mu.Unlock()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, name := range names {
				s.mu.Lock()
				ch, ok := s.channels[name]
				s.mu.Unlock()
				if !ok {
					continue
				}
				ch.mu.Lock()
				for i, candidate := range ch.subs {
					if candidate.id == sub.id {
						ch.subs = append(ch.subs[:i], ch.subs[i+1:]...)
						break
					}
				}
				ch.mu.Unlock()
			}
		})
	}
}
