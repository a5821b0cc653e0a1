// Package hooks implements the interception registry that cross-cutting
// concerns publish into. Dispatch is synchronous and deterministic: handlers
// run in descending priority order on the caller's goroutine, each receiving
// the same mutable event, and a failing handler never interrupts the rest.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cexll/agentcore/pkg/core/events"
)

// Priority bands. Higher values run earlier. Redaction registers at
// PriorityLast so it always observes what every other handler produced.
const (
	PriorityFirst   = 100
	PriorityDefault = 0
	PriorityLast    = -100
)

// failureRingSize bounds the retained handler-failure history.
const failureRingSize = 64

// Handler observes or mutates the event for one hook point. A returned error
// is recorded and does not abort the dispatch.
type Handler func(ctx context.Context, evt *events.Event) error

// Registration binds a handler to a hook point. ID must be unique per point.
type Registration struct {
	Point    events.HookPoint
	ID       string
	Priority int
	Handler  Handler

	order int // registration sequence, breaks priority ties
}

// Failure records one contained handler error.
type Failure struct {
	Point     events.HookPoint
	HandlerID string
	Time      time.Time
	Err       error
}

// Registry holds hook registrations and dispatches events to them.
type Registry struct {
	mu       sync.RWMutex
	byPoint  map[events.HookPoint][]*Registration
	nextSeq  int
	failures []Failure
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byPoint: make(map[events.HookPoint][]*Registration),
		logger:  logger.With("component", "hooks"),
	}
}

// Register adds a handler for a hook point. Registering the same id twice on
// one point is an error; ids are how consumers stay idempotent at startup.
func (r *Registry) Register(point events.HookPoint, id string, priority int, h Handler) error {
	if point == "" {
		return fmt.Errorf("hooks: missing hook point")
	}
	if id == "" {
		return fmt.Errorf("hooks: missing handler id")
	}
	if h == nil {
		return fmt.Errorf("hooks: nil handler for %s/%s", point, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.byPoint[point] {
		if reg.ID == id {
			return fmt.Errorf("hooks: handler %q already registered at %s", id, point)
		}
	}

	r.nextSeq++
	regs := append(r.byPoint[point], &Registration{
		Point:    point,
		ID:       id,
		Priority: priority,
		Handler:  h,
		order:    r.nextSeq,
	})
	// Descending priority; earlier registration wins ties.
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].Priority != regs[j].Priority {
			return regs[i].Priority > regs[j].Priority
		}
		return regs[i].order < regs[j].order
	})
	r.byPoint[point] = regs

	r.logger.Debug("registered hook",
		"point", string(point),
		"id", id,
		"priority", priority)
	return nil
}

// Unregister removes one handler. It reports whether anything was removed.
func (r *Registry) Unregister(point events.HookPoint, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.byPoint[point]
	for i, reg := range regs {
		if reg.ID == id {
			r.byPoint[point] = append(regs[:i], regs[i+1:]...)
			return true
		}
	}
	return false
}

// Dispatch invokes every handler registered for the event's point, in
// descending priority order, passing the same mutable event to each. Handler
// errors and panics are recorded and dispatch continues: these are
// cross-cutting concerns and must never crash a user-facing run.
func (r *Registry) Dispatch(ctx context.Context, evt *events.Event) {
	if evt == nil {
		return
	}
	if err := evt.Validate(); err != nil {
		r.logger.Warn("dropping invalid hook event", "error", err)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.RLock()
	regs := make([]*Registration, len(r.byPoint[evt.Point]))
	copy(regs, r.byPoint[evt.Point])
	r.mu.RUnlock()

	for _, reg := range regs {
		if err := r.invoke(ctx, reg, evt); err != nil {
			r.record(Failure{
				Point:     evt.Point,
				HandlerID: reg.ID,
				Time:      time.Now(),
				Err:       err,
			})
			r.logger.Warn("hook handler error",
				"point", string(evt.Point),
				"id", reg.ID,
				"error", err)
		}
	}
}

func (r *Registry) invoke(ctx context.Context, reg *Registration, evt *events.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hooks: handler panic: %v", p)
		}
	}()
	return reg.Handler(ctx, evt)
}

func (r *Registry) record(f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
	if len(r.failures) > failureRingSize {
		r.failures = r.failures[len(r.failures)-failureRingSize:]
	}
}

// Failures returns the retained handler-failure history, oldest first.
func (r *Registry) Failures() []Failure {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}

// HandlerCount reports how many handlers are registered at a point.
func (r *Registry) HandlerCount(point events.HookPoint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPoint[point])
}
