// Package lifecycle coordinates startup, shutdown, and health of the
// runtime's long-lived services. Unlike the contained failures elsewhere in
// this layer, dependency-lifecycle failures propagate as hard errors: a
// broken startup or shutdown sequence is fatal to the whole process.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Service is one managed long-lived service. Stop and Health are optional.
type Service struct {
	ID     string
	Start  func(ctx context.Context) error
	Stop   func(ctx context.Context) error
	Health func(ctx context.Context) error
}

// DependencyError names the service whose start or stop hook failed.
type DependencyError struct {
	ServiceID string
	Op        string // "start" or "stop"
	Err       error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("lifecycle: %s %s: %v", e.Op, e.ServiceID, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// HealthRecord is the outcome of one service's health probe.
type HealthRecord struct {
	ID      string `json:"id"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Registry holds registered services and drives their lifecycle.
type Registry struct {
	mu       sync.Mutex
	services []Service
	ids      map[string]struct{}
	started  []string // ids in successful start order
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		ids:    make(map[string]struct{}),
		logger: logger.With("component", "lifecycle"),
	}
}

// Register adds a service. Duplicate or empty ids are rejected; a service
// without a start hook is rejected too since it could never participate in
// the start sequence.
func (r *Registry) Register(svc Service) error {
	if svc.ID == "" {
		return fmt.Errorf("lifecycle: empty service id")
	}
	if svc.Start == nil {
		return fmt.Errorf("lifecycle: service %q has no start hook", svc.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.ids[svc.ID]; dup {
		return fmt.Errorf("lifecycle: service %q already registered", svc.ID)
	}
	r.ids[svc.ID] = struct{}{}
	r.services = append(r.services, svc)
	return nil
}

// StartAll starts every registered service in registration order, recording
// each successfully started id immediately. The first failure aborts the
// loop and is returned as a dependency failure naming the service; services
// started before it remain marked started and are not rolled back.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	services := make([]Service, len(r.services))
	copy(services, r.services)
	r.mu.Unlock()

	for _, svc := range services {
		r.logger.Info("starting service", "id", svc.ID)
		if err := callHook(ctx, svc.Start); err != nil {
			r.logger.Error("service failed to start", "id", svc.ID, "error", err)
			return &DependencyError{ServiceID: svc.ID, Op: "start", Err: err}
		}
		r.mu.Lock()
		r.started = append(r.started, svc.ID)
		r.mu.Unlock()
	}
	return nil
}

// StopAll stops previously started services in strict reverse start order,
// skipping services without a stop hook. The first stop failure aborts the
// remaining sequence and is returned as a dependency failure.
//
// TODO(lifecycle): continuing past a failed stop would avoid leaking the
// remaining services' resources; confirm before changing the contract.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	started := make([]string, len(r.started))
	copy(started, r.started)
	byID := make(map[string]Service, len(r.services))
	for _, svc := range r.services {
		byID[svc.ID] = svc
	}
	r.mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		svc := byID[started[i]]
		if svc.Stop == nil {
			r.unmarkStarted(svc.ID)
			continue
		}
		r.logger.Info("stopping service", "id", svc.ID)
		if err := callHook(ctx, svc.Stop); err != nil {
			r.logger.Error("service failed to stop", "id", svc.ID, "error", err)
			return &DependencyError{ServiceID: svc.ID, Op: "stop", Err: err}
		}
		r.unmarkStarted(svc.ID)
	}
	return nil
}

// Health probes every registered service independently. A panicking or
// failing probe yields a failed record for that service only; the sweep
// always completes.
func (r *Registry) Health(ctx context.Context) []HealthRecord {
	r.mu.Lock()
	services := make([]Service, len(r.services))
	copy(services, r.services)
	r.mu.Unlock()

	records := make([]HealthRecord, 0, len(services))
	for _, svc := range services {
		rec := HealthRecord{ID: svc.ID, Healthy: true}
		if svc.Health != nil {
			if err := callHook(ctx, svc.Health); err != nil {
				rec.Healthy = false
				rec.Error = err.Error()
			}
		}
		records = append(records, rec)
	}
	return records
}

// Started returns the ids currently marked started, in start order.
func (r *Registry) Started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.started))
	copy(out, r.started)
	return out
}

func (r *Registry) unmarkStarted(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.started) - 1; i >= 0; i-- {
		if r.started[i] == id {
			r.started = append(r.started[:i], r.started[i+1:]...)
			return
		}
	}
}

// callHook runs one lifecycle hook, converting a panic into an error so a
// misbehaving service is reported like any other failure.
func callHook(ctx context.Context, hook func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return hook(ctx)
}
