package toolsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cexll/agentcore/pkg/mcp"
)

// CallOutcome is the structured result of one tool invocation. Failures are
// values, never errors: a failed call is handed back to the model as an
// ordinary failed tool result instead of crashing the run.
type CallOutcome struct {
	OK         bool
	Output     string
	Error      string
	Structured map[string]any
}

// ServiceStatus is the read-only view of one runtime.
type ServiceStatus struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
	Tools  int    `json:"tools"`
}

// Dialer establishes a protocol session for one service config. Swappable
// for tests.
type Dialer func(ctx context.Context, cfg ServiceConfig) (*mcp.Client, error)

// connectFlight is the shared single-flight connection attempt. Concurrent
// callers await the same attempt instead of racing duplicate process spawns.
type connectFlight struct {
	done chan struct{}
	err  error
}

// serviceRuntime is the mutable per-service record. It is exclusively owned
// by the Manager and only touched under the Manager's lock; the client it
// holds is released by whoever clears the reference.
type serviceRuntime struct {
	config      ServiceConfig
	status      Status
	lastError   string
	client      *mcp.Client
	inflight    *connectFlight
	tools       []ToolDescriptor
	refreshedAt time.Time
}

// Manager owns one runtime per configured tool service.
type Manager struct {
	mu       sync.Mutex
	runtimes map[string]*serviceRuntime

	logger           *slog.Logger
	clock            func() time.Time
	dial             Dialer
	includeReasoning bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.clock = fn
		}
	}
}

// WithDialer overrides how protocol sessions are established (tests).
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dial = d
		}
	}
}

// WithReasoningTools opts in to listing reasoning-only tools.
func WithReasoningTools(include bool) Option {
	return func(m *Manager) {
		m.includeReasoning = include
	}
}

// NewManager creates an empty manager; SyncServices installs configurations.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		runtimes: make(map[string]*serviceRuntime),
		logger:   slog.Default().With("component", "toolsvc"),
		clock:    time.Now,
		dial:     dialService,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// dialService spawns the service process and negotiates the protocol
// session. A failed negotiation releases the partially established
// connection before returning.
func dialService(ctx context.Context, cfg ServiceConfig) (*mcp.Client, error) {
	transport, err := mcp.NewProcessTransport(ctx, cfg.Command, mcp.ProcessOptions{
		Args: cfg.Args,
		Env:  cfg.Env,
		Dir:  cfg.Cwd,
	})
	if err != nil {
		return nil, err
	}
	client := mcp.NewClient(mcp.NewRetryTransport(transport, mcp.RetryPolicy{}))
	if err := client.Initialize(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("initialize session: %w", err)
	}
	return client, nil
}

// SyncServices reconciles the runtime map against the supplied configs.
// Ids are normalized and deduplicated first-wins; services no longer present
// are torn down and removed; changed configs reset their runtime to idle;
// services flipped to disabled are torn down and marked disabled.
//
// Connection references are cleared under the lock before the connections
// are closed, so concurrent readers never observe a runtime pointing at a
// closed session.
func (m *Manager) SyncServices(configs []ServiceConfig) {
	desired := make(map[string]ServiceConfig, len(configs))
	order := make([]string, 0, len(configs))
	for _, cfg := range configs {
		id := NormalizeID(cfg.ID)
		if id == "" {
			m.logger.Warn("dropping tool service with empty id", "name", cfg.Name)
			continue
		}
		if _, dup := desired[id]; dup {
			// First wins. Flagged for a future hard validation error.
			m.logger.Warn("dropping tool service with duplicate id", "id", id, "name", cfg.Name)
			continue
		}
		cfg.ID = id
		desired[id] = cfg
		order = append(order, id)
	}

	var stale []*mcp.Client

	m.mu.Lock()
	for id, rt := range m.runtimes {
		if _, keep := desired[id]; keep {
			continue
		}
		if rt.client != nil {
			stale = append(stale, rt.client)
			rt.client = nil
		}
		rt.tools = nil
		delete(m.runtimes, id)
		m.logger.Info("removed tool service", "id", id)
	}
	for _, id := range order {
		cfg := desired[id]
		rt, ok := m.runtimes[id]
		if !ok {
			status := StatusIdle
			if !cfg.Enabled {
				status = StatusDisabled
			}
			m.runtimes[id] = &serviceRuntime{config: cfg, status: status}
			continue
		}
		switch {
		case !cfg.Enabled:
			if rt.client != nil {
				stale = append(stale, rt.client)
				rt.client = nil
			}
			rt.tools = nil
			rt.refreshedAt = time.Time{}
			rt.status = StatusDisabled
			rt.lastError = ""
			rt.config = cfg
		case !rt.config.equal(cfg):
			if rt.client != nil {
				stale = append(stale, rt.client)
				rt.client = nil
			}
			rt.tools = nil
			rt.refreshedAt = time.Time{}
			rt.status = StatusIdle
			rt.lastError = ""
			rt.config = cfg
		}
	}
	m.mu.Unlock()

	for _, client := range stale {
		_ = client.Close()
	}
}

// Close tears down every runtime.
func (m *Manager) Close() {
	m.SyncServices(nil)
}

// ensureConnected returns a ready session for the service, connecting if
// needed. Concurrent callers share a single in-flight attempt.
func (m *Manager) ensureConnected(ctx context.Context, id string) (*mcp.Client, error) {
	for {
		m.mu.Lock()
		rt, ok := m.runtimes[id]
		if !ok {
			m.mu.Unlock()
			return nil, fmt.Errorf("tool service %q is not configured", id)
		}
		if rt.status == StatusDisabled {
			m.mu.Unlock()
			return nil, fmt.Errorf("tool service %q is not enabled", id)
		}
		if rt.client != nil {
			// A runtime in error that still holds a live session recovers by
			// reusing it; only a broken transport clears the reference.
			client := rt.client
			rt.status = StatusReady
			m.mu.Unlock()
			return client, nil
		}
		if rt.inflight != nil {
			flight := rt.inflight
			m.mu.Unlock()
			select {
			case <-flight.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if flight.err != nil {
				return nil, flight.err
			}
			// The shared attempt succeeded; re-read the runtime for the client.
			continue
		}

		flight := &connectFlight{done: make(chan struct{})}
		rt.inflight = flight
		rt.status = StatusConnecting
		cfg := rt.config
		m.mu.Unlock()

		client, err := m.connect(ctx, cfg)
		flight.err = err
		m.finishFlight(id, flight, client)
		close(flight.done)
		if flight.err != nil {
			return nil, flight.err
		}
		return client, nil
	}
}

func (m *Manager) connect(ctx context.Context, cfg ServiceConfig) (*mcp.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()
	client, err := m.dial(dialCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect %q: %w", cfg.ID, err)
	}
	return client, nil
}

// finishFlight publishes the connect attempt's outcome into the runtime.
// If the runtime was removed, disabled, or reconfigured while the attempt
// was in flight, the fresh connection is discarded: a disabled runtime never
// holds a live connection.
func (m *Manager) finishFlight(id string, flight *connectFlight, client *mcp.Client) {
	var discard *mcp.Client

	m.mu.Lock()
	rt, ok := m.runtimes[id]
	if !ok || rt.inflight != flight {
		discard = client
		if flight.err == nil {
			flight.err = fmt.Errorf("tool service %q was reconfigured during connect", id)
		}
	} else {
		rt.inflight = nil
		switch {
		case flight.err != nil:
			rt.status = StatusError
			rt.lastError = flight.err.Error()
		case rt.status == StatusDisabled:
			discard = client
			flight.err = fmt.Errorf("tool service %q is not enabled", id)
		default:
			rt.client = client
			rt.status = StatusReady
			rt.lastError = ""
		}
	}
	m.mu.Unlock()

	if discard != nil {
		_ = discard.Close()
	}
}

// RefreshTools refreshes the discovered tool cache for one service. The
// cache is respected unless force is set or it is older than the fixed
// discovery interval.
func (m *Manager) RefreshTools(ctx context.Context, serviceID string, force bool) ([]ToolDescriptor, error) {
	id := NormalizeID(serviceID)

	m.mu.Lock()
	rt, ok := m.runtimes[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("tool service %q is not configured", id)
	}
	if rt.status == StatusDisabled {
		m.mu.Unlock()
		return nil, fmt.Errorf("tool service %q is not enabled", id)
	}
	if !force && rt.tools != nil && m.clock().Sub(rt.refreshedAt) < toolCacheInterval {
		tools := append([]ToolDescriptor(nil), rt.tools...)
		m.mu.Unlock()
		return tools, nil
	}
	timeout := rt.config.Timeout()
	m.mu.Unlock()

	client, err := m.ensureConnected(ctx, id)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	infos, err := client.ListTools(callCtx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok = m.runtimes[id]
	if !ok {
		return nil, fmt.Errorf("tool service %q is not configured", id)
	}
	if err != nil {
		rt.tools = nil
		rt.refreshedAt = time.Time{}
		rt.status = StatusError
		rt.lastError = err.Error()
		return nil, fmt.Errorf("discover tools for %q: %w", id, err)
	}
	tools := make([]ToolDescriptor, 0, len(infos))
	for _, info := range infos {
		tools = append(tools, newDescriptor(rt.config, info))
	}
	rt.tools = tools
	rt.refreshedAt = m.clock()
	rt.status = StatusReady
	rt.lastError = ""
	return append([]ToolDescriptor(nil), tools...), nil
}

// CallTool invokes one tool on one service. Unknown or disabled services are
// refused immediately, with no connection attempt.
func (m *Manager) CallTool(ctx context.Context, serviceID, toolName string, args map[string]any) CallOutcome {
	id := NormalizeID(serviceID)

	m.mu.Lock()
	rt, ok := m.runtimes[id]
	if !ok {
		m.mu.Unlock()
		return CallOutcome{Error: fmt.Sprintf("tool service %q is not configured", serviceID)}
	}
	if rt.status == StatusDisabled {
		m.mu.Unlock()
		return CallOutcome{Error: fmt.Sprintf("tool service %q is not enabled", serviceID)}
	}
	timeout := rt.config.Timeout()
	m.mu.Unlock()

	client, err := m.ensureConnected(ctx, id)
	if err != nil {
		return CallOutcome{Error: err.Error()}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	res, err := client.CallTool(callCtx, toolName, args)
	cancel()
	if err != nil {
		m.recordCallFailure(id, client, err)
		return CallOutcome{Error: fmt.Sprintf("call %s on %q: %v", toolName, id, err)}
	}

	flattened := res.Flatten()
	if res.IsError {
		if flattened == "" {
			flattened = fmt.Sprintf("tool %s reported an error", toolName)
		}
		return CallOutcome{Error: flattened, Structured: res.StructuredContent}
	}
	return CallOutcome{OK: true, Output: flattened, Structured: res.StructuredContent}
}

// recordCallFailure captures an invocation failure in the runtime. A broken
// transport drops the session reference so the next call reconnects instead
// of crashing; "no longer ready" is a recoverable condition.
func (m *Manager) recordCallFailure(id string, client *mcp.Client, err error) {
	var rpcErr *mcp.Error
	transportBroken := !errors.As(err, &rpcErr)

	var stale *mcp.Client

	m.mu.Lock()
	rt, ok := m.runtimes[id]
	if ok && rt.client == client {
		rt.status = StatusError
		rt.lastError = err.Error()
		if transportBroken {
			stale = rt.client
			rt.client = nil
		}
	}
	m.mu.Unlock()

	if stale != nil {
		_ = stale.Close()
	}
}

// ServiceStatuses aggregates the runtime view of every configured service,
// re-triggering a cache-respecting refresh for enabled ones.
func (m *Manager) ServiceStatuses(ctx context.Context) []ServiceStatus {
	for _, id := range m.enabledIDs() {
		// Best effort: a failed refresh is already captured in the status.
		_, _ = m.RefreshTools(ctx, id, false)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	statuses := make([]ServiceStatus, 0, len(m.runtimes))
	for _, rt := range m.runtimes {
		statuses = append(statuses, ServiceStatus{
			ID:     rt.config.ID,
			Name:   rt.config.Name,
			Status: rt.status,
			Error:  rt.lastError,
			Tools:  len(rt.tools),
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}

// ListTools aggregates the discovered tools of every enabled service after a
// cache-respecting refresh. A runtime not currently ready contributes none.
func (m *Manager) ListTools(ctx context.Context) []ToolDescriptor {
	for _, id := range m.enabledIDs() {
		_, _ = m.RefreshTools(ctx, id, false)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.runtimes))
	for id := range m.runtimes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var tools []ToolDescriptor
	for _, id := range ids {
		rt := m.runtimes[id]
		if rt.status != StatusReady {
			continue
		}
		for _, desc := range rt.tools {
			if !m.includeReasoning && isReasoningTool(desc) {
				continue
			}
			tools = append(tools, desc)
		}
	}
	return tools
}

// ServiceTimeout reports the effective timeout configured for a service.
func (m *Manager) ServiceTimeout(serviceID string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rt, ok := m.runtimes[NormalizeID(serviceID)]; ok {
		return rt.config.Timeout()
	}
	return DefaultTimeout
}

func (m *Manager) enabledIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.runtimes))
	for id, rt := range m.runtimes {
		if rt.status != StatusDisabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
