// Package runtime is the composition root for the services layer. It
// constructs every component explicitly and injects them into one Runtime
// value with a defined init/teardown sequence, so isolated instances can
// coexist; there are no package-level singletons.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/cexll/agentcore/pkg/config"
	"github.com/cexll/agentcore/pkg/hooks"
	"github.com/cexll/agentcore/pkg/lifecycle"
	"github.com/cexll/agentcore/pkg/obs"
	"github.com/cexll/agentcore/pkg/redact"
	"github.com/cexll/agentcore/pkg/runs"
	"github.com/cexll/agentcore/pkg/security"
	"github.com/cexll/agentcore/pkg/statesync"
	"github.com/cexll/agentcore/pkg/tool"
	"github.com/cexll/agentcore/pkg/toolsvc"
)

// Options configure a Runtime.
type Options struct {
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// Meter enables OpenTelemetry mirroring of the counters when set.
	Meter metric.Meter
	// WorkspaceRoot is the sandbox boundary for filesystem-capable tools.
	WorkspaceRoot string
	// ServicesFile, when set, is loaded at start and hot-reloaded on change.
	ServicesFile string
	// Services are static tool-service configs applied at start, in addition
	// to (and before) anything from ServicesFile.
	Services []toolsvc.ServiceConfig
	// Secrets seeds the redactor's literal set.
	Secrets []string
	// IncludeReasoningTools opts in to listing reasoning-only tools.
	IncludeReasoningTools bool
	// ManagerOptions are extra tool-service manager options (tests inject a
	// dialer here).
	ManagerOptions []toolsvc.Option
}

// Runtime wires the services layer together.
type Runtime struct {
	logger *slog.Logger

	Hooks     *hooks.Registry
	Manager   *toolsvc.Manager
	Adapter   *tool.Adapter
	State     *statesync.Service
	Lifecycle *lifecycle.Registry
	Observer  *obs.Observer
	Redactor  *redact.Redactor
	Runs      *runs.Store

	staticServices []toolsvc.ServiceConfig
	servicesFile   string
	watcher        *config.Watcher
}

// New constructs and wires a Runtime. Hook consumers are registered here:
// observability at default priority, redaction at the lowest priority on
// every point it shares, so masking always runs after counting.
func New(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var workspace *security.Workspace
	if opts.WorkspaceRoot != "" {
		var err error
		workspace, err = security.NewWorkspace(opts.WorkspaceRoot)
		if err != nil {
			return nil, err
		}
	}

	registry := hooks.NewRegistry(logger)
	managerOpts := append([]toolsvc.Option{
		toolsvc.WithLogger(logger),
		toolsvc.WithReasoningTools(opts.IncludeReasoningTools),
	}, opts.ManagerOptions...)
	manager := toolsvc.NewManager(managerOpts...)

	observer, err := obs.NewObserver(opts.Meter)
	if err != nil {
		return nil, fmt.Errorf("runtime: build observer: %w", err)
	}
	if err := observer.RegisterHooks(registry); err != nil {
		return nil, err
	}

	redactor := redact.NewRedactor(opts.Secrets...)
	if err := redactor.RegisterHooks(registry); err != nil {
		return nil, err
	}

	rt := &Runtime{
		logger:         logger,
		Hooks:          registry,
		Manager:        manager,
		Adapter:        tool.NewAdapter(manager, workspace, logger),
		State:          statesync.NewService(statesync.WithLogger(logger)),
		Lifecycle:      lifecycle.NewRegistry(logger),
		Observer:       observer,
		Redactor:       redactor,
		Runs:           runs.NewStore(),
		staticServices: opts.Services,
		servicesFile:   opts.ServicesFile,
	}
	if err := rt.registerServices(); err != nil {
		return nil, err
	}
	return rt, nil
}

// registerServices wires the long-lived pieces into the lifecycle registry
// in dependency order: state sync first, then tool services, then the
// config watcher that feeds them.
func (r *Runtime) registerServices() error {
	services := []lifecycle.Service{
		{
			ID:    "state-sync",
			Start: func(context.Context) error { return nil },
		},
		{
			ID: "tool-services",
			Start: func(context.Context) error {
				if len(r.staticServices) > 0 {
					r.Manager.SyncServices(r.staticServices)
				}
				return nil
			},
			Stop: func(context.Context) error {
				r.Manager.Close()
				return nil
			},
			Health: func(ctx context.Context) error {
				for _, st := range r.Manager.ServiceStatuses(ctx) {
					if st.Status == toolsvc.StatusError {
						return fmt.Errorf("service %s: %s", st.ID, st.Error)
					}
				}
				return nil
			},
		},
	}
	if r.servicesFile != "" {
		services = append(services, lifecycle.Service{
			ID:    "config-watch",
			Start: r.startWatcher,
			Stop: func(context.Context) error {
				if r.watcher == nil {
					return nil
				}
				err := r.watcher.Close()
				r.watcher = nil
				return err
			},
		})
	}
	for _, svc := range services {
		if err := r.Lifecycle.Register(svc); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) startWatcher(context.Context) error {
	loader, err := config.NewLoader(r.servicesFile)
	if err != nil {
		return err
	}
	watcher, err := config.NewWatcher(loader,
		config.OnChange(func(configs []toolsvc.ServiceConfig) {
			r.Manager.SyncServices(append(append([]toolsvc.ServiceConfig(nil), r.staticServices...), configs...))
			r.logger.Info("tool services reconfigured", "count", len(configs))
		}),
		config.OnError(func(err error) {
			r.logger.Warn("tool service config reload failed", "error", err)
		}),
	)
	if err != nil {
		return err
	}
	if _, err := watcher.Start(); err != nil {
		return err
	}
	r.watcher = watcher
	return nil
}

// Start boots every registered service in dependency order.
func (r *Runtime) Start(ctx context.Context) error {
	return r.Lifecycle.StartAll(ctx)
}

// Stop tears the services down in reverse start order.
func (r *Runtime) Stop(ctx context.Context) error {
	return r.Lifecycle.StopAll(ctx)
}

// Health sweeps every registered service's health hook.
func (r *Runtime) Health(ctx context.Context) []lifecycle.HealthRecord {
	return r.Lifecycle.Health(ctx)
}

// RunChannel names the state-sync channel for one run.
func RunChannel(runID string) string {
	return "run:" + runID
}

// AgentChannel names the state-sync channel for one agent.
func AgentChannel(agentID string) string {
	return "agent:" + agentID
}

// nowFunc is swapped by tests that need deterministic durations.
var nowFunc = time.Now
