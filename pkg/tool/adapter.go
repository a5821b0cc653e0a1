package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cexll/agentcore/pkg/security"
	"github.com/cexll/agentcore/pkg/toolsvc"
)

// ServiceCaller is the slice of the tool-service manager the adapter needs.
type ServiceCaller interface {
	CallTool(ctx context.Context, serviceID, toolName string, args map[string]any) toolsvc.CallOutcome
}

// Adapter presents discovered tool descriptors as Tools, enforcing the
// workspace sandbox on filesystem-capable ones before anything leaves the
// process.
type Adapter struct {
	caller    ServiceCaller
	workspace *security.Workspace
	logger    *slog.Logger
}

// NewAdapter builds an adapter bound to one agent workspace.
func NewAdapter(caller ServiceCaller, workspace *security.Workspace, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		caller:    caller,
		workspace: workspace,
		logger:    logger.With("component", "tooladapter"),
	}
}

// Wrap exposes one descriptor through the generic tool contract.
func (a *Adapter) Wrap(desc toolsvc.ToolDescriptor) Tool {
	return &serviceTool{adapter: a, desc: desc}
}

// WrapAll wraps a descriptor list in order.
func (a *Adapter) WrapAll(descs []toolsvc.ToolDescriptor) []Tool {
	tools := make([]Tool, 0, len(descs))
	for _, desc := range descs {
		tools = append(tools, a.Wrap(desc))
	}
	return tools
}

// ExecuteRaw validates that untyped arguments are an object before
// dispatching. Anything else is refused as a structured failure.
func (a *Adapter) ExecuteRaw(ctx context.Context, t Tool, raw any) *Result {
	switch args := raw.(type) {
	case nil:
		return t.Execute(ctx, map[string]any{})
	case map[string]any:
		return t.Execute(ctx, args)
	default:
		return Fail(fmt.Sprintf("tool %s: arguments must be an object, got %T", t.Name(), raw))
	}
}

// serviceTool adapts one descriptor.
type serviceTool struct {
	adapter *Adapter
	desc    toolsvc.ToolDescriptor
}

func (t *serviceTool) Name() string            { return t.desc.ID }
func (t *serviceTool) Description() string     { return t.desc.Description }
func (t *serviceTool) Schema() json.RawMessage { return t.desc.InputSchema }

// Execute sandboxes path arguments, delegates to the service manager, and
// classifies the result into an audit artifact.
func (t *serviceTool) Execute(ctx context.Context, args map[string]any) *Result {
	if args == nil {
		args = map[string]any{}
	}
	a := t.adapter

	filesystem := isFilesystemTool(t.desc.ServiceID, t.desc.ServiceName, t.desc.ToolName)
	auditPath := ""
	if filesystem && a.workspace != nil {
		rewritten, relPath, err := a.sandboxArgs(args)
		if err != nil {
			a.logger.Warn("sandbox violation",
				"tool", t.desc.ID,
				"error", err)
			return Fail(fmt.Sprintf("sandbox violation: %v", err))
		}
		args = rewritten
		auditPath = relPath
	}

	outcome := a.caller.CallTool(ctx, t.desc.ServiceID, t.desc.ToolName, args)
	res := &Result{
		OK:         outcome.OK,
		Output:     outcome.Output,
		Error:      outcome.Error,
		Structured: outcome.Structured,
	}
	if res.OK {
		res.Artifact = classifyArtifact(t.desc.ServiceID, t.desc.ServiceName, t.desc.ToolName, auditPath)
	}
	return res
}

// sandboxArgs rewrites every known path-bearing argument to its
// root-relative form and returns the first such path for auditing. A single
// escaping argument rejects the whole call.
func (a *Adapter) sandboxArgs(args map[string]any) (map[string]any, string, error) {
	rewritten := make(map[string]any, len(args))
	firstRel := ""
	for key, value := range args {
		str, isString := value.(string)
		if !isString || !isPathArg(key) {
			rewritten[key] = value
			continue
		}
		_, rel, err := a.workspace.Resolve(str)
		if err != nil {
			return nil, "", fmt.Errorf("argument %q: %w", key, err)
		}
		rewritten[key] = rel
		if firstRel == "" {
			firstRel = rel
		}
	}
	return rewritten, firstRel, nil
}
