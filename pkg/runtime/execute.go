package runtime

import (
	"context"

	"github.com/cexll/agentcore/pkg/core/events"
	"github.com/cexll/agentcore/pkg/tool"
	"github.com/cexll/agentcore/pkg/toolsvc"
)

// ExecuteTool runs one discovered tool on behalf of a run: tool_before
// dispatch (handlers may rewrite arguments), sandboxed execution through the
// adapter, then tool_after dispatch where observability counts and redaction
// masks before the result reaches the caller. The run's timeline records the
// call on its state-sync channel.
func (r *Runtime) ExecuteTool(ctx context.Context, runID string, desc toolsvc.ToolDescriptor, args map[string]any) *tool.Result {
	if args == nil {
		args = map[string]any{}
	}

	before := &events.ToolCallPayload{
		Service: desc.ServiceID,
		Tool:    desc.ToolName,
		Args:    args,
	}
	r.Hooks.Dispatch(ctx, events.New(events.ToolBefore, runID, before))

	started := nowFunc()
	res := r.Adapter.ExecuteRaw(ctx, r.Adapter.Wrap(desc), before.Args)
	elapsed := nowFunc().Sub(started)

	after := &events.ToolResultPayload{
		Service:      desc.ServiceID,
		Tool:         desc.ToolName,
		OK:           res.OK,
		Duration:     elapsed,
		Output:       res.Output,
		ErrorMessage: res.Error,
		Structured:   res.Structured,
	}
	if res.Artifact != nil {
		after.Metadata = map[string]string{
			"kind":      string(res.Artifact.Kind),
			"operation": string(res.Artifact.Operation),
			"path":      res.Artifact.Path,
		}
	}
	r.Hooks.Dispatch(ctx, events.New(events.ToolAfter, runID, after))

	// Hand the (possibly masked) hook view back to the caller.
	res.Output = after.Output
	res.Error = after.ErrorMessage
	res.Structured = after.Structured
	if res.Artifact != nil && after.Metadata != nil {
		res.Artifact.Path = after.Metadata["path"]
	}

	if runID != "" {
		status := "ok"
		if !res.OK {
			status = "error"
		}
		r.State.Publish(RunChannel(runID), "tool."+desc.ToolName, map[string]any{
			"service": desc.ServiceID,
			"tool":    desc.ToolName,
			"ok":      res.OK,
			"output":  res.Output,
			"error":   res.Error,
		}, status)
	}
	return res
}
