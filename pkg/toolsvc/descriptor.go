package toolsvc

import (
	"encoding/json"
	"strings"

	"github.com/cexll/agentcore/pkg/mcp"
)

// Status is the lifecycle state of one service runtime.
type Status string

const (
	StatusDisabled   Status = "disabled"
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// ToolDescriptor is the discovered metadata for one externally provided
// tool. Descriptors are derived state: they are regenerated on every
// discovery refresh, never persisted.
type ToolDescriptor struct {
	ID              string          `json:"id"`
	ServiceID       string          `json:"serviceId"`
	ServiceName     string          `json:"serviceName"`
	ToolName        string          `json:"toolName"`
	DisplayName     string          `json:"displayName"`
	Description     string          `json:"description,omitempty"`
	InputSchema     json.RawMessage `json:"inputSchema,omitempty"`
	Privileged      bool            `json:"privileged"`
	ReadOnlyHint    *bool           `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool           `json:"destructiveHint,omitempty"`
}

// privilegedKeywords flag tools whose name or description suggests mutation
// or arbitrary execution.
var privilegedKeywords = []string{
	"write", "delete", "remove", "create", "update", "edit", "move", "copy",
	"exec", "shell", "run", "install", "kill", "patch", "push", "deploy",
}

// newDescriptor derives a descriptor from a discovery record.
// Privilege inference: an explicit read-only annotation overrides everything;
// an explicit destructive annotation forces privileged; otherwise a keyword
// match over name and description decides.
func newDescriptor(cfg ServiceConfig, info mcp.ToolInfo) ToolDescriptor {
	display := info.Title
	if display == "" {
		display = info.Name
	}
	desc := ToolDescriptor{
		ID:          cfg.ID + ":" + info.Name,
		ServiceID:   cfg.ID,
		ServiceName: cfg.Name,
		ToolName:    info.Name,
		DisplayName: display,
		Description: info.Description,
		InputSchema: info.InputSchema,
	}
	if info.Annotations != nil {
		desc.ReadOnlyHint = info.Annotations.ReadOnlyHint
		desc.DestructiveHint = info.Annotations.DestructiveHint
	}
	desc.Privileged = inferPrivileged(desc)
	return desc
}

func inferPrivileged(d ToolDescriptor) bool {
	if d.ReadOnlyHint != nil && *d.ReadOnlyHint {
		return false
	}
	if d.DestructiveHint != nil && *d.DestructiveHint {
		return true
	}
	haystack := strings.ToLower(d.ToolName + " " + d.Description)
	for _, kw := range privilegedKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// reasoningKeywords identify tools that only produce chain-of-thought style
// output. They are hidden from listings unless the manager opts in.
var reasoningKeywords = []string{"think", "reason", "sequentialthinking"}

func isReasoningTool(d ToolDescriptor) bool {
	name := strings.ToLower(d.ToolName)
	for _, kw := range reasoningKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
