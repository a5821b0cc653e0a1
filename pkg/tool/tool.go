// Package tool defines the runtime's generic executable-tool contract and
// the adapter that exposes externally discovered tools through it, with the
// workspace sandbox enforced in between.
package tool

import (
	"context"
	"encoding/json"
)

// Tool is one executable capability exposed to the agent-run loop.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, args map[string]any) *Result
}

// Result is the structured outcome of one tool execution. Failures,
// sandbox violations included, are values on this struct rather than
// returned errors, so they pass through the same masking and observability
// hooks as any other result.
type Result struct {
	OK         bool           `json:"ok"`
	Output     string         `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	Structured map[string]any `json:"structured,omitempty"`
	Artifact   *Artifact      `json:"artifact,omitempty"`
}

// Fail builds a failed result with the given message.
func Fail(msg string) *Result {
	return &Result{Error: msg}
}

// ArtifactKind classifies what a tool call touched.
type ArtifactKind string

const (
	ArtifactFile  ArtifactKind = "file"
	ArtifactShell ArtifactKind = "shell"
	ArtifactWeb   ArtifactKind = "web"
	ArtifactOther ArtifactKind = "other"
)

// ArtifactOp classifies what the call did to it.
type ArtifactOp string

const (
	OpCreate  ArtifactOp = "create"
	OpUpdate  ArtifactOp = "update"
	OpDelete  ArtifactOp = "delete"
	OpList    ArtifactOp = "list"
	OpRead    ArtifactOp = "read"
	OpAppend  ArtifactOp = "append"
	OpExecute ArtifactOp = "execute"
	OpSearch  ArtifactOp = "search"
)

// Artifact is the audit record attached to a successful tool result for
// downstream logging.
type Artifact struct {
	Kind      ArtifactKind `json:"kind"`
	Operation ArtifactOp   `json:"operation"`
	Path      string       `json:"path,omitempty"`
}
