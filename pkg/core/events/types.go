// Package events defines the hook points of an agent run and the typed
// payloads delivered at each one. Payloads are deliberately mutable: a
// dispatch passes the same pointer to every handler in priority order, so
// later handlers observe mutations made by earlier ones.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HookPoint names a lifecycle moment in an agent run where cross-cutting
// handlers may observe or mutate data. Keeping the list small and explicit
// prevents accidental proliferation of loosely defined point names.
type HookPoint string

const (
	PromptBefore   HookPoint = "prompt_before"
	ToolBefore     HookPoint = "tool_before"
	ToolAfter      HookPoint = "tool_after"
	ResponseStream HookPoint = "response_stream"
	RunEnd         HookPoint = "run_end"
	ErrorFormat    HookPoint = "error_format"
)

// Event is one occurrence at a hook point. The Payload field holds a pointer
// to one of the payload structs below; handlers type-assert on it.
type Event struct {
	ID        string    // generated when empty
	Point     HookPoint // required
	Timestamp time.Time // auto-populated when zero
	RunID     string    // optional run identifier
	Payload   any       // pointer to a payload struct, asserted by handlers
}

// Validate performs cheap sanity checks for callers that need stronger
// contracts than the zero-value guarantees.
func (e Event) Validate() error {
	if e.Point == "" {
		return fmt.Errorf("events: missing hook point")
	}
	return nil
}

// New builds an event for the given point with identifier and timestamp
// filled in.
func New(point HookPoint, runID string, payload any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Point:     point,
		Timestamp: time.Now(),
		RunID:     runID,
		Payload:   payload,
	}
}

// PromptPayload is delivered at prompt_before.
// Mutable fields: Prompt (handlers may rewrite the outgoing prompt).
type PromptPayload struct {
	AgentID string
	Prompt  string
}

// ToolCallPayload is delivered at tool_before.
// Mutable fields: Args (handlers may adjust arguments before execution).
type ToolCallPayload struct {
	Service string
	Tool    string
	Args    map[string]any
}

// ToolResultPayload is delivered at tool_after.
// Mutable fields: Output, ErrorMessage, Structured and Metadata (redaction
// rewrites them in place); OK and Duration are informational only.
type ToolResultPayload struct {
	Service      string
	Tool         string
	OK           bool
	Duration     time.Duration
	Output       string
	ErrorMessage string
	Structured   map[string]any
	Metadata     map[string]string
}

// StreamPayload is delivered at response_stream for each streamed chunk.
// Mutable fields: Chunk.
type StreamPayload struct {
	Chunk string
}

// RunEndPayload is delivered at run_end. Consumers only read it.
type RunEndPayload struct {
	Outcome   string
	Duration  time.Duration
	ToolCalls int
}

// ErrorPayload is delivered at error_format before a failure message reaches
// the user. Mutable fields: Message.
type ErrorPayload struct {
	Message string
}
