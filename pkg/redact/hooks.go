package redact

import (
	"context"

	"github.com/cexll/agentcore/pkg/core/events"
	"github.com/cexll/agentcore/pkg/hooks"
)

// RegisterHooks attaches the redactor to every hook point whose payload can
// carry secret material, at the lowest priority so it always runs last.
func (r *Redactor) RegisterHooks(reg *hooks.Registry) error {
	points := []events.HookPoint{
		events.ToolAfter,
		events.ResponseStream,
		events.ErrorFormat,
	}
	for _, point := range points {
		if err := reg.Register(point, "redaction", hooks.PriorityLast, r.handle); err != nil {
			return err
		}
	}
	return nil
}

func (r *Redactor) handle(_ context.Context, evt *events.Event) error {
	switch p := evt.Payload.(type) {
	case *events.ToolResultPayload:
		p.Output = r.MaskText(p.Output)
		p.ErrorMessage = r.MaskText(p.ErrorMessage)
		if p.Structured != nil {
			r.MaskValue(p.Structured)
		}
		if p.Metadata != nil {
			r.MaskValue(p.Metadata)
		}
	case *events.StreamPayload:
		p.Chunk = r.MaskText(p.Chunk)
	case *events.ErrorPayload:
		p.Message = r.MaskText(p.Message)
	}
	return nil
}
