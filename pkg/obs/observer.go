package obs

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cexll/agentcore/pkg/core/events"
	"github.com/cexll/agentcore/pkg/hooks"
)

// Counter metric names. Durations accumulate in milliseconds.
const (
	MetricPrompts        = "runs.prompts"
	MetricRunsCompleted  = "runs.completed"
	MetricRunDurationMS  = "runs.duration_ms"
	MetricToolsStarted   = "tools.started"
	MetricToolsCompleted = "tools.completed"
	MetricToolDurationMS = "tools.duration_ms"
	MetricStreamChunks   = "stream.chunks"
	MetricErrorsFormat   = "errors.formatted"
)

// Observer counts hook traffic. It registers ahead of redaction so counts
// reflect what actually happened, not the masked view.
type Observer struct {
	counters *Counters

	toolStarted   metric.Int64Counter
	toolCompleted metric.Int64Counter
	toolDuration  metric.Float64Histogram
	runCompleted  metric.Int64Counter
	runDuration   metric.Float64Histogram
}

// NewObserver builds an observer. meter may be nil; counters then stay
// local-only.
func NewObserver(meter metric.Meter) (*Observer, error) {
	o := &Observer{counters: NewCounters()}
	if meter == nil {
		return o, nil
	}

	var err error
	if o.toolStarted, err = meter.Int64Counter("agentcore.tool.started",
		metric.WithDescription("Number of tool executions started"),
	); err != nil {
		return nil, err
	}
	if o.toolCompleted, err = meter.Int64Counter("agentcore.tool.completed",
		metric.WithDescription("Number of tool executions completed"),
	); err != nil {
		return nil, err
	}
	if o.toolDuration, err = meter.Float64Histogram("agentcore.tool.duration",
		metric.WithDescription("Duration of tool execution in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if o.runCompleted, err = meter.Int64Counter("agentcore.run.completed",
		metric.WithDescription("Number of agent runs completed"),
	); err != nil {
		return nil, err
	}
	if o.runDuration, err = meter.Float64Histogram("agentcore.run.duration",
		metric.WithDescription("Duration of agent runs in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return o, nil
}

// Counters exposes the underlying counter set.
func (o *Observer) Counters() *Counters {
	return o.counters
}

// Snapshot returns the top-N counters by value, descending.
func (o *Observer) Snapshot(limit int) []CounterSnapshot {
	return o.counters.Snapshot(limit)
}

// RegisterHooks attaches the observer to every hook point it consumes, at
// default priority so redaction (lowest priority) runs after it.
func (o *Observer) RegisterHooks(reg *hooks.Registry) error {
	points := []events.HookPoint{
		events.PromptBefore,
		events.ToolBefore,
		events.ToolAfter,
		events.ResponseStream,
		events.RunEnd,
		events.ErrorFormat,
	}
	for _, point := range points {
		if err := reg.Register(point, "observability", hooks.PriorityDefault, o.handle); err != nil {
			return err
		}
	}
	return nil
}

func (o *Observer) handle(ctx context.Context, evt *events.Event) error {
	switch p := evt.Payload.(type) {
	case *events.PromptPayload:
		o.counters.Add(MetricPrompts, 1, nil)
	case *events.ToolCallPayload:
		o.counters.Add(MetricToolsStarted, 1, nil)
		o.counters.Add(MetricToolsStarted, 1, map[string]string{"tool": p.Tool})
		if o.toolStarted != nil {
			o.toolStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", p.Tool)))
		}
	case *events.ToolResultPayload:
		o.counters.Add(MetricToolsCompleted, 1, nil)
		o.counters.Add(MetricToolsCompleted+"."+outcomeLabel(p.OK), 1, nil)
		o.counters.Add(MetricToolsCompleted, 1, map[string]string{"tool": p.Tool})
		o.counters.Add(MetricToolDurationMS, p.Duration.Milliseconds(), nil)
		if o.toolCompleted != nil {
			attrs := metric.WithAttributes(
				attribute.String("tool", p.Tool),
				attribute.String("outcome", outcomeLabel(p.OK)),
			)
			o.toolCompleted.Add(ctx, 1, attrs)
			o.toolDuration.Record(ctx, p.Duration.Seconds(), attrs)
		}
	case *events.StreamPayload:
		o.counters.Add(MetricStreamChunks, 1, nil)
	case *events.RunEndPayload:
		o.counters.Add(MetricRunsCompleted, 1, nil)
		if p.Outcome != "" {
			o.counters.Add(MetricRunsCompleted+"."+p.Outcome, 1, nil)
		}
		o.counters.Add(MetricRunDurationMS, p.Duration.Milliseconds(), nil)
		if o.runCompleted != nil {
			attrs := metric.WithAttributes(attribute.String("outcome", p.Outcome))
			o.runCompleted.Add(ctx, 1, attrs)
			o.runDuration.Record(ctx, p.Duration.Seconds(), attrs)
		}
	case *events.ErrorPayload:
		o.counters.Add(MetricErrorsFormat, 1, nil)
	default:
		return fmt.Errorf("obs: unsupported payload %T at %s", evt.Payload, evt.Point)
	}
	return nil
}

func outcomeLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
