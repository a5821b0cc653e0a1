package runtime

import (
	"context"

	"github.com/cexll/agentcore/pkg/obs"
	"github.com/cexll/agentcore/pkg/runs"
	"github.com/cexll/agentcore/pkg/statesync"
	"github.com/cexll/agentcore/pkg/toolsvc"
)

// InspectionSnapshot is served to the thin external HTTP layer: top counters
// plus a per-channel summary.
type InspectionSnapshot struct {
	Counters []obs.CounterSnapshot `json:"counters"`
	Channels []statesync.Snapshot  `json:"channels"`
}

// Inspect captures the observability snapshot. limit bounds the counter
// list; <= 0 returns everything.
func (r *Runtime) Inspect(limit int) InspectionSnapshot {
	names := r.State.Channels()
	channels := make([]statesync.Snapshot, 0, len(names))
	for _, name := range names {
		channels = append(channels, r.State.Snapshot(name))
	}
	return InspectionSnapshot{
		Counters: r.Observer.Snapshot(limit),
		Channels: channels,
	}
}

// Replay returns up to limit retained events for the channel with seq >
// since, ascending; limit <= 0 means no bound. This backs resumable
// polling and streaming.
func (r *Runtime) Replay(channel string, since uint64, limit int) []statesync.Event {
	evts := r.State.EventsSince(channel, since)
	if limit > 0 && limit < len(evts) {
		evts = evts[:limit]
	}
	return evts
}

// ListRuns lists recorded runs, most recent first.
func (r *Runtime) ListRuns() []runs.Record {
	return r.Runs.List()
}

// ServiceStatuses aggregates the tool-service runtime view.
func (r *Runtime) ServiceStatuses(ctx context.Context) []toolsvc.ServiceStatus {
	return r.Manager.ServiceStatuses(ctx)
}

// Tools lists every discovered tool across ready services.
func (r *Runtime) Tools(ctx context.Context) []toolsvc.ToolDescriptor {
	return r.Manager.ListTools(ctx)
}
