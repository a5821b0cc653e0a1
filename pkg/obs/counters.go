// Package obs provides the observability hook consumer: named monotonic
// counters driven by hook dispatch, optionally mirrored to OpenTelemetry
// instruments, with a top-N snapshot for the inspection surface.
package obs

import (
	"sort"
	"strings"
	"sync"
)

// CounterSnapshot is one counter in a snapshot, value at capture time.
type CounterSnapshot struct {
	Metric string            `json:"metric"`
	Tags   map[string]string `json:"tags,omitempty"`
	Value  int64             `json:"value"`
}

type counter struct {
	metric string
	tags   map[string]string
	value  int64
}

// Counters is a concurrency-safe set of monotonically increasing counters
// keyed by metric name plus a sorted tag set.
type Counters struct {
	mu     sync.Mutex
	values map[string]*counter
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{values: make(map[string]*counter)}
}

// Add increments the counter identified by metric and tags.
func (c *Counters) Add(metric string, delta int64, tags map[string]string) {
	if metric == "" || delta <= 0 {
		return
	}
	key := counterKey(metric, tags)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.values[key]
	if !ok {
		copied := make(map[string]string, len(tags))
		for k, v := range tags {
			copied[k] = v
		}
		entry = &counter{metric: metric, tags: copied}
		c.values[key] = entry
	}
	entry.value += delta
}

// Value reads one counter, zero when absent.
func (c *Counters) Value(metric string, tags map[string]string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.values[counterKey(metric, tags)]; ok {
		return entry.value
	}
	return 0
}

// Snapshot returns the top-N counters by value, descending; ties order by
// key for determinism. limit <= 0 returns everything.
func (c *Counters) Snapshot(limit int) []CounterSnapshot {
	c.mu.Lock()
	keys := make([]string, 0, len(c.values))
	for key := range c.values {
		keys = append(keys, key)
	}
	entries := make(map[string]CounterSnapshot, len(keys))
	for _, key := range keys {
		entry := c.values[key]
		tags := make(map[string]string, len(entry.tags))
		for k, v := range entry.tags {
			tags[k] = v
		}
		if len(tags) == 0 {
			tags = nil
		}
		entries[key] = CounterSnapshot{Metric: entry.metric, Tags: tags, Value: entry.value}
	}
	c.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if entries[keys[i]].Value != entries[keys[j]].Value {
			return entries[keys[i]].Value > entries[keys[j]].Value
		}
		return keys[i] < keys[j]
	})
	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}
	out := make([]CounterSnapshot, 0, len(keys))
	for _, key := range keys {
		out = append(out, entries[key])
	}
	return out
}

// counterKey builds a stable identity: metric plus sorted k=v tag pairs.
func counterKey(metric string, tags map[string]string) string {
	if len(tags) == 0 {
		return metric
	}
	pairs := make([]string, 0, len(tags))
	for k, v := range tags {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return metric + "|" + strings.Join(pairs, ",")
}
