package statesync

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAssignsContiguousSequence(t *testing.T) {
	s := NewService()
	const n = 25
	for i := 0; i < n; i++ {
		evt := s.Publish("run:1", fmt.Sprintf("step.%d", i), nil, "ok")
		assert.Equal(t, uint64(i+1), evt.Seq)
	}

	events := s.EventsSince("run:1", 0)
	require.Len(t, events, n)
	for i, evt := range events {
		assert.Equal(t, uint64(i+1), evt.Seq, "no gaps, no repeats")
	}

	snap := s.Snapshot("run:1")
	assert.Equal(t, uint64(n), snap.Seq)
	assert.Equal(t, uint64(n), snap.Version)
	assert.Equal(t, "ok", snap.Status)
}

func TestSnapshotDefaultForUnknownChannel(t *testing.T) {
	s := NewService()
	snap := s.Snapshot("never-seen")
	assert.Equal(t, Snapshot{Channel: "never-seen"}, snap)
	assert.Nil(t, s.EventsSince("never-seen", 0))
}

func TestSnapshotReflectsLatestPublish(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewService(WithClock(func() time.Time { return now }))

	s.Publish("agent:a", "tool.read_file", nil, "ok")
	now = now.Add(time.Second)
	s.Publish("agent:a", "tool.write_file", nil, "error")

	snap := s.Snapshot("agent:a")
	assert.Equal(t, uint64(2), snap.Seq)
	assert.Equal(t, "error", snap.Status)
	assert.Equal(t, now, snap.UpdatedAt)
}

func TestEventsSinceOffset(t *testing.T) {
	s := NewService()
	for i := 0; i < 10; i++ {
		s.Publish("run:2", "step", i, "ok")
	}

	events := s.EventsSince("run:2", 7)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(8), events[0].Seq)
	assert.Equal(t, uint64(10), events[2].Seq)

	assert.Nil(t, s.EventsSince("run:2", 10))
	assert.Nil(t, s.EventsSince("run:2", 99))
}

func TestSubscriberSeesEventBeforePublishReturns(t *testing.T) {
	s := NewService()
	var got []Event
	cancel := s.Subscribe(func(evt Event) { got = append(got, evt) }, "run:3")
	defer cancel()

	evt := s.Publish("run:3", "step", nil, "ok")
	require.Len(t, got, 1, "delivery is synchronous")
	assert.Equal(t, evt.Seq, got[0].Seq)
	assert.Equal(t, evt.ID, got[0].ID)
}

func TestSubscriberDeliveryOrdered(t *testing.T) {
	s := NewService()
	var seqs []uint64
	cancel := s.Subscribe(func(evt Event) { seqs = append(seqs, evt.Seq) }, "run:4")
	defer cancel()

	const n = 50
	for i := 0; i < n; i++ {
		s.Publish("run:4", "step", nil, "ok")
	}
	require.Len(t, seqs, n)
	for i, seq := range seqs {
		assert.Equal(t, uint64(i+1), seq)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := NewService()
	count := 0
	cancel := s.Subscribe(func(Event) { count++ }, "run:5")

	s.Publish("run:5", "step", nil, "ok")
	cancel()
	cancel() // idempotent
	s.Publish("run:5", "step", nil, "ok")

	assert.Equal(t, 1, count)
}

func TestSubscribeMultipleChannels(t *testing.T) {
	s := NewService()
	var channels []string
	cancel := s.Subscribe(func(evt Event) { channels = append(channels, evt.Channel) }, "run:a", "run:b")
	defer cancel()

	s.Publish("run:a", "step", nil, "ok")
	s.Publish("run:b", "step", nil, "ok")
	s.Publish("run:c", "step", nil, "ok")

	assert.Equal(t, []string{"run:a", "run:b"}, channels)
}

func TestChannelsIsolated(t *testing.T) {
	s := NewService()
	s.Publish("run:x", "step", nil, "ok")
	s.Publish("run:x", "step", nil, "ok")
	s.Publish("run:y", "step", nil, "ok")

	assert.Equal(t, uint64(2), s.Snapshot("run:x").Seq)
	assert.Equal(t, uint64(1), s.Snapshot("run:y").Seq)
	assert.ElementsMatch(t, []string{"run:x", "run:y"}, s.Channels())
}

func TestConcurrentPublishersKeepOrderPerChannel(t *testing.T) {
	s := NewService()
	var wg sync.WaitGroup
	const workers = 8
	const perWorker = 50
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s.Publish("run:shared", "step", nil, "ok")
			}
		}()
	}
	wg.Wait()

	events := s.EventsSince("run:shared", 0)
	require.Len(t, events, workers*perWorker)
	for i, evt := range events {
		assert.Equal(t, uint64(i+1), evt.Seq)
	}
}
