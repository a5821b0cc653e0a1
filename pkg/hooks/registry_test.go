package hooks

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/agentcore/pkg/core/events"
)

func TestDispatchPriorityOrder(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	add := func(id string, priority int) {
		require.NoError(t, r.Register(events.ToolBefore, id, priority, func(ctx context.Context, evt *events.Event) error {
			order = append(order, id)
			return nil
		}))
	}
	add("default", PriorityDefault)
	add("last", PriorityLast)
	add("first", PriorityFirst)

	r.Dispatch(context.Background(), events.New(events.ToolBefore, "", &events.ToolCallPayload{}))
	assert.Equal(t, []string{"first", "default", "last"}, order)
}

func TestDispatchTieBrokenByRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	for _, id := range []string{"a", "b", "c"} {
		id := id
		require.NoError(t, r.Register(events.RunEnd, id, PriorityDefault, func(ctx context.Context, evt *events.Event) error {
			order = append(order, id)
			return nil
		}))
	}
	r.Dispatch(context.Background(), events.New(events.RunEnd, "", &events.RunEndPayload{}))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestDispatchSharesMutableEvent(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(events.PromptBefore, "rewriter", PriorityFirst, func(ctx context.Context, evt *events.Event) error {
		evt.Payload.(*events.PromptPayload).Prompt = "rewritten"
		return nil
	}))
	var seen string
	require.NoError(t, r.Register(events.PromptBefore, "reader", PriorityDefault, func(ctx context.Context, evt *events.Event) error {
		seen = evt.Payload.(*events.PromptPayload).Prompt
		return nil
	}))

	r.Dispatch(context.Background(), events.New(events.PromptBefore, "", &events.PromptPayload{Prompt: "original"}))
	assert.Equal(t, "rewritten", seen)
}

func TestDispatchContainsErrorsAndPanics(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(events.ToolAfter, "fails", PriorityFirst, func(ctx context.Context, evt *events.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, r.Register(events.ToolAfter, "panics", PriorityDefault, func(ctx context.Context, evt *events.Event) error {
		panic("ouch")
	}))
	ran := false
	require.NoError(t, r.Register(events.ToolAfter, "survives", PriorityLast, func(ctx context.Context, evt *events.Event) error {
		ran = true
		return nil
	}))

	r.Dispatch(context.Background(), events.New(events.ToolAfter, "", &events.ToolResultPayload{}))
	assert.True(t, ran, "later handler must still run")

	failures := r.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "fails", failures[0].HandlerID)
	assert.Equal(t, "panics", failures[1].HandlerID)
	assert.Contains(t, failures[1].Err.Error(), "panic")
}

func TestRegisterDuplicateIDRejected(t *testing.T) {
	r := NewRegistry(nil)
	h := func(ctx context.Context, evt *events.Event) error { return nil }
	require.NoError(t, r.Register(events.ToolBefore, "dup", 0, h))
	err := r.Register(events.ToolBefore, "dup", 0, h)
	require.Error(t, err)
	// Same id on a different point is fine.
	require.NoError(t, r.Register(events.ToolAfter, "dup", 0, h))
}

func TestUnregister(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(events.ToolBefore, "h", 0, func(ctx context.Context, evt *events.Event) error { return nil }))
	assert.Equal(t, 1, r.HandlerCount(events.ToolBefore))
	assert.True(t, r.Unregister(events.ToolBefore, "h"))
	assert.False(t, r.Unregister(events.ToolBefore, "h"))
	assert.Equal(t, 0, r.HandlerCount(events.ToolBefore))
}

func TestFailureHistoryBounded(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(events.ErrorFormat, "always-fails", 0, func(ctx context.Context, evt *events.Event) error {
		return fmt.Errorf("failure %s", evt.ID)
	}))
	for i := 0; i < failureRingSize+10; i++ {
		r.Dispatch(context.Background(), events.New(events.ErrorFormat, "", &events.ErrorPayload{}))
	}
	assert.Len(t, r.Failures(), failureRingSize)
}
