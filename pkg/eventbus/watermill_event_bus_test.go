package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/castline/castline/pkg/channels/gochannel"
	"github.com/castline/castline/pkg/eventbus"
	"github.com/castline/castline/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_RoundTrip(t *testing.T) {
	bus := newTestBus(t)

	completed := make(chan *events.WorkflowCompleted, 1)
	failed := make(chan *events.WorkflowFailed, 1)

	require.NoError(t, bus.Handle(events.WorkflowCompletedEvent, func(_ context.Context, event any) error {
		completed <- event.(*events.WorkflowCompleted)

		return nil
	}))
	require.NoError(t, bus.Handle(events.WorkflowFailedEvent, func(_ context.Context, event any) error {
		failed <- event.(*events.WorkflowFailed)

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	err := bus.Publish(ctx, "wf-1", events.WorkflowCompleted{
		BaseEvent:  events.BaseEvent{ID: bus.GenerateID(), Type: events.WorkflowCompletedEvent, WorkflowID: "wf-1"},
		Segments:   3,
		TotalTurns: 42,
	})
	require.NoError(t, err)

	err = bus.Publish(ctx, "wf-2", events.WorkflowFailed{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.WorkflowFailedEvent, WorkflowID: "wf-2"},
		Error:     "segment 1 exploded",
	})
	require.NoError(t, err)

	select {
	case event := <-completed:
		assert.Equal(t, "wf-1", event.WorkflowID)
		assert.Equal(t, 3, event.Segments)
		assert.Equal(t, 42, event.TotalTurns)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completed event")
	}

	select {
	case event := <-failed:
		assert.Equal(t, "wf-2", event.WorkflowID)
		assert.Equal(t, "segment 1 exploded", event.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failed event")
	}
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	bus := newTestBus(t)

	completed := make(chan *events.WorkflowCompleted, 1)

	require.NoError(t, bus.Handle(events.WorkflowCompletedEvent, func(_ context.Context, event any) error {
		completed <- event.(*events.WorkflowCompleted)

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler is registered for created events; the bus must ack and
	// keep draining so later events still reach their handlers.
	err := bus.Publish(ctx, "wf-1", events.WorkflowCreated{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.WorkflowCreatedEvent, WorkflowID: "wf-1"},
		Name:      "Test Episode",
	})
	require.NoError(t, err)

	err = bus.Publish(ctx, "wf-1", events.WorkflowCompleted{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.WorkflowCompletedEvent, WorkflowID: "wf-1"},
		Segments:  1,
	})
	require.NoError(t, err)

	select {
	case event := <-completed:
		assert.Equal(t, "wf-1", event.WorkflowID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completed event")
	}
}
