package eventbus_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/goobi/goobi-production/pkg/channels/gochannel"
	"github.com/goobi/goobi-production/pkg/eventbus"
	"github.com/goobi/goobi-production/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(logger, pub, sub)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	created := make(chan *events.TemplateCreated, 1)
	recompiled := make(chan *events.WorkflowTemplatesRecompiled, 1)

	require.NoError(t, bus.Handle(events.TemplateCreatedEvent, func(_ context.Context, event any) error {
		created <- event.(*events.TemplateCreated)

		return nil
	}))
	require.NoError(t, bus.Handle(events.WorkflowTemplatesRecompiledEvent, func(_ context.Context, event any) error {
		recompiled <- event.(*events.WorkflowTemplatesRecompiled)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "1", events.TemplateCreated{
		BaseEvent:  events.NewBaseEvent(events.TemplateCreatedEvent, 1),
		TemplateID: 5,
		Diagram:    "digitization",
		TaskCount:  3,
	}))
	require.NoError(t, bus.Publish(ctx, "1", events.WorkflowTemplatesRecompiled{
		BaseEvent:   events.NewBaseEvent(events.WorkflowTemplatesRecompiledEvent, 1),
		Diagram:     "digitization",
		TemplateIDs: []int64{5, 6},
		TaskCount:   3,
	}))

	select {
	case got := <-created:
		assert.Equal(t, int64(5), got.TemplateID)
		assert.Equal(t, int64(1), got.WorkflowID)
		assert.Equal(t, events.TemplateCreatedEvent, got.Type)
		assert.NotEmpty(t, got.ID)
	case <-ctx.Done():
		t.Fatal("template.created was not delivered")
	}

	select {
	case got := <-recompiled:
		assert.Equal(t, []int64{5, 6}, got.TemplateIDs)
		assert.Equal(t, "digitization", got.Diagram)
	case <-ctx.Done():
		t.Fatal("workflow.templates.recompiled was not delivered")
	}
}

func TestWatermillEventBus_UnhandledEventsAreAcked(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// The test channel blocks until the message is acknowledged.
	err := bus.Publish(ctx, "2", events.WorkflowTemplatesRecompiled{
		BaseEvent: events.NewBaseEvent(events.WorkflowTemplatesRecompiledEvent, 2),
	})
	assert.NoError(t, err)
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
