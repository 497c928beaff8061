package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goobi/goobi-production/pkg/eventbus"
	"github.com/goobi/goobi-production/pkg/events"
)

// subscribeEvents records every template lifecycle event in the API log.
func subscribeEvents(ctx context.Context, logger *slog.Logger, bus eventbus.EventSubscriber) error {
	logger = logger.With("component", "events")

	if err := bus.Handle(events.TemplateCreatedEvent, func(ctx context.Context, event any) error {
		created, ok := event.(*events.TemplateCreated)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		logger.InfoContext(ctx, "Template created",
			"event_id", created.ID,
			"workflow_id", created.WorkflowID,
			"template_id", created.TemplateID,
			"diagram", created.Diagram,
			"task_count", created.TaskCount)

		return nil
	}); err != nil {
		return err
	}

	if err := bus.Handle(events.WorkflowTemplatesRecompiledEvent, func(ctx context.Context, event any) error {
		recompiled, ok := event.(*events.WorkflowTemplatesRecompiled)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		logger.InfoContext(ctx, "Workflow templates recompiled",
			"event_id", recompiled.ID,
			"workflow_id", recompiled.WorkflowID,
			"template_ids", recompiled.TemplateIDs,
			"diagram", recompiled.Diagram,
			"task_count", recompiled.TaskCount)

		return nil
	}); err != nil {
		return err
	}

	return bus.Subscribe(ctx)
}
