// Package events defines the notifications published after templates are compiled.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every template lifecycle event.
const Topic = "goobi.templates"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	TemplateCreatedEvent             EventType = "template.created"
	WorkflowTemplatesRecompiledEvent EventType = "workflow.templates.recompiled"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID int64     `json:"workflow_id"`
}

func NewBaseEvent(eventType EventType, workflowID int64) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// TemplateCreated is published once a new template has been compiled and stored.
type TemplateCreated struct {
	BaseEvent

	TemplateID int64  `json:"template_id"`
	Diagram    string `json:"diagram"`
	TaskCount  int    `json:"task_count"`
}

func (e TemplateCreated) GetType() EventType {
	return TemplateCreatedEvent
}

// WorkflowTemplatesRecompiled is published after every template of a workflow received a
// freshly compiled task list.
type WorkflowTemplatesRecompiled struct {
	BaseEvent

	Diagram     string  `json:"diagram"`
	TemplateIDs []int64 `json:"template_ids"`
	TaskCount   int     `json:"task_count"`
}

func (e WorkflowTemplatesRecompiled) GetType() EventType {
	return WorkflowTemplatesRecompiledEvent
}
