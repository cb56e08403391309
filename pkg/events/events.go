// Package events defines the lifecycle notifications published for dialogue
// workflows.
package events

import (
	"time"

	"github.com/castline/castline/pkg/models"
)

type EventType string

const Topic = "castline.workflows"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowCreatedEvent   EventType = "workflow.created"
	WorkflowCompletedEvent EventType = "workflow.completed"
	WorkflowFailedEvent    EventType = "workflow.failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type WorkflowCreated struct {
	BaseEvent

	Name           string `json:"name"`
	EpisodeProfile string `json:"episode_profile"`
}

func (w WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

type WorkflowCompleted struct {
	BaseEvent

	Segments   int           `json:"segments"`
	TotalTurns int           `json:"total_turns"`
	Duration   time.Duration `json:"duration"`
}

func (w WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type WorkflowFailed struct {
	BaseEvent

	Stage models.WorkflowStage `json:"stage"`
	Error string               `json:"error"`
}

func (w WorkflowFailed) GetType() EventType {
	return WorkflowFailedEvent
}
