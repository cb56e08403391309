package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/castline/castline/pkg/content"
	"github.com/castline/castline/pkg/engine"
	"github.com/castline/castline/pkg/eventbus"
	"github.com/castline/castline/pkg/events"
	"github.com/castline/castline/pkg/models"
	"github.com/castline/castline/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// WorkflowRunner executes the task graph for a persisted workflow.
type WorkflowRunner interface {
	Run(ctx context.Context, workflowID string) (*models.Workflow, error)
}

// Workflow is the application service for dialogue workflows: it validates
// requests, creates the persisted record, and drives the engine.
type Workflow struct {
	persistence persistence.Persistence
	profiles    engine.ProfileSource
	resolver    content.Resolver
	runner      WorkflowRunner
	eventBus    eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewWorkflow(
	persistence persistence.Persistence,
	profiles engine.ProfileSource,
	resolver content.Resolver,
	runner WorkflowRunner,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Workflow {
	return &Workflow{
		persistence: persistence,
		profiles:    profiles,
		resolver:    resolver,
		runner:      runner,
		eventBus:    eventBus,
		validator:   validator.New(),
		logger:      logger.With("module", "services"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := w.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflowRequest carries the inputs for a new workflow run. NumSegments
// overrides the episode profile's segment count when positive.
type CreateWorkflowRequest struct {
	Name           string `json:"name"            validate:"required,min=3"`
	Content        string `json:"content"`
	ContentRef     string `json:"content_ref"`
	EpisodeProfile string `json:"episode_profile" validate:"required"`
	BriefingSuffix string `json:"briefing_suffix"`
	NumSegments    int    `json:"num_segments"    validate:"omitempty,min=1"`
}

// CreateAndRun validates the request, persists the initial record and runs the
// task graph to completion. The call is synchronous: the returned workflow is
// terminal. No record is created if validation fails.
func (w *Workflow) CreateAndRun(ctx context.Context, req CreateWorkflowRequest) (*models.Workflow, error) {
	if err := w.validateCreateRequest(req); err != nil {
		return nil, err
	}

	episode, err := w.profiles.EpisodeProfile(req.EpisodeProfile)
	if err != nil {
		return nil, NewNotFoundError(
			"CreateAndRun",
			"UNKNOWN_PROFILE",
			fmt.Sprintf("episode profile %q does not exist", req.EpisodeProfile),
			errors.Join(ErrUnknownProfile, err),
		)
	}

	sourceText := req.Content
	if req.ContentRef != "" {
		sourceText, err = w.resolver.Resolve(ctx, req.ContentRef)
		if err != nil {
			if errors.Is(err, content.ErrContentNotFound) {
				return nil, NewValidationError(
					"CreateAndRun",
					"CONTENT_NOT_RESOLVED",
					fmt.Sprintf("content reference %q could not be resolved", req.ContentRef),
					errors.Join(ErrContentNotResolved, err),
				)
			}

			return nil, fmt.Errorf("failed to resolve content: %w", err)
		}
	}

	numSegments := episode.NumSegments
	if req.NumSegments > 0 {
		numSegments = req.NumSegments
	}

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:                 uuid.New().String(),
		Name:               req.Name,
		Content:            sourceText,
		ContentRef:         req.ContentRef,
		Briefing:           assembleBriefing(req.Name, episode.Briefing, req.BriefingSuffix),
		EpisodeProfileName: episode.Name,
		SpeakerProfileName: episode.SpeakerProfile,
		NumSegments:        numSegments,
		Stage:              models.StagePlanning,
		Status:             models.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.publishCreated(ctx, workflow)
	w.logger.Info("Workflow created", "workflow_id", workflow.ID, "episode_profile", episode.Name)

	return w.runner.Run(ctx, workflow.ID)
}

func (w *Workflow) validateCreateRequest(req CreateWorkflowRequest) error {
	if err := w.validator.Struct(req); err != nil {
		return NewValidationError("CreateAndRun", "INVALID_REQUEST", err.Error(), ErrInvalidRequest)
	}

	if (req.Content == "") == (req.ContentRef == "") {
		return NewValidationError(
			"CreateAndRun",
			"CONTENT_REQUIRED",
			"provide exactly one of content and content_ref",
			ErrContentRequired,
		)
	}

	return nil
}

// assembleBriefing builds the briefing handed to both passes: the episode
// name, the profile briefing, and any per-request instructions.
func assembleBriefing(name, briefing, suffix string) string {
	out := "Episode: " + name + "\n\n" + briefing
	if suffix != "" {
		out += "\n\nAdditional instructions: " + suffix
	}

	return out
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// TranscriptResponse is the flattened dialogue of a completed workflow.
type TranscriptResponse struct {
	WorkflowID string                `json:"workflow_id"`
	Name       string                `json:"name"`
	TotalTurns int                   `json:"total_turns"`
	Lines      []models.DialogueLine `json:"lines"`
}

// FetchTranscript returns the flattened transcript of a completed workflow.
// Anything short of completed yields ErrTranscriptNotReady: a transcript never
// exists for pending, running or failed workflows.
func (w *Workflow) FetchTranscript(ctx context.Context, id string) (*TranscriptResponse, error) {
	workflow, err := w.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.StatusCompleted {
		return nil, fmt.Errorf("workflow %s is (%s, %s): %w", id, workflow.Stage, workflow.Status, ErrTranscriptNotReady)
	}

	lines := workflow.Transcript()

	return &TranscriptResponse{
		WorkflowID: workflow.ID,
		Name:       workflow.Name,
		TotalTurns: len(lines),
		Lines:      lines,
	}, nil
}

// WorkflowSummary is the list-view shape: no plan, no outputs.
type WorkflowSummary struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	EpisodeProfile string                `json:"episode_profile"`
	Stage          models.WorkflowStage  `json:"stage"`
	Status         models.WorkflowStatus `json:"status"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// List returns all workflows, newest first, as summaries.
func (w *Workflow) List(ctx context.Context) ([]WorkflowSummary, error) {
	workflows, err := w.persistence.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	summaries := make([]WorkflowSummary, 0, len(workflows))
	for _, workflow := range workflows {
		summaries = append(summaries, WorkflowSummary{
			ID:             workflow.ID,
			Name:           workflow.Name,
			EpisodeProfile: workflow.EpisodeProfileName,
			Stage:          workflow.Stage,
			Status:         workflow.Status,
			CreatedAt:      workflow.CreatedAt,
			UpdatedAt:      workflow.UpdatedAt,
		})
	}

	return summaries, nil
}

// Delete removes a workflow by its ID.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if err := w.persistence.WorkflowRepository().Delete(ctx, id); err != nil {
		return err
	}

	w.logger.Info("Workflow deleted", "workflow_id", id)

	return nil
}

func (w *Workflow) publishCreated(ctx context.Context, workflow *models.Workflow) {
	if w.eventBus == nil {
		return
	}

	event := events.WorkflowCreated{
		BaseEvent: events.BaseEvent{
			ID:         uuid.New().String(),
			Type:       events.WorkflowCreatedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: workflow.ID,
		},
		Name:           workflow.Name,
		EpisodeProfile: workflow.EpisodeProfileName,
	}

	if err := w.eventBus.Publish(ctx, workflow.ID, event); err != nil {
		w.logger.Warn("Failed to publish workflow created event", "workflow_id", workflow.ID, "error", err)
	}
}
