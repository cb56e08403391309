// Package engine executes the two-stage task graph for a dialogue workflow:
// one planning pass, then a fan-out of per-segment writing tasks joined under
// an all-or-nothing commit policy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/castline/castline/pkg/agents"
	"github.com/castline/castline/pkg/eventbus"
	"github.com/castline/castline/pkg/events"
	"github.com/castline/castline/pkg/models"
	"github.com/castline/castline/pkg/otelhelper"
	"github.com/castline/castline/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PlanningCapability produces the ordered segmentation for a workflow.
type PlanningCapability interface {
	CreatePlan(ctx context.Context, req agents.PlanRequest) (*models.Plan, error)
}

// SegmentWritingCapability turns one planned segment into dialogue.
type SegmentWritingCapability interface {
	WriteSegment(ctx context.Context, req agents.SegmentRequest) (*models.SegmentOutput, error)
}

// ProfileSource resolves the episode and speaker profiles referenced by a
// workflow record.
type ProfileSource interface {
	EpisodeProfile(name string) (*models.EpisodeProfile, error)
	SpeakerProfile(name string) (*models.SpeakerProfile, error)
}

// Engine drives one workflow through the task graph and leaves its record in
// a terminal, consistent state. The engine is the only writer of the record
// during a run: writing tasks return values, and the engine performs the
// single merge-and-persist at the join.
type Engine struct {
	persistence persistence.Persistence
	planner     PlanningCapability
	writer      SegmentWritingCapability
	threader    *agents.ContextThreader
	profiles    ProfileSource
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewEngine(
	persistence persistence.Persistence,
	planner PlanningCapability,
	writer SegmentWritingCapability,
	profiles ProfileSource,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: persistence,
		planner:     planner,
		writer:      writer,
		threader:    agents.NewContextThreader(),
		profiles:    profiles,
		eventBus:    eventBus,
		logger:      logger.With("module", "engine"),
		tracer:      otel.Tracer("castline/engine"),
	}
}

// Run executes the task graph for the given workflow. Generation failures end
// in a terminal failed record and a nil error; only storage failures are
// returned to the caller. Retrying a failed workflow means creating a new
// one.
func (e *Engine) Run(ctx context.Context, workflowID string) (*models.Workflow, error) {
	logger := e.logger.With("workflow_id", workflowID)
	started := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	repo := e.persistence.WorkflowRepository()

	workflow, err := repo.GetByID(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowNameKey, workflow.Name))

	if err := workflow.StartPlanning(); err != nil {
		return nil, err
	}

	if err := repo.Save(ctx, workflow); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to persist workflow %s: %w", workflowID, err)
	}

	episode, speakers, err := e.resolveProfiles(workflow)
	if err != nil {
		return e.fail(ctx, span, workflow, err)
	}

	logger.Info("Starting workflow run",
		"execution_mode", episode.ExecutionMode,
		"num_segments", workflow.NumSegments)

	plan, err := e.runPlanning(ctx, workflow, episode, speakers)
	if err != nil {
		// Short-circuit: no writing task is ever launched.
		logger.Error("Planning stage failed", "error", err)

		return e.fail(ctx, span, workflow, err)
	}

	if err := workflow.BeginWriting(plan); err != nil {
		return e.fail(ctx, span, workflow, err)
	}

	// The plan is durably stored before the first writing task is launched.
	if err := repo.Save(ctx, workflow); err != nil {
		otelhelper.SetError(span, err)

		return e.failStorage(ctx, workflow, err)
	}

	logger.Info("Plan persisted", "segments", len(plan.Segments))

	acc := e.runWriting(ctx, workflow, episode, speakers, plan)

	// All-or-nothing commit: any failure, or any gap in the output set,
	// fails the whole workflow and persists none of the outputs.
	if failures := acc.Failures(); len(failures) > 0 || acc.SuccessCount() != len(plan.Segments) {
		message := acc.FailureMessage()
		if message == "" {
			message = fmt.Sprintf("expected %d segment outputs, got %d", len(plan.Segments), acc.SuccessCount())
		}

		logger.Error("Writing stage failed", "failures", len(failures), "successes", acc.SuccessCount())

		return e.fail(ctx, span, workflow, errors.New(message))
	}

	if err := workflow.Complete(acc.Outputs()); err != nil {
		return e.fail(ctx, span, workflow, err)
	}

	if err := repo.Save(ctx, workflow); err != nil {
		otelhelper.SetError(span, err)

		return e.failStorage(ctx, workflow, err)
	}

	e.publishCompleted(ctx, workflow, time.Since(started))
	logger.Info("Workflow completed", "segments", len(workflow.SegmentOutputs), "duration", time.Since(started))

	return workflow, nil
}

func (e *Engine) resolveProfiles(workflow *models.Workflow) (*models.EpisodeProfile, []models.Speaker, error) {
	episode, err := e.profiles.EpisodeProfile(workflow.EpisodeProfileName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve episode profile %q: %w", workflow.EpisodeProfileName, err)
	}

	speakerProfile, err := e.profiles.SpeakerProfile(workflow.SpeakerProfileName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve speaker profile %q: %w", workflow.SpeakerProfileName, err)
	}

	return episode, speakerProfile.Speakers, nil
}

func (e *Engine) runPlanning(
	ctx context.Context,
	workflow *models.Workflow,
	episode *models.EpisodeProfile,
	speakers []models.Speaker,
) (*models.Plan, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.plan",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.StageKey, string(models.StagePlanning)),
	)
	defer span.End()

	plan, err := e.planner.CreatePlan(ctx, agents.PlanRequest{
		Content:     workflow.Content,
		Briefing:    workflow.Briefing,
		Speakers:    speakers,
		NumSegments: workflow.NumSegments,
		Model:       episode.OutlineModel,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return plan, nil
}

func (e *Engine) runWriting(
	ctx context.Context,
	workflow *models.Workflow,
	episode *models.EpisodeProfile,
	speakers []models.Speaker,
	plan *models.Plan,
) *ResultAccumulator {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.write",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.Int(otelhelper.SegmentCountKey, len(plan.Segments)),
		attribute.String(otelhelper.ExecutionMode, string(episode.ExecutionMode)),
	)
	defer span.End()

	if episode.ExecutionMode == models.ExecutionModeSequential {
		return e.writeSequential(ctx, workflow, episode, speakers, plan)
	}

	return e.writeParallel(ctx, workflow, episode, speakers, plan)
}

// writeParallel launches one goroutine per segment. Every task runs to
// completion before the join returns: a failing task never cancels its
// siblings. Because all tasks start from the same pre-write snapshot, no task
// can see a sibling's output, so the continuity context is empty by contract.
func (e *Engine) writeParallel(
	ctx context.Context,
	workflow *models.Workflow,
	episode *models.EpisodeProfile,
	speakers []models.Speaker,
	plan *models.Plan,
) *ResultAccumulator {
	acc := NewResultAccumulator()

	var wg sync.WaitGroup

	for i, segment := range plan.Segments {
		wg.Add(1)

		go func(index int, segment models.PlanSegment) {
			defer wg.Done()

			taskCtx, taskSpan := otelhelper.StartSpan(ctx, e.tracer, "workflow.write.segment",
				attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
				attribute.Int(otelhelper.SegmentIndexKey, index),
			)
			defer taskSpan.End()

			output, err := e.writer.WriteSegment(taskCtx, e.segmentRequest(workflow, episode, speakers, plan, index, segment, ""))
			if err != nil {
				otelhelper.SetError(taskSpan, err)
				acc.AddFailure(err)

				return
			}

			output.Index = index

			if err := acc.AddSuccess(*output); err != nil {
				acc.AddFailure(err)
			}
		}(i, segment)
	}

	wg.Wait()

	return acc
}

// writeSequential runs the tasks one at a time, handing each the in-memory
// outputs of the segments before it. A failed segment does not stop the later
// ones; they simply thread whatever completed dialogue exists so far.
func (e *Engine) writeSequential(
	ctx context.Context,
	workflow *models.Workflow,
	episode *models.EpisodeProfile,
	speakers []models.Speaker,
	plan *models.Plan,
) *ResultAccumulator {
	acc := NewResultAccumulator()

	var produced []models.SegmentOutput

	for i, segment := range plan.Segments {
		previousContext := e.threader.Thread(produced)

		output, err := e.writer.WriteSegment(ctx, e.segmentRequest(workflow, episode, speakers, plan, i, segment, previousContext))
		if err != nil {
			acc.AddFailure(err)

			continue
		}

		output.Index = i

		if err := acc.AddSuccess(*output); err != nil {
			acc.AddFailure(err)

			continue
		}

		produced = append(produced, *output)
	}

	return acc
}

func (e *Engine) segmentRequest(
	workflow *models.Workflow,
	episode *models.EpisodeProfile,
	speakers []models.Speaker,
	plan *models.Plan,
	index int,
	segment models.PlanSegment,
	previousContext string,
) agents.SegmentRequest {
	return agents.SegmentRequest{
		Segment:         segment,
		Index:           index,
		Content:         workflow.Content,
		Briefing:        workflow.Briefing,
		Speakers:        speakers,
		Outline:         plan.Segments,
		PreviousContext: previousContext,
		Model:           episode.TranscriptModel,
		MinTurns:        episode.MinTurns,
		MaxTurns:        episode.MaxTurns,
	}
}

// fail moves the workflow to its terminal failed state and persists it. The
// cause stays inside the record; only a storage failure is returned.
func (e *Engine) fail(ctx context.Context, span trace.Span, workflow *models.Workflow, cause error) (*models.Workflow, error) {
	otelhelper.SetError(span, cause, attribute.String(otelhelper.WorkflowIDKey, workflow.ID))

	if err := workflow.Fail(cause.Error()); err != nil {
		return nil, err
	}

	if err := e.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		e.logger.Error("Failed to persist workflow failure",
			"workflow_id", workflow.ID, "cause", cause, "error", err)

		return nil, fmt.Errorf("workflow failed (%s) and the failure could not be persisted: %w", cause, err)
	}

	e.publishFailed(ctx, workflow)

	return workflow, nil
}

// failStorage handles a storage error after the workflow already progressed:
// a best-effort failure record is attempted, and the storage error is always
// surfaced to the caller.
func (e *Engine) failStorage(ctx context.Context, workflow *models.Workflow, cause error) (*models.Workflow, error) {
	if err := workflow.Fail(cause.Error()); err == nil {
		if saveErr := e.persistence.WorkflowRepository().Save(ctx, workflow); saveErr != nil {
			e.logger.Error("Failed to persist workflow failure after storage error",
				"workflow_id", workflow.ID, "cause", cause, "error", saveErr)
		}
	}

	return nil, fmt.Errorf("storage failure during workflow %s: %w", workflow.ID, cause)
}

func (e *Engine) publishCompleted(ctx context.Context, workflow *models.Workflow, duration time.Duration) {
	if e.eventBus == nil {
		return
	}

	event := events.WorkflowCompleted{
		BaseEvent: events.BaseEvent{
			ID:         uuid.New().String(),
			Type:       events.WorkflowCompletedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: workflow.ID,
		},
		Segments:   len(workflow.SegmentOutputs),
		TotalTurns: len(workflow.Transcript()),
		Duration:   duration,
	}

	if err := e.eventBus.Publish(ctx, workflow.ID, event); err != nil {
		e.logger.Warn("Failed to publish workflow completed event", "workflow_id", workflow.ID, "error", err)
	}
}

func (e *Engine) publishFailed(ctx context.Context, workflow *models.Workflow) {
	if e.eventBus == nil {
		return
	}

	event := events.WorkflowFailed{
		BaseEvent: events.BaseEvent{
			ID:         uuid.New().String(),
			Type:       events.WorkflowFailedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: workflow.ID,
		},
		Stage: workflow.Stage,
		Error: workflow.ErrorMessage,
	}

	if err := e.eventBus.Publish(ctx, workflow.ID, event); err != nil {
		e.logger.Warn("Failed to publish workflow failed event", "workflow_id", workflow.ID, "error", err)
	}
}
