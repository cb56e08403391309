package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// WorkflowStage identifies which phase of the task graph a workflow is in.
type WorkflowStage string

const (
	StagePlanning  WorkflowStage = "planning"
	StageWriting   WorkflowStage = "writing"
	StageCompleted WorkflowStage = "completed"
	StageFailed    WorkflowStage = "failed"
)

// WorkflowStatus identifies the outcome axis of the workflow state.
type WorkflowStatus string

const (
	StatusPending    WorkflowStatus = "pending"
	StatusInProgress WorkflowStatus = "in_progress"
	StatusCompleted  WorkflowStatus = "completed"
	StatusFailed     WorkflowStatus = "failed"
)

var (
	// ErrTerminalState is returned when a transition is attempted on a
	// workflow that already reached completed or failed.
	ErrTerminalState = errors.New("workflow is in a terminal state")

	// ErrInvalidTransition is returned when a transition is attempted from a
	// state that does not permit it.
	ErrInvalidTransition = errors.New("invalid workflow transition")

	// ErrPlanAlreadySet is returned when a plan would be written twice.
	ErrPlanAlreadySet = errors.New("plan already set")

	// ErrIncompleteOutputs is returned when a commit is attempted with a
	// partial or malformed output set.
	ErrIncompleteOutputs = errors.New("segment outputs do not cover the plan")
)

// Workflow is the persisted aggregate for one dialogue-generation run. The
// configuration fields are immutable after creation; stage, status, plan,
// outputs and the error message only move forward through the transition
// methods below.
type Workflow struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required,min=3"`

	// Exactly one of Content and ContentRef is non-empty (enforced at
	// creation by the service layer).
	Content    string `json:"content,omitempty"`
	ContentRef string `json:"content_ref,omitempty"`

	Briefing           string `json:"briefing"`
	EpisodeProfileName string `json:"episode_profile_name"`
	SpeakerProfileName string `json:"speaker_profile_name"`
	NumSegments        int    `json:"num_segments"`

	Stage  WorkflowStage  `json:"stage"`
	Status WorkflowStatus `json:"status"`

	Plan           *Plan           `json:"plan,omitempty"`
	SegmentOutputs []SegmentOutput `json:"segment_outputs,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the workflow reached an end state. Terminal
// workflows reject every further transition.
func (w *Workflow) Terminal() bool {
	return w.Status == StatusCompleted || w.Status == StatusFailed
}

// StartPlanning moves (planning, pending) to (planning, in_progress).
func (w *Workflow) StartPlanning() error {
	if w.Terminal() {
		return ErrTerminalState
	}

	if w.Stage != StagePlanning || w.Status != StatusPending {
		return fmt.Errorf("%w: cannot start planning from (%s, %s)", ErrInvalidTransition, w.Stage, w.Status)
	}

	w.Status = StatusInProgress
	w.touch()

	return nil
}

// BeginWriting records the plan exactly once and moves the workflow from
// (planning, in_progress) to (writing, in_progress).
func (w *Workflow) BeginWriting(plan *Plan) error {
	if w.Terminal() {
		return ErrTerminalState
	}

	if w.Stage != StagePlanning || w.Status != StatusInProgress {
		return fmt.Errorf("%w: cannot begin writing from (%s, %s)", ErrInvalidTransition, w.Stage, w.Status)
	}

	if w.Plan != nil {
		return ErrPlanAlreadySet
	}

	if plan == nil || len(plan.Segments) == 0 {
		return fmt.Errorf("%w: plan has no segments", ErrInvalidTransition)
	}

	w.Plan = plan
	w.Stage = StageWriting
	w.touch()

	return nil
}

// Complete commits the full output set atomically and moves the workflow from
// (writing, in_progress) to (completed, completed). The outputs must cover
// every plan index exactly once; anything else is rejected so a partial set is
// never persisted as the final value.
func (w *Workflow) Complete(outputs []SegmentOutput) error {
	if w.Terminal() {
		return ErrTerminalState
	}

	if w.Stage != StageWriting || w.Status != StatusInProgress {
		return fmt.Errorf("%w: cannot complete from (%s, %s)", ErrInvalidTransition, w.Stage, w.Status)
	}

	if w.Plan == nil {
		return fmt.Errorf("%w: no plan recorded", ErrInvalidTransition)
	}

	if len(outputs) != len(w.Plan.Segments) {
		return fmt.Errorf("%w: got %d outputs for %d segments", ErrIncompleteOutputs, len(outputs), len(w.Plan.Segments))
	}

	sorted := make([]SegmentOutput, len(outputs))
	copy(sorted, outputs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	for i, out := range sorted {
		if out.Index != i {
			return fmt.Errorf("%w: missing or duplicate segment index %d", ErrIncompleteOutputs, i)
		}
	}

	w.SegmentOutputs = sorted
	w.Stage = StageCompleted
	w.Status = StatusCompleted
	w.touch()

	return nil
}

// Fail moves any non-terminal workflow to (failed, failed) with the given
// error message.
func (w *Workflow) Fail(errorMessage string) error {
	if w.Terminal() {
		return ErrTerminalState
	}

	w.Stage = StageFailed
	w.Status = StatusFailed
	w.ErrorMessage = errorMessage
	w.touch()

	return nil
}

// Transcript flattens the committed segment outputs, in index order, into one
// ordered list of dialogue lines. Callers must check the workflow completed
// first; an uncommitted workflow yields nil.
func (w *Workflow) Transcript() []DialogueLine {
	if len(w.SegmentOutputs) == 0 {
		return nil
	}

	var lines []DialogueLine
	for _, out := range w.SegmentOutputs {
		lines = append(lines, out.Lines...)
	}

	return lines
}

func (w *Workflow) touch() {
	w.UpdatedAt = time.Now().UTC()
}
