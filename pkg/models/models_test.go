package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkflow() *Workflow {
	return &Workflow{
		ID:     "wf-1",
		Name:   "Test Episode",
		Stage:  StagePlanning,
		Status: StatusPending,
	}
}

func testPlan(sizes ...SegmentSize) *Plan {
	plan := &Plan{Reasoning: "test"}
	for _, size := range sizes {
		plan.Segments = append(plan.Segments, PlanSegment{
			Name:        "segment",
			Description: "desc",
			Size:        size,
		})
	}

	return plan
}

func TestTargetTurns(t *testing.T) {
	tests := []struct {
		name     string
		size     SegmentSize
		minTurns int
		maxTurns int
		expected int
	}{
		{"short clamps low", SegmentSizeShort, 5, 30, 8},
		{"short passes through", SegmentSizeShort, 10, 30, 10},
		{"short clamps high", SegmentSizeShort, 20, 30, 15},
		{"medium clamps low", SegmentSizeMedium, 10, 30, 15},
		{"medium passes through", SegmentSizeMedium, 18, 30, 18},
		{"medium clamps high", SegmentSizeMedium, 28, 30, 25},
		{"long clamps low", SegmentSizeLong, 10, 30, 20},
		{"long passes through", SegmentSizeLong, 22, 30, 22},
		{"long clamps to max", SegmentSizeLong, 40, 30, 30},
		{"long max below floor wins", SegmentSizeLong, 10, 18, 18},
		{"defaults applied when zero", SegmentSizeShort, 0, 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.size.TargetTurns(tt.minTurns, tt.maxTurns)
			assert.Equal(t, tt.expected, got)

			// Sizing is pure: calling again yields the same value.
			assert.Equal(t, got, tt.size.TargetTurns(tt.minTurns, tt.maxTurns))
		})
	}
}

func TestWorkflow_HappyPathTransitions(t *testing.T) {
	w := newTestWorkflow()

	require.NoError(t, w.StartPlanning())
	assert.Equal(t, StagePlanning, w.Stage)
	assert.Equal(t, StatusInProgress, w.Status)

	plan := testPlan(SegmentSizeShort, SegmentSizeMedium)
	require.NoError(t, w.BeginWriting(plan))
	assert.Equal(t, StageWriting, w.Stage)
	assert.Equal(t, StatusInProgress, w.Status)
	assert.Equal(t, plan, w.Plan)

	outputs := []SegmentOutput{
		{Index: 1, Name: "b", Lines: []DialogueLine{{Speaker: "Ana", Text: "hi"}}},
		{Index: 0, Name: "a", Lines: []DialogueLine{{Speaker: "Leo", Text: "hello"}}},
	}
	require.NoError(t, w.Complete(outputs))
	assert.Equal(t, StageCompleted, w.Stage)
	assert.Equal(t, StatusCompleted, w.Status)
	assert.True(t, w.Terminal())

	// Committed outputs are sorted by index regardless of input order.
	assert.Equal(t, 0, w.SegmentOutputs[0].Index)
	assert.Equal(t, 1, w.SegmentOutputs[1].Index)
}

func TestWorkflow_StartPlanningRequiresPending(t *testing.T) {
	w := newTestWorkflow()
	require.NoError(t, w.StartPlanning())

	err := w.StartPlanning()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWorkflow_BeginWritingGuards(t *testing.T) {
	w := newTestWorkflow()

	err := w.BeginWriting(testPlan(SegmentSizeShort))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, w.StartPlanning())
	require.NoError(t, w.BeginWriting(testPlan(SegmentSizeShort)))

	err = w.BeginWriting(testPlan(SegmentSizeShort))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWorkflow_CompleteRejectsPartialOutputs(t *testing.T) {
	w := newTestWorkflow()
	require.NoError(t, w.StartPlanning())
	require.NoError(t, w.BeginWriting(testPlan(SegmentSizeShort, SegmentSizeMedium, SegmentSizeLong)))

	err := w.Complete([]SegmentOutput{{Index: 0}, {Index: 2}})
	assert.ErrorIs(t, err, ErrIncompleteOutputs)
	assert.Empty(t, w.SegmentOutputs)
	assert.False(t, w.Terminal())
}

func TestWorkflow_CompleteRejectsDuplicateIndex(t *testing.T) {
	w := newTestWorkflow()
	require.NoError(t, w.StartPlanning())
	require.NoError(t, w.BeginWriting(testPlan(SegmentSizeShort, SegmentSizeMedium)))

	err := w.Complete([]SegmentOutput{{Index: 0}, {Index: 0}})
	assert.ErrorIs(t, err, ErrIncompleteOutputs)
}

func TestWorkflow_FailFromAnyNonTerminalState(t *testing.T) {
	w := newTestWorkflow()
	require.NoError(t, w.Fail("planning exploded"))
	assert.Equal(t, StageFailed, w.Stage)
	assert.Equal(t, StatusFailed, w.Status)
	assert.Equal(t, "planning exploded", w.ErrorMessage)

	// Terminal states reject every further transition.
	assert.ErrorIs(t, w.StartPlanning(), ErrTerminalState)
	assert.ErrorIs(t, w.BeginWriting(testPlan(SegmentSizeShort)), ErrTerminalState)
	assert.ErrorIs(t, w.Complete(nil), ErrTerminalState)
	assert.ErrorIs(t, w.Fail("again"), ErrTerminalState)
}

func TestWorkflow_CompletedRejectsFail(t *testing.T) {
	w := newTestWorkflow()
	require.NoError(t, w.StartPlanning())
	require.NoError(t, w.BeginWriting(testPlan(SegmentSizeShort)))
	require.NoError(t, w.Complete([]SegmentOutput{{Index: 0}}))

	assert.ErrorIs(t, w.Fail("too late"), ErrTerminalState)
	assert.Empty(t, w.ErrorMessage)
}

func TestWorkflow_Transcript(t *testing.T) {
	w := newTestWorkflow()
	require.NoError(t, w.StartPlanning())
	require.NoError(t, w.BeginWriting(testPlan(SegmentSizeShort, SegmentSizeMedium)))

	assert.Nil(t, w.Transcript())

	require.NoError(t, w.Complete([]SegmentOutput{
		{Index: 0, Lines: []DialogueLine{{Speaker: "Ana", Text: "one"}, {Speaker: "Leo", Text: "two"}}},
		{Index: 1, Lines: []DialogueLine{{Speaker: "Ana", Text: "three"}}},
	}))

	transcript := w.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, "one", transcript[0].Text)
	assert.Equal(t, "three", transcript[2].Text)
}
