package agents

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/castline/castline/pkg/generation"
	"github.com/castline/castline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func testSpeakers() []models.Speaker {
	return []models.Speaker{
		{Name: "Ana", Persona: "curious host"},
		{Name: "Leo", Persona: "domain expert"},
	}
}

func TestPlanner_CreatePlan(t *testing.T) {
	var prompt string

	provider := generation.ProviderFunc(func(_ context.Context, req generation.Request) (*generation.Result, error) {
		prompt = req.Prompt

		return &generation.Result{Text: `{
			"reasoning": "open broad, then dig in",
			"segments": [
				{"name": "Intro", "description": "welcome", "size": "short"},
				{"name": "Deep dive", "description": "the details", "size": "long"}
			]
		}`}, nil
	})

	planner := NewPlanner(provider, testLogger())

	plan, err := planner.CreatePlan(context.Background(), PlanRequest{
		Content:     "source text",
		Briefing:    "Episode: Test",
		Speakers:    testSpeakers(),
		NumSegments: 2,
	})
	require.NoError(t, err)

	require.Len(t, plan.Segments, 2)
	assert.Equal(t, "Intro", plan.Segments[0].Name)
	assert.Equal(t, models.SegmentSizeLong, plan.Segments[1].Size)

	assert.Contains(t, prompt, "exactly 2 segments")
	assert.Contains(t, prompt, "Ana: curious host")
	assert.Contains(t, prompt, "source text")
}

func TestPlanner_ProviderFailureIsPlanningError(t *testing.T) {
	provider := generation.ProviderFunc(func(_ context.Context, _ generation.Request) (*generation.Result, error) {
		return nil, assert.AnError
	})

	planner := NewPlanner(provider, testLogger())

	_, err := planner.CreatePlan(context.Background(), PlanRequest{NumSegments: 3})
	require.Error(t, err)
	assert.True(t, generation.IsGenerationError(err))
	assert.Contains(t, err.Error(), "planning")
}

func TestPlanner_DecodeFailureIsPlanningError(t *testing.T) {
	provider := generation.ProviderFunc(func(_ context.Context, _ generation.Request) (*generation.Result, error) {
		return &generation.Result{Text: "not json at all"}, nil
	})

	planner := NewPlanner(provider, testLogger())

	_, err := planner.CreatePlan(context.Background(), PlanRequest{NumSegments: 3})
	require.Error(t, err)
	assert.True(t, generation.IsGenerationError(err))
}

func TestWriter_WriteSegment(t *testing.T) {
	var prompt string

	provider := generation.ProviderFunc(func(_ context.Context, req generation.Request) (*generation.Result, error) {
		prompt = req.Prompt

		return &generation.Result{Text: `{"lines": [
			{"speaker": "Ana", "text": "Welcome back!"},
			{"speaker": "Leo", "text": "Glad to be here."}
		]}`}, nil
	})

	writer := NewWriter(provider, testLogger())

	outline := []models.PlanSegment{
		{Name: "Intro", Description: "welcome", Size: models.SegmentSizeShort},
		{Name: "Deep dive", Description: "details", Size: models.SegmentSizeLong},
	}

	output, err := writer.WriteSegment(context.Background(), SegmentRequest{
		Segment:  outline[1],
		Index:    1,
		Content:  "source text",
		Briefing: "Episode: Test",
		Speakers: testSpeakers(),
		Outline:  outline,
		MinTurns: 10,
		MaxTurns: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, output.Index)
	assert.Equal(t, "Deep dive", output.Name)
	require.Len(t, output.Lines, 2)
	assert.Equal(t, "Ana", output.Lines[0].Speaker)
	assert.Equal(t, 2, output.Metadata["num_turns"])

	// Long segment with min 10: clamp(10, 20, 30) = 20 turns.
	assert.Contains(t, prompt, "about 20 dialogue turns")
	assert.Contains(t, prompt, "closing segment")
	assert.NotContains(t, prompt, "for continuity")
}

func TestWriter_FailureTaggedWithIndex(t *testing.T) {
	provider := generation.ProviderFunc(func(_ context.Context, _ generation.Request) (*generation.Result, error) {
		return nil, assert.AnError
	})

	writer := NewWriter(provider, testLogger())

	_, err := writer.WriteSegment(context.Background(), SegmentRequest{
		Segment: models.PlanSegment{Name: "Intro", Size: models.SegmentSizeShort},
		Index:   3,
	})
	require.Error(t, err)
	assert.True(t, generation.IsGenerationError(err))
	assert.Contains(t, err.Error(), "segment 3")
}

func TestWriter_ContinuityContextIncluded(t *testing.T) {
	var prompt string

	provider := generation.ProviderFunc(func(_ context.Context, req generation.Request) (*generation.Result, error) {
		prompt = req.Prompt

		return &generation.Result{Text: `{"lines": [{"speaker": "Ana", "text": "So, where were we?"}]}`}, nil
	})

	writer := NewWriter(provider, testLogger())

	_, err := writer.WriteSegment(context.Background(), SegmentRequest{
		Segment:         models.PlanSegment{Name: "Part 2", Description: "more", Size: models.SegmentSizeMedium},
		Index:           1,
		Outline:         []models.PlanSegment{{Name: "Part 1"}, {Name: "Part 2"}},
		PreviousContext: "[Segment: Part 1]\nAna: Hello everyone",
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "for continuity")
	assert.Contains(t, prompt, "Ana: Hello everyone")
}

func TestContextThreader_Thread(t *testing.T) {
	threader := NewContextThreader()

	assert.Empty(t, threader.Thread(nil))

	outputs := []models.SegmentOutput{
		{Index: 0, Name: "One", Lines: []models.DialogueLine{{Speaker: "Ana", Text: "first"}}},
		{Index: 1, Name: "Two", Lines: []models.DialogueLine{{Speaker: "Leo", Text: "second"}}},
		{Index: 2, Name: "Three", Lines: []models.DialogueLine{{Speaker: "Ana", Text: "third"}}},
	}

	blob := threader.Thread(outputs)

	// Window is bounded: only the most recent two segments are threaded.
	assert.NotContains(t, blob, "[Segment: One]")
	assert.Contains(t, blob, "[Segment: Two]")
	assert.Contains(t, blob, "[Segment: Three]")
	assert.True(t, strings.Contains(blob, "Leo: second"))
}
