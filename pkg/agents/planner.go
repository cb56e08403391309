// Package agents implements the two specialist passes of the dialogue
// workflow: the planner, which segments the source into an ordered outline,
// and the writer, which turns one planned segment into dialogue.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/castline/castline/pkg/generation"
	"github.com/castline/castline/pkg/models"
)

const planMaxTokens = 3000

const planSchema = `{
	"type": "object",
	"properties": {
		"reasoning": {"type": "string"},
		"segments": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": "string"},
					"description": {"type": "string"},
					"size": {"type": "string", "enum": ["short", "medium", "long"]}
				},
				"required": ["name", "description", "size"]
			}
		}
	},
	"required": ["reasoning", "segments"]
}`

// PlanRequest carries everything the planning pass needs to propose an
// ordered, sized segmentation of the source.
type PlanRequest struct {
	Content     string
	Briefing    string
	Speakers    []models.Speaker
	NumSegments int
	Model       string
}

// Planner implements the planning capability on top of a generation provider.
type Planner struct {
	provider generation.Provider
	logger   *slog.Logger
}

func NewPlanner(provider generation.Provider, logger *slog.Logger) *Planner {
	return &Planner{
		provider: provider,
		logger:   logger.With("module", "planner"),
	}
}

// CreatePlan runs the planning pass once. Provider failures and outputs that
// fail schema decoding are both reported as planning-stage generation errors.
func (p *Planner) CreatePlan(ctx context.Context, req PlanRequest) (*models.Plan, error) {
	p.logger.Info("Starting plan generation", "num_segments", req.NumSegments)

	result, err := p.provider.Generate(ctx, generation.Request{
		Model:     req.Model,
		System:    planSystemPrompt,
		Prompt:    buildPlanPrompt(req),
		MaxTokens: planMaxTokens,
	})
	if err != nil {
		return nil, generation.NewPlanningError(err)
	}

	var plan models.Plan
	if err := generation.DecodeInto(result.Text, planSchema, &plan); err != nil {
		return nil, generation.NewPlanningError(err)
	}

	p.logger.Info("Plan generated", "segments", len(plan.Segments))

	return &plan, nil
}

const planSystemPrompt = `You are the planning editor for a multi-speaker audio show.
Read the source material and propose an ordered outline of segments that flow
naturally into one another. Respond with a single JSON object of the form
{"reasoning": "...", "segments": [{"name": "...", "description": "...", "size": "short|medium|long"}]}
and nothing else.`

func buildPlanPrompt(req PlanRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Briefing:\n%s\n\n", req.Briefing)
	fmt.Fprintf(&b, "Create exactly %d segments.\n\n", req.NumSegments)

	b.WriteString("Speakers:\n")
	writeSpeakerRoster(&b, req.Speakers)

	fmt.Fprintf(&b, "\nSource material:\n%s\n", req.Content)

	return b.String()
}

func writeSpeakerRoster(b *strings.Builder, speakers []models.Speaker) {
	for _, speaker := range speakers {
		if speaker.Persona != "" {
			fmt.Fprintf(b, "- %s: %s\n", speaker.Name, speaker.Persona)
		} else {
			fmt.Fprintf(b, "- %s\n", speaker.Name)
		}
	}
}
