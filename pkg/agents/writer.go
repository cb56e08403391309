package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/castline/castline/pkg/generation"
	"github.com/castline/castline/pkg/models"
)

const segmentMaxTokens = 4000

const segmentSchema = `{
	"type": "object",
	"properties": {
		"lines": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"properties": {
					"speaker": {"type": "string"},
					"text": {"type": "string"}
				},
				"required": ["speaker", "text"]
			}
		}
	},
	"required": ["lines"]
}`

// SegmentRequest carries everything one writing task needs. Index is the
// segment's position in the plan, assigned by the engine. PreviousContext is
// the continuity blob threaded from earlier segments; it is empty in parallel
// execution.
type SegmentRequest struct {
	Segment         models.PlanSegment
	Index           int
	Content         string
	Briefing        string
	Speakers        []models.Speaker
	Outline         []models.PlanSegment
	PreviousContext string
	Model           string
	MinTurns        int
	MaxTurns        int
}

// Writer implements the segment-writing capability on top of a generation
// provider.
type Writer struct {
	provider generation.Provider
	logger   *slog.Logger
}

func NewWriter(provider generation.Provider, logger *slog.Logger) *Writer {
	return &Writer{
		provider: provider,
		logger:   logger.With("module", "writer"),
	}
}

// WriteSegment generates the dialogue for one planned segment. Failures are
// tagged with the request's segment index.
func (w *Writer) WriteSegment(ctx context.Context, req SegmentRequest) (*models.SegmentOutput, error) {
	logger := w.logger.With("segment_index", req.Index, "segment_name", req.Segment.Name)
	logger.Info("Starting segment generation", "size", req.Segment.Size)

	result, err := w.provider.Generate(ctx, generation.Request{
		Model:     req.Model,
		System:    segmentSystemPrompt,
		Prompt:    buildSegmentPrompt(req),
		MaxTokens: segmentMaxTokens,
	})
	if err != nil {
		return nil, generation.NewSegmentError(req.Index, err)
	}

	var decoded struct {
		Lines []models.DialogueLine `json:"lines"`
	}

	if err := generation.DecodeInto(result.Text, segmentSchema, &decoded); err != nil {
		return nil, generation.NewSegmentError(req.Index, err)
	}

	logger.Info("Segment generated", "turns", len(decoded.Lines))

	return &models.SegmentOutput{
		Index: req.Index,
		Name:  req.Segment.Name,
		Lines: decoded.Lines,
		Metadata: map[string]any{
			"segment_size": string(req.Segment.Size),
			"num_turns":    len(decoded.Lines),
		},
	}, nil
}

const segmentSystemPrompt = `You write natural spoken dialogue for a multi-speaker audio show.
Stay in character for every speaker and keep the conversation flowing.
Respond with a single JSON object of the form
{"lines": [{"speaker": "...", "text": "..."}]} and nothing else.`

func buildSegmentPrompt(req SegmentRequest) string {
	targetTurns := req.Segment.Size.TargetTurns(req.MinTurns, req.MaxTurns)

	var b strings.Builder

	fmt.Fprintf(&b, "Briefing:\n%s\n\n", req.Briefing)

	b.WriteString("Speakers:\n")
	writeSpeakerRoster(&b, req.Speakers)

	b.WriteString("\nFull episode outline:\n")

	for i, segment := range req.Outline {
		fmt.Fprintf(&b, "%d. %s (%s): %s\n", i+1, segment.Name, segment.Size, segment.Description)
	}

	fmt.Fprintf(&b, "\nWrite segment %d, %q: %s\n", req.Index+1, req.Segment.Name, req.Segment.Description)
	fmt.Fprintf(&b, "Aim for about %d dialogue turns.\n", targetTurns)

	switch {
	case req.Index == 0:
		b.WriteString("This is the opening segment: welcome the listeners and introduce the topic.\n")
	case req.Index == len(req.Outline)-1:
		b.WriteString("This is the closing segment: wrap up the conversation and sign off.\n")
	}

	if req.PreviousContext != "" {
		fmt.Fprintf(&b, "\nDialogue so far, for continuity:\n%s\n", req.PreviousContext)
	}

	fmt.Fprintf(&b, "\nSource material:\n%s\n", req.Content)

	return b.String()
}
