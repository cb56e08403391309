// Package generation wraps the external text-generation capability: the
// provider call itself and the decoding of its structured output.
package generation

import (
	"context"
	"errors"
	"fmt"
)

// Request describes one generation call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Result is the raw text returned by a provider. Callers decode it against
// their expected schema; a decode failure is a generation error like any
// other.
type Result struct {
	Text  string
	Model string
}

// Provider is the generation capability behind both the planning and the
// writing pass.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// ProviderFunc adapts a function to the Provider interface, mainly for tests.
type ProviderFunc func(ctx context.Context, req Request) (*Result, error)

func (f ProviderFunc) Generate(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// PlanningStage tags generation errors raised by the planning pass.
const PlanningStage = -1

// Error is a generation failure, tagged with the segment index it belongs to
// (or PlanningStage for the plan stage).
type Error struct {
	SegmentIndex int
	Err          error
}

func (e *Error) Error() string {
	if e.SegmentIndex == PlanningStage {
		return fmt.Sprintf("generation failed during planning: %v", e.Err)
	}

	return fmt.Sprintf("generation failed for segment %d: %v", e.SegmentIndex, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewPlanningError tags err as a planning-stage generation failure.
func NewPlanningError(err error) *Error {
	return &Error{SegmentIndex: PlanningStage, Err: err}
}

// NewSegmentError tags err with the failing segment index.
func NewSegmentError(index int, err error) *Error {
	return &Error{SegmentIndex: index, Err: err}
}

// IsGenerationError checks whether err is a tagged generation failure.
func IsGenerationError(err error) bool {
	var genErr *Error

	return errors.As(err, &genErr)
}
