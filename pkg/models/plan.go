// Package models defines the core domain models for dialogue-generation workflows.
package models

// SegmentSize controls how much dialogue a planned segment is expected to carry.
type SegmentSize string

const (
	SegmentSizeShort  SegmentSize = "short"
	SegmentSizeMedium SegmentSize = "medium"
	SegmentSizeLong   SegmentSize = "long"
)

// Default turn bounds used when a profile does not override them.
const (
	DefaultMinTurns = 10
	DefaultMaxTurns = 30
)

// PlanSegment is one named, sized unit of the plan.
type PlanSegment struct {
	Name        string      `json:"name"        validate:"required"`
	Description string      `json:"description" validate:"required"`
	Size        SegmentSize `json:"size"        validate:"required,oneof=short medium long"`
}

// Plan is the ordered segmentation produced by the planning pass.
type Plan struct {
	Reasoning string        `json:"reasoning"`
	Segments  []PlanSegment `json:"segments" validate:"required,min=1,dive"`
}

// TargetTurns maps a segment size to the number of dialogue turns the writing
// pass is asked to produce. The mapping is pure: it depends only on the size
// and the caller's turn bounds, never on generation output.
func (s SegmentSize) TargetTurns(minTurns, maxTurns int) int {
	if minTurns <= 0 {
		minTurns = DefaultMinTurns
	}

	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	switch s {
	case SegmentSizeShort:
		return clamp(minTurns, 8, 15)
	case SegmentSizeMedium:
		return clamp(minTurns, 15, 25)
	case SegmentSizeLong:
		return clamp(minTurns, 20, maxTurns)
	default:
		return clamp(minTurns, 15, 25)
	}
}

// clamp raises v to low, then caps the result at high. The cap is applied
// last so a profile maximum below the size floor still wins.
func clamp(v, low, high int) int {
	if v < low {
		v = low
	}

	if v > high {
		v = high
	}

	return v
}
