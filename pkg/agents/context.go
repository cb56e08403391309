package agents

import (
	"fmt"
	"strings"

	"github.com/castline/castline/pkg/models"
)

// DefaultContextWindow bounds how many earlier segments are threaded into a
// writing task for continuity.
const DefaultContextWindow = 2

// ContextThreader renders a bounded window of already-produced segment output
// into the continuity blob passed to a writing task. It only ever sees
// in-memory outputs handed over by the engine in sequential mode; in parallel
// mode the engine passes it nothing, so the blob is empty by contract.
type ContextThreader struct {
	window int
}

func NewContextThreader() *ContextThreader {
	return &ContextThreader{window: DefaultContextWindow}
}

// Thread returns the rendered dialogue of the most recent segments in
// previous, or an empty string if there are none.
func (t *ContextThreader) Thread(previous []models.SegmentOutput) string {
	if len(previous) == 0 {
		return ""
	}

	recent := previous
	if len(recent) > t.window {
		recent = recent[len(recent)-t.window:]
	}

	var b strings.Builder

	for _, segment := range recent {
		fmt.Fprintf(&b, "[Segment: %s]\n", segment.Name)

		for _, line := range segment.Lines {
			fmt.Fprintf(&b, "%s: %s\n", line.Speaker, line.Text)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
