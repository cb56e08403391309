package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/castline/castline/pkg/models"
)

// ResultAccumulator merges the outcomes of concurrently running writing
// tasks. Successes merge by set union keyed on segment index; failures merge
// by concatenation. Both merges are commutative and associative, so task
// completion order never affects the merged value — only the explicit
// sort-by-index in Outputs determines transcript order.
type ResultAccumulator struct {
	mu        sync.Mutex
	successes map[int]models.SegmentOutput
	failures  []error
}

func NewResultAccumulator() *ResultAccumulator {
	return &ResultAccumulator{
		successes: make(map[int]models.SegmentOutput),
	}
}

// AddSuccess records one task's output. A duplicate segment index is a
// programming error in the fan-out, not a runtime condition to tolerate, so
// it is reported rather than silently overwritten.
func (a *ResultAccumulator) AddSuccess(output models.SegmentOutput) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.successes[output.Index]; exists {
		return fmt.Errorf("duplicate output for segment index %d", output.Index)
	}

	a.successes[output.Index] = output

	return nil
}

// AddFailure records one task's error, already tagged with its segment index.
func (a *ResultAccumulator) AddFailure(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.failures = append(a.failures, err)
}

// Merge folds another accumulator into this one under the same union rules.
func (a *ResultAccumulator) Merge(other *ResultAccumulator) error {
	other.mu.Lock()
	outputs := make([]models.SegmentOutput, 0, len(other.successes))

	for _, output := range other.successes {
		outputs = append(outputs, output)
	}

	failures := append([]error(nil), other.failures...)
	other.mu.Unlock()

	for _, output := range outputs {
		if err := a.AddSuccess(output); err != nil {
			return err
		}
	}

	for _, err := range failures {
		a.AddFailure(err)
	}

	return nil
}

// SuccessCount returns how many distinct segment outputs have been recorded.
func (a *ResultAccumulator) SuccessCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.successes)
}

// Outputs returns the recorded outputs sorted by segment index.
func (a *ResultAccumulator) Outputs() []models.SegmentOutput {
	a.mu.Lock()
	defer a.mu.Unlock()

	outputs := make([]models.SegmentOutput, 0, len(a.successes))
	for _, output := range a.successes {
		outputs = append(outputs, output)
	}

	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Index < outputs[j].Index })

	return outputs
}

// Failures returns the recorded task errors.
func (a *ResultAccumulator) Failures() []error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]error(nil), a.failures...)
}

// FailureMessage concatenates every task error into one deterministic
// message, independent of the order failures arrived in.
func (a *ResultAccumulator) FailureMessage() string {
	failures := a.Failures()

	messages := make([]string, 0, len(failures))
	for _, err := range failures {
		messages = append(messages, err.Error())
	}

	sort.Strings(messages)

	return strings.Join(messages, "; ")
}
