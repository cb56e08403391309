// Package memory provides an in-memory persistence implementation, used for
// tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/castline/castline/pkg/models"
	"github.com/castline/castline/pkg/persistence"
)

// Persistence implements persistence.Persistence backed by a map.
type Persistence struct {
	workflowRepo *WorkflowRepository
}

func NewPersistence() *Persistence {
	return &Persistence{
		workflowRepo: &WorkflowRepository{
			workflows: make(map[string]*models.Workflow),
		},
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// WorkflowRepository stores workflow records in memory. Records are copied on
// the way in and out so callers never share mutable state with the store.
type WorkflowRepository struct {
	mu        sync.RWMutex
	workflows map[string]*models.Workflow
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow, ok := r.workflows[id]
	if !ok {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return copyWorkflow(workflow), nil
}

func (r *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(r.workflows))
	for _, workflow := range r.workflows {
		workflows = append(workflows, copyWorkflow(workflow))
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.workflows[workflow.ID] = copyWorkflow(workflow)

	return nil
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workflows[id]; !ok {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	delete(r.workflows, id)

	return nil
}

func copyWorkflow(w *models.Workflow) *models.Workflow {
	out := *w

	if w.Plan != nil {
		plan := *w.Plan
		plan.Segments = append([]models.PlanSegment(nil), w.Plan.Segments...)
		out.Plan = &plan
	}

	if w.SegmentOutputs != nil {
		out.SegmentOutputs = append([]models.SegmentOutput(nil), w.SegmentOutputs...)
	}

	return &out
}
