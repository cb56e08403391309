// Package persistence provides the storage abstraction for workflow records.
package persistence

import (
	"context"

	"github.com/castline/castline/pkg/models"
)

// WorkflowRepository is the record store consumed by the engine and the
// service layer. Save has upsert semantics; GetAll returns workflows newest
// first.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
