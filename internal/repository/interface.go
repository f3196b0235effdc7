package repository

import (
	"context"
	"errors"

	"credit-risk/backend/pkg/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on id collision during creation.
	ErrConflict = errors.New("id already exists")
)

// WorkflowStore is the single source of truth for execution state.
// Update must be atomic with respect to concurrent updates to the same id.
type WorkflowStore interface {
	// Create persists a new execution. Fails with ErrConflict on id collision.
	Create(ctx context.Context, execution *models.WorkflowExecution) error
	// Get retrieves an execution by id.
	Get(ctx context.Context, id string) (*models.WorkflowExecution, error)
	// Update applies mutate to the stored execution atomically and returns
	// the updated record.
	Update(ctx context.Context, id string, mutate func(*models.WorkflowExecution) error) (*models.WorkflowExecution, error)
	// ListRecent returns up to limit executions, most recent first.
	ListRecent(ctx context.Context, limit int) ([]*models.WorkflowExecution, error)
	// Delete removes an execution. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error
}

// ReportStore persists materialized credit risk reports.
type ReportStore interface {
	// Save persists a report, overwriting any previous version.
	Save(ctx context.Context, report *models.Report, customerName string) error
	// Get retrieves a report by id.
	Get(ctx context.Context, id string) (*models.Report, error)
	// List returns up to limit report summaries, most recent first.
	List(ctx context.Context, limit int) ([]*models.ReportSummary, error)
	// ListByCustomer returns all reports for a customer, most recent first.
	ListByCustomer(ctx context.Context, customerID string) ([]*models.ReportSummary, error)
	// Delete removes a report. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error
}
