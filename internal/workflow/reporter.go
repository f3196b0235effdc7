package workflow

import (
	"context"
	"math"
	"time"

	"credit-risk/backend/internal/repository"
	"credit-risk/backend/pkg/models"
)

// StatusReporter projects stored execution and report state for readers.
// It never mutates; every call reflects the latest persisted state.
type StatusReporter struct {
	store   repository.WorkflowStore
	reports repository.ReportStore
}

// NewStatusReporter creates a StatusReporter over the stores.
func NewStatusReporter(store repository.WorkflowStore, reports repository.ReportStore) *StatusReporter {
	return &StatusReporter{store: store, reports: reports}
}

// Status returns the polling projection for one execution.
func (r *StatusReporter) Status(ctx context.Context, id string) (*models.WorkflowStatus, error) {
	execution, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return projectStatus(execution, time.Now().UTC()), nil
}

// Recent returns the most recently created executions, newest first.
func (r *StatusReporter) Recent(ctx context.Context, limit int) ([]*models.WorkflowStatus, error) {
	executions, err := r.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	statuses := make([]*models.WorkflowStatus, 0, len(executions))
	for _, execution := range executions {
		statuses = append(statuses, projectStatus(execution, now))
	}
	return statuses, nil
}

// Report returns a stored report by id.
func (r *StatusReporter) Report(ctx context.Context, reportID string) (*models.Report, error) {
	return r.reports.Get(ctx, reportID)
}

// Reports returns stored report summaries, newest first. The result is
// never nil, so an empty list encodes as a JSON array.
func (r *StatusReporter) Reports(ctx context.Context, limit int) ([]*models.ReportSummary, error) {
	summaries, err := r.reports.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []*models.ReportSummary{}
	}
	return summaries, nil
}

// ReportsByCustomer returns all report summaries for one customer. The
// result is never nil.
func (r *StatusReporter) ReportsByCustomer(ctx context.Context, customerID string) ([]*models.ReportSummary, error) {
	summaries, err := r.reports.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []*models.ReportSummary{}
	}
	return summaries, nil
}

// Statistics aggregates counts over all stored executions and reports.
func (r *StatusReporter) Statistics(ctx context.Context) (*models.Statistics, error) {
	executions, err := r.store.ListRecent(ctx, 0)
	if err != nil {
		return nil, err
	}
	summaries, err := r.reports.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	stats := &models.Statistics{
		TotalReports:   len(summaries),
		TotalWorkflows: len(executions),
	}

	now := time.Now().UTC()
	var iterations, duration float64
	for _, execution := range executions {
		switch execution.Status {
		case models.StatusCompleted, models.StatusCompletedWithFallback:
			stats.CompletedWorkflows++
		case models.StatusGeneratorError, models.StatusReflectionError,
			models.StatusRefinerError, models.StatusWorkflowError:
			stats.ErrorWorkflows++
		}
		iterations += float64(execution.Iteration)
		duration += execution.Duration(now)
	}
	if len(executions) > 0 {
		total := float64(len(executions))
		stats.SuccessRate = round2(float64(stats.CompletedWorkflows) / total * 100)
		stats.AverageIterations = round2(iterations / total)
		stats.AverageDurationSeconds = round2(duration / total)
	}
	return stats, nil
}

func projectStatus(execution *models.WorkflowExecution, now time.Time) *models.WorkflowStatus {
	return &models.WorkflowStatus{
		RequestID:      execution.ID,
		Status:         execution.Status,
		Iterations:     execution.Iteration,
		TotalDuration:  execution.Duration(now),
		AgentResponses: execution.AgentResponses,
		FinalReportID:  execution.FinalReportID,
		CreatedAt:      execution.CreatedAt,
		CompletedAt:    execution.CompletedAt,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
