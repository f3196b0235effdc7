package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk/backend/pkg/models"
)

func newExecution(created time.Time) *models.WorkflowExecution {
	return &models.WorkflowExecution{
		ID:             uuid.New().String(),
		Status:         models.StatusCreated,
		AgentResponses: []models.AgentResponse{},
		Request:        models.CreditRiskRequest{CustomerID: "test123", CustomerName: "Test Company"},
		CreatedAt:      created,
	}
}

func TestMemoryWorkflowStore_CreateGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	execution := newExecution(time.Now())
	require.NoError(t, store.Create(ctx, execution))

	assert.ErrorIs(t, store.Create(ctx, execution), ErrConflict)

	retrieved, err := store.Get(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.ID, retrieved.ID)
	assert.Equal(t, models.StatusCreated, retrieved.Status)

	require.NoError(t, store.Delete(ctx, execution.ID))
	assert.ErrorIs(t, store.Delete(ctx, execution.ID), ErrNotFound)

	_, err = store.Get(ctx, execution.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryWorkflowStore_UpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	execution := newExecution(time.Now())
	require.NoError(t, store.Create(ctx, execution))

	// Concurrent increments must not lose writes.
	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, execution.ID, func(e *models.WorkflowExecution) error {
				e.Iteration++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	retrieved, err := store.Get(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, retrieved.Iteration)
}

func TestMemoryWorkflowStore_UpdateErrorLeavesRecordUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	execution := newExecution(time.Now())
	require.NoError(t, store.Create(ctx, execution))

	_, err := store.Update(ctx, execution.ID, func(e *models.WorkflowExecution) error {
		e.Status = models.StatusGenerating
		return assert.AnError
	})
	require.Error(t, err)

	retrieved, err := store.Get(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, retrieved.Status)
}

func TestMemoryWorkflowStore_ReadersGetCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	execution := newExecution(time.Now())
	require.NoError(t, store.Create(ctx, execution))

	retrieved, err := store.Get(ctx, execution.ID)
	require.NoError(t, err)
	retrieved.Status = models.StatusCancelled
	retrieved.AgentResponses = append(retrieved.AgentResponses, models.AgentResponse{AgentType: models.AgentGenerator})

	again, err := store.Get(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, again.Status)
	assert.Empty(t, again.AgentResponses)
}

func TestMemoryWorkflowStore_ListRecentOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	base := time.Now()
	oldest := newExecution(base.Add(-2 * time.Hour))
	middle := newExecution(base.Add(-1 * time.Hour))
	newest := newExecution(base)
	for _, e := range []*models.WorkflowExecution{oldest, middle, newest} {
		require.NoError(t, store.Create(ctx, e))
	}

	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, newest.ID, recent[0].ID)
	assert.Equal(t, middle.ID, recent[1].ID)
}

func TestMemoryReportStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore()

	report := &models.Report{
		ReportID:     uuid.New().String(),
		CustomerID:   "test123",
		GeneratedAt:  time.Now(),
		Sections:     []models.ReportSection{{Title: "Executive Summary", Content: "ok"}},
		OverallScore: 0.85,
		RiskLevel:    "Medium Risk",
	}
	require.NoError(t, store.Save(ctx, report, "Test Company"))

	retrieved, err := store.Get(ctx, report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, report.ReportID, retrieved.ReportID)
	assert.Len(t, retrieved.Sections, 1)

	summaries, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Test Company", summaries[0].CustomerName)
	assert.Equal(t, 0.85, summaries[0].OverallScore)

	byCustomer, err := store.ListByCustomer(ctx, "test123")
	require.NoError(t, err)
	assert.Len(t, byCustomer, 1)

	none, err := store.ListByCustomer(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, store.Delete(ctx, report.ReportID))
	assert.ErrorIs(t, store.Delete(ctx, report.ReportID), ErrNotFound)
}
