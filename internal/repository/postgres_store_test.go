package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"credit-risk/backend/pkg/models"
)

func TestPostgresStores(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	require.NoError(t, EnsureSchema(ctx, pool))

	workflows := NewPostgresWorkflowStore(pool)
	reports := NewPostgresReportStore(pool)

	t.Run("create, update and get execution", func(t *testing.T) {
		execution := &models.WorkflowExecution{
			ID:             uuid.New().String(),
			Status:         models.StatusCreated,
			AgentResponses: []models.AgentResponse{},
			Request:        models.CreditRiskRequest{CustomerID: "test123", CustomerName: "Test Company"},
			CreatedAt:      time.Now().UTC(),
		}
		require.NoError(t, workflows.Create(ctx, execution))
		assert.ErrorIs(t, workflows.Create(ctx, execution), ErrConflict)

		updated, err := workflows.Update(ctx, execution.ID, func(e *models.WorkflowExecution) error {
			e.Status = models.StatusGenerating
			e.AgentResponses = append(e.AgentResponses, models.AgentResponse{
				AgentType: models.AgentGenerator,
				Content:   "report generated",
				Timestamp: time.Now().UTC(),
			})
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusGenerating, updated.Status)

		retrieved, err := workflows.Get(ctx, execution.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusGenerating, retrieved.Status)
		require.Len(t, retrieved.AgentResponses, 1)
		assert.Equal(t, models.AgentGenerator, retrieved.AgentResponses[0].AgentType)
		assert.Equal(t, "test123", retrieved.Request.CustomerID)
	})

	t.Run("list recent ordering and delete", func(t *testing.T) {
		older := &models.WorkflowExecution{
			ID: uuid.New().String(), Status: models.StatusCompleted,
			AgentResponses: []models.AgentResponse{},
			CreatedAt:      time.Now().UTC().Add(-time.Hour),
		}
		newer := &models.WorkflowExecution{
			ID: uuid.New().String(), Status: models.StatusCreated,
			AgentResponses: []models.AgentResponse{},
			CreatedAt:      time.Now().UTC().Add(time.Hour),
		}
		require.NoError(t, workflows.Create(ctx, older))
		require.NoError(t, workflows.Create(ctx, newer))

		recent, err := workflows.ListRecent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, newer.ID, recent[0].ID)

		require.NoError(t, workflows.Delete(ctx, newer.ID))
		assert.ErrorIs(t, workflows.Delete(ctx, newer.ID), ErrNotFound)
		_, err = workflows.Get(ctx, newer.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("report lifecycle", func(t *testing.T) {
		report := &models.Report{
			ReportID:     uuid.New().String(),
			CustomerID:   "cust456",
			GeneratedAt:  time.Now().UTC(),
			Sections:     []models.ReportSection{{Title: "Executive Summary", Content: "fine"}},
			OverallScore: 0.91,
			RiskLevel:    "Low Risk",
		}
		require.NoError(t, reports.Save(ctx, report, "Manufacturing Corp"))

		retrieved, err := reports.Get(ctx, report.ReportID)
		require.NoError(t, err)
		assert.Equal(t, report.ReportID, retrieved.ReportID)
		assert.Equal(t, 0.91, retrieved.OverallScore)

		summaries, err := reports.ListByCustomer(ctx, "cust456")
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, "Manufacturing Corp", summaries[0].CustomerName)

		require.NoError(t, reports.Delete(ctx, report.ReportID))
		assert.ErrorIs(t, reports.Delete(ctx, report.ReportID), ErrNotFound)
	})
}
