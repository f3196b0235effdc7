package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"credit-risk/backend/pkg/models"
)

// PostgresWorkflowStore is the durable pgx-backed implementation of
// WorkflowStore. Update runs inside a transaction with a row lock so
// concurrent updates to the same id serialize instead of losing writes.
type PostgresWorkflowStore struct {
	db *pgxpool.Pool
}

// NewPostgresWorkflowStore creates a new PostgresWorkflowStore.
func NewPostgresWorkflowStore(db *pgxpool.Pool) *PostgresWorkflowStore {
	return &PostgresWorkflowStore{db: db}
}

// EnsureSchema creates the tables used by both Postgres stores.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_executions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			iterations INT NOT NULL DEFAULT 0,
			agent_responses JSONB NOT NULL DEFAULT '[]',
			final_report_id TEXT,
			request JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS credit_risk_reports (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			risk_level TEXT NOT NULL DEFAULT '',
			overall_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			report JSONB NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL
		);`)
	return err
}

// Create persists a new execution.
func (s *PostgresWorkflowStore) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	responses, request, err := marshalExecution(execution)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO workflow_executions (id, status, iterations, agent_responses, final_report_id, request, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		execution.ID, execution.Status, execution.Iteration, responses,
		execution.FinalReportID, request, execution.CreatedAt, execution.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// Get retrieves an execution by id.
func (s *PostgresWorkflowStore) Get(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, status, iterations, agent_responses, final_report_id, request, created_at, completed_at
		FROM workflow_executions WHERE id = $1`, id)
	return scanExecution(row)
}

// Update applies mutate under a row lock.
func (s *PostgresWorkflowStore) Update(ctx context.Context, id string, mutate func(*models.WorkflowExecution) error) (*models.WorkflowExecution, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, status, iterations, agent_responses, final_report_id, request, created_at, completed_at
		FROM workflow_executions WHERE id = $1 FOR UPDATE`, id)
	execution, err := scanExecution(row)
	if err != nil {
		return nil, err
	}

	if err := mutate(execution); err != nil {
		return nil, err
	}

	responses, request, err := marshalExecution(execution)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE workflow_executions
		SET status = $2, iterations = $3, agent_responses = $4, final_report_id = $5, request = $6, completed_at = $7
		WHERE id = $1`,
		execution.ID, execution.Status, execution.Iteration, responses,
		execution.FinalReportID, request, execution.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("update execution: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return execution, nil
}

// ListRecent returns up to limit executions, most recent first. A limit of
// zero or less returns all executions.
func (s *PostgresWorkflowStore) ListRecent(ctx context.Context, limit int) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT id, status, iterations, agent_responses, final_report_id, request, created_at, completed_at
		FROM workflow_executions ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*models.WorkflowExecution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, execution)
	}
	return executions, rows.Err()
}

// Delete removes an execution.
func (s *PostgresWorkflowStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM workflow_executions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution
	var responses, request []byte
	err := row.Scan(&execution.ID, &execution.Status, &execution.Iteration,
		&responses, &execution.FinalReportID, &request,
		&execution.CreatedAt, &execution.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(responses, &execution.AgentResponses); err != nil {
		return nil, fmt.Errorf("decode agent responses: %w", err)
	}
	if err := json.Unmarshal(request, &execution.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &execution, nil
}

func marshalExecution(execution *models.WorkflowExecution) (responses, request []byte, err error) {
	responses, err = json.Marshal(execution.AgentResponses)
	if err != nil {
		return nil, nil, fmt.Errorf("encode agent responses: %w", err)
	}
	request, err = json.Marshal(execution.Request)
	if err != nil {
		return nil, nil, fmt.Errorf("encode request: %w", err)
	}
	return responses, request, nil
}

// PostgresReportStore is the durable pgx-backed implementation of ReportStore.
type PostgresReportStore struct {
	db *pgxpool.Pool
}

// NewPostgresReportStore creates a new PostgresReportStore.
func NewPostgresReportStore(db *pgxpool.Pool) *PostgresReportStore {
	return &PostgresReportStore{db: db}
}

// Save persists a report, overwriting any previous version.
func (s *PostgresReportStore) Save(ctx context.Context, report *models.Report, customerName string) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO credit_risk_reports (id, customer_id, customer_name, risk_level, overall_score, report, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			risk_level = EXCLUDED.risk_level,
			overall_score = EXCLUDED.overall_score,
			report = EXCLUDED.report,
			generated_at = EXCLUDED.generated_at`,
		report.ReportID, report.CustomerID, customerName, report.RiskLevel,
		report.OverallScore, payload, report.GeneratedAt)
	return err
}

// Get retrieves a report by id.
func (s *PostgresReportStore) Get(ctx context.Context, id string) (*models.Report, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, `SELECT report FROM credit_risk_reports WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var report models.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}

// List returns up to limit report summaries, most recent first. A limit of
// zero or less returns all reports.
func (s *PostgresReportStore) List(ctx context.Context, limit int) ([]*models.ReportSummary, error) {
	query := `
		SELECT id, customer_id, customer_name, risk_level, overall_score, generated_at
		FROM credit_risk_reports ORDER BY generated_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// ListByCustomer returns all reports for a customer, most recent first.
func (s *PostgresReportStore) ListByCustomer(ctx context.Context, customerID string) ([]*models.ReportSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, customer_id, customer_name, risk_level, overall_score, generated_at
		FROM credit_risk_reports WHERE customer_id = $1 ORDER BY generated_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// Delete removes a report.
func (s *PostgresReportStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM credit_risk_reports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSummaries(rows pgx.Rows) ([]*models.ReportSummary, error) {
	var summaries []*models.ReportSummary
	for rows.Next() {
		var summary models.ReportSummary
		if err := rows.Scan(&summary.ReportID, &summary.CustomerID, &summary.CustomerName,
			&summary.RiskLevel, &summary.OverallScore, &summary.GeneratedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, &summary)
	}
	return summaries, rows.Err()
}
