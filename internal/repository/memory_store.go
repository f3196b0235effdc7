package repository

import (
	"context"
	"sort"
	"sync"

	"credit-risk/backend/pkg/models"
)

// MemoryWorkflowStore is the in-memory reference implementation of
// WorkflowStore. All mutations happen under the write lock, which gives the
// per-id atomic update discipline the orchestrator relies on.
type MemoryWorkflowStore struct {
	mu         sync.RWMutex
	executions map[string]*models.WorkflowExecution
}

// NewMemoryWorkflowStore creates an empty MemoryWorkflowStore.
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{
		executions: make(map[string]*models.WorkflowExecution),
	}
}

// Create persists a new execution.
func (s *MemoryWorkflowStore) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.executions[execution.ID]; ok {
		return ErrConflict
	}
	s.executions[execution.ID] = execution.Clone()
	return nil
}

// Get retrieves a copy of an execution by id.
func (s *MemoryWorkflowStore) Get(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	execution, ok := s.executions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return execution.Clone(), nil
}

// Update applies mutate under the write lock. The mutation sees a copy; the
// stored record is only replaced when mutate succeeds.
func (s *MemoryWorkflowStore) Update(ctx context.Context, id string, mutate func(*models.WorkflowExecution) error) (*models.WorkflowExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	execution, ok := s.executions[id]
	if !ok {
		return nil, ErrNotFound
	}

	updated := execution.Clone()
	if err := mutate(updated); err != nil {
		return nil, err
	}
	s.executions[id] = updated
	return updated.Clone(), nil
}

// ListRecent returns up to limit executions, most recently created first.
func (s *MemoryWorkflowStore) ListRecent(ctx context.Context, limit int) ([]*models.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	executions := make([]*models.WorkflowExecution, 0, len(s.executions))
	for _, execution := range s.executions {
		executions = append(executions, execution.Clone())
	}
	sort.Slice(executions, func(i, j int) bool {
		return executions[i].CreatedAt.After(executions[j].CreatedAt)
	})
	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}
	return executions, nil
}

// Delete removes an execution.
func (s *MemoryWorkflowStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.executions[id]; !ok {
		return ErrNotFound
	}
	delete(s.executions, id)
	return nil
}

type storedReport struct {
	report       *models.Report
	customerName string
}

// MemoryReportStore is the in-memory reference implementation of ReportStore.
type MemoryReportStore struct {
	mu      sync.RWMutex
	reports map[string]storedReport
}

// NewMemoryReportStore creates an empty MemoryReportStore.
func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{
		reports: make(map[string]storedReport),
	}
}

// Save persists a report, overwriting any previous version.
func (s *MemoryReportStore) Save(ctx context.Context, report *models.Report, customerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *report
	cp.Sections = append([]models.ReportSection(nil), report.Sections...)
	cp.Recommendations = append([]string(nil), report.Recommendations...)
	s.reports[report.ReportID] = storedReport{report: &cp, customerName: customerName}
	return nil
}

// Get retrieves a report by id.
func (s *MemoryReportStore) Get(ctx context.Context, id string) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *stored.report
	cp.Sections = append([]models.ReportSection(nil), stored.report.Sections...)
	cp.Recommendations = append([]string(nil), stored.report.Recommendations...)
	return &cp, nil
}

// List returns up to limit report summaries, most recent first.
func (s *MemoryReportStore) List(ctx context.Context, limit int) ([]*models.ReportSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]*models.ReportSummary, 0, len(s.reports))
	for _, stored := range s.reports {
		summaries = append(summaries, summarize(stored))
	}
	sortSummaries(summaries)
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// ListByCustomer returns all reports for a customer, most recent first.
func (s *MemoryReportStore) ListByCustomer(ctx context.Context, customerID string) ([]*models.ReportSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summaries []*models.ReportSummary
	for _, stored := range s.reports {
		if stored.report.CustomerID == customerID {
			summaries = append(summaries, summarize(stored))
		}
	}
	sortSummaries(summaries)
	return summaries, nil
}

// Delete removes a report.
func (s *MemoryReportStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[id]; !ok {
		return ErrNotFound
	}
	delete(s.reports, id)
	return nil
}

func summarize(stored storedReport) *models.ReportSummary {
	return &models.ReportSummary{
		ReportID:     stored.report.ReportID,
		CustomerID:   stored.report.CustomerID,
		CustomerName: stored.customerName,
		RiskLevel:    stored.report.RiskLevel,
		OverallScore: stored.report.OverallScore,
		GeneratedAt:  stored.report.GeneratedAt,
	}
}

func sortSummaries(summaries []*models.ReportSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].GeneratedAt.After(summaries[j].GeneratedAt)
	})
}
