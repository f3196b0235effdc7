package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk/backend/internal/agents"
	"credit-risk/backend/internal/logging"
	"credit-risk/backend/internal/repository"
	"credit-risk/backend/internal/services"
	"credit-risk/backend/internal/workflow"
	"credit-risk/backend/pkg/models"
)

func newTestServer(t *testing.T) (*echo.Echo, *Server) {
	t.Helper()

	loans := services.NewLoanApplicationService()
	customers := services.NewCustomerInfoService()
	compliance := services.NewComplianceService(customers)
	market := services.NewMarketDataClient("http://localhost:0")

	store := repository.NewMemoryWorkflowStore()
	reports := repository.NewMemoryReportStore()
	log := logging.NewLogger()

	orchestrator := workflow.NewOrchestrator(store, reports,
		agents.NewReportGenerator(loans, customers, compliance, market),
		agents.NewRubricReflector(),
		agents.NewSectionRefiner(loans, customers, market),
		workflow.Options{MaxIterations: 3, StageTimeout: 5 * time.Second, FallbackOnReflectionError: true},
		log)
	reporter := workflow.NewStatusReporter(store, reports)

	e := echo.New()
	server := NewServer(orchestrator, reporter, loans, log)
	server.Register(e)
	return e, server
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

const validBody = `{
	"customer_id": "test123",
	"customer_name": "Test Company",
	"business_type": "Technology",
	"annual_revenue": 1000000,
	"credit_history_years": 5,
	"requested_amount": 500000,
	"purpose": "Business expansion"
}`

func submitAndWait(t *testing.T, e *echo.Echo) models.WorkflowStatus {
	t.Helper()
	rec := doRequest(e, http.MethodPost, "/credit-risk-assessment", validBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var created models.WorkflowResponse
	decode(t, rec, &created)
	require.NotEmpty(t, created.RequestID)
	require.Equal(t, models.StatusCreated, created.Status)

	var status models.WorkflowStatus
	require.Eventually(t, func() bool {
		poll := doRequest(e, http.MethodGet, "/workflow/"+created.RequestID, "")
		if poll.Code != http.StatusOK {
			return false
		}
		decode(t, poll, &status)
		return status.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return status
}

func TestSubmitAssessmentLifecycle(t *testing.T) {
	e, _ := newTestServer(t)

	status := submitAndWait(t, e)
	assert.True(t, status.Status.Successful(), "expected a successful terminal status, got %s", status.Status)
	require.NotNil(t, status.FinalReportID)
	assert.NotEmpty(t, status.AgentResponses)

	rec := doRequest(e, http.MethodGet, "/reports/"+*status.FinalReportID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.Report
	decode(t, rec, &report)
	assert.Equal(t, "test123", report.CustomerID)
	assert.Len(t, report.Sections, 7)
	assert.GreaterOrEqual(t, report.OverallScore, 0.0)
}

func TestSubmitAssessmentValidation(t *testing.T) {
	e, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"customer_id": `},
		{"missing fields", `{"annual_revenue": 100}`},
		{"non-positive revenue", `{"customer_id": "a", "customer_name": "b", "business_type": "c", "annual_revenue": 0, "requested_amount": 10}`},
		{"non-positive amount", `{"customer_id": "a", "customer_name": "b", "business_type": "c", "annual_revenue": 10, "requested_amount": -5}`},
		{"negative history", `{"customer_id": "a", "customer_name": "b", "business_type": "c", "annual_revenue": 10, "requested_amount": 5, "credit_history_years": -1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(e, http.MethodPost, "/credit-risk-assessment", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/problem+json")

			var pd models.ProblemDetails
			decode(t, rec, &pd)
			assert.Equal(t, http.StatusUnprocessableEntity, pd.Status)
			assert.NotEmpty(t, pd.Detail)
		})
	}
}

func TestUnknownIDsReturnProblemDocuments(t *testing.T) {
	e, _ := newTestServer(t)

	for _, target := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/workflow/nope"},
		{http.MethodDelete, "/workflow/nope"},
		{http.MethodPost, "/workflow/nope/cancel"},
		{http.MethodGet, "/reports/nope"},
		{http.MethodDelete, "/reports/nope"},
		{http.MethodGet, "/application-status/nope"},
	} {
		rec := doRequest(e, target.method, target.path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", target.method, target.path)

		var pd models.ProblemDetails
		decode(t, rec, &pd)
		assert.Equal(t, http.StatusNotFound, pd.Status)
		assert.Equal(t, target.path, pd.Instance)
	}
}

func TestDeleteWorkflowCascadesToReport(t *testing.T) {
	e, _ := newTestServer(t)
	status := submitAndWait(t, e)
	require.NotNil(t, status.FinalReportID)

	rec := doRequest(e, http.MethodDelete, "/workflow/"+status.RequestID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "Workflow deleted successfully", body["message"])
	assert.Equal(t, status.RequestID, body["request_id"])
	assert.NotEmpty(t, body["deleted_at"])

	assert.Equal(t, http.StatusNotFound, doRequest(e, http.MethodGet, "/workflow/"+status.RequestID, "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(e, http.MethodGet, "/reports/"+*status.FinalReportID, "").Code)
	// Idempotent for already-deleted executions.
	assert.Equal(t, http.StatusNotFound, doRequest(e, http.MethodDelete, "/workflow/"+status.RequestID, "").Code)
}

func TestDeleteReportResponseShape(t *testing.T) {
	e, _ := newTestServer(t)
	status := submitAndWait(t, e)
	require.NotNil(t, status.FinalReportID)

	rec := doRequest(e, http.MethodDelete, "/reports/"+*status.FinalReportID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "Report deleted successfully", body["message"])
	assert.Equal(t, *status.FinalReportID, body["report_id"])
	assert.NotEmpty(t, body["deleted_at"])
}

func TestCancelTerminalWorkflowIsNoOp(t *testing.T) {
	e, _ := newTestServer(t)
	status := submitAndWait(t, e)

	rec := doRequest(e, http.MethodPost, "/workflow/"+status.RequestID+"/cancel", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	after := doRequest(e, http.MethodGet, "/workflow/"+status.RequestID, "")
	var afterStatus models.WorkflowStatus
	decode(t, after, &afterStatus)
	assert.Equal(t, status.Status, afterStatus.Status)
}

func TestListEndpoints(t *testing.T) {
	e, _ := newTestServer(t)
	status := submitAndWait(t, e)

	t.Run("recent workflows", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/workflows/recent?limit=5", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var workflows []models.WorkflowStatus
		decode(t, rec, &workflows)
		require.Len(t, workflows, 1)
		assert.Equal(t, status.RequestID, workflows[0].RequestID)
	})

	t.Run("reports", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/reports", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var summaries []models.ReportSummary
		decode(t, rec, &summaries)
		require.Len(t, summaries, 1)
		assert.Equal(t, "Test Company", summaries[0].CustomerName)
	})

	t.Run("reports by customer", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/reports/customer/test123", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var summaries []models.ReportSummary
		decode(t, rec, &summaries)
		require.Len(t, summaries, 1)
		assert.Equal(t, "test123", summaries[0].CustomerID)
	})

	t.Run("reports for unknown customer", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/reports/customer/nobody", "")
		require.Equal(t, http.StatusOK, rec.Code)
		// An empty list is a bare JSON array, not null or a wrapper object.
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	})
}

func TestApplicationEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	t.Run("submitted applications", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/submitted-applications", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var applications []services.LoanApplication
		decode(t, rec, &applications)
		require.Len(t, applications, 3)
		for _, app := range applications {
			assert.Equal(t, "submitted", app.Status)
		}
	})

	t.Run("application under review", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/application-status/tech101", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		decode(t, rec, &body)
		assert.Equal(t, "under_review", body["application_status"])
		assert.Equal(t, "LA-2024-004", body["application_id"])
		assert.Equal(t, false, body["is_submitted"])
	})

	t.Run("submitted application", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/application-status/test123", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		decode(t, rec, &body)
		assert.Equal(t, "submitted", body["application_status"])
		assert.Equal(t, true, body["is_submitted"])
	})
}

func TestStatisticsAndHealth(t *testing.T) {
	e, _ := newTestServer(t)
	submitAndWait(t, e)

	rec := doRequest(e, http.MethodGet, "/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.Statistics
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.TotalWorkflows)
	assert.Equal(t, 1, stats.TotalReports)

	rec = doRequest(e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health models.HealthStatus
	decode(t, rec, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "credit-risk-assessment", health.Service)
}
