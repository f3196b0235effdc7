// Package api contains the HTTP handlers for the credit risk service.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"credit-risk/backend/internal/logging"
	"credit-risk/backend/internal/repository"
	"credit-risk/backend/internal/services"
	"credit-risk/backend/internal/workflow"
	"credit-risk/backend/pkg/models"
)

const serviceVersion = "1.0.0"

// Server holds the dependencies for the API server.
type Server struct {
	Orchestrator *workflow.Orchestrator
	Reporter     *workflow.StatusReporter
	Loans        *services.LoanApplicationService
	Log          *logging.Logger
}

// NewServer creates a new Server.
func NewServer(orchestrator *workflow.Orchestrator, reporter *workflow.StatusReporter, loans *services.LoanApplicationService, log *logging.Logger) *Server {
	return &Server{Orchestrator: orchestrator, Reporter: reporter, Loans: loans, Log: log}
}

// Register mounts all routes on the echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.POST("/credit-risk-assessment", s.SubmitAssessment)
	e.GET("/workflow/:request_id", s.GetWorkflowStatus)
	e.DELETE("/workflow/:request_id", s.DeleteWorkflow)
	e.POST("/workflow/:request_id/cancel", s.CancelWorkflow)
	e.GET("/workflows/recent", s.ListRecentWorkflows)

	e.GET("/reports", s.ListReports)
	e.GET("/reports/customer/:customer_id", s.ListReportsByCustomer)
	e.GET("/reports/:report_id", s.GetReport)
	e.DELETE("/reports/:report_id", s.DeleteReport)

	e.GET("/submitted-applications", s.ListSubmittedApplications)
	e.GET("/application-status/:customer_id", s.GetApplicationStatus)

	e.GET("/statistics", s.GetStatistics)
	e.GET("/health", s.HandleHealth)
}

// SubmitAssessment validates the request, creates an execution and starts
// the refinement loop asynchronously.
// (POST /credit-risk-assessment)
func (s *Server) SubmitAssessment(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreditRiskRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusUnprocessableEntity, "Invalid request body", err.Error())
	}
	if detail := validateRequest(req); detail != "" {
		return problem(c, http.StatusUnprocessableEntity, "Validation failed", detail)
	}

	execution, err := s.Orchestrator.Submit(ctx, req)
	if err != nil {
		s.Log.Error("submission failed", "customer_id", req.CustomerID, "error", err)
		return problem(c, http.StatusInternalServerError, "Failed to start assessment", err.Error())
	}

	return c.JSON(http.StatusOK, models.WorkflowResponse{
		RequestID:      execution.ID,
		Status:         execution.Status,
		Iterations:     execution.Iteration,
		TotalDuration:  0,
		AgentResponses: []models.AgentResponse{},
	})
}

// GetWorkflowStatus returns the polling projection of an execution.
// (GET /workflow/:request_id)
func (s *Server) GetWorkflowStatus(c echo.Context) error {
	status, err := s.Reporter.Status(c.Request().Context(), c.Param("request_id"))
	if errors.Is(err, repository.ErrNotFound) {
		return problem(c, http.StatusNotFound, "Workflow not found", "no execution with id "+c.Param("request_id"))
	}
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Failed to read workflow", err.Error())
	}
	return c.JSON(http.StatusOK, status)
}

// DeleteWorkflow removes an execution and its report if one exists.
// (DELETE /workflow/:request_id)
func (s *Server) DeleteWorkflow(c echo.Context) error {
	id := c.Param("request_id")
	err := s.Orchestrator.Delete(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return problem(c, http.StatusNotFound, "Workflow not found", "no execution with id "+id)
	}
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Failed to delete workflow", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "Workflow deleted successfully",
		"request_id": id,
		"deleted_at": time.Now().UTC(),
	})
}

// CancelWorkflow requests cooperative cancellation; already-terminal
// executions are left untouched.
// (POST /workflow/:request_id/cancel)
func (s *Server) CancelWorkflow(c echo.Context) error {
	id := c.Param("request_id")
	err := s.Orchestrator.Cancel(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return problem(c, http.StatusNotFound, "Workflow not found", "no execution with id "+id)
	}
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Failed to cancel workflow", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "Cancellation requested",
		"request_id": id,
	})
}

// ListRecentWorkflows returns recent executions, newest first.
// (GET /workflows/recent?limit=N)
func (s *Server) ListRecentWorkflows(c echo.Context) error {
	statuses, err := s.Reporter.Recent(c.Request().Context(), queryLimit(c, 10))
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Failed to list workflows", err.Error())
	}
	return c.JSON(http.StatusOK, statuses)
}

// GetReport returns a stored report.
// (GET /reports/:report_id)
func (s *Server) GetReport(c echo.Context) error {
	report, err := s.Reporter.Report(c.Request().Context(), c.Param("report_id"))
	if errors.Is(err, repository.ErrNotFound) {
		return problem(c, http.StatusNotFound, "Report not found", "no report with id "+c.Param("report_id"))
	}
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Failed to read report", err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

// DeleteReport removes a stored report.
// (DELETE /reports/:report_id)
func (s *Server) DeleteReport(c echo.Context) error {
	id := c.Param("report_id")
	err := s.Orchestrator.DeleteReport(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return problem(c, http.StatusNotFound, "Report not found", "no report with id "+id)
	}
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Failed to delete report", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "Report deleted successfully",
		"report_id":  id,
		"deleted_at": time.Now().UTC(),
	})
}

// ListReports returns report summaries, newest first.
// (GET /reports?limit=N)
func (s *Server) ListReports(c echo.Context) error {
	summaries, err := s.Reporter.Reports(c.Request().Context(), queryLimit(c, 50))
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Failed to list reports", err.Error())
	}
	return c.JSON(http.StatusOK, summaries)
}

// ListReportsByCustomer returns all report summaries for one customer.
// (GET /reports/customer/:customer_id)
func (s *Server) ListReportsByCustomer(c echo.Context) error {
	summaries, err := s.Reporter.ReportsByCustomer(c.Request().Context(), c.Param("customer_id"))
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Failed to list reports", err.Error())
	}
	return c.JSON(http.StatusOK, summaries)
}

// ListSubmittedApplications returns all loan applications in submitted
// status.
// (GET /submitted-applications)
func (s *Server) ListSubmittedApplications(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Loans.SubmittedApplications())
}

// GetApplicationStatus returns the loan application status for a customer.
// (GET /application-status/:customer_id)
func (s *Server) GetApplicationStatus(c echo.Context) error {
	customerID := c.Param("customer_id")
	application, ok := s.Loans.Get(customerID)
	if !ok {
		return problem(c, http.StatusNotFound, "Application not found", "no loan application for customer "+customerID)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"customer_id":        customerID,
		"application_id":     application.ApplicationID,
		"application_status": application.Status,
		"is_submitted":       s.Loans.IsSubmitted(customerID),
	})
}

// GetStatistics returns aggregate counts over stored executions and reports.
// (GET /statistics)
func (s *Server) GetStatistics(c echo.Context) error {
	stats, err := s.Reporter.Statistics(c.Request().Context())
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Failed to compute statistics", err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// HandleHealth returns basic health status (always returns 200 OK).
// (GET /health)
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthStatus{
		Status:    "healthy",
		Service:   "credit-risk-assessment",
		Version:   serviceVersion,
		Timestamp: time.Now().UTC(),
	})
}

// validateRequest returns a problem detail string for invalid submissions,
// empty when the request is acceptable.
func validateRequest(req models.CreditRiskRequest) string {
	var missing []string
	if strings.TrimSpace(req.CustomerID) == "" {
		missing = append(missing, "customer_id")
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		missing = append(missing, "customer_name")
	}
	if strings.TrimSpace(req.BusinessType) == "" {
		missing = append(missing, "business_type")
	}
	if len(missing) > 0 {
		return "missing required fields: " + strings.Join(missing, ", ")
	}
	if req.AnnualRevenue <= 0 {
		return "annual_revenue must be positive"
	}
	if req.RequestedAmount <= 0 {
		return "requested_amount must be positive"
	}
	if req.CreditHistoryYears < 0 {
		return "credit_history_years must not be negative"
	}
	return ""
}

// problem writes an RFC 7807 Problem Details JSON error response.
func problem(c echo.Context, status int, title, detail string) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, models.ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

func queryLimit(c echo.Context, fallback int) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
