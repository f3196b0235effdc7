// Package models defines the domain models for the credit risk assessment service
package models

import (
	"time"
)

// Status represents the lifecycle state of a workflow execution
type Status string

const (
	StatusCreated    Status = "created"
	StatusGenerating Status = "generating"
	StatusReflecting Status = "reflecting"
	StatusRefining   Status = "refining"

	StatusCompleted             Status = "completed"
	StatusCompletedWithFallback Status = "completed_with_fallback"
	StatusMaxIterationsReached  Status = "max_iterations_reached"
	StatusGeneratorError        Status = "generator_error"
	StatusReflectionError       Status = "reflection_error"
	StatusRefinerError          Status = "refiner_error"
	StatusWorkflowError         Status = "workflow_error"
	StatusCancelled             Status = "cancelled"
)

// Terminal reports whether no further stage calls occur in this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithFallback, StatusMaxIterationsReached,
		StatusGeneratorError, StatusReflectionError, StatusRefinerError,
		StatusWorkflowError, StatusCancelled:
		return true
	}
	return false
}

// Successful reports whether this terminal status carries a final report.
func (s Status) Successful() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithFallback, StatusMaxIterationsReached:
		return true
	}
	return false
}

// AgentType identifies which stage produced an AgentResponse
type AgentType string

const (
	AgentGenerator  AgentType = "generator"
	AgentReflection AgentType = "reflection"
	AgentRefiner    AgentType = "refiner"
	AgentWorkflow   AgentType = "workflow"
)

// CreditRiskRequest is the submission body for a new assessment
type CreditRiskRequest struct {
	CustomerID         string                 `json:"customer_id"`
	CustomerName       string                 `json:"customer_name"`
	BusinessType       string                 `json:"business_type"`
	AnnualRevenue      float64                `json:"annual_revenue"`
	CreditHistoryYears int                    `json:"credit_history_years"`
	RequestedAmount    float64                `json:"requested_amount"`
	Purpose            string                 `json:"purpose"`
	AdditionalData     map[string]interface{} `json:"additional_data,omitempty"`
}

// ReportSection is a single titled block of a credit risk report
type ReportSection struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Score   *float64 `json:"score,omitempty"`
}

// Report is the artifact produced by a successful or exhausted execution
type Report struct {
	ReportID        string          `json:"report_id"`
	CustomerID      string          `json:"customer_id"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Sections        []ReportSection `json:"sections"`
	OverallScore    float64         `json:"overall_score"`
	RiskLevel       string          `json:"risk_level"`
	Recommendations []string        `json:"recommendations"`
}

// ReportSummary is the list-view projection of a stored report
type ReportSummary struct {
	ReportID     string    `json:"report_id"`
	CustomerID   string    `json:"customer_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	RiskLevel    string    `json:"risk_level"`
	OverallScore float64   `json:"overall_score"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Evaluation is the structured scoring output of a reflection call.
// Each dimension score is in [0.0, 1.0].
type Evaluation struct {
	Accuracy       float64  `json:"accuracy"`
	Completeness   float64  `json:"completeness"`
	Structure      float64  `json:"structure"`
	Verbosity      float64  `json:"verbosity"`
	Relevance      float64  `json:"relevance"`
	Tone           float64  `json:"tone"`
	OverallScore   float64  `json:"overall_score"`
	Critique       []string `json:"critique"`
	MeetsThreshold bool     `json:"meets_threshold"`
}

// AgentResponse is the immutable record of one stage call's outcome
type AgentResponse struct {
	AgentType AgentType              `json:"agent_type"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// WorkflowExecution is the persisted state of one refinement loop run.
// Mutated only by the orchestrator; readers receive copies.
type WorkflowExecution struct {
	ID             string            `json:"request_id"`
	Status         Status            `json:"status"`
	Iteration      int               `json:"iterations"`
	AgentResponses []AgentResponse   `json:"agent_responses"`
	FinalReportID  *string           `json:"final_report_id,omitempty"`
	Request        CreditRiskRequest `json:"request"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// Duration returns total execution time in seconds. Active executions are
// measured against now; terminal ones against their completion time.
func (e *WorkflowExecution) Duration(now time.Time) float64 {
	end := now
	if e.CompletedAt != nil {
		end = *e.CompletedAt
	}
	return end.Sub(e.CreatedAt).Seconds()
}

// Clone returns a deep copy safe to hand to readers.
func (e *WorkflowExecution) Clone() *WorkflowExecution {
	cp := *e
	cp.AgentResponses = make([]AgentResponse, len(e.AgentResponses))
	copy(cp.AgentResponses, e.AgentResponses)
	if e.FinalReportID != nil {
		id := *e.FinalReportID
		cp.FinalReportID = &id
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// WorkflowResponse is returned on submission with the initial state
type WorkflowResponse struct {
	RequestID      string          `json:"request_id"`
	Status         Status          `json:"status"`
	Iterations     int             `json:"iterations"`
	TotalDuration  float64         `json:"total_duration"`
	AgentResponses []AgentResponse `json:"agent_responses"`
}

// WorkflowStatus is the polling projection of an execution
type WorkflowStatus struct {
	RequestID      string          `json:"request_id"`
	Status         Status          `json:"status"`
	Iterations     int             `json:"iterations"`
	TotalDuration  float64         `json:"total_duration"`
	AgentResponses []AgentResponse `json:"agent_responses"`
	FinalReportID  *string         `json:"final_report_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Statistics aggregates counts over all stored executions and reports
type Statistics struct {
	TotalReports           int     `json:"total_reports"`
	TotalWorkflows         int     `json:"total_workflows"`
	CompletedWorkflows     int     `json:"completed_workflows"`
	ErrorWorkflows         int     `json:"error_workflows"`
	SuccessRate            float64 `json:"success_rate"`
	AverageIterations      float64 `json:"average_iterations"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
