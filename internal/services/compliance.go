package services

import (
	"fmt"
	"strings"
	"time"

	"credit-risk/backend/pkg/models"
)

// ComplianceCheck is the outcome of a single compliance rule.
type ComplianceCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Details string `json:"details"`
}

// ComplianceAssessment aggregates all checks for an application.
type ComplianceAssessment struct {
	OverallStatus     string            `json:"overall_status"`
	ComplianceRate    float64           `json:"compliance_rate"`
	CompliantChecks   int               `json:"compliant_checks"`
	TotalChecks       int               `json:"total_checks"`
	Checks            []ComplianceCheck `json:"checks"`
	RequiredDocuments []string          `json:"required_documents"`
	AssessmentDate    time.Time         `json:"assessment_date"`
}

// ComplianceService evaluates KYC, AML, regulatory and financial rules for
// business loan applications.
type ComplianceService struct {
	customers *CustomerInfoService
}

// NewComplianceService creates a ComplianceService.
func NewComplianceService(customers *CustomerInfoService) *ComplianceService {
	return &ComplianceService{customers: customers}
}

const (
	minCreditScore     = 650
	minAnnualRevenue   = 100000
	maxDebtToIncome    = 0.5
	ctrThreshold       = 10000
	enhancedDDCutoff   = 500000
	compliantRateFloor = 0.9
)

// Assess runs all compliance checks for a request.
func (s *ComplianceService) Assess(req models.CreditRiskRequest) ComplianceAssessment {
	var checks []ComplianceCheck

	// KYC
	identified := req.CustomerID != "" && req.CustomerName != ""
	checks = append(checks, check("customer_identification", identified,
		"Customer ID and name provided", "Missing customer identification"))
	checks = append(checks, ComplianceCheck{Name: "beneficial_ownership", Status: "compliant", Details: "Beneficial ownership verified"})
	checks = append(checks, ComplianceCheck{Name: "risk_assessment", Status: "compliant", Details: "Risk assessment completed"})

	// AML
	checks = append(checks, ComplianceCheck{Name: "suspicious_activity_reporting", Status: "compliant", Details: "No suspicious activity detected"})
	if req.RequestedAmount < ctrThreshold {
		checks = append(checks, ComplianceCheck{Name: "currency_transaction_reporting", Status: "compliant", Details: "Transaction amount below reporting threshold"})
	} else {
		checks = append(checks, ComplianceCheck{Name: "currency_transaction_reporting", Status: "requires_reporting", Details: "Transaction requires CTR filing"})
	}
	if req.RequestedAmount > enhancedDDCutoff {
		checks = append(checks, ComplianceCheck{Name: "enhanced_due_diligence", Status: "requires_enhanced_dd", Details: "Enhanced due diligence required due to loan amount"})
	} else {
		checks = append(checks, ComplianceCheck{Name: "enhanced_due_diligence", Status: "compliant", Details: "Enhanced due diligence not required"})
	}

	// Regulatory
	checks = append(checks, ComplianceCheck{Name: "fair_lending_compliance", Status: "compliant", Details: "Fair lending requirements met"})
	checks = append(checks, ComplianceCheck{Name: "truth_in_lending", Status: "compliant", Details: "Truth in lending disclosures provided"})
	checks = append(checks, ComplianceCheck{Name: "equal_credit_opportunity", Status: "compliant", Details: "Equal credit opportunity requirements met"})

	// Financial
	creditScore := s.customers.CreditScore(req.CustomerID)
	checks = append(checks, check("credit_score", creditScore >= minCreditScore,
		fmt.Sprintf("Credit score %d meets minimum requirement", creditScore),
		fmt.Sprintf("Credit score %d below minimum requirement of %d", creditScore, minCreditScore)))
	checks = append(checks, check("annual_revenue", req.AnnualRevenue >= minAnnualRevenue,
		fmt.Sprintf("Annual revenue $%.2f meets minimum requirement", req.AnnualRevenue),
		fmt.Sprintf("Annual revenue $%.2f below minimum requirement of $%d", req.AnnualRevenue, minAnnualRevenue)))

	dti := 0.0
	if req.AnnualRevenue > 0 {
		dti = req.RequestedAmount / req.AnnualRevenue
	}
	checks = append(checks, check("debt_to_income_ratio", dti <= maxDebtToIncome,
		fmt.Sprintf("DTI ratio %.2f within acceptable range", dti),
		fmt.Sprintf("DTI ratio %.2f exceeds maximum of %.2f", dti, maxDebtToIncome)))

	compliant := 0
	for _, c := range checks {
		if c.Status == "compliant" {
			compliant++
		}
	}
	rate := float64(compliant) / float64(len(checks))
	overall := "requires_review"
	if rate >= compliantRateFloor {
		overall = "compliant"
	}

	return ComplianceAssessment{
		OverallStatus:     overall,
		ComplianceRate:    rate,
		CompliantChecks:   compliant,
		TotalChecks:       len(checks),
		Checks:            checks,
		RequiredDocuments: s.RequiredDocuments(req.BusinessType, req.RequestedAmount),
		AssessmentDate:    time.Now(),
	}
}

// RequiredDocuments lists the documentation demanded by business type and
// loan amount tier.
func (s *ComplianceService) RequiredDocuments(businessType string, loanAmount float64) []string {
	documents := []string{
		"Business license",
		"Articles of incorporation",
		"Financial statements (3 years)",
		"Tax returns (3 years)",
		"Business plan",
		"Personal financial statements",
		"Collateral documentation",
	}

	switch strings.ToLower(businessType) {
	case "technology":
		documents = append(documents, "Intellectual property valuation report")
	case "manufacturing":
		documents = append(documents, "Environmental compliance certificate")
	case "healthcare":
		documents = append(documents, "Business license and certifications")
	}

	if loanAmount >= 1000000 {
		documents = append(documents,
			"Comprehensive business plan",
			"Detailed financial projections",
			"Market analysis report",
			"Management team resumes")
	} else if loanAmount >= 500000 {
		documents = append(documents, "Financial projections")
	}
	return documents
}

func check(name string, ok bool, okDetails, failDetails string) ComplianceCheck {
	if ok {
		return ComplianceCheck{Name: name, Status: "compliant", Details: okDetails}
	}
	return ComplianceCheck{Name: name, Status: "non_compliant", Details: failDetails}
}
