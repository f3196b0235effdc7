// Package services provides the data collaborators consulted while building
// credit risk reports: loan applications, customer records, compliance checks
// and external market data.
package services

import (
	"sort"
	"strings"
)

// Collateral describes the collateral pledged on an application.
type Collateral struct {
	Type          string  `json:"type"`
	Value         float64 `json:"value"`
	CoverageRatio float64 `json:"coverage_ratio"`
}

// LoanApplication is a loan application record keyed by customer id.
type LoanApplication struct {
	ApplicationID      string   `json:"application_id"`
	CustomerID         string   `json:"customer_id"`
	CustomerName       string   `json:"customer_name"`
	ApplicationDate    string   `json:"application_date"`
	LoanAmount         float64  `json:"loan_amount"`
	LoanPurpose        string   `json:"loan_purpose"`
	BusinessType       string   `json:"business_type"`
	AnnualRevenue      float64  `json:"annual_revenue"`
	CreditHistoryYears int      `json:"credit_history_years"`
	LoanTermMonths     int      `json:"loan_term"`
	InterestRate       float64  `json:"interest_rate"`
	CollateralType     string   `json:"collateral_type"`
	CollateralValue    float64  `json:"collateral_value"`
	Status             string   `json:"application_status"`
	SubmittedDocuments []string `json:"submitted_documents"`
	RiskFactors        []string `json:"risk_factors"`
	Strengths          []string `json:"strengths"`
}

// LoanApplicationService serves loan application records. Backed by a fixed
// in-memory dataset; a production deployment would query the loan origination
// system instead.
type LoanApplicationService struct {
	applications map[string]*LoanApplication
}

// NewLoanApplicationService creates the service with its built-in dataset.
func NewLoanApplicationService() *LoanApplicationService {
	return &LoanApplicationService{applications: loanApplicationData()}
}

// Get returns the application for a customer, or false when none exists.
func (s *LoanApplicationService) Get(customerID string) (*LoanApplication, bool) {
	app, ok := s.applications[customerID]
	return app, ok
}

// ApplicationStatus returns the application status, empty when unknown.
func (s *LoanApplicationService) ApplicationStatus(customerID string) string {
	if app, ok := s.applications[customerID]; ok {
		return app.Status
	}
	return ""
}

// IsSubmitted reports whether the customer's application is in submitted status.
func (s *LoanApplicationService) IsSubmitted(customerID string) bool {
	return strings.EqualFold(s.ApplicationStatus(customerID), "submitted")
}

// SubmittedApplications returns all applications in submitted status,
// ordered by application id for stable output.
func (s *LoanApplicationService) SubmittedApplications() []*LoanApplication {
	var apps []*LoanApplication
	for _, app := range s.applications {
		if strings.EqualFold(app.Status, "submitted") {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ApplicationID < apps[j].ApplicationID })
	return apps
}

// CollateralInfo returns collateral details with the coverage ratio derived
// from the requested loan amount.
func (s *LoanApplicationService) CollateralInfo(customerID string) Collateral {
	app, ok := s.applications[customerID]
	if !ok || app.LoanAmount == 0 {
		return Collateral{}
	}
	return Collateral{
		Type:          app.CollateralType,
		Value:         app.CollateralValue,
		CoverageRatio: app.CollateralValue / app.LoanAmount,
	}
}

func loanApplicationData() map[string]*LoanApplication {
	return map[string]*LoanApplication{
		"test123": {
			ApplicationID:      "LA-2024-001",
			CustomerID:         "test123",
			CustomerName:       "Test Company",
			ApplicationDate:    "2024-08-25",
			LoanAmount:         500000,
			LoanPurpose:        "Business expansion",
			BusinessType:       "Technology",
			AnnualRevenue:      1000000,
			CreditHistoryYears: 5,
			LoanTermMonths:     60,
			InterestRate:       7.5,
			CollateralType:     "Commercial property",
			CollateralValue:    750000,
			Status:             "submitted",
			SubmittedDocuments: []string{"Business plan", "Financial statements", "Tax returns", "Bank statements"},
			RiskFactors:        []string{"New business line", "Seasonal revenue patterns"},
			Strengths:          []string{"Strong credit history", "Adequate collateral", "Clear business plan"},
		},
		"cust456": {
			ApplicationID:      "LA-2024-002",
			CustomerID:         "cust456",
			CustomerName:       "Manufacturing Corp",
			ApplicationDate:    "2024-08-20",
			LoanAmount:         250000,
			LoanPurpose:        "Equipment purchase",
			BusinessType:       "Manufacturing",
			AnnualRevenue:      2500000,
			CreditHistoryYears: 3,
			LoanTermMonths:     36,
			InterestRate:       6.8,
			CollateralType:     "Equipment",
			CollateralValue:    300000,
			Status:             "submitted",
			SubmittedDocuments: []string{"Equipment quotes", "Financial projections", "Personal guarantee"},
			RiskFactors:        []string{"Limited operating history", "Equipment depreciation risk"},
			Strengths:          []string{"High-value collateral", "Personal guarantee", "Clear equipment need"},
		},
		"retail789": {
			ApplicationID:      "LA-2024-003",
			CustomerID:         "retail789",
			CustomerName:       "Green Grocers Market",
			ApplicationDate:    "2024-08-22",
			LoanAmount:         150000,
			LoanPurpose:        "Working capital",
			BusinessType:       "Retail",
			AnnualRevenue:      800000,
			CreditHistoryYears: 8,
			LoanTermMonths:     24,
			InterestRate:       8.2,
			CollateralType:     "Inventory",
			CollateralValue:    200000,
			Status:             "submitted",
			SubmittedDocuments: []string{"Inventory valuation", "Cash flow projections", "Business license", "Insurance certificates"},
			RiskFactors:        []string{"Seasonal business", "Low profit margins", "Inventory obsolescence risk"},
			Strengths:          []string{"Established business", "Good location", "Steady customer base"},
		},
		"tech101": {
			ApplicationID:      "LA-2024-004",
			CustomerID:         "tech101",
			CustomerName:       "Innovate Solutions LLC",
			ApplicationDate:    "2024-08-18",
			LoanAmount:         750000,
			LoanPurpose:        "Product development",
			BusinessType:       "Technology",
			AnnualRevenue:      3200000,
			CreditHistoryYears: 6,
			LoanTermMonths:     48,
			InterestRate:       7.1,
			CollateralType:     "Intellectual property",
			CollateralValue:    900000,
			Status:             "under_review",
			SubmittedDocuments: []string{"Product roadmap", "Financial statements", "Patent portfolio"},
			RiskFactors:        []string{"Technology obsolescence", "High R&D spend"},
			Strengths:          []string{"Recurring revenue", "Strong IP portfolio", "Experienced team"},
		},
	}
}
