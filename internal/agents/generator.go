package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"credit-risk/backend/internal/services"
	"credit-risk/backend/pkg/models"
)

// ReportGenerator builds the first report draft from the loan application,
// customer record, compliance assessment and market data. Generation refuses
// to run unless the customer's loan application is in submitted status.
type ReportGenerator struct {
	loans      *services.LoanApplicationService
	customers  *services.CustomerInfoService
	compliance *services.ComplianceService
	market     *services.MarketDataClient
}

// NewReportGenerator creates a ReportGenerator over the data collaborators.
func NewReportGenerator(loans *services.LoanApplicationService, customers *services.CustomerInfoService, compliance *services.ComplianceService, market *services.MarketDataClient) *ReportGenerator {
	return &ReportGenerator{loans: loans, customers: customers, compliance: compliance, market: market}
}

// Generate produces the initial draft for a request.
func (g *ReportGenerator) Generate(ctx context.Context, req models.CreditRiskRequest) (*models.Report, error) {
	if !g.loans.IsSubmitted(req.CustomerID) {
		status := g.loans.ApplicationStatus(req.CustomerID)
		if status == "" {
			status = "not_found"
		}
		return nil, fmt.Errorf("loan application for customer %s is not in submitted status (current: %s)", req.CustomerID, status)
	}

	ratios := services.DeriveFinancialRatios(req)
	assessment := g.compliance.Assess(req)
	marketData := g.market.GetMarketData(ctx, req.BusinessType)
	industry := g.market.GetIndustryAnalysis(ctx, req.BusinessType)
	riskLevel := deriveRiskLevel(ratios, g.customers.CreditScore(req.CustomerID), assessment)

	sections := []models.ReportSection{
		{Title: "Executive Summary", Content: g.executiveSummary(req, ratios, riskLevel)},
		{Title: "Customer Profile Analysis", Content: g.customerProfile(req)},
		{Title: "Financial Analysis", Content: g.financialAnalysis(req, ratios)},
		{Title: "Credit History Assessment", Content: g.creditHistory(req)},
		{Title: "Risk Factors Analysis", Content: g.riskFactors(req, ratios, assessment)},
		{Title: "Industry and Market Analysis", Content: g.industryAnalysis(req, marketData, industry)},
		{Title: "Recommendations", Content: g.recommendationsSection(req, riskLevel, assessment)},
	}

	return &models.Report{
		CustomerID:      req.CustomerID,
		GeneratedAt:     time.Now().UTC(),
		Sections:        sections,
		RiskLevel:       riskLevel,
		Recommendations: recommendations(req, riskLevel, assessment),
	}, nil
}

func (g *ReportGenerator) executiveSummary(req models.CreditRiskRequest, ratios services.FinancialRatios, riskLevel string) string {
	return fmt.Sprintf(
		"%s (customer %s) has requested a loan of $%.2f for %s. "+
			"The business operates in the %s sector with annual revenue of $%.2f and %d years of credit history. "+
			"Based on the financial analysis, the overall risk assessment for this credit application is %s, "+
			"with a debt service coverage ratio of %.2f and a debt-to-income ratio of %.2f.",
		req.CustomerName, req.CustomerID, req.RequestedAmount, lowerOrDefault(req.Purpose, "general business purposes"),
		req.BusinessType, req.AnnualRevenue, req.CreditHistoryYears,
		riskLevel, ratios.DebtServiceCoverageRatio, ratios.DebtToIncomeRatio)
}

func (g *ReportGenerator) customerProfile(req models.CreditRiskRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is a %s business with reported annual revenue of $%.2f. ",
		req.CustomerName, req.BusinessType, req.AnnualRevenue)

	if profile, ok := g.customers.Get(req.CustomerID); ok {
		fmt.Fprintf(&b, "The customer's file shows a credit score of %d across %d credit lines (%d active), "+
			"with credit utilization at %.0f%%. ",
			profile.CreditScore, profile.CreditHistory.TotalCreditLines,
			profile.CreditHistory.ActiveCreditLines, profile.CreditHistory.CreditUtilization*100)
		fmt.Fprintf(&b, "Business financials indicate %s cash flow, a profit margin of %.0f%% and a liquidity ratio of %.1f. ",
			strings.ToLower(profile.Financials.CashFlow), profile.Financials.ProfitMargin*100, profile.Financials.LiquidityRatio)
		fmt.Fprintf(&b, "Total outstanding debt across %d existing loans amounts to $%.2f.",
			len(profile.ExistingLoans), g.customers.TotalDebt(req.CustomerID))
	} else {
		fmt.Fprintf(&b, "No internal customer record was found; the assessment relies on the figures supplied in the application. "+
			"The customer reports %d years of credit history.", req.CreditHistoryYears)
	}
	return b.String()
}

func (g *ReportGenerator) financialAnalysis(req models.CreditRiskRequest, ratios services.FinancialRatios) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The requested amount of $%.2f represents %.0f%% of annual revenue. ",
		req.RequestedAmount, ratios.DebtToIncomeRatio*100)
	fmt.Fprintf(&b, "Key financial ratios: debt service coverage ratio %.2f, debt-to-income ratio %.2f, "+
		"credit utilization ratio %.2f, credit history score %.2f. ",
		ratios.DebtServiceCoverageRatio, ratios.DebtToIncomeRatio, ratios.CreditUtilizationRatio, ratios.CreditHistoryScore)

	if app, ok := g.loans.Get(req.CustomerID); ok {
		collateral := g.loans.CollateralInfo(req.CustomerID)
		fmt.Fprintf(&b, "The application (%s) proposes a %d-month term at %.1f%% interest, secured by %s valued at $%.2f "+
			"(collateral coverage ratio %.2f).",
			app.ApplicationID, app.LoanTermMonths, app.InterestRate,
			strings.ToLower(app.CollateralType), collateral.Value, collateral.CoverageRatio)
	} else {
		b.WriteString("No collateral details are available for this application.")
	}
	return b.String()
}

func (g *ReportGenerator) creditHistory(req models.CreditRiskRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The customer has %d years of established credit history. ", req.CreditHistoryYears)

	if profile, ok := g.customers.Get(req.CustomerID); ok {
		ph := profile.CreditHistory.PaymentHistory
		fmt.Fprintf(&b, "Payment performance shows %d on-time payments against %d payments 30 days late, "+
			"%d payments 60 days late and %d payments 90 days late, an on-time rate of %.0f%%. ",
			ph.OnTimePayments, ph.LatePayments30, ph.LatePayments60, ph.LatePayments90,
			g.customers.OnTimeRate(req.CustomerID)*100)
		for _, loan := range profile.ExistingLoans {
			fmt.Fprintf(&b, "Existing %s (%s): $%.2f outstanding of $%.2f at %.1f%%, payment history rated %s. ",
				strings.ToLower(loan.LoanType), loan.LoanID, loan.OutstandingBalance, loan.Amount, loan.InterestRate, loan.PaymentHistory)
		}
	} else {
		b.WriteString("No detailed payment records are available; the history length alone provides limited insight into repayment behavior.")
	}
	return strings.TrimSpace(b.String())
}

func (g *ReportGenerator) riskFactors(req models.CreditRiskRequest, ratios services.FinancialRatios, assessment services.ComplianceAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The financial profile places this application in the %s risk band. ", ratios.RiskBand)

	if app, ok := g.loans.Get(req.CustomerID); ok {
		if len(app.RiskFactors) > 0 {
			fmt.Fprintf(&b, "Identified risk factors: %s. ", strings.Join(app.RiskFactors, "; "))
		}
		if len(app.Strengths) > 0 {
			fmt.Fprintf(&b, "Mitigating strengths: %s. ", strings.Join(app.Strengths, "; "))
		}
	}

	fmt.Fprintf(&b, "Compliance screening passed %d of %d checks (%.0f%% compliance rate, overall status %s).",
		assessment.CompliantChecks, assessment.TotalChecks, assessment.ComplianceRate*100, assessment.OverallStatus)
	for _, c := range assessment.Checks {
		if c.Status != "compliant" {
			fmt.Fprintf(&b, " %s: %s.", c.Name, c.Details)
		}
	}
	return b.String()
}

func (g *ReportGenerator) industryAnalysis(req models.CreditRiskRequest, market *services.MarketData, industry *services.IndustryAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The %s market is sized at %s with an annual growth rate of %.1f%% and %s market concentration. ",
		req.BusinessType, market.MarketSize, market.GrowthRate*100, strings.ToLower(market.MarketConcentration))
	fmt.Fprintf(&b, "Key growth drivers include %s. Principal market risks are %s. ",
		strings.Join(market.KeyDrivers, ", "), strings.Join(market.Risks, ", "))
	fmt.Fprintf(&b, "At the sector level the industry is in its %s phase with %s cyclicality, "+
		"average ROI of %.0f%%, typical profit margins of %.0f%% and a debt-to-equity norm of %.1f. ",
		strings.ToLower(industry.Maturity), strings.ToLower(industry.Cyclicality),
		industry.AverageROI*100, industry.ProfitMargins*100, industry.DebtToEquity)
	fmt.Fprintf(&b, "Sector operational risks include %s.", strings.Join(industry.OperationalRisks, ", "))
	return b.String()
}

func (g *ReportGenerator) recommendationsSection(req models.CreditRiskRequest, riskLevel string, assessment services.ComplianceAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the %s assessment, the following actions are recommended: ", strings.ToLower(riskLevel))
	b.WriteString(strings.Join(recommendations(req, riskLevel, assessment), "; "))
	fmt.Fprintf(&b, ". Required documentation for this application: %s.",
		strings.Join(assessment.RequiredDocuments, ", "))
	return b.String()
}

// recommendations builds the report-level recommendation list.
func recommendations(req models.CreditRiskRequest, riskLevel string, assessment services.ComplianceAssessment) []string {
	recs := []string{
		"Verify all submitted financial statements with supporting documentation",
		"Confirm collateral valuation through an independent appraisal",
	}
	switch riskLevel {
	case "Low Risk":
		recs = append(recs, "Proceed with standard underwriting terms", "Schedule annual financial review")
	case "High Risk":
		recs = append(recs,
			"Require additional collateral or personal guarantees",
			"Apply risk-adjusted pricing to the interest rate",
			"Establish quarterly financial monitoring covenants")
	default:
		recs = append(recs, "Apply standard loan covenants with semi-annual review", "Monitor debt service coverage quarterly")
	}
	if assessment.OverallStatus != "compliant" {
		recs = append(recs, "Resolve outstanding compliance findings before funding")
	}
	if req.RequestedAmount > 500000 {
		recs = append(recs, "Enhanced due diligence recommended given the loan amount")
	}
	return recs
}

// deriveRiskLevel maps the financial profile to a report risk level.
func deriveRiskLevel(ratios services.FinancialRatios, creditScore int, assessment services.ComplianceAssessment) string {
	switch {
	case ratios.RiskBand == "high" || (creditScore > 0 && creditScore < 650):
		return "High Risk"
	case ratios.RiskBand == "low" && creditScore >= 720 && assessment.OverallStatus == "compliant":
		return "Low Risk"
	default:
		return "Medium Risk"
	}
}

func lowerOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return strings.ToLower(s)
}
