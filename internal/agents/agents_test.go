package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk/backend/internal/services"
	"credit-risk/backend/pkg/models"
)

func newTestCollaborators() (*services.LoanApplicationService, *services.CustomerInfoService, *services.ComplianceService, *services.MarketDataClient) {
	loans := services.NewLoanApplicationService()
	customers := services.NewCustomerInfoService()
	compliance := services.NewComplianceService(customers)
	// Unreachable endpoint forces the built-in market data fallback.
	market := services.NewMarketDataClient("http://localhost:0")
	return loans, customers, compliance, market
}

func testRequest() models.CreditRiskRequest {
	return models.CreditRiskRequest{
		CustomerID:         "test123",
		CustomerName:       "Test Company",
		BusinessType:       "Technology",
		AnnualRevenue:      1000000,
		CreditHistoryYears: 5,
		RequestedAmount:    500000,
		Purpose:            "Business expansion",
	}
}

func TestGeneratorProducesAllSections(t *testing.T) {
	loans, customers, compliance, market := newTestCollaborators()
	gen := NewReportGenerator(loans, customers, compliance, market)

	report, err := gen.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, report.Sections, len(RequiredSections))

	for i, section := range report.Sections {
		assert.Equal(t, RequiredSections[i], section.Title)
		assert.GreaterOrEqual(t, len(section.Content), minSectionLength,
			"section %q should carry meaningful detail", section.Title)
		assert.LessOrEqual(t, len(section.Content), maxSectionLength)
	}
	assert.Equal(t, "test123", report.CustomerID)
	assert.Contains(t, []string{"Low Risk", "Medium Risk", "High Risk"}, report.RiskLevel)
	assert.NotEmpty(t, report.Recommendations)
}

func TestGeneratorRejectsUnsubmittedApplication(t *testing.T) {
	loans, customers, compliance, market := newTestCollaborators()
	gen := NewReportGenerator(loans, customers, compliance, market)

	t.Run("under review", func(t *testing.T) {
		req := testRequest()
		req.CustomerID = "tech101"
		report, err := gen.Generate(context.Background(), req)
		require.Error(t, err)
		assert.Nil(t, report)
		assert.Contains(t, err.Error(), "under_review")
	})

	t.Run("unknown customer", func(t *testing.T) {
		req := testRequest()
		req.CustomerID = "nobody"
		_, err := gen.Generate(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not_found")
	})
}

func TestReflectorScoresCompleteReportHighly(t *testing.T) {
	loans, customers, compliance, market := newTestCollaborators()
	gen := NewReportGenerator(loans, customers, compliance, market)
	reflector := NewRubricReflector()

	report, err := gen.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	eval, err := reflector.Evaluate(context.Background(), report)
	require.NoError(t, err)

	assert.Equal(t, 1.0, eval.Completeness)
	assert.Equal(t, 1.0, eval.Structure)
	assert.Equal(t, 1.0, eval.Verbosity)
	assert.GreaterOrEqual(t, eval.Accuracy, 0.8)
	assert.GreaterOrEqual(t, eval.Relevance, 0.8)
	assert.GreaterOrEqual(t, eval.Tone, 0.8)
	assert.Empty(t, eval.Critique)
}

func TestReflectorIsDeterministic(t *testing.T) {
	loans, customers, compliance, market := newTestCollaborators()
	gen := NewReportGenerator(loans, customers, compliance, market)
	reflector := NewRubricReflector()

	report, err := gen.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	first, err := reflector.Evaluate(context.Background(), report)
	require.NoError(t, err)
	second, err := reflector.Evaluate(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReflectorFlagsDefects(t *testing.T) {
	reflector := NewRubricReflector()
	report := &models.Report{
		CustomerID: "test123",
		Sections: []models.ReportSection{
			{Title: "Executive Summary", Content: "Too short."},
			{Title: "Financial Analysis", Content: strings.Repeat("The loan figures repeat. ", 100)},
			{Title: "Recommendations", Content: "Approve it! This deal is awesome and the revenue is great. " + strings.Repeat("More detail on the credit terms. ", 5)},
		},
	}

	eval, err := reflector.Evaluate(context.Background(), report)
	require.NoError(t, err)

	assert.Less(t, eval.Completeness, 0.8)
	assert.Less(t, eval.Tone, 1.0)
	assert.Contains(t, eval.Critique, "Missing required section: Customer Profile Analysis")
	assert.Contains(t, eval.Critique, "Section 'Executive Summary' is too brief and needs expansion")
	assert.Contains(t, eval.Critique, "Section 'Financial Analysis' is too verbose and should be condensed")
}

func TestReflectorHandlesEmptyReport(t *testing.T) {
	reflector := NewRubricReflector()
	eval, err := reflector.Evaluate(context.Background(), &models.Report{})
	require.NoError(t, err)
	assert.Zero(t, eval.Completeness)
	assert.NotEmpty(t, eval.Critique)
}

func TestRefinerRepairsDefects(t *testing.T) {
	loans, customers, _, market := newTestCollaborators()
	refiner := NewSectionRefiner(loans, customers, market)
	reflector := NewRubricReflector()

	draft := &models.Report{
		CustomerID: "test123",
		RiskLevel:  "Medium Risk",
		Sections: []models.ReportSection{
			{Title: "Executive Summary", Content: "Too short."},
			{Title: "Financial Analysis", Content: strings.Repeat("The loan figures repeat. ", 120)},
			{Title: "Recommendations", Content: "Approve it! " + strings.Repeat("Detail on the credit terms and collateral. ", 5)},
		},
	}
	eval, err := reflector.Evaluate(context.Background(), draft)
	require.NoError(t, err)

	refined, err := refiner.Refine(context.Background(), draft, eval)
	require.NoError(t, err)
	require.Len(t, refined.Sections, len(RequiredSections))

	for i, section := range refined.Sections {
		assert.Equal(t, RequiredSections[i], section.Title)
		assert.GreaterOrEqual(t, len(section.Content), minSectionLength)
		assert.LessOrEqual(t, len(section.Content), maxSectionLength)
		assert.NotContains(t, section.Content, "!")
	}

	// The input draft is not mutated.
	assert.Len(t, draft.Sections, 3)
	assert.Contains(t, draft.Sections[2].Content, "!")

	// The refined draft scores at least as well on every rubric dimension.
	refinedEval, err := reflector.Evaluate(context.Background(), refined)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, refinedEval.Completeness, eval.Completeness)
	assert.GreaterOrEqual(t, refinedEval.Verbosity, eval.Verbosity)
	assert.GreaterOrEqual(t, refinedEval.Structure, eval.Structure)
	assert.Empty(t, refinedEval.Critique)
}

func TestRefinerWithoutApplicationRecord(t *testing.T) {
	loans, customers, _, market := newTestCollaborators()
	refiner := NewSectionRefiner(loans, customers, market)

	draft := &models.Report{CustomerID: "nobody", Sections: []models.ReportSection{
		{Title: "Executive Summary", Content: "Thin."},
	}}
	refined, err := refiner.Refine(context.Background(), draft, &models.Evaluation{})
	require.NoError(t, err)
	require.Len(t, refined.Sections, len(RequiredSections))
	for _, section := range refined.Sections {
		assert.GreaterOrEqual(t, len(section.Content), minSectionLength)
	}
}

func TestRefinerRejectsNilDraft(t *testing.T) {
	loans, customers, _, market := newTestCollaborators()
	refiner := NewSectionRefiner(loans, customers, market)
	_, err := refiner.Refine(context.Background(), nil, &models.Evaluation{})
	assert.Error(t, err)
}
