package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"credit-risk/backend/pkg/models"
)

// MarketData is a market snapshot for a business type.
type MarketData struct {
	GrowthRate          float64  `json:"growth_rate"`
	MarketSize          string   `json:"market_size"`
	KeyDrivers          []string `json:"key_drivers"`
	Risks               []string `json:"risks"`
	MajorPlayers        []string `json:"major_players"`
	MarketConcentration string   `json:"market_concentration"`
	EntryBarriers       string   `json:"entry_barriers"`
	BusinessType        string   `json:"business_type"`
	DataSource          string   `json:"data_source"`
}

// IndustryAnalysis captures sector-level credit signals.
type IndustryAnalysis struct {
	Sector           string   `json:"sector"`
	Maturity         string   `json:"maturity"`
	Cyclicality      string   `json:"cyclicality"`
	AverageROI       float64  `json:"average_roi"`
	ProfitMargins    float64  `json:"profit_margins"`
	DebtToEquity     float64  `json:"debt_to_equity"`
	OperationalRisks []string `json:"operational_risks"`
	FinancialRisks   []string `json:"financial_risks"`
	RegulatoryRisks  []string `json:"regulatory_risks"`
	BusinessType     string   `json:"business_type"`
	DataSource       string   `json:"data_source"`
}

// FinancialRatios are derived from the request figures.
type FinancialRatios struct {
	DebtServiceCoverageRatio float64 `json:"debt_service_coverage_ratio"`
	DebtToIncomeRatio        float64 `json:"debt_to_income_ratio"`
	CreditUtilizationRatio   float64 `json:"credit_utilization_ratio"`
	CreditHistoryScore       float64 `json:"credit_history_score"`
	RiskBand                 string  `json:"risk_band"`
}

// MarketDataClient fetches market and industry data from an external
// endpoint, falling back to built-in data when the endpoint is unreachable.
type MarketDataClient struct {
	url    string
	client *http.Client
}

// NewMarketDataClient creates a new MarketDataClient.
func NewMarketDataClient(baseURL string) *MarketDataClient {
	return &MarketDataClient{
		url:    baseURL,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetMarketData returns market data for a business type. Errors from the
// external endpoint are absorbed: the built-in snapshot is returned instead.
func (c *MarketDataClient) GetMarketData(ctx context.Context, businessType string) *MarketData {
	var data MarketData
	if err := c.fetch(ctx, "/market-data/"+url.PathEscape(businessType), &data); err != nil {
		return fallbackMarketData(businessType)
	}
	return &data
}

// GetIndustryAnalysis returns industry analysis for a business type, with
// the same fallback behavior as GetMarketData.
func (c *MarketDataClient) GetIndustryAnalysis(ctx context.Context, businessType string) *IndustryAnalysis {
	var data IndustryAnalysis
	if err := c.fetch(ctx, "/industry-analysis/"+url.PathEscape(businessType), &data); err != nil {
		return fallbackIndustryAnalysis(businessType)
	}
	return &data
}

func (c *MarketDataClient) fetch(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// DeriveFinancialRatios computes coverage and leverage ratios from the
// request figures. Pure and deterministic.
func DeriveFinancialRatios(req models.CreditRiskRequest) FinancialRatios {
	var coverage, dti, utilization float64
	if req.RequestedAmount > 0 {
		coverage = req.AnnualRevenue / (req.RequestedAmount * 0.1)
	}
	if req.AnnualRevenue > 0 {
		dti = req.RequestedAmount / req.AnnualRevenue
		utilization = math.Min(req.RequestedAmount/(req.AnnualRevenue*0.3), 1.0)
	}

	band := "medium"
	switch {
	case coverage > 2.0 && dti < 0.4:
		band = "low"
	case coverage < 1.5 || dti > 0.6:
		band = "high"
	}

	return FinancialRatios{
		DebtServiceCoverageRatio: round2(coverage),
		DebtToIncomeRatio:        round2(dti),
		CreditUtilizationRatio:   round2(utilization),
		CreditHistoryScore:       math.Min(float64(req.CreditHistoryYears)/10, 1.0),
		RiskBand:                 band,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func fallbackMarketData(businessType string) *MarketData {
	return &MarketData{
		GrowthRate:          0.05,
		MarketSize:          "2.5T USD",
		KeyDrivers:          []string{"Digital transformation", "E-commerce growth", "Supply chain optimization"},
		Risks:               []string{"Economic uncertainty", "Supply chain disruptions", "Regulatory changes"},
		MajorPlayers:        []string{"Company A", "Company B", "Company C"},
		MarketConcentration: "Moderate",
		EntryBarriers:       "Medium",
		BusinessType:        businessType,
		DataSource:          "builtin",
	}
}

func fallbackIndustryAnalysis(businessType string) *IndustryAnalysis {
	return &IndustryAnalysis{
		Sector:           businessType,
		Maturity:         "Growth",
		Cyclicality:      "Low",
		AverageROI:       0.15,
		ProfitMargins:    0.25,
		DebtToEquity:     0.4,
		OperationalRisks: []string{"Technology obsolescence", "Cybersecurity threats"},
		FinancialRisks:   []string{"Cash flow volatility", "High R&D costs"},
		RegulatoryRisks:  []string{"Data privacy regulations", "Antitrust concerns"},
		BusinessType:     businessType,
		DataSource:       "builtin",
	}
}
