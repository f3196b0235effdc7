package services

// ExistingLoan is one of a customer's current credit obligations.
type ExistingLoan struct {
	LoanID             string  `json:"loan_id"`
	LoanType           string  `json:"loan_type"`
	Amount             float64 `json:"amount"`
	OutstandingBalance float64 `json:"outstanding_balance"`
	InterestRate       float64 `json:"interest_rate"`
	PaymentHistory     string  `json:"payment_history"`
	DaysPastDue        int     `json:"days_past_due"`
}

// PaymentHistory tallies on-time and late payments.
type PaymentHistory struct {
	OnTimePayments    int `json:"on_time_payments"`
	LatePayments30    int `json:"late_payments_30_days"`
	LatePayments60    int `json:"late_payments_60_days"`
	LatePayments90    int `json:"late_payments_90_days"`
}

// CreditHistory summarizes a customer's credit file.
type CreditHistory struct {
	TotalCreditLines  int            `json:"total_credit_lines"`
	ActiveCreditLines int            `json:"active_credit_lines"`
	CreditUtilization float64        `json:"credit_utilization"`
	PaymentHistory    PaymentHistory `json:"payment_history"`
}

// BusinessFinancials captures the customer's financial health signals.
type BusinessFinancials struct {
	CashFlow          string  `json:"cash_flow"`
	DebtToIncomeRatio float64 `json:"debt_to_income_ratio"`
	ProfitMargin      float64 `json:"profit_margin"`
	LiquidityRatio    float64 `json:"liquidity_ratio"`
}

// CustomerProfile is the full customer record.
type CustomerProfile struct {
	CustomerID         string             `json:"customer_id"`
	CustomerName       string             `json:"customer_name"`
	BusinessType       string             `json:"business_type"`
	AnnualRevenue      float64            `json:"annual_revenue"`
	CreditHistoryYears int                `json:"credit_history_years"`
	CreditScore        int                `json:"credit_score"`
	ExistingLoans      []ExistingLoan     `json:"existing_loans"`
	CreditHistory      CreditHistory      `json:"credit_history"`
	Financials         BusinessFinancials `json:"business_financials"`
}

// CustomerInfoService serves customer records including credit history and
// existing loans. Backed by a fixed in-memory dataset.
type CustomerInfoService struct {
	customers map[string]*CustomerProfile
}

// NewCustomerInfoService creates the service with its built-in dataset.
func NewCustomerInfoService() *CustomerInfoService {
	return &CustomerInfoService{customers: customerData()}
}

// Get returns the profile for a customer, or false when none exists.
func (s *CustomerInfoService) Get(customerID string) (*CustomerProfile, bool) {
	profile, ok := s.customers[customerID]
	return profile, ok
}

// CreditScore returns the customer's credit score, 0 when unknown.
func (s *CustomerInfoService) CreditScore(customerID string) int {
	if profile, ok := s.customers[customerID]; ok {
		return profile.CreditScore
	}
	return 0
}

// TotalDebt sums outstanding balances across the customer's existing loans.
func (s *CustomerInfoService) TotalDebt(customerID string) float64 {
	profile, ok := s.customers[customerID]
	if !ok {
		return 0
	}
	var total float64
	for _, loan := range profile.ExistingLoans {
		total += loan.OutstandingBalance
	}
	return total
}

// OnTimeRate returns the fraction of payments made on time, 0 when unknown.
func (s *CustomerInfoService) OnTimeRate(customerID string) float64 {
	profile, ok := s.customers[customerID]
	if !ok {
		return 0
	}
	ph := profile.CreditHistory.PaymentHistory
	total := ph.OnTimePayments + ph.LatePayments30 + ph.LatePayments60 + ph.LatePayments90
	if total == 0 {
		return 0
	}
	return float64(ph.OnTimePayments) / float64(total)
}

func customerData() map[string]*CustomerProfile {
	return map[string]*CustomerProfile{
		"test123": {
			CustomerID:         "test123",
			CustomerName:       "Test Company",
			BusinessType:       "Technology",
			AnnualRevenue:      1000000,
			CreditHistoryYears: 5,
			CreditScore:        750,
			ExistingLoans: []ExistingLoan{
				{LoanID: "L-001", LoanType: "Business Line of Credit", Amount: 200000, OutstandingBalance: 150000, InterestRate: 6.5, PaymentHistory: "Excellent", DaysPastDue: 0},
				{LoanID: "L-002", LoanType: "Equipment Loan", Amount: 100000, OutstandingBalance: 75000, InterestRate: 7.2, PaymentHistory: "Good", DaysPastDue: 0},
			},
			CreditHistory: CreditHistory{
				TotalCreditLines:  8,
				ActiveCreditLines: 6,
				CreditUtilization: 0.35,
				PaymentHistory:    PaymentHistory{OnTimePayments: 48, LatePayments30: 2},
			},
			Financials: BusinessFinancials{CashFlow: "Positive", DebtToIncomeRatio: 0.25, ProfitMargin: 0.15, LiquidityRatio: 2.5},
		},
		"cust456": {
			CustomerID:         "cust456",
			CustomerName:       "Manufacturing Corp",
			BusinessType:       "Manufacturing",
			AnnualRevenue:      2500000,
			CreditHistoryYears: 3,
			CreditScore:        680,
			ExistingLoans: []ExistingLoan{
				{LoanID: "L-003", LoanType: "Term Loan", Amount: 500000, OutstandingBalance: 400000, InterestRate: 8.0, PaymentHistory: "Fair", DaysPastDue: 15},
			},
			CreditHistory: CreditHistory{
				TotalCreditLines:  5,
				ActiveCreditLines: 4,
				CreditUtilization: 0.65,
				PaymentHistory:    PaymentHistory{OnTimePayments: 36, LatePayments30: 5, LatePayments60: 1},
			},
			Financials: BusinessFinancials{CashFlow: "Variable", DebtToIncomeRatio: 0.45, ProfitMargin: 0.08, LiquidityRatio: 1.2},
		},
		"retail789": {
			CustomerID:         "retail789",
			CustomerName:       "Green Grocers Market",
			BusinessType:       "Retail",
			AnnualRevenue:      800000,
			CreditHistoryYears: 8,
			CreditScore:        710,
			ExistingLoans: []ExistingLoan{
				{LoanID: "L-004", LoanType: "Working Capital Loan", Amount: 80000, OutstandingBalance: 30000, InterestRate: 8.5, PaymentHistory: "Good", DaysPastDue: 0},
			},
			CreditHistory: CreditHistory{
				TotalCreditLines:  6,
				ActiveCreditLines: 3,
				CreditUtilization: 0.28,
				PaymentHistory:    PaymentHistory{OnTimePayments: 72, LatePayments30: 3},
			},
			Financials: BusinessFinancials{CashFlow: "Positive", DebtToIncomeRatio: 0.3, ProfitMargin: 0.05, LiquidityRatio: 1.8},
		},
	}
}
