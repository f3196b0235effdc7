// Package mcp exposes the credit data services as MCP tools, so agent
// clients can pull the same records the report pipeline consults.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"credit-risk/backend/internal/services"
	"credit-risk/backend/pkg/models"
)

type Server struct {
	mcpServer  *server.MCPServer
	loans      *services.LoanApplicationService
	customers  *services.CustomerInfoService
	compliance *services.ComplianceService
	market     *services.MarketDataClient
}

func NewServer(loans *services.LoanApplicationService, customers *services.CustomerInfoService,
	compliance *services.ComplianceService, market *services.MarketDataClient) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Credit Risk Data",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		loans:      loans,
		customers:  customers,
		compliance: compliance,
		market:     market,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_customer_info",
			mcp.WithDescription("Get the full customer profile including financials and existing loans"),
			mcp.WithString("customer_id", mcp.Required(), mcp.Description("The customer ID")),
		),
		s.handleGetCustomerInfo,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_credit_history",
			mcp.WithDescription("Get the customer's credit history and payment performance"),
			mcp.WithString("customer_id", mcp.Required(), mcp.Description("The customer ID")),
		),
		s.handleGetCreditHistory,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_loan_application",
			mcp.WithDescription("Get the loan application record for a customer"),
			mcp.WithString("customer_id", mcp.Required(), mcp.Description("The customer ID")),
		),
		s.handleGetLoanApplication,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_application_status",
			mcp.WithDescription("Get the loan application status for a customer"),
			mcp.WithString("customer_id", mcp.Required(), mcp.Description("The customer ID")),
		),
		s.handleGetApplicationStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_compliance_status",
			mcp.WithDescription("Run the compliance assessment for a loan request"),
			mcp.WithString("customer_id", mcp.Required(), mcp.Description("The customer ID")),
			mcp.WithNumber("requested_amount", mcp.Description("Requested loan amount; defaults to the application's amount")),
		),
		s.handleGetComplianceStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_market_data",
			mcp.WithDescription("Get market data for a business type"),
			mcp.WithString("business_type", mcp.Required(), mcp.Description("The business type, e.g. Technology")),
		),
		s.handleGetMarketData,
	)
}

func (s *Server) handleGetCustomerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID, result := stringArg(request, "customer_id")
	if result != nil {
		return result, nil
	}

	profile, ok := s.customers.Get(customerID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("No customer record for %s", customerID)), nil
	}
	return jsonResult(profile), nil
}

func (s *Server) handleGetCreditHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID, result := stringArg(request, "customer_id")
	if result != nil {
		return result, nil
	}

	profile, ok := s.customers.Get(customerID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("No customer record for %s", customerID)), nil
	}
	return jsonResult(map[string]interface{}{
		"customer_id":    customerID,
		"credit_score":   profile.CreditScore,
		"credit_history": profile.CreditHistory,
		"existing_loans": profile.ExistingLoans,
		"total_debt":     s.customers.TotalDebt(customerID),
		"on_time_rate":   s.customers.OnTimeRate(customerID),
	}), nil
}

func (s *Server) handleGetLoanApplication(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID, result := stringArg(request, "customer_id")
	if result != nil {
		return result, nil
	}

	application, ok := s.loans.Get(customerID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("No loan application for customer %s", customerID)), nil
	}
	return jsonResult(application), nil
}

func (s *Server) handleGetApplicationStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID, result := stringArg(request, "customer_id")
	if result != nil {
		return result, nil
	}

	status := s.loans.ApplicationStatus(customerID)
	if status == "" {
		return mcp.NewToolResultError(fmt.Sprintf("No loan application for customer %s", customerID)), nil
	}
	return jsonResult(map[string]interface{}{
		"customer_id":        customerID,
		"application_status": status,
	}), nil
}

func (s *Server) handleGetComplianceStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID, result := stringArg(request, "customer_id")
	if result != nil {
		return result, nil
	}

	application, ok := s.loans.Get(customerID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("No loan application for customer %s", customerID)), nil
	}

	req := models.CreditRiskRequest{
		CustomerID:         application.CustomerID,
		CustomerName:       application.CustomerName,
		BusinessType:       application.BusinessType,
		AnnualRevenue:      application.AnnualRevenue,
		CreditHistoryYears: application.CreditHistoryYears,
		RequestedAmount:    application.LoanAmount,
		Purpose:            application.LoanPurpose,
	}
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		if amount, ok := args["requested_amount"].(float64); ok && amount > 0 {
			req.RequestedAmount = amount
		}
	}

	return jsonResult(s.compliance.Assess(req)), nil
}

func (s *Server) handleGetMarketData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	businessType, result := stringArg(request, "business_type")
	if result != nil {
		return result, nil
	}

	return jsonResult(map[string]interface{}{
		"market_data":       s.market.GetMarketData(ctx, businessType),
		"industry_analysis": s.market.GetIndustryAnalysis(ctx, businessType),
	}), nil
}

func stringArg(request mcp.CallToolRequest, name string) (string, *mcp.CallToolResult) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", mcp.NewToolResultError("Invalid arguments type")
	}
	value, ok := args[name].(string)
	if !ok || value == "" {
		return "", mcp.NewToolResultError("Missing required parameter: " + name)
	}
	return value, nil
}

func jsonResult(data interface{}) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(data)
	return mcp.NewToolResultText(string(jsonBytes))
}

// MountHTTPHandlers exposes the MCP server over SSE at /mcp.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
