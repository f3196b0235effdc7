// Command seed populates the Postgres stores with demo executions and
// reports for local development.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"credit-risk/backend/internal/config"
	"credit-risk/backend/internal/logging"
	"credit-risk/backend/internal/repository"
	"credit-risk/backend/pkg/models"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	workflows := repository.NewPostgresWorkflowStore(pool)
	reports := repository.NewPostgresReportStore(pool)

	seeds := []struct {
		customerID   string
		customerName string
		businessType string
		revenue      float64
		amount       float64
		score        float64
		riskLevel    string
		iterations   int
	}{
		{"test123", "Test Company", "Technology", 1000000, 500000, 0.91, "Low Risk", 1},
		{"cust456", "Manufacturing Corp", "Manufacturing", 2500000, 250000, 0.84, "Medium Risk", 2},
		{"retail789", "Green Grocers Market", "Retail", 800000, 150000, 0.88, "Medium Risk", 0},
	}

	for _, seed := range seeds {
		id := uuid.NewString()
		created := time.Now().UTC().Add(-time.Duration(seed.iterations+1) * time.Hour)
		completed := created.Add(45 * time.Second)

		execution := &models.WorkflowExecution{
			ID:        id,
			Status:    models.StatusCompleted,
			Iteration: seed.iterations,
			AgentResponses: []models.AgentResponse{
				{
					AgentType: models.AgentGenerator,
					Content:   "Credit risk assessment report generated successfully",
					Timestamp: created.Add(10 * time.Second),
				},
				{
					AgentType: models.AgentReflection,
					Content:   fmt.Sprintf("Report quality assessment completed. Overall score: %.3f - MEETS QUALITY THRESHOLD (threshold: 0.80)", seed.score),
					Timestamp: created.Add(30 * time.Second),
				},
			},
			FinalReportID: &id,
			Request: models.CreditRiskRequest{
				CustomerID:      seed.customerID,
				CustomerName:    seed.customerName,
				BusinessType:    seed.businessType,
				AnnualRevenue:   seed.revenue,
				RequestedAmount: seed.amount,
				Purpose:         "Demo seed data",
			},
			CreatedAt:   created,
			CompletedAt: &completed,
		}
		if err := workflows.Create(ctx, execution); err != nil {
			log.Printf("Failed to seed execution for %s: %v", seed.customerID, err)
			continue
		}

		report := &models.Report{
			ReportID:     id,
			CustomerID:   seed.customerID,
			GeneratedAt:  completed,
			OverallScore: seed.score,
			RiskLevel:    seed.riskLevel,
			Sections: []models.ReportSection{
				{
					Title: "Executive Summary",
					Content: fmt.Sprintf("%s requested a loan of $%.2f against annual revenue of $%.2f. "+
						"The assessment concluded with a %s rating.",
						seed.customerName, seed.amount, seed.revenue, seed.riskLevel),
				},
			},
			Recommendations: []string{
				"Verify all submitted financial statements with supporting documentation",
				"Confirm collateral valuation through an independent appraisal",
			},
		}
		if err := reports.Save(ctx, report, seed.customerName); err != nil {
			log.Printf("Failed to seed report for %s: %v", seed.customerID, err)
			continue
		}
		logger.Info("Seeded execution", "customer_id", seed.customerID, "request_id", id)
	}
	logger.Info("Seeding complete")
}
