package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"credit-risk/backend/internal/agents"
	"credit-risk/backend/internal/api"
	"credit-risk/backend/internal/config"
	"credit-risk/backend/internal/logging"
	"credit-risk/backend/internal/mcp"
	"credit-risk/backend/internal/repository"
	"credit-risk/backend/internal/services"
	"credit-risk/backend/internal/workflow"
)

func main() {
	root := &cobra.Command{
		Use:   "server",
		Short: "Credit risk assessment service",
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})

	if err := root.Execute(); err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}

func serve() error {
	ctx := context.Background()
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("Configuration loaded", "addr", cfg.Server.Addr, "db_enabled", cfg.DB.Enable)

	logger.Info("Starting Credit Risk Assessment Service")

	// Repository layer: Postgres when enabled, in-memory otherwise.
	var (
		workflowStore repository.WorkflowStore
		reportStore   repository.ReportStore
	)
	if cfg.DB.Enable {
		dbPool, err := initDatabase(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("database initialization failed: %w", err)
		}
		defer dbPool.Close()

		if err := repository.EnsureSchema(ctx, dbPool); err != nil {
			return fmt.Errorf("schema initialization failed: %w", err)
		}
		workflowStore = repository.NewPostgresWorkflowStore(dbPool)
		reportStore = repository.NewPostgresReportStore(dbPool)
		logger.Info("Database connected")
	} else {
		workflowStore = repository.NewMemoryWorkflowStore()
		reportStore = repository.NewMemoryReportStore()
		logger.Info("Using in-memory stores")
	}

	// Service layer
	loans := services.NewLoanApplicationService()
	customers := services.NewCustomerInfoService()
	compliance := services.NewComplianceService(customers)
	market := services.NewMarketDataClient(cfg.MarketData.URL)

	// Stage capabilities and the orchestration loop
	generator := agents.NewReportGenerator(loans, customers, compliance, market)
	reflector := agents.NewRubricReflector()
	refiner := agents.NewSectionRefiner(loans, customers, market)

	orchestrator := workflow.NewOrchestrator(workflowStore, reportStore,
		generator, reflector, refiner,
		workflow.Options{
			QualityThreshold:          cfg.Workflow.QualityThreshold,
			MaxIterations:             cfg.Workflow.MaxIterations,
			StageTimeout:              time.Duration(cfg.Workflow.StageTimeoutSeconds) * time.Second,
			MaxConcurrent:             cfg.Workflow.MaxConcurrent,
			FallbackOnReflectionError: cfg.Workflow.FallbackOnReflectionError,
		},
		logger)
	reporter := workflow.NewStatusReporter(workflowStore, reportStore)

	logger.Info("Service layer initialized")

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("credit-risk-assessment"))

	apiServer := api.NewServer(orchestrator, reporter, loans, logger)
	apiServer.Register(e)
	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(loans, customers, compliance, market)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp", echo.WrapHandler(mcpHandlers))
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))
	logger.Info("MCP protocol handlers mounted")

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig)

		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(drainCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}
		if err := orchestrator.Shutdown(drainCtx); err != nil {
			logger.Warn("In-flight executions did not drain", "error", err)
		}

		logger.Info("Server stopped gracefully")
	}
	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
