// Package workflow drives the bounded Generate, Evaluate, Refine loop over
// report drafts. The Orchestrator is the single writer for every execution
// record; readers go through the StatusReporter.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"credit-risk/backend/internal/agents"
	"credit-risk/backend/internal/logging"
	"credit-risk/backend/internal/repository"
	"credit-risk/backend/pkg/models"
)

// Options configures the orchestrator loop.
type Options struct {
	// QualityThreshold is the gate's acceptance threshold on overall score.
	QualityThreshold float64
	// MaxIterations bounds the number of refine rounds per execution.
	MaxIterations int
	// StageTimeout bounds each stage call; exceeding it is a stage failure.
	StageTimeout time.Duration
	// MaxConcurrent bounds in-flight executions; zero means unbounded.
	MaxConcurrent int
	// FallbackOnReflectionError completes with the last good draft when the
	// reflection stage fails, instead of terminating with reflection_error.
	FallbackOnReflectionError bool
}

func (o *Options) applyDefaults() {
	if o.QualityThreshold <= 0 {
		o.QualityThreshold = 0.8
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 5
	}
	if o.StageTimeout <= 0 {
		o.StageTimeout = 60 * time.Second
	}
}

// Orchestrator owns the refinement state machine for every execution. Each
// submission runs on its own goroutine; the only shared mutable state is the
// workflow store, which serializes updates per id.
type Orchestrator struct {
	store     repository.WorkflowStore
	reports   repository.ReportStore
	generator agents.Generator
	reflector agents.Reflector
	refiner   agents.Refiner
	gate      *Gate
	opts      Options
	log       *logging.Logger

	mu        sync.Mutex
	cancelled map[string]bool

	sem chan struct{}
	wg  sync.WaitGroup

	startedCounter  metric.Int64Counter
	terminalCounter metric.Int64Counter
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(store repository.WorkflowStore, reports repository.ReportStore,
	generator agents.Generator, reflector agents.Reflector, refiner agents.Refiner,
	opts Options, log *logging.Logger) *Orchestrator {

	opts.applyDefaults()

	o := &Orchestrator{
		store:     store,
		reports:   reports,
		generator: generator,
		reflector: reflector,
		refiner:   refiner,
		gate:      NewGate(opts.QualityThreshold),
		opts:      opts,
		log:       log,
		cancelled: make(map[string]bool),
	}
	if opts.MaxConcurrent > 0 {
		o.sem = make(chan struct{}, opts.MaxConcurrent)
	}

	meter := otel.Meter("credit-risk/backend/internal/workflow")
	var err error
	if o.startedCounter, err = meter.Int64Counter("workflow.executions.started"); err != nil {
		log.Warn("failed to create started counter", "error", err)
	}
	if o.terminalCounter, err = meter.Int64Counter("workflow.executions.terminal"); err != nil {
		log.Warn("failed to create terminal counter", "error", err)
	}
	return o
}

// Gate returns the orchestrator's quality gate.
func (o *Orchestrator) Gate() *Gate {
	return o.gate
}

// Submit persists a new execution and starts its refinement loop
// asynchronously. The returned execution is the initial created state.
func (o *Orchestrator) Submit(ctx context.Context, req models.CreditRiskRequest) (*models.WorkflowExecution, error) {
	execution := &models.WorkflowExecution{
		ID:        uuid.NewString(),
		Status:    models.StatusCreated,
		Request:   req,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.Create(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	o.mu.Lock()
	o.cancelled[execution.ID] = false
	o.mu.Unlock()

	if o.startedCounter != nil {
		o.startedCounter.Add(ctx, 1)
	}
	o.log.Info("execution submitted", "request_id", execution.ID, "customer_id", req.CustomerID)

	o.wg.Add(1)
	go o.run(execution.ID, req)

	return execution.Clone(), nil
}

// Cancel requests cooperative cancellation. The loop observes the request at
// its next stage boundary. Cancelling a terminal execution is a no-op.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	execution, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if execution.Status.Terminal() {
		return nil
	}

	o.mu.Lock()
	_, tracked := o.cancelled[id]
	o.cancelled[id] = true
	o.mu.Unlock()

	// No loop goroutine owns this execution (e.g. it predates a restart),
	// so the transition happens here.
	if !tracked {
		_, err := o.store.Update(ctx, id, func(e *models.WorkflowExecution) error {
			if e.Status.Terminal() {
				return nil
			}
			now := time.Now().UTC()
			e.Status = models.StatusCancelled
			e.CompletedAt = &now
			return nil
		})
		return err
	}
	o.log.Info("cancellation requested", "request_id", id)
	return nil
}

// Delete removes an execution and cascades to its report if one was
// materialized.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	execution, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if execution.FinalReportID != nil {
		if err := o.reports.Delete(ctx, *execution.FinalReportID); err != nil && err != repository.ErrNotFound {
			return fmt.Errorf("failed to delete report: %w", err)
		}
	}
	return o.store.Delete(ctx, id)
}

// DeleteReport removes a stored report without touching its execution.
func (o *Orchestrator) DeleteReport(ctx context.Context, reportID string) error {
	return o.reports.Delete(ctx, reportID)
}

// Shutdown waits for in-flight loops to reach a terminal state, or for the
// context to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run drives one execution through the state machine. Stage failures map to
// their status; anything unexpected lands in workflow_error.
func (o *Orchestrator) run(id string, req models.CreditRiskRequest) {
	defer o.wg.Done()
	defer o.forget(id)

	if o.sem != nil {
		o.sem <- struct{}{}
		defer func() { <-o.sem }()
	}

	ctx := context.Background()
	if o.observeCancellation(ctx, id) {
		return
	}

	if err := o.setStatus(ctx, id, models.StatusGenerating); err != nil {
		o.workflowError(ctx, id, err)
		return
	}
	draft, err := o.callGenerate(ctx, req)
	if o.observeCancellation(ctx, id) {
		return
	}
	if err != nil {
		o.stageFailure(ctx, id, models.StatusGeneratorError, models.AgentGenerator,
			fmt.Sprintf("Report generation failed: %v", err))
		return
	}
	if err := o.appendResponse(ctx, id, models.AgentResponse{
		AgentType: models.AgentGenerator,
		Content:   "Credit risk assessment report generated successfully",
		Metadata: map[string]interface{}{
			"sections":   len(draft.Sections),
			"risk_level": draft.RiskLevel,
		},
		Timestamp: time.Now().UTC(),
	}, nil); err != nil {
		o.workflowError(ctx, id, err)
		return
	}

	iteration := 0
	bestDraft := draft
	bestScore := -1.0

	for {
		if err := o.setStatus(ctx, id, models.StatusReflecting); err != nil {
			o.workflowError(ctx, id, err)
			return
		}
		eval, err := o.callEvaluate(ctx, draft)
		if o.observeCancellation(ctx, id) {
			return
		}
		if err != nil {
			o.reflectionFailure(ctx, id, req, draft, bestDraft, bestScore, err)
			return
		}
		o.gate.Finalize(eval)
		if eval.OverallScore > bestScore {
			bestScore = eval.OverallScore
			bestDraft = draft
		}
		if err := o.appendResponse(ctx, id, reflectionResponse(eval, o.gate.Threshold()), nil); err != nil {
			o.workflowError(ctx, id, err)
			return
		}

		switch o.gate.Decide(eval, iteration, o.opts.MaxIterations) {
		case DecisionAccept:
			o.materialize(ctx, id, req, draft, eval.OverallScore, models.StatusCompleted)
			return
		case DecisionExhausted:
			o.materialize(ctx, id, req, bestDraft, bestScore, models.StatusMaxIterationsReached)
			return
		}

		if err := o.setStatus(ctx, id, models.StatusRefining); err != nil {
			o.workflowError(ctx, id, err)
			return
		}
		refined, err := o.callRefine(ctx, draft, eval)
		if o.observeCancellation(ctx, id) {
			return
		}
		if err != nil {
			o.stageFailure(ctx, id, models.StatusRefinerError, models.AgentRefiner,
				fmt.Sprintf("Report refinement failed: %v", err))
			return
		}
		draft = refined
		iteration++
		if err := o.appendResponse(ctx, id, models.AgentResponse{
			AgentType: models.AgentRefiner,
			Content:   fmt.Sprintf("Report refined successfully. Addressed %d critique points.", len(eval.Critique)),
			Metadata:  map[string]interface{}{"iteration": iteration},
			Timestamp: time.Now().UTC(),
		}, func(e *models.WorkflowExecution) {
			e.Iteration = iteration
		}); err != nil {
			o.workflowError(ctx, id, err)
			return
		}
	}
}

func (o *Orchestrator) callGenerate(ctx context.Context, req models.CreditRiskRequest) (*models.Report, error) {
	stageCtx, cancel := context.WithTimeout(ctx, o.opts.StageTimeout)
	defer cancel()
	return o.generator.Generate(stageCtx, req)
}

func (o *Orchestrator) callEvaluate(ctx context.Context, draft *models.Report) (*models.Evaluation, error) {
	stageCtx, cancel := context.WithTimeout(ctx, o.opts.StageTimeout)
	defer cancel()
	return o.reflector.Evaluate(stageCtx, draft)
}

func (o *Orchestrator) callRefine(ctx context.Context, draft *models.Report, eval *models.Evaluation) (*models.Report, error) {
	stageCtx, cancel := context.WithTimeout(ctx, o.opts.StageTimeout)
	defer cancel()
	return o.refiner.Refine(stageCtx, draft, eval)
}

func reflectionResponse(eval *models.Evaluation, threshold float64) models.AgentResponse {
	verdict := "BELOW QUALITY THRESHOLD"
	if eval.MeetsThreshold {
		verdict = "MEETS QUALITY THRESHOLD"
	}
	return models.AgentResponse{
		AgentType: models.AgentReflection,
		Content:   fmt.Sprintf("Report quality assessment completed. Overall score: %.3f - %s (threshold: %.2f)", eval.OverallScore, verdict, threshold),
		Metadata:  map[string]interface{}{"evaluation": eval},
		Timestamp: time.Now().UTC(),
	}
}

// materialize stores the report and moves the execution to its successful
// terminal status.
func (o *Orchestrator) materialize(ctx context.Context, id string, req models.CreditRiskRequest, draft *models.Report, score float64, status models.Status) {
	report := *draft
	report.ReportID = id
	report.OverallScore = score
	if err := o.reports.Save(ctx, &report, req.CustomerName); err != nil {
		o.workflowError(ctx, id, fmt.Errorf("failed to save report: %w", err))
		return
	}

	_, err := o.store.Update(ctx, id, func(e *models.WorkflowExecution) error {
		now := time.Now().UTC()
		e.Status = status
		e.FinalReportID = &report.ReportID
		e.CompletedAt = &now
		return nil
	})
	if err != nil {
		o.workflowError(ctx, id, err)
		return
	}
	o.recordTerminal(ctx, status)
	o.log.Info("execution finished", "request_id", id, "status", status, "score", score)
}

// stageFailure records the failed stage call and moves the execution to the
// stage's terminal error status.
func (o *Orchestrator) stageFailure(ctx context.Context, id string, status models.Status, agent models.AgentType, content string) {
	_, err := o.store.Update(ctx, id, func(e *models.WorkflowExecution) error {
		now := time.Now().UTC()
		e.Status = status
		e.CompletedAt = &now
		e.AgentResponses = append(e.AgentResponses, models.AgentResponse{
			AgentType: agent,
			Content:   content,
			Timestamp: now,
		})
		return nil
	})
	if err != nil {
		o.workflowError(ctx, id, err)
		return
	}
	o.recordTerminal(ctx, status)
	o.log.Warn("stage failed", "request_id", id, "status", status)
}

// reflectionFailure either falls back to a prior draft or terminates with
// reflection_error, per the configured policy. The fallback report keeps the
// best evaluated draft and its score; when no draft was ever evaluated the
// unscored draft is stored with score 0.
func (o *Orchestrator) reflectionFailure(ctx context.Context, id string, req models.CreditRiskRequest, draft, bestDraft *models.Report, bestScore float64, cause error) {
	content := fmt.Sprintf("Report evaluation failed: %v", cause)
	if !o.opts.FallbackOnReflectionError {
		o.stageFailure(ctx, id, models.StatusReflectionError, models.AgentReflection, content)
		return
	}

	fallbackDraft, fallbackScore := draft, 0.0
	note := "; falling back to the last generated draft"
	if bestScore >= 0 {
		fallbackDraft, fallbackScore = bestDraft, bestScore
		note = "; falling back to the best evaluated draft"
	}
	if err := o.appendResponse(ctx, id, models.AgentResponse{
		AgentType: models.AgentReflection,
		Content:   content + note,
		Timestamp: time.Now().UTC(),
	}, nil); err != nil {
		o.workflowError(ctx, id, err)
		return
	}
	o.materialize(ctx, id, req, fallbackDraft, fallbackScore, models.StatusCompletedWithFallback)
}

// workflowError is the catch-all terminal path for faults outside stage
// boundaries, such as store failures. Persistence is best effort.
func (o *Orchestrator) workflowError(ctx context.Context, id string, cause error) {
	o.log.Error("workflow fault", "request_id", id, "error", cause)
	_, err := o.store.Update(ctx, id, func(e *models.WorkflowExecution) error {
		now := time.Now().UTC()
		e.Status = models.StatusWorkflowError
		e.CompletedAt = &now
		e.AgentResponses = append(e.AgentResponses, models.AgentResponse{
			AgentType: models.AgentWorkflow,
			Content:   fmt.Sprintf("Workflow failed: %v", cause),
			Timestamp: now,
		})
		return nil
	})
	if err != nil {
		o.log.Error("failed to persist workflow_error", "request_id", id, "error", err)
	}
	o.recordTerminal(ctx, models.StatusWorkflowError)
}

// observeCancellation transitions to cancelled when a cancel request is
// pending. In-flight stage results are discarded by returning before they
// are appended.
func (o *Orchestrator) observeCancellation(ctx context.Context, id string) bool {
	o.mu.Lock()
	requested := o.cancelled[id]
	o.mu.Unlock()
	if !requested {
		return false
	}

	transitioned := false
	_, err := o.store.Update(ctx, id, func(e *models.WorkflowExecution) error {
		if e.Status.Terminal() {
			return nil
		}
		now := time.Now().UTC()
		e.Status = models.StatusCancelled
		e.CompletedAt = &now
		transitioned = true
		return nil
	})
	if err != nil {
		o.log.Error("failed to persist cancellation", "request_id", id, "error", err)
		return true
	}
	if transitioned {
		o.recordTerminal(ctx, models.StatusCancelled)
		o.log.Info("execution cancelled", "request_id", id)
	}
	return true
}

func (o *Orchestrator) setStatus(ctx context.Context, id string, status models.Status) error {
	_, err := o.store.Update(ctx, id, func(e *models.WorkflowExecution) error {
		e.Status = status
		return nil
	})
	return err
}

// appendResponse appends an agent response and applies an optional extra
// mutation in the same atomic update.
func (o *Orchestrator) appendResponse(ctx context.Context, id string, response models.AgentResponse, extra func(*models.WorkflowExecution)) error {
	_, err := o.store.Update(ctx, id, func(e *models.WorkflowExecution) error {
		e.AgentResponses = append(e.AgentResponses, response)
		if extra != nil {
			extra(e)
		}
		return nil
	})
	return err
}

func (o *Orchestrator) recordTerminal(ctx context.Context, status models.Status) {
	if o.terminalCounter != nil {
		o.terminalCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
	}
}

func (o *Orchestrator) forget(id string) {
	o.mu.Lock()
	delete(o.cancelled, id)
	o.mu.Unlock()
}
