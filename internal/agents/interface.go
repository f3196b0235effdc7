// Package agents implements the three stage capabilities of the refinement
// loop: generating a report draft, evaluating it, and refining it against a
// critique. The orchestrator only sees these interfaces; every call is a
// single bounded operation that may fail.
package agents

import (
	"context"

	"credit-risk/backend/pkg/models"
)

// Generator produces the initial report draft for a request.
type Generator interface {
	Generate(ctx context.Context, req models.CreditRiskRequest) (*models.Report, error)
}

// Reflector evaluates a draft across the six quality dimensions. The
// returned evaluation carries dimension scores and critique; aggregation
// into an overall score is the quality gate's concern.
type Reflector interface {
	Evaluate(ctx context.Context, report *models.Report) (*models.Evaluation, error)
}

// Refiner produces an improved draft addressing the evaluation's critique.
type Refiner interface {
	Refine(ctx context.Context, report *models.Report, eval *models.Evaluation) (*models.Report, error)
}

// RequiredSections lists the sections every complete credit risk report
// must carry, in canonical order.
var RequiredSections = []string{
	"Executive Summary",
	"Customer Profile Analysis",
	"Financial Analysis",
	"Credit History Assessment",
	"Risk Factors Analysis",
	"Industry and Market Analysis",
	"Recommendations",
}
