package agents

import (
	"context"
	"fmt"
	"strings"

	"credit-risk/backend/pkg/models"
)

// Section length bounds used by the rubric and by the refiner.
const (
	minSectionLength = 100
	maxSectionLength = 2000
)

// RubricReflector scores a draft against a fixed six-dimension rubric.
// Scoring is deterministic: the same draft always yields the same
// evaluation. Overall score aggregation and threshold judgment are left
// to the quality gate.
type RubricReflector struct{}

// NewRubricReflector creates a RubricReflector.
func NewRubricReflector() *RubricReflector {
	return &RubricReflector{}
}

// Evaluate scores the draft and collects actionable critique.
func (r *RubricReflector) Evaluate(ctx context.Context, report *models.Report) (*models.Evaluation, error) {
	if report == nil || len(report.Sections) == 0 {
		return &models.Evaluation{
			Critique: []string{"Report contains no sections and must be regenerated"},
		}, nil
	}

	byTitle := make(map[string]models.ReportSection, len(report.Sections))
	for _, s := range report.Sections {
		byTitle[s.Title] = s
	}

	eval := &models.Evaluation{
		Accuracy:     scoreAccuracy(report.Sections),
		Completeness: scoreCompleteness(byTitle),
		Structure:    scoreStructure(report.Sections),
		Verbosity:    scoreVerbosity(report.Sections),
		Relevance:    scoreRelevance(report.Sections),
		Tone:         scoreTone(report.Sections),
	}
	eval.Critique = critique(report, byTitle, eval)
	return eval, nil
}

func scoreCompleteness(byTitle map[string]models.ReportSection) float64 {
	present := 0
	for _, title := range RequiredSections {
		if s, ok := byTitle[title]; ok && strings.TrimSpace(s.Content) != "" {
			present++
		}
	}
	return float64(present) / float64(len(RequiredSections))
}

// scoreStructure rewards sections appearing in the canonical order.
func scoreStructure(sections []models.ReportSection) float64 {
	matched := 0
	next := 0
	for _, s := range sections {
		for i := next; i < len(RequiredSections); i++ {
			if s.Title == RequiredSections[i] {
				matched++
				next = i + 1
				break
			}
		}
	}
	return float64(matched) / float64(len(RequiredSections))
}

func scoreVerbosity(sections []models.ReportSection) float64 {
	inRange := 0
	for _, s := range sections {
		n := len(s.Content)
		if n >= minSectionLength && n <= maxSectionLength {
			inRange++
		}
	}
	return float64(inRange) / float64(len(sections))
}

// scoreAccuracy proxies factual grounding by the density of concrete
// figures (dollar amounts, percentages, ratios) in the text.
func scoreAccuracy(sections []models.ReportSection) float64 {
	quantified := 0
	for _, s := range sections {
		if strings.ContainsAny(s.Content, "$%") || strings.ContainsAny(s.Content, "0123456789") {
			quantified++
		}
	}
	return 0.5 + 0.5*float64(quantified)/float64(len(sections))
}

var relevanceTerms = []string{"credit", "risk", "loan", "revenue", "collateral", "compliance", "debt"}

func scoreRelevance(sections []models.ReportSection) float64 {
	relevant := 0
	for _, s := range sections {
		content := strings.ToLower(s.Content)
		for _, term := range relevanceTerms {
			if strings.Contains(content, term) {
				relevant++
				break
			}
		}
	}
	return 0.5 + 0.5*float64(relevant)/float64(len(sections))
}

var casualMarkers = []string{"!", "awesome", "amazing", "super ", "really really"}

func scoreTone(sections []models.ReportSection) float64 {
	score := 1.0
	for _, s := range sections {
		content := strings.ToLower(s.Content)
		for _, marker := range casualMarkers {
			if strings.Contains(content, marker) {
				score -= 0.15
				break
			}
		}
	}
	if score < 0.4 {
		return 0.4
	}
	return score
}

func critique(report *models.Report, byTitle map[string]models.ReportSection, eval *models.Evaluation) []string {
	var points []string
	for _, title := range RequiredSections {
		s, ok := byTitle[title]
		switch {
		case !ok || strings.TrimSpace(s.Content) == "":
			points = append(points, fmt.Sprintf("Missing required section: %s", title))
		case len(s.Content) < minSectionLength:
			points = append(points, fmt.Sprintf("Section '%s' is too brief and needs expansion", title))
		case len(s.Content) > maxSectionLength:
			points = append(points, fmt.Sprintf("Section '%s' is too verbose and should be condensed", title))
		}
	}
	if eval.Structure < 1.0 {
		points = append(points, "Sections should follow the standard report order")
	}
	if eval.Accuracy < 0.8 {
		points = append(points, "Quantitative support is thin; cite specific figures for each finding")
	}
	if eval.Relevance < 0.8 {
		points = append(points, "Content drifts from the credit decision; tie each section back to repayment capacity")
	}
	if eval.Tone < 0.8 {
		points = append(points, "Adopt a formal, professional register throughout")
	}
	return points
}
