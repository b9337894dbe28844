// Package scoring grades transcribed answers against reference answers
// and aggregates session results into a final report.
package scoring

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/mukulanand/echoviva/internal/i18n"
	"github.com/mukulanand/echoviva/internal/model"
	"github.com/mukulanand/echoviva/internal/textsim"
)

const (
	// similarityWeight outweighs keywordWeight because keyword overlap
	// alone rewards word-matching over semantic correctness.
	similarityWeight = 0.7
	keywordWeight    = 0.3

	// weakAreaThreshold marks questions the candidate should revisit.
	weakAreaThreshold = 60

	// maxTipKeywords caps how many missed concepts a tip names.
	maxTipKeywords = 4
)

// Engine scores answers. Deterministic given its two inputs.
type Engine struct{}

// NewEngine creates a scoring engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate grades a candidate answer against the reference answer and
// returns a percentage in [0,100] with qualitative feedback.
func (e *Engine) Evaluate(ctx context.Context, userAnswer, referenceAnswer string) (float64, string) {
	u := textsim.Clean(userAnswer)
	c := textsim.Clean(referenceAnswer)

	sim := textsim.NormalizedSimilarity(u, c)
	kw := textsim.KeywordSimilarity(u, c)

	score := round2((sim*similarityWeight + kw*keywordWeight) * 100)

	feedback := i18n.T(ctx, Tier(score))
	if tip := e.improvementTip(ctx, userAnswer, referenceAnswer); tip != "" {
		feedback += " " + tip
	}
	return score, feedback
}

// Tier returns the feedback message ID for a score.
func Tier(score float64) string {
	switch {
	case score >= 85:
		return "FeedbackExcellent"
	case score >= 65:
		return "FeedbackGood"
	case score >= 45:
		return "FeedbackFair"
	default:
		return "FeedbackNeedsWork"
	}
}

// improvementTip names reference-answer concepts missing from the
// candidate's answer, or returns empty when nothing is missing.
func (e *Engine) improvementTip(ctx context.Context, userAnswer, referenceAnswer string) string {
	missing := textsim.MissingKeywords(userAnswer, referenceAnswer, maxTipKeywords)
	if len(missing) == 0 {
		return ""
	}
	return i18n.Td(ctx, "ImprovementTips", map[string]any{
		"Concepts": strings.Join(missing, ", "),
	})
}

// GenerateReport aggregates scored records into a report. It never
// fails: an empty record list yields an average of 0 and no weak areas.
func GenerateReport(candidateName, candidateID, subject string, records []model.AnswerRecord, now time.Time) model.Report {
	if candidateName == "" {
		candidateName = "Student"
	}
	if candidateID == "" {
		candidateID = "Unknown"
	}

	var avg float64
	if len(records) > 0 {
		total := 0.0
		for _, r := range records {
			total += r.Score
		}
		avg = round2(total / float64(len(records)))
	}

	var weak []string
	for _, r := range records {
		if r.Score < weakAreaThreshold {
			weak = append(weak, r.Question)
		}
	}

	return model.Report{
		User:         candidateName,
		StudentID:    candidateID,
		Subject:      subject,
		AverageScore: avg,
		WeakAreas:    weak,
		Records:      records,
		Timestamp:    now.Format(model.ReportTimeLayout),
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
