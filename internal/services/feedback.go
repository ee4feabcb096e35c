package services

import (
	"context"

	"reqflow/internal/domain"
)

// Quality trend classifications
const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// Engagement levels derived from feedback volume
const (
	EngagementHigh   = "high"
	EngagementMedium = "medium"
	EngagementLow    = "low"
)

// FeedbackReport is the advisory analytics summary for one session. It
// never changes workflow state.
type FeedbackReport struct {
	AverageQualityScore float64  `json:"average_quality_score"`
	EngagementLevel     string   `json:"human_engagement_level"`
	IterationCount      int      `json:"iteration_count"`
	QualityTrend        string   `json:"quality_trend"`
	Recommendations     []string `json:"recommended_actions"`
	RefinementCycles    int      `json:"refinement_cycles"`
	SessionID           string   `json:"session_id"`
	TotalFeedback       int      `json:"feedback_frequency"`
}

// FeedbackTracker derives quality analytics from a session's feedback and
// score history.
type FeedbackTracker struct {
	persistence *PersistenceManager
}

// NewFeedbackTracker creates a FeedbackTracker
func NewFeedbackTracker(persistence *PersistenceManager) *FeedbackTracker {
	return &FeedbackTracker{persistence: persistence}
}

// Report builds the analytics summary for a session.
func (t *FeedbackTracker) Report(ctx context.Context, sessionID string) (*FeedbackReport, error) {
	events, err := t.persistence.Feedback(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	scores, err := t.persistence.Scores(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	refinements := 0
	for _, e := range events {
		if e.Kind == domain.FeedbackRefinement {
			refinements++
		}
	}

	iteration := 0
	if session, _, err := t.persistence.GetSession(ctx, sessionID); err == nil {
		iteration = session.Iteration
	}

	return &FeedbackReport{
		AverageQualityScore: averageScore(scores),
		EngagementLevel:     engagementLevel(len(events)),
		IterationCount:      iteration,
		QualityTrend:        qualityTrend(scores),
		Recommendations:     recommendations(len(events), refinements, scores),
		RefinementCycles:    refinements,
		SessionID:           sessionID,
		TotalFeedback:       len(events),
	}, nil
}

func averageScore(scores []domain.QualityScore) float64 {
	if len(scores) == 0 {
		return 0.0
	}
	sum := 0
	for _, s := range scores {
		sum += s.Score
	}
	return float64(sum) / float64(len(scores))
}

func qualityTrend(scores []domain.QualityScore) string {
	if len(scores) < 2 {
		return TrendInsufficientData
	}
	first, last := scores[0].Score, scores[len(scores)-1].Score
	switch {
	case last > first:
		return TrendImproving
	case last < first:
		return TrendDeclining
	}
	return TrendStable
}

func engagementLevel(feedbackCount int) string {
	switch {
	case feedbackCount > 3:
		return EngagementHigh
	case feedbackCount > 1:
		return EngagementMedium
	}
	return EngagementLow
}

func recommendations(feedbackCount, refinements int, scores []domain.QualityScore) []string {
	recs := []string{}

	if feedbackCount > 3 {
		recs = append(recs, "Consider breaking down the analysis into smaller, more focused sections")
	}

	for _, s := range scores {
		if s.Score < 6 {
			recs = append(recs, "Quality scores are low - consider requesting more specific human feedback")
			break
		}
	}

	if refinements > 2 {
		recs = append(recs, "Multiple refinements detected - consider asking for clearer initial requirements")
	}

	return recs
}
