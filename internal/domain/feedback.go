package domain

import "time"

// FeedbackKind classifies one human interaction event in the review cycle
type FeedbackKind string

const (
	FeedbackRefinement    FeedbackKind = "refinement"
	FeedbackEnhancement   FeedbackKind = "enhancement"
	FeedbackRejection     FeedbackKind = "rejection"
	FeedbackDirectEdit    FeedbackKind = "direct_edit"
	FeedbackQualityReview FeedbackKind = "quality_review"
)

// FeedbackEvent is one human interaction event in a session's review cycle
type FeedbackEvent struct {
	Iteration int          `json:"iteration"`
	Kind      FeedbackKind `json:"kind"`
	Payload   string       `json:"payload"`
	SessionID string       `json:"session_id"`
	Timestamp time.Time    `json:"timestamp"`
}

// QualityScore is one scored review for an iteration
type QualityScore struct {
	FeedbackText string    `json:"feedback"`
	IterationKey string    `json:"iteration_key"`
	Score        int       `json:"score"`
	SessionID    string    `json:"session_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// HistoryEntry is one append-only record of a workflow transition attempt
type HistoryEntry struct {
	ResultSummary string    `json:"result_summary"`
	SessionID     string    `json:"session_id"`
	StepName      string    `json:"step_name"`
	Timestamp     time.Time `json:"timestamp"`
}
