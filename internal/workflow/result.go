package workflow

import "reqflow/internal/domain"

// Result statuses returned to callers. These are presentation labels, not
// pipeline stages.
const (
	StatusAwaitingReview   = "awaiting_review"
	StatusNeedsImprovement = "needs_improvement"
	StatusQualityApproved  = "quality_approved"
	StatusCompleted        = "completed"
	StatusRejected         = "rejected"
)

// Result is the engine's answer to one executed action. Every Result carries
// the session_id so callers can retry or inspect history after a failure.
type Result struct {
	SessionID        string               `json:"session_id"`
	Status           string               `json:"status"`
	Stage            domain.WorkflowStage `json:"stage"`
	Iteration        int                  `json:"iteration,omitempty"`
	Analysis         string               `json:"analysis,omitempty"`
	TestCases        []domain.TestCase    `json:"test_cases,omitempty"`
	Score            int                  `json:"score,omitempty"`
	Feedback         string               `json:"feedback,omitempty"`
	AvailableActions []string             `json:"available_actions,omitempty"`
	SuggestedActions []string             `json:"suggested_actions,omitempty"`
	RestartOptions   []string             `json:"restart_options,omitempty"`
	RejectionReason  string               `json:"rejection_reason,omitempty"`
	Source           string               `json:"source,omitempty"`
}

// reviewActions is what a session in the review loop can do next.
func reviewActions() []string {
	return []string{
		string(domain.ActionApproved),
		string(domain.ActionEdited),
		string(domain.ActionRejected),
		string(domain.ActionRefine),
		string(domain.ActionEnhance),
	}
}
