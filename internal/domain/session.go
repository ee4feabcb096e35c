package domain

import "time"

// Session statuses (free-form lifecycle labels kept for reporting,
// distinct from the state-machine stage)
const (
	StatusAnalyzing = "analyzing"
	StatusReviewing = "reviewing"
	StatusApproved  = "approved"
	StatusEditing   = "editing"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)

// Session represents one analysis/generation workflow instance (domain entity)
type Session struct {
	CreatedAt      time.Time     `json:"created_at"`
	Iteration      int           `json:"iteration"`
	OriginalPrompt string        `json:"original_prompt"`
	ProjectName    string        `json:"project_name,omitempty"`
	SessionID      string        `json:"session_id"`
	Stage          WorkflowStage `json:"stage"`
	Status         string        `json:"status"`
	UpdatedAt      time.Time     `json:"updated_at"`
	UserID         string        `json:"user_id,omitempty"`
}

// SessionContext aggregates a session with everything attached to it.
type SessionContext struct {
	Requirements []Requirement `json:"requirements"`
	Session      Session       `json:"session"`
	TestCases    []TestCase    `json:"test_cases"`
}
