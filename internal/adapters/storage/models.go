package storage

import "time"

// SessionModel is the GORM model for the sessions table
type SessionModel struct {
	CreatedAt      time.Time
	Iteration      int       `gorm:"not null;default:0"`
	OriginalPrompt string    `gorm:"default:''"`
	ProjectName    string    `gorm:"default:''"`
	SessionID      string    `gorm:"primaryKey;column:session_id"`
	Stage          string    `gorm:"not null;default:'initial';index:idx_sessions_stage"`
	Status         string    `gorm:"not null;default:'analyzing';index:idx_sessions_status"`
	UpdatedAt      time.Time `gorm:"not null;index:idx_sessions_updated"`
	UserID         string    `gorm:"not null;index:idx_sessions_user"`
}

// TableName specifies the table name for GORM
func (SessionModel) TableName() string { return "sessions" }

// RequirementModel is the GORM model for the requirements table.
// Tags are stored as a JSON-encoded text column.
type RequirementModel struct {
	CreatedAt       time.Time
	EditedContent   string    `gorm:"default:''"`
	ID              string    `gorm:"primaryKey"`
	OriginalContent string    `gorm:"not null"`
	Priority        string    `gorm:"not null;default:'medium'"`
	RequirementType string    `gorm:"not null;default:'functional'"`
	SessionID       string    `gorm:"not null;index:idx_requirements_session"`
	Source          string    `gorm:"not null;default:'agent_generated'"`
	Status          string    `gorm:"not null;default:'active'"`
	Tags            string    `gorm:"default:'[]'"`
	UpdatedAt       time.Time `gorm:"not null;index:idx_requirements_updated"`
	Version         int       `gorm:"not null;default:1"`
}

// TableName specifies the table name for GORM
func (RequirementModel) TableName() string { return "requirements" }

// TestCaseModel is the GORM model for the test_cases table. Preconditions,
// test steps, and test data are stored as JSON-encoded text columns.
// test_id is unique per (session, iteration) so a retried generation
// replaces, never duplicates, its own attempt.
type TestCaseModel struct {
	CreatedAt               time.Time
	ExpectedResult          string `gorm:"default:''"`
	ID                      string `gorm:"primaryKey"`
	Iteration               int    `gorm:"not null;default:0;uniqueIndex:idx_test_cases_identity"`
	Preconditions           string `gorm:"default:'[]'"`
	Priority                string `gorm:"not null;default:'MEDIUM'"`
	RequirementTraceability string `gorm:"default:''"`
	SessionID               string `gorm:"not null;index:idx_test_cases_session;uniqueIndex:idx_test_cases_identity"`
	Summary                 string `gorm:"default:''"`
	TestData                string `gorm:"default:'{}'"`
	TestID                  string `gorm:"not null;uniqueIndex:idx_test_cases_identity"`
	TestSteps               string `gorm:"default:'[]'"`
	Type                    string `gorm:"not null;default:'Functional'"`
}

// TableName specifies the table name for GORM
func (TestCaseModel) TableName() string { return "test_cases" }

// FeedbackEventModel is the GORM model for the feedback_events table
type FeedbackEventModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Iteration int    `gorm:"not null"`
	Kind      string `gorm:"not null"`
	Payload   string `gorm:"default:''"`
	SessionID string `gorm:"not null;index:idx_feedback_session"`
	Timestamp time.Time
}

// TableName specifies the table name for GORM
func (FeedbackEventModel) TableName() string { return "feedback_events" }

// QualityScoreModel is the GORM model for the quality_scores table
type QualityScoreModel struct {
	FeedbackText string `gorm:"default:''"`
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	IterationKey string `gorm:"not null"`
	Score        int    `gorm:"not null;check:score >= 1 AND score <= 10"`
	SessionID    string `gorm:"not null;index:idx_scores_session"`
	Timestamp    time.Time
}

// TableName specifies the table name for GORM
func (QualityScoreModel) TableName() string { return "quality_scores" }

// HistoryEntryModel is the GORM model for the workflow_history table.
// Rows are append-only; nothing updates or deletes them short of a purge.
type HistoryEntryModel struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	ResultSummary string `gorm:"default:''"`
	SessionID     string `gorm:"not null;index:idx_history_session"`
	StepName      string `gorm:"not null"`
	Timestamp     time.Time
}

// TableName specifies the table name for GORM
func (HistoryEntryModel) TableName() string { return "workflow_history" }
