package ports

import (
	"context"

	"reqflow/internal/domain"
)

// CommitRecord bundles the writes of one workflow transition so the
// repository can apply them atomically: either everything is visible to a
// subsequent read or nothing is.
type CommitRecord struct {
	// Session is upserted; its UpdatedAt must already be set by the caller.
	Session domain.Session
	// NewRequirement, when non-nil, is inserted as a new row.
	NewRequirement *domain.Requirement
	// UpdatedRequirement, when non-nil, overwrites an existing row
	// (edited_content/version bumps; original_content is preserved).
	UpdatedRequirement *domain.Requirement
	// Event, when non-nil, is appended to the feedback log.
	Event *domain.FeedbackEvent
	// Score, when non-nil, is appended to the quality score log.
	Score *domain.QualityScore
	// TestCases, when non-empty, replace any prior set recorded for the
	// same (session, iteration) so retried generations stay idempotent.
	TestCases []domain.TestCase
	// History, when non-nil, is appended to the audit log.
	History *domain.HistoryEntry
}

// SessionReader reads session data
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context, userID string) ([]domain.Session, error)
}

// RequirementReader reads requirement data
type RequirementReader interface {
	// RequirementsBySession returns requirements ordered by UpdatedAt
	// ascending; the last one is the current authoritative content.
	RequirementsBySession(ctx context.Context, sessionID string) ([]domain.Requirement, error)
}

// TestCaseReader reads generated test cases
type TestCaseReader interface {
	TestCasesBySession(ctx context.Context, sessionID string) ([]domain.TestCase, error)
}

// FeedbackReader reads the human feedback trail
type FeedbackReader interface {
	FeedbackBySession(ctx context.Context, sessionID string) ([]domain.FeedbackEvent, error)
	ScoresBySession(ctx context.Context, sessionID string) ([]domain.QualityScore, error)
}

// HistoryAppender records workflow transition attempts. Append-only: no
// update or delete operations are exposed.
type HistoryAppender interface {
	AppendHistory(ctx context.Context, entry domain.HistoryEntry) error
	HistoryBySession(ctx context.Context, sessionID string) ([]domain.HistoryEntry, error)
}

// WorkflowWriter applies workflow transitions and administrative purges
type WorkflowWriter interface {
	// Commit applies a CommitRecord atomically.
	Commit(ctx context.Context, rec CommitRecord) error
	// PurgeSession hard-deletes a session and cascades to requirements,
	// test cases, feedback, scores, and history.
	PurgeSession(ctx context.Context, sessionID string) error
}

// WorkflowRepository is the composite durable-store interface
type WorkflowRepository interface {
	SessionReader
	RequirementReader
	TestCaseReader
	FeedbackReader
	HistoryAppender
	WorkflowWriter
	Close() error
}
