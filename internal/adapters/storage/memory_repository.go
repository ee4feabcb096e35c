package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"reqflow/internal/domain"
	"reqflow/internal/ports"
)

// MemoryRepository is a mutex-guarded in-memory ports.WorkflowRepository.
// Useful for tests and throwaway runs where the sqlite file is unwanted.
type MemoryRepository struct {
	mu           sync.RWMutex
	sessions     map[string]domain.Session
	requirements map[string][]domain.Requirement
	testCases    map[string][]domain.TestCase
	feedback     map[string][]domain.FeedbackEvent
	scores       map[string][]domain.QualityScore
	history      map[string][]domain.HistoryEntry
}

// Verify interface compliance at compile time
var _ ports.WorkflowRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions:     make(map[string]domain.Session),
		requirements: make(map[string][]domain.Requirement),
		testCases:    make(map[string][]domain.TestCase),
		feedback:     make(map[string][]domain.FeedbackEvent),
		scores:       make(map[string][]domain.QualityScore),
		history:      make(map[string][]domain.HistoryEntry),
	}
}

// Close implements ports.WorkflowRepository.Close
func (r *MemoryRepository) Close() error { return nil }

// GetSession implements SessionReader.GetSession
func (r *MemoryRepository) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
	}
	return &session, nil
}

// ListSessions implements SessionReader.ListSessions
func (r *MemoryRepository) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if userID != "" && s.UserID != userID {
			continue
		}
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// RequirementsBySession implements RequirementReader.RequirementsBySession
func (r *MemoryRepository) RequirementsBySession(ctx context.Context, sessionID string) ([]domain.Requirement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reqs := append([]domain.Requirement(nil), r.requirements[sessionID]...)
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].UpdatedAt.Before(reqs[j].UpdatedAt)
	})
	return reqs, nil
}

// TestCasesBySession implements TestCaseReader.TestCasesBySession
func (r *MemoryRepository) TestCasesBySession(ctx context.Context, sessionID string) ([]domain.TestCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cases := append([]domain.TestCase(nil), r.testCases[sessionID]...)
	sort.SliceStable(cases, func(i, j int) bool {
		if cases[i].Iteration != cases[j].Iteration {
			return cases[i].Iteration < cases[j].Iteration
		}
		return cases[i].TestID < cases[j].TestID
	})
	return cases, nil
}

// FeedbackBySession implements FeedbackReader.FeedbackBySession
func (r *MemoryRepository) FeedbackBySession(ctx context.Context, sessionID string) ([]domain.FeedbackEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.FeedbackEvent(nil), r.feedback[sessionID]...), nil
}

// ScoresBySession implements FeedbackReader.ScoresBySession
func (r *MemoryRepository) ScoresBySession(ctx context.Context, sessionID string) ([]domain.QualityScore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.QualityScore(nil), r.scores[sessionID]...), nil
}

// AppendHistory implements HistoryAppender.AppendHistory
func (r *MemoryRepository) AppendHistory(ctx context.Context, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[entry.SessionID] = append(r.history[entry.SessionID], entry)
	return nil
}

// HistoryBySession implements HistoryAppender.HistoryBySession
func (r *MemoryRepository) HistoryBySession(ctx context.Context, sessionID string) ([]domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.HistoryEntry(nil), r.history[sessionID]...), nil
}

// Commit implements WorkflowWriter.Commit
func (r *MemoryRepository) Commit(ctx context.Context, rec ports.CommitRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID := rec.Session.SessionID
	r.sessions[sessionID] = rec.Session

	if rec.NewRequirement != nil {
		r.requirements[sessionID] = append(r.requirements[sessionID], *rec.NewRequirement)
	}

	if rec.UpdatedRequirement != nil {
		reqs := r.requirements[sessionID]
		for i := range reqs {
			if reqs[i].ID == rec.UpdatedRequirement.ID {
				reqs[i] = *rec.UpdatedRequirement
				break
			}
		}
	}

	if rec.Event != nil {
		r.feedback[sessionID] = append(r.feedback[sessionID], *rec.Event)
	}

	if rec.Score != nil {
		r.scores[sessionID] = append(r.scores[sessionID], *rec.Score)
	}

	if len(rec.TestCases) > 0 {
		iteration := rec.TestCases[0].Iteration
		kept := make([]domain.TestCase, 0, len(r.testCases[sessionID]))
		for _, tc := range r.testCases[sessionID] {
			if tc.Iteration != iteration {
				kept = append(kept, tc)
			}
		}
		r.testCases[sessionID] = append(kept, rec.TestCases...)
	}

	if rec.History != nil {
		r.history[sessionID] = append(r.history[sessionID], *rec.History)
	}

	return nil
}

// PurgeSession implements WorkflowWriter.PurgeSession
func (r *MemoryRepository) PurgeSession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
	}
	delete(r.sessions, sessionID)
	delete(r.requirements, sessionID)
	delete(r.testCases, sessionID)
	delete(r.feedback, sessionID)
	delete(r.scores, sessionID)
	delete(r.history, sessionID)
	return nil
}
