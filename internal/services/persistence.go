package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"reqflow/internal/domain"
	"reqflow/internal/logging"
	"reqflow/internal/ports"
)

// Data sources reported back to callers so they can tell a cache hit from a
// database read.
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)

// DefaultCacheTTL is the expiry applied to cached reads.
const DefaultCacheTTL = 30 * time.Minute

// PersistenceManager owns the dual-store read/write path: the repository is
// the source of truth, the cache is a read-through accelerator. Cache
// failures never fail an operation; they degrade to repository reads with a
// logged warning.
type PersistenceManager struct {
	cache ports.Cache
	repo  ports.WorkflowRepository
	ttl   time.Duration
}

// NewPersistenceManager creates a PersistenceManager. A non-positive ttl
// falls back to DefaultCacheTTL.
func NewPersistenceManager(repo ports.WorkflowRepository, cache ports.Cache, ttl time.Duration) *PersistenceManager {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &PersistenceManager{cache: cache, repo: repo, ttl: ttl}
}

func sessionKey(id string) string      { return "session:" + id }
func requirementsKey(id string) string { return "requirements:" + id }
func testCasesKey(id string) string    { return "test_cases:" + id }
func stateKey(id string) string        { return "session_state:" + id }
func historyKey(id string) string      { return "workflow_history:" + id }

// cacheGet reads and decodes a cached value. Any failure, miss or otherwise,
// reports false; real errors are logged.
func cacheGet[T any](ctx context.Context, c ports.Cache, key string, out *T) bool {
	data, err := c.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			logging.Logger.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		logging.Logger.Warn("cache entry undecodable", "key", key, "error", err)
		return false
	}
	return true
}

// cacheSet encodes and stores a value, logging and swallowing failures.
func (p *PersistenceManager) cacheSet(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := p.cache.Set(ctx, key, data, p.ttl); err != nil {
		logging.Logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (p *PersistenceManager) cacheDelete(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := p.cache.Delete(ctx, key); err != nil {
			logging.Logger.Warn("cache invalidation failed", "key", key, "error", err)
		}
	}
}

// GetSession reads a session, cache first, and reports where it came from.
func (p *PersistenceManager) GetSession(ctx context.Context, sessionID string) (*domain.Session, string, error) {
	var cached domain.Session
	if cacheGet(ctx, p.cache, sessionKey(sessionID), &cached) {
		return &cached, SourceCache, nil
	}

	session, err := p.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	p.cacheSet(ctx, sessionKey(sessionID), session)
	return session, SourceDatabase, nil
}

// Requirements reads a session's requirements, cache first, ordered oldest
// to newest.
func (p *PersistenceManager) Requirements(ctx context.Context, sessionID string) ([]domain.Requirement, string, error) {
	var cached []domain.Requirement
	if cacheGet(ctx, p.cache, requirementsKey(sessionID), &cached) {
		return cached, SourceCache, nil
	}

	reqs, err := p.repo.RequirementsBySession(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	p.cacheSet(ctx, requirementsKey(sessionID), reqs)
	return reqs, SourceDatabase, nil
}

// CurrentRequirement resolves the authoritative generation input for a
// session: the newest requirement's edited content when present, otherwise
// its original content. Fails with ErrNoRequirements when none exist.
func (p *PersistenceManager) CurrentRequirement(ctx context.Context, sessionID string) (*domain.Requirement, error) {
	reqs, _, err := p.Requirements(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNoRequirements)
	}
	current := reqs[len(reqs)-1]
	return &current, nil
}

// TestCases reads a session's generated test cases, cache first.
func (p *PersistenceManager) TestCases(ctx context.Context, sessionID string) ([]domain.TestCase, string, error) {
	var cached []domain.TestCase
	if cacheGet(ctx, p.cache, testCasesKey(sessionID), &cached) {
		return cached, SourceCache, nil
	}

	cases, err := p.repo.TestCasesBySession(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	p.cacheSet(ctx, testCasesKey(sessionID), cases)
	return cases, SourceDatabase, nil
}

// Suite reassembles a session's stored test cases into a presentable suite.
func (p *PersistenceManager) Suite(ctx context.Context, sessionID string) (domain.TestSuite, error) {
	cases, _, err := p.TestCases(ctx, sessionID)
	if err != nil {
		return domain.TestSuite{}, err
	}
	return domain.SuiteFromCases(sessionID, cases), nil
}

// SessionContext assembles the full aggregate for a session. The three
// entity reads run in parallel.
func (p *PersistenceManager) SessionContext(ctx context.Context, sessionID string) (*domain.SessionContext, error) {
	var (
		session *domain.Session
		reqs    []domain.Requirement
		cases   []domain.TestCase
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		session, _, err = p.GetSession(gctx, sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		reqs, _, err = p.Requirements(gctx, sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		cases, _, err = p.TestCases(gctx, sessionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.SessionContext{
		Requirements: reqs,
		Session:      *session,
		TestCases:    cases,
	}, nil
}

// Commit applies a workflow transition atomically to the repository, then
// invalidates every cache key the transition may have staled. Invalidation
// rather than overwrite: the next read repopulates from the source of truth.
func (p *PersistenceManager) Commit(ctx context.Context, rec ports.CommitRecord) error {
	if err := p.repo.Commit(ctx, rec); err != nil {
		return err
	}

	id := rec.Session.SessionID
	keys := []string{sessionKey(id), stateKey(id), historyKey(id)}
	if rec.NewRequirement != nil || rec.UpdatedRequirement != nil {
		keys = append(keys, requirementsKey(id))
	}
	if len(rec.TestCases) > 0 {
		keys = append(keys, testCasesKey(id))
	}
	p.cacheDelete(ctx, keys...)
	return nil
}

// AppendHistory records a transition attempt and drops the cached history.
func (p *PersistenceManager) AppendHistory(ctx context.Context, entry domain.HistoryEntry) error {
	if err := p.repo.AppendHistory(ctx, entry); err != nil {
		return err
	}
	p.cacheDelete(ctx, historyKey(entry.SessionID))
	return nil
}

// History reads a session's audit trail, cache first, oldest entry first.
func (p *PersistenceManager) History(ctx context.Context, sessionID string) ([]domain.HistoryEntry, string, error) {
	var cached []domain.HistoryEntry
	if cacheGet(ctx, p.cache, historyKey(sessionID), &cached) {
		return cached, SourceCache, nil
	}

	entries, err := p.repo.HistoryBySession(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	p.cacheSet(ctx, historyKey(sessionID), entries)
	return entries, SourceDatabase, nil
}

// Feedback reads the feedback trail. Not cached: it is consulted only by
// the analytics report, which always wants fresh data.
func (p *PersistenceManager) Feedback(ctx context.Context, sessionID string) ([]domain.FeedbackEvent, error) {
	return p.repo.FeedbackBySession(ctx, sessionID)
}

// Scores reads the quality score trail. Not cached, same as Feedback.
func (p *PersistenceManager) Scores(ctx context.Context, sessionID string) ([]domain.QualityScore, error) {
	return p.repo.ScoresBySession(ctx, sessionID)
}

// ListSessions lists sessions for a user, newest first. Listing bypasses
// the cache.
func (p *PersistenceManager) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return p.repo.ListSessions(ctx, userID)
}

// Purge hard-deletes a session everywhere, cache included.
func (p *PersistenceManager) Purge(ctx context.Context, sessionID string) error {
	if err := p.repo.PurgeSession(ctx, sessionID); err != nil {
		return err
	}
	p.cacheDelete(ctx,
		sessionKey(sessionID),
		requirementsKey(sessionID),
		testCasesKey(sessionID),
		stateKey(sessionID),
		historyKey(sessionID),
	)
	return nil
}
