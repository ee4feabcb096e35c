package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqflow/internal/adapters/cache"
	"reqflow/internal/adapters/storage"
	"reqflow/internal/domain"
	"reqflow/internal/ports"
	"reqflow/internal/services"
)

// stubCapability answers with a fixed function and counts invocations.
type stubCapability struct {
	mu      sync.Mutex
	calls   int
	invoked []string
	fn      func(input, sessionID string) (string, error)
}

func (s *stubCapability) Invoke(ctx context.Context, input, sessionID string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.invoked = append(s.invoked, input)
	s.mu.Unlock()
	return s.fn(input, sessionID)
}

func fixedCapability(output string) *stubCapability {
	return &stubCapability{fn: func(string, string) (string, error) { return output, nil }}
}

func failingCapability(err error) *stubCapability {
	return &stubCapability{fn: func(string, string) (string, error) { return "", err }}
}

const validSuiteJSON = `{
	"test_suite": {
		"name": "Login Suite",
		"description": "Suite for login flows",
		"total_tests": 2,
		"test_cases": [
			{"test_id": "TC001", "priority": "high", "type": "Functional", "summary": "valid login", "test_steps": ["open", "submit"], "expected_result": "logged in"},
			{"test_id": "TC002", "priority": "critical", "type": "Security", "summary": "lockout", "test_steps": ["fail 3 times"], "expected_result": "locked"}
		]
	}
}`

func newEngine(t *testing.T, analyzer, generator ports.Capability) (*Engine, *services.PersistenceManager) {
	t.Helper()
	repo := storage.NewMemoryRepository()
	pm := services.NewPersistenceManager(repo, cache.NoopCache{}, time.Minute)
	return NewEngine(pm, analyzer, generator), pm
}

func TestExecute_FullLifecycle(t *testing.T) {
	analyzer := fixedCapability("the system shall allow login")
	generator := fixedCapability(validSuiteJSON)
	engine, pm := newEngine(t, analyzer, generator)
	ctx := context.Background()

	// start
	result, err := engine.Execute(ctx, "start", "build a login page", "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingReview, result.Status)
	assert.Equal(t, domain.StageAwaitingHumanReview, result.Stage)
	assert.Equal(t, "the system shall allow login", result.Analysis)
	assert.ElementsMatch(t, []string{"approved", "edited", "rejected", "refine", "enhance"}, result.AvailableActions)

	// review passes
	result, err = engine.Execute(ctx, "review", "score:8; feedback:solid", "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusQualityApproved, result.Status)
	assert.Equal(t, []string{"approved"}, result.AvailableActions)

	// approved generates tests and completes
	result, err = engine.Execute(ctx, "approved", "", "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, domain.StageCompleted, result.Stage)
	require.Len(t, result.TestCases, 2)
	assert.Equal(t, "TC001", result.TestCases[0].TestID)
	assert.Equal(t, "HIGH", result.TestCases[0].Priority)

	session, _, err := pm.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageCompleted, session.Stage)

	// generator received the stored analysis
	assert.Equal(t, []string{"the system shall allow login"}, generator.invoked)
}

func TestExecute_ReviewNeverChangesStage(t *testing.T) {
	engine, pm := newEngine(t, fixedCapability("analysis"), fixedCapability(validSuiteJSON))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)

	result, err := engine.Execute(ctx, "review", "score:4; feedback:weak", "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsImprovement, result.Status)
	assert.Equal(t, []string{"refine", "enhance", "rejected"}, result.SuggestedActions)
	assert.Equal(t, 4, result.Score)

	session, _, err := pm.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageAwaitingHumanReview, session.Stage)
}

func TestExecute_ReviewInvalidFormat(t *testing.T) {
	engine, _ := newEngine(t, fixedCapability("analysis"), fixedCapability(validSuiteJSON))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)

	_, err = engine.Execute(ctx, "review", "this is great", "s1")
	assert.ErrorIs(t, err, domain.ErrInvalidReviewFormat)
}

func TestExecute_RefineIncrementsIterationAndSupersedes(t *testing.T) {
	analyzer := fixedCapability("refined analysis")
	engine, pm := newEngine(t, analyzer, fixedCapability(validSuiteJSON))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)

	result, err := engine.Execute(ctx, "refine", "more detail please", "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Iteration)
	assert.Equal(t, domain.StageAwaitingHumanReview, result.Stage)

	// The analyzer prompt embeds the human feedback
	assert.Contains(t, analyzer.invoked[1], "more detail please")
	assert.Contains(t, analyzer.invoked[1], "needs refinement")

	// The refined requirement is now authoritative
	current, err := pm.CurrentRequirement(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "refined analysis", current.CurrentContent())
	assert.Equal(t, domain.SourceRefined, current.Source)

	// The feedback trail has the refinement event
	events, err := pm.Feedback(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.FeedbackRefinement, events[0].Kind)
}

func TestExecute_EnhanceEmbedsCurrentAnalysis(t *testing.T) {
	analyzer := fixedCapability("enhanced analysis")
	engine, pm := newEngine(t, analyzer, fixedCapability(validSuiteJSON))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)

	result, err := engine.Execute(ctx, "enhance", "also support SSO", "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Iteration, "enhance opens a new iteration, same as refine")

	assert.Contains(t, analyzer.invoked[1], "Current analysis: enhanced analysis")
	assert.Contains(t, analyzer.invoked[1], "Additional context from human: also support SSO")

	events, err := pm.Feedback(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Iteration)
}

func TestExecute_EditedBypassesAnalyzer(t *testing.T) {
	analyzer := fixedCapability("analysis")
	generator := fixedCapability(validSuiteJSON)
	engine, pm := newEngine(t, analyzer, generator)
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)

	result, err := engine.Execute(ctx, "edited", "my corrected requirements", "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, analyzer.calls, "edited must not re-invoke the analyzer")
	assert.Equal(t, []string{"my corrected requirements"}, generator.invoked)

	// The edit lives alongside the original content
	reqs, _, err := pm.Requirements(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "analysis", reqs[0].OriginalContent)
	assert.Equal(t, "my corrected requirements", reqs[0].EditedContent)
	assert.Equal(t, 2, reqs[0].Version)
}

func TestExecute_EditedSurvivesGenerationFailure(t *testing.T) {
	generator := failingCapability(domain.ErrCapabilityUnavailable)
	engine, pm := newEngine(t, fixedCapability("analysis"), generator)
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)

	_, err = engine.Execute(ctx, "edited", "human content", "s1")
	assert.ErrorIs(t, err, domain.ErrCapabilityUnavailable)

	// The edit is committed regardless, and approved can retry generation
	session, _, err := pm.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageAnalysisEdited, session.Stage)

	current, err := pm.CurrentRequirement(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "human content", current.CurrentContent())

	generator.fn = func(string, string) (string, error) { return validSuiteJSON, nil }
	result, err := engine.Execute(ctx, "approved", "", "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
}

func TestExecute_ApprovedRetryAfterGeneratorFailure(t *testing.T) {
	generator := failingCapability(domain.ErrCapabilityTimeout)
	engine, pm := newEngine(t, fixedCapability("analysis"), generator)
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)

	_, err = engine.Execute(ctx, "approved", "", "s1")
	assert.ErrorIs(t, err, domain.ErrCapabilityTimeout)

	// No test cases persisted on failure
	cases, _, err := pm.TestCases(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, cases)

	// Retry succeeds and persists exactly one set
	generator.fn = func(string, string) (string, error) { return validSuiteJSON, nil }
	result, err := engine.Execute(ctx, "approved", "", "s1")
	require.NoError(t, err)
	assert.Len(t, result.TestCases, 2)

	cases, _, err = pm.TestCases(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, cases, 2)
}

func TestExecute_ApprovedWithoutRequirements(t *testing.T) {
	repo := storage.NewMemoryRepository()
	pm := services.NewPersistenceManager(repo, cache.NoopCache{}, time.Minute)
	generator := fixedCapability(validSuiteJSON)
	engine := NewEngine(pm, fixedCapability("analysis"), generator)
	ctx := context.Background()

	// A session stuck in review with no stored requirement
	require.NoError(t, repo.Commit(ctx, ports.CommitRecord{Session: domain.Session{
		SessionID: "s1",
		Stage:     domain.StageAwaitingHumanReview,
		Iteration: 1,
		UpdatedAt: time.Now().UTC(),
	}}))

	_, err := engine.Execute(ctx, "approved", "", "s1")
	assert.ErrorIs(t, err, domain.ErrNoRequirements)
	assert.Equal(t, 0, generator.calls, "generation must not run without input content")
}

func TestExecute_FallbackSuiteOnUnstructuredOutput(t *testing.T) {
	engine, _ := newEngine(t, fixedCapability("analysis"), fixedCapability("1. test the login\n2. test the logout"))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)

	result, err := engine.Execute(ctx, "approved", "", "s1")
	require.NoError(t, err)
	require.Len(t, result.TestCases, 1)
	assert.Equal(t, domain.FallbackTestID, result.TestCases[0].TestID)
	assert.Contains(t, result.TestCases[0].TestSteps[0], "test the login")
}

func TestExecute_RejectedRecordsReasonAndRestartOptions(t *testing.T) {
	engine, pm := newEngine(t, fixedCapability("analysis"), fixedCapability(validSuiteJSON))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)

	result, err := engine.Execute(ctx, "rejected", "scope too broad", "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, result.Status)
	assert.Equal(t, "scope too broad", result.RejectionReason)
	assert.Equal(t, []string{"start", "refine"}, result.RestartOptions)

	// Terminal: further actions fail
	_, err = engine.Execute(ctx, "refine", "x", "s1")
	assert.ErrorIs(t, err, domain.ErrInvalidStage)

	events, err := pm.Feedback(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.FeedbackRejection, events[0].Kind)
}

func TestExecute_RejectedWithoutReason(t *testing.T) {
	engine, _ := newEngine(t, fixedCapability("analysis"), fixedCapability(validSuiteJSON))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)

	result, err := engine.Execute(ctx, "rejected", "", "s1")
	require.NoError(t, err)
	assert.Equal(t, "No reason provided", result.RejectionReason)
}

func TestExecute_InvalidActionListsValidOnes(t *testing.T) {
	engine, pm := newEngine(t, fixedCapability("analysis"), fixedCapability(validSuiteJSON))

	_, err := engine.Execute(context.Background(), "escalate", "x", "s1")
	require.ErrorIs(t, err, domain.ErrInvalidAction)
	assert.Contains(t, err.Error(), "refine")

	// Even invalid attempts leave an audit entry
	entries, _, err := pm.History(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "failed: invalid_action", entries[0].ResultSummary)
}

func TestExecute_StartOnActiveSessionFails(t *testing.T) {
	engine, _ := newEngine(t, fixedCapability("analysis"), fixedCapability(validSuiteJSON))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)

	_, err = engine.Execute(ctx, "start", "prompt again", "s1")
	assert.ErrorIs(t, err, domain.ErrSessionExists)
}

func TestExecute_StartRetryableAfterAnalyzerFailure(t *testing.T) {
	analyzer := failingCapability(domain.ErrCapabilityUnavailable)
	engine, pm := newEngine(t, analyzer, fixedCapability(validSuiteJSON))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	assert.ErrorIs(t, err, domain.ErrCapabilityUnavailable)

	session, _, err := pm.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageInitial, session.Stage)

	analyzer.fn = func(string, string) (string, error) { return "analysis", nil }
	result, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingReview, result.Status)
}

func TestExecute_StartRetryAdoptsNewPrompt(t *testing.T) {
	analyzer := failingCapability(domain.ErrCapabilityUnavailable)
	engine, pm := newEngine(t, analyzer, fixedCapability(validSuiteJSON))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "first draft", "s1")
	assert.ErrorIs(t, err, domain.ErrCapabilityUnavailable)

	session, _, err := pm.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzing, session.Status)

	// The retry's payload replaces the failed attempt's prompt
	analyzer.fn = func(string, string) (string, error) { return "analysis", nil }
	_, err = engine.Execute(ctx, "start", "second draft", "s1")
	require.NoError(t, err)

	assert.Equal(t, "second draft", analyzer.invoked[1])
	session, _, err = pm.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "second draft", session.OriginalPrompt)
}

func TestExecute_MissingSessionOnReviewActions(t *testing.T) {
	engine, _ := newEngine(t, fixedCapability("analysis"), fixedCapability(validSuiteJSON))
	ctx := context.Background()

	for _, action := range []string{"review", "approved", "edited", "refine", "enhance", "rejected"} {
		t.Run(action, func(t *testing.T) {
			_, err := engine.Execute(ctx, action, "score:8; feedback:x", "ghost")
			assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		})
	}
}

func TestExecute_HistoryRecordsEveryAttempt(t *testing.T) {
	engine, pm := newEngine(t, fixedCapability("analysis"), failingCapability(domain.ErrCapabilityUnavailable))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)
	_, err = engine.Execute(ctx, "approved", "", "s1")
	require.Error(t, err)

	entries, _, err := pm.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "workflow_started", entries[0].StepName)
	assert.Equal(t, "approved", entries[1].StepName)
	assert.Equal(t, "failed: capability_unavailable", entries[1].ResultSummary)
}

func TestExecute_ConcurrentRefinesSerialize(t *testing.T) {
	engine, pm := newEngine(t, fixedCapability("analysis"), fixedCapability(validSuiteJSON))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	const workers = 5
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.Execute(ctx, "refine", fmt.Sprintf("feedback %d", i), "s1")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	session, _, err := pm.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1+workers, session.Iteration, "each refine bumps the iteration exactly once")

	reqs, _, err := pm.Requirements(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, reqs, 1+workers)
}

func TestExecute_UpdatedAtMonotonic(t *testing.T) {
	engine, pm := newEngine(t, fixedCapability("analysis"), fixedCapability(validSuiteJSON))
	ctx := context.Background()

	_, err := engine.Execute(ctx, "start", "prompt", "s1")
	require.NoError(t, err)
	first, _, err := pm.GetSession(ctx, "s1")
	require.NoError(t, err)

	_, err = engine.Execute(ctx, "review", "score:8; feedback:ok", "s1")
	require.NoError(t, err)
	second, _, err := pm.GetSession(ctx, "s1")
	require.NoError(t, err)

	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}
