package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reqflow/internal/domain"
	"reqflow/internal/logging"
	"reqflow/internal/ports"
	"reqflow/internal/services"
)

// Audit step names, one per engine transition attempt
const (
	stepWorkflowStarted  = "workflow_started"
	stepAnalysisRefined  = "analysis_refined"
	stepAnalysisEnhanced = "analysis_enhanced"
	stepQualityReview    = "quality_review"
	stepAnalysisEdited   = "analysis_edited"
	stepTestsGenerated   = "tests_generated"
	stepWorkflowRejected = "workflow_rejected"
)

// Engine drives sessions through the analysis/generation pipeline. It is
// the only writer of workflow state: capabilities are invoked between a
// validation read and a transactional commit, so a failed invocation leaves
// the stage unchanged and the action safely retryable.
type Engine struct {
	analyzer    ports.Capability
	generator   ports.Capability
	locks       *sessionLocks
	now         func() time.Time
	persistence *services.PersistenceManager
}

// NewEngine creates an Engine
func NewEngine(persistence *services.PersistenceManager, analyzer, generator ports.Capability) *Engine {
	return &Engine{
		analyzer:    analyzer,
		generator:   generator,
		locks:       newSessionLocks(),
		now:         func() time.Time { return time.Now().UTC() },
		persistence: persistence,
	}
}

// Execute runs one workflow action against a session. Transitions on the
// same session are serialized; every attempt, failed ones included, leaves
// an audit history entry.
func (e *Engine) Execute(ctx context.Context, rawAction, payload, sessionID string) (*Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	payload = strings.TrimSpace(payload)
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	action, err := domain.ParseAction(rawAction)
	if err != nil {
		e.audit(ctx, sessionID, strings.TrimSpace(rawAction), err)
		return nil, err
	}

	unlock := e.locks.acquire(sessionID)
	defer unlock()

	logging.Logger.Info("executing workflow action",
		"action", action,
		"session_id", sessionID,
	)

	var result *Result
	switch action {
	case domain.ActionStart:
		result, err = e.start(ctx, payload, sessionID)
	case domain.ActionRefine:
		result, err = e.refine(ctx, payload, sessionID)
	case domain.ActionEnhance:
		result, err = e.enhance(ctx, payload, sessionID)
	case domain.ActionReview:
		result, err = e.review(ctx, payload, sessionID)
	case domain.ActionEdited:
		result, err = e.edited(ctx, payload, sessionID)
	case domain.ActionApproved:
		result, err = e.approved(ctx, sessionID)
	case domain.ActionRejected:
		result, err = e.rejected(ctx, payload, sessionID)
	}

	if err != nil {
		e.audit(ctx, sessionID, string(action), err)
		logging.Logger.Warn("workflow action failed",
			"action", action,
			"session_id", sessionID,
			"error", err,
		)
	}
	return result, err
}

// start creates a session and runs the initial analysis. The session row is
// committed at INITIAL before the analyzer is invoked, so a failed analysis
// leaves start valid for retry.
func (e *Engine) start(ctx context.Context, payload, sessionID string) (*Result, error) {
	session, _, err := e.persistence.GetSession(ctx, sessionID)
	switch {
	case err == nil:
		if session.Stage != domain.StageInitial {
			return nil, fmt.Errorf("%w: session %s is in stage %s", domain.ErrSessionExists, sessionID, session.Stage)
		}
		// A session stuck at INITIAL is a failed first attempt; the retry's
		// payload becomes the prompt the stored analysis derives from.
		session.OriginalPrompt = payload
	case errors.Is(err, domain.ErrSessionNotFound):
		now := e.now()
		session = &domain.Session{
			CreatedAt:      now,
			Iteration:      1,
			OriginalPrompt: payload,
			SessionID:      sessionID,
			Stage:          domain.StageInitial,
			Status:         domain.StatusAnalyzing,
			UpdatedAt:      now,
		}
		if err := e.persistence.Commit(ctx, ports.CommitRecord{Session: *session}); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	analysis, err := e.analyzer.Invoke(ctx, payload, sessionID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	session.Stage = domain.StageAwaitingHumanReview
	session.Status = domain.StatusReviewing
	session.UpdatedAt = now

	req := domain.Requirement{
		CreatedAt:       now,
		ID:              uuid.NewString(),
		OriginalContent: analysis,
		Priority:        "medium",
		RequirementType: "functional",
		SessionID:       sessionID,
		Source:          domain.SourceAgentGenerated,
		Status:          "active",
		UpdatedAt:       now,
		Version:         1,
	}

	if err := e.persistence.Commit(ctx, ports.CommitRecord{
		Session:        *session,
		NewRequirement: &req,
		History: &domain.HistoryEntry{
			SessionID:     sessionID,
			StepName:      stepWorkflowStarted,
			ResultSummary: "initial analysis stored, awaiting human review",
			Timestamp:     now,
		},
	}); err != nil {
		return nil, err
	}

	return &Result{
		SessionID:        sessionID,
		Status:           StatusAwaitingReview,
		Stage:            session.Stage,
		Iteration:        session.Iteration,
		Analysis:         analysis,
		AvailableActions: reviewActions(),
	}, nil
}

// refine re-runs the analysis with human feedback folded into the prompt.
// The result supersedes the current requirement under a bumped iteration.
func (e *Engine) refine(ctx context.Context, payload, sessionID string) (*Result, error) {
	session, err := e.reviewableSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("Original analysis needs refinement. Human feedback: %s. Please re-analyze considering this feedback.", payload)
	analysis, err := e.analyzer.Invoke(ctx, prompt, sessionID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	session.Iteration++
	session.Stage = domain.StageAwaitingHumanReview
	session.Status = domain.StatusReviewing
	session.UpdatedAt = now

	req := domain.Requirement{
		CreatedAt:       now,
		ID:              uuid.NewString(),
		OriginalContent: analysis,
		Priority:        "medium",
		RequirementType: "functional",
		SessionID:       sessionID,
		Source:          domain.SourceRefined,
		Status:          "active",
		UpdatedAt:       now,
		Version:         1,
	}

	if err := e.persistence.Commit(ctx, ports.CommitRecord{
		Session:        *session,
		NewRequirement: &req,
		Event: &domain.FeedbackEvent{
			Iteration: session.Iteration,
			Kind:      domain.FeedbackRefinement,
			Payload:   payload,
			SessionID: sessionID,
			Timestamp: now,
		},
		History: &domain.HistoryEntry{
			SessionID:     sessionID,
			StepName:      stepAnalysisRefined,
			ResultSummary: fmt.Sprintf("analysis refined, iteration %d", session.Iteration),
			Timestamp:     now,
		},
	}); err != nil {
		return nil, err
	}

	return &Result{
		SessionID:        sessionID,
		Status:           StatusAwaitingReview,
		Stage:            session.Stage,
		Iteration:        session.Iteration,
		Analysis:         analysis,
		AvailableActions: reviewActions(),
	}, nil
}

// enhance re-runs the analysis with the current output plus additional
// human context. Like refine it opens a new iteration; only the prompt
// framing differs.
func (e *Engine) enhance(ctx context.Context, payload, sessionID string) (*Result, error) {
	session, err := e.reviewableSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	current := ""
	if req, err := e.persistence.CurrentRequirement(ctx, sessionID); err == nil {
		current = req.CurrentContent()
	}

	prompt := fmt.Sprintf("Current analysis: %s\n\nAdditional context from human: %s\n\nPlease enhance the analysis with this new information.", current, payload)
	analysis, err := e.analyzer.Invoke(ctx, prompt, sessionID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	session.Iteration++
	session.Stage = domain.StageAwaitingHumanReview
	session.Status = domain.StatusReviewing
	session.UpdatedAt = now

	req := domain.Requirement{
		CreatedAt:       now,
		ID:              uuid.NewString(),
		OriginalContent: analysis,
		Priority:        "medium",
		RequirementType: "functional",
		SessionID:       sessionID,
		Source:          domain.SourceEnhanced,
		Status:          "active",
		UpdatedAt:       now,
		Version:         1,
	}

	if err := e.persistence.Commit(ctx, ports.CommitRecord{
		Session:        *session,
		NewRequirement: &req,
		Event: &domain.FeedbackEvent{
			Iteration: session.Iteration,
			Kind:      domain.FeedbackEnhancement,
			Payload:   payload,
			SessionID: sessionID,
			Timestamp: now,
		},
		History: &domain.HistoryEntry{
			SessionID:     sessionID,
			StepName:      stepAnalysisEnhanced,
			ResultSummary: fmt.Sprintf("analysis enhanced, iteration %d", session.Iteration),
			Timestamp:     now,
		},
	}); err != nil {
		return nil, err
	}

	return &Result{
		SessionID:        sessionID,
		Status:           StatusAwaitingReview,
		Stage:            session.Stage,
		Iteration:        session.Iteration,
		Analysis:         analysis,
		AvailableActions: reviewActions(),
	}, nil
}

// review records a quality score without moving the pipeline.
func (e *Engine) review(ctx context.Context, payload, sessionID string) (*Result, error) {
	session, _, err := e.persistence.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	parsed, err := domain.ParseReview(payload)
	if err != nil {
		return nil, err
	}

	now := e.now()
	session.UpdatedAt = now

	if err := e.persistence.Commit(ctx, ports.CommitRecord{
		Session: *session,
		Event: &domain.FeedbackEvent{
			Iteration: session.Iteration,
			Kind:      domain.FeedbackQualityReview,
			Payload:   payload,
			SessionID: sessionID,
			Timestamp: now,
		},
		Score: &domain.QualityScore{
			FeedbackText: parsed.Feedback,
			IterationKey: fmt.Sprintf("iteration_%d", session.Iteration),
			Score:        parsed.Score,
			SessionID:    sessionID,
			Timestamp:    now,
		},
		History: &domain.HistoryEntry{
			SessionID:     sessionID,
			StepName:      stepQualityReview,
			ResultSummary: fmt.Sprintf("scored %d/10", parsed.Score),
			Timestamp:     now,
		},
	}); err != nil {
		return nil, err
	}

	if parsed.Score < 7 {
		return &Result{
			SessionID: sessionID,
			Status:    StatusNeedsImprovement,
			Stage:     session.Stage,
			Iteration: session.Iteration,
			Score:     parsed.Score,
			Feedback:  parsed.Feedback,
			SuggestedActions: []string{
				string(domain.ActionRefine),
				string(domain.ActionEnhance),
				string(domain.ActionRejected),
			},
		}, nil
	}

	return &Result{
		SessionID:        sessionID,
		Status:           StatusQualityApproved,
		Stage:            session.Stage,
		Iteration:        session.Iteration,
		Score:            parsed.Score,
		Feedback:         parsed.Feedback,
		AvailableActions: []string{string(domain.ActionApproved)},
	}, nil
}

// edited takes the payload as authoritative content, bypassing the
// analyzer, and runs generation from it. The edit is committed before the
// generator is invoked: a generation failure must not lose human content,
// and approved remains valid from ANALYSIS_EDITED for retry.
func (e *Engine) edited(ctx context.Context, payload, sessionID string) (*Result, error) {
	session, err := e.reviewableSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	session.Stage = domain.StageAnalysisEdited
	session.Status = domain.StatusEditing
	session.UpdatedAt = now

	rec := ports.CommitRecord{
		Session: *session,
		Event: &domain.FeedbackEvent{
			Iteration: session.Iteration,
			Kind:      domain.FeedbackDirectEdit,
			Payload:   payload,
			SessionID: sessionID,
			Timestamp: now,
		},
		History: &domain.HistoryEntry{
			SessionID:     sessionID,
			StepName:      stepAnalysisEdited,
			ResultSummary: "human edit stored as authoritative content",
			Timestamp:     now,
		},
	}

	// Update the newest requirement in place when one exists; the original
	// content is preserved alongside the edit. First edit on an empty
	// session creates the row instead.
	if current, err := e.persistence.CurrentRequirement(ctx, sessionID); err == nil {
		current.EditedContent = payload
		current.Source = domain.SourceUserEdited
		current.Version++
		current.UpdatedAt = now
		rec.UpdatedRequirement = current
	} else if errors.Is(err, domain.ErrNoRequirements) {
		rec.NewRequirement = &domain.Requirement{
			CreatedAt:       now,
			EditedContent:   payload,
			ID:              uuid.NewString(),
			OriginalContent: payload,
			Priority:        "medium",
			RequirementType: "functional",
			SessionID:       sessionID,
			Source:          domain.SourceUserEdited,
			Status:          "active",
			UpdatedAt:       now,
			Version:         1,
		}
	} else {
		return nil, err
	}

	if err := e.persistence.Commit(ctx, rec); err != nil {
		return nil, err
	}

	return e.generate(ctx, session, payload)
}

// approved resolves the authoritative requirement content and runs
// generation from it.
func (e *Engine) approved(ctx context.Context, sessionID string) (*Result, error) {
	session, _, err := e.persistence.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Stage.CanGenerate() {
		return nil, fmt.Errorf("%w: approved is not valid in stage %s", domain.ErrInvalidStage, session.Stage)
	}

	current, err := e.persistence.CurrentRequirement(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	session.Stage = domain.StageGeneratingTests
	session.Status = domain.StatusApproved
	session.UpdatedAt = now
	if err := e.persistence.Commit(ctx, ports.CommitRecord{Session: *session}); err != nil {
		return nil, err
	}

	return e.generate(ctx, session, current.CurrentContent())
}

// generate invokes the generation capability and commits the parsed test
// cases together with the terminal stage. Unparseable generator output
// degrades to a single fallback test case rather than failing the action.
func (e *Engine) generate(ctx context.Context, session *domain.Session, input string) (*Result, error) {
	raw, err := e.generator.Invoke(ctx, input, session.SessionID)
	if err != nil {
		return nil, err
	}

	suite, err := domain.ParseTestSuite(raw)
	if err != nil {
		logging.Logger.Warn("unstructured generation output, using fallback suite",
			"session_id", session.SessionID,
			"error", err,
		)
		suite = domain.FallbackSuite(session.SessionID, raw)
	}

	now := e.now()
	cases := make([]domain.TestCase, 0, len(suite.TestCases))
	for i, sc := range suite.TestCases {
		testID := sc.TestID
		if testID == "" {
			testID = fmt.Sprintf("TC_AUTO_%03d", i+1)
		}
		cases = append(cases, domain.TestCase{
			CreatedAt:               now,
			ExpectedResult:          sc.ExpectedResult,
			ID:                      uuid.NewString(),
			Iteration:               session.Iteration,
			Preconditions:           sc.Preconditions,
			Priority:                strings.ToUpper(sc.Priority),
			RequirementTraceability: sc.RequirementTraceability,
			SessionID:               session.SessionID,
			Summary:                 sc.Summary,
			TestData:                sc.TestData,
			TestID:                  testID,
			TestSteps:               sc.TestSteps,
			Type:                    sc.Type,
		})
	}

	session.Stage = domain.StageCompleted
	session.Status = domain.StatusCompleted
	session.UpdatedAt = now

	if err := e.persistence.Commit(ctx, ports.CommitRecord{
		Session:   *session,
		TestCases: cases,
		History: &domain.HistoryEntry{
			SessionID:     session.SessionID,
			StepName:      stepTestsGenerated,
			ResultSummary: fmt.Sprintf("%d test cases generated", len(cases)),
			Timestamp:     now,
		},
	}); err != nil {
		return nil, err
	}

	return &Result{
		SessionID: session.SessionID,
		Status:    StatusCompleted,
		Stage:     session.Stage,
		Iteration: session.Iteration,
		TestCases: cases,
	}, nil
}

// rejected moves the session to its terminal rejected state and returns
// restart guidance.
func (e *Engine) rejected(ctx context.Context, payload, sessionID string) (*Result, error) {
	session, _, err := e.persistence.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Stage.IsTerminal() {
		return nil, fmt.Errorf("%w: session %s is already in terminal stage %s", domain.ErrInvalidStage, sessionID, session.Stage)
	}

	reason := payload
	if reason == "" {
		reason = "No reason provided"
	}

	now := e.now()
	session.Stage = domain.StageRejected
	session.Status = domain.StatusRejected
	session.UpdatedAt = now

	if err := e.persistence.Commit(ctx, ports.CommitRecord{
		Session: *session,
		Event: &domain.FeedbackEvent{
			Iteration: session.Iteration,
			Kind:      domain.FeedbackRejection,
			Payload:   reason,
			SessionID: sessionID,
			Timestamp: now,
		},
		History: &domain.HistoryEntry{
			SessionID:     sessionID,
			StepName:      stepWorkflowRejected,
			ResultSummary: "workflow rejected: " + reason,
			Timestamp:     now,
		},
	}); err != nil {
		return nil, err
	}

	return &Result{
		SessionID:       sessionID,
		Status:          StatusRejected,
		Stage:           session.Stage,
		Iteration:       session.Iteration,
		RejectionReason: reason,
		RestartOptions: []string{
			string(domain.ActionStart),
			string(domain.ActionRefine),
		},
	}, nil
}

// reviewableSession loads a session and checks it accepts review-cycle
// actions.
func (e *Engine) reviewableSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, _, err := e.persistence.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Stage.InReview() {
		return nil, fmt.Errorf("%w: session %s is in stage %s, not awaiting review", domain.ErrInvalidStage, sessionID, session.Stage)
	}
	return session, nil
}

// audit best-effort records a failed or invalid transition attempt. The
// audit trail carries every attempt, so a failure to write it is only
// logged.
func (e *Engine) audit(ctx context.Context, sessionID, step string, actionErr error) {
	entry := domain.HistoryEntry{
		SessionID:     sessionID,
		StepName:      step,
		ResultSummary: "failed: " + errorKind(actionErr),
		Timestamp:     e.now(),
	}
	if err := e.persistence.AppendHistory(ctx, entry); err != nil {
		logging.Logger.Warn("failed to record audit entry",
			"session_id", sessionID,
			"step", step,
			"error", err,
		)
	}
}

// errorKind maps an error to its classification label for the audit trail.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, domain.ErrInvalidStage):
		return "invalid_stage"
	case errors.Is(err, domain.ErrInvalidReviewFormat):
		return "invalid_review_format"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, domain.ErrSessionExists):
		return "session_exists"
	case errors.Is(err, domain.ErrNoRequirements):
		return "no_requirements"
	case errors.Is(err, domain.ErrCapabilityTimeout):
		return "capability_timeout"
	case errors.Is(err, domain.ErrCapabilityUnavailable):
		return "capability_unavailable"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return "persistence_unavailable"
	}
	return "internal_error"
}
