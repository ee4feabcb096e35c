package domain

// WorkflowStage is the position of a session in the analysis/generation
// pipeline. Transitions happen only through the workflow engine.
type WorkflowStage string

const (
	StageInitial             WorkflowStage = "INITIAL"
	StageAnalyzing           WorkflowStage = "ANALYZING"
	StageAnalysisComplete    WorkflowStage = "ANALYSIS_COMPLETE"
	StageAwaitingHumanReview WorkflowStage = "AWAITING_HUMAN_REVIEW"
	StageRefining            WorkflowStage = "REFINING"
	StageEnhancing           WorkflowStage = "ENHANCING"
	StageAnalysisApproved    WorkflowStage = "ANALYSIS_APPROVED"
	StageAnalysisEdited      WorkflowStage = "ANALYSIS_EDITED"
	StageGeneratingTests     WorkflowStage = "GENERATING_TESTS"
	StageTestsComplete       WorkflowStage = "TESTS_COMPLETE"
	StageCompleted           WorkflowStage = "COMPLETED"
	StageRejected            WorkflowStage = "REJECTED"
	StageFailed              WorkflowStage = "FAILED"
)

// IsTerminal reports whether no further actions can advance the session.
// Rejected sessions are terminal too; callers get restart guidance instead.
func (s WorkflowStage) IsTerminal() bool {
	switch s {
	case StageCompleted, StageRejected, StageFailed:
		return true
	}
	return false
}

// InReview reports whether the stage accepts human review-cycle actions
// (refine, enhance, review, edited). REFINING and ENHANCING are sub-states
// of the review loop and count as reviewable.
func (s WorkflowStage) InReview() bool {
	switch s {
	case StageAwaitingHumanReview, StageAnalysisComplete, StageRefining, StageEnhancing:
		return true
	}
	return false
}

// CanGenerate reports whether approved may trigger test generation from
// this stage. GENERATING_TESTS is included so a failed generation leaves
// approved retryable.
func (s WorkflowStage) CanGenerate() bool {
	switch s {
	case StageAnalysisApproved, StageAnalysisEdited, StageGeneratingTests:
		return true
	}
	return s.InReview()
}
