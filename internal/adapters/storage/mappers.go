package storage

import (
	"encoding/json"

	"reqflow/internal/domain"
	"reqflow/internal/logging"
)

// marshalJSON encodes a value for a JSON text column. Encoding a slice or
// map of strings cannot fail; a failure is logged and degrades to the zero
// literal rather than aborting the write.
func marshalJSON(v any, zero string) string {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Logger.Warn("failed to encode JSON column", "error", err)
		return zero
	}
	return string(data)
}

func unmarshalStrings(data string) []string {
	if data == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		logging.Logger.Warn("failed to decode JSON column", "error", err)
		return nil
	}
	return out
}

func unmarshalMap(data string) map[string]any {
	if data == "" {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		logging.Logger.Warn("failed to decode JSON column", "error", err)
	}
	return out
}

// sessionModelToDomain converts a SessionModel (GORM) to domain.Session
func sessionModelToDomain(m SessionModel) domain.Session {
	return domain.Session{
		CreatedAt:      m.CreatedAt,
		Iteration:      m.Iteration,
		OriginalPrompt: m.OriginalPrompt,
		ProjectName:    m.ProjectName,
		SessionID:      m.SessionID,
		Stage:          domain.WorkflowStage(m.Stage),
		Status:         m.Status,
		UpdatedAt:      m.UpdatedAt,
		UserID:         m.UserID,
	}
}

// domainToSessionModel converts a domain.Session to SessionModel (GORM)
func domainToSessionModel(s domain.Session) SessionModel {
	return SessionModel{
		CreatedAt:      s.CreatedAt,
		Iteration:      s.Iteration,
		OriginalPrompt: s.OriginalPrompt,
		ProjectName:    s.ProjectName,
		SessionID:      s.SessionID,
		Stage:          string(s.Stage),
		Status:         s.Status,
		UpdatedAt:      s.UpdatedAt,
		UserID:         s.UserID,
	}
}

func requirementModelToDomain(m RequirementModel) domain.Requirement {
	return domain.Requirement{
		CreatedAt:       m.CreatedAt,
		EditedContent:   m.EditedContent,
		ID:              m.ID,
		OriginalContent: m.OriginalContent,
		Priority:        m.Priority,
		RequirementType: m.RequirementType,
		SessionID:       m.SessionID,
		Source:          m.Source,
		Status:          m.Status,
		Tags:            unmarshalStrings(m.Tags),
		UpdatedAt:       m.UpdatedAt,
		Version:         m.Version,
	}
}

func domainToRequirementModel(r domain.Requirement) RequirementModel {
	return RequirementModel{
		CreatedAt:       r.CreatedAt,
		EditedContent:   r.EditedContent,
		ID:              r.ID,
		OriginalContent: r.OriginalContent,
		Priority:        r.Priority,
		RequirementType: r.RequirementType,
		SessionID:       r.SessionID,
		Source:          r.Source,
		Status:          r.Status,
		Tags:            marshalJSON(r.Tags, "[]"),
		UpdatedAt:       r.UpdatedAt,
		Version:         r.Version,
	}
}

func testCaseModelToDomain(m TestCaseModel) domain.TestCase {
	return domain.TestCase{
		CreatedAt:               m.CreatedAt,
		ExpectedResult:          m.ExpectedResult,
		ID:                      m.ID,
		Iteration:               m.Iteration,
		Preconditions:           unmarshalStrings(m.Preconditions),
		Priority:                m.Priority,
		RequirementTraceability: m.RequirementTraceability,
		SessionID:               m.SessionID,
		Summary:                 m.Summary,
		TestData:                unmarshalMap(m.TestData),
		TestID:                  m.TestID,
		TestSteps:               unmarshalStrings(m.TestSteps),
		Type:                    m.Type,
	}
}

func domainToTestCaseModel(tc domain.TestCase) TestCaseModel {
	return TestCaseModel{
		CreatedAt:               tc.CreatedAt,
		ExpectedResult:          tc.ExpectedResult,
		ID:                      tc.ID,
		Iteration:               tc.Iteration,
		Preconditions:           marshalJSON(tc.Preconditions, "[]"),
		Priority:                tc.Priority,
		RequirementTraceability: tc.RequirementTraceability,
		SessionID:               tc.SessionID,
		Summary:                 tc.Summary,
		TestData:                marshalJSON(tc.TestData, "{}"),
		TestID:                  tc.TestID,
		TestSteps:               marshalJSON(tc.TestSteps, "[]"),
		Type:                    tc.Type,
	}
}

func feedbackModelToDomain(m FeedbackEventModel) domain.FeedbackEvent {
	return domain.FeedbackEvent{
		Iteration: m.Iteration,
		Kind:      domain.FeedbackKind(m.Kind),
		Payload:   m.Payload,
		SessionID: m.SessionID,
		Timestamp: m.Timestamp,
	}
}

func domainToFeedbackModel(e domain.FeedbackEvent) FeedbackEventModel {
	return FeedbackEventModel{
		Iteration: e.Iteration,
		Kind:      string(e.Kind),
		Payload:   e.Payload,
		SessionID: e.SessionID,
		Timestamp: e.Timestamp,
	}
}

func scoreModelToDomain(m QualityScoreModel) domain.QualityScore {
	return domain.QualityScore{
		FeedbackText: m.FeedbackText,
		IterationKey: m.IterationKey,
		Score:        m.Score,
		SessionID:    m.SessionID,
		Timestamp:    m.Timestamp,
	}
}

func domainToScoreModel(s domain.QualityScore) QualityScoreModel {
	return QualityScoreModel{
		FeedbackText: s.FeedbackText,
		IterationKey: s.IterationKey,
		Score:        s.Score,
		SessionID:    s.SessionID,
		Timestamp:    s.Timestamp,
	}
}

func historyModelToDomain(m HistoryEntryModel) domain.HistoryEntry {
	return domain.HistoryEntry{
		ResultSummary: m.ResultSummary,
		SessionID:     m.SessionID,
		StepName:      m.StepName,
		Timestamp:     m.Timestamp,
	}
}

func domainToHistoryModel(h domain.HistoryEntry) HistoryEntryModel {
	return HistoryEntryModel{
		ResultSummary: h.ResultSummary,
		SessionID:     h.SessionID,
		StepName:      h.StepName,
		Timestamp:     h.Timestamp,
	}
}
