package domain

import (
	"encoding/csv"
	"strings"
	"time"
)

// Test case priorities, highest first
const (
	PriorityCritical = "CRITICAL"
	PriorityHigh     = "HIGH"
	PriorityMedium   = "MEDIUM"
	PriorityLow      = "LOW"
)

// priorityRank orders priorities for sorting; unknown values sort last.
func priorityRank(p string) int {
	switch strings.ToUpper(p) {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// HigherPriority reports whether a outranks b.
func HigherPriority(a, b string) bool {
	return priorityRank(a) < priorityRank(b)
}

// TestCase is one structured, generated test artifact. Never mutated after
// creation; corrections require new rows.
type TestCase struct {
	CreatedAt               time.Time      `json:"created_at"`
	ExpectedResult          string         `json:"expected_result"`
	ID                      string         `json:"id"`
	Iteration               int            `json:"iteration"`
	Preconditions           []string       `json:"preconditions,omitempty"`
	Priority                string         `json:"priority"`
	RequirementTraceability string         `json:"requirement_traceability,omitempty"`
	SessionID               string         `json:"session_id"`
	Summary                 string         `json:"summary"`
	TestData                map[string]any `json:"test_data,omitempty"`
	TestID                  string         `json:"test_id"`
	TestSteps               []string       `json:"test_steps,omitempty"`
	Type                    string         `json:"type"`
}

// TestSuite is the structured collection a generation response parses into.
type TestSuite struct {
	Description   string     `json:"description"`
	GeneratedDate string     `json:"generated_date"`
	Name          string     `json:"name"`
	TestCases     []SuiteCase `json:"test_cases"`
	TotalTests    int        `json:"total_tests"`
}

// SuiteCase is one entry of a TestSuite as it appears on the wire.
type SuiteCase struct {
	ExpectedResult          string         `json:"expected_result"`
	Preconditions           []string       `json:"preconditions"`
	Priority                string         `json:"priority"`
	RequirementTraceability string         `json:"requirement_traceability"`
	Summary                 string         `json:"summary"`
	TestData                map[string]any `json:"test_data"`
	TestID                  string         `json:"test_id"`
	TestSteps               []string       `json:"test_steps"`
	Type                    string         `json:"type"`
}

// ToCSV renders the suite as CSV with one row per test case.
func (s TestSuite) ToCSV() (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{
		"Test ID", "Priority", "Type", "Summary",
		"Preconditions", "Test Steps", "Expected Result",
		"Requirement Traceability",
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, tc := range s.TestCases {
		row := []string{
			tc.TestID,
			tc.Priority,
			tc.Type,
			tc.Summary,
			strings.Join(tc.Preconditions, "; "),
			strings.Join(tc.TestSteps, "; "),
			tc.ExpectedResult,
			tc.RequirementTraceability,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	return sb.String(), w.Error()
}
