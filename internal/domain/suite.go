package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// FallbackTestID is assigned to the synthetic test case built when a
// generation response cannot be parsed as a structured suite.
const FallbackTestID = "TC_GEN_001"

// suiteEnvelope accepts both a bare suite and the wrapped
// {"test_suite": {...}} form the generator emits.
type suiteEnvelope struct {
	TestSuite *TestSuite `json:"test_suite"`
}

// ParseTestSuite decodes a generation response into a TestSuite. The raw
// text may wrap the suite in a top-level "test_suite" object; both shapes
// are accepted. Responses that are not valid JSON, or decode to a suite
// with no test cases, fail with an error wrapping ErrMalformedResponse.
func ParseTestSuite(raw string) (TestSuite, error) {
	trimmed := strings.TrimSpace(raw)

	// Generators frequently fence the JSON in markdown.
	trimmed = stripCodeFence(trimmed)

	var envelope suiteEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err == nil && envelope.TestSuite != nil {
		return validateSuite(*envelope.TestSuite)
	}

	var suite TestSuite
	if err := json.Unmarshal([]byte(trimmed), &suite); err != nil {
		return TestSuite{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return validateSuite(suite)
}

func validateSuite(suite TestSuite) (TestSuite, error) {
	if len(suite.TestCases) == 0 {
		return TestSuite{}, fmt.Errorf("%w: suite contains no test cases", ErrMalformedResponse)
	}
	if suite.TotalTests == 0 {
		suite.TotalTests = len(suite.TestCases)
	}
	if suite.GeneratedDate == "" {
		suite.GeneratedDate = time.Now().UTC().Format("2006-01-02")
	}
	return suite, nil
}

// FallbackSuite wraps an unparseable generation response in a single
// minimal test case so the action still succeeds with degraded output.
func FallbackSuite(sessionID, raw string) TestSuite {
	return TestSuite{
		Name:          fmt.Sprintf("Test Suite for Session %s", sessionID),
		Description:   "Unstructured generation output wrapped as a single test case",
		TotalTests:    1,
		GeneratedDate: time.Now().UTC().Format("2006-01-02"),
		TestCases: []SuiteCase{
			{
				TestID:         FallbackTestID,
				Priority:       PriorityMedium,
				Type:           "Functional",
				Summary:        "Generated test case (unstructured output)",
				Preconditions:  []string{},
				TestSteps:      []string{raw},
				TestData:       map[string]any{},
				ExpectedResult: "See test steps",
			},
		},
	}
}

// SuiteFromCases reassembles stored test cases into a presentable suite,
// highest priority first. Priorities are normalized to upper case and types
// to title case on the way out.
func SuiteFromCases(sessionID string, cases []TestCase) TestSuite {
	suiteCases := make([]SuiteCase, 0, len(cases))
	for _, tc := range cases {
		suiteCases = append(suiteCases, SuiteCase{
			ExpectedResult:          tc.ExpectedResult,
			Preconditions:           tc.Preconditions,
			Priority:                strings.ToUpper(tc.Priority),
			RequirementTraceability: tc.RequirementTraceability,
			Summary:                 tc.Summary,
			TestData:                tc.TestData,
			TestID:                  tc.TestID,
			TestSteps:               tc.TestSteps,
			Type:                    titleCase(tc.Type),
		})
	}
	sort.SliceStable(suiteCases, func(i, j int) bool {
		if suiteCases[i].Priority != suiteCases[j].Priority {
			return HigherPriority(suiteCases[i].Priority, suiteCases[j].Priority)
		}
		return suiteCases[i].TestID < suiteCases[j].TestID
	})
	return TestSuite{
		Name:          fmt.Sprintf("Test Suite for Session %s", sessionID),
		Description:   "Test cases generated from approved requirements",
		GeneratedDate: time.Now().UTC().Format("2006-01-02"),
		TestCases:     suiteCases,
		TotalTests:    len(suiteCases),
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
