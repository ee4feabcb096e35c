package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wrappedSuite = `{
  "test_suite": {
    "name": "Auth Suite",
    "description": "Login tests",
    "total_tests": 2,
    "generated_date": "2026-08-01",
    "test_cases": [
      {
        "test_id": "TC_FUNC_001",
        "priority": "CRITICAL",
        "type": "Functional",
        "summary": "Valid login",
        "preconditions": ["user exists"],
        "test_steps": ["open login page", "submit credentials"],
        "test_data": {"email": "a@b.c"},
        "expected_result": "user is logged in",
        "requirement_traceability": "REQ-1"
      },
      {
        "test_id": "TC_SEC_001",
        "priority": "HIGH",
        "type": "Security",
        "summary": "Lockout after failures",
        "preconditions": [],
        "test_steps": ["fail login 5 times"],
        "test_data": {},
        "expected_result": "account locked",
        "requirement_traceability": "REQ-2"
      }
    ]
  }
}`

func TestParseTestSuite_WrappedEnvelope(t *testing.T) {
	suite, err := ParseTestSuite(wrappedSuite)
	require.NoError(t, err)

	assert.Equal(t, "Auth Suite", suite.Name)
	assert.Equal(t, 2, suite.TotalTests)
	require.Len(t, suite.TestCases, 2)
	assert.Equal(t, "TC_FUNC_001", suite.TestCases[0].TestID)
	assert.Equal(t, []string{"open login page", "submit credentials"}, suite.TestCases[0].TestSteps)
}

func TestParseTestSuite_BareSuite(t *testing.T) {
	bare := `{"name":"S","description":"d","test_cases":[{"test_id":"TC_1","priority":"LOW","type":"Functional","summary":"s","preconditions":[],"test_steps":["x"],"test_data":{},"expected_result":"ok"}]}`

	suite, err := ParseTestSuite(bare)
	require.NoError(t, err)
	assert.Equal(t, 1, suite.TotalTests, "total_tests defaults to case count")
	assert.NotEmpty(t, suite.GeneratedDate)
}

func TestParseTestSuite_FencedJSON(t *testing.T) {
	fenced := "```json\n" + wrappedSuite + "\n```"
	suite, err := ParseTestSuite(fenced)
	require.NoError(t, err)
	assert.Len(t, suite.TestCases, 2)
}

func TestParseTestSuite_RejectsPlainText(t *testing.T) {
	_, err := ParseTestSuite("Here are some test cases:\n1. Try logging in\n2. Try logging out")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseTestSuite_RejectsEmptySuite(t *testing.T) {
	_, err := ParseTestSuite(`{"name":"empty","test_cases":[]}`)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestFallbackSuite_WrapsRawText(t *testing.T) {
	raw := "1. Try logging in with a valid password"
	suite := FallbackSuite("sess-1", raw)

	require.Len(t, suite.TestCases, 1)
	assert.Equal(t, FallbackTestID, suite.TestCases[0].TestID)
	assert.Equal(t, []string{raw}, suite.TestCases[0].TestSteps)
	assert.Equal(t, 1, suite.TotalTests)
	assert.Contains(t, suite.Name, "sess-1")
}

func TestTestSuite_ToCSV(t *testing.T) {
	suite, err := ParseTestSuite(wrappedSuite)
	require.NoError(t, err)

	out, err := suite.ToCSV()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, "header plus two rows")
	assert.Contains(t, lines[0], "Test ID")
	assert.Contains(t, lines[1], "TC_FUNC_001")
	assert.Contains(t, lines[1], "open login page; submit credentials")
}

func TestSuiteFromCases_OrdersByPriority(t *testing.T) {
	cases := []TestCase{
		{TestID: "TC003", Priority: "low", Type: "functional"},
		{TestID: "TC001", Priority: "critical", Type: "security"},
		{TestID: "TC002", Priority: "high", Type: "functional"},
		{TestID: "TC004", Priority: "critical", Type: "functional"},
	}

	suite := SuiteFromCases("s1", cases)
	require.Len(t, suite.TestCases, 4)

	ids := make([]string, 0, len(suite.TestCases))
	for _, tc := range suite.TestCases {
		ids = append(ids, tc.TestID)
	}
	assert.Equal(t, []string{"TC001", "TC004", "TC002", "TC003"}, ids)
	assert.Equal(t, "CRITICAL", suite.TestCases[0].Priority)
	assert.Equal(t, "Security", suite.TestCases[0].Type)
	assert.Equal(t, 4, suite.TotalTests)
}

func TestHigherPriority_Ordering(t *testing.T) {
	assert.True(t, HigherPriority(PriorityCritical, PriorityHigh))
	assert.True(t, HigherPriority(PriorityHigh, PriorityMedium))
	assert.True(t, HigherPriority(PriorityMedium, PriorityLow))
	assert.False(t, HigherPriority(PriorityLow, PriorityCritical))
	assert.True(t, HigherPriority("critical", "unknown"), "case-insensitive, unknown sorts last")
}

func TestRequirement_CurrentContent(t *testing.T) {
	req := Requirement{OriginalContent: "original"}
	assert.Equal(t, "original", req.CurrentContent())

	req.EditedContent = "edited"
	assert.Equal(t, "edited", req.CurrentContent())
}
