package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/srt/packages/assertions"
	"github.com/abdul-hamid-achik/srt/packages/core/document"
	"github.com/abdul-hamid-achik/srt/packages/core/runner"
	"github.com/abdul-hamid-achik/srt/packages/http"
)

func sampleResult() *runner.RunResult {
	return &runner.RunResult{
		Results: []*runner.RequestResult{
			{
				Name:     "login",
				File:     "api/login.json",
				Passed:   true,
				Duration: 12 * time.Millisecond,
				Request:  &http.Request{Method: "POST", URL: "http://localhost/login", Body: []byte(`{"user":"a"}`)},
				Response: &http.Response{StatusCode: 200, Status: "200 OK", Duration: 10 * time.Millisecond},
				Assertions: []*assertions.Result{
					{Subject: "status", Operator: assertions.OpEquals, Expected: 200, Actual: 200, Passed: true},
				},
				Captures: map[string]any{"${login}.id": json.Number("42")},
			},
			{
				Name:     "profile",
				File:     "api/profile.json",
				Duration: 5 * time.Millisecond,
				Response: &http.Response{StatusCode: 500, Status: "500 Internal Server Error"},
				Assertions: []*assertions.Result{
					{Subject: "status", Operator: assertions.OpEquals, Expected: 200, Actual: 500, Message: "expected status 200, got 500"},
				},
			},
			{
				Name:       "settings",
				File:       "api/settings.json",
				Skipped:    true,
				SkipReason: `prerequisite "profile" failed`,
			},
			{
				Name:       "orphan",
				File:       "other/orphan.json",
				Blocked:    true,
				SkipReason: `test "orphan" requires "ghost", but no test declares that testname`,
				Error:      errors.New("unknown prerequisite"),
			},
		},
		Duration: 40 * time.Millisecond,
		Passed:   1,
		Failed:   1,
		Skipped:  1,
		Blocked:  1,
		Latency:  runner.LatencySummary{Count: 2, P50: 5 * time.Millisecond, P95: 10 * time.Millisecond, P99: 10 * time.Millisecond, Max: 10 * time.Millisecond},
	}
}

func TestConsoleFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	f.FormatHeader("1.0.0")
	f.FormatResult(sampleResult())
	out := buf.String()

	assert.Contains(t, out, "srt 1.0.0")
	assert.Contains(t, out, "✓ login (12ms)")
	assert.Contains(t, out, "POST http://localhost/login")
	assert.Contains(t, out, "${login}.id = 42")
	assert.Contains(t, out, "✗ profile")
	assert.Contains(t, out, "expected status 200, got 500")
	assert.Contains(t, out, `- settings (prerequisite "profile" failed)`)
	assert.Contains(t, out, "! orphan")
	assert.Contains(t, out, "1 passed, 1 failed, 1 skipped, 1 blocked, 4 total")
	assert.Contains(t, out, "Latency: p50=5ms p95=10ms p99=10ms max=10ms")
}

func TestConsoleFormatter_Plan(t *testing.T) {
	login, err := document.Parse("login.json", []byte(`{"testname": "login", "options": {"path": "/login", "method": "POST"}, "status": 200}`))
	require.NoError(t, err)
	remove, err := document.Parse("remove.json", []byte(`{"testname": "remove", "options": {"path": "/u/${login}.id", "method": "DELETE"}, "status": 204}`))
	require.NoError(t, err)

	plan, err := runner.BuildPlan(document.NewCollection(remove, login), runner.PlanOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	NewConsoleFormatter(WithWriter(&buf), WithNoColor(true)).FormatPlan(plan)
	out := buf.String()

	assert.Contains(t, out, "1. POST   login")
	assert.Contains(t, out, "2. DELETE remove after [login] (deferred)")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(40*time.Millisecond))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, JSONSummary{Total: 4, Passed: 1, Failed: 1, Skipped: 1, Blocked: 1}, out.Summary)
	require.Len(t, out.Tests, 4)
	assert.Equal(t, "api/login.json", out.Tests[0].File)
	assert.JSONEq(t, `{"user":"a"}`, string(out.Tests[0].Request.Body))
	assert.Equal(t, float64(42), out.Tests[0].Captures["${login}.id"])
	assert.True(t, out.Tests[3].Blocked)
	assert.Empty(t, out.Tests[3].Error)
	require.NotNil(t, out.Latency)
	assert.Equal(t, int64(2), out.Latency.Count)
	assert.InDelta(t, 10.0, out.Latency.P95, 0.001)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(40*time.Millisecond))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal([]byte(strings.SplitN(out, "\n", 2)[1]), &suites))

	assert.Equal(t, "srt", suites.Name)
	assert.Equal(t, 4, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	assert.Equal(t, 1, suites.Skipped)

	require.Len(t, suites.TestSuites, 2)
	assert.Equal(t, "api", suites.TestSuites[0].Name)
	assert.Equal(t, 3, suites.TestSuites[0].Tests)
	assert.Equal(t, "other", suites.TestSuites[1].Name)
	require.NotNil(t, suites.TestSuites[1].TestCases[0].Error)
	assert.Equal(t, "BlockedError", suites.TestSuites[1].TestCases[0].Error.Type)
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(0))

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "TAP version 13", lines[0])
	assert.Equal(t, "1..4", lines[1])
	assert.Equal(t, "ok 1 - login", lines[2])
	assert.Equal(t, "not ok 2 - profile", lines[3])

	out := buf.String()
	assert.Contains(t, out, "    - \"status ==: expected 200, got 500\"")
	assert.Contains(t, out, `ok 3 - settings # SKIP prerequisite "profile" failed`)
	assert.Contains(t, out, "not ok 4 - orphan")
	assert.Contains(t, out, "severity: error")
}

func TestEscapeYAML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a: b", `"a: b"`},
		{`say "hi"`, `"say \"hi\""`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeYAML(tt.in))
	}
}
