package assertions

import (
	"fmt"
	"regexp"

	"github.com/abdul-hamid-achik/srt/packages/core/document"
	"github.com/abdul-hamid-achik/srt/packages/http"
)

const (
	OpEquals  = "=="
	OpMatches = "matches"
)

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
}

type Evaluator struct {
	response *http.Response
}

func NewEvaluator(resp *http.Response) *Evaluator {
	return &Evaluator{response: resp}
}

// Evaluate checks the response against the expectations of tc: the status
// code and, when set, the response body pattern.
func (e *Evaluator) Evaluate(tc *document.TestCase) []*Result {
	results := []*Result{e.Status(int(tc.Status))}
	if tc.ResponseRegexp != "" {
		results = append(results, e.Matches(tc.ResponseRegexp))
	}
	return results
}

func (e *Evaluator) Status(expected int) *Result {
	result := &Result{
		Subject:  "status",
		Operator: OpEquals,
		Expected: expected,
		Actual:   e.response.StatusCode,
		Passed:   e.response.StatusCode == expected,
	}
	if !result.Passed {
		result.Message = fmt.Sprintf("expected status %d, got %d", expected, e.response.StatusCode)
	}
	return result
}

func (e *Evaluator) Matches(pattern string) *Result {
	result := &Result{
		Subject:  "body",
		Operator: OpMatches,
		Expected: pattern,
		Actual:   e.response.Snippet(200),
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		result.Message = fmt.Sprintf("invalid pattern %q: %v", pattern, err)
		return result
	}

	result.Passed = re.Match(e.response.Body)
	if !result.Passed {
		result.Message = fmt.Sprintf("body does not match %q", pattern)
	}
	return result
}

// AllPassed reports whether every result passed.
func AllPassed(results []*Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
