package output

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/srt/packages/core/runner"
)

type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite groups the documents of one directory.
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitProblem `xml:"failure,omitempty"`
	Error     *JUnitProblem `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitProblem is the body of a failure or error element.
type JUnitProblem struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats test results as JUnit XML
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

// FormatResult groups results into one suite per document directory, in
// the order the directories were first seen.
func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	index := make(map[string]int)
	timestamp := time.Now().Format(time.RFC3339)

	for _, r := range result.Results {
		dir := filepath.Dir(r.File)
		i, ok := index[dir]
		if !ok {
			i = len(f.testSuites)
			index[dir] = i
			f.testSuites = append(f.testSuites, JUnitTestSuite{Name: dir, Timestamp: timestamp})
		}
		suite := &f.testSuites[i]

		tc := junitCase(r)
		switch {
		case tc.Error != nil:
			suite.Errors++
		case tc.Skipped != nil:
			suite.Skipped++
		case tc.Failure != nil:
			suite.Failures++
		}
		suite.Tests++
		suite.Time += tc.Time
		suite.TestCases = append(suite.TestCases, tc)
	}
}

func junitCase(r *runner.RequestResult) JUnitTestCase {
	tc := JUnitTestCase{Name: r.Name, ClassName: r.File, Time: r.Duration.Seconds()}

	switch {
	case r.Blocked:
		tc.Error = &JUnitProblem{Message: r.SkipReason, Type: "BlockedError"}
	case r.Skipped:
		tc.Skipped = &JUnitSkipped{Message: r.SkipReason}
	case r.Error != nil:
		tc.Error = &JUnitProblem{Message: r.Error.Error(), Type: "Error"}
	case !r.Passed:
		tc.Failure = &JUnitProblem{
			Message: "Assertion failed",
			Type:    "AssertionError",
			Content: strings.Join(failedAssertions(r), "\n"),
		}
	}
	return tc
}

func (f *JUnitFormatter) FormatError(error) {}

func (f *JUnitFormatter) FormatHeader(string) {}

func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	all := JUnitTestSuites{
		Name:       "srt",
		Time:       totalDuration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: f.testSuites,
	}
	for _, s := range f.testSuites {
		all.Tests += s.Tests
		all.Failures += s.Failures
		all.Errors += s.Errors
		all.Skipped += s.Skipped
	}

	if _, err := io.WriteString(f.writer, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f.writer)
	enc.Indent("", "  ")
	return enc.Encode(all)
}

