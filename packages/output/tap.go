package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/srt/packages/core/runner"
)

// TAPFormatter writes TAP version 13. The plan line needs the test count,
// so results are buffered until Flush.
type TAPFormatter struct {
	writer  io.Writer
	results []*runner.RequestResult
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	f.results = append(f.results, result.Results...)
}

func (f *TAPFormatter) FormatError(error) {}

func (f *TAPFormatter) FormatHeader(string) {}

func (f *TAPFormatter) Flush(time.Duration) error {
	var b strings.Builder
	b.WriteString("TAP version 13\n")
	fmt.Fprintf(&b, "1..%d\n", len(f.results))

	for i, r := range f.results {
		n := i + 1
		switch {
		case r.Skipped && !r.Blocked:
			reason := r.SkipReason
			if reason == "" {
				reason = "SKIP"
			}
			fmt.Fprintf(&b, "ok %d - %s # SKIP %s\n", n, r.Name, reason)

		case r.Blocked || r.Error != nil:
			msg := r.SkipReason
			if r.Error != nil && !r.Blocked {
				msg = r.Error.Error()
			}
			fmt.Fprintf(&b, "not ok %d - %s\n", n, r.Name)
			writeDiagnostic(&b, "message: "+escapeYAML(msg), "severity: error", "file: "+escapeYAML(r.File))

		case r.Passed:
			fmt.Fprintf(&b, "ok %d - %s\n", n, r.Name)

		default:
			fmt.Fprintf(&b, "not ok %d - %s\n", n, r.Name)
			if failures := failedAssertions(r); len(failures) > 0 {
				lines := []string{"failures:"}
				for _, msg := range failures {
					lines = append(lines, "  - "+escapeYAML(msg))
				}
				writeDiagnostic(&b, lines...)
			}
		}
	}

	b.WriteString("\n")
	_, err := io.WriteString(f.writer, b.String())
	return err
}

// writeDiagnostic writes a YAML block under a test line.
func writeDiagnostic(b *strings.Builder, lines ...string) {
	b.WriteString("  ---\n")
	for _, l := range lines {
		b.WriteString("  " + l + "\n")
	}
	b.WriteString("  ...\n")
}

// failedAssertions describes every failed assertion of r.
func failedAssertions(r *runner.RequestResult) []string {
	var out []string
	for _, a := range r.Assertions {
		if !a.Passed {
			out = append(out, fmt.Sprintf("%s %s: expected %v, got %v", a.Subject, a.Operator, a.Expected, a.Actual))
		}
	}
	return out
}

func escapeYAML(s string) string {
	if !strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
