// Package notify posts run summaries to chat and webhook endpoints.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/srt/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when the run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when the run passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first
	// passing run after one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a policy name.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	case "":
		return NotifyFailure, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (use always, failure, success or recovery)", s)
	}
}

// RunSummary is what a notifier reports about one run.
type RunSummary struct {
	Total      int           `json:"total"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Blocked    int           `json:"blocked"`
	Duration   time.Duration `json:"duration"`
	Failures   []Failure     `json:"failures,omitempty"`
	IsRecovery bool          `json:"isRecovery,omitempty"`
}

// OK reports whether every planned test ran and passed.
func (s *RunSummary) OK() bool {
	return s.Failed == 0 && s.Blocked == 0
}

// Failure is a failed or blocked test.
type Failure struct {
	Name   string `json:"name"`
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Summarize condenses a run result for notifiers.
func Summarize(result *runner.RunResult) *RunSummary {
	s := &RunSummary{
		Total:    len(result.Results),
		Passed:   result.Passed,
		Failed:   result.Failed,
		Skipped:  result.Skipped,
		Blocked:  result.Blocked,
		Duration: result.Duration,
	}

	for _, res := range result.Results {
		if res.Passed || res.Skipped {
			continue
		}
		f := Failure{Name: res.Name, File: res.File}
		switch {
		case res.Error != nil:
			f.Reason = res.Error.Error()
		default:
			for _, a := range res.Assertions {
				if !a.Passed {
					f.Reason = a.Message
					break
				}
			}
		}
		s.Failures = append(s.Failures, f)
	}
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	Notify(ctx context.Context, summary *RunSummary) error
	Name() string
}

// Manager applies the NotifyOn policy. It remembers the outcome of the
// previous run so watch mode can report recoveries.
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastOK    bool
}

func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastOK:    true,
	}
}

// Notify sends summary to every notifier if the policy asks for it. All
// notifiers are tried; their errors are joined.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	ok := summary.OK()
	send := false

	switch m.notifyOn {
	case NotifyAlways:
		send = true
	case NotifyFailure:
		send = !ok
	case NotifySuccess:
		send = ok
	case NotifyRecovery:
		summary.IsRecovery = ok && !m.lastOK
		send = !ok || summary.IsRecovery
	}
	m.lastOK = ok

	if !send {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
