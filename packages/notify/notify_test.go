package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/srt/packages/assertions"
	"github.com/abdul-hamid-achik/srt/packages/core/runner"
)

type recorder struct {
	calls int
	last  *RunSummary
	err   error
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Notify(_ context.Context, s *RunSummary) error {
	r.calls++
	r.last = s
	return r.err
}

func TestParseNotifyOn(t *testing.T) {
	on, err := ParseNotifyOn("")
	require.NoError(t, err)
	assert.Equal(t, NotifyFailure, on)

	on, err = ParseNotifyOn("recovery")
	require.NoError(t, err)
	assert.Equal(t, NotifyRecovery, on)

	_, err = ParseNotifyOn("sometimes")
	assert.Error(t, err)
}

func TestManager_Policies(t *testing.T) {
	pass := func() *RunSummary { return &RunSummary{Total: 1, Passed: 1} }
	fail := func() *RunSummary { return &RunSummary{Total: 1, Failed: 1} }
	blocked := func() *RunSummary { return &RunSummary{Total: 1, Blocked: 1} }

	tests := []struct {
		on    NotifyOn
		runs  []*RunSummary
		calls int
	}{
		{NotifyAlways, []*RunSummary{pass(), fail()}, 2},
		{NotifyFailure, []*RunSummary{pass(), fail(), blocked()}, 2},
		{NotifySuccess, []*RunSummary{pass(), fail()}, 1},
		{NotifyRecovery, []*RunSummary{pass(), fail(), pass(), pass()}, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.on), func(t *testing.T) {
			rec := &recorder{}
			m := NewManager(tt.on, rec)
			for _, s := range tt.runs {
				require.NoError(t, m.Notify(context.Background(), s))
			}
			assert.Equal(t, tt.calls, rec.calls)
		})
	}
}

func TestManager_Recovery(t *testing.T) {
	rec := &recorder{}
	m := NewManager(NotifyRecovery, rec)

	require.NoError(t, m.Notify(context.Background(), &RunSummary{Failed: 1}))
	assert.False(t, rec.last.IsRecovery)

	require.NoError(t, m.Notify(context.Background(), &RunSummary{Passed: 1}))
	assert.True(t, rec.last.IsRecovery)
}

func TestManager_JoinsErrors(t *testing.T) {
	ok := &recorder{}
	broken := &recorder{err: errors.New("down")}
	m := NewManager(NotifyAlways, broken, ok)

	err := m.Notify(context.Background(), &RunSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recorder: down")
	assert.Equal(t, 1, ok.calls)
}

func TestSummarize(t *testing.T) {
	result := &runner.RunResult{
		Passed:   1,
		Failed:   2,
		Skipped:  1,
		Blocked:  1,
		Duration: time.Second,
		Results: []*runner.RequestResult{
			{Name: "login", Passed: true},
			{Name: "create", File: "create.json", Assertions: []*assertions.Result{
				{Passed: true, Message: "status"},
				{Passed: false, Message: "expected status 201, got 500"},
			}},
			{Name: "fetch", File: "fetch.json", Error: errors.New("timeout")},
			{Name: "update", Skipped: true, SkipReason: `prerequisite "create" failed`},
			{Name: "orphan", File: "orphan.json", Blocked: true, Error: errors.New("unknown prerequisite \"ghost\"")},
		},
	}

	s := Summarize(result)
	assert.Equal(t, 5, s.Total)
	assert.False(t, s.OK())
	assert.Equal(t, []Failure{
		{Name: "create", File: "create.json", Reason: "expected status 201, got 500"},
		{Name: "fetch", File: "fetch.json", Reason: "timeout"},
		{Name: "orphan", File: "orphan.json", Reason: "unknown prerequisite \"ghost\""},
	}, s.Failures)
}

func TestSlackNotifier(t *testing.T) {
	var got slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, WithSlackChannel("#api"))
	err := n.Notify(context.Background(), &RunSummary{
		Total:    2,
		Failed:   1,
		Failures: []Failure{{Name: "create", File: "create.json", Reason: "boom"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "#api", got.Channel)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "danger", got.Attachments[0].Color)
	assert.Contains(t, got.Attachments[0].Text, "`create` (create.json): boom")
}

func TestWebhookNotifier(t *testing.T) {
	var got RunSummary
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhookNotifier(srv.URL).Notify(context.Background(), &RunSummary{Total: 3, Passed: 3}))
	assert.Equal(t, 3, got.Passed)
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), &RunSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400: nope")
}
