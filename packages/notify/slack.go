package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

func WithSlackClient(client *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = client
	}
}

func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "srt",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (s *SlackNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	return postJSON(ctx, s.client, s.webhookURL, s.message(summary))
}

func (s *SlackNotifier) message(summary *RunSummary) slackMessage {
	color, title := "good", ":white_check_mark: All tests passed"
	switch {
	case !summary.OK():
		color = "danger"
		title = fmt.Sprintf(":x: %d failed, %d blocked", summary.Failed, summary.Blocked)
	case summary.IsRecovery:
		title = ":tada: Tests recovered"
	}

	var text strings.Builder
	for _, f := range summary.Failures {
		fmt.Fprintf(&text, "• `%s` (%s)", f.Name, f.File)
		if f.Reason != "" {
			fmt.Fprintf(&text, ": %s", f.Reason)
		}
		text.WriteString("\n")
	}

	return slackMessage{
		Channel:  s.channel,
		Username: s.username,
		Attachments: []slackAttachment{{
			Color: color,
			Title: title,
			Text:  text.String(),
			Fields: []slackField{
				{Title: "Total", Value: fmt.Sprint(summary.Total), Short: true},
				{Title: "Passed", Value: fmt.Sprint(summary.Passed), Short: true},
				{Title: "Skipped", Value: fmt.Sprint(summary.Skipped), Short: true},
				{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
			},
			Footer: "srt",
			TS:     time.Now().Unix(),
		}},
	}
}

// postJSON posts v and treats any 2xx answer as delivered.
func postJSON(ctx context.Context, client *http.Client, url string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
