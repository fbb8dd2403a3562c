package notify

import (
	"context"
	"net/http"
	"time"
)

// WebhookNotifier posts the RunSummary as JSON to any endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Name() string {
	return "webhook"
}

func (w *WebhookNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	return postJSON(ctx, w.client, w.url, summary)
}
