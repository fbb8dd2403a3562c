package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/srt/packages/http"
)

// WaitFor describes a service that must answer before the first document
// runs.
type WaitFor struct {
	URL      string
	Status   int
	Timeout  time.Duration
	Interval time.Duration
}

// WaitForService polls cfg.URL until it returns cfg.Status, the timeout
// elapses or ctx is done.
func (r *Runner) WaitForService(ctx context.Context, cfg WaitFor) error {
	if cfg.Status == 0 {
		cfg.Status = 200
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}

	r.log.Info("waiting for service", "url", cfg.URL, "status", cfg.Status, "timeout", cfg.Timeout)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var lastErr error
	var lastStatus int

	for {
		req := http.NewRequest("GET", cfg.URL).SetTimeout(5 * time.Second)
		resp, err := r.executor.Do(ctx, req)
		if err != nil {
			lastErr = err
		} else {
			lastStatus = resp.StatusCode
			if resp.StatusCode == cfg.Status {
				r.log.Info("service ready", "url", cfg.URL)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if lastErr != nil && lastStatus == 0 {
				return fmt.Errorf("service %s not ready after %v: %w", cfg.URL, cfg.Timeout, lastErr)
			}
			return fmt.Errorf("service %s not ready after %v: got status %d, expected %d",
				cfg.URL, cfg.Timeout, lastStatus, cfg.Status)
		case <-ticker.C:
		}
	}
}
