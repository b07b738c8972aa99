// Package notify pushes non-empty deltas to an external webhook. Delivery
// is best effort; a dead webhook never slows down polling or streaming.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
	"github.com/entropy-jam/kalitraf-current/internal/platform/retry"
)

const (
	defaultTimeout = 10 * time.Second
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// payload is the webhook request body for one source's delta.
type payload struct {
	Center       string            `json:"center"`
	CenterName   string            `json:"center_name"`
	NewCount     int               `json:"new_count"`
	RemovedCount int               `json:"removed_count"`
	New          []domain.Incident `json:"new_incidents,omitempty"`
	Removed      []domain.Incident `json:"removed_incidents,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

type Webhook struct {
	url    string
	client *http.Client
	policy retry.Policy
}

var _ domain.Notifier = (*Webhook)(nil)

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
		policy: retry.Policy{
			MaxAttempts:    maxAttempts,
			InitialBackoff: initialBackoff,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Webhook delivery retry", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
}

// Notify posts the delta as JSON. Server errors and network failures are
// retried with backoff; a 4xx response is treated as permanent.
func (w *Webhook) Notify(ctx context.Context, source domain.Source, delta domain.Delta) error {
	body, err := json.Marshal(payload{
		Center:       source.Code,
		CenterName:   source.Name,
		NewCount:     len(delta.New),
		RemovedCount: len(delta.Removed),
		New:          delta.New,
		Removed:      delta.Removed,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	return retry.DoVoid(ctx, w.policy, classify, func() error {
		return w.post(ctx, body)
	})
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("webhook returned status %d", e.code) }

func classify(err error) retry.Action {
	var se *statusError
	if errors.As(err, &se) && se.code < 500 {
		return retry.Stop
	}
	return retry.Retry
}
