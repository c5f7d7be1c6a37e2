// Package notify delivers retrain outcome notifications to a webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// EventType identifies the kind of notification.
type EventType string

const (
	EventRetrainSucceeded EventType = "retrain_succeeded"
	EventRetrainReverted  EventType = "retrain_reverted"
	EventRetrainSkipped   EventType = "retrain_skipped"
	EventRetrainFailed    EventType = "retrain_failed"
)

// Event is one retrain outcome to report.
type Event struct {
	Type      EventType      `json:"type"`
	Message   string         `json:"message"`
	RunID     string         `json:"run_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier posts events to a webhook URL. An empty URL disables delivery.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a Notifier for the given webhook URL.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers one event. A disabled notifier logs and returns nil.
func (n *Notifier) Send(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if n.webhookURL == "" {
		zap.L().Info("notify: webhook disabled, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("message", event.Message),
		)
		return nil
	}

	if err := n.post(ctx, event); err != nil {
		return err
	}
	zap.L().Info("notify: event sent",
		zap.String("type", string(event.Type)),
		zap.String("run_id", event.RunID),
	)
	return nil
}

func (n *Notifier) post(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return eris.Wrap(err, "notify: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
