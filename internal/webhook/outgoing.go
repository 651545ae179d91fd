// Package webhook delivers outgoing event notifications to merchant
// endpoints. Delivery on the sync workflow's escalation path is best-effort:
// failures are logged by the caller, never retried through the job itself.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/payorch/payorch-backend-sqs/internal/core"
)

// Event types delivered to merchants.
const (
	EventPaymentFailed = "payment_failed"
)

// OutgoingEvent is the payload posted to a merchant's webhook endpoint.
type OutgoingEvent struct {
	EventID       string             `json:"event_id"`
	EventType     string             `json:"event_type"`
	MerchantID    string             `json:"merchant_id"`
	PaymentID     string             `json:"payment_id"`
	AttemptID     string             `json:"attempt_id"`
	AttemptStatus core.AttemptStatus `json:"attempt_status"`
	IntentStatus  core.IntentStatus  `json:"intent_status"`
	CreatedAt     string             `json:"created_at"`
}

// Sender delivers an outgoing event to the profile's configured endpoint.
type Sender interface {
	TriggerPaymentWebhook(ctx context.Context, profile *core.BusinessProfile, event *OutgoingEvent) error
}

// HTTPSender posts events as JSON to the profile's webhook URL.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender creates a sender using the given client, or
// http.DefaultClient when nil.
func NewHTTPSender(client *http.Client) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{client: client}
}

// TriggerPaymentWebhook posts the event. A profile without a webhook URL is
// not an error; there is simply nowhere to deliver.
func (s *HTTPSender) TriggerPaymentWebhook(ctx context.Context, profile *core.BusinessProfile, event *OutgoingEvent) error {
	if profile.WebhookURL == "" {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, profile.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event-Id", event.EventID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook to %s: %w", profile.WebhookURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint %s returned %d", profile.WebhookURL, resp.StatusCode)
	}
	return nil
}

// NewPaymentFailedEvent builds the event for a timed-out payment.
func NewPaymentFailedEvent(attempt *core.PaymentAttempt, intent *core.PaymentIntent) *OutgoingEvent {
	return &OutgoingEvent{
		EventID:       core.NewID(),
		EventType:     EventPaymentFailed,
		MerchantID:    attempt.MerchantID,
		PaymentID:     attempt.PaymentID,
		AttemptID:     attempt.AttemptID,
		AttemptStatus: attempt.Status,
		IntentStatus:  intent.Status,
		CreatedAt:     core.NowFormatted(),
	}
}
