package workflows

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/payorch/payorch-backend-sqs/internal/connector"
	"github.com/payorch/payorch-backend-sqs/internal/core"
	"github.com/payorch/payorch-backend-sqs/internal/metrics"
	"github.com/payorch/payorch-backend-sqs/internal/state"
	"github.com/payorch/payorch-backend-sqs/internal/tracker"
	"github.com/payorch/payorch-backend-sqs/internal/webhook"
)

// StatusSyncer queries a connector for an attempt's current status. Satisfied
// by connector.Client.
type StatusSyncer interface {
	SyncPaymentStatus(ctx context.Context, attempt *core.PaymentAttempt) (core.AttemptStatus, error)
}

var _ StatusSyncer = (*connector.Client)(nil)

// PaymentSyncWorkflow polls a connector for an attempt's status until the
// attempt reaches a terminal state or the retry schedule is exhausted.
type PaymentSyncWorkflow struct {
	store     state.PaymentStore
	tracker   *tracker.Tracker
	syncer    StatusSyncer
	schedules *ScheduleResolver
	webhooks  webhook.Sender
	logger    *slog.Logger
}

// NewPaymentSyncWorkflow wires the sync workflow.
func NewPaymentSyncWorkflow(store state.PaymentStore, trk *tracker.Tracker, syncer StatusSyncer, schedules *ScheduleResolver, webhooks webhook.Sender) *PaymentSyncWorkflow {
	return &PaymentSyncWorkflow{
		store:     store,
		tracker:   trk,
		syncer:    syncer,
		schedules: schedules,
		webhooks:  webhooks,
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger for the workflow.
func (w *PaymentSyncWorkflow) SetLogger(logger *slog.Logger) {
	w.logger = logger
}

// Execute runs one sync pass. Safe to re-run on redelivery: every step
// re-derives state from the store and the connector.
func (w *PaymentSyncWorkflow) Execute(ctx context.Context, process *core.ProcessTracker) error {
	var data core.PaymentsSyncTrackingData
	if err := json.Unmarshal(process.TrackingData, &data); err != nil {
		return fmt.Errorf("parse tracking data for process %s: %w", process.ID, err)
	}

	attempt, err := w.store.FindPaymentAttempt(ctx, data.AttemptID)
	if err != nil {
		return fmt.Errorf("load payment attempt %s: %w", data.AttemptID, err)
	}

	start := time.Now()
	status, err := w.syncer.SyncPaymentStatus(ctx, attempt)
	if err != nil {
		return fmt.Errorf("sync status for attempt %s: %w", attempt.AttemptID, err)
	}
	metrics.SyncsExecuted.WithLabelValues(string(attempt.Connector)).Inc()
	metrics.SyncDuration.WithLabelValues(string(attempt.Connector)).Observe(time.Since(start).Seconds())

	if status != attempt.Status {
		attempt.Status = status
		attempt.ModifiedAt = core.NowFormatted()
		if err := w.store.UpdatePaymentAttempt(ctx, attempt); err != nil {
			return fmt.Errorf("persist attempt %s: %w", attempt.AttemptID, err)
		}
	}

	if status.IsSyncTerminal() {
		if err := w.syncIntentStatus(ctx, attempt); err != nil {
			return err
		}
		return w.tracker.Finish(ctx, process, core.BusinessCompletedByWorkflow)
	}

	isLastRetry, err := w.retrySyncTask(ctx, process, attempt)
	if err != nil {
		return err
	}

	// A payment still pending after the whole schedule with no transaction
	// reference at the connector never reached it. Move it to failed rather
	// than leave it in limbo.
	if isLastRetry && status == core.AttemptPending && attempt.ConnectorTransactionID == nil {
		return w.escalateTimeout(ctx, attempt)
	}
	return nil
}

// OnError retires the process through the tracker's generic error path.
func (w *PaymentSyncWorkflow) OnError(ctx context.Context, process *core.ProcessTracker, execErr error) error {
	return w.tracker.ConsumerErrorHandler(ctx, process, execErr)
}

// retrySyncTask re-arms the process per the connector's schedule. Returns
// true when the schedule is exhausted and the process has been retired with
// RETRIES_EXCEEDED.
func (w *PaymentSyncWorkflow) retrySyncTask(ctx context.Context, process *core.ProcessTracker, attempt *core.PaymentAttempt) (bool, error) {
	next := w.schedules.NextScheduleTime(ctx, attempt.Connector, attempt.MerchantID, process.RetryCount+1)
	if next == nil {
		if err := w.tracker.Finish(ctx, process, core.BusinessRetriesExceeded); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := w.tracker.Retry(ctx, process, *next); err != nil {
		return false, err
	}
	return false, nil
}

// syncIntentStatus propagates a terminal attempt status onto the owning
// intent.
func (w *PaymentSyncWorkflow) syncIntentStatus(ctx context.Context, attempt *core.PaymentAttempt) error {
	intentStatus, ok := intentStatusFor(attempt.Status)
	if !ok {
		return nil
	}

	intent, err := w.store.FindPaymentIntent(ctx, attempt.PaymentID)
	if err != nil {
		return fmt.Errorf("load payment intent %s: %w", attempt.PaymentID, err)
	}
	if intent.Status == intentStatus {
		return nil
	}

	intent.Status = intentStatus
	intent.ModifiedAt = core.NowFormatted()
	if err := w.store.UpdatePaymentIntent(ctx, intent); err != nil {
		return fmt.Errorf("persist payment intent %s: %w", attempt.PaymentID, err)
	}
	return nil
}

// escalateTimeout force-fails a payment that got no connector response across
// the whole retry schedule. Webhook delivery is best-effort; a delivery
// failure must not fail the escalation.
func (w *PaymentSyncWorkflow) escalateTimeout(ctx context.Context, attempt *core.PaymentAttempt) error {
	attempt.Status = core.AttemptFailure
	attempt.ErrorReason = core.RequestTimedOutReason
	attempt.ModifiedAt = core.NowFormatted()
	if err := w.store.UpdatePaymentAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("persist timed-out attempt %s: %w", attempt.AttemptID, err)
	}

	intent, err := w.store.FindPaymentIntent(ctx, attempt.PaymentID)
	if err != nil {
		return fmt.Errorf("load payment intent %s: %w", attempt.PaymentID, err)
	}
	intent.Status = core.IntentFailed
	allowed := false
	intent.IncrementalAuthorizationAllowed = &allowed
	intent.ModifiedAt = core.NowFormatted()
	if err := w.store.UpdatePaymentIntent(ctx, intent); err != nil {
		return fmt.Errorf("persist failed payment intent %s: %w", attempt.PaymentID, err)
	}

	metrics.TimeoutEscalations.Inc()
	w.logger.Info("payment moved to failed on sync timeout",
		"payment_id", attempt.PaymentID,
		"attempt_id", attempt.AttemptID,
		"merchant_id", attempt.MerchantID,
	)

	profile, err := w.store.FindBusinessProfile(ctx, attempt.ProfileID)
	if err != nil {
		w.logger.Error("failed to load profile for webhook", "profile_id", attempt.ProfileID, "error", err)
		return nil
	}

	event := webhook.NewPaymentFailedEvent(attempt, intent)
	if err := w.webhooks.TriggerPaymentWebhook(ctx, profile, event); err != nil {
		metrics.WebhooksDelivered.WithLabelValues(event.EventType, "error").Inc()
		w.logger.Error("failed to deliver payment failed webhook",
			"payment_id", attempt.PaymentID,
			"profile_id", attempt.ProfileID,
			"error", err,
		)
		return nil
	}
	metrics.WebhooksDelivered.WithLabelValues(event.EventType, "success").Inc()
	return nil
}

// intentStatusFor maps a terminal attempt status to the owning intent's
// status.
func intentStatusFor(status core.AttemptStatus) (core.IntentStatus, bool) {
	switch status {
	case core.AttemptCharged, core.AttemptAutoRefunded:
		return core.IntentSucceeded, true
	case core.AttemptVoided:
		return core.IntentCancelled, true
	case core.AttemptFailure, core.AttemptRouterDeclined, core.AttemptCaptureFailed, core.AttemptVoidFailed:
		return core.IntentFailed, true
	default:
		return "", false
	}
}
