// Package tracker implements the process tracker: persisted, retryable units
// of deferred work driven to a terminal state by workflows. SQS carries due
// jobs to consumers; DynamoDB owns the records. Delivery is at-least-once,
// so workflows must tolerate re-execution from the top.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/payorch/payorch-backend-sqs/internal/core"
	"github.com/payorch/payorch-backend-sqs/internal/metrics"
	"github.com/payorch/payorch-backend-sqs/internal/state"
)

// FinishedRetention is how long completed process records stay in the table
// before the TTL reaps them.
const FinishedRetention = 7 * 24 * time.Hour

// taskMessage is the SQS envelope pointing at a due process record. The
// record itself stays canonical in the store; the message only names it.
type taskMessage struct {
	ProcessID string `json:"process_id"`
	Name      string `json:"name"`
}

// Tracker owns process-tracker lifecycle transitions.
type Tracker struct {
	sqsClient *sqs.Client
	store     state.TrackerStore
	queueURL  string
	logger    *slog.Logger
}

// New creates a Tracker bound to an existing SQS queue URL.
func New(sqsClient *sqs.Client, store state.TrackerStore, queueURL string) *Tracker {
	return &Tracker{
		sqsClient: sqsClient,
		store:     store,
		queueURL:  queueURL,
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger for the tracker.
func (t *Tracker) SetLogger(logger *slog.Logger) {
	t.logger = logger
}

// EnsureQueue creates the process-tracker queue if needed and returns its URL.
func EnsureQueue(ctx context.Context, client *sqs.Client, name string) (string, error) {
	out, err := client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("create tracker queue %s: %w", name, err)
	}
	return aws.ToString(out.QueueUrl), nil
}

// Submit creates a new process scheduled for the given time. The promotion
// loop moves it onto SQS once due.
func (t *Tracker) Submit(ctx context.Context, name string, trackingData any, scheduleTime time.Time) (*core.ProcessTracker, error) {
	payload, err := json.Marshal(trackingData)
	if err != nil {
		return nil, fmt.Errorf("marshal tracking data: %w", err)
	}

	now := core.NowFormatted()
	process := &core.ProcessTracker{
		ID:             core.NewID(),
		Name:           name,
		TrackingData:   payload,
		Status:         core.ProcessNew,
		BusinessStatus: core.BusinessPending,
		RetryCount:     0,
		ScheduleTime:   scheduleTime.UTC(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := t.store.PutProcess(ctx, process); err != nil {
		return nil, fmt.Errorf("store process: %w", err)
	}

	metrics.ProcessesSubmitted.WithLabelValues(name).Inc()
	return process, nil
}

// Retry re-arms the process for another run at the given time, bumping its
// retry count.
func (t *Tracker) Retry(ctx context.Context, process *core.ProcessTracker, scheduleTime time.Time) error {
	newCount := process.RetryCount + 1
	if err := t.store.RetryProcess(ctx, process.ID, scheduleTime.UTC(), newCount); err != nil {
		return fmt.Errorf("retry process %s: %w", process.ID, err)
	}

	process.Status = core.ProcessRetry
	process.RetryCount = newCount
	process.ScheduleTime = scheduleTime.UTC()

	metrics.ProcessesRetried.WithLabelValues(process.Name).Inc()
	return nil
}

// Finish retires the process with the given business status. Finishing an
// already-finished process is a no-op so redelivered jobs cannot double-count.
func (t *Tracker) Finish(ctx context.Context, process *core.ProcessTracker, businessStatus string) error {
	if process.IsFinished() {
		return nil
	}

	if err := t.store.FinishProcess(ctx, process.ID, businessStatus, FinishedRetention); err != nil {
		return fmt.Errorf("finish process %s: %w", process.ID, err)
	}

	process.Status = core.ProcessCompleted
	process.BusinessStatus = businessStatus

	metrics.ProcessesFinished.WithLabelValues(process.Name, businessStatus).Inc()
	return nil
}

// ConsumerErrorHandler is the generic path for infrastructure failures inside
// a workflow (malformed payload, missing merchant context). The tracker
// decides the job's fate: it is retired with GLOBAL_FAILURE and the error
// logged for operators.
func (t *Tracker) ConsumerErrorHandler(ctx context.Context, process *core.ProcessTracker, execErr error) error {
	t.logger.Error("workflow execution failed",
		"process_id", process.ID,
		"name", process.Name,
		"retry_count", process.RetryCount,
		"error", execErr,
	)
	return t.Finish(ctx, process, core.BusinessGlobalFailure)
}

// PromoteDue moves due processes onto SQS and marks them started. Invoked
// periodically by the scheduler.
func (t *Tracker) PromoteDue(ctx context.Context) error {
	processes, err := t.store.DueProcesses(ctx, time.Now().UnixMilli(), 100)
	if err != nil {
		return err
	}

	var firstErr error
	for _, process := range processes {
		if err := t.enqueue(ctx, process); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("promote process %s: %w", process.ID, err)
			}
			t.logger.Error("failed to promote due process", "process_id", process.ID, "error", err)
			continue
		}

		if err := t.store.MarkProcessStarted(ctx, process.ID); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("mark process %s started: %w", process.ID, err)
			}
			t.logger.Error("failed to mark promoted process started", "process_id", process.ID, "error", err)
		}
	}
	return firstErr
}

// RequeueStale re-arms processes that were promoted but never progressed,
// meaning a consumer crashed after claiming them. Invoked by the recovery
// cron.
func (t *Tracker) RequeueStale(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	processes, err := t.store.StaleStartedProcesses(ctx, cutoff, 100)
	if err != nil {
		return err
	}

	var firstErr error
	for _, process := range processes {
		// Same retry count: a crash is not a business retry.
		if err := t.store.RetryProcess(ctx, process.ID, time.Now(), process.RetryCount); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("requeue stale process %s: %w", process.ID, err)
			}
			t.logger.Error("failed to requeue stale process", "process_id", process.ID, "error", err)
			continue
		}
		t.logger.Warn("requeued stale process", "process_id", process.ID, "name", process.Name)
	}
	return firstErr
}

func (t *Tracker) enqueue(ctx context.Context, process *core.ProcessTracker) error {
	body, err := json.Marshal(taskMessage{ProcessID: process.ID, Name: process.Name})
	if err != nil {
		return fmt.Errorf("marshal task message: %w", err)
	}

	_, err = t.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send task message: %w", err)
	}
	return nil
}
