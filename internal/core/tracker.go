package core

import (
	"encoding/json"
	"time"
)

// ProcessStatus is the lifecycle status of a process-tracker job.
type ProcessStatus string

const (
	ProcessNew       ProcessStatus = "new"
	ProcessStarted   ProcessStatus = "process_started"
	ProcessRetry     ProcessStatus = "retry"
	ProcessCompleted ProcessStatus = "completed"
)

// Business statuses recorded on a finished process, describing why it stopped.
const (
	BusinessCompletedByWorkflow = "COMPLETED_BY_WORKFLOW"
	BusinessRetriesExceeded     = "RETRIES_EXCEEDED"
	BusinessGlobalFailure       = "GLOBAL_FAILURE"
	BusinessPending             = "Pending"
)

// Task names dispatched by the tracker consumer.
const TaskPaymentsSync = "PAYMENTS_SYNC"

// ProcessTracker is a persisted unit of deferred, retryable work. The tracker
// store owns the record; workflows only read it and request transitions.
type ProcessTracker struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	TrackingData   json.RawMessage `json:"tracking_data"`
	Status         ProcessStatus   `json:"status"`
	BusinessStatus string          `json:"business_status"`
	RetryCount     int             `json:"retry_count"`
	ScheduleTime   time.Time       `json:"schedule_time"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

// IsFinished reports whether the process has reached a terminal job state.
func (p *ProcessTracker) IsFinished() bool {
	return p.Status == ProcessCompleted
}

// PaymentsSyncTrackingData is the opaque tracking payload of a PAYMENTS_SYNC
// process: enough to re-resolve the attempt and merchant context from scratch
// on every delivery.
type PaymentsSyncTrackingData struct {
	PaymentID  string `json:"payment_id"`
	AttemptID  string `json:"attempt_id"`
	MerchantID string `json:"merchant_id"`
}
