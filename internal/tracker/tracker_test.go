package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/payorch/payorch-backend-sqs/internal/core"
)

// storeMock implements state.TrackerStore with overridable functions.
type storeMock struct {
	putFn    func(ctx context.Context, process *core.ProcessTracker) error
	getFn    func(ctx context.Context, id string) (*core.ProcessTracker, error)
	startFn  func(ctx context.Context, id string) error
	retryFn  func(ctx context.Context, id string, scheduleTime time.Time, retryCount int) error
	finishFn func(ctx context.Context, id, businessStatus string, retention time.Duration) error
	dueFn    func(ctx context.Context, nowMs int64, limit int) ([]*core.ProcessTracker, error)
	staleFn  func(ctx context.Context, beforeMs int64, limit int) ([]*core.ProcessTracker, error)
}

func (m *storeMock) PutProcess(ctx context.Context, process *core.ProcessTracker) error {
	if m.putFn != nil {
		return m.putFn(ctx, process)
	}
	return nil
}

func (m *storeMock) GetProcess(ctx context.Context, id string) (*core.ProcessTracker, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *storeMock) MarkProcessStarted(ctx context.Context, id string) error {
	if m.startFn != nil {
		return m.startFn(ctx, id)
	}
	return nil
}

func (m *storeMock) RetryProcess(ctx context.Context, id string, scheduleTime time.Time, retryCount int) error {
	if m.retryFn != nil {
		return m.retryFn(ctx, id, scheduleTime, retryCount)
	}
	return nil
}

func (m *storeMock) FinishProcess(ctx context.Context, id, businessStatus string, retention time.Duration) error {
	if m.finishFn != nil {
		return m.finishFn(ctx, id, businessStatus, retention)
	}
	return nil
}

func (m *storeMock) DueProcesses(ctx context.Context, nowMs int64, limit int) ([]*core.ProcessTracker, error) {
	if m.dueFn != nil {
		return m.dueFn(ctx, nowMs, limit)
	}
	return nil, nil
}

func (m *storeMock) StaleStartedProcesses(ctx context.Context, beforeMs int64, limit int) ([]*core.ProcessTracker, error) {
	if m.staleFn != nil {
		return m.staleFn(ctx, beforeMs, limit)
	}
	return nil, nil
}

func TestSubmit_CreatesNewProcess(t *testing.T) {
	var stored *core.ProcessTracker
	store := &storeMock{
		putFn: func(_ context.Context, process *core.ProcessTracker) error {
			stored = process
			return nil
		},
	}
	tracker := New(nil, store, "")

	when := time.Now().Add(time.Minute)
	data := core.PaymentsSyncTrackingData{PaymentID: "pay_1", AttemptID: "att_1", MerchantID: "m1"}
	process, err := tracker.Submit(context.Background(), core.TaskPaymentsSync, data, when)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if stored == nil {
		t.Fatal("process was not stored")
	}
	if process.Status != core.ProcessNew {
		t.Errorf("status = %q, want %q", process.Status, core.ProcessNew)
	}
	if process.BusinessStatus != core.BusinessPending {
		t.Errorf("business status = %q, want %q", process.BusinessStatus, core.BusinessPending)
	}
	if process.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", process.RetryCount)
	}
	if process.ID == "" {
		t.Error("expected generated process id")
	}
	if !process.ScheduleTime.Equal(when.UTC()) {
		t.Errorf("schedule time = %v, want %v", process.ScheduleTime, when.UTC())
	}

	var decoded core.PaymentsSyncTrackingData
	if err := json.Unmarshal(process.TrackingData, &decoded); err != nil {
		t.Fatalf("tracking data invalid: %v", err)
	}
	if decoded.PaymentID != "pay_1" || decoded.AttemptID != "att_1" {
		t.Errorf("tracking data = %+v", decoded)
	}
}

func TestRetry_BumpsRetryCount(t *testing.T) {
	var gotID string
	var gotCount int
	store := &storeMock{
		retryFn: func(_ context.Context, id string, _ time.Time, retryCount int) error {
			gotID = id
			gotCount = retryCount
			return nil
		},
	}
	tracker := New(nil, store, "")

	process := &core.ProcessTracker{ID: "pt_1", Name: core.TaskPaymentsSync, RetryCount: 2}
	next := time.Now().Add(5 * time.Minute)
	if err := tracker.Retry(context.Background(), process, next); err != nil {
		t.Fatalf("retry: %v", err)
	}

	if gotID != "pt_1" || gotCount != 3 {
		t.Errorf("store called with id=%q count=%d, want pt_1 3", gotID, gotCount)
	}
	if process.RetryCount != 3 {
		t.Errorf("process retry count = %d, want 3", process.RetryCount)
	}
	if process.Status != core.ProcessRetry {
		t.Errorf("process status = %q, want %q", process.Status, core.ProcessRetry)
	}
}

func TestFinish_SetsBusinessStatus(t *testing.T) {
	var gotStatus string
	var gotRetention time.Duration
	store := &storeMock{
		finishFn: func(_ context.Context, _, businessStatus string, retention time.Duration) error {
			gotStatus = businessStatus
			gotRetention = retention
			return nil
		},
	}
	tracker := New(nil, store, "")

	process := &core.ProcessTracker{ID: "pt_1", Name: core.TaskPaymentsSync, Status: core.ProcessStarted}
	if err := tracker.Finish(context.Background(), process, core.BusinessCompletedByWorkflow); err != nil {
		t.Fatalf("finish: %v", err)
	}

	if gotStatus != core.BusinessCompletedByWorkflow {
		t.Errorf("business status = %q, want %q", gotStatus, core.BusinessCompletedByWorkflow)
	}
	if gotRetention != FinishedRetention {
		t.Errorf("retention = %v, want %v", gotRetention, FinishedRetention)
	}
	if process.Status != core.ProcessCompleted {
		t.Errorf("process status = %q, want %q", process.Status, core.ProcessCompleted)
	}
}

func TestFinish_AlreadyFinishedIsNoOp(t *testing.T) {
	calls := 0
	store := &storeMock{
		finishFn: func(context.Context, string, string, time.Duration) error {
			calls++
			return nil
		},
	}
	tracker := New(nil, store, "")

	process := &core.ProcessTracker{
		ID:             "pt_1",
		Status:         core.ProcessCompleted,
		BusinessStatus: core.BusinessCompletedByWorkflow,
	}
	if err := tracker.Finish(context.Background(), process, core.BusinessRetriesExceeded); err != nil {
		t.Fatalf("finish: %v", err)
	}

	if calls != 0 {
		t.Errorf("store finish calls = %d, want 0", calls)
	}
	if process.BusinessStatus != core.BusinessCompletedByWorkflow {
		t.Errorf("business status changed to %q", process.BusinessStatus)
	}
}

func TestConsumerErrorHandler_RetiresWithGlobalFailure(t *testing.T) {
	var gotStatus string
	store := &storeMock{
		finishFn: func(_ context.Context, _, businessStatus string, _ time.Duration) error {
			gotStatus = businessStatus
			return nil
		},
	}
	tracker := New(nil, store, "")

	process := &core.ProcessTracker{ID: "pt_1", Name: core.TaskPaymentsSync, Status: core.ProcessStarted}
	err := tracker.ConsumerErrorHandler(context.Background(), process, errors.New("malformed tracking data"))
	if err != nil {
		t.Fatalf("error handler: %v", err)
	}

	if gotStatus != core.BusinessGlobalFailure {
		t.Errorf("business status = %q, want %q", gotStatus, core.BusinessGlobalFailure)
	}
}

func TestConsumer_DispatchLookup(t *testing.T) {
	consumer := NewConsumer(nil, &storeMock{}, "")
	consumer.RegisterWorkflow("PAYMENTS_SYNC", workflowFunc{})

	if _, ok := consumer.workflow("PAYMENTS_SYNC"); !ok {
		t.Error("expected registered workflow to be found")
	}
	if _, ok := consumer.workflow("UNKNOWN"); ok {
		t.Error("expected unknown workflow to be absent")
	}
}

type workflowFunc struct{}

func (workflowFunc) Execute(context.Context, *core.ProcessTracker) error { return nil }
func (workflowFunc) OnError(context.Context, *core.ProcessTracker, error) error {
	return nil
}
