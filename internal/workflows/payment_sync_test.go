package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/payorch/payorch-backend-sqs/internal/core"
	"github.com/payorch/payorch-backend-sqs/internal/state"
	"github.com/payorch/payorch-backend-sqs/internal/tracker"
	"github.com/payorch/payorch-backend-sqs/internal/webhook"
)

// fakePaymentStore keeps payment records in maps.
type fakePaymentStore struct {
	state.PaymentStore

	attempts map[string]*core.PaymentAttempt
	intents  map[string]*core.PaymentIntent
	profiles map[string]*core.BusinessProfile
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{
		attempts: make(map[string]*core.PaymentAttempt),
		intents:  make(map[string]*core.PaymentIntent),
		profiles: make(map[string]*core.BusinessProfile),
	}
}

func (f *fakePaymentStore) FindPaymentAttempt(_ context.Context, attemptID string) (*core.PaymentAttempt, error) {
	a, ok := f.attempts[attemptID]
	if !ok {
		return nil, state.ErrNotFound
	}
	return a, nil
}

func (f *fakePaymentStore) UpdatePaymentAttempt(_ context.Context, attempt *core.PaymentAttempt) error {
	f.attempts[attempt.AttemptID] = attempt
	return nil
}

func (f *fakePaymentStore) FindPaymentIntent(_ context.Context, paymentID string) (*core.PaymentIntent, error) {
	i, ok := f.intents[paymentID]
	if !ok {
		return nil, state.ErrNotFound
	}
	return i, nil
}

func (f *fakePaymentStore) UpdatePaymentIntent(_ context.Context, intent *core.PaymentIntent) error {
	f.intents[intent.PaymentID] = intent
	return nil
}

func (f *fakePaymentStore) FindBusinessProfile(_ context.Context, profileID string) (*core.BusinessProfile, error) {
	p, ok := f.profiles[profileID]
	if !ok {
		return nil, state.ErrNotFound
	}
	return p, nil
}

// fakeTrackerStore records lifecycle transitions.
type fakeTrackerStore struct {
	retried      bool
	retryTime    time.Time
	retryCount   int
	finished     bool
	finishStatus string
}

func (f *fakeTrackerStore) PutProcess(context.Context, *core.ProcessTracker) error { return nil }
func (f *fakeTrackerStore) GetProcess(context.Context, string) (*core.ProcessTracker, error) {
	return nil, state.ErrNotFound
}
func (f *fakeTrackerStore) MarkProcessStarted(context.Context, string) error { return nil }

func (f *fakeTrackerStore) RetryProcess(_ context.Context, _ string, scheduleTime time.Time, retryCount int) error {
	f.retried = true
	f.retryTime = scheduleTime
	f.retryCount = retryCount
	return nil
}

func (f *fakeTrackerStore) FinishProcess(_ context.Context, _, businessStatus string, _ time.Duration) error {
	f.finished = true
	f.finishStatus = businessStatus
	return nil
}

func (f *fakeTrackerStore) DueProcesses(context.Context, int64, int) ([]*core.ProcessTracker, error) {
	return nil, nil
}
func (f *fakeTrackerStore) StaleStartedProcesses(context.Context, int64, int) ([]*core.ProcessTracker, error) {
	return nil, nil
}

// fakeSyncer returns a fixed status or error.
type fakeSyncer struct {
	status core.AttemptStatus
	err    error
}

func (f *fakeSyncer) SyncPaymentStatus(context.Context, *core.PaymentAttempt) (core.AttemptStatus, error) {
	return f.status, f.err
}

// fakeSender records delivered events.
type fakeSender struct {
	events []*webhook.OutgoingEvent
	err    error
}

func (f *fakeSender) TriggerPaymentWebhook(_ context.Context, _ *core.BusinessProfile, event *webhook.OutgoingEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

// fixedConfigStore serves a single config value, or not-found.
type fixedConfigStore struct {
	key   string
	value string
}

func (f *fixedConfigStore) FindConfig(_ context.Context, key string) (string, error) {
	if key == f.key {
		return f.value, nil
	}
	return "", state.ErrNotFound
}
func (f *fixedConfigStore) InsertConfig(context.Context, string, string) error { return nil }
func (f *fixedConfigStore) UpdateConfig(context.Context, string, string) error { return nil }

type fixture struct {
	workflow *PaymentSyncWorkflow
	store    *fakePaymentStore
	trackerS *fakeTrackerStore
	sender   *fakeSender
}

func newFixture(syncer StatusSyncer) *fixture {
	store := newFakePaymentStore()
	trackerS := &fakeTrackerStore{}
	sender := &fakeSender{}
	trk := tracker.New(nil, trackerS, "")
	schedules := NewScheduleResolver(&fixedConfigStore{})
	return &fixture{
		workflow: NewPaymentSyncWorkflow(store, trk, syncer, schedules, sender),
		store:    store,
		trackerS: trackerS,
		sender:   sender,
	}
}

func seedPayment(f *fixture, status core.AttemptStatus, txnID *string) {
	f.store.attempts["att_1"] = &core.PaymentAttempt{
		AttemptID:              "att_1",
		PaymentID:              "pay_1",
		MerchantID:             "m1",
		ProfileID:              "p1",
		Connector:              core.ConnectorStripe,
		Status:                 status,
		ConnectorTransactionID: txnID,
	}
	f.store.intents["pay_1"] = &core.PaymentIntent{
		PaymentID:  "pay_1",
		MerchantID: "m1",
		ProfileID:  "p1",
		Status:     core.IntentProcessing,
	}
	f.store.profiles["p1"] = &core.BusinessProfile{
		ProfileID:  "p1",
		MerchantID: "m1",
		WebhookURL: "https://merchant.example/webhooks",
	}
}

func syncProcess(retryCount int) *core.ProcessTracker {
	data, _ := json.Marshal(core.PaymentsSyncTrackingData{
		PaymentID:  "pay_1",
		AttemptID:  "att_1",
		MerchantID: "m1",
	})
	return &core.ProcessTracker{
		ID:             "pt_1",
		Name:           core.TaskPaymentsSync,
		TrackingData:   data,
		Status:         core.ProcessStarted,
		BusinessStatus: core.BusinessPending,
		RetryCount:     retryCount,
	}
}

func TestExecute_TerminalStatusFinishesProcess(t *testing.T) {
	f := newFixture(&fakeSyncer{status: core.AttemptCharged})
	seedPayment(f, core.AttemptPending, nil)

	if err := f.workflow.Execute(context.Background(), syncProcess(0)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !f.trackerS.finished {
		t.Fatal("process was not finished")
	}
	if f.trackerS.finishStatus != core.BusinessCompletedByWorkflow {
		t.Errorf("business status = %q, want %q", f.trackerS.finishStatus, core.BusinessCompletedByWorkflow)
	}
	if got := f.store.attempts["att_1"].Status; got != core.AttemptCharged {
		t.Errorf("attempt status = %q, want charged", got)
	}
	if got := f.store.intents["pay_1"].Status; got != core.IntentSucceeded {
		t.Errorf("intent status = %q, want succeeded", got)
	}
	if f.trackerS.retried {
		t.Error("terminal outcome must not schedule a retry")
	}
}

func TestExecute_PendingSchedulesRetry(t *testing.T) {
	f := newFixture(&fakeSyncer{status: core.AttemptPending})
	seedPayment(f, core.AttemptPending, nil)

	before := time.Now()
	if err := f.workflow.Execute(context.Background(), syncProcess(0)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !f.trackerS.retried {
		t.Fatal("expected a retry to be scheduled")
	}
	if f.trackerS.retryCount != 1 {
		t.Errorf("retry count = %d, want 1", f.trackerS.retryCount)
	}
	// Default schedule: retry 1 runs 300s after now.
	delay := f.trackerS.retryTime.Sub(before)
	if delay < 299*time.Second || delay > 301*time.Second {
		t.Errorf("retry delay = %v, want about 300s", delay)
	}
	if f.trackerS.finished {
		t.Error("pending outcome must not finish the process")
	}
}

func TestExecute_ExhaustedScheduleEscalatesTimeout(t *testing.T) {
	f := newFixture(&fakeSyncer{status: core.AttemptPending})
	seedPayment(f, core.AttemptPending, nil)

	// Retry count 5 is the default maximum; the next retry would be 6.
	if err := f.workflow.Execute(context.Background(), syncProcess(5)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !f.trackerS.finished || f.trackerS.finishStatus != core.BusinessRetriesExceeded {
		t.Errorf("finish status = %q, want %q", f.trackerS.finishStatus, core.BusinessRetriesExceeded)
	}

	attempt := f.store.attempts["att_1"]
	if attempt.Status != core.AttemptFailure {
		t.Errorf("attempt status = %q, want failure", attempt.Status)
	}
	if attempt.ErrorReason != core.RequestTimedOutReason {
		t.Errorf("error reason = %q, want timeout reason", attempt.ErrorReason)
	}

	intent := f.store.intents["pay_1"]
	if intent.Status != core.IntentFailed {
		t.Errorf("intent status = %q, want failed", intent.Status)
	}
	if intent.IncrementalAuthorizationAllowed == nil || *intent.IncrementalAuthorizationAllowed {
		t.Error("incremental authorization should be explicitly disallowed")
	}

	if len(f.sender.events) != 1 {
		t.Fatalf("webhook events = %d, want 1", len(f.sender.events))
	}
	event := f.sender.events[0]
	if event.EventType != webhook.EventPaymentFailed {
		t.Errorf("event type = %q, want %q", event.EventType, webhook.EventPaymentFailed)
	}
	if event.PaymentID != "pay_1" || event.AttemptID != "att_1" {
		t.Errorf("event = %+v", event)
	}
}

func TestExecute_NoEscalationWithTransactionReference(t *testing.T) {
	txn := "txn_stripe_1"
	f := newFixture(&fakeSyncer{status: core.AttemptPending})
	seedPayment(f, core.AttemptPending, &txn)

	if err := f.workflow.Execute(context.Background(), syncProcess(5)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if f.trackerS.finishStatus != core.BusinessRetriesExceeded {
		t.Errorf("finish status = %q, want %q", f.trackerS.finishStatus, core.BusinessRetriesExceeded)
	}
	// The connector knows this payment; it must stay pending, not be failed.
	if got := f.store.attempts["att_1"].Status; got != core.AttemptPending {
		t.Errorf("attempt status = %q, want pending", got)
	}
	if len(f.sender.events) != 0 {
		t.Errorf("webhook events = %d, want 0", len(f.sender.events))
	}
}

func TestExecute_WebhookFailureDoesNotFailEscalation(t *testing.T) {
	f := newFixture(&fakeSyncer{status: core.AttemptPending})
	seedPayment(f, core.AttemptPending, nil)
	f.sender.err = errors.New("endpoint unreachable")

	if err := f.workflow.Execute(context.Background(), syncProcess(5)); err != nil {
		t.Fatalf("execute should swallow webhook failure, got: %v", err)
	}

	if got := f.store.attempts["att_1"].Status; got != core.AttemptFailure {
		t.Errorf("attempt status = %q, want failure despite webhook error", got)
	}
}

func TestExecute_ConnectorErrorPropagates(t *testing.T) {
	f := newFixture(&fakeSyncer{err: errors.New("stripe unreachable")})
	seedPayment(f, core.AttemptPending, nil)

	err := f.workflow.Execute(context.Background(), syncProcess(0))
	if err == nil {
		t.Fatal("expected connector error to propagate")
	}
	if !strings.Contains(err.Error(), "att_1") {
		t.Errorf("error should name the attempt, got: %v", err)
	}
	if f.trackerS.retried || f.trackerS.finished {
		t.Error("failed execution must leave the process untouched")
	}
}

func TestOnError_RetiresWithGlobalFailure(t *testing.T) {
	f := newFixture(&fakeSyncer{})

	process := syncProcess(0)
	if err := f.workflow.OnError(context.Background(), process, errors.New("boom")); err != nil {
		t.Fatalf("on error: %v", err)
	}

	if f.trackerS.finishStatus != core.BusinessGlobalFailure {
		t.Errorf("finish status = %q, want %q", f.trackerS.finishStatus, core.BusinessGlobalFailure)
	}
}

func TestScheduleResolver_CustomMapping(t *testing.T) {
	mapping := core.ScheduleMapping{
		DefaultMapping: core.SchedTime{
			StartAfter:  10,
			Frequencies: []core.FrequencyBucket{{IntervalSeconds: 20, RepeatCount: 2}},
		},
		MaxRetriesCount: 2,
	}
	raw, _ := json.Marshal(mapping)
	resolver := NewScheduleResolver(&fixedConfigStore{key: "pt_mapping_adyen", value: string(raw)})

	got := resolver.Mapping(context.Background(), core.ConnectorAdyen)
	if got.DefaultMapping.StartAfter != 10 || got.MaxRetriesCount != 2 {
		t.Errorf("mapping = %+v, want configured adyen mapping", got)
	}

	// Unconfigured connector falls back to the default cadence.
	fallback := resolver.Mapping(context.Background(), core.ConnectorStripe)
	if fallback.DefaultMapping.StartAfter != 60 || fallback.MaxRetriesCount != 5 {
		t.Errorf("fallback = %+v, want default mapping", fallback)
	}
}

func TestScheduleResolver_MalformedMappingFallsBack(t *testing.T) {
	resolver := NewScheduleResolver(&fixedConfigStore{key: "pt_mapping_adyen", value: "{not json"})

	got := resolver.Mapping(context.Background(), core.ConnectorAdyen)
	if got.DefaultMapping.StartAfter != 60 {
		t.Errorf("mapping = %+v, want default after parse failure", got)
	}
}

func TestScheduleResolver_NextScheduleTimeExhausted(t *testing.T) {
	resolver := NewScheduleResolver(&fixedConfigStore{})

	if next := resolver.NextScheduleTime(context.Background(), core.ConnectorStripe, "m1", 6); next != nil {
		t.Errorf("next = %v, want nil beyond max retries", next)
	}
	if next := resolver.NextScheduleTime(context.Background(), core.ConnectorStripe, "m1", 1); next == nil {
		t.Error("expected a schedule time for retry 1")
	}
}
