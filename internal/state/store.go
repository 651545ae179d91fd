package state

import (
	"context"
	"errors"
	"time"

	"github.com/payorch/payorch-backend-sqs/internal/core"
)

// ErrNotFound is returned by Find* operations when the record does not exist.
// Callers that implement get-or-create semantics branch on it.
var ErrNotFound = errors.New("record not found")

// ConfigStore is the key-value configuration store: opaque JSON values under
// string keys (routing dictionaries, default configs, algorithm definitions,
// schedule mappings).
type ConfigStore interface {
	FindConfig(ctx context.Context, key string) (string, error)
	InsertConfig(ctx context.Context, key, value string) error
	UpdateConfig(ctx context.Context, key, value string) error
}

// PaymentStore provides access to payment-domain records. Updates are
// whole-value overwrites; concurrent writers are last-writer-wins.
type PaymentStore interface {
	FindPaymentAttempt(ctx context.Context, attemptID string) (*core.PaymentAttempt, error)
	UpdatePaymentAttempt(ctx context.Context, attempt *core.PaymentAttempt) error

	FindPaymentIntent(ctx context.Context, paymentID string) (*core.PaymentIntent, error)
	UpdatePaymentIntent(ctx context.Context, intent *core.PaymentIntent) error

	FindMerchantAccount(ctx context.Context, merchantID string) (*core.MerchantAccount, error)
	UpdateMerchantAccount(ctx context.Context, account *core.MerchantAccount) error

	FindBusinessProfile(ctx context.Context, profileID string) (*core.BusinessProfile, error)
	UpdateBusinessProfile(ctx context.Context, profile *core.BusinessProfile) error

	// ListConnectorAccounts returns the connector accounts configured for a
	// merchant. Disabled accounts are included only when includeDisabled is
	// set; the routing validator always excludes them.
	ListConnectorAccounts(ctx context.Context, merchantID string, includeDisabled bool) ([]*core.MerchantConnectorAccount, error)
	PutConnectorAccount(ctx context.Context, mca *core.MerchantConnectorAccount) error
}

// TrackerStore persists process-tracker records and maintains the due index
// the promotion loop queries.
type TrackerStore interface {
	PutProcess(ctx context.Context, process *core.ProcessTracker) error
	GetProcess(ctx context.Context, id string) (*core.ProcessTracker, error)

	// MarkProcessStarted flips the process to process_started and removes it
	// from the due index so the promoter does not hand it out twice.
	MarkProcessStarted(ctx context.Context, id string) error

	// RetryProcess re-arms the process: status retry, bumped retry count, new
	// schedule time, back onto the due index.
	RetryProcess(ctx context.Context, id string, scheduleTime time.Time, retryCount int) error

	// FinishProcess retires the process with the given business status and
	// stamps a TTL so finished records age out of the table.
	FinishProcess(ctx context.Context, id, businessStatus string, retention time.Duration) error

	// DueProcesses returns processes whose schedule time is at or before
	// nowMs, oldest first.
	DueProcesses(ctx context.Context, nowMs int64, limit int) ([]*core.ProcessTracker, error)

	// StaleStartedProcesses returns processes claimed by a consumer that have
	// not progressed since beforeMs; the recovery cron re-arms them.
	StaleStartedProcesses(ctx context.Context, beforeMs int64, limit int) ([]*core.ProcessTracker, error)
}

// Store is the full persistence surface backing the service.
type Store interface {
	ConfigStore
	PaymentStore
	TrackerStore

	Ping(ctx context.Context) error
	Close() error
}
