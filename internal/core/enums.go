package core

// TransactionType distinguishes payment routing from payout routing. The two
// share the same machinery but are keyed and activated independently.
type TransactionType string

const (
	TransactionPayment TransactionType = "payment"
	TransactionPayout  TransactionType = "payout"
)

// ConnectorName identifies an external payment processor integrated behind an
// adapter. The set is open: new connectors register adapters at startup, so
// the type is a plain string rather than a closed enum.
type ConnectorName string

const (
	ConnectorAdyen     ConnectorName = "adyen"
	ConnectorBraintree ConnectorName = "braintree"
	ConnectorCheckout  ConnectorName = "checkout"
	ConnectorStripe    ConnectorName = "stripe"
	ConnectorTrustpay  ConnectorName = "trustpay"
	ConnectorWorldpay  ConnectorName = "worldpay"
)

// AttemptStatus is the canonical status of a single payment attempt as
// reported by (or derived from) the connector.
type AttemptStatus string

const (
	AttemptStarted               AttemptStatus = "started"
	AttemptAuthenticationPending AttemptStatus = "authentication_pending"
	AttemptAuthenticationFailed  AttemptStatus = "authentication_failed"
	AttemptAuthorized            AttemptStatus = "authorized"
	AttemptAuthorizationFailed   AttemptStatus = "authorization_failed"
	AttemptAuthorizing           AttemptStatus = "authorizing"
	AttemptCharged               AttemptStatus = "charged"
	AttemptCaptureInitiated      AttemptStatus = "capture_initiated"
	AttemptCaptureFailed         AttemptStatus = "capture_failed"
	AttemptVoidInitiated         AttemptStatus = "void_initiated"
	AttemptVoided                AttemptStatus = "voided"
	AttemptVoidFailed            AttemptStatus = "void_failed"
	AttemptAutoRefunded          AttemptStatus = "auto_refunded"
	AttemptPartialCharged        AttemptStatus = "partial_charged"
	AttemptPending               AttemptStatus = "pending"
	AttemptFailure               AttemptStatus = "failure"
	AttemptRouterDeclined        AttemptStatus = "router_declined"
	AttemptUnresolved            AttemptStatus = "unresolved"
)

// syncTerminalStatuses is the set of attempt statuses after which no further
// status-sync retries are meaningful.
var syncTerminalStatuses = map[AttemptStatus]struct{}{
	AttemptRouterDeclined: {},
	AttemptCharged:        {},
	AttemptAutoRefunded:   {},
	AttemptVoided:         {},
	AttemptVoidFailed:     {},
	AttemptCaptureFailed:  {},
	AttemptFailure:        {},
}

// IsSyncTerminal reports whether an attempt status retires the status-sync
// workflow for that attempt.
func (s AttemptStatus) IsSyncTerminal() bool {
	_, ok := syncTerminalStatuses[s]
	return ok
}

// IntentStatus is the status of the owning payment intent.
type IntentStatus string

const (
	IntentRequiresCapture IntentStatus = "requires_capture"
	IntentProcessing      IntentStatus = "processing"
	IntentSucceeded       IntentStatus = "succeeded"
	IntentCancelled       IntentStatus = "cancelled"
	IntentFailed          IntentStatus = "failed"
)
