package core

// RequestTimedOutReason is recorded on an attempt when a status sync exhausts
// its retries without ever hearing back from the connector.
const RequestTimedOutReason = "This Payment has been moved to failed as there is no response from the connector"

// PaymentAttempt is a single dispatch of a payment to a connector. The sync
// workflow re-derives its status from the connector on every run.
type PaymentAttempt struct {
	AttemptID              string        `json:"attempt_id"`
	PaymentID              string        `json:"payment_id"`
	MerchantID             string        `json:"merchant_id"`
	ProfileID              string        `json:"profile_id"`
	Connector              ConnectorName `json:"connector,omitempty"`
	MerchantConnectorID    string        `json:"merchant_connector_id,omitempty"`
	Status                 AttemptStatus `json:"status"`
	ConnectorTransactionID *string       `json:"connector_transaction_id,omitempty"`
	AmountCapturable       int64         `json:"amount_capturable"`
	ErrorCode              string        `json:"error_code,omitempty"`
	ErrorMessage           string        `json:"error_message,omitempty"`
	ErrorReason            string        `json:"error_reason,omitempty"`
	CreatedAt              string        `json:"created_at"`
	ModifiedAt             string        `json:"modified_at"`
}

// PaymentIntent is the merchant-facing payment that owns one or more attempts.
type PaymentIntent struct {
	PaymentID                       string       `json:"payment_id"`
	MerchantID                      string       `json:"merchant_id"`
	ProfileID                       string       `json:"profile_id"`
	Status                          IntentStatus `json:"status"`
	ActiveAttemptID                 string       `json:"active_attempt_id"`
	IncrementalAuthorizationAllowed *bool        `json:"incremental_authorization_allowed,omitempty"`
	CreatedAt                       string       `json:"created_at"`
	ModifiedAt                      string       `json:"modified_at"`
}

// MerchantAccount holds merchant-level configuration, including the active
// routing algorithm ref for merchant-scoped activation.
type MerchantAccount struct {
	MerchantID       string               `json:"merchant_id"`
	MerchantName     string               `json:"merchant_name,omitempty"`
	RoutingAlgorithm *RoutingAlgorithmRef `json:"routing_algorithm,omitempty"`
	CreatedAt        string               `json:"created_at"`
	ModifiedAt       string               `json:"modified_at"`
}

// BusinessProfile is a merchant sub-scope with its own connector accounts,
// webhook endpoint, and routing refs. Payment and payout routing are distinct
// fields, selected by transaction type at activation time.
type BusinessProfile struct {
	ProfileID              string               `json:"profile_id"`
	MerchantID             string               `json:"merchant_id"`
	ProfileName            string               `json:"profile_name,omitempty"`
	WebhookURL             string               `json:"webhook_url,omitempty"`
	RoutingAlgorithm       *RoutingAlgorithmRef `json:"routing_algorithm,omitempty"`
	PayoutRoutingAlgorithm *RoutingAlgorithmRef `json:"payout_routing_algorithm,omitempty"`
	CreatedAt              string               `json:"created_at"`
	ModifiedAt             string               `json:"modified_at"`
}

// MerchantConnectorAccount is one configured connector account under a
// business profile. Read-only to the routing core: the validator consumes the
// enabled set, it never mutates it.
type MerchantConnectorAccount struct {
	MerchantConnectorID string        `json:"merchant_connector_id"`
	MerchantID          string        `json:"merchant_id"`
	ProfileID           string        `json:"profile_id"`
	ConnectorName       ConnectorName `json:"connector_name"`
	Disabled            bool          `json:"disabled"`
	CreatedAt           string        `json:"created_at"`
}
