package routing

import "github.com/payorch/payorch-backend-sqs/internal/core"

// DictionaryKey is the config key holding a merchant's routing dictionary.
func DictionaryKey(merchantID string) string {
	return "routing_dict_" + merchantID
}

// DefaultConfigKey is the config key holding a merchant's default fallback
// list. Payouts use a separate key so the two can diverge.
func DefaultConfigKey(merchantID string, transactionType core.TransactionType) string {
	if transactionType == core.TransactionPayout {
		return "routing_default_po_" + merchantID
	}
	return "routing_default_" + merchantID
}
