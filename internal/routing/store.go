// Package routing implements the routing configuration store and the
// connector-reference validator: per-merchant routing dictionaries, default
// fallback lists, versioned algorithm definitions, and activation with cache
// invalidation.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/payorch/payorch-backend-sqs/internal/cache"
	"github.com/payorch/payorch-backend-sqs/internal/core"
	"github.com/payorch/payorch-backend-sqs/internal/state"
)

// Store provides CRUD over routing configuration. All writes are whole-value
// overwrites: callers read-modify-write, and concurrent updates are
// last-writer-wins. There is no optimistic concurrency token; lost updates
// under concurrent activation are a known, accepted limitation.
type Store struct {
	configs     state.ConfigStore
	payments    state.PaymentStore
	invalidator cache.Publisher
	logger      *slog.Logger
}

// NewStore creates a routing configuration store.
func NewStore(configs state.ConfigStore, payments state.PaymentStore, invalidator cache.Publisher) *Store {
	return &Store{
		configs:     configs,
		payments:    payments,
		invalidator: invalidator,
		logger:      slog.Default(),
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// GetMerchantRoutingDictionary returns the merchant's routing dictionary,
// creating and persisting an empty one on first read.
func (s *Store) GetMerchantRoutingDictionary(ctx context.Context, merchantID string) (*core.RoutingDictionary, error) {
	key := DictionaryKey(merchantID)

	raw, err := s.configs.FindConfig(ctx, key)
	switch {
	case err == nil:
		var dict core.RoutingDictionary
		if err := json.Unmarshal([]byte(raw), &dict); err != nil {
			return nil, core.NewInternalError("merchant routing dictionary has invalid structure", err)
		}
		return &dict, nil

	case errors.Is(err, state.ErrNotFound):
		dict := &core.RoutingDictionary{
			MerchantID: merchantID,
			ActiveID:   nil,
			Records:    []core.RoutingDictionaryRecord{},
		}
		serialized, err := json.Marshal(dict)
		if err != nil {
			return nil, core.NewInternalError("error serializing newly created merchant dictionary", err)
		}
		if err := s.configs.InsertConfig(ctx, key, string(serialized)); err != nil {
			return nil, core.NewInternalError("error inserting new routing dictionary for merchant", err)
		}
		return dict, nil

	default:
		return nil, core.NewInternalError("error fetching routing dictionary for merchant", err)
	}
}

// GetMerchantDefaultConfig returns the merchant's default fallback list for
// the transaction type, creating and persisting an empty list on first read.
func (s *Store) GetMerchantDefaultConfig(ctx context.Context, merchantID string, transactionType core.TransactionType) ([]core.ConnectorChoice, error) {
	key := DefaultConfigKey(merchantID, transactionType)

	raw, err := s.configs.FindConfig(ctx, key)
	switch {
	case err == nil:
		var choices []core.ConnectorChoice
		if err := json.Unmarshal([]byte(raw), &choices); err != nil {
			return nil, core.NewInternalError("merchant default config has invalid structure", err)
		}
		return choices, nil

	case errors.Is(err, state.ErrNotFound):
		choices := []core.ConnectorChoice{}
		serialized, err := json.Marshal(choices)
		if err != nil {
			return nil, core.NewInternalError("error serializing new merchant default config", err)
		}
		if err := s.configs.InsertConfig(ctx, key, string(serialized)); err != nil {
			return nil, core.NewInternalError("error inserting new default routing config", err)
		}
		return choices, nil

	default:
		return nil, core.NewInternalError("error fetching default config for merchant", err)
	}
}

// UpdateMerchantDefaultConfig overwrites the merchant's default fallback list.
func (s *Store) UpdateMerchantDefaultConfig(ctx context.Context, merchantID string, choices []core.ConnectorChoice, transactionType core.TransactionType) error {
	serialized, err := json.Marshal(choices)
	if err != nil {
		return core.NewInternalError("unable to serialize merchant default routing config during update", err)
	}

	key := DefaultConfigKey(merchantID, transactionType)
	if err := s.configs.UpdateConfig(ctx, key, string(serialized)); err != nil {
		return core.NewInternalError("error updating the default routing config", err)
	}
	return nil
}

// UpdateMerchantRoutingDictionary overwrites the merchant's whole dictionary
// record. Callers must read-modify-write; there is no partial merge.
func (s *Store) UpdateMerchantRoutingDictionary(ctx context.Context, merchantID string, dict *core.RoutingDictionary) error {
	serialized, err := json.Marshal(dict)
	if err != nil {
		return core.NewInternalError("unable to serialize routing dictionary during update", err)
	}

	if err := s.configs.UpdateConfig(ctx, DictionaryKey(merchantID), string(serialized)); err != nil {
		return core.NewInternalError("error saving routing dictionary", err)
	}
	return nil
}

// UpdateRoutingAlgorithm persists an algorithm definition under its own
// caller-assigned key, independent of the dictionary that references it.
func (s *Store) UpdateRoutingAlgorithm(ctx context.Context, algorithmID string, algorithm *core.RoutingAlgorithm) error {
	serialized, err := json.Marshal(algorithm)
	if err != nil {
		return core.NewInternalError("unable to serialize routing algorithm", err)
	}

	if err := s.configs.UpdateConfig(ctx, algorithmID, string(serialized)); err != nil {
		return core.NewInternalError("error updating the routing algorithm", err)
	}
	return nil
}

// FindRoutingAlgorithm loads an algorithm definition by id.
func (s *Store) FindRoutingAlgorithm(ctx context.Context, algorithmID string) (*core.RoutingAlgorithm, error) {
	raw, err := s.configs.FindConfig(ctx, algorithmID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, core.NewNotFoundError("routing algorithm", algorithmID)
		}
		return nil, core.NewInternalError("error fetching routing algorithm", err)
	}

	var algorithm core.RoutingAlgorithm
	if err := json.Unmarshal([]byte(raw), &algorithm); err != nil {
		return nil, core.NewInternalError("routing algorithm has invalid structure", err)
	}
	return &algorithm, nil
}

// UpdateMerchantActiveAlgorithmRef writes the active routing ref on the
// merchant account and publishes the cache invalidation naming the affected
// key. The publish is a required side effect: its failure is the caller's
// error, since stale routing could otherwise persist indefinitely.
func (s *Store) UpdateMerchantActiveAlgorithmRef(ctx context.Context, account *core.MerchantAccount, ref core.RoutingAlgorithmRef) error {
	account.RoutingAlgorithm = &ref
	if err := s.payments.UpdateMerchantAccount(ctx, account); err != nil {
		return core.NewInternalError("failed to update routing algorithm ref in merchant account", err)
	}

	if err := s.invalidator.Publish(ctx, cache.AccountKey(account.MerchantID)); err != nil {
		return core.NewInternalError("failed to publish cache invalidation for merchant account", err)
	}
	return nil
}

// UpdateProfileActiveAlgorithmRef writes the active routing ref on the
// business profile (the payment or payout field, by transaction type) and
// publishes the routing cache invalidation for the profile.
func (s *Store) UpdateProfileActiveAlgorithmRef(ctx context.Context, profile *core.BusinessProfile, ref core.RoutingAlgorithmRef, transactionType core.TransactionType) error {
	switch transactionType {
	case core.TransactionPayout:
		profile.PayoutRoutingAlgorithm = &ref
	default:
		profile.RoutingAlgorithm = &ref
	}

	if err := s.payments.UpdateBusinessProfile(ctx, profile); err != nil {
		return core.NewInternalError("failed to update routing algorithm ref in business profile", err)
	}

	if err := s.invalidator.Publish(ctx, cache.RoutingKey(profile.MerchantID, profile.ProfileID)); err != nil {
		return core.NewInternalError("failed to publish routing cache invalidation", err)
	}
	return nil
}

// NewAlgorithmRef builds a ref pointing at the given algorithm id, stamped
// with the activation time.
func NewAlgorithmRef(algorithmID string) core.RoutingAlgorithmRef {
	return core.RoutingAlgorithmRef{
		AlgorithmID: &algorithmID,
		Timestamp:   time.Now().Unix(),
	}
}
