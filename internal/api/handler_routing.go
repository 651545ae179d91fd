package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/payorch/payorch-backend-sqs/internal/core"
	"github.com/payorch/payorch-backend-sqs/internal/metrics"
	"github.com/payorch/payorch-backend-sqs/internal/routing"
	"github.com/payorch/payorch-backend-sqs/internal/state"
)

// RoutingHandler handles routing configuration HTTP endpoints.
type RoutingHandler struct {
	store    *routing.Store
	payments state.PaymentStore
}

// NewRoutingHandler creates a new RoutingHandler.
func NewRoutingHandler(store *routing.Store, payments state.PaymentStore) *RoutingHandler {
	return &RoutingHandler{store: store, payments: payments}
}

// GetDictionary handles GET /v1/routing/{merchant_id}
func (h *RoutingHandler) GetDictionary(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchant_id")

	dict, err := h.store.GetMerchantRoutingDictionary(r.Context(), merchantID)
	if err != nil {
		HandleError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, dict)
}

type createAlgorithmRequest struct {
	ProfileID   string                 `json:"profile_id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Algorithm   *core.RoutingAlgorithm `json:"algorithm"`
}

// Create handles POST /v1/routing/{merchant_id}. The algorithm is validated
// against the profile's enabled connector accounts, stored under a fresh id,
// and appended to the merchant's dictionary.
func (h *RoutingHandler) Create(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchant_id")

	var req createAlgorithmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("Invalid JSON in request body.", nil))
		return
	}
	if req.ProfileID == "" {
		WriteError(w, http.StatusBadRequest, core.NewMissingFieldError("profile_id"))
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, core.NewMissingFieldError("name"))
		return
	}
	if req.Algorithm == nil {
		WriteError(w, http.StatusBadRequest, core.NewMissingFieldError("algorithm"))
		return
	}

	mcas, err := h.payments.ListConnectorAccounts(r.Context(), merchantID, false)
	if err != nil {
		HandleError(w, core.NewInternalError("list connector accounts", err))
		return
	}
	if err := routing.ValidateConnectors(req.Algorithm, mcas, req.ProfileID); err != nil {
		metrics.RoutingValidationFailures.Inc()
		HandleError(w, err)
		return
	}

	algorithmID := "routing_" + core.NewID()
	if err := h.store.UpdateRoutingAlgorithm(r.Context(), algorithmID, req.Algorithm); err != nil {
		HandleError(w, err)
		return
	}

	dict, err := h.store.GetMerchantRoutingDictionary(r.Context(), merchantID)
	if err != nil {
		HandleError(w, err)
		return
	}

	now := core.NowFormatted()
	record := core.RoutingDictionaryRecord{
		ID:          algorithmID,
		ProfileID:   req.ProfileID,
		Name:        req.Name,
		Kind:        req.Algorithm.Kind,
		Description: req.Description,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	dict.Records = append(dict.Records, record)
	if err := h.store.UpdateMerchantRoutingDictionary(r.Context(), merchantID, dict); err != nil {
		HandleError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, record)
}

type activateRequest struct {
	ProfileID       string `json:"profile_id"`
	TransactionType string `json:"transaction_type,omitempty"`
}

// Activate handles POST /v1/routing/{merchant_id}/{algorithm_id}/activate.
// Validation runs before any write: a failed activation leaves the previous
// active algorithm untouched.
func (h *RoutingHandler) Activate(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchant_id")
	algorithmID := chi.URLParam(r, "algorithm_id")

	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("Invalid JSON in request body.", nil))
		return
	}
	if req.ProfileID == "" {
		WriteError(w, http.StatusBadRequest, core.NewMissingFieldError("profile_id"))
		return
	}
	transactionType, ok := parseTransactionType(req.TransactionType)
	if !ok {
		WriteError(w, http.StatusBadRequest,
			core.NewInvalidRequestError("transaction_type must be 'payment' or 'payout'.", nil))
		return
	}

	algorithm, err := h.store.FindRoutingAlgorithm(r.Context(), algorithmID)
	if err != nil {
		HandleError(w, err)
		return
	}

	dict, err := h.store.GetMerchantRoutingDictionary(r.Context(), merchantID)
	if err != nil {
		HandleError(w, err)
		return
	}
	if !dict.HasRecord(algorithmID) {
		HandleError(w, core.NewNotFoundError("routing algorithm", algorithmID))
		return
	}

	mcas, err := h.payments.ListConnectorAccounts(r.Context(), merchantID, false)
	if err != nil {
		HandleError(w, core.NewInternalError("list connector accounts", err))
		return
	}
	if err := routing.ValidateConnectors(algorithm, mcas, req.ProfileID); err != nil {
		metrics.RoutingValidationFailures.Inc()
		HandleError(w, err)
		return
	}

	profile, err := h.payments.FindBusinessProfile(r.Context(), req.ProfileID)
	if err != nil {
		HandleError(w, core.NewNotFoundError("business profile", req.ProfileID))
		return
	}
	if profile.MerchantID != merchantID {
		HandleError(w, core.NewNotFoundError("business profile", req.ProfileID))
		return
	}

	ref := routing.NewAlgorithmRef(algorithmID)
	if err := h.store.UpdateProfileActiveAlgorithmRef(r.Context(), profile, ref, transactionType); err != nil {
		HandleError(w, err)
		return
	}

	if transactionType == core.TransactionPayment {
		account, err := h.payments.FindMerchantAccount(r.Context(), merchantID)
		if err != nil {
			HandleError(w, core.NewInternalError("load merchant account", err))
			return
		}
		if err := h.store.UpdateMerchantActiveAlgorithmRef(r.Context(), account, ref); err != nil {
			HandleError(w, err)
			return
		}
	}

	dict.ActiveID = &algorithmID
	if err := h.store.UpdateMerchantRoutingDictionary(r.Context(), merchantID, dict); err != nil {
		HandleError(w, err)
		return
	}

	metrics.RoutingActivations.WithLabelValues(string(transactionType)).Inc()
	WriteJSON(w, http.StatusOK, map[string]any{
		"active_id":        algorithmID,
		"profile_id":       req.ProfileID,
		"transaction_type": string(transactionType),
	})
}

// GetDefaults handles GET /v1/routing/{merchant_id}/default
func (h *RoutingHandler) GetDefaults(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchant_id")
	transactionType, ok := parseTransactionType(r.URL.Query().Get("transaction_type"))
	if !ok {
		WriteError(w, http.StatusBadRequest,
			core.NewInvalidRequestError("transaction_type must be 'payment' or 'payout'.", nil))
		return
	}

	choices, err := h.store.GetMerchantDefaultConfig(r.Context(), merchantID, transactionType)
	if err != nil {
		HandleError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, choices)
}

// UpdateDefaults handles POST /v1/routing/{merchant_id}/default. Defaults are
// merchant scoped: choices validate against every profile's enabled accounts.
func (h *RoutingHandler) UpdateDefaults(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchant_id")
	transactionType, ok := parseTransactionType(r.URL.Query().Get("transaction_type"))
	if !ok {
		WriteError(w, http.StatusBadRequest,
			core.NewInvalidRequestError("transaction_type must be 'payment' or 'payout'.", nil))
		return
	}

	var choices []core.ConnectorChoice
	if err := json.NewDecoder(r.Body).Decode(&choices); err != nil {
		WriteError(w, http.StatusBadRequest, core.NewInvalidRequestError("Invalid JSON in request body.", nil))
		return
	}

	mcas, err := h.payments.ListConnectorAccounts(r.Context(), merchantID, false)
	if err != nil {
		HandleError(w, core.NewInternalError("list connector accounts", err))
		return
	}
	if err := routing.ValidateChoices(choices, mcas, ""); err != nil {
		metrics.RoutingValidationFailures.Inc()
		HandleError(w, err)
		return
	}

	if err := h.store.UpdateMerchantDefaultConfig(r.Context(), merchantID, choices, transactionType); err != nil {
		HandleError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, choices)
}

func parseTransactionType(raw string) (core.TransactionType, bool) {
	switch raw {
	case "", string(core.TransactionPayment):
		return core.TransactionPayment, true
	case string(core.TransactionPayout):
		return core.TransactionPayout, true
	default:
		return "", false
	}
}
