package core

import (
	"encoding/json"
	"testing"
)

func TestRoutingAlgorithm_SingleRoundTrip(t *testing.T) {
	algo := RoutingAlgorithm{
		Kind:   AlgorithmSingle,
		Single: &ConnectorChoice{Connector: ConnectorStripe, MerchantConnectorID: "mca_1"},
	}

	data, err := json.Marshal(algo)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded RoutingAlgorithm
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Kind != AlgorithmSingle {
		t.Errorf("kind = %q, want %q", decoded.Kind, AlgorithmSingle)
	}
	if decoded.Single == nil || decoded.Single.Connector != ConnectorStripe {
		t.Errorf("single = %+v, want stripe", decoded.Single)
	}
	if decoded.Single.MerchantConnectorID != "mca_1" {
		t.Errorf("merchant_connector_id = %q, want mca_1", decoded.Single.MerchantConnectorID)
	}
}

func TestRoutingAlgorithm_AdvancedRoundTrip(t *testing.T) {
	algo := RoutingAlgorithm{
		Kind: AlgorithmAdvanced,
		Advanced: &Program{
			DefaultSelection: ConnectorSelection{
				Kind:     SelectionPriority,
				Priority: []ConnectorChoice{{Connector: ConnectorAdyen}},
			},
			Rules: []Rule{
				{
					Name:      "cards to stripe",
					Condition: json.RawMessage(`{"payment_method":"card"}`),
					ConnectorSelection: ConnectorSelection{
						Kind: SelectionVolumeSplit,
						VolumeSplit: []ConnectorVolumeSplit{
							{Connector: ConnectorChoice{Connector: ConnectorStripe}, Split: 60},
							{Connector: ConnectorChoice{Connector: ConnectorCheckout}, Split: 40},
						},
					},
				},
			},
		},
	}

	data, err := json.Marshal(algo)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded RoutingAlgorithm
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Kind != AlgorithmAdvanced {
		t.Fatalf("kind = %q, want %q", decoded.Kind, AlgorithmAdvanced)
	}
	if decoded.Advanced.DefaultSelection.Kind != SelectionPriority {
		t.Errorf("default selection kind = %q, want priority", decoded.Advanced.DefaultSelection.Kind)
	}
	if len(decoded.Advanced.Rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(decoded.Advanced.Rules))
	}
	rule := decoded.Advanced.Rules[0]
	if rule.ConnectorSelection.Kind != SelectionVolumeSplit {
		t.Errorf("rule selection kind = %q, want volume_split", rule.ConnectorSelection.Kind)
	}
	if len(rule.ConnectorSelection.VolumeSplit) != 2 || rule.ConnectorSelection.VolumeSplit[0].Split != 60 {
		t.Errorf("volume split = %+v, want stripe 60 / checkout 40", rule.ConnectorSelection.VolumeSplit)
	}
}

func TestRoutingAlgorithm_UnknownKind(t *testing.T) {
	var decoded RoutingAlgorithm
	err := json.Unmarshal([]byte(`{"type":"round_robin","data":{}}`), &decoded)
	if err == nil {
		t.Fatal("expected error for unknown algorithm kind")
	}
}

func TestRoutingDictionary_HasRecord(t *testing.T) {
	dict := RoutingDictionary{
		MerchantID: "merchant_1",
		Records: []RoutingDictionaryRecord{
			{ID: "algo_1", Name: "primary"},
			{ID: "algo_2", Name: "backup"},
		},
	}

	if !dict.HasRecord("algo_2") {
		t.Error("expected algo_2 to be present")
	}
	if dict.HasRecord("algo_3") {
		t.Error("expected algo_3 to be absent")
	}
}

func TestAttemptStatus_IsSyncTerminal(t *testing.T) {
	terminal := []AttemptStatus{
		AttemptRouterDeclined, AttemptCharged, AttemptAutoRefunded,
		AttemptVoided, AttemptVoidFailed, AttemptCaptureFailed, AttemptFailure,
	}
	for _, s := range terminal {
		if !s.IsSyncTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	nonTerminal := []AttemptStatus{AttemptPending, AttemptAuthorized, AttemptAuthorizing, AttemptStarted}
	for _, s := range nonTerminal {
		if s.IsSyncTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
