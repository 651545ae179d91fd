package core

import (
	"encoding/json"
	"fmt"
)

// AlgorithmKind tags the variant of a RoutingAlgorithm.
type AlgorithmKind string

const (
	AlgorithmSingle      AlgorithmKind = "single"
	AlgorithmPriority    AlgorithmKind = "priority"
	AlgorithmVolumeSplit AlgorithmKind = "volume_split"
	AlgorithmAdvanced    AlgorithmKind = "advanced"
)

// SelectionKind tags the variant of a ConnectorSelection inside an advanced
// program. Only priority and volume_split are valid here.
type SelectionKind string

const (
	SelectionPriority    SelectionKind = "priority"
	SelectionVolumeSplit SelectionKind = "volume_split"
)

// ConnectorChoice references a connector for routing. If MerchantConnectorID
// is set it pins one specific enabled account; otherwise any enabled account
// of that connector name for the profile suffices.
type ConnectorChoice struct {
	Connector           ConnectorName `json:"connector"`
	MerchantConnectorID string        `json:"merchant_connector_id,omitempty"`
}

// ConnectorVolumeSplit assigns a weight to a connector choice. Weights are
// used by the selection engine; referential validation ignores them.
type ConnectorVolumeSplit struct {
	Connector ConnectorChoice `json:"connector"`
	Split     uint8           `json:"split"`
}

// RoutingAlgorithm is an immutable, versioned routing decision rule: one of
// single, priority, volume_split, or advanced. It serializes as a tagged
// union: {"type": "<kind>", "data": <variant payload>}.
type RoutingAlgorithm struct {
	Kind        AlgorithmKind
	Single      *ConnectorChoice
	Priority    []ConnectorChoice
	VolumeSplit []ConnectorVolumeSplit
	Advanced    *Program
}

type routingAlgorithmEnvelope struct {
	Type AlgorithmKind   `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON implements the tagged-union wire form.
func (a RoutingAlgorithm) MarshalJSON() ([]byte, error) {
	var data any
	switch a.Kind {
	case AlgorithmSingle:
		data = a.Single
	case AlgorithmPriority:
		data = a.Priority
	case AlgorithmVolumeSplit:
		data = a.VolumeSplit
	case AlgorithmAdvanced:
		data = a.Advanced
	default:
		return nil, fmt.Errorf("unknown routing algorithm kind %q", a.Kind)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(routingAlgorithmEnvelope{Type: a.Kind, Data: raw})
}

// UnmarshalJSON implements the tagged-union wire form.
func (a *RoutingAlgorithm) UnmarshalJSON(b []byte) error {
	var env routingAlgorithmEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	*a = RoutingAlgorithm{Kind: env.Type}
	switch env.Type {
	case AlgorithmSingle:
		a.Single = &ConnectorChoice{}
		return json.Unmarshal(env.Data, a.Single)
	case AlgorithmPriority:
		return json.Unmarshal(env.Data, &a.Priority)
	case AlgorithmVolumeSplit:
		return json.Unmarshal(env.Data, &a.VolumeSplit)
	case AlgorithmAdvanced:
		a.Advanced = &Program{}
		return json.Unmarshal(env.Data, a.Advanced)
	default:
		return fmt.Errorf("unknown routing algorithm kind %q", env.Type)
	}
}

// ConnectorSelection is the leaf selection inside an advanced program: either
// an ordered priority list or a weighted volume split. Same tagged-union wire
// form as RoutingAlgorithm.
type ConnectorSelection struct {
	Kind        SelectionKind
	Priority    []ConnectorChoice
	VolumeSplit []ConnectorVolumeSplit
}

type connectorSelectionEnvelope struct {
	Type SelectionKind   `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s ConnectorSelection) MarshalJSON() ([]byte, error) {
	var data any
	switch s.Kind {
	case SelectionPriority:
		data = s.Priority
	case SelectionVolumeSplit:
		data = s.VolumeSplit
	default:
		return nil, fmt.Errorf("unknown connector selection kind %q", s.Kind)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(connectorSelectionEnvelope{Type: s.Kind, Data: raw})
}

func (s *ConnectorSelection) UnmarshalJSON(b []byte) error {
	var env connectorSelectionEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	*s = ConnectorSelection{Kind: env.Type}
	switch env.Type {
	case SelectionPriority:
		return json.Unmarshal(env.Data, &s.Priority)
	case SelectionVolumeSplit:
		return json.Unmarshal(env.Data, &s.VolumeSplit)
	default:
		return fmt.Errorf("unknown connector selection kind %q", env.Type)
	}
}

// Rule pairs a match condition with the selection to use when it fires. The
// condition language is owned by the selection engine; this layer treats it
// as opaque.
type Rule struct {
	Name               string             `json:"name,omitempty"`
	Condition          json.RawMessage    `json:"condition,omitempty"`
	ConnectorSelection ConnectorSelection `json:"connector_selection"`
}

// Program is the advanced routing variant: a default selection plus an
// ordered rule list, forming a recursive tree of connector references.
type Program struct {
	DefaultSelection ConnectorSelection `json:"default_selection"`
	Rules            []Rule             `json:"rules"`
}

// RoutingDictionaryRecord is the dictionary's view of one configured
// algorithm: metadata only, the definition itself is stored under its own key.
type RoutingDictionaryRecord struct {
	ID          string        `json:"id"`
	ProfileID   string        `json:"profile_id,omitempty"`
	Name        string        `json:"name"`
	Kind        AlgorithmKind `json:"kind"`
	Description string        `json:"description,omitempty"`
	CreatedAt   string        `json:"created_at"`
	ModifiedAt  string        `json:"modified_at"`
}

// RoutingDictionary is the per-merchant collection of configured routing
// algorithms. ActiveID, when set, must reference a record in Records.
type RoutingDictionary struct {
	MerchantID string                    `json:"merchant_id"`
	ActiveID   *string                   `json:"active_id,omitempty"`
	Records    []RoutingDictionaryRecord `json:"records"`
}

// HasRecord reports whether the dictionary contains a record with the given
// algorithm id.
func (d *RoutingDictionary) HasRecord(id string) bool {
	for _, rec := range d.Records {
		if rec.ID == id {
			return true
		}
	}
	return false
}

// RoutingAlgorithmRef is the nullable "active routing ref" persisted on a
// merchant account or business profile.
type RoutingAlgorithmRef struct {
	AlgorithmID *string `json:"algorithm_id"`
	Timestamp   int64   `json:"timestamp"`
}
