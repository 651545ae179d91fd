package routing

import (
	"fmt"

	"github.com/payorch/payorch-backend-sqs/internal/core"
)

// connectorSets indexes a profile's enabled connector accounts two ways:
// exact (name, merchant_connector_id) pairs and bare names.
type connectorSets struct {
	nameMCAID map[[2]string]struct{}
	name      map[core.ConnectorName]struct{}
}

func buildConnectorSets(mcas []*core.MerchantConnectorAccount, profileID string) connectorSets {
	sets := connectorSets{
		nameMCAID: make(map[[2]string]struct{}),
		name:      make(map[core.ConnectorName]struct{}),
	}
	for _, mca := range mcas {
		if mca.Disabled {
			continue
		}
		// An empty profileID means merchant scope: accounts from every
		// profile count. Used when validating merchant-level defaults.
		if profileID != "" && mca.ProfileID != profileID {
			continue
		}
		sets.nameMCAID[[2]string{string(mca.ConnectorName), mca.MerchantConnectorID}] = struct{}{}
		sets.name[mca.ConnectorName] = struct{}{}
	}
	return sets
}

func (s connectorSets) checkChoice(choice core.ConnectorChoice) error {
	if choice.MerchantConnectorID != "" {
		if _, ok := s.nameMCAID[[2]string{string(choice.Connector), choice.MerchantConnectorID}]; !ok {
			return core.NewValidationError(
				fmt.Sprintf(
					"connector with name '%s' and merchant connector account id '%s' not found for the given profile",
					choice.Connector,
					choice.MerchantConnectorID,
				),
				map[string]any{
					"connector":             string(choice.Connector),
					"merchant_connector_id": choice.MerchantConnectorID,
				},
			)
		}
		return nil
	}

	if _, ok := s.name[choice.Connector]; !ok {
		return core.NewValidationError(
			fmt.Sprintf("connector with name '%s' not found for the given profile", choice.Connector),
			map[string]any{"connector": string(choice.Connector)},
		)
	}
	return nil
}

func (s connectorSets) checkSelection(selection core.ConnectorSelection) error {
	switch selection.Kind {
	case core.SelectionPriority:
		for _, choice := range selection.Priority {
			if err := s.checkChoice(choice); err != nil {
				return err
			}
		}
	case core.SelectionVolumeSplit:
		for _, split := range selection.VolumeSplit {
			if err := s.checkChoice(split.Connector); err != nil {
				return err
			}
		}
	default:
		return core.NewValidationError(
			fmt.Sprintf("unknown connector selection kind '%s'", selection.Kind), nil,
		)
	}
	return nil
}

// ValidateConnectors checks that every connector reference in the algorithm,
// at any depth, resolves to an enabled connector account of the given
// profile. The walk is exhaustive and fails on the first invalid reference in
// document order. It is pure: no side effects, no mutation.
func ValidateConnectors(algorithm *core.RoutingAlgorithm, mcas []*core.MerchantConnectorAccount, profileID string) error {
	sets := buildConnectorSets(mcas, profileID)

	switch algorithm.Kind {
	case core.AlgorithmSingle:
		if algorithm.Single == nil {
			return core.NewValidationError("single routing algorithm has no connector choice", nil)
		}
		return sets.checkChoice(*algorithm.Single)

	case core.AlgorithmPriority:
		for _, choice := range algorithm.Priority {
			if err := sets.checkChoice(choice); err != nil {
				return err
			}
		}
		return nil

	case core.AlgorithmVolumeSplit:
		for _, split := range algorithm.VolumeSplit {
			if err := sets.checkChoice(split.Connector); err != nil {
				return err
			}
		}
		return nil

	case core.AlgorithmAdvanced:
		if algorithm.Advanced == nil {
			return core.NewValidationError("advanced routing algorithm has no program", nil)
		}
		if err := sets.checkSelection(algorithm.Advanced.DefaultSelection); err != nil {
			return err
		}
		for _, rule := range algorithm.Advanced.Rules {
			if err := sets.checkSelection(rule.ConnectorSelection); err != nil {
				return err
			}
		}
		return nil

	default:
		return core.NewValidationError(
			fmt.Sprintf("unknown routing algorithm kind '%s'", algorithm.Kind), nil,
		)
	}
}

// ValidateChoices checks a plain connector list (the default fallback config)
// against the profile's enabled accounts.
func ValidateChoices(choices []core.ConnectorChoice, mcas []*core.MerchantConnectorAccount, profileID string) error {
	sets := buildConnectorSets(mcas, profileID)
	for _, choice := range choices {
		if err := sets.checkChoice(choice); err != nil {
			return err
		}
	}
	return nil
}
