// Package workflows contains the process-tracker workflows: the units of
// deferred work the consumer dispatches by name.
package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/payorch/payorch-backend-sqs/internal/core"
	"github.com/payorch/payorch-backend-sqs/internal/state"
)

// MappingKey returns the config key holding a connector's retry schedule
// mapping.
func MappingKey(connector core.ConnectorName) string {
	return "pt_mapping_" + string(connector)
}

// ScheduleResolver resolves per-connector retry schedules from the config
// store. Any failure to load or parse a mapping falls back to the default
// schedule; a broken config row must never stall retries.
type ScheduleResolver struct {
	configs state.ConfigStore
	logger  *slog.Logger
}

// NewScheduleResolver creates a resolver over the config store.
func NewScheduleResolver(configs state.ConfigStore) *ScheduleResolver {
	return &ScheduleResolver{
		configs: configs,
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the resolver.
func (r *ScheduleResolver) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// Mapping returns the schedule mapping for a connector.
func (r *ScheduleResolver) Mapping(ctx context.Context, connector core.ConnectorName) core.ScheduleMapping {
	raw, err := r.configs.FindConfig(ctx, MappingKey(connector))
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			r.logger.Warn("failed to load schedule mapping, using default",
				"connector", connector, "error", err)
		}
		return core.DefaultScheduleMapping()
	}

	var mapping core.ScheduleMapping
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		r.logger.Warn("malformed schedule mapping, using default",
			"connector", connector, "error", err)
		return core.DefaultScheduleMapping()
	}
	return mapping
}

// NextScheduleTime returns when the next sync retry should run, or nil when
// the schedule is exhausted for this retry count.
func (r *ScheduleResolver) NextScheduleTime(ctx context.Context, connector core.ConnectorName, merchantID string, retryCount int) *time.Time {
	mapping := r.Mapping(ctx, connector)
	delay := mapping.NextDelay(merchantID, retryCount)
	if delay == nil {
		return nil
	}
	t := time.Now().Add(time.Duration(*delay) * time.Second)
	return &t
}
