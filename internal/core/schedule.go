package core

// FrequencyBucket is one step of a retry cadence: repeat RepeatCount retries
// with IntervalSeconds between them before advancing to the next bucket.
type FrequencyBucket struct {
	IntervalSeconds int64 `json:"interval_seconds"`
	RepeatCount     int   `json:"repeat_count"`
}

// SchedTime is a retry cadence: the delay before the first sync plus the
// ordered frequency buckets for subsequent retries.
type SchedTime struct {
	StartAfter  int64             `json:"start_after"`
	Frequencies []FrequencyBucket `json:"frequencies"`
}

// ScheduleMapping is the per-connector retry configuration, stored under
// pt_mapping_{connector}. A merchant-specific cadence can override the
// default one.
type ScheduleMapping struct {
	DefaultMapping        SchedTime            `json:"default_mapping"`
	CustomMerchantMapping map[string]SchedTime `json:"custom_merchant_mapping,omitempty"`
	MaxRetriesCount       int                  `json:"max_retries_count"`
}

// DefaultScheduleMapping is the process-wide fallback cadence, used whenever
// a connector-specific mapping is absent or unreadable: first sync after 60s,
// then 5 retries at 300s intervals.
func DefaultScheduleMapping() ScheduleMapping {
	return ScheduleMapping{
		DefaultMapping: SchedTime{
			StartAfter: 60,
			Frequencies: []FrequencyBucket{
				{IntervalSeconds: 300, RepeatCount: 5},
			},
		},
		MaxRetriesCount: 5,
	}
}

// DelayForRetry resolves the delay in seconds applicable to the given
// 1-based retry number by walking the ordered buckets, consuming each
// bucket's repeat count before advancing. Retry 0 maps to StartAfter. A nil
// result means the cadence is exhausted.
func (s SchedTime) DelayForRetry(retryCount int) *int64 {
	if retryCount == 0 {
		d := s.StartAfter
		return &d
	}

	remaining := retryCount
	for _, bucket := range s.Frequencies {
		if remaining <= bucket.RepeatCount {
			d := bucket.IntervalSeconds
			return &d
		}
		remaining -= bucket.RepeatCount
	}
	return nil
}

// MappingFor returns the cadence applicable to a merchant: the custom
// per-merchant cadence when configured, otherwise the connector default.
func (m ScheduleMapping) MappingFor(merchantID string) SchedTime {
	if custom, ok := m.CustomMerchantMapping[merchantID]; ok {
		return custom
	}
	return m.DefaultMapping
}

// NextDelay resolves the retry delay for a merchant and retry number against
// this mapping. Retries beyond MaxRetriesCount yield nil.
func (m ScheduleMapping) NextDelay(merchantID string, retryCount int) *int64 {
	if retryCount > m.MaxRetriesCount {
		return nil
	}
	return m.MappingFor(merchantID).DelayForRetry(retryCount)
}
