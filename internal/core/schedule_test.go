package core

import (
	"encoding/json"
	"testing"
)

func TestScheduleMapping_NextDelay(t *testing.T) {
	mapping := ScheduleMapping{
		DefaultMapping: SchedTime{
			StartAfter:  60,
			Frequencies: []FrequencyBucket{{IntervalSeconds: 300, RepeatCount: 5}},
		},
		MaxRetriesCount: 5,
	}

	tests := []struct {
		retryCount int
		want       *int64
	}{
		{0, int64Ptr(60)},
		{1, int64Ptr(300)},
		{5, int64Ptr(300)},
		{6, nil},
	}

	for _, tt := range tests {
		got := mapping.NextDelay("merchant_1", tt.retryCount)
		if (got == nil) != (tt.want == nil) {
			t.Errorf("NextDelay(retry=%d) = %v, want %v", tt.retryCount, got, tt.want)
			continue
		}
		if got != nil && *got != *tt.want {
			t.Errorf("NextDelay(retry=%d) = %d, want %d", tt.retryCount, *got, *tt.want)
		}
	}
}

func TestSchedTime_DelayForRetry_MultiBucket(t *testing.T) {
	cadence := SchedTime{
		StartAfter: 30,
		Frequencies: []FrequencyBucket{
			{IntervalSeconds: 60, RepeatCount: 2},
			{IntervalSeconds: 600, RepeatCount: 3},
		},
	}

	tests := []struct {
		retryCount int
		want       int64
	}{
		{0, 30},
		{1, 60},
		{2, 60},
		{3, 600},
		{5, 600},
	}
	for _, tt := range tests {
		got := cadence.DelayForRetry(tt.retryCount)
		if got == nil || *got != tt.want {
			t.Errorf("DelayForRetry(%d) = %v, want %d", tt.retryCount, got, tt.want)
		}
	}

	if got := cadence.DelayForRetry(6); got != nil {
		t.Errorf("DelayForRetry(6) = %d, want exhausted", *got)
	}
}

func TestScheduleMapping_CustomMerchantOverride(t *testing.T) {
	mapping := DefaultScheduleMapping()
	mapping.CustomMerchantMapping = map[string]SchedTime{
		"merchant_fast": {
			StartAfter:  10,
			Frequencies: []FrequencyBucket{{IntervalSeconds: 30, RepeatCount: 5}},
		},
	}

	if got := mapping.NextDelay("merchant_fast", 0); got == nil || *got != 10 {
		t.Errorf("custom start_after = %v, want 10", got)
	}
	if got := mapping.NextDelay("merchant_other", 0); got == nil || *got != 60 {
		t.Errorf("default start_after = %v, want 60", got)
	}
}

func TestScheduleMapping_JSON(t *testing.T) {
	raw := `{
		"default_mapping": {
			"start_after": 60,
			"frequencies": [{"interval_seconds": 300, "repeat_count": 5}]
		},
		"max_retries_count": 5
	}`

	var mapping ScheduleMapping
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if mapping.DefaultMapping.StartAfter != 60 {
		t.Errorf("start_after = %d, want 60", mapping.DefaultMapping.StartAfter)
	}
	if mapping.MaxRetriesCount != 5 {
		t.Errorf("max_retries_count = %d, want 5", mapping.MaxRetriesCount)
	}
}

func int64Ptr(v int64) *int64 { return &v }
