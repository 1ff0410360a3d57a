package domain

import "time"

// RateState is the persisted view of the provider rate window.
type RateState struct {
	LastAPICallTime     time.Time     `json:"last_api_call_time,omitzero"`
	LastSyncAttemptTime time.Time     `json:"last_sync_attempt_time,omitzero"`
	RateWindow          time.Duration `json:"rate_window"`
	BypassEnabled       bool          `json:"bypass_enabled"`
}

// Reference returns the later of the last call and the last sync attempt.
// The zero time means nothing has been recorded.
func (r RateState) Reference() time.Time {
	if r.LastSyncAttemptTime.After(r.LastAPICallTime) {
		return r.LastSyncAttemptTime
	}
	return r.LastAPICallTime
}
