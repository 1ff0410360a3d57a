package domain

import "time"

// SyncRun is the record of one sync attempt that acquired the in-progress
// guard.
type SyncRun struct {
	ID         string    `json:"id"`
	Manual     bool      `json:"manual"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcome    string    `json:"outcome"`
	Fetched    int       `json:"fetched"`
	Written    int       `json:"written"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
}
