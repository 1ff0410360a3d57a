// Package sse implements Server-Sent Events for sync and authorization
// status updates.
package sse

import (
	"strings"
	"time"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventSyncStarted is sent when a manual sync acquires the guard.
	EventSyncStarted EventType = "sync.started"
	// EventSyncCompleted is sent when bookmarks were fetched and written.
	EventSyncCompleted EventType = "sync.completed"
	// EventSyncEmpty is sent when a manual fetch found nothing new.
	EventSyncEmpty EventType = "sync.empty"
	// EventSyncFailed is sent when an attempt failed.
	EventSyncFailed EventType = "sync.failed"
	// EventSyncDeclined is sent when a manual sync was refused before
	// starting (cooldown, already running, not configured).
	EventSyncDeclined EventType = "sync.declined"

	// EventAuthCompleted is sent when tokens were obtained.
	EventAuthCompleted EventType = "auth.completed"
	// EventAuthFailed is sent when an authorization attempt was aborted.
	EventAuthFailed EventType = "auth.failed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Topic returns the part of the type before the first dot: "sync" or
// "auth". Heartbeats have no topic.
func (t EventType) Topic() string {
	if i := strings.IndexByte(string(t), '.'); i >= 0 {
		return string(t[:i])
	}
	return ""
}

// Event represents an SSE event to be sent to clients. ID is assigned by
// the Manager when the event is broadcast; heartbeats keep ID 0.
type Event struct {
	ID        uint64    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// SyncEventData is the payload of sync events.
type SyncEventData struct {
	RunID             string    `json:"run_id,omitempty"`
	Manual            bool      `json:"manual"`
	Message           string    `json:"message,omitempty"`
	Fetched           int       `json:"fetched,omitempty"`
	Written           int       `json:"written,omitempty"`
	Skipped           int       `json:"skipped,omitempty"`
	HasMore           bool      `json:"has_more,omitempty"`
	RetryAfterSeconds int       `json:"retry_after_seconds,omitempty"`
	NextRunAt         time.Time `json:"next_run_at,omitzero"`
}

// AuthEventData is the payload of auth events.
type AuthEventData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewSyncEvent creates a sync event.
func NewSyncEvent(t EventType, data SyncEventData) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewAuthEvent creates an auth event.
func NewAuthEvent(t EventType, data AuthEventData) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
		Data:      struct{}{},
	}
}
