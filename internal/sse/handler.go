package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// reconnectDelay is the retry hint sent to EventSource clients.
	reconnectDelay = 5 * time.Second
	writeDeadline  = 60 * time.Second
)

// Handler streams status events at GET /api/v1/sync/events.
//
// Query parameter "topics" (comma separated, e.g. "sync,auth") narrows the
// stream. A Last-Event-ID header suppresses replay of already seen events.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

// ServeHTTP handles the SSE connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only accept GET requests.
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Client may already be gone.
	if r.Context().Err() != nil {
		return
	}

	// Resolve the subscription from the query and resume header.
	sub := Subscription{Topics: parseTopics(r.URL.Query().Get("topics"))}
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			sub.LastEventID = n
		}
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable proxy buffering

	// Flush headers immediately.
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Register client. Replay of the latest event per topic happens here.
	client, err := h.manager.Connect(sub)
	if err != nil {
		h.logger.Error("failed to register SSE client", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client.ID)

	log := h.logger.With(slog.String("client_id", client.ID))

	// Tell EventSource how long to wait before reconnecting.
	if _, err := fmt.Fprintf(w, "retry: %d\n", reconnectDelay.Milliseconds()); err != nil {
		return
	}
	// Send initial connection message.
	hello := Event{Type: "connected", Timestamp: time.Now(), Data: map[string]any{
		"client_id": client.ID,
		"topics":    sub.Topics,
	}}
	if err := h.sendEvent(w, rc, hello); err != nil {
		log.Warn("failed to send initial connection message", slog.String("error", err.Error()))
		return
	}

	// Heartbeats come from the manager's broadcast loop.
	for {
		select {
		case event, ok := <-client.EventChan:
			// Channel closed on disconnect.
			if !ok {
				return
			}
			if err := h.sendEvent(w, rc, event); err != nil {
				// Client disconnect is normal.
				log.Debug("client disconnected during send")
				return
			}

		case <-client.Done:
			// Manager closed this client (server shutdown).
			log.Debug("client closed by manager")
			return

		case <-r.Context().Done():
			// Client disconnected.
			return
		}
	}
}

// sendEvent writes one SSE frame and flushes it. Numbered events carry an
// id line so browsers resume with Last-Event-ID.
func (h *Handler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if event.ID > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", event.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
		return err
	}
	// Flush so the client receives the event now.
	if err := rc.Flush(); err != nil {
		return err
	}

	// Reset the deadline after each write. Not every ResponseWriter supports deadlines.
	if err := rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}
	return nil
}

// parseTopics splits a comma separated topic list, dropping blanks.
func parseTopics(raw string) []string {
	var topics []string
	for t := range strings.SplitSeq(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}
