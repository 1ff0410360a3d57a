package sse

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/vaultmark/vaultmark/internal/id"
)

const clientBuffer = 32

// Client represents a connected SSE client.
type Client struct {
	ID          string
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}

	// topics limits delivery; empty means every topic.
	topics []string
}

// wants reports whether the client subscribed to e. Heartbeats always pass.
func (c *Client) wants(e Event) bool {
	topic := e.Type.Topic()
	return topic == "" || len(c.topics) == 0 || slices.Contains(c.topics, topic)
}

// Subscription selects what a new client receives.
type Subscription struct {
	// Topics filters events by EventType.Topic. Empty subscribes to all.
	Topics []string
	// LastEventID suppresses replay of events the client has already seen
	// on a previous connection.
	LastEventID uint64
}

// Manager fans status events out to connected clients. It remembers the
// latest event per topic and replays it to new clients, so a status page
// opened mid-sync still learns the last outcome.
type Manager struct {
	events            chan Event
	logger            *slog.Logger
	wg                sync.WaitGroup
	heartbeatInterval time.Duration

	mu      sync.Mutex
	clients map[string]*Client
	latest  map[string]Event
	seq     uint64

	// Shutdown state - protected by shutdownMu
	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewManager creates a new SSE Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		clients:           make(map[string]*Client),
		latest:            make(map[string]Event),
		events:            make(chan Event, 100),
		logger:            logger,
		heartbeatInterval: 30 * time.Second,
	}
}

// Start runs the broadcast loop until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	m.logger.Info("SSE manager starting")

	heartbeat := time.NewTicker(m.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-m.events:
			if !ok {
				return
			}
			m.broadcast(event)

		case <-heartbeat.C:
			m.broadcast(NewHeartbeatEvent())

		case <-ctx.Done():
			m.logger.Info("SSE manager stopping")
			m.closeAllClients()
			return
		}
	}
}

// Shutdown stops accepting new events, drains queued ones, and closes all
// clients.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownMu.Lock()
	if m.shutdown {
		m.shutdownMu.Unlock()
		return nil
	}
	m.shutdown = true
	close(m.events)
	m.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		for event := range m.events {
			m.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("SSE event drain timeout, some events may be lost")
	}

	m.wg.Wait()
	m.closeAllClients()

	m.logger.Info("SSE manager shutdown complete")
	return nil
}

// broadcast numbers the event, remembers it for replay, and offers it to
// every subscribed client without blocking.
func (m *Manager) broadcast(event Event) {
	var delivered, dropped int

	m.mu.Lock()
	defer m.mu.Unlock()

	if topic := event.Type.Topic(); topic != "" {
		m.seq++
		event.ID = m.seq
		m.latest[topic] = event
	}

	for _, client := range m.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.EventChan <- event:
			delivered++
		default:
			dropped++
			m.logger.Warn("dropped event for slow client",
				slog.String("client_id", client.ID),
				slog.String("event_type", string(event.Type)))
		}
	}

	if event.Type != EventHeartbeat {
		m.logger.Debug("event broadcast",
			slog.String("event_type", string(event.Type)),
			slog.Uint64("event_id", event.ID),
			slog.Group("stats",
				slog.Int("delivered", delivered),
				slog.Int("dropped", dropped)))
	}
}

// Connect registers a client and queues the latest remembered event of
// each subscribed topic, oldest first.
func (m *Manager) Connect(sub Subscription) (*Client, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		EventChan:   make(chan Event, clientBuffer),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
		topics:      sub.Topics,
	}

	m.mu.Lock()
	replay := make([]Event, 0, len(m.latest))
	for _, e := range m.latest {
		if e.ID > sub.LastEventID && client.wants(e) {
			replay = append(replay, e)
		}
	}
	slices.SortFunc(replay, func(a, b Event) int { return cmp.Compare(a.ID, b.ID) })
	for _, e := range replay {
		client.EventChan <- e
	}
	m.clients[client.ID] = client
	total := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("SSE client connected",
		slog.String("client_id", clientID),
		slog.Int("replayed", len(replay)),
		slog.Int("total_clients", total))
	return client, nil
}

// Disconnect removes a client and closes its channels.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	total := len(m.clients)
	m.mu.Unlock()

	close(client.Done)
	close(client.EventChan)

	m.logger.Info("SSE client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(client.ConnectedAt)),
		slog.Int("total_clients", total))
}

// Emit queues an event for broadcasting. Events emitted after Shutdown
// are dropped.
func (m *Manager) Emit(event Event) {
	// The read lock is held through the send so Shutdown cannot close the
	// channel underneath it.
	m.shutdownMu.RLock()
	defer m.shutdownMu.RUnlock()

	if m.shutdown {
		return
	}

	select {
	case m.events <- event:
	default:
		m.logger.Error("SSE event channel full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		close(client.Done)
		close(client.EventChan)
	}
	m.clients = make(map[string]*Client)
}
