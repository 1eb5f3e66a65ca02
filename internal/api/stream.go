package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DashboardEvent describes websocket payloads emitted to dashboard subscribers.
type DashboardEvent struct {
	Type      string    `json:"type"`
	Entry     *EntryDTO `json:"entry,omitempty"`
	Total     int64     `json:"total,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DetectorEvent is pushed to a live detector client.
type DetectorEvent struct {
	Type           string    `json:"type"`
	SessionID      string    `json:"session_id,omitempty"`
	State          *StateDTO `json:"state,omitempty"`
	Message        string    `json:"message,omitempty"`
	DebounceMs     int64     `json:"debounce_ms,omitempty"`
	MinInputLength int       `json:"min_input_length,omitempty"`
	MaxInputLength int       `json:"max_input_length,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// DashboardNotifier keeps track of dashboard websocket clients and broadcasts new entries.
type DashboardNotifier struct {
	mu        sync.Mutex
	clients   map[*wsClient]struct{}
	lastEvent *DashboardEvent
}

// NewDashboardNotifier constructs a notifier instance.
func NewDashboardNotifier() *DashboardNotifier {
	return &DashboardNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and replays the last event.
func (n *DashboardNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	last := n.lastEvent
	n.mu.Unlock()

	if last != nil {
		_ = client.writeJSON(*last)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *DashboardNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the supplied event to all registered websocket clients.
func (n *DashboardNotifier) Broadcast(event DashboardEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	snapshot := event
	n.lastEvent = &snapshot

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// Clients returns the number of connected subscribers.
func (n *DashboardNotifier) Clients() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

// LastEvent returns a copy of the most recent broadcast.
func (n *DashboardNotifier) LastEvent() *DashboardEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastEvent == nil {
		return nil
	}
	copy := *n.lastEvent
	return &copy
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
