// Package broadcast fans complaint lifecycle events out to connected
// dashboard observers. Delivery is best-effort and at-most-once: an observer
// whose send fails is dropped, never retried. Liveness rides on a ping
// cycle; an observer that misses one full cycle is terminated on the next.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"
)

// Dashboard event types.
const (
	TypeConnectionEstablished = "CONNECTION_ESTABLISHED"
	TypeSubscriptionConfirmed = "SUBSCRIPTION_CONFIRMED"
	TypeNewIssue              = "NEW_ISSUE"
	TypeWardNewIssue          = "WARD_NEW_ISSUE"
	TypeIssueUpdated          = "ISSUE_UPDATED"
	TypeNotification          = "NOTIFICATION"
	TypeSystemError           = "SYSTEM_ERROR"
	TypeBotStatus             = "BOT_STATUS"
	TypePong                  = "PONG"
	TypeStatusResponse        = "STATUS_RESPONSE"
)

// Event is a single dashboard broadcast. WardID scopes delivery: nil
// reaches every observer, a value reaches only observers whose filter is
// unset or equal.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	WardID    *int      `json:"wardId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Conn is the transport side of one observer connection. The dashboard
// wires gorilla/websocket connections in; tests use fakes.
type Conn interface {
	// Send delivers one JSON-encoded event.
	Send(data []byte) error
	// Ping sends a liveness probe.
	Ping() error
	// Close terminates the connection.
	Close() error
}

// Observer is one live dashboard connection.
type Observer struct {
	ID          string
	ConnectedAt time.Time

	conn       Conn
	wardFilter *int
	alive      bool
}

// WardFilter returns the observer's current ward filter (nil = all wards).
func (o *Observer) WardFilter() *int { return o.wardFilter }

// Hub maintains the observer set and publishes events to it.
type Hub struct {
	mu           sync.RWMutex
	observers    map[string]*Observer
	pingInterval time.Duration
	now          func() time.Time
}

// NewHub creates a Hub. pingInterval of 0 defaults to 30 seconds.
func NewHub(pingInterval time.Duration) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Hub{
		observers:    make(map[string]*Observer),
		pingInterval: pingInterval,
		now:          time.Now,
	}
}

// Register adds a connection as a new observer and sends it the welcome
// event. Returns the observer for the caller's pong/message plumbing.
func (h *Hub) Register(conn Conn) *Observer {
	obs := &Observer{
		ID:          fmt.Sprintf("client_%d_%06d", h.now().UnixMilli(), rand.Intn(1000000)),
		ConnectedAt: h.now(),
		conn:        conn,
		alive:       true,
	}
	h.mu.Lock()
	h.observers[obs.ID] = obs
	total := len(h.observers)
	h.mu.Unlock()

	log.Printf("broadcast: observer %s connected (total: %d)", obs.ID, total)

	h.sendTo(obs, Event{
		Type:      TypeConnectionEstablished,
		Data:      map[string]string{"clientId": obs.ID},
		Timestamp: h.now(),
	})
	return obs
}

// Unregister removes an observer and closes its connection.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	obs, ok := h.observers[id]
	if ok {
		delete(h.observers, id)
	}
	h.mu.Unlock()
	if ok {
		obs.conn.Close()
		log.Printf("broadcast: observer %s disconnected", id)
	}
}

// Publish sends the event to every observer the event's ward scope matches
// and returns how many deliveries succeeded. Observers whose send fails are
// removed.
func (h *Hub) Publish(evt Event) int {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = h.now()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("broadcast: marshal %s event: %v", evt.Type, err)
		return 0
	}

	// Snapshot under the read lock; sends happen outside it so a slow
	// observer cannot block connects and disconnects.
	h.mu.RLock()
	targets := make([]*Observer, 0, len(h.observers))
	for _, obs := range h.observers {
		if matches(obs, evt.WardID) {
			targets = append(targets, obs)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, obs := range targets {
		if err := obs.conn.Send(payload); err != nil {
			log.Printf("broadcast: send to %s failed, dropping: %v", obs.ID, err)
			h.Unregister(obs.ID)
			continue
		}
		sent++
	}
	return sent
}

// matches applies the ward-filter rule: an unscoped event reaches everyone;
// a ward-scoped event reaches unfiltered observers and matching filters.
func matches(obs *Observer, wardID *int) bool {
	if wardID == nil || obs.wardFilter == nil {
		return true
	}
	return *obs.wardFilter == *wardID
}

// clientMessage is an inbound control message from a dashboard connection.
type clientMessage struct {
	Type   string `json:"type"`
	WardID *int   `json:"wardId"`
}

// HandleMessage processes an inbound message from an observer:
// SUBSCRIBE_WARD, UNSUBSCRIBE_WARD, PING, and GET_STATUS.
func (h *Hub) HandleMessage(id string, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("broadcast: parse message from %s: %v", id, err)
		return
	}

	h.mu.Lock()
	obs, ok := h.observers[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	switch msg.Type {
	case "SUBSCRIBE_WARD":
		obs.wardFilter = msg.WardID
	case "UNSUBSCRIBE_WARD":
		obs.wardFilter = nil
	case "PING":
		obs.alive = true
	}
	filter := obs.wardFilter
	count := len(h.observers)
	h.mu.Unlock()

	switch msg.Type {
	case "SUBSCRIBE_WARD", "UNSUBSCRIBE_WARD":
		h.sendTo(obs, Event{
			Type:      TypeSubscriptionConfirmed,
			Data:      map[string]any{"wardId": filter},
			Timestamp: h.now(),
		})
	case "PING":
		h.sendTo(obs, Event{Type: TypePong, Timestamp: h.now()})
	case "GET_STATUS":
		h.sendTo(obs, Event{
			Type: TypeStatusResponse,
			Data: map[string]any{
				"connectedClients": count,
				"wardFilter":       filter,
			},
			Timestamp: h.now(),
		})
	}
}

// MarkAlive records a liveness signal (websocket pong) from an observer.
func (h *Hub) MarkAlive(id string) {
	h.mu.Lock()
	if obs, ok := h.observers[id]; ok {
		obs.alive = true
	}
	h.mu.Unlock()
}

// Count returns the number of connected observers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Run drives the heartbeat loop until ctx is done: each cycle terminates
// observers that failed to answer the previous cycle's ping, then pings the
// rest.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pingCycle()
		}
	}
}

// pingCycle terminates unresponsive observers and probes the rest.
func (h *Hub) pingCycle() {
	h.mu.Lock()
	var dead []*Observer
	var live []*Observer
	for _, obs := range h.observers {
		if !obs.alive {
			dead = append(dead, obs)
			delete(h.observers, obs.ID)
			continue
		}
		obs.alive = false
		live = append(live, obs)
	}
	h.mu.Unlock()

	for _, obs := range dead {
		log.Printf("broadcast: terminating unresponsive observer %s", obs.ID)
		obs.conn.Close()
	}
	for _, obs := range live {
		if err := obs.conn.Ping(); err != nil {
			log.Printf("broadcast: ping %s failed, dropping: %v", obs.ID, err)
			h.Unregister(obs.ID)
		}
	}
}

// sendTo delivers one event to a single observer, dropping it on failure.
func (h *Hub) sendTo(obs *Observer, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := obs.conn.Send(payload); err != nil {
		h.Unregister(obs.ID)
	}
}
