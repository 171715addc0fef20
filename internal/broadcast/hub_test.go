package broadcast

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeConn records everything sent to it and can be told to fail.
type fakeConn struct {
	mu      sync.Mutex
	sent    [][]byte
	pings   int
	closed  bool
	sendErr error
	pingErr error
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.sent = append(c.sent, cp)
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return c.pingErr
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events(t *testing.T) []Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, 0, len(c.sent))
	for _, raw := range c.sent {
		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			t.Fatalf("unmarshal sent event: %v", err)
		}
		out = append(out, evt)
	}
	return out
}

func (c *fakeConn) lastType(t *testing.T) string {
	t.Helper()
	evts := c.events(t)
	if len(evts) == 0 {
		t.Fatal("no events sent")
	}
	return evts[len(evts)-1].Type
}

func intPtr(v int) *int { return &v }

func TestRegisterSendsConnectionEstablished(t *testing.T) {
	hub := NewHub(time.Minute)
	conn := &fakeConn{}

	obs := hub.Register(conn)

	if obs.ID == "" {
		t.Fatal("expected observer ID to be assigned")
	}
	if hub.Count() != 1 {
		t.Fatalf("expected 1 observer, got %d", hub.Count())
	}
	if got := conn.lastType(t); got != TypeConnectionEstablished {
		t.Fatalf("expected %s, got %s", TypeConnectionEstablished, got)
	}
}

func TestPublishReachesAllObservers(t *testing.T) {
	hub := NewHub(time.Minute)
	a, b := &fakeConn{}, &fakeConn{}
	hub.Register(a)
	hub.Register(b)

	sent := hub.Publish(Event{Type: TypeNewIssue, Data: map[string]string{"id": "RSP123456001"}})

	if sent != 2 {
		t.Fatalf("expected 2 deliveries, got %d", sent)
	}
	if a.lastType(t) != TypeNewIssue || b.lastType(t) != TypeNewIssue {
		t.Fatal("expected both observers to receive NEW_ISSUE")
	}
}

func TestWardScopedPublish(t *testing.T) {
	hub := NewHub(time.Minute)
	unfiltered := &fakeConn{}
	ward15 := &fakeConn{}
	ward12 := &fakeConn{}
	hub.Register(unfiltered)
	o15 := hub.Register(ward15)
	o12 := hub.Register(ward12)

	hub.HandleMessage(o15.ID, []byte(`{"type":"SUBSCRIBE_WARD","wardId":15}`))
	hub.HandleMessage(o12.ID, []byte(`{"type":"SUBSCRIBE_WARD","wardId":12}`))

	sent := hub.Publish(Event{Type: TypeWardNewIssue, WardID: intPtr(15)})

	if sent != 2 {
		t.Fatalf("expected 2 deliveries (unfiltered + ward 15), got %d", sent)
	}
	if unfiltered.lastType(t) != TypeWardNewIssue {
		t.Fatal("unfiltered observer should receive ward-scoped events")
	}
	if ward15.lastType(t) != TypeWardNewIssue {
		t.Fatal("matching ward filter should receive the event")
	}
	if ward12.lastType(t) == TypeWardNewIssue {
		t.Fatal("non-matching ward filter should not receive the event")
	}
}

func TestSubscribeAndUnsubscribeConfirmed(t *testing.T) {
	hub := NewHub(time.Minute)
	conn := &fakeConn{}
	obs := hub.Register(conn)

	hub.HandleMessage(obs.ID, []byte(`{"type":"SUBSCRIBE_WARD","wardId":7}`))
	if conn.lastType(t) != TypeSubscriptionConfirmed {
		t.Fatalf("expected %s after subscribe", TypeSubscriptionConfirmed)
	}
	if obs.WardFilter() == nil || *obs.WardFilter() != 7 {
		t.Fatal("expected ward filter 7")
	}

	hub.HandleMessage(obs.ID, []byte(`{"type":"UNSUBSCRIBE_WARD"}`))
	if obs.WardFilter() != nil {
		t.Fatal("expected ward filter cleared after unsubscribe")
	}
}

func TestPingMessageAnsweredWithPong(t *testing.T) {
	hub := NewHub(time.Minute)
	conn := &fakeConn{}
	obs := hub.Register(conn)

	hub.HandleMessage(obs.ID, []byte(`{"type":"PING"}`))

	if conn.lastType(t) != TypePong {
		t.Fatalf("expected %s, got %s", TypePong, conn.lastType(t))
	}
}

func TestGetStatusReportsObserverCount(t *testing.T) {
	hub := NewHub(time.Minute)
	conn := &fakeConn{}
	obs := hub.Register(conn)
	hub.Register(&fakeConn{})

	hub.HandleMessage(obs.ID, []byte(`{"type":"GET_STATUS"}`))

	evts := conn.events(t)
	last := evts[len(evts)-1]
	if last.Type != TypeStatusResponse {
		t.Fatalf("expected %s, got %s", TypeStatusResponse, last.Type)
	}
	data, ok := last.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data shape: %T", last.Data)
	}
	if got := data["connectedClients"].(float64); got != 2 {
		t.Fatalf("expected connectedClients 2, got %v", got)
	}
}

func TestSendFailureDropsObserver(t *testing.T) {
	hub := NewHub(time.Minute)
	good := &fakeConn{}
	bad := &fakeConn{}
	hub.Register(good)
	hub.Register(bad)
	bad.sendErr = errors.New("connection reset")

	sent := hub.Publish(Event{Type: TypeNotification})

	if sent != 1 {
		t.Fatalf("expected 1 delivery, got %d", sent)
	}
	if hub.Count() != 1 {
		t.Fatalf("expected failed observer to be dropped, count %d", hub.Count())
	}
	if !bad.closed {
		t.Fatal("expected dropped observer's connection to be closed")
	}
}

func TestPingCycleTerminatesUnresponsiveObservers(t *testing.T) {
	hub := NewHub(time.Minute)
	responsive := &fakeConn{}
	silent := &fakeConn{}
	rObs := hub.Register(responsive)
	hub.Register(silent)

	// First cycle marks everyone not-alive and pings them.
	hub.pingCycle()
	if hub.Count() != 2 {
		t.Fatalf("no one should be dropped on the first cycle, count %d", hub.Count())
	}
	if responsive.pings != 1 || silent.pings != 1 {
		t.Fatal("expected both observers to be pinged")
	}

	// Only one answers.
	hub.MarkAlive(rObs.ID)

	hub.pingCycle()
	if hub.Count() != 1 {
		t.Fatalf("expected silent observer terminated, count %d", hub.Count())
	}
	if !silent.closed {
		t.Fatal("expected silent observer's connection closed")
	}
	if responsive.closed {
		t.Fatal("responsive observer should survive")
	}
}

func TestPingFailureDropsObserver(t *testing.T) {
	hub := NewHub(time.Minute)
	conn := &fakeConn{pingErr: errors.New("broken pipe")}
	hub.Register(conn)

	hub.pingCycle()

	if hub.Count() != 0 {
		t.Fatalf("expected observer dropped after ping failure, count %d", hub.Count())
	}
}

func TestUnregisterClosesConnection(t *testing.T) {
	hub := NewHub(time.Minute)
	conn := &fakeConn{}
	obs := hub.Register(conn)

	hub.Unregister(obs.ID)

	if hub.Count() != 0 {
		t.Fatalf("expected 0 observers, got %d", hub.Count())
	}
	if !conn.closed {
		t.Fatal("expected connection closed on unregister")
	}

	// Unregistering twice is harmless.
	hub.Unregister(obs.ID)
}

func TestPublishTimestampsEvents(t *testing.T) {
	hub := NewHub(time.Minute)
	conn := &fakeConn{}
	hub.Register(conn)

	hub.Publish(Event{Type: TypeBotStatus})

	evts := conn.events(t)
	last := evts[len(evts)-1]
	if last.Timestamp.IsZero() {
		t.Fatal("expected Publish to stamp the event")
	}
}
