package websocket

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	hub := NewHub(zerolog.New(&bytes.Buffer{}))
	go hub.Run()
	return hub
}

func newTestClient(hub *Hub, id string, size int) *Client {
	return &Client{id: id, hub: hub, queue: make(chan []byte, size)}
}

func receive(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg := <-c.queue:
		return string(msg)
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("%s did not receive a snapshot", c.id)
		return ""
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(zerolog.New(&bytes.Buffer{}))

	if hub.viewers == nil {
		t.Error("expected viewers map to be initialized")
	}
	if hub.snapshots == nil || hub.join == nil || hub.leave == nil {
		t.Error("expected hub channels to be initialized")
	}
	if hub.LatestSnapshot() != nil {
		t.Error("expected no snapshot before the first broadcast")
	}
}

func TestHubJoinLeave(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub, "viewer", 1)

	hub.join <- client
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after join, got %d", hub.ClientCount())
	}

	hub.leave <- client
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after leave, got %d", hub.ClientCount())
	}
	if _, open := <-client.queue; open {
		t.Error("expected queue to be closed after leave")
	}

	// A second leave for the same client is ignored
	hub.leave <- client
	time.Sleep(10 * time.Millisecond)
}

func TestHubBroadcastToEveryViewer(t *testing.T) {
	hub := newTestHub()
	first := newTestClient(hub, "first", 4)
	second := newTestClient(hub, "second", 4)

	hub.join <- first
	hub.join <- second
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast([]byte(`{"type":"dashboard","state":"ready"}`))

	for _, c := range []*Client{first, second} {
		if got := receive(t, c); got != `{"type":"dashboard","state":"ready"}` {
			t.Errorf("%s got %s", c.id, got)
		}
	}
}

func TestHubReplaysLatestSnapshotToNewViewer(t *testing.T) {
	hub := newTestHub()

	hub.Broadcast([]byte(`{"type":"dashboard","state":"empty"}`))
	hub.Broadcast([]byte(`{"type":"dashboard","state":"ready"}`))
	time.Sleep(10 * time.Millisecond)

	if got := string(hub.LatestSnapshot()); got != `{"type":"dashboard","state":"ready"}` {
		t.Errorf("unexpected latest snapshot %s", got)
	}

	late := newTestClient(hub, "late", 1)
	hub.join <- late

	if got := receive(t, late); got != `{"type":"dashboard","state":"ready"}` {
		t.Errorf("unexpected replay %s", got)
	}
}

func TestHubDropsLaggingViewer(t *testing.T) {
	hub := newTestHub()
	lagging := newTestClient(hub, "lagging", 0) // never read
	healthy := newTestClient(hub, "healthy", 4)

	hub.join <- lagging
	hub.join <- healthy
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast([]byte("snapshot"))
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Errorf("expected lagging viewer to be dropped, got %d clients", hub.ClientCount())
	}
	if got := receive(t, healthy); got != "snapshot" {
		t.Errorf("healthy viewer got %s", got)
	}
}

func TestClientNewestSnapshot(t *testing.T) {
	c := newTestClient(nil, "coalesce", 4)
	c.queue <- []byte("2")
	c.queue <- []byte("3")

	if got := string(c.newest([]byte("1"))); got != "3" {
		t.Errorf("expected newest snapshot 3, got %s", got)
	}
	if len(c.queue) != 0 {
		t.Errorf("expected queue to be drained, %d left", len(c.queue))
	}

	// Nothing queued behind the current snapshot
	if got := string(c.newest([]byte("4"))); got != "4" {
		t.Errorf("expected 4, got %s", got)
	}
}
