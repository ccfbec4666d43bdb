package devfeed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/philjs-dev/philjs/pkg/isr"
)

func dialFeed(t *testing.T, f *Feed) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, f *Feed, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", f.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	f := New()
	conn := dialFeed(t, f)
	waitForClients(t, f, 1)

	sent := isr.Event{
		Type: isr.EventRevalidateSuccess,
		Path: "/blog/post-1",
		Time: time.Now().UTC(),
	}
	f.Broadcast(sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got isr.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != isr.EventRevalidateSuccess {
		t.Errorf("Type = %q, want revalidate:success", got.Type)
	}
	if got.Path != "/blog/post-1" {
		t.Errorf("Path = %q", got.Path)
	}
}

func TestSinkBroadcasts(t *testing.T) {
	f := New()
	conn := dialFeed(t, f)
	waitForClients(t, f, 1)

	sink := f.Sink()
	sink(isr.Event{Type: isr.EventCacheMiss, Path: "/new", Time: time.Now()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got isr.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != isr.EventCacheMiss {
		t.Errorf("Type = %q, want cache:miss", got.Type)
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	f := New()
	dialFeed(t, f)
	waitForClients(t, f, 1)

	f.Close()
	if got := f.ClientCount(); got != 0 {
		t.Errorf("ClientCount = %d after Close, want 0", got)
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	f := New()
	// Must not panic or block.
	f.Broadcast(isr.Event{Type: isr.EventCacheHit, Path: "/a", Time: time.Now()})
}
