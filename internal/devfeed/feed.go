// Package devfeed streams ISR lifecycle events to connected development
// clients over WebSocket. A dev tool subscribing to /_philjs/events sees
// cache hits, misses, revalidations and tag invalidations as they happen.
package devfeed

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/philjs-dev/philjs/pkg/isr"
)

// Feed manages WebSocket connections for the event stream.
type Feed struct {
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
}

// New creates an event feed.
func New() *Feed {
	return &Feed{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in dev
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection.
func (f *Feed) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := f.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	f.mu.Lock()
	f.clients[conn] = true
	f.mu.Unlock()

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	f.mu.Lock()
	delete(f.clients, conn)
	f.mu.Unlock()
	conn.Close()
}

// Sink returns an isr.EventSink that broadcasts every event to connected
// clients. Wire it into the revalidator, tag manager and ISR handler.
func (f *Feed) Sink() isr.EventSink {
	return func(ev isr.Event) {
		f.Broadcast(ev)
	}
}

// Broadcast sends an event to all connected clients.
func (f *Feed) Broadcast(ev isr.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	f.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(f.clients))
	for client := range f.clients {
		clients = append(clients, client)
	}
	f.mu.RUnlock()

	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			f.mu.Lock()
			delete(f.clients, client)
			f.mu.Unlock()
			client.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (f *Feed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Close closes all client connections.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for client := range f.clients {
		client.Close()
		delete(f.clients, client)
	}
}
