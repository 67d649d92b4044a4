// Package notify fans record and session events out to SSE subscribers,
// optionally bridged across instances through Redis pub/sub.
package notify

import (
	"sync"
	"time"
)

type Event struct {
	Name string
	Data string
}

// Hub distributes events to subscriber channels. Slow subscribers are
// skipped, never blocked on.
type Hub struct {
	mu        sync.RWMutex
	clients   map[chan Event]struct{}
	broadcast chan Event
	stopChan  chan struct{}
	stopOnce  sync.Once

	bridge *Bridge
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[chan Event]struct{}),
		broadcast: make(chan Event, 256),
		stopChan:  make(chan struct{}),
	}
}

// SetBridge attaches a Redis bridge; events published here are mirrored
// to the channel and peer events arrive as local broadcasts.
func (h *Hub) SetBridge(b *Bridge) {
	h.bridge = b
	b.deliver = h.local
}

func (h *Hub) Start() {
	go h.run()
}

// Stop closes the stop channel so the run loop sees it even while
// blocked mid-send. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
		if h.bridge != nil {
			h.bridge.Close()
		}
	})
}

func (h *Hub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.send(evt)
		case <-keepalive.C:
			h.send(Event{Name: "keepalive", Data: "ping"})
		}
	}
}

func (h *Hub) send(evt Event) {
	h.mu.RLock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// drop if full
		}
	}
	h.mu.RUnlock()
}

// Publish broadcasts locally and mirrors to the bridge when attached.
func (h *Hub) Publish(name, data string) {
	h.local(name, data)
	if h.bridge != nil {
		h.bridge.publish(name, data)
	}
}

// local enqueues for this instance's subscribers only.
func (h *Hub) local(name, data string) {
	select {
	case h.broadcast <- Event{Name: name, Data: data}:
	default:
	}
}

func (h *Hub) AddClient() chan Event {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) RemoveClient(ch chan Event) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
