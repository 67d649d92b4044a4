package notify

import (
	"testing"
	"time"
)

func recvEvent(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestPublishReachesAllClients(t *testing.T) {
	h := NewHub()
	h.Start()
	defer h.Stop()

	a := h.AddClient()
	b := h.AddClient()
	defer h.RemoveClient(a)
	defer h.RemoveClient(b)

	h.Publish("record-accepted", `{"id":1}`)

	for _, ch := range []chan Event{a, b} {
		evt := recvEvent(t, ch)
		if evt.Name != "record-accepted" || evt.Data != `{"id":1}` {
			t.Errorf("event = %+v", evt)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	h := NewHub()
	h.Start()
	h.Stop()
	h.Stop()
}

func TestRemoveClientStopsDelivery(t *testing.T) {
	h := NewHub()
	h.Start()
	defer h.Stop()

	ch := h.AddClient()
	h.RemoveClient(ch)
	if h.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", h.ClientCount())
	}

	// Publishing with no clients must not block.
	done := make(chan struct{})
	go func() {
		h.Publish("record-accepted", "{}")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked")
	}
}

func TestSlowClientIsSkipped(t *testing.T) {
	h := NewHub()
	h.Start()
	defer h.Stop()

	slow := h.AddClient()
	defer h.RemoveClient(slow)

	// Fill the subscriber buffer, then keep publishing; the hub must not stall.
	for i := 0; i < 200; i++ {
		h.Publish("session-update", "{}")
	}
	live := h.AddClient()
	defer h.RemoveClient(live)
	h.Publish("session-update", `{"last":true}`)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-live:
			if evt.Data == `{"last":true}` {
				return
			}
		case <-deadline:
			t.Fatal("live client never saw the final event")
		}
	}
}
