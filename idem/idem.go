// Package idem deduplicates concurrent and closely-spaced retries that
// carry the same idempotency key. The first caller for a key wins a
// ticket and performs the work; followers block until the winner
// publishes an outcome, then replay it verbatim.
package idem

import (
	"sync"
	"time"
)

// Outcome is the replayable result of a completed submission.
type Outcome struct {
	Status int
	Body   []byte
}

type entry struct {
	done      chan struct{}
	outcome   Outcome
	completed bool
	expiresAt time.Time
}

// Guard tracks in-flight and recently-completed keys. Completed outcomes
// are replayed inside the retention window; after that the key is fresh
// again and a retry performs real work.
type Guard struct {
	mu      sync.Mutex
	entries map[string]*entry

	window      time.Duration
	waitTimeout time.Duration

	stop chan struct{}
	once sync.Once
}

// NewGuard builds a guard with the given retention window and follower
// wait ceiling, and starts its sweep loop.
func NewGuard(window, waitTimeout time.Duration) *Guard {
	g := &Guard{
		entries:     make(map[string]*entry),
		window:      window,
		waitTimeout: waitTimeout,
		stop:        make(chan struct{}),
	}
	go g.sweep()
	return g
}

// Ticket is held by the winning caller for a key. Exactly one of
// Complete or Abandon must be called.
type Ticket struct {
	g   *Guard
	key string
	e   *entry
}

// Result of an Acquire call.
type Result int

const (
	// Won means the caller owns the key and must do the work.
	Won Result = iota
	// Replayed means a completed outcome was returned.
	Replayed
	// TimedOut means the winner did not finish within the wait ceiling.
	TimedOut
)

// Acquire claims key or waits for its in-flight winner. Keys without an
// idempotency header pass through untouched: the empty key always wins
// a throwaway ticket.
func (g *Guard) Acquire(key string) (Result, Outcome, *Ticket) {
	if key == "" {
		return Won, Outcome{}, &Ticket{g: g, key: ""}
	}

	g.mu.Lock()
	e, ok := g.entries[key]
	if ok && e.completed && time.Now().After(e.expiresAt) {
		delete(g.entries, key)
		ok = false
	}
	if !ok {
		e = &entry{done: make(chan struct{})}
		g.entries[key] = e
		g.mu.Unlock()
		return Won, Outcome{}, &Ticket{g: g, key: key, e: e}
	}
	if e.completed {
		out := e.outcome
		g.mu.Unlock()
		return Replayed, out, nil
	}
	done := e.done
	g.mu.Unlock()

	select {
	case <-done:
		g.mu.Lock()
		out := e.outcome
		completed := e.completed
		g.mu.Unlock()
		if completed {
			return Replayed, out, nil
		}
		// Winner abandoned; the retry should do its own work.
		return g.Acquire(key)
	case <-time.After(g.waitTimeout):
		return TimedOut, Outcome{}, nil
	}
}

// Complete publishes the winner's outcome and wakes all followers.
func (t *Ticket) Complete(out Outcome) {
	if t.key == "" {
		return
	}
	t.g.mu.Lock()
	t.e.outcome = out
	t.e.completed = true
	t.e.expiresAt = time.Now().Add(t.g.window)
	close(t.e.done)
	t.g.mu.Unlock()
}

// Abandon releases the key without recording an outcome, for winners
// that failed before producing a replayable response.
func (t *Ticket) Abandon() {
	if t.key == "" {
		return
	}
	t.g.mu.Lock()
	if cur, ok := t.g.entries[t.key]; ok && cur == t.e {
		delete(t.g.entries, t.key)
	}
	close(t.e.done)
	t.g.mu.Unlock()
}

// Close stops the sweep loop.
func (g *Guard) Close() {
	g.once.Do(func() { close(g.stop) })
}

func (g *Guard) sweep() {
	ticker := time.NewTicker(g.window)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			now := time.Now()
			g.mu.Lock()
			for k, e := range g.entries {
				if e.completed && now.After(e.expiresAt) {
					delete(g.entries, k)
				}
			}
			g.mu.Unlock()
		}
	}
}
