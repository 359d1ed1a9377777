// Package events provides a publish/subscribe bus for operational
// observability. Agent runs, the session controller, and the ingest
// pipeline publish; the WebSocket stream handler subscribes. The bus is
// nil-safe: Publish on a nil *Bus is a no-op, so components need no
// guard checks.
package events

import (
	"sync"
	"time"

	"github.com/Dizzy12138/bio-agent/internal/steps"
)

// Source constants identify the publishing component.
const (
	SourceAgent   = "agent"
	SourceSession = "session"
	SourceIngest  = "ingest"
)

// Kind constants describe the event type within a source.
const (
	// KindRunStart signals the beginning of an agent run.
	// Data: conversation_id, run_id, message_len.
	KindRunStart = "run_start"
	// KindStep carries one thinking step from a live run.
	// Step is set; Data: conversation_id, run_id.
	KindStep = "step"
	// KindRunComplete signals the end of an agent run.
	// Data: conversation_id, run_id, elapsed_ms, cancelled, exhausted,
	// failed.
	KindRunComplete = "run_complete"
	// KindDocumentIngested signals a knowledge document import.
	// Data: source, chunks.
	KindDocumentIngested = "document_ingested"
)

// Event is one operational event.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Source    string         `json:"source"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data,omitempty"`

	// Step is set on KindStep events.
	Step *steps.Step `json:"step,omitempty"`
}

// Bus is a non-blocking broadcast bus. Subscribers receive on buffered
// channels; a slow subscriber misses events rather than stalling a run.
// Delivery is weaker than the in-run step stream, which is synchronous
// and lossless. The bus serves dashboards, not run results.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
	byChan map[<-chan Event]int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subs:   make(map[int]chan Event),
		byChan: make(map[<-chan Event]int),
	}
}

// Publish delivers e to every subscriber whose buffer has room. Safe on
// a nil receiver.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Full buffer: drop for this subscriber.
		}
	}
}

// Subscribe registers a new subscriber with the given buffer size and
// returns its receive channel. Callers must Unsubscribe when done.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.byChan[ch] = id
	return ch
}

// Unsubscribe removes a subscription and closes its channel. No-op for
// a channel that is not (or no longer) subscribed.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.byChan[ch]
	if !ok {
		return
	}
	close(b.subs[id])
	delete(b.subs, id)
	delete(b.byChan, ch)
}

// SubscriberCount returns the number of active subscribers. Safe on a
// nil receiver.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
