package engine

import (
	"sync"

	"github.com/sksthrs/mekiku/internal/ir"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeInbound is a payload received from a peer.
	EventTypeInbound EventType = iota + 1
	// EventTypeAction is an action of the local captioner.
	EventTypeAction
)

// Inbound is a raw payload together with the transport metadata.
type Inbound struct {
	SenderID   ir.SenderID
	ReceivedAt ir.Timestamp
	Payload    []byte
}

// Event wraps inbound payloads and local actions for the event queue.
type Event struct {
	Type    EventType
	Inbound *Inbound
	Action  *Action
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so a burst from the transport never blocks the
// network goroutine. The signal channel lets Run wait with a context.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// non-blocking: the buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
// Returns (Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// release the payload for GC; the backing array outlives the slot
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// The channel is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
