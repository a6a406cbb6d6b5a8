package engine

import "sync"

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeTrigger delivers a value to the root pulse after a tick.
	EventTypeTrigger EventType = iota + 1
	// EventTypeRewire swaps in a rebuilt network between triggers.
	EventTypeRewire
	// EventTypeCall runs a function against the current Context between
	// triggers.
	EventTypeCall
)

// Event is one unit of work for the Driver's Run loop.
type Event struct {
	Type  EventType
	Value int

	// Rewire payload. Then, if set, runs right after the swap with the
	// previous Context.
	Context *Context
	Root    Pulse
	Then    func(prev *Context)

	// Call payload.
	Call func(ctx *Context)
}

// eventQueue is a thread-safe FIFO queue for events.
//
// Producers (stdin readers, file watchers) enqueue from their own goroutines
// while the Driver's Run loop dequeues. The signal channel lets Run wait
// without ignoring context cancellation.
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
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces signals.
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
	// Drop the slot's pointers so rewired networks can be collected.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// It is closed once the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued and wakes waiters.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
