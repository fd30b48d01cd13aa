// Package notify fans state-change events out to downstream consumers.
//
// Dispatch is synchronous: by the time the mutating call returns, every
// listener has observed the post-mutation state. Events published from
// inside a listener callback are queued and drained by the outermost
// Publish call rather than recursing.
package notify

import "sync"

// Kind classifies a state-change event. Each kind carries an explicit
// notify decision instead of inferring intent from side data.
type Kind string

const (
	// KindLocalMutation is an optimistic local write. Always notifies.
	KindLocalMutation Kind = "local_mutation"
	// KindConfirmation is a snapshot pass that cleared at least one
	// pending change (confirmed or discarded as stale). Notifies.
	KindConfirmation Kind = "confirmation"
	// KindDiscard is a cleanup pass - stale sweep, long-term GC, or a
	// manual clear - that dropped pending changes without backend
	// contact. Notifies: the UI was showing unconfirmed data that just
	// got dropped.
	KindDiscard Kind = "discard"
	// KindBackgroundNoop is a snapshot pass that touched no pending
	// change. Suppressed: notifying here would let background polling
	// re-trigger UI refresh, which re-triggers fetch, indefinitely.
	KindBackgroundNoop Kind = "background_noop"
)

// Event describes one engine state change.
type Event struct {
	Kind      Kind
	EntityIDs []string // entities whose visible state changed
	Cleared   int      // pending changes removed during this pass
}

// Notify reports whether this event should reach listeners.
func (e Event) Notify() bool {
	return e.Kind != KindBackgroundNoop
}

// Listener receives events. Listeners run synchronously on the
// publishing goroutine and must not block.
type Listener func(Event)

// Hub is the pub-sub fan-out. Safe for concurrent use.
type Hub struct {
	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int

	// Re-entrancy guard: Publish from within a listener appends here
	// instead of recursing. The outermost Publish drains the queue.
	dispatching bool
	queue       []Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[int]Listener)}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribe is idempotent.
func (h *Hub) Subscribe(l Listener) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Len returns the number of registered listeners.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Publish delivers an event to all listeners. Suppressed kinds are
// dropped here so callers emit unconditionally and the policy stays in
// one place.
func (h *Hub) Publish(e Event) {
	if !e.Notify() {
		return
	}

	h.mu.Lock()
	if h.dispatching {
		h.queue = append(h.queue, e)
		h.mu.Unlock()
		return
	}
	h.dispatching = true
	h.mu.Unlock()

	h.dispatch(e)

	for {
		h.mu.Lock()
		if len(h.queue) == 0 {
			h.dispatching = false
			h.mu.Unlock()
			return
		}
		next := h.queue[0]
		h.queue = h.queue[1:]
		h.mu.Unlock()

		h.dispatch(next)
	}
}

func (h *Hub) dispatch(e Event) {
	h.mu.Lock()
	ls := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		ls = append(ls, l)
	}
	h.mu.Unlock()

	for _, l := range ls {
		l(e)
	}
}
