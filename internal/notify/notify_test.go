package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_Unsubscribe(t *testing.T) {
	h := NewHub()

	var got []Event
	unsub := h.Subscribe(func(e Event) { got = append(got, e) })
	require.Equal(t, 1, h.Len())

	h.Publish(Event{Kind: KindLocalMutation, EntityIDs: []string{"e1"}})
	require.Len(t, got, 1)

	unsub()
	unsub() // idempotent
	assert.Equal(t, 0, h.Len())

	h.Publish(Event{Kind: KindLocalMutation})
	assert.Len(t, got, 1, "unsubscribed listener must not fire")
}

func TestPublish_SuppressesBackgroundNoop(t *testing.T) {
	h := NewHub()

	fired := 0
	h.Subscribe(func(Event) { fired++ })

	h.Publish(Event{Kind: KindBackgroundNoop})
	assert.Equal(t, 0, fired)

	h.Publish(Event{Kind: KindConfirmation, Cleared: 1})
	assert.Equal(t, 1, fired)

	h.Publish(Event{Kind: KindDiscard, Cleared: 1})
	assert.Equal(t, 2, fired, "a cleanup discard must reach listeners")
}

func TestPublish_ReentrantQueuedNotRecursed(t *testing.T) {
	h := NewHub()

	var order []Kind
	depth := 0
	maxDepth := 0
	h.Subscribe(func(e Event) {
		depth++
		if depth > maxDepth {
			maxDepth = depth
		}
		order = append(order, e.Kind)
		if e.Kind == KindLocalMutation {
			// Re-entrant publish from inside the callback.
			h.Publish(Event{Kind: KindConfirmation, Cleared: 1})
		}
		depth--
	})

	h.Publish(Event{Kind: KindLocalMutation})

	require.Equal(t, []Kind{KindLocalMutation, KindConfirmation}, order)
	assert.Equal(t, 1, maxDepth, "re-entrant publish must queue, not recurse")
}

func TestPublish_MultipleListeners(t *testing.T) {
	h := NewHub()

	a, b := 0, 0
	h.Subscribe(func(Event) { a++ })
	h.Subscribe(func(Event) { b++ })

	h.Publish(Event{Kind: KindLocalMutation})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
