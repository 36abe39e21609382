package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func TestHub_FanOut(t *testing.T) {
	hub := NewHub()
	a, cancelA := hub.Subscribe(4)
	defer cancelA()
	b, cancelB := hub.Subscribe(4)
	defer cancelB()
	assert.Equal(t, 2, hub.SubscriberCount())

	hub.Publish(Event{Type: EventQRCode, SessionName: "main", QRCode: "data:image/png;base64,AA"})

	for _, ch := range []<-chan Event{a, b} {
		ev := receive(t, ch)
		assert.Equal(t, EventQRCode, ev.Type)
		assert.Equal(t, "main", ev.SessionName)
		assert.False(t, ev.Timestamp.IsZero(), "timestamp is stamped on publish")
	}
}

func TestHub_KeepsGivenTimestamp(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	hub.Publish(Event{Type: EventStatusUpdate, Timestamp: at})
	assert.Equal(t, at, receive(t, ch).Timestamp)
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	slow, cancel := hub.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(Event{Type: EventStatusUpdate, SessionName: "main"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, slow, 1)
}

func TestHub_CancelIsIdempotent(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(0)

	cancel()
	cancel()
	assert.Zero(t, hub.SubscriberCount())

	_, ok := <-ch
	assert.False(t, ok)

	// publishing after cancel must not panic on the closed channel
	hub.Publish(Event{Type: EventStatusUpdate})
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(0)

	hub.Close()
	hub.Close()

	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	late, lateCancel := hub.Subscribe(0)
	defer lateCancel()
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed hub yields a closed channel")
	assert.Zero(t, hub.SubscriberCount())
}
