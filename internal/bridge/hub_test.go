package bridge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/taskheatmap/internal/tracker"
)

func TestHubBroadcasts(t *testing.T) {
	h := NewHub(zerolog.Nop())
	idA, a := h.Subscribe()
	_, b := h.Subscribe()
	assert.NotEqual(t, uuid.Nil, idA)
	assert.Equal(t, 2, h.Subscribers())

	h.StateChanged(tracker.Attribution{Day: "2024-06-02", Domain: "example.com", Seconds: 5})

	for _, ch := range []<-chan Message{a, b} {
		msg := <-ch
		assert.Equal(t, EventStateUpdated, msg.Event)
		var got tracker.Attribution
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "example.com", got.Domain)
	}

	h.DailySummary(tracker.Summary{Day: "2024-06-02", Label: "Jun 2, 2024"})
	msg := <-a
	assert.Equal(t, EventDailySummary, msg.Event)
	assert.Contains(t, string(msg.Data), `"label":"Jun 2, 2024"`)
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(zerolog.Nop())
	id, ch := h.Subscribe()
	h.Unsubscribe(id)
	h.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	h := NewHub(zerolog.Nop())
	_, ch := h.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			h.StateChanged(tracker.Attribution{Seconds: int64(i + 1)})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestHubClose(t *testing.T) {
	h := NewHub(zerolog.Nop())
	_, ch := h.Subscribe()
	h.Close()

	_, ok := <-ch
	assert.False(t, ok)

	_, late := h.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())
}
