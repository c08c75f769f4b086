package realtime

import (
	"testing"
	"time"

	"github.com/safetrack/safetrack-go/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainConnected reads and verifies the initial connected frame.
func drainConnected(t *testing.T, client *Client) {
	t.Helper()
	select {
	case frame := <-client.Frames:
		require.Equal(t, events.TypeConnected, frame.Type)
	case <-time.After(time.Second):
		t.Fatal("no connected frame received")
	}
}

func TestSubscribeSendsConnectedFrameFirst(t *testing.T) {
	t.Parallel()
	b := NewBroker()

	client := b.Subscribe("child-1")
	require.NotEmpty(t, client.ID)

	frame := <-client.Frames
	assert.Equal(t, events.TypeConnected, frame.Type)
	data, ok := frame.Data.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "child-1", data["child_id"])
	assert.Equal(t, client.ID, data["client_id"])
}

func TestPublishReachesAllObserversOfChild(t *testing.T) {
	t.Parallel()
	b := NewBroker()

	first := b.Subscribe("child-1")
	second := b.Subscribe("child-1")
	drainConnected(t, first)
	drainConnected(t, second)

	b.Publish("child-1", Frame{Type: events.TypeLocationUpdate, Data: "payload"})

	for _, client := range []*Client{first, second} {
		select {
		case frame := <-client.Frames:
			assert.Equal(t, events.TypeLocationUpdate, frame.Type)
		case <-time.After(time.Second):
			t.Fatal("observer did not receive the frame")
		}
	}
}

func TestPublishDoesNotLeakAcrossChildren(t *testing.T) {
	t.Parallel()
	b := NewBroker()

	observerX := b.Subscribe("child-x")
	observerY := b.Subscribe("child-y")
	drainConnected(t, observerX)
	drainConnected(t, observerY)

	b.Publish("child-x", Frame{Type: events.TypeStateChanged, Data: "x-only"})

	select {
	case frame := <-observerX.Frames:
		assert.Equal(t, events.TypeStateChanged, frame.Type)
	case <-time.After(time.Second):
		t.Fatal("observer of child-x did not receive the frame")
	}

	select {
	case frame := <-observerY.Frames:
		t.Fatalf("observer of child-y received unexpected frame %q", frame.Type)
	case <-time.After(50 * time.Millisecond):
		// expected, nothing delivered
	}
}

func TestBlockedObserverIsEvictedOthersStillServed(t *testing.T) {
	t.Parallel()
	b := NewBroker(WithSendTimeout(20*time.Millisecond), WithClientBuffer(1))

	blocked := b.Subscribe("child-1")
	healthy1 := b.Subscribe("child-1")
	healthy2 := b.Subscribe("child-1")

	// The blocked observer never drains, its single buffer slot still holds
	// the connected frame.
	drainConnected(t, healthy1)
	drainConnected(t, healthy2)

	b.Publish("child-1", Frame{Type: events.TypeAlertCreated, Data: "alert"})

	for _, client := range []*Client{healthy1, healthy2} {
		select {
		case frame := <-client.Frames:
			assert.Equal(t, events.TypeAlertCreated, frame.Type)
		case <-time.After(time.Second):
			t.Fatal("healthy observer did not receive the frame")
		}
	}

	// Exactly the blocked observer is removed.
	require.Eventually(t, func() bool {
		return b.ClientCount("child-1") == 2
	}, time.Second, 10*time.Millisecond)

	select {
	case <-blocked.Done:
	case <-time.After(time.Second):
		t.Fatal("blocked observer was not marked done")
	}
}

func TestUnsubscribeReclaimsEmptyChildEntry(t *testing.T) {
	t.Parallel()
	b := NewBroker()

	client := b.Subscribe("child-1")
	require.Equal(t, 1, b.ClientCount("child-1"))

	b.Unsubscribe("child-1", client.ID)
	assert.Equal(t, 0, b.ClientCount("child-1"))
	assert.Equal(t, 0, b.TotalClients())

	b.mutex.RLock()
	_, exists := b.clients["child-1"]
	b.mutex.RUnlock()
	assert.False(t, exists, "empty child entry must be reclaimed")
}

func TestUnsubscribeUnknownClientIsNoop(t *testing.T) {
	t.Parallel()
	b := NewBroker()

	b.Unsubscribe("child-1", "nope")
	assert.Equal(t, 0, b.TotalClients())
}

func TestPublishToChildWithoutObservers(t *testing.T) {
	t.Parallel()
	b := NewBroker()

	// Must not panic or block.
	b.Publish("child-1", Frame{Type: events.TypeLocationUpdate})
}

func TestProcessEventPublishesToObservers(t *testing.T) {
	t.Parallel()
	b := NewBroker()

	client := b.Subscribe("child-1")
	drainConnected(t, client)

	event := events.NewStateChangedEvent(&events.StateChange{
		ChildID:  "child-1",
		OldState: "IN_SAFE",
		NewState: "OUT_SAFE",
		Ts:       time.Now(),
	})
	require.NoError(t, b.ProcessEvent(event))

	select {
	case frame := <-client.Frames:
		assert.Equal(t, events.TypeStateChanged, frame.Type)
	case <-time.After(time.Second):
		t.Fatal("frame was not delivered")
	}
}
