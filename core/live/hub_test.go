package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublishReachesSubscriber(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(42)
	defer cancel()

	hub.Publish(42)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}
}

func TestHubPublishIsScopedToArtist(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(42)
	defer cancel()

	hub.Publish(99)

	select {
	case <-ch:
		t.Fatal("notification leaked across artists")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPublishCoalesces(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(42)
	defer cancel()

	// A slow subscriber must not block the publisher; extra notifications
	// collapse into the buffered one.
	for i := 0; i < 10; i++ {
		hub.Publish(42)
	}

	<-ch
	select {
	case <-ch:
		t.Fatal("expected at most one buffered notification")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubCancelRemovesSubscriber(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe(42)
	require.Equal(t, 1, hub.Subscribers(42))

	cancel()
	assert.Equal(t, 0, hub.Subscribers(42))

	// Publishing to an empty set is a no-op.
	hub.Publish(42)
}

func TestHubMultipleSubscribers(t *testing.T) {
	hub := NewHub()
	ch1, cancel1 := hub.Subscribe(42)
	defer cancel1()
	ch2, cancel2 := hub.Subscribe(42)
	defer cancel2()

	hub.Publish(42)

	for _, ch := range []<-chan struct{}{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("every subscriber should be notified")
		}
	}
}
