package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlaschat/core/internal/event"
)

func TestBusPublisher_PublishTokenStream(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var got event.TokenStreamData
	done := make(chan struct{})
	bus.Subscribe(event.TokenStream, func(e event.Event) {
		mu.Lock()
		got = e.Data.(event.TokenStreamData)
		mu.Unlock()
		close(done)
	})

	pub := NewBusPublisher(bus, "session-1", zerolog.Nop())
	pub.PublishTokenStream(context.Background(), "hello", true, false)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for token_stream event")
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Token != "hello" || !got.IsFirst || got.IsLast {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestBusPublisher_ElicitationRoundTrip(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	pub := NewBusPublisher(bus, "session-1", zerolog.Nop()).(*busPublisher)

	ch := pub.PublishElicitationRequest(context.Background(), "elicit-1", "call-1", "delete_file", "confirm deletion?", nil)
	pub.Respond("elicit-1", event.ElicitationResponse{ElicitationID: "elicit-1", Approved: true})

	select {
	case resp := <-ch:
		if !resp.Approved {
			t.Errorf("expected approved response, got %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for elicitation response")
	}
}

func TestBusPublisher_RespondWithoutWaiter(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	pub := NewBusPublisher(bus, "session-1", zerolog.Nop()).(*busPublisher)

	// Must not panic or block when nobody is listening for this ID.
	pub.Respond("nonexistent", event.ElicitationResponse{Approved: true})
}
