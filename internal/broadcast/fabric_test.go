package broadcast

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/pixelcanvas/domain"
)

// TestReceiverGetsAllPublishedEvents exercises property 8: a receiver sees
// every event for a tile it cares about; filtering itself is the
// connection layer's job (internal/wsconn), so here we assert the fabric
// delivers to all receivers and leaves filtering to the caller.
func TestReceiverGetsAllPublishedEvents(t *testing.T) {
	f := New(4, DropNewest, zerolog.Nop())
	r := f.Subscribe()
	defer f.Unsubscribe(r)

	f.Publish(domain.TileVersionEvent{WorldID: "w1", Coord: domain.TileCoord{0, 0}, Version: 1})
	f.Publish(domain.TileVersionEvent{WorldID: "w1", Coord: domain.TileCoord{1, 1}, Version: 2})

	select {
	case e := <-r.Events():
		if e.Version != 1 {
			t.Fatalf("expected version 1 first, got %d", e.Version)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first event")
	}
	select {
	case e := <-r.Events():
		if e.Version != 2 {
			t.Fatalf("expected version 2 second, got %d", e.Version)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second event")
	}
}

func TestDropNewestWhenFull(t *testing.T) {
	f := New(2, DropNewest, zerolog.Nop())
	r := f.Subscribe()
	defer f.Unsubscribe(r)

	for i := 0; i < 5; i++ {
		f.Publish(domain.TileVersionEvent{Version: uint64(i)})
	}

	if lagged := r.TakeLagged(); lagged != 3 {
		t.Fatalf("expected 3 lagged events, got %d", lagged)
	}
	first := <-r.Events()
	if first.Version != 0 {
		t.Fatalf("expected oldest surviving event version 0, got %d", first.Version)
	}
}

func TestDropOldestWhenFull(t *testing.T) {
	f := New(2, DropOldest, zerolog.Nop())
	r := f.Subscribe()
	defer f.Unsubscribe(r)

	for i := 0; i < 5; i++ {
		f.Publish(domain.TileVersionEvent{Version: uint64(i)})
	}

	first := <-r.Events()
	if first.Version != 3 {
		t.Fatalf("expected newest-retained events starting at 3, got %d", first.Version)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	f := New(4, DropNewest, zerolog.Nop())
	r := f.Subscribe()
	f.Unsubscribe(r)

	f.Publish(domain.TileVersionEvent{Version: 1})

	select {
	case <-r.Events():
		t.Fatal("unsubscribed receiver should not get events")
	default:
	}
	if f.Count() != 0 {
		t.Fatalf("expected 0 receivers after unsubscribe, got %d", f.Count())
	}
}
