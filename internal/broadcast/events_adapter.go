package broadcast

import (
	"context"

	"github.com/adred-codev/pixelcanvas/domain"
)

// EventsAdapter exposes a Fabric as a ports.EventsPort so the paint service
// can depend on the interface rather than the concrete fan-out type.
type EventsAdapter struct {
	Fabric *Fabric
}

// BroadcastTileVersion publishes the event fire-and-forget; the fabric
// itself never blocks or errors on a full receiver queue, so this always
// succeeds (spec.md §4.G step 7 treats this as a best-effort call anyway).
func (a EventsAdapter) BroadcastTileVersion(ctx context.Context, event domain.TileVersionEvent) error {
	a.Fabric.Publish(event)
	return nil
}
