// Package wsconn adapts a raw WebSocket connection to the core's
// subscription fabric. Grounded on
// _examples/adred-codev-ws_poc/ws/internal/shared/connection.go (Client,
// SubscriptionSet) and pump_read.go/pump_write.go (read/write pump shape,
// batched writer, ping ticker), generalized from Kafka subjects to the
// tile-coordinate wire protocol spec.md §6 defines.
package wsconn

import "github.com/adred-codev/pixelcanvas/domain"

// Inbound frame types, spec.md §6.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
)

// Outbound frame types, spec.md §6.
const (
	TypeTileVersion            = "tile-version"
	TypeSubscriptionAck        = "subscription-ack"
	TypeUnsubscriptionConfirmed = "unsubscription-confirmed"
	TypeError                  = "error"
)

// TileXY is the wire shape for a tile coordinate, {"x":.., "y":..}.
type TileXY struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

func toXY(t domain.TileCoord) TileXY { return TileXY{X: t.X, Y: t.Y} }

func toCoord(xy TileXY) domain.TileCoord { return domain.TileCoord{X: xy.X, Y: xy.Y} }

// InboundFrame is the generic envelope used to dispatch by Type before
// unmarshaling the rest of the frame.
type InboundFrame struct {
	Type  string   `json:"type"`
	Tiles []TileXY `json:"tiles,omitempty"`
}

// TileVersionFrame is the outbound tile-version event.
type TileVersionFrame struct {
	Type    string `json:"type"`
	X       int32  `json:"x"`
	Y       int32  `json:"y"`
	Version string `json:"version"`
}

// RejectedTile is one entry of subscription-ack's rejected list.
type RejectedTile struct {
	Tile   TileXY `json:"tile"`
	Reason string `json:"reason"`
}

// SubscriptionAckFrame is the outbound response to a subscribe request.
type SubscriptionAckFrame struct {
	Type            string         `json:"type"`
	Accepted        []TileXY       `json:"accepted"`
	Rejected        []RejectedTile `json:"rejected"`
	RemainingBudget uint32         `json:"remaining_budget"`
}

// UnsubscriptionConfirmedFrame is the outbound response to an unsubscribe
// request.
type UnsubscriptionConfirmedFrame struct {
	Type  string   `json:"type"`
	Tiles []TileXY `json:"tiles"`
}

// ErrorFrame carries a human-readable protocol error.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
