package domain

import "time"

// PaintAction is the durable record of a single painted cell (spec.md §3).
// Keyed uniquely by (WorldID, Global.X, Global.Y) with overwrite semantics
// at the store.
type PaintAction struct {
	WorldID   string
	UserID    string
	Global    GlobalCoord
	Color     ColorID
	Timestamp time.Time
}

// NewPaintAction builds a PaintAction from a tile-relative paint, the form
// the paint service deals in before handing actions to the durable store.
func NewPaintAction(worldID, userID string, tile TileCoord, pixel PixelCoord, color ColorID, tileSize int32, ts time.Time) PaintAction {
	return PaintAction{
		WorldID:   worldID,
		UserID:    userID,
		Global:    FromTileAndPixel(tile, pixel, tileSize),
		Color:     color,
		Timestamp: ts,
	}
}
