package domain

// TileVersionEvent is emitted after a successful paint_batch apply and
// fanned out by the broadcast fabric (spec.md §4.G step 7, §4.I).
type TileVersionEvent struct {
	WorldID string
	Coord   TileCoord
	Version uint64
}
