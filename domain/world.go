package domain

// World is the aggregate a tile belongs to: its canvas geometry and the
// shared color palette every tile's slots index into. Supplemented from
// the original's implicit split across tile.rs/color.rs (SPEC_FULL.md
// §12.1) — nothing in spec.md names a container for "the world palette"
// referenced by §4.F step 3.a, so it is made explicit here.
type World struct {
	ID        string
	Size      int32 // S: tile side length in pixels
	PixelSize int   // P: paint-batch snap-to-grid unit
	Palette   []RGBColor
}

// PaletteLen returns the number of addressable non-transparent colors.
func (w World) PaletteLen() int {
	return len(w.Palette)
}
