// Package domain holds the pixel-canvas core's pure types: coordinates,
// colors, tiles, credits and the records the rest of the system moves
// around. Nothing in here talks to a cache, a database or a socket.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// TileCoord identifies a fixed-size block of the world canvas by its
// world-absolute tile index. Negative indices are valid: the canvas is
// infinite in every direction.
type TileCoord struct {
	X, Y int32
}

func (c TileCoord) String() string {
	return fmt.Sprintf("%d/%d", c.X, c.Y)
}

// ParseTileCoord parses the "x/y" form produced by String.
func ParseTileCoord(s string) (TileCoord, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return TileCoord{}, fmt.Errorf("%w: malformed tile coord %q", ErrInvalidCoordinates, s)
	}
	x, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return TileCoord{}, fmt.Errorf("%w: malformed tile coord %q", ErrInvalidCoordinates, s)
	}
	y, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return TileCoord{}, fmt.Errorf("%w: malformed tile coord %q", ErrInvalidCoordinates, s)
	}
	return TileCoord{X: int32(x), Y: int32(y)}, nil
}

// PixelCoord is a tile-local pixel position, 0 <= {X,Y} < tileSize.
type PixelCoord struct {
	X, Y int
}

// Validate reports whether the coordinate lies within a tile of the given
// size.
func (c PixelCoord) Validate(tileSize int) error {
	if c.X < 0 || c.X >= tileSize || c.Y < 0 || c.Y >= tileSize {
		return fmt.Errorf("%w: pixel (%d,%d) outside [0,%d)", ErrInvalidCoordinates, c.X, c.Y, tileSize)
	}
	return nil
}

// Index returns the row-major slot index of this pixel inside an S*S grid.
func (c PixelCoord) Index(tileSize int) int {
	return c.Y*tileSize + c.X
}

// SnapToGrid floors both axes down to the nearest multiple of pixelSize,
// the block-painting unit used by Tile.PaintBatch.
func (c PixelCoord) SnapToGrid(pixelSize int) PixelCoord {
	if pixelSize <= 1 {
		return c
	}
	return PixelCoord{
		X: (c.X / pixelSize) * pixelSize,
		Y: (c.Y / pixelSize) * pixelSize,
	}
}

// GlobalCoord is a position in the infinite world grid, independent of any
// tile boundary.
type GlobalCoord struct {
	X, Y int32
}

// floorDiv and floorMod implement Euclidean division: Go's native "/" and
// "%" truncate toward zero, which misplaces negative coordinates across a
// tile boundary (e.g. -1 / 256 == 0 in Go, but tile -1 must own pixel -1).
func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int32) int32 {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

// ToTileCoord returns the tile this global coordinate belongs to.
func (g GlobalCoord) ToTileCoord(tileSize int32) TileCoord {
	return TileCoord{X: floorDiv(g.X, tileSize), Y: floorDiv(g.Y, tileSize)}
}

// ToPixelCoord returns the tile-local pixel position of this global
// coordinate.
func (g GlobalCoord) ToPixelCoord(tileSize int32) PixelCoord {
	return PixelCoord{X: int(floorMod(g.X, tileSize)), Y: int(floorMod(g.Y, tileSize))}
}

// FromTileAndPixel reconstructs the global coordinate from a tile index and
// a tile-local pixel position.
func FromTileAndPixel(tile TileCoord, pixel PixelCoord, tileSize int32) GlobalCoord {
	return GlobalCoord{
		X: tile.X*tileSize + int32(pixel.X),
		Y: tile.Y*tileSize + int32(pixel.Y),
	}
}
