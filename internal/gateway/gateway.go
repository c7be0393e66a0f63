// Package gateway implements the tile gateway (spec.md §4.F): authoritative
// version discovery and the three-tier read pipeline across the cache,
// the durable store and on-demand reconstruction. Grounded on
// _examples/original_source/application/src/tiles/gateway.rs.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/pixelcanvas/domain"
	"github.com/adred-codev/pixelcanvas/internal/ports"
)

// VersionSource records which tier answered the authoritative version
// lookup, used for logging/metrics and by property 4's counting adapter.
type VersionSource int

const (
	SourceCache VersionSource = iota
	SourceDurable
	SourceEmpty
)

func (s VersionSource) String() string {
	switch s {
	case SourceCache:
		return "Cache"
	case SourceDurable:
		return "Durable"
	default:
		return "Empty"
	}
}

// Gateway is the tile gateway. One instance is shared process-wide; it
// holds no per-tile state of its own beyond the buffer pool.
type Gateway struct {
	Cache  ports.CachePort
	Store  ports.DurableStore
	Codec  ports.ImageCodec
	Pool   *domain.PaletteBufferPool
	Worlds map[string]domain.World

	EncodeTimeout time.Duration
	Logger        zerolog.Logger
}

func (g *Gateway) world(worldID string) (domain.World, error) {
	w, ok := g.Worlds[worldID]
	if !ok {
		return domain.World{}, fmt.Errorf("%w: unknown world %q", domain.ErrServiceUnavailable, worldID)
	}
	return w, nil
}

// FindAuthoritativeTileVersion implements spec.md §4.F's version lookup:
// cache pointer first (a version pointer is only ever written right after
// a store of the palette it names), then the missing sentinel, then
// durable reconstruction using the pixel-count-as-version rule. The cache
// is consulted first and wins outright when present — see DESIGN.md's
// Open Question resolution for why a cache hit never needs to be compared
// against the durable count.
func (g *Gateway) FindAuthoritativeTileVersion(ctx context.Context, worldID string, coord domain.TileCoord) (uint64, VersionSource, error) {
	w, err := g.world(worldID)
	if err != nil {
		return 0, SourceEmpty, err
	}

	if v, ok, err := g.Cache.GetVersion(ctx, worldID, coord); err != nil {
		g.Logger.Warn().Err(err).Str("world", worldID).Str("tile", coord.String()).Msg("cache version lookup degraded, falling through to durable")
	} else if ok {
		return v, SourceCache, nil
	}

	if missing, err := g.Cache.HasMissingSentinel(ctx, worldID, coord); err == nil && missing {
		return 0, SourceEmpty, nil
	}

	state, err := g.Store.GetCurrentTileState(ctx, worldID, coord, w.Size)
	if err != nil {
		return 0, SourceEmpty, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	if len(state) == 0 {
		return 0, SourceEmpty, nil
	}
	return uint64(len(state)), SourceDurable, nil
}

// GetTileWebP implements spec.md §4.F "Read tile image".
func (g *Gateway) GetTileWebP(ctx context.Context, worldID string, coord domain.TileCoord) ([]byte, uint64, error) {
	w, err := g.world(worldID)
	if err != nil {
		return nil, 0, err
	}

	v, source, err := g.FindAuthoritativeTileVersion(ctx, worldID, coord)
	if err != nil {
		return nil, 0, err
	}

	if bytes, ok, err := g.Cache.GetWebP(ctx, worldID, coord, v); err == nil && ok {
		return bytes, v, nil
	}

	rgba, complete, err := g.materializeRGBA(ctx, worldID, coord, v, source, w)
	if err != nil {
		return nil, 0, err
	}
	if !complete {
		g.Cache.SetMissingSentinel(ctx, worldID, coord)
	}

	encodeCtx, cancel := context.WithTimeout(ctx, g.encodeTimeout())
	defer cancel()
	bytes, err := g.Codec.EncodeLossless(encodeCtx, rgba, int(w.Size), int(w.Size))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrCodecTimeout, err)
	}

	if err := g.Cache.StoreWebP(ctx, worldID, coord, v, bytes); err != nil {
		g.Logger.Warn().Err(err).Str("world", worldID).Str("tile", coord.String()).Msg("webp cache write-through failed")
	}
	return bytes, v, nil
}

// GetTileRGBA exposes the materialized RGBA grid without encoding, for
// direct RGBA callers.
func (g *Gateway) GetTileRGBA(ctx context.Context, worldID string, coord domain.TileCoord) ([][4]byte, uint64, error) {
	w, err := g.world(worldID)
	if err != nil {
		return nil, 0, err
	}
	v, source, err := g.FindAuthoritativeTileVersion(ctx, worldID, coord)
	if err != nil {
		return nil, 0, err
	}
	rgba, _, err := g.materializeRGBA(ctx, worldID, coord, v, source, w)
	return rgba, v, err
}

// materializeRGBA implements step 3 of "Read tile image": palette cache
// hit, else durable reconstruction with opportunistic write-through, else
// an all-transparent grid for a complete miss.
func (g *Gateway) materializeRGBA(ctx context.Context, worldID string, coord domain.TileCoord, v uint64, source VersionSource, w domain.World) ([][4]byte, bool, error) {
	if palette, ok, err := g.Cache.GetPalette(ctx, worldID, coord, v); err == nil && ok {
		return decodePaletteToRGBA(palette, w), true, nil
	}

	if source == SourceEmpty {
		return allTransparent(int(w.Size)), false, nil
	}

	state, err := g.Store.GetCurrentTileState(ctx, worldID, coord, w.Size)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	if len(state) == 0 {
		return allTransparent(int(w.Size)), false, nil
	}

	transient := domain.NewTile(coord, w.Size)
	pixels := make([]domain.PaintPixel, 0, len(state))
	for _, s := range state {
		pixels = append(pixels, domain.PaintPixel{Coord: s.Pixel, Color: s.Color})
	}
	transient.PaintBatch(pixels, 1)
	_, buf := transient.SnapshotPalette(g.Pool)
	defer g.Pool.Release(buf)

	g.Cache.StorePaletteOptimistically(ctx, worldID, coord, v, buf)
	g.Cache.UpdateVersionOptimistically(ctx, worldID, coord, v)

	return decodePaletteToRGBA(buf, w), true, nil
}

// LoadTileForPainting implements spec.md §4.F "Load tile for painting":
// palette cache first, else durable reconstruction, else a fresh empty
// tile; mark_clean always runs so the tile's version starts at the
// resolved authoritative value.
func (g *Gateway) LoadTileForPainting(ctx context.Context, worldID string, coord domain.TileCoord) (*domain.Tile, error) {
	w, err := g.world(worldID)
	if err != nil {
		return nil, err
	}

	v, source, err := g.FindAuthoritativeTileVersion(ctx, worldID, coord)
	if err != nil {
		return nil, err
	}

	tile := domain.NewTile(coord, w.Size)

	if palette, ok, err := g.Cache.GetPalette(ctx, worldID, coord, v); err == nil && ok {
		tile.PopulateFromPalette(palette)
		tile.MarkClean(v)
		return tile, nil
	}

	if source != SourceEmpty {
		state, err := g.Store.GetCurrentTileState(ctx, worldID, coord, w.Size)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
		}
		if len(state) > 0 {
			pixels := make([]domain.PaintPixel, 0, len(state))
			for _, s := range state {
				pixels = append(pixels, domain.PaintPixel{Coord: s.Pixel, Color: s.Color})
			}
			tile.PaintBatch(pixels, 1)
		}
	}

	tile.MarkClean(v)
	return tile, nil
}

// WriteThroughAfterPaint implements spec.md §4.F "Write-through after
// paint": snapshot the palette, store it (errors surface), then
// best-effort bump the version pointer.
func (g *Gateway) WriteThroughAfterPaint(ctx context.Context, worldID string, tile *domain.Tile, newVersion uint64) error {
	v, buf := tile.SnapshotPalette(g.Pool)
	defer g.Pool.Release(buf)
	if v != newVersion {
		g.Logger.Warn().Str("world", worldID).Str("tile", tile.Coord.String()).Uint64("expected", newVersion).Uint64("got", v).Msg("snapshot raced past the version it was meant to capture")
	}

	if err := g.Cache.StorePalette(ctx, worldID, tile.Coord, v, buf); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	g.Cache.UpdateVersionOptimistically(ctx, worldID, tile.Coord, v)
	g.Cache.ClearMissingSentinel(ctx, worldID, tile.Coord)
	return nil
}

// RemoveUserPixels implements the moderation cascade supplemented per
// SPEC_FULL.md §12.3: per world, delete the user's rows in that world and
// invalidate cache state for every distinct tile touched, so a stale
// version/palette/webp triple cannot outlive the moderation action. Each
// world's tile coordinates are computed against that world's own tile
// size, since pixel_history rows are scoped by world.
func (g *Gateway) RemoveUserPixels(ctx context.Context, userID string) error {
	for worldID, w := range g.Worlds {
		tiles, err := g.Store.RemoveUserPixels(ctx, worldID, userID, w.Size)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrDatabase, err)
		}
		for _, tile := range tiles {
			if err := g.Cache.InvalidateTile(ctx, worldID, tile); err != nil {
				g.Logger.Warn().Err(err).Str("world", worldID).Str("tile", tile.String()).Msg("tile cache invalidation after moderation failed")
			}
		}
	}
	return nil
}

func (g *Gateway) encodeTimeout() time.Duration {
	if g.EncodeTimeout <= 0 {
		return 3 * time.Second
	}
	return g.EncodeTimeout
}

func decodePaletteToRGBA(palette []int16, w domain.World) [][4]byte {
	out := make([][4]byte, len(palette))
	for i, id := range palette {
		if domain.ColorID(id) == domain.Transparent || int(id) >= len(w.Palette) {
			out[i] = domain.TransparentRGBA
			continue
		}
		out[i] = w.Palette[id].ToRGBA()
	}
	return out
}

func allTransparent(size int) [][4]byte {
	out := make([][4]byte, size*size)
	for i := range out {
		out[i] = domain.TransparentRGBA
	}
	return out
}
