// Package paint implements the paint command pipeline (spec.md §4.G).
// Grounded on
// _examples/original_source/application/src/tiles/service.rs::paint_pixels_batch.
package paint

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/pixelcanvas/domain"
	"github.com/adred-codev/pixelcanvas/internal/gateway"
	"github.com/adred-codev/pixelcanvas/internal/ports"
)

// Result is returned to the HTTP/WS adapter on a successful paint
// (spec.md §6 POST /tiles/{x}/{y}/pixels response shape).
type Result struct {
	Version uint64
	WriteID string
}

// Service applies validated pixel batches: credit debit, atomic apply,
// write-through, durable append, best-effort event emission.
type Service struct {
	Gateway   *gateway.Gateway
	Credits   ports.CreditStore
	Store     ports.DurableStore
	Events    ports.EventsPort
	CreditCfg domain.CreditConfig

	Now    func() time.Time
	Logger zerolog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Batch is one requested pixel write within a paint_batch call.
type Batch struct {
	World  string
	UserID string
	Tile   domain.TileCoord
	Pixels []domain.PaintPixel
}

// PaintBatch validates, debits credits, applies the batch atomically on
// the in-memory tile, writes through to cache, appends durable actions and
// emits a best-effort version event. Preconditions (batch size, pixel and
// color bounds, duplicate pixels) are checked first by validate below,
// before any credit is debited.
func (s *Service) PaintBatch(ctx context.Context, b Batch) (Result, error) {
	world, ok := s.Gateway.Worlds[b.World]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown world %q", domain.ErrServiceUnavailable, b.World)
	}
	if err := validate(b, world); err != nil {
		return Result{}, err
	}

	now := s.now()

	balance, err := s.Credits.GetBalance(ctx, b.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	newBalance, err := balance.Spend(s.CreditCfg, now, len(b.Pixels))
	if err != nil {
		return Result{}, err
	}
	if err := s.Credits.UpdateBalance(ctx, b.UserID, newBalance); err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}

	tile, err := s.Gateway.LoadTileForPainting(ctx, b.World, b.Tile)
	if err != nil {
		return Result{}, err
	}

	vNew, err := tile.PaintBatch(b.Pixels, world.PixelSize)
	if err != nil {
		return Result{}, err
	}

	writeID := fmt.Sprintf("%x-%x", now.Unix(), vNew)

	if err := s.Gateway.WriteThroughAfterPaint(ctx, b.World, tile, vNew); err != nil {
		// Palette store failures after paint do surface (spec.md §4.F
		// Failure modes): the paint is already durable-pending, but a
		// missing cached palette costs subsequent readers a reconstruction.
		s.Logger.Error().Err(err).Str("world", b.World).Str("tile", b.Tile.String()).Msg("cache write-through failed after paint apply")
	}

	actions := make([]domain.PaintAction, 0, len(b.Pixels))
	for _, px := range b.Pixels {
		actions = append(actions, domain.NewPaintAction(b.World, b.UserID, b.Tile, px.Coord, px.Color, world.Size, now))
	}
	if err := s.Store.RecordPaintActions(ctx, b.World, actions); err != nil {
		// Fatal: the durable store is authoritative. Memory/cache are
		// already newer than durable at this point (spec.md §4.G, the
		// documented transient-inconsistency window); a crash here means
		// the paint is effectively lost once the cache TTL expires.
		return Result{}, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}

	if err := s.Events.BroadcastTileVersion(ctx, domain.TileVersionEvent{WorldID: b.World, Coord: b.Tile, Version: vNew}); err != nil {
		s.Logger.Debug().Err(err).Str("world", b.World).Str("tile", b.Tile.String()).Msg("best-effort tile-version broadcast failed")
	}

	return Result{Version: vNew, WriteID: writeID}, nil
}

// validate enforces spec.md §4.G's preconditions: tile coord valid (bounds
// are world-native so any int32 tile coord is structurally valid — the
// check that matters is pixel/color), every pixel coord within [0,S) and
// every color id within the palette span.
func validate(b Batch, world domain.World) error {
	if len(b.Pixels) == 0 {
		return domain.ErrEmptyBatch
	}
	if len(b.Pixels) > 1000 {
		return fmt.Errorf("%w: batch of %d pixels exceeds 1000 limit", domain.ErrValidationFailed, len(b.Pixels))
	}
	seen := make(map[domain.PixelCoord]struct{}, len(b.Pixels))
	for _, px := range b.Pixels {
		if err := px.Coord.Validate(int(world.Size)); err != nil {
			return err
		}
		if err := px.Color.Validate(world.PaletteLen()); err != nil {
			return fmt.Errorf("%w: color %d invalid for palette of %d", domain.ErrInvalidColor, px.Color, world.PaletteLen())
		}
		if _, dup := seen[px.Coord]; dup {
			return fmt.Errorf("%w: duplicate pixel (%d,%d) in batch", domain.ErrValidationFailed, px.Coord.X, px.Coord.Y)
		}
		seen[px.Coord] = struct{}{}
	}
	return nil
}
