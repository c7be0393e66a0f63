// Package storepg implements ports.DurableStore over PostgreSQL via
// github.com/jackc/pgx/v5's pgxpool. Table shape grounded on spec.md §6
// ("pixel_history(world, user, global_x, global_y, color, created_at)"
// unique on (world, global_x, global_y), ON CONFLICT overwrite) and on the
// query patterns named in spec.md §4.D; no single pack file supplies a Go
// Postgres adapter for this schema, so the statements here are written
// directly against that shape (see DESIGN.md for the pgx-vs-sqlx choice).
package storepg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/adred-codev/pixelcanvas/domain"
	"github.com/adred-codev/pixelcanvas/internal/ports"
)

// Adapter implements ports.DurableStore. Every call enforces a wall-clock
// timeout (spec.md §4.D, default 5s per §5) via context.WithTimeout.
type Adapter struct {
	Pool         *pgxpool.Pool
	QueryTimeout time.Duration
	Logger       zerolog.Logger
}

func (a *Adapter) timeout(parent context.Context) (context.Context, context.CancelFunc) {
	d := a.QueryTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(parent, d)
}

// RecordPaintActions upserts the whole batch atomically in a single
// transaction (spec.md §4.D: "Must be atomic across the batch").
func (a *Adapter) RecordPaintActions(ctx context.Context, world string, actions []domain.PaintAction) error {
	if len(actions) == 0 {
		return nil
	}
	cctx, cancel := a.timeout(ctx)
	defer cancel()

	tx, err := a.Pool.Begin(cctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrDatabase, err)
	}
	defer tx.Rollback(cctx)

	batch := &pgx.Batch{}
	for _, act := range actions {
		batch.Queue(
			`INSERT INTO pixel_history (world, "user", global_x, global_y, color, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (world, global_x, global_y)
			 DO UPDATE SET "user" = EXCLUDED."user", color = EXCLUDED.color, created_at = EXCLUDED.created_at`,
			world, act.UserID, act.Global.X, act.Global.Y, int16(act.Color), act.Timestamp,
		)
	}
	br := tx.SendBatch(cctx, batch)
	for range actions {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("%w: batch upsert: %v", domain.ErrDatabase, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	if err := tx.Commit(cctx); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrDatabase, err)
	}
	return nil
}

// GetHistoryForTile returns painted cells in a tile region, newest first,
// bounded by limit (spec.md §4.D, supplemented per SPEC_FULL.md §12.2 as a
// first-class gateway-reachable query).
func (a *Adapter) GetHistoryForTile(ctx context.Context, world string, coord domain.TileCoord, tileSize int32, limit int) ([]ports.PixelHistoryEntry, error) {
	cctx, cancel := a.timeout(ctx)
	defer cancel()

	minX, maxX := coord.X*tileSize, coord.X*tileSize+tileSize-1
	minY, maxY := coord.Y*tileSize, coord.Y*tileSize+tileSize-1

	rows, err := a.Pool.Query(cctx, `
		SELECT "user", global_x, global_y, color, created_at
		FROM pixel_history
		WHERE world = $1 AND global_x BETWEEN $2 AND $3 AND global_y BETWEEN $4 AND $5
		ORDER BY created_at DESC
		LIMIT $6`, world, minX, maxX, minY, maxY, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	defer rows.Close()

	var out []ports.PixelHistoryEntry
	for rows.Next() {
		var userID string
		var gx, gy int32
		var color int16
		var ts time.Time
		if err := rows.Scan(&userID, &gx, &gy, &color, &ts); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
		}
		pixel := domain.GlobalCoord{X: gx, Y: gy}.ToPixelCoord(tileSize)
		out = append(out, ports.PixelHistoryEntry{
			UserID: userID,
			Pixel:  pixel,
			Color:  domain.ColorID(color),
			At:     ts,
		})
	}
	return out, rows.Err()
}

// GetCurrentTileState returns one row per painted cell in the tile's
// global range, used by the gateway's reconstruction path and by the
// pixel-count-as-version rule (spec.md §4.D, §4.F).
func (a *Adapter) GetCurrentTileState(ctx context.Context, world string, coord domain.TileCoord, tileSize int32) ([]ports.PixelState, error) {
	cctx, cancel := a.timeout(ctx)
	defer cancel()

	minX, maxX := coord.X*tileSize, coord.X*tileSize+tileSize-1
	minY, maxY := coord.Y*tileSize, coord.Y*tileSize+tileSize-1

	rows, err := a.Pool.Query(cctx, `
		SELECT global_x, global_y, color
		FROM pixel_history
		WHERE world = $1 AND global_x BETWEEN $2 AND $3 AND global_y BETWEEN $4 AND $5`,
		world, minX, maxX, minY, maxY)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	defer rows.Close()

	var out []ports.PixelState
	for rows.Next() {
		var gx, gy int32
		var color int16
		if err := rows.Scan(&gx, &gy, &color); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
		}
		pixel := domain.GlobalCoord{X: gx, Y: gy}.ToPixelCoord(tileSize)
		out = append(out, ports.PixelState{Pixel: pixel, Color: domain.ColorID(color)})
	}
	return out, rows.Err()
}

// GetDistinctTileCount returns the world-wide painted-tile count used for
// metrics (spec.md §4.D).
func (a *Adapter) GetDistinctTileCount(ctx context.Context, world string, tileSize int32) (int64, error) {
	cctx, cancel := a.timeout(ctx)
	defer cancel()

	var count int64
	err := a.Pool.QueryRow(cctx, `
		SELECT COUNT(DISTINCT (floor(global_x::float8 / $2::int), floor(global_y::float8 / $2::int)))
		FROM pixel_history WHERE world = $1`, world, tileSize).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	return count, nil
}

// GetPixelInfo answers who painted a single global cell and when
// (supplemented per SPEC_FULL.md §12.2).
func (a *Adapter) GetPixelInfo(ctx context.Context, world string, global domain.GlobalCoord) (*ports.PixelInfo, error) {
	cctx, cancel := a.timeout(ctx)
	defer cancel()

	var info ports.PixelInfo
	var color int16
	err := a.Pool.QueryRow(cctx, `
		SELECT "user", color, created_at FROM pixel_history
		WHERE world = $1 AND global_x = $2 AND global_y = $3`,
		world, global.X, global.Y).Scan(&info.UserID, &color, &info.At)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	info.Color = domain.ColorID(color)
	return &info, nil
}

// RemoveUserPixels deletes every cell painted by userID within world and
// returns the distinct tiles touched, so the gateway can invalidate their
// cache entries (spec.md §9 Open Question, resolved per SPEC_FULL.md §12.3).
func (a *Adapter) RemoveUserPixels(ctx context.Context, world string, userID string, tileSize int32) ([]domain.TileCoord, error) {
	cctx, cancel := a.timeout(ctx)
	defer cancel()

	rows, err := a.Pool.Query(cctx, `
		DELETE FROM pixel_history WHERE world = $1 AND "user" = $2
		RETURNING global_x, global_y`, world, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	defer rows.Close()

	seen := make(map[domain.TileCoord]struct{})
	var tiles []domain.TileCoord
	for rows.Next() {
		var gx, gy int32
		if err := rows.Scan(&gx, &gy); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
		}
		tc := domain.GlobalCoord{X: gx, Y: gy}.ToTileCoord(tileSize)
		if _, ok := seen[tc]; !ok {
			seen[tc] = struct{}{}
			tiles = append(tiles, tc)
		}
	}
	return tiles, rows.Err()
}
