// Package ports declares the capability set the core depends on without
// naming a concrete backend (spec.md §9 "Polymorphism across adapters").
// Concrete implementations live under internal/cacheredis, internal/subredis,
// internal/storepg and internal/codecwebp; the gateway, paint service,
// subscription fabric and broadcast fabric only ever see these interfaces.
package ports

import (
	"context"
	"time"

	"github.com/adred-codev/pixelcanvas/domain"
)

// CachePort is the versioned KV surface over palette/image/sentinel data
// (spec.md §4.C).
type CachePort interface {
	GetVersion(ctx context.Context, world string, coord domain.TileCoord) (uint64, bool, error)
	GetPalette(ctx context.Context, world string, coord domain.TileCoord, version uint64) ([]int16, bool, error)
	StorePalette(ctx context.Context, world string, coord domain.TileCoord, version uint64, buf []int16) error
	GetWebP(ctx context.Context, world string, coord domain.TileCoord, version uint64) ([]byte, bool, error)
	StoreWebP(ctx context.Context, world string, coord domain.TileCoord, version uint64, bytes []byte) error
	HasMissingSentinel(ctx context.Context, world string, coord domain.TileCoord) (bool, error)
	SetMissingSentinel(ctx context.Context, world string, coord domain.TileCoord)
	ClearMissingSentinel(ctx context.Context, world string, coord domain.TileCoord)
	UpdateVersionOptimistically(ctx context.Context, world string, coord domain.TileCoord, version uint64)
	StorePaletteOptimistically(ctx context.Context, world string, coord domain.TileCoord, version uint64, buf []int16)
	ClearCache(ctx context.Context, world string) error
	// InvalidateTile drops the version pointer for one tile and clears the
	// missing sentinel, used by the moderation cascade (SPEC_FULL.md §12.3)
	// so a stale `current` entry cannot outlive a row deletion.
	InvalidateTile(ctx context.Context, world string, coord domain.TileCoord) error
}

// PixelHistoryEntry is one row returned by DurableStore.GetHistoryForTile.
type PixelHistoryEntry struct {
	UserID   string
	Username string
	Pixel    domain.PixelCoord
	Color    domain.ColorID
	At       time.Time
}

// PixelState is one painted cell as returned by GetCurrentTileState.
type PixelState struct {
	Pixel domain.PixelCoord
	Color domain.ColorID
}

// PixelInfo answers "who painted this cell and when" (spec.md §4.D
// get_pixel_info, supplemented per SPEC_FULL.md §12.2).
type PixelInfo struct {
	UserID   string
	Username string
	Color    domain.ColorID
	At       time.Time
}

// DurableStore is the paint-history append and tile/pixel query surface
// (spec.md §4.D).
type DurableStore interface {
	RecordPaintActions(ctx context.Context, world string, actions []domain.PaintAction) error
	GetHistoryForTile(ctx context.Context, world string, coord domain.TileCoord, tileSize int32, limit int) ([]PixelHistoryEntry, error)
	GetCurrentTileState(ctx context.Context, world string, coord domain.TileCoord, tileSize int32) ([]PixelState, error)
	GetDistinctTileCount(ctx context.Context, world string, tileSize int32) (int64, error)
	GetPixelInfo(ctx context.Context, world string, global domain.GlobalCoord) (*PixelInfo, error)
	RemoveUserPixels(ctx context.Context, world string, userID string, tileSize int32) ([]domain.TileCoord, error)
}

// ImageCodec is the lossless encode/decode surface (spec.md §4.E).
type ImageCodec interface {
	EncodeLossless(ctx context.Context, rgba [][4]byte, width, height int) ([]byte, error)
	DecodeToRGBA(ctx context.Context, bytes []byte) ([][4]byte, int, int, error)
}

// EventsPort publishes tile-version events; errors on this path are
// best-effort and swallowed by callers (spec.md §4.G step 7).
type EventsPort interface {
	BroadcastTileVersion(ctx context.Context, event domain.TileVersionEvent) error
}

// SubscriptionRejection reports why a tile subscription was not (fully)
// accepted, surfaced to the client in the subscription-ack frame
// (spec.md §6).
type SubscriptionRejection struct {
	Tile   domain.TileCoord
	Reason string
}

// SubscribeResult is the outcome of a batched Subscribe call
// (spec.md §4.H).
type SubscribeResult struct {
	Accepted []domain.TileCoord
	Rejected []SubscriptionRejection
	Count    int
}

// SubscriptionPort is the atomic FIFO+TTL+refcount surface over IP-indexed
// tile sets (spec.md §4.H).
type SubscriptionPort interface {
	Subscribe(ctx context.Context, world, ipKey string, tiles []domain.TileCoord, max int, ttl time.Duration) (SubscribeResult, error)
	Unsubscribe(ctx context.Context, world, ipKey string, tile domain.TileCoord) (removed bool, remainingRefcount int, err error)
	Refresh(ctx context.Context, world, ipKey string, tiles []domain.TileCoord, ttl time.Duration) error
}

// CreditStore persists a user's credit balance (spec.md §3, §4.K).
type CreditStore interface {
	GetBalance(ctx context.Context, userID string) (domain.CreditBalance, error)
	UpdateBalance(ctx context.Context, userID string, balance domain.CreditBalance) error
}
