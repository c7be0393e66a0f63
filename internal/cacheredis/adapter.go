package cacheredis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/adred-codev/pixelcanvas/domain"
)

// TTLConfig holds the four cache TTLs plus the jitter range applied to
// every one of them (spec.md §4.C "TTLs are applied with multiplicative
// jitter in a configured [jmin%, jmax%] range to avoid herd expiration").
type TTLConfig struct {
	Current      time.Duration
	Palette      time.Duration
	WebP         time.Duration
	Missing      time.Duration
	JitterMinPct float64
	JitterMaxPct float64
}

func (c TTLConfig) jittered(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	span := c.JitterMaxPct - c.JitterMinPct
	pct := c.JitterMinPct
	if span > 0 {
		pct += rand.Float64() * span
	}
	return base + time.Duration(float64(base)*pct/100.0)
}

// Adapter implements ports.CachePort over github.com/redis/go-redis/v9.
// Grounded on original_source's RedisTileCacheAdapter: a hard connection
// timeout on every per-tile call (ClearCache's scan runs under the caller's
// context only), best-effort semantics on the "optimistic" methods
// (errors logged, never returned), and a scan-and-delete clear_cache.
type Adapter struct {
	Client         *redis.Client
	Keys           KeyBuilder
	TTL            TTLConfig
	AcquireTimeout time.Duration
	Logger         zerolog.Logger
}

func (a *Adapter) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := a.AcquireTimeout
	if timeout <= 0 {
		timeout = 1 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

func (a *Adapter) GetVersion(ctx context.Context, world string, coord domain.TileCoord) (uint64, bool, error) {
	cctx, cancel := a.ctx(ctx)
	defer cancel()
	v, err := a.Client.Get(cctx, a.Keys.Current(world, coord)).Uint64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	return v, true, nil
}

func (a *Adapter) GetPalette(ctx context.Context, world string, coord domain.TileCoord, version uint64) ([]int16, bool, error) {
	cctx, cancel := a.ctx(ctx)
	defer cancel()
	b, err := a.Client.Get(cctx, a.Keys.Palette(world, coord, version)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	return decodePalette(b), true, nil
}

func (a *Adapter) StorePalette(ctx context.Context, world string, coord domain.TileCoord, version uint64, buf []int16) error {
	cctx, cancel := a.ctx(ctx)
	defer cancel()
	err := a.Client.Set(cctx, a.Keys.Palette(world, coord, version), encodePalette(buf), a.TTL.jittered(a.TTL.Palette)).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	return nil
}

func (a *Adapter) GetWebP(ctx context.Context, world string, coord domain.TileCoord, version uint64) ([]byte, bool, error) {
	cctx, cancel := a.ctx(ctx)
	defer cancel()
	b, err := a.Client.Get(cctx, a.Keys.WebP(world, coord, version)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	return b, true, nil
}

// StoreWebP rejects empty payloads, per spec.md §4.C.
func (a *Adapter) StoreWebP(ctx context.Context, world string, coord domain.TileCoord, version uint64, bytes []byte) error {
	if len(bytes) == 0 {
		return fmt.Errorf("%w: refusing to cache empty webp payload", domain.ErrCache)
	}
	cctx, cancel := a.ctx(ctx)
	defer cancel()
	if err := a.Client.Set(cctx, a.Keys.WebP(world, coord, version), bytes, a.TTL.jittered(a.TTL.WebP)).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	return nil
}

func (a *Adapter) HasMissingSentinel(ctx context.Context, world string, coord domain.TileCoord) (bool, error) {
	cctx, cancel := a.ctx(ctx)
	defer cancel()
	n, err := a.Client.Exists(cctx, a.Keys.MissingSentinel(world, coord)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	return n > 0, nil
}

// SetMissingSentinel and ClearMissingSentinel are best-effort: a failure
// here only means a later read pays one extra durable-store query, never
// a correctness problem (spec.md §4.F "Missing sentinel lifecycle").
func (a *Adapter) SetMissingSentinel(ctx context.Context, world string, coord domain.TileCoord) {
	cctx, cancel := a.ctx(ctx)
	defer cancel()
	if err := a.Client.Set(cctx, a.Keys.MissingSentinel(world, coord), "1", a.TTL.jittered(a.TTL.Missing)).Err(); err != nil {
		a.Logger.Debug().Err(err).Str("world", world).Str("tile", coord.String()).Msg("set missing sentinel failed, swallowed")
	}
}

func (a *Adapter) ClearMissingSentinel(ctx context.Context, world string, coord domain.TileCoord) {
	cctx, cancel := a.ctx(ctx)
	defer cancel()
	if err := a.Client.Del(cctx, a.Keys.MissingSentinel(world, coord)).Err(); err != nil {
		a.Logger.Debug().Err(err).Str("world", world).Str("tile", coord.String()).Msg("clear missing sentinel failed, swallowed")
	}
}

func (a *Adapter) UpdateVersionOptimistically(ctx context.Context, world string, coord domain.TileCoord, version uint64) {
	cctx, cancel := a.ctx(ctx)
	defer cancel()
	if err := a.Client.Set(cctx, a.Keys.Current(world, coord), version, a.TTL.jittered(a.TTL.Current)).Err(); err != nil {
		a.Logger.Debug().Err(err).Str("world", world).Str("tile", coord.String()).Msg("optimistic version update failed, swallowed")
	}
}

func (a *Adapter) StorePaletteOptimistically(ctx context.Context, world string, coord domain.TileCoord, version uint64, buf []int16) {
	cctx, cancel := a.ctx(ctx)
	defer cancel()
	if err := a.Client.Set(cctx, a.Keys.Palette(world, coord, version), encodePalette(buf), a.TTL.jittered(a.TTL.Palette)).Err(); err != nil {
		a.Logger.Debug().Err(err).Str("world", world).Str("tile", coord.String()).Msg("optimistic palette store failed, swallowed")
	}
}

// ClearCache scans and deletes every key under the world's namespace
// prefix (spec.md §4.C), grounded on tile_cache_redis.rs's SCAN+DEL loop.
func (a *Adapter) ClearCache(ctx context.Context, world string) error {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := a.Client.Scan(ctx, cursor, a.Keys.NamespacePrefix(world), 200).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCache, err)
		}
		if len(keys) > 0 {
			if err := a.Client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrCache, err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	a.Logger.Info().Str("world", world).Int("keys_deleted", deleted).Msg("cleared world cache namespace")
	return nil
}

// InvalidateTile drops the `current` version pointer and clears the missing
// sentinel so the next lookup re-derives the version from the durable rows
// that remain after a moderation deletion; versioned palette/webp blobs are
// left to expire on their own TTL.
func (a *Adapter) InvalidateTile(ctx context.Context, world string, coord domain.TileCoord) error {
	cctx, cancel := a.ctx(ctx)
	defer cancel()
	if err := a.Client.Del(cctx, a.Keys.Current(world, coord)).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	a.ClearMissingSentinel(ctx, world, coord)
	return nil
}

func encodePalette(buf []int16) []byte {
	out := make([]byte, len(buf)*2)
	for i, v := range buf {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func decodePalette(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
