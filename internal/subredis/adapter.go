// Package subredis implements ports.SubscriptionPort over Redis, translating
// the two atomic scripts from spec.md §4.H. This is the one place a
// near-literal port of the Rust original is correct rather than merely
// convenient: the Lua text *is* the wire contract (spec.md mandates the
// exact script semantics), not prose to rephrase. Grounded on
// _examples/original_source/adapters/src/outgoing/redis_deadpool/
// subscription_redis.rs.
package subredis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adred-codev/pixelcanvas/domain"
	"github.com/adred-codev/pixelcanvas/internal/cacheredis"
	"github.com/adred-codev/pixelcanvas/internal/ports"
)

// subscribeScript implements spec.md §4.H's Subscribe script: purge
// expired members, bump the refcount, evict the oldest (smallest-score)
// member via FIFO when a brand new subscription pushes the set over max.
var subscribeScript = redis.NewScript(`
local set = KEYS[1]
local hash = KEYS[2]
local tile = ARGV[1]
local now = tonumber(ARGV[2])
local ttl_ms = tonumber(ARGV[3])
local max = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', set, 0, now)

local rc = redis.call('HINCRBY', hash, tile, 1)
local evicted = ""

if rc == 1 then
  local count = redis.call('ZCARD', set)
  if count >= max then
    local oldest = redis.call('ZRANGE', set, 0, 0)
    if oldest[1] ~= nil then
      redis.call('ZREM', set, oldest[1])
      local newrc = redis.call('HINCRBY', hash, oldest[1], -1)
      if newrc <= 0 then
        redis.call('HDEL', hash, oldest[1])
      end
      evicted = oldest[1]
    end
  end
  redis.call('ZADD', set, now + ttl_ms, tile)
  return {"new", redis.call('ZCARD', set), evicted}
else
  return {"already", redis.call('ZCARD', set), ""}
end
`)

// unsubscribeScript implements spec.md §4.H's Unsubscribe script:
// refcount-aware removal, dropping the tile entirely only once its
// refcount reaches zero.
var unsubscribeScript = redis.NewScript(`
local set = KEYS[1]
local hash = KEYS[2]
local tile = ARGV[1]

local rc = redis.call('HINCRBY', hash, tile, -1)
if rc <= 0 then
  redis.call('HDEL', hash, tile)
  redis.call('ZREM', set, tile)
  return {1, 0}
else
  return {0, rc}
end
`)

// Adapter implements ports.SubscriptionPort over go-redis.
type Adapter struct {
	Client *redis.Client
	Keys   cacheredis.KeyBuilder
}

func tileKey(coord domain.TileCoord) string {
	return coord.String()
}

// Subscribe runs the single-tile script once per input tile, per spec.md
// §4.H's "Batched subscribe(tiles)" — evictions produced while processing
// tile X surface in Rejected so the caller learns about its own displaced
// subscriptions.
func (a *Adapter) Subscribe(ctx context.Context, world, ipKey string, tiles []domain.TileCoord, max int, ttl time.Duration) (ports.SubscribeResult, error) {
	set := a.Keys.SubscriptionZSet(world, ipKey)
	hash := a.Keys.SubscriptionRefcount(world, ipKey)
	ttlMs := ttl.Milliseconds()

	result := ports.SubscribeResult{}
	for _, tile := range tiles {
		now := time.Now().UnixMilli()
		raw, err := subscribeScript.Run(ctx, a.Client, []string{set, hash}, tileKey(tile), now, ttlMs, max).Result()
		if err != nil {
			return ports.SubscribeResult{}, fmt.Errorf("%w: %v", domain.ErrCache, err)
		}
		vals, ok := raw.([]interface{})
		if !ok || len(vals) != 3 {
			return ports.SubscribeResult{}, fmt.Errorf("%w: malformed subscribe script response", domain.ErrCache)
		}
		status, _ := vals[0].(string)
		count, _ := vals[1].(int64)
		evicted, _ := vals[2].(string)

		result.Count = int(count)
		if status == "new" {
			result.Accepted = append(result.Accepted, tile)
		}
		if evicted != "" {
			evictedCoord, err := domain.ParseTileCoord(evicted)
			if err == nil {
				result.Rejected = append(result.Rejected, ports.SubscriptionRejection{
					Tile:   evictedCoord,
					Reason: "Evicted due to FIFO policy",
				})
			}
		}
	}
	return result, nil
}

// Unsubscribe runs the refcount-aware removal script for one tile.
func (a *Adapter) Unsubscribe(ctx context.Context, world, ipKey string, tile domain.TileCoord) (bool, int, error) {
	set := a.Keys.SubscriptionZSet(world, ipKey)
	hash := a.Keys.SubscriptionRefcount(world, ipKey)

	raw, err := unsubscribeScript.Run(ctx, a.Client, []string{set, hash}, tileKey(tile)).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 2 {
		return false, 0, fmt.Errorf("%w: malformed unsubscribe script response", domain.ErrCache)
	}
	removed, _ := vals[0].(int64)
	remaining, _ := vals[1].(int64)
	return removed == 1, int(remaining), nil
}

// Refresh re-scores every still-held tile to now+ttl inside a purge-then-
// rewrite pipeline (spec.md §4.H "Refresh(tiles)").
func (a *Adapter) Refresh(ctx context.Context, world, ipKey string, tiles []domain.TileCoord, ttl time.Duration) error {
	set := a.Keys.SubscriptionZSet(world, ipKey)
	now := time.Now().UnixMilli()

	pipe := a.Client.Pipeline()
	pipe.ZRemRangeByScore(ctx, set, "0", fmt.Sprintf("%d", now))
	for _, tile := range tiles {
		pipe.ZAdd(ctx, set, redis.Z{Score: float64(now + ttl.Milliseconds()), Member: tileKey(tile)})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	return nil
}
