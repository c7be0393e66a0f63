// Package cacheredis implements ports.CachePort over Redis. Grounded on
// _examples/original_source/adapters/src/outgoing/redis_deadpool/
// tile_cache_redis.rs and keys.rs.
package cacheredis

import (
	"fmt"

	"github.com/adred-codev/pixelcanvas/domain"
)

// KeyBuilder reproduces the key shapes spec.md §6 declares authoritative:
// "<root>:<env>:tile:v3:<world>:<x>:<y>:..." — the namespace is versioned
// ("v3") so a future key-shape change can run alongside the old one during
// a migration, exactly as the original's RedisKeyBuilder does.
type KeyBuilder struct {
	Root string
	Env  string
}

func (k KeyBuilder) namespace(world string) string {
	return fmt.Sprintf("%s:%s:tile:v3:%s", k.Root, k.Env, world)
}

func (k KeyBuilder) Current(world string, coord domain.TileCoord) string {
	return fmt.Sprintf("%s:%d:%d:current", k.namespace(world), coord.X, coord.Y)
}

func (k KeyBuilder) Palette(world string, coord domain.TileCoord, version uint64) string {
	return fmt.Sprintf("%s:%d:%d:palette:v%d", k.namespace(world), coord.X, coord.Y, version)
}

func (k KeyBuilder) WebP(world string, coord domain.TileCoord, version uint64) string {
	return fmt.Sprintf("%s:%d:%d:webp:v%d", k.namespace(world), coord.X, coord.Y, version)
}

func (k KeyBuilder) MissingSentinel(world string, coord domain.TileCoord) string {
	return fmt.Sprintf("%s:%d:%d:exists:false", k.namespace(world), coord.X, coord.Y)
}

func (k KeyBuilder) NamespacePrefix(world string) string {
	return k.namespace(world) + ":*"
}

// SubscriptionZSet and SubscriptionRefcount build the companion keys used
// by the subscription fabric (internal/subredis), kept here because they
// share the same <root>:<env> namespace root (spec.md §6).
func (k KeyBuilder) SubscriptionZSet(world, ipKey string) string {
	return fmt.Sprintf("%s:%s:sub:v3:%s:%s", k.Root, k.Env, world, ipKey)
}

func (k KeyBuilder) SubscriptionRefcount(world, ipKey string) string {
	return fmt.Sprintf("%s:%s:sub:v3:%s:%s:cnt", k.Root, k.Env, world, ipKey)
}
