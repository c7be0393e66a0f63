package wsconn

import (
	"sync"

	"github.com/adred-codev/pixelcanvas/domain"
)

// TileSet is a thread-safe set of subscribed tile coordinates, held
// per-connection so the read/write pumps can filter broadcast events
// without a KV round trip. Adapted from
// internal/shared/connection.go's SubscriptionSet.
type TileSet struct {
	mu    sync.RWMutex
	tiles map[domain.TileCoord]struct{}
}

// NewTileSet creates an empty set.
func NewTileSet() *TileSet {
	return &TileSet{tiles: make(map[domain.TileCoord]struct{})}
}

// Add records a tile as subscribed.
func (s *TileSet) Add(tile domain.TileCoord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles[tile] = struct{}{}
}

// Remove drops a tile from the set.
func (s *TileSet) Remove(tile domain.TileCoord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tiles, tile)
}

// Has reports whether tile is currently subscribed.
func (s *TileSet) Has(tile domain.TileCoord) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tiles[tile]
	return ok
}

// Count returns the number of subscribed tiles.
func (s *TileSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tiles)
}

// List returns a copy of every subscribed tile.
func (s *TileSet) List() []domain.TileCoord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TileCoord, 0, len(s.tiles))
	for t := range s.tiles {
		out = append(out, t)
	}
	return out
}

// Clear empties the set, used on disconnect cleanup.
func (s *TileSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles = make(map[domain.TileCoord]struct{})
}
