package paint

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/pixelcanvas/domain"
	"github.com/adred-codev/pixelcanvas/internal/gateway"
	"github.com/adred-codev/pixelcanvas/internal/ports"
)

type memCache struct {
	mu       sync.Mutex
	versions map[string]uint64
	palettes map[string][]int16
}

func newMemCache() *memCache {
	return &memCache{versions: map[string]uint64{}, palettes: map[string][]int16{}}
}
func ck(world string, coord domain.TileCoord) string { return world + ":" + coord.String() }

func (c *memCache) GetVersion(ctx context.Context, world string, coord domain.TileCoord) (uint64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.versions[ck(world, coord)]
	return v, ok, nil
}
func (c *memCache) GetPalette(ctx context.Context, world string, coord domain.TileCoord, version uint64) ([]int16, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.palettes[ck(world, coord)]
	return b, ok, nil
}
func (c *memCache) StorePalette(ctx context.Context, world string, coord domain.TileCoord, version uint64, buf []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]int16, len(buf))
	copy(cp, buf)
	c.palettes[ck(world, coord)] = cp
	return nil
}
func (c *memCache) GetWebP(ctx context.Context, world string, coord domain.TileCoord, version uint64) ([]byte, bool, error) {
	return nil, false, nil
}
func (c *memCache) StoreWebP(ctx context.Context, world string, coord domain.TileCoord, version uint64, bytes []byte) error {
	return nil
}
func (c *memCache) HasMissingSentinel(ctx context.Context, world string, coord domain.TileCoord) (bool, error) {
	return false, nil
}
func (c *memCache) SetMissingSentinel(ctx context.Context, world string, coord domain.TileCoord)   {}
func (c *memCache) ClearMissingSentinel(ctx context.Context, world string, coord domain.TileCoord) {}
func (c *memCache) UpdateVersionOptimistically(ctx context.Context, world string, coord domain.TileCoord, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[ck(world, coord)] = version
}
func (c *memCache) StorePaletteOptimistically(ctx context.Context, world string, coord domain.TileCoord, version uint64, buf []int16) {
}
func (c *memCache) ClearCache(ctx context.Context, world string) error { return nil }
func (c *memCache) InvalidateTile(ctx context.Context, world string, coord domain.TileCoord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.versions, ck(world, coord))
	return nil
}

type memStore struct {
	mu      sync.Mutex
	actions []domain.PaintAction
}

func (s *memStore) RecordPaintActions(ctx context.Context, world string, actions []domain.PaintAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, actions...)
	return nil
}
func (s *memStore) GetHistoryForTile(ctx context.Context, world string, coord domain.TileCoord, tileSize int32, limit int) ([]ports.PixelHistoryEntry, error) {
	return nil, nil
}
func (s *memStore) GetCurrentTileState(ctx context.Context, world string, coord domain.TileCoord, tileSize int32) ([]ports.PixelState, error) {
	return nil, nil
}
func (s *memStore) GetDistinctTileCount(ctx context.Context, world string, tileSize int32) (int64, error) {
	return 0, nil
}
func (s *memStore) GetPixelInfo(ctx context.Context, world string, global domain.GlobalCoord) (*ports.PixelInfo, error) {
	return nil, nil
}
func (s *memStore) RemoveUserPixels(ctx context.Context, world string, userID string, tileSize int32) ([]domain.TileCoord, error) {
	return nil, nil
}

type memCredits struct {
	mu       sync.Mutex
	balances map[string]domain.CreditBalance
}

func newMemCredits(initial domain.CreditBalance) *memCredits {
	return &memCredits{balances: map[string]domain.CreditBalance{"u1": initial}}
}
func (c *memCredits) GetBalance(ctx context.Context, userID string) (domain.CreditBalance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[userID], nil
}
func (c *memCredits) UpdateBalance(ctx context.Context, userID string, balance domain.CreditBalance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[userID] = balance
	return nil
}

type memEvents struct {
	mu     sync.Mutex
	events []domain.TileVersionEvent
}

func (e *memEvents) BroadcastTileVersion(ctx context.Context, event domain.TileVersionEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

type stubCodec struct{}

func (stubCodec) EncodeLossless(ctx context.Context, rgba [][4]byte, width, height int) ([]byte, error) {
	return []byte{1}, nil
}
func (stubCodec) DecodeToRGBA(ctx context.Context, bytes []byte) ([][4]byte, int, int, error) {
	return nil, 0, 0, nil
}

func newTestService(t *testing.T, balance domain.CreditBalance) (*Service, *memEvents, *memStore) {
	t.Helper()
	world := domain.World{ID: "w1", Size: 4, PixelSize: 1, Palette: []domain.RGBColor{{}, {}, {}, {}}}
	gw := &gateway.Gateway{
		Cache:  newMemCache(),
		Store:  &memStore{},
		Codec:  stubCodec{},
		Pool:   domain.NewPaletteBufferPool(4, 4),
		Worlds: map[string]domain.World{"w1": world},
		Logger: zerolog.Nop(),
	}
	events := &memEvents{}
	store := &memStore{}
	return &Service{
		Gateway:   gw,
		Credits:   newMemCredits(balance),
		Store:     store,
		Events:    events,
		CreditCfg: domain.CreditConfig{MaxCharges: 30, CooldownSeconds: 60},
		Now:       time.Now,
		Logger:    zerolog.Nop(),
	}, events, store
}

func TestPaintBatchDebitsAndEmitsEvent(t *testing.T) {
	svc, events, store := newTestService(t, domain.CreditBalance{Available: 5, UpdatedAt: time.Now()})
	ctx := context.Background()

	res, err := svc.PaintBatch(ctx, Batch{
		World: "w1", UserID: "u1", Tile: domain.TileCoord{0, 0},
		Pixels: []domain.PaintPixel{{domain.PixelCoord{1, 1}, 2}, {domain.PixelCoord{2, 2}, 3}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Version != 1 {
		t.Fatalf("expected version 1, got %d", res.Version)
	}

	balance, _ := svc.Credits.GetBalance(ctx, "u1")
	if balance.Available != 3 {
		t.Fatalf("expected 3 credits remaining, got %d", balance.Available)
	}
	if len(events.events) != 1 || events.events[0].Version != 1 {
		t.Fatalf("expected one tile-version event at version 1, got %+v", events.events)
	}
	if len(store.actions) != 2 {
		t.Fatalf("expected 2 recorded paint actions, got %d", len(store.actions))
	}
}

func TestPaintBatchInsufficientCredits(t *testing.T) {
	svc, _, _ := newTestService(t, domain.CreditBalance{Available: 1, UpdatedAt: time.Now()})
	ctx := context.Background()

	_, err := svc.PaintBatch(ctx, Batch{
		World: "w1", UserID: "u1", Tile: domain.TileCoord{0, 0},
		Pixels: []domain.PaintPixel{{domain.PixelCoord{1, 1}, 2}, {domain.PixelCoord{2, 2}, 3}},
	})
	if err == nil {
		t.Fatalf("expected insufficient credits error")
	}
}

func TestPaintBatchRejectsDuplicatePixels(t *testing.T) {
	svc, _, _ := newTestService(t, domain.CreditBalance{Available: 10, UpdatedAt: time.Now()})
	ctx := context.Background()

	_, err := svc.PaintBatch(ctx, Batch{
		World: "w1", UserID: "u1", Tile: domain.TileCoord{0, 0},
		Pixels: []domain.PaintPixel{{domain.PixelCoord{1, 1}, 2}, {domain.PixelCoord{1, 1}, 3}},
	})
	if err == nil {
		t.Fatalf("expected validation error for duplicate pixel coord")
	}
}

func TestPaintBatchRejectsOutOfBoundsPixel(t *testing.T) {
	svc, _, _ := newTestService(t, domain.CreditBalance{Available: 10, UpdatedAt: time.Now()})
	ctx := context.Background()

	_, err := svc.PaintBatch(ctx, Batch{
		World: "w1", UserID: "u1", Tile: domain.TileCoord{0, 0},
		Pixels: []domain.PaintPixel{{domain.PixelCoord{99, 99}, 2}},
	})
	if err == nil {
		t.Fatalf("expected validation error for out-of-bounds pixel")
	}
}
