package domain

import "sync/atomic"

// PaletteBufferPool is a bounded, lock-free pool of reusable palette
// scratch buffers, sized to exactly tileSize*tileSize int16 slots.
// Grounded on original_source/domain/src/tile.rs's ArrayQueue-backed pool;
// a Go buffered channel gives the same bounded-FIFO, non-blocking
// acquire/release shape without needing a third-party lock-free queue
// (the teacher's own ConnectionPool in ws/internal/shared/connection.go
// uses the same buffered-channel-as-pool idiom).
type PaletteBufferPool struct {
	slotLen int
	free    chan []int16
}

// NewPaletteBufferPool builds a pool of the given capacity for tiles of
// tileSize*tileSize slots.
func NewPaletteBufferPool(tileSize int32, capacity int) *PaletteBufferPool {
	return &PaletteBufferPool{
		slotLen: int(tileSize) * int(tileSize),
		free:    make(chan []int16, capacity),
	}
}

// Acquire returns a buffer cleared to the transparent sentinel, reused from
// the pool when available or freshly allocated otherwise.
func (p *PaletteBufferPool) Acquire() []int16 {
	select {
	case buf := <-p.free:
		for i := range buf {
			buf[i] = int16(Transparent)
		}
		return buf
	default:
		buf := make([]int16, p.slotLen)
		for i := range buf {
			buf[i] = int16(Transparent)
		}
		return buf
	}
}

// Release returns a buffer to the pool, dropping it silently if the pool
// is already at capacity. Never blocks.
func (p *PaletteBufferPool) Release(buf []int16) {
	if len(buf) != p.slotLen {
		return
	}
	select {
	case p.free <- buf:
	default:
	}
}

// Tile is the lock-free in-memory representation of one S*S block of the
// world canvas (spec.md §3, §4.A). Every slot is an independently atomic
// palette index; Version is the single global ordering point. Grounded on
// original_source/domain/src/tile.rs (Tile{pixels: Box<[AtomicI16]>,
// dirty: AtomicBool, version: AtomicU64}).
type Tile struct {
	Coord    TileCoord
	size     int32
	pixels   []int32 // stores int16 palette ids widened for atomic.Int32 ops
	version  uint64  // accessed only via atomic
	dirtySig int32   // accessed only via atomic, 0/1
}

// NewTile allocates an empty (all-transparent) tile of the given size.
func NewTile(coord TileCoord, size int32) *Tile {
	t := &Tile{
		Coord:  coord,
		size:   size,
		pixels: make([]int32, int(size)*int(size)),
	}
	for i := range t.pixels {
		t.pixels[i] = int32(Transparent)
	}
	return t
}

// Version returns the tile's current version with acquire semantics.
func (t *Tile) Version() uint64 {
	return atomic.LoadUint64(&t.version)
}

// Dirty reports whether the tile has unflushed paint applied.
func (t *Tile) Dirty() bool {
	return atomic.LoadInt32(&t.dirtySig) != 0
}

// MarkClean resets Version to persistedVersion and clears the dirty flag.
// Used by the gateway when loading a tile for painting so its version
// starts at the resolved authoritative value (spec.md §4.F "Load tile for
// painting").
func (t *Tile) MarkClean(persistedVersion uint64) {
	atomic.StoreUint64(&t.version, persistedVersion)
	atomic.StoreInt32(&t.dirtySig, 0)
}

// PaintPixel is one element of a PaintBatch input.
type PaintPixel struct {
	Coord PixelCoord
	Color ColorID
}

// PaintBatch applies pixels in order, each snapped to a pixelSize block and
// clipped to the tile bounds, then performs a single AcqRel version bump.
// Fails with ErrEmptyBatch if pixels is empty (spec.md §4.A).
func (t *Tile) PaintBatch(pixels []PaintPixel, pixelSize int) (uint64, error) {
	if len(pixels) == 0 {
		return 0, ErrEmptyBatch
	}
	size := int(t.size)
	for _, p := range pixels {
		origin := p.Coord.SnapToGrid(pixelSize)
		blockW, blockH := pixelSize, pixelSize
		if blockW <= 0 {
			blockW = 1
		}
		if blockH <= 0 {
			blockH = 1
		}
		for dy := 0; dy < blockH; dy++ {
			y := origin.Y + dy
			if y < 0 || y >= size {
				continue
			}
			for dx := 0; dx < blockW; dx++ {
				x := origin.X + dx
				if x < 0 || x >= size {
					continue
				}
				idx := y*size + x
				atomic.StoreInt32(&t.pixels[idx], int32(p.Color))
			}
		}
	}
	atomic.StoreInt32(&t.dirtySig, 1)
	return atomic.AddUint64(&t.version, 1), nil
}

// SnapshotPalette implements the seqlock-style retry loop: read version,
// copy every slot, re-read version, retry on mismatch. Guarantees the
// returned buffer is consistent with the returned version under concurrent
// PaintBatch calls (spec.md §4.A, properties 1-2).
func (t *Tile) SnapshotPalette(pool *PaletteBufferPool) (uint64, []int16) {
	for {
		before := atomic.LoadUint64(&t.version)
		buf := pool.Acquire()
		for i := range t.pixels {
			buf[i] = int16(atomic.LoadInt32(&t.pixels[i]))
		}
		after := atomic.LoadUint64(&t.version)
		if before == after {
			return after, buf
		}
		pool.Release(buf)
	}
}

// PopulateFromPalette overwrites every slot from buf, which must be exactly
// size*size long. Used when reconstructing a tile from a cached palette or
// from durable pixel history (spec.md §4.F).
func (t *Tile) PopulateFromPalette(buf []int16) {
	n := len(t.pixels)
	if len(buf) < n {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		atomic.StoreInt32(&t.pixels[i], int32(buf[i]))
	}
}
