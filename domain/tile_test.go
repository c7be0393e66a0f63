package domain

import (
	"sync"
	"testing"
)

func TestPaintBatchVersionMonotonic(t *testing.T) {
	tile := NewTile(TileCoord{0, 0}, 4)
	v, err := tile.PaintBatch([]PaintPixel{{PixelCoord{1, 1}, 2}, {PixelCoord{2, 2}, 3}}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected version 1, got %d", v)
	}
	if tile.Version() != 1 {
		t.Fatalf("expected tile.Version()==1, got %d", tile.Version())
	}
}

func TestPaintBatchEmptyFails(t *testing.T) {
	tile := NewTile(TileCoord{0, 0}, 4)
	if _, err := tile.PaintBatch(nil, 1); err != ErrEmptyBatch {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

// TestConcurrentPaintVersionsDisjoint exercises property 1 (spec.md §8):
// across N concurrent PaintBatch calls, returned versions form a
// contiguous unique range and the final Version() is the max returned.
func TestConcurrentPaintVersionsDisjoint(t *testing.T) {
	tile := NewTile(TileCoord{0, 0}, 4)
	const n = 50
	versions := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := tile.PaintBatch([]PaintPixel{{PixelCoord{0, 0}, ColorID(i % 10)}}, 1)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			versions[i] = v
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	var max uint64
	for _, v := range versions {
		if seen[v] {
			t.Fatalf("version %d returned more than once", v)
		}
		seen[v] = true
		if v > max {
			max = v
		}
	}
	for i := uint64(1); i <= n; i++ {
		if !seen[i] {
			t.Fatalf("version %d missing from contiguous range", i)
		}
	}
	if tile.Version() != max {
		t.Fatalf("final version %d does not equal max returned %d", tile.Version(), max)
	}
}

// TestSnapshotConsistency exercises property 2: snapshot_palette always
// yields a version >= the paint that triggered it, with no torn reads,
// even under concurrent painters.
func TestSnapshotConsistency(t *testing.T) {
	tile := NewTile(TileCoord{0, 0}, 4)
	pool := NewPaletteBufferPool(4, 4)

	v, err := tile.PaintBatch([]PaintPixel{{PixelCoord{1, 1}, 2}, {PixelCoord{2, 2}, 3}}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			tile.PaintBatch([]PaintPixel{{PixelCoord{3, 3}, ColorID(i % 5)}}, 1)
		}
		close(done)
	}()

	vPrime, buf := tile.SnapshotPalette(pool)
	<-done

	if vPrime < v {
		t.Fatalf("snapshot version %d older than paint version %d", vPrime, v)
	}
	if len(buf) != 16 {
		t.Fatalf("expected 16-slot buffer, got %d", len(buf))
	}
}

func TestNegativeGlobalCoordRoundTrip(t *testing.T) {
	const tileSize = int32(256)
	global := GlobalCoord{X: -10, Y: 5}
	tc := global.ToTileCoord(tileSize)
	pc := global.ToPixelCoord(tileSize)
	if tc.X != -1 {
		t.Fatalf("expected tile x -1 for global x -10 with size 256, got %d", tc.X)
	}
	if pc.X != 246 {
		t.Fatalf("expected pixel x 246, got %d", pc.X)
	}
	back := FromTileAndPixel(tc, pc, tileSize)
	if back != global {
		t.Fatalf("round trip mismatch: got %+v want %+v", back, global)
	}
}
