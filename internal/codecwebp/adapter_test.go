package codecwebp

import (
	"context"
	"errors"
	"testing"

	"github.com/adred-codev/pixelcanvas/domain"
)

func TestEncodeLosslessRejectsLengthMismatch(t *testing.T) {
	a := Adapter{}
	rgba := make([][4]byte, 10)
	_, err := a.EncodeLossless(context.Background(), rgba, 4, 4)
	if err == nil {
		t.Fatal("expected an error for mismatched rgba length")
	}
	if !errors.Is(err, domain.ErrCodec) {
		t.Fatalf("expected ErrCodec, got %v", err)
	}
}

func TestEncodeLosslessRoundTripsASmallGrid(t *testing.T) {
	a := Adapter{}
	const size = 2
	rgba := [][4]byte{
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
		{0, 0, 0, 0},
	}
	encoded, err := a.EncodeLossless(context.Background(), rgba, size, size)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(encoded) == 0 {
		t.Fatal("expected non-empty encoded output")
	}

	decoded, w, h, err := a.DecodeToRGBA(context.Background(), encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if w != size || h != size {
		t.Fatalf("decoded dims = %dx%d, want %dx%d", w, h, size, size)
	}
	if len(decoded) != size*size {
		t.Fatalf("decoded length = %d, want %d", len(decoded), size*size)
	}
}

func TestEncodeLosslessRespectsCanceledContext(t *testing.T) {
	a := Adapter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rgba := make([][4]byte, 4)
	_, err := a.EncodeLossless(ctx, rgba, 2, 2)
	if err == nil {
		t.Fatal("expected an error for an already-canceled context")
	}
	if !errors.Is(err, domain.ErrCodecTimeout) {
		t.Fatalf("expected ErrCodecTimeout, got %v", err)
	}
}
